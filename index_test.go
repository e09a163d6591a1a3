package hat

import (
	"errors"
	"testing"
)

func TestAddAssignsMonotonicIDs(t *testing.T) {
	idx := NewIndex(8, Cosine, nil)
	vecs := randomVectors(20, 8, 1)
	for i, v := range vecs {
		id, err := idx.Add(v)
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if id != uint64(i) {
			t.Fatalf("Add id = %d, want %d", id, i)
		}
	}
}

func TestAddRejectsDimensionMismatch(t *testing.T) {
	idx := NewIndex(8, Cosine, nil)
	_, err := idx.Add(make([]float32, 4))
	var mismatch *ErrDimensionMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("Add with wrong dim: got %v, want *ErrDimensionMismatch", err)
	}
}

func TestSelfRetrieval(t *testing.T) {
	idx := NewIndex(16, Cosine, nil)
	vecs := randomVectors(200, 16, 2)
	for _, v := range vecs {
		if _, err := idx.Add(v); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	for i, v := range vecs {
		results, err := idx.Search(v, 1)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("Search(%d) returned %d results, want 1", i, len(results))
		}
		if results[0].ID != uint64(i) {
			t.Errorf("Search(%d) top result id = %d, want %d (score %v)", i, results[0].ID, i, results[0].Score)
		}
	}
}

func TestSearchIsPureFunction(t *testing.T) {
	idx := NewIndex(8, Cosine, nil)
	vecs := randomVectors(50, 8, 3)
	for _, v := range vecs {
		idx.Add(v)
	}
	a, err := idx.Search(vecs[0], 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	b, err := idx.Search(vecs[0], 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("repeated Search returned different lengths: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("repeated Search differs at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := NewIndex(8, Cosine, nil)
	results, err := idx.Search(make([]float32, 8), 5)
	if err != nil {
		t.Fatalf("Search on empty index: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("Search on empty index returned %d results, want 0", len(results))
	}
}

func TestSearchFewerThanK(t *testing.T) {
	idx := NewIndex(8, Cosine, nil)
	vecs := randomVectors(3, 8, 4)
	for _, v := range vecs {
		idx.Add(v)
	}
	results, err := idx.Search(vecs[0], 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Search with k > n returned %d results, want 3", len(results))
	}
}

func TestSearchZeroKReturnsEmpty(t *testing.T) {
	idx := NewIndex(8, Cosine, nil)
	idx.Add(randomVectors(1, 8, 5)[0])
	results, err := idx.Search(make([]float32, 8), 0)
	if err != nil {
		t.Fatalf("Search k=0: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("Search k=0 returned %d results, want 0", len(results))
	}
}

func TestNewSessionAndNewDocumentIdempotentWhenClean(t *testing.T) {
	idx := NewIndex(4, Cosine, nil)
	idx.NewSession()
	first := idx.activeSessionID
	idx.NewSession() // no adds since last call: should be a no-op
	if idx.activeSessionID != first {
		t.Errorf("NewSession changed active session with no intervening Add: got %d, want %d", idx.activeSessionID, first)
	}

	idx.NewDocument()
	firstDoc := idx.activeDocumentID
	idx.NewDocument()
	if idx.activeDocumentID != firstDoc {
		t.Errorf("NewDocument changed active document with no intervening Add: got %d, want %d", idx.activeDocumentID, firstDoc)
	}
}

func TestNewDocumentStartsFreshAfterAdd(t *testing.T) {
	idx := NewIndex(4, Cosine, nil)
	idx.Add([]float32{1, 0, 0, 0})
	firstDoc := idx.activeDocumentID
	idx.NewDocument()
	if idx.activeDocumentID == firstDoc {
		t.Errorf("NewDocument after an Add did not start a new document")
	}
}

func TestRemoveThenSearchOmitsPoint(t *testing.T) {
	idx := NewIndex(8, Cosine, nil)
	vecs := randomVectors(30, 8, 6)
	var ids []uint64
	for _, v := range vecs {
		id, _ := idx.Add(v)
		ids = append(ids, id)
	}
	if !idx.Remove(ids[5]) {
		t.Fatalf("Remove reported not found for a known id")
	}
	if idx.Remove(ids[5]) {
		t.Fatalf("Remove reported found for an already-removed id")
	}
	if idx.Remove(999999) {
		t.Fatalf("Remove reported found for an unknown id")
	}
	results, err := idx.Search(vecs[5], len(vecs))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.ID == ids[5] {
			t.Errorf("Search returned removed id %d", ids[5])
		}
	}
	if got, want := idx.Len(), len(vecs)-1; got != want {
		t.Errorf("Len() = %d, want %d", got, want)
	}
}

func TestStatsCountsContainers(t *testing.T) {
	idx := NewIndex(4, Cosine, nil)
	for i := 0; i < 25; i++ {
		if i%10 == 0 {
			idx.NewDocument()
		}
		idx.Add([]float32{float32(i), 0, 0, 0})
	}
	stats := idx.Stats()
	if stats.TotalPoints != 25 {
		t.Errorf("Stats.TotalPoints = %d, want 25", stats.TotalPoints)
	}
	if stats.Sessions == 0 || stats.Documents == 0 || stats.Chunks == 0 {
		t.Errorf("Stats reported zero containers at some level: %+v", stats)
	}
	if stats.ConsolidationPhase != "idle" {
		t.Errorf("Stats.ConsolidationPhase = %q, want idle with no Consolidate in flight", stats.ConsolidationPhase)
	}
}

func TestNearSessionsAndNearDocuments(t *testing.T) {
	idx := NewIndex(4, Cosine, nil)
	idx.NewSession()
	sessionA := idx.activeSessionID
	idx.NewDocument()
	idx.Add([]float32{1, 0, 0, 0})
	idx.NewSession()
	idx.NewDocument()
	idx.Add([]float32{0, 1, 0, 0})

	sessions, err := idx.NearSessions([]float32{1, 0, 0, 0}, 2)
	if err != nil {
		t.Fatalf("NearSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("NearSessions returned %d results, want 2", len(sessions))
	}
	if sessions[0].ID != sessionA {
		t.Errorf("NearSessions top result = %d, want %d", sessions[0].ID, sessionA)
	}

	docs, err := idx.NearDocuments(sessionA, []float32{1, 0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("NearDocuments: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("NearDocuments returned %d results, want 1", len(docs))
	}

	if _, err := idx.NearDocuments(999999, []float32{1, 0, 0, 0}, 5); err != ErrNotFound {
		t.Errorf("NearDocuments with unknown session id: got %v, want ErrNotFound", err)
	}
}

func TestNearInDocument(t *testing.T) {
	idx := NewIndex(4, Cosine, nil)
	idx.NewDocument()
	docID := idx.activeDocumentID
	idx.Add([]float32{1, 0, 0, 0})
	idx.Add([]float32{0, 1, 0, 0})

	results, err := idx.NearInDocument(docID, []float32{1, 0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("NearInDocument: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("NearInDocument returned %d results, want 2", len(results))
	}
	if results[0].ID != 0 {
		t.Errorf("NearInDocument top result = %d, want 0", results[0].ID)
	}

	if _, err := idx.NearInDocument(999999, []float32{1, 0, 0, 0}, 5); err != ErrNotFound {
		t.Errorf("NearInDocument with unknown document id: got %v, want ErrNotFound", err)
	}
}
