package hat

import (
	"bytes"
	"testing"
)

func buildTestIndex(n, dim int, seed int64) *Index {
	idx := NewIndex(dim, Cosine, nil)
	vecs := randomVectors(n, dim, seed)
	for i, v := range vecs {
		if i%11 == 0 {
			idx.NewDocument()
		}
		if i%50 == 0 {
			idx.NewSession()
		}
		idx.Add(v)
	}
	return idx
}

func TestSaveLoadRoundtripPreservesPoints(t *testing.T) {
	idx := buildTestIndex(120, 8, 21)

	var buf bytes.Buffer
	if err := idx.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(&buf, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Len() != idx.Len() {
		t.Fatalf("Len mismatch: saved %d, loaded %d", idx.Len(), loaded.Len())
	}
	if loaded.Dimensionality() != idx.Dimensionality() {
		t.Fatalf("Dimensionality mismatch: saved %d, loaded %d", idx.Dimensionality(), loaded.Dimensionality())
	}
	if loaded.MetricKind() != idx.MetricKind() {
		t.Fatalf("Metric mismatch: saved %v, loaded %v", idx.MetricKind(), loaded.MetricKind())
	}
}

func TestSaveLoadRoundtripPreservesSearchResults(t *testing.T) {
	idx := buildTestIndex(80, 8, 22)
	vecs := randomVectors(80, 8, 22)

	var buf bytes.Buffer
	if err := idx.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(&buf, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	query := vecs[5]
	want, err := idx.Search(query, 5)
	if err != nil {
		t.Fatalf("Search on original: %v", err)
	}
	got, err := loaded.Search(query, 5)
	if err != nil {
		t.Fatalf("Search on loaded: %v", err)
	}
	if len(want) != len(got) {
		t.Fatalf("result count mismatch: original %d, loaded %d", len(want), len(got))
	}
	for i := range want {
		if want[i] != got[i] {
			t.Errorf("result[%d] mismatch: original %+v, loaded %+v", i, want[i], got[i])
		}
	}
}

func TestSaveIsDeterministic(t *testing.T) {
	idx := buildTestIndex(50, 4, 23)

	var buf1, buf2 bytes.Buffer
	if err := idx.Save(&buf1); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := idx.Save(&buf2); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !bytes.Equal(buf1.Bytes(), buf2.Bytes()) {
		t.Errorf("two Save calls on the same index produced different output")
	}
}

// TestIndependentIndicesWithSameAddsProduceIdenticalSave covers spec
// scenario 6: two freshly-constructed indices fed the identical sequence
// of adds, from separate NewIndex calls, must save to identical bytes.
// This is a different property from TestSaveIsDeterministic, which only
// re-saves a single already-built index and so cannot detect a
// wall-clock-derived field leaking into the wire format.
func TestIndependentIndicesWithSameAddsProduceIdenticalSave(t *testing.T) {
	build := func() *Index {
		idx := NewIndex(6, Cosine, nil)
		vecs := randomVectors(40, 6, 30)
		for i, v := range vecs {
			if i%6 == 0 {
				idx.NewDocument()
			}
			if i%17 == 0 {
				idx.NewSession()
			}
			idx.Add(v)
		}
		return idx
	}

	a, b := build(), build()

	var bufA, bufB bytes.Buffer
	if err := a.Save(&bufA); err != nil {
		t.Fatalf("Save a: %v", err)
	}
	if err := b.Save(&bufB); err != nil {
		t.Fatalf("Save b: %v", err)
	}
	if !bytes.Equal(bufA.Bytes(), bufB.Bytes()) {
		t.Fatalf("two independently constructed indices fed the same add sequence produced different Save output")
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBufferString("XXXX")
	buf.Write(make([]byte, 64))
	_, err := Load(buf, nil)
	if err != ErrBadMagic {
		t.Errorf("Load with bad magic: got %v, want ErrBadMagic", err)
	}
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	idx := buildTestIndex(5, 4, 24)
	var buf bytes.Buffer
	if err := idx.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// format_version is the 4 bytes immediately after the magic.
	raw := buf.Bytes()
	raw[4] = 99
	raw[5] = 0
	raw[6] = 0
	raw[7] = 0
	_, err := Load(bytes.NewReader(raw), nil)
	if err != ErrUnsupportedVersion {
		t.Errorf("Load with unsupported version: got %v, want ErrUnsupportedVersion", err)
	}
}

func TestLoadRejectsTruncatedStream(t *testing.T) {
	idx := buildTestIndex(30, 4, 25)
	var buf bytes.Buffer
	if err := idx.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()-10]
	_, err := Load(bytes.NewReader(truncated), nil)
	if _, ok := err.(*ErrCorrupt); !ok {
		t.Errorf("Load on truncated stream: got %v (%T), want *ErrCorrupt", err, err)
	}
}

func TestSaveLoadEmptyIndex(t *testing.T) {
	idx := NewIndex(4, Dot, nil)
	var buf bytes.Buffer
	if err := idx.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(&buf, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != 0 {
		t.Errorf("Load of empty index has Len() = %d, want 0", loaded.Len())
	}
}
