package hat

import (
	"sync"
	"sync/atomic"

	"github.com/ic-timon/hat/simd"
)

// SearchResult is a single (point id, score) pair returned by Search and
// NearInDocument, in descending score order.
type SearchResult struct {
	ID    uint64
	Score float64
}

// ContainerResult is a single (container id, score) pair returned by
// NearSessions and NearDocuments.
type ContainerResult struct {
	ID    uint64
	Score float64
}

// IndexStats is a read-only snapshot of the tree's shape, used by
// callers (and by the ARMS-HAT binding layer this core supports) to
// report the tree's structure without walking it themselves.
type IndexStats struct {
	TotalPoints        uint64
	Sessions           int
	Documents          int
	Chunks             int
	ConsolidationPhase string
	// DotImpl names the dot product kernel currently dispatched by the
	// simd package (e.g. "AVX2", "NEON", "Go"), for operational logging.
	DotImpl string
}

// Index is the top-level HAT vector index: dimensionality, metric choice,
// config, the container arena, and the active insertion cursor.
//
// Index is a single-writer, many-reader resource: Search, the
// container-scoped Near* queries, Len, Stats, and Save take a shared
// lock; Add, NewSession, NewDocument, Remove, and Consolidate take an
// exclusive lock. Load builds a new Index and takes no lock.
type Index struct {
	mu sync.RWMutex

	dim    int
	metric Metric
	cfg    *Config

	arena            map[uint64]*Container
	pointLocation    map[uint64]uint64 // point id -> owning chunk id
	nextContainerID  uint64
	nextPointID      uint64
	nextTimestamp    int64 // logical clock, advanced once per tick()
	activeSessionID  uint64
	activeDocumentID uint64
	sessionDirty     bool // true once a point has landed in the active session
	docDirty         bool // true once a point has landed in the active document

	consolidating atomic.Bool
	cursor        *consolidationCursor
}

// NewIndex creates an empty index. dimensionality fixes the vector length
// accepted by Add and Search for the lifetime of this index; cfg may be
// nil to use DefaultConfig().
func NewIndex(dimensionality int, metric Metric, cfg *Config) *Index {
	cfg = cfg.orDefault()
	idx := &Index{
		dim:             dimensionality,
		metric:          metric,
		cfg:             cfg,
		arena:           make(map[uint64]*Container),
		pointLocation:   make(map[uint64]uint64),
		nextContainerID: 1,
	}
	idx.arena[globalContainerID] = newContainer(globalContainerID, LevelGlobal, globalContainerID, dimensionality, idx.tick())
	return idx
}

func (idx *Index) allocContainerID() uint64 {
	id := idx.nextContainerID
	idx.nextContainerID++
	return id
}

// tick advances and returns the index's logical clock, used in place of a
// wall-clock read for every CreatedAt/Timestamp value. Two indices built
// from the same sequence of Add/NewSession/NewDocument calls therefore
// produce identical timestamps, which the persisted wire format's
// created_at field requires for save-output determinism (see spec §8
// scenario 6). Callers must hold idx.mu.
func (idx *Index) tick() int64 {
	t := idx.nextTimestamp
	idx.nextTimestamp++
	return t
}

// Dimensionality returns the fixed vector length accepted by this index.
func (idx *Index) Dimensionality() int {
	return idx.dim
}

// MetricKind returns the configured similarity metric.
func (idx *Index) MetricKind() Metric {
	return idx.metric
}

// Len returns the total number of points currently reachable from the
// root, equal to the number of successful Add calls minus Removes.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.pointLocation)
}

// Add inserts vector into the active document's tail chunk, creating a
// session and/or document first if none is active. Centroids are updated
// by exact leaf recompute and sparse ancestor propagation (see
// Config.CentroidDriftTau). Add never fails on capacity.
func (idx *Index) Add(vector []float32) (uint64, error) {
	if len(vector) != idx.dim {
		return 0, &ErrDimensionMismatch{Expected: idx.dim, Actual: len(vector)}
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	now := idx.tick()
	if idx.activeSessionID == 0 {
		idx.startSession(now)
	}
	if idx.activeDocumentID == 0 {
		idx.startDocument(now)
	}

	doc := idx.arena[idx.activeDocumentID]
	chunk := idx.tailChunk(doc, now)

	id := idx.nextPointID
	idx.nextPointID++
	vec := cloneVec(vector)
	chunk.Points = append(chunk.Points, Point{ID: id, Vector: vec, Timestamp: now})
	chunk.Count++
	meanUpdate(chunk.Centroid, vec, chunk.Count)
	idx.pointLocation[id] = chunk.ID

	idx.propagateUp(doc.ID, vec)

	idx.sessionDirty = true
	idx.docDirty = true
	return id, nil
}

// propagateUp walks the ancestor chain of startID (a document id) to the
// root and applies the sparse propagation rule of §4.4: doc, session,
// global. Count is incremented exactly on every ancestor regardless of
// drift; only the centroid update is skipped once ‖delta‖ falls below
// CentroidDriftTau, so count never lags the true leaf-reachable total.
func (idx *Index) propagateUp(startID uint64, v []float32) {
	id := startID
	for {
		anc, ok := idx.arena[id]
		if !ok {
			return
		}
		anc.Count++
		delta := make([]float32, idx.dim)
		invCount := float32(1.0 / float64(anc.Count))
		for i := range delta {
			delta[i] = (v[i] - anc.Centroid[i]) * invCount
		}
		if norm(delta) >= idx.cfg.CentroidDriftTau {
			for i := range anc.Centroid {
				anc.Centroid[i] += delta[i]
			}
		}
		if anc.Level == LevelGlobal {
			return
		}
		id = anc.ParentID
	}
}

// tailChunk returns the active document's tail chunk, creating a new one
// if none exists yet or the current tail has reached MaxChunkPoints.
func (idx *Index) tailChunk(doc *Container, now int64) *Container {
	if len(doc.Children) > 0 {
		tail := idx.arena[doc.Children[len(doc.Children)-1]]
		if tail.Count < uint64(idx.cfg.MaxChunkPoints) {
			return tail
		}
	}
	id := idx.allocContainerID()
	chunk := newContainer(id, LevelChunk, doc.ID, idx.dim, now)
	idx.arena[id] = chunk
	doc.Children = append(doc.Children, id)
	return chunk
}

// startSession unconditionally creates a new Session container as a
// child of Global and makes it active. Callers check idempotency first.
func (idx *Index) startSession(now int64) {
	id := idx.allocContainerID()
	sess := newContainer(id, LevelSession, globalContainerID, idx.dim, now)
	idx.arena[id] = sess
	global := idx.arena[globalContainerID]
	global.Children = append(global.Children, id)
	idx.activeSessionID = id
	idx.activeDocumentID = 0
	idx.sessionDirty = false
	idx.docDirty = false
}

// startDocument unconditionally creates a new Document container under
// the active session and makes it active.
func (idx *Index) startDocument(now int64) {
	id := idx.allocContainerID()
	doc := newContainer(id, LevelDocument, idx.activeSessionID, idx.dim, now)
	idx.arena[id] = doc
	sess := idx.arena[idx.activeSessionID]
	sess.Children = append(sess.Children, id)
	idx.activeDocumentID = id
	idx.docDirty = false
}

// NewSession closes the current session, if any, and starts a fresh one
// with no document yet. Idempotent if called when no insertions have
// occurred since the last call.
func (idx *Index) NewSession() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.activeSessionID != 0 && !idx.sessionDirty {
		return
	}
	idx.startSession(idx.tick())
}

// NewDocument closes the current document, if any, and starts a new one
// under the current session (creating a session first if none exists).
// Idempotent if called when no insertions have occurred since the last
// call.
func (idx *Index) NewDocument() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	now := idx.tick()
	if idx.activeSessionID == 0 {
		idx.startSession(now)
	}
	if idx.activeDocumentID != 0 && !idx.docDirty {
		return
	}
	idx.startDocument(now)
}

// Search performs beam search and returns at most k results in
// descending score order, ties broken by ascending id. Returns an empty
// slice on an empty index. Pure function of current state.
func (idx *Index) Search(query []float32, k int) ([]SearchResult, error) {
	if len(query) != idx.dim {
		return nil, &ErrDimensionMismatch{Expected: idx.dim, Actual: len(query)}
	}
	if k <= 0 {
		return nil, nil
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.beamSearch(query, k), nil
}

// NearSessions scores every session's centroid against query and returns
// the top-k in descending score order, ties broken by ascending id.
func (idx *Index) NearSessions(query []float32, k int) ([]ContainerResult, error) {
	if len(query) != idx.dim {
		return nil, &ErrDimensionMismatch{Expected: idx.dim, Actual: len(query)}
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	global := idx.arena[globalContainerID]
	return idx.scoreChildren(global, query, k), nil
}

// NearDocuments scores every document under sessionID against query and
// returns the top-k. Returns ErrNotFound if sessionID names no existing
// session.
func (idx *Index) NearDocuments(sessionID uint64, query []float32, k int) ([]ContainerResult, error) {
	if len(query) != idx.dim {
		return nil, &ErrDimensionMismatch{Expected: idx.dim, Actual: len(query)}
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	sess, ok := idx.arena[sessionID]
	if !ok || sess.Level != LevelSession {
		return nil, ErrNotFound
	}
	return idx.scoreChildren(sess, query, k), nil
}

// NearInDocument scores every point in the chunks owned by docID against
// query and returns the top-k. Returns ErrNotFound if docID names no
// existing document.
func (idx *Index) NearInDocument(docID uint64, query []float32, k int) ([]SearchResult, error) {
	if len(query) != idx.dim {
		return nil, &ErrDimensionMismatch{Expected: idx.dim, Actual: len(query)}
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	doc, ok := idx.arena[docID]
	if !ok || doc.Level != LevelDocument {
		return nil, ErrNotFound
	}
	var candidates []scored
	for _, cid := range doc.Children {
		chunk := idx.arena[cid]
		for _, p := range chunk.Points {
			candidates = append(candidates, scored{id: p.ID, score: idx.metric.score(query, p.Vector)})
		}
	}
	top := topBScored(candidates, k)
	out := make([]SearchResult, len(top))
	for i, t := range top {
		out[i] = SearchResult{ID: t.id, Score: t.score}
	}
	return out, nil
}

// Remove deletes a point by id, compacting it out of its chunk's point
// list and decrementing counts exactly up the ancestor chain. The
// containing chunk's centroid is recomputed exactly; ancestor centroids
// are left as-is and are restored to exactness by the next Light
// consolidation, matching the sparse-propagation drift contract. Returns
// false if id is unknown.
func (idx *Index) Remove(id uint64) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	chunkID, ok := idx.pointLocation[id]
	if !ok {
		return false
	}
	chunk := idx.arena[chunkID]
	pi := chunk.pointIndex(id)
	if pi < 0 {
		return false
	}
	chunk.Points = append(chunk.Points[:pi], chunk.Points[pi+1:]...)
	chunk.Count--
	chunk.recomputeFromPoints(idx.dim)
	delete(idx.pointLocation, id)

	for ancID := chunk.ParentID; ; {
		anc, ok := idx.arena[ancID]
		if !ok {
			break
		}
		anc.Count--
		if anc.Level == LevelGlobal {
			break
		}
		ancID = anc.ParentID
	}
	return true
}

// Stats returns a snapshot of the tree's current shape.
func (idx *Index) Stats() IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var stats IndexStats
	stats.TotalPoints = uint64(len(idx.pointLocation))
	for _, c := range idx.arena {
		switch c.Level {
		case LevelSession:
			stats.Sessions++
		case LevelDocument:
			stats.Documents++
		case LevelChunk:
			stats.Chunks++
		}
	}
	if idx.cursor != nil {
		stats.ConsolidationPhase = idx.cursor.phase.String()
	} else {
		stats.ConsolidationPhase = "idle"
	}
	stats.DotImpl = simd.DotProductDesc()
	return stats
}

// scoreChildren scores every child of c against query and returns the
// top-k in descending score order, ties broken by ascending id.
func (idx *Index) scoreChildren(c *Container, query []float32, k int) []ContainerResult {
	var candidates []scored
	for _, cid := range c.Children {
		child := idx.arena[cid]
		candidates = append(candidates, scored{id: cid, score: idx.metric.score(query, child.Centroid)})
	}
	top := topBScored(candidates, k)
	out := make([]ContainerResult, len(top))
	for i, t := range top {
		out[i] = ContainerResult{ID: t.id, Score: t.score}
	}
	return out
}
