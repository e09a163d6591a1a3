package hat

import "sort"

// ConsolidationPhase selects one of the four maintenance passes described
// in §4.6. Each is incremental: a single Consolidate call touches at most
// Config.ConsolidationPhaseBudget containers and leaves a cursor behind
// if the epoch is not yet complete.
type ConsolidationPhase int

const (
	PhaseLight ConsolidationPhase = iota
	PhaseMedium
	PhaseDeep
	PhaseFull
)

// String implements fmt.Stringer.
func (p ConsolidationPhase) String() string {
	switch p {
	case PhaseLight:
		return "light"
	case PhaseMedium:
		return "medium"
	case PhaseDeep:
		return "deep"
	case PhaseFull:
		return "full"
	default:
		return "unknown"
	}
}

// ConsolidationReport summarizes one Consolidate call.
type ConsolidationReport struct {
	Phase    ConsolidationPhase
	Visited  int
	Done     bool // true once this phase's epoch has fully completed
}

const (
	stageRecompute = iota
	stageSplitMerge
	stagePrune
	stageRebuildPoints
	stageRebuildRecompute
	stageDone
)

// consolidationCursor is the persistent state carried between bounded
// Consolidate calls within one epoch. Its state machine is
// {Idle -> Running(phase, cursor) -> Idle}; Idle is represented by
// Index.cursor == nil.
type consolidationCursor struct {
	phase ConsolidationPhase
	stage int

	recomputeQueue []uint64 // bottom-up container ids: chunks, docs, sessions, global
	spliceQueue    []uint64 // document ids pending split/merge evaluation
	pruneQueue     []uint64 // container ids pending the zero-count sweep

	// Full-phase staging state.
	rebuildPoints  []pointBoundary
	rebuildState   *rebuildState
}

// Consolidate runs one incremental step of phase, extending any epoch
// already in progress for that phase or starting a fresh one otherwise.
// Returns ErrBusy if another Consolidate call is already running.
func (idx *Index) Consolidate(phase ConsolidationPhase) (ConsolidationReport, error) {
	if !idx.consolidating.CompareAndSwap(false, true) {
		return ConsolidationReport{}, ErrBusy
	}
	defer idx.consolidating.Store(false)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.cursor == nil || idx.cursor.phase != phase {
		idx.cursor = idx.newCursor(phase)
	}

	budget := idx.cfg.ConsolidationPhaseBudget
	var visited int
	if phase == PhaseFull {
		visited = idx.stepFull(idx.cursor, budget)
	} else {
		visited = idx.stepIncremental(idx.cursor, budget)
	}

	done := idx.cursor.stage == stageDone
	report := ConsolidationReport{Phase: phase, Visited: visited, Done: done}
	if done {
		idx.cursor = nil
	}
	idx.cfg.Logger.Debug("consolidate step", "phase", phase, "visited", visited, "done", done)
	return report, nil
}

func (idx *Index) newCursor(phase ConsolidationPhase) *consolidationCursor {
	cur := &consolidationCursor{phase: phase}
	if phase == PhaseFull {
		cur.stage = stageRebuildPoints
		cur.rebuildPoints = idx.gatherPointsForRebuild()
		cur.rebuildState = newRebuildState(idx.dim)
		return cur
	}
	cur.stage = stageRecompute
	cur.recomputeQueue = idx.bottomUpContainerIDs(idx.arena)
	return cur
}

// stepIncremental drives Light/Medium/Deep through their shared
// recompute stage and, for Medium and Deep, the split/merge and prune
// stages that follow it.
func (idx *Index) stepIncremental(cur *consolidationCursor, budget int) int {
	visited := 0
loop:
	for visited < budget {
		switch cur.stage {
		case stageRecompute:
			if len(cur.recomputeQueue) == 0 {
				if cur.phase == PhaseLight {
					cur.stage = stageDone
					continue loop
				}
				cur.spliceQueue = idx.sortedIDsByLevel(idx.arena, LevelDocument)
				cur.stage = stageSplitMerge
				continue loop
			}
			id := cur.recomputeQueue[0]
			cur.recomputeQueue = cur.recomputeQueue[1:]
			idx.recomputeContainer(idx.arena, id)
			visited++
		case stageSplitMerge:
			if len(cur.spliceQueue) == 0 {
				if cur.phase == PhaseMedium {
					cur.stage = stageDone
					continue loop
				}
				cur.pruneQueue = idx.allContainerIDsExceptGlobal(idx.arena)
				cur.stage = stagePrune
				continue loop
			}
			docID := cur.spliceQueue[0]
			cur.spliceQueue = cur.spliceQueue[1:]
			idx.evaluateSplitMerge(docID)
			visited++
		case stagePrune:
			if len(cur.pruneQueue) == 0 {
				cur.stage = stageDone
				continue loop
			}
			id := cur.pruneQueue[0]
			cur.pruneQueue = cur.pruneQueue[1:]
			idx.pruneIfEmpty(id)
			visited++
		case stageDone:
			break loop
		}
	}
	return visited
}

// bottomUpContainerIDs returns every container id in a's arena ordered
// chunks, then documents, then sessions, then global last, the order
// Light recompute requires so a parent's recomputeFromChildren always
// reads already-exact child centroids.
func (idx *Index) bottomUpContainerIDs(arena map[uint64]*Container) []uint64 {
	chunks := idx.sortedIDsByLevel(arena, LevelChunk)
	docs := idx.sortedIDsByLevel(arena, LevelDocument)
	sessions := idx.sortedIDsByLevel(arena, LevelSession)
	out := make([]uint64, 0, len(chunks)+len(docs)+len(sessions)+1)
	out = append(out, chunks...)
	out = append(out, docs...)
	out = append(out, sessions...)
	out = append(out, globalContainerID)
	return out
}

func (idx *Index) sortedIDsByLevel(arena map[uint64]*Container, level Level) []uint64 {
	var ids []uint64
	for id, c := range arena {
		if c.Level == level {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// allContainerIDsExceptGlobal returns every non-global container id,
// deepest level first (chunks, then documents, then sessions) and by
// ascending id within a level, so the prune sweep removes an empty child
// before its parent and never leaves an emptied child behind an already
// deleted parent.
func (idx *Index) allContainerIDsExceptGlobal(arena map[uint64]*Container) []uint64 {
	var ids []uint64
	for id := range arena {
		if id != globalContainerID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		li, lj := arena[ids[i]].Level, arena[ids[j]].Level
		if li != lj {
			return li > lj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// recomputeContainer restores exact centroid equality for one container,
// per the Light phase's contract.
func (idx *Index) recomputeContainer(arena map[uint64]*Container, id uint64) {
	c, ok := arena[id]
	if !ok {
		return
	}
	if c.Level == LevelChunk {
		c.recomputeFromPoints(idx.dim)
		return
	}
	children := make([]*Container, 0, len(c.Children))
	for _, cid := range c.Children {
		if ch, ok := arena[cid]; ok {
			children = append(children, ch)
		}
	}
	c.recomputeFromChildren(children, idx.dim)
}

// evaluateSplitMerge applies the Medium-phase structural policy to one
// document: split it if its chunks exceed MaxDocChunks and cluster into
// two well-separated groups, or merge it into a similar sibling.
// Centroids of documents this pass structurally changes are recomputed
// from scratch, per §4.6's split/merge contract.
func (idx *Index) evaluateSplitMerge(docID uint64) {
	doc, ok := idx.arena[docID]
	if !ok || doc.Level != LevelDocument {
		return
	}
	if len(doc.Children) > idx.cfg.MaxDocChunks {
		idx.trySplitDocument(doc)
		return
	}
	idx.tryMergeDocument(doc)
}

// trySplitDocument runs k=2 clustering over doc's chunk centroids. If the
// resulting clusters are well separated, doc is replaced by two sibling
// documents under the same session. The tie policy sends the chunk with
// the lower id to the first child document; the active-document pointer
// follows whichever new document still contains the previously active
// chunk.
func (idx *Index) trySplitDocument(doc *Container) {
	chunkIDs := append([]uint64(nil), doc.Children...)
	sort.Slice(chunkIDs, func(i, j int) bool { return chunkIDs[i] < chunkIDs[j] })
	centroids := make([][]float32, len(chunkIDs))
	for i, id := range chunkIDs {
		centroids[i] = idx.arena[id].Centroid
	}
	assign := kMeans2(centroids, idx.dim, idx.cfg.RandSource)
	if len(assign) > 0 && assign[0] == 1 {
		for i := range assign {
			assign[i] = 1 - assign[i]
		}
	}

	c0, c1 := zeroVec(idx.dim), zeroVec(idx.dim)
	var n0, n1 int
	for i, a := range assign {
		if a == 0 {
			addInto(c0, centroids[i])
			n0++
		} else {
			addInto(c1, centroids[i])
			n1++
		}
	}
	if n0 > 0 {
		scaleInto(c0, c0, 1.0/float64(n0))
	}
	if n1 > 0 {
		scaleInto(c1, c1, 1.0/float64(n1))
	}
	if n0 == 0 || n1 == 0 || !separated(c0, c1) {
		return
	}

	var oldTail uint64
	if len(doc.Children) > 0 {
		oldTail = doc.Children[len(doc.Children)-1]
	}
	wasActive := idx.activeDocumentID == doc.ID

	now := doc.CreatedAt
	left := newContainer(idx.allocContainerID(), LevelDocument, doc.ParentID, idx.dim, now)
	right := newContainer(idx.allocContainerID(), LevelDocument, doc.ParentID, idx.dim, now)
	idx.arena[left.ID] = left
	idx.arena[right.ID] = right
	for i, id := range chunkIDs {
		chunk := idx.arena[id]
		if assign[i] == 0 {
			chunk.ParentID = left.ID
			left.Children = append(left.Children, id)
			left.Count += chunk.Count
		} else {
			chunk.ParentID = right.ID
			right.Children = append(right.Children, id)
			right.Count += chunk.Count
		}
	}
	idx.recomputeContainer(idx.arena, left.ID)
	idx.recomputeContainer(idx.arena, right.ID)

	sess := idx.arena[doc.ParentID]
	sess.Children = replaceChild(sess.Children, doc.ID, left.ID, right.ID)
	delete(idx.arena, doc.ID)

	if wasActive {
		switch {
		case containsID(left.Children, oldTail):
			idx.activeDocumentID = left.ID
		case containsID(right.Children, oldTail):
			idx.activeDocumentID = right.ID
		default:
			idx.activeDocumentID = 0
		}
	}
}

// activeChunkContainer returns the tail chunk id of the currently active
// document, or 0 if there is none.
func (idx *Index) activeChunkContainer() uint64 {
	if idx.activeDocumentID == 0 {
		return 0
	}
	doc, ok := idx.arena[idx.activeDocumentID]
	if !ok || len(doc.Children) == 0 {
		return 0
	}
	return doc.Children[len(doc.Children)-1]
}

// tryMergeDocument merges doc into a sibling document (under the same
// session) whose centroid is within mergeSimilarityThreshold, choosing
// the lowest-id qualifying sibling for determinism.
func (idx *Index) tryMergeDocument(doc *Container) {
	sess, ok := idx.arena[doc.ParentID]
	if !ok {
		return
	}
	var bestID uint64
	for _, sibID := range sess.Children {
		if sibID == doc.ID {
			continue
		}
		sib := idx.arena[sibID]
		if sib.Level != LevelDocument {
			continue
		}
		na, nb := norm(doc.Centroid), norm(sib.Centroid)
		if na == 0 || nb == 0 {
			continue
		}
		cos := dotProduct(doc.Centroid, sib.Centroid) / (na * nb)
		if cos >= mergeSimilarityThreshold && (bestID == 0 || sibID < bestID) {
			bestID = sibID
		}
	}
	if bestID == 0 {
		return
	}
	sib := idx.arena[bestID]
	// Lower id keeps its identity; the higher-id document's chunks move
	// into it and it is retired, mirroring the split tie policy's
	// lower-id-first convention.
	survivor, retired := sib, doc
	if doc.ID < sib.ID {
		survivor, retired = doc, sib
	}
	for _, cid := range retired.Children {
		chunk := idx.arena[cid]
		chunk.ParentID = survivor.ID
		survivor.Children = append(survivor.Children, cid)
	}
	sort.Slice(survivor.Children, func(i, j int) bool { return survivor.Children[i] < survivor.Children[j] })
	survivor.Count += retired.Count
	idx.recomputeContainer(idx.arena, survivor.ID)
	sess.Children = removeID(sess.Children, retired.ID)
	delete(idx.arena, retired.ID)
	if idx.activeDocumentID == retired.ID {
		idx.activeDocumentID = survivor.ID
	}
}

// pruneIfEmpty drops a zero-count container and re-packs its parent's
// child list, per the Deep phase's contract. Point ids and vectors are
// never touched by pruning.
func (idx *Index) pruneIfEmpty(id uint64) {
	c, ok := idx.arena[id]
	if !ok || c.Count != 0 {
		return
	}
	parent, ok := idx.arena[c.ParentID]
	if !ok {
		return
	}
	parent.Children = removeID(parent.Children, id)
	delete(idx.arena, id)
	if idx.activeDocumentID == id {
		idx.activeDocumentID = 0
	}
	if idx.activeSessionID == id {
		idx.activeSessionID = 0
		idx.activeDocumentID = 0
	}
}

func replaceChild(children []uint64, oldID uint64, newIDs ...uint64) []uint64 {
	out := make([]uint64, 0, len(children)+len(newIDs))
	for _, id := range children {
		if id == oldID {
			out = append(out, newIDs...)
			continue
		}
		out = append(out, id)
	}
	return out
}

func removeID(ids []uint64, target uint64) []uint64 {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func containsID(ids []uint64, target uint64) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
