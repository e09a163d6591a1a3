package hat

import "sort"

// pointBoundary pairs a point with the ids of the session and document it
// currently belongs to, so a full rebuild can detect where those
// boundaries fall without any extra bookkeeping in the wire format.
type pointBoundary struct {
	point        Point
	oldSessionID uint64
	oldDocID     uint64
}

// rebuildState accumulates a freshly reconstructed tree while a Full
// consolidation redistributes points in point-id order. It mirrors the
// live Index's arena/pointLocation pair but is built up incrementally,
// one point per budget unit, then swapped in once complete.
type rebuildState struct {
	dim    int
	arena  map[uint64]*Container
	nextID uint64

	pointLocation map[uint64]uint64

	haveAny         bool
	curOldSessionID uint64
	curOldDocID     uint64
	curSessionID    uint64
	curDocID        uint64
}

func newRebuildState(dim int) *rebuildState {
	rs := &rebuildState{
		dim:           dim,
		arena:         make(map[uint64]*Container),
		nextID:        1,
		pointLocation: make(map[uint64]uint64),
	}
	rs.arena[globalContainerID] = newContainer(globalContainerID, LevelGlobal, 0, dim, 0)
	return rs
}

func (rs *rebuildState) allocID() uint64 {
	id := rs.nextID
	rs.nextID++
	return id
}

// gatherPointsForRebuild reads every point currently in the tree along
// with its structural ancestry, sorted by point id (insertion order),
// so a Full rebuild reconstructs session/document boundaries exactly as
// they stand today without touching the wire format.
func (idx *Index) gatherPointsForRebuild() []pointBoundary {
	var out []pointBoundary
	for _, c := range idx.arena {
		if c.Level != LevelChunk {
			continue
		}
		doc, ok := idx.arena[c.ParentID]
		if !ok {
			continue
		}
		sess, ok := idx.arena[doc.ParentID]
		if !ok {
			continue
		}
		for _, p := range c.Points {
			out = append(out, pointBoundary{point: p, oldSessionID: sess.ID, oldDocID: doc.ID})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].point.ID < out[j].point.ID })
	return out
}

// stepFull drives the Full consolidation phase: first redistributing
// points into a freshly built tree (one point per budget unit), then
// recomputing centroids bottom-up over that new tree, then swapping it
// in as the live arena. Container ids are reassigned canonically
// (Global stays 0; everything else numbered in the order first
// encountered) so that two Full rebuilds with no intervening Adds
// produce an identical tree.
func (idx *Index) stepFull(cur *consolidationCursor, budget int) int {
	visited := 0
loop:
	for visited < budget {
		switch cur.stage {
		case stageRebuildPoints:
			if len(cur.rebuildPoints) == 0 {
				cur.recomputeQueue = idx.bottomUpContainerIDs(cur.rebuildState.arena)
				cur.stage = stageRebuildRecompute
				continue loop
			}
			pb := cur.rebuildPoints[0]
			cur.rebuildPoints = cur.rebuildPoints[1:]
			idx.rebuildAbsorb(cur.rebuildState, pb)
			visited++
		case stageRebuildRecompute:
			if len(cur.recomputeQueue) == 0 {
				idx.finishRebuild(cur.rebuildState)
				cur.stage = stageDone
				continue loop
			}
			id := cur.recomputeQueue[0]
			cur.recomputeQueue = cur.recomputeQueue[1:]
			idx.recomputeContainer(cur.rebuildState.arena, id)
			visited++
		case stageDone:
			break loop
		}
	}
	return visited
}

// rebuildAbsorb places one point into the staging tree, opening a new
// session and/or document whenever the point's recorded ancestry
// differs from the previous point's.
func (idx *Index) rebuildAbsorb(rs *rebuildState, pb pointBoundary) {
	global := rs.arena[globalContainerID]

	newSession := !rs.haveAny || pb.oldSessionID != rs.curOldSessionID
	if newSession {
		id := rs.allocID()
		sess := newContainer(id, LevelSession, globalContainerID, rs.dim, pb.point.Timestamp)
		rs.arena[id] = sess
		global.Children = append(global.Children, id)
		rs.curSessionID = id
		rs.curOldSessionID = pb.oldSessionID
		rs.curOldDocID = 0
		rs.haveAny = true
	}

	newDoc := newSession || pb.oldDocID != rs.curOldDocID
	if newDoc {
		id := rs.allocID()
		doc := newContainer(id, LevelDocument, rs.curSessionID, rs.dim, pb.point.Timestamp)
		rs.arena[id] = doc
		sess := rs.arena[rs.curSessionID]
		sess.Children = append(sess.Children, id)
		rs.curDocID = id
		rs.curOldDocID = pb.oldDocID
	}

	doc := rs.arena[rs.curDocID]
	var chunk *Container
	if len(doc.Children) > 0 {
		last := rs.arena[doc.Children[len(doc.Children)-1]]
		if int(last.Count) < idx.cfg.MaxChunkPoints {
			chunk = last
		}
	}
	if chunk == nil {
		id := rs.allocID()
		chunk = newContainer(id, LevelChunk, doc.ID, rs.dim, pb.point.Timestamp)
		rs.arena[id] = chunk
		doc.Children = append(doc.Children, id)
	}

	chunk.Points = append(chunk.Points, pb.point)
	chunk.Count++
	doc.Count++
	rs.arena[doc.ParentID].Count++ // session
	global.Count++
	rs.pointLocation[pb.point.ID] = chunk.ID
}

// finishRebuild swaps the staging tree in as the index's live arena and
// relocates the active session/document pointers to whichever new
// containers now hold the point that used to be their tail.
func (idx *Index) finishRebuild(rs *rebuildState) {
	oldActiveChunk := idx.activeChunkContainer()
	var anchorPoint uint64
	var haveAnchor bool
	if c, ok := idx.arena[oldActiveChunk]; ok && len(c.Points) > 0 {
		anchorPoint = c.Points[len(c.Points)-1].ID
		haveAnchor = true
	}

	idx.arena = rs.arena
	idx.pointLocation = rs.pointLocation
	idx.nextContainerID = rs.nextID

	idx.activeSessionID = 0
	idx.activeDocumentID = 0
	if haveAnchor {
		if chunkID, ok := idx.pointLocation[anchorPoint]; ok {
			if chunk, ok := idx.arena[chunkID]; ok {
				idx.activeDocumentID = chunk.ParentID
				if doc, ok := idx.arena[chunk.ParentID]; ok {
					idx.activeSessionID = doc.ParentID
				}
			}
		}
	}
}
