package hat

import "sort"

// scored pairs a container or point id with its similarity score. It is
// the common currency of beam search, the container-scoped Near* queries,
// and top-k selection: descending score, ties broken by ascending id.
type scored struct {
	id    uint64
	score float64
}

// topBScored sorts items by descending score (ties ascending id) and
// truncates to at most b entries.
func topBScored(items []scored, b int) []scored {
	sort.Slice(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].id < items[j].id
	})
	if b >= 0 && b < len(items) {
		items = items[:b]
	}
	return items
}

// beamSearch implements the top-down beam search of §4.5: descend
// Session, Document, Chunk keeping the top-BeamWidth candidates per
// level, then rank every point in the surviving chunks and return the
// top-k. Caller must hold at least a read lock.
func (idx *Index) beamSearch(query []float32, k int) []SearchResult {
	beam := []uint64{globalContainerID}
	for level := 0; level < 3; level++ { // Session, Document, Chunk
		var candidates []scored
		for _, cid := range beam {
			c, ok := idx.arena[cid]
			if !ok {
				continue
			}
			for _, childID := range c.Children {
				child, ok := idx.arena[childID]
				if !ok {
					continue
				}
				candidates = append(candidates, scored{id: childID, score: idx.metric.score(query, child.Centroid)})
			}
		}
		if len(candidates) == 0 {
			return []SearchResult{}
		}
		top := topBScored(candidates, idx.cfg.BeamWidth)
		beam = make([]uint64, len(top))
		for i, t := range top {
			beam[i] = t.id
		}
	}

	var points []scored
	for _, cid := range beam {
		chunk, ok := idx.arena[cid]
		if !ok {
			continue
		}
		for _, p := range chunk.Points {
			points = append(points, scored{id: p.ID, score: idx.metric.score(query, p.Vector)})
		}
	}
	top := topBScored(points, k)
	out := make([]SearchResult, len(top))
	for i, t := range top {
		out[i] = SearchResult{ID: t.id, Score: t.score}
	}
	return out
}
