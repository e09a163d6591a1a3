package hat

// Level identifies which of the four tree levels a container occupies.
type Level uint8

const (
	LevelGlobal Level = iota
	LevelSession
	LevelDocument
	LevelChunk
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case LevelGlobal:
		return "global"
	case LevelSession:
		return "session"
	case LevelDocument:
		return "document"
	case LevelChunk:
		return "chunk"
	default:
		return "unknown"
	}
}

// globalContainerID is the fixed id of the single Global container.
const globalContainerID uint64 = 0

// Point is a leaf vector. Points are never mutated after Add; they are
// destroyed only by Remove or by a Full consolidation that drops orphans.
type Point struct {
	ID        uint64
	Vector    []float32
	Timestamp int64
	// Payload is an opaque, implementation-defined blob reserved for
	// pre-computed attention key/value caches. The core never interprets
	// it; it round-trips through persistence unchanged.
	Payload []byte
}

// Container is a tagged node representing one of the four tree levels. It
// holds a centroid, ordered child references (Global/Session/Document),
// or leaf points (Chunk), plus bookkeeping. Containers are addressed by
// stable ids through the Index's arena; a Container never holds a Go
// pointer to its parent, only the parent's id (see the "Arena" entry in
// SPEC_FULL.md's glossary).
type Container struct {
	ID        uint64
	Level     Level
	ParentID  uint64
	Centroid  []float32
	Count     uint64
	CreatedAt int64

	// Children holds child container ids in creation order for Global,
	// Session, and Document containers. Unused (nil) for Chunk.
	Children []uint64

	// Points holds leaf points in append order for Chunk containers.
	// Unused (nil) for all other levels.
	Points []Point
}

func newContainer(id uint64, level Level, parentID uint64, dim int, createdAt int64) *Container {
	c := &Container{
		ID:        id,
		Level:     level,
		ParentID:  parentID,
		Centroid:  zeroVec(dim),
		CreatedAt: createdAt,
	}
	if level == LevelChunk {
		c.Points = make([]Point, 0, 8)
	} else {
		c.Children = make([]uint64, 0, 4)
	}
	return c
}

// pointIndex returns the slice index of the point with the given id
// within this chunk, or -1 if absent.
func (c *Container) pointIndex(id uint64) int {
	for i := range c.Points {
		if c.Points[i].ID == id {
			return i
		}
	}
	return -1
}

// recomputeFromPoints sets Centroid to the exact arithmetic mean of the
// chunk's current points. Used by Remove and by the consolidation
// recompute stages; Add updates the chunk centroid incrementally with
// meanUpdate instead.
func (c *Container) recomputeFromPoints(dim int) {
	centroid := zeroVec(dim)
	if len(c.Points) == 0 {
		c.Centroid = centroid
		return
	}
	for _, p := range c.Points {
		for i, x := range p.Vector {
			centroid[i] += x
		}
	}
	inv := float32(1.0 / float64(len(c.Points)))
	for i := range centroid {
		centroid[i] *= inv
	}
	c.Centroid = centroid
}

// recomputeFromChildren sets Centroid to the count-weighted mean of the
// given child containers' centroids. Used by the Light consolidation
// phase for Session/Document/Global containers.
func (c *Container) recomputeFromChildren(children []*Container, dim int) {
	centroid := zeroVec(dim)
	var total uint64
	for _, ch := range children {
		if ch.Count == 0 {
			continue
		}
		w := float64(ch.Count)
		for i, x := range ch.Centroid {
			centroid[i] += float32(float64(x) * w)
		}
		total += ch.Count
	}
	if total == 0 {
		c.Centroid = centroid
		return
	}
	inv := float32(1.0 / float64(total))
	for i := range centroid {
		centroid[i] *= inv
	}
	c.Centroid = centroid
}
