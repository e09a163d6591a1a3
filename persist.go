package hat

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/ic-timon/hat/store"
)

// Save writes the index to w in the "HAT1"/"ENDX" wire format of §6.2:
// header, containers in ascending id order (for round-trip canonicity),
// end marker. Save takes a read lock; concurrent Add/Remove calls block
// until it completes.
func (idx *Index) Save(w io.Writer) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ids := make([]uint64, 0, len(idx.arena))
	for id := range idx.arena {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	h := &store.Header{
		FormatVersion:    store.CurrentFormatVersion,
		Dimensionality:   uint32(idx.dim),
		MetricTag:        uint8(idx.metric),
		NextPointID:      idx.nextPointID,
		ActiveSessionID:  idx.activeSessionID,
		ActiveDocumentID: idx.activeDocumentID,
		ContainerCount:   uint64(len(ids)),
	}
	if err := store.EncodeHeader(w, h); err != nil {
		return wrapIO(err)
	}
	for _, id := range ids {
		if err := writeContainer(w, idx.arena[id]); err != nil {
			return wrapIO(err)
		}
	}
	if _, err := w.Write([]byte(store.EndMarker)); err != nil {
		return wrapIO(err)
	}
	idx.cfg.Logger.Info("index saved", "containers", len(ids), "points", len(idx.pointLocation))
	return nil
}

// Load reads an index previously written by Save. cfg may be nil to use
// DefaultConfig(); persisted state (dimensionality, metric, tree
// contents, active session/document, next point id) always wins over
// cfg, which only supplies runtime-only knobs (beam width, thresholds,
// logger, random source) that the wire format does not carry.
func Load(r io.Reader, cfg *Config) (*Index, error) {
	cfg = cfg.orDefault()

	h, err := store.DecodeHeader(r)
	if err != nil {
		switch {
		case store.IsBadMagic(err):
			return nil, ErrBadMagic
		case store.IsUnsupportedVersion(err):
			return nil, ErrUnsupportedVersion
		default:
			return nil, wrapIO(err)
		}
	}

	dim := int(h.Dimensionality)
	arena := make(map[uint64]*Container, h.ContainerCount)
	pointLocation := make(map[uint64]uint64)

	for i := uint64(0); i < h.ContainerCount; i++ {
		c, err := readContainer(r, dim, h.FormatVersion)
		if err != nil {
			return nil, &ErrCorrupt{Reason: "truncated container record: " + err.Error()}
		}
		if _, dup := arena[c.ID]; dup {
			return nil, &ErrCorrupt{Reason: "duplicate container id"}
		}
		arena[c.ID] = c
		for _, p := range c.Points {
			pointLocation[p.ID] = c.ID
		}
	}

	var end [4]byte
	if _, err := io.ReadFull(r, end[:]); err != nil {
		return nil, &ErrCorrupt{Reason: "missing end marker"}
	}
	if string(end[:]) != store.EndMarker {
		return nil, &ErrCorrupt{Reason: "invalid end marker"}
	}

	if err := validateStructure(arena); err != nil {
		cfg.Logger.Error("index load failed", "reason", err)
		return nil, err
	}

	idx := &Index{
		dim:              dim,
		metric:           Metric(h.MetricTag),
		cfg:              cfg,
		arena:            arena,
		pointLocation:    pointLocation,
		nextContainerID:  maxContainerID(arena) + 1,
		nextPointID:      h.NextPointID,
		activeSessionID:  h.ActiveSessionID,
		activeDocumentID: h.ActiveDocumentID,
	}
	cfg.Logger.Info("index loaded", "containers", len(arena), "points", len(pointLocation))
	return idx, nil
}

// validateStructure checks the load-time invariants spec.md §6.2 requires
// before trusting a deserialized tree: a single Global root, every
// non-global container's parent exists one level up, and no container is
// claimed as a child by more than one parent.
func validateStructure(arena map[uint64]*Container) error {
	global, ok := arena[globalContainerID]
	if !ok || global.Level != LevelGlobal {
		return &ErrCorrupt{Reason: "missing global container"}
	}
	claimedBy := make(map[uint64]uint64)
	for id, c := range arena {
		if id == globalContainerID {
			continue
		}
		parent, ok := arena[c.ParentID]
		if !ok {
			return &ErrCorrupt{Reason: "orphan container: parent does not exist"}
		}
		if int(parent.Level)+1 != int(c.Level) {
			return &ErrCorrupt{Reason: "container depth does not match parent level"}
		}
	}
	for id, c := range arena {
		for _, cid := range c.Children {
			if _, ok := claimedBy[cid]; ok {
				return &ErrCorrupt{Reason: "container claimed as a child by more than one parent"}
			}
			claimedBy[cid] = id
			child, ok := arena[cid]
			if !ok {
				return &ErrCorrupt{Reason: "child references a container that does not exist"}
			}
			if child.ParentID != id {
				return &ErrCorrupt{Reason: "child/parent back-reference mismatch"}
			}
		}
	}
	return nil
}

func maxContainerID(arena map[uint64]*Container) uint64 {
	var max uint64
	for id := range arena {
		if id > max {
			max = id
		}
	}
	return max
}

// writeContainer encodes one container record: id, level, parent_id,
// count, created_at, centroid, children, and (for chunks only) points.
func writeContainer(w io.Writer, c *Container) error {
	fixed := struct {
		ID        uint64
		Level     uint8
		ParentID  uint64
		Count     uint64
		CreatedAt uint64
	}{c.ID, uint8(c.Level), c.ParentID, c.Count, uint64(c.CreatedAt)}
	if err := binary.Write(w, binary.LittleEndian, fixed); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, c.Centroid); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(c.Children))); err != nil {
		return err
	}
	if len(c.Children) > 0 {
		if err := binary.Write(w, binary.LittleEndian, c.Children); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(c.Points))); err != nil {
		return err
	}
	for _, p := range c.Points {
		if err := binary.Write(w, binary.LittleEndian, p.ID); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, p.Vector); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(p.Payload))); err != nil {
			return err
		}
		if len(p.Payload) > 0 {
			if _, err := w.Write(p.Payload); err != nil {
				return err
			}
		}
	}
	return nil
}

// readContainer decodes one container record written by writeContainer.
// formatVersion 1 records carry no payload bytes after each point vector.
func readContainer(r io.Reader, dim int, formatVersion uint32) (*Container, error) {
	var fixed struct {
		ID        uint64
		Level     uint8
		ParentID  uint64
		Count     uint64
		CreatedAt uint64
	}
	if err := binary.Read(r, binary.LittleEndian, &fixed); err != nil {
		return nil, err
	}
	centroid := make([]float32, dim)
	if err := binary.Read(r, binary.LittleEndian, centroid); err != nil {
		return nil, err
	}

	var childCount uint32
	if err := binary.Read(r, binary.LittleEndian, &childCount); err != nil {
		return nil, err
	}
	var children []uint64
	if childCount > 0 {
		children = make([]uint64, childCount)
		if err := binary.Read(r, binary.LittleEndian, children); err != nil {
			return nil, err
		}
	}

	var pointCount uint32
	if err := binary.Read(r, binary.LittleEndian, &pointCount); err != nil {
		return nil, err
	}
	var points []Point
	if pointCount > 0 {
		points = make([]Point, pointCount)
		for i := range points {
			if err := binary.Read(r, binary.LittleEndian, &points[i].ID); err != nil {
				return nil, err
			}
			points[i].Vector = make([]float32, dim)
			if err := binary.Read(r, binary.LittleEndian, points[i].Vector); err != nil {
				return nil, err
			}
			if formatVersion >= store.FormatVersion2 {
				var payloadLen uint32
				if err := binary.Read(r, binary.LittleEndian, &payloadLen); err != nil {
					return nil, err
				}
				if payloadLen > 0 {
					points[i].Payload = make([]byte, payloadLen)
					if _, err := io.ReadFull(r, points[i].Payload); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	return &Container{
		ID:        fixed.ID,
		Level:     Level(fixed.Level),
		ParentID:  fixed.ParentID,
		Centroid:  centroid,
		Count:     fixed.Count,
		CreatedAt: int64(fixed.CreatedAt),
		Children:  children,
		Points:    points,
	}, nil
}
