package store

import (
	"os"

	"github.com/edsrzf/mmap-go"
)

// MmapFile is a read-only memory-mapped view of a saved HAT stream, used
// by the benchmark harness to measure load latency without paying a full
// heap-copy read up front. Adapted from
// github.com/ic-timon/da-hvri's indexer/store/mmap_store.go.
type MmapFile struct {
	f    *os.File
	data mmap.MMap
}

// OpenMmap memory-maps path read-only.
func OpenMmap(path string) (*MmapFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &MmapFile{f: f, data: m}, nil
}

// Bytes returns the full mapped file contents.
func (m *MmapFile) Bytes() []byte {
	return m.data
}

// Close unmaps and closes the underlying file.
func (m *MmapFile) Close() error {
	if m.data != nil {
		if err := m.data.Unmap(); err != nil {
			return err
		}
		m.data = nil
	}
	if m.f != nil {
		err := m.f.Close()
		m.f = nil
		return err
	}
	return nil
}
