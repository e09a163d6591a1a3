// Package store defines the on-disk header and the read-only memory-mapped
// file access shared by the core persistence codec and the benchmark
// harness.
// Adapted from github.com/ic-timon/da-hvri's indexer/store package.
package store

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	// Magic identifies a valid HAT index stream.
	Magic = "HAT1"
	// EndMarker closes a valid HAT index stream.
	EndMarker = "ENDX"

	// FormatVersion1 is the vector-only wire shape.
	FormatVersion1 uint32 = 1
	// FormatVersion2 additionally carries a length-prefixed payload after
	// each point's vector. Writers always emit FormatVersion2; readers
	// accept both.
	FormatVersion2 uint32 = 2

	// CurrentFormatVersion is written by Save.
	CurrentFormatVersion = FormatVersion2
)

// Header is the fixed-size preamble of a HAT stream, encoding scalar tree
// metadata that precedes the variable-length container list.
type Header struct {
	Magic            [4]byte
	FormatVersion    uint32
	Dimensionality   uint32
	MetricTag        uint8
	NextPointID      uint64
	ActiveSessionID  uint64
	ActiveDocumentID uint64
	ContainerCount   uint64
}

// EncodeHeader writes h to w. Magic is stamped automatically.
func EncodeHeader(w io.Writer, h *Header) error {
	copy(h.Magic[:], Magic)
	return binary.Write(w, binary.LittleEndian, h)
}

// DecodeHeader reads a Header from r, validating magic and version.
func DecodeHeader(r io.Reader) (*Header, error) {
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	if string(h.Magic[:]) != Magic {
		return nil, errBadMagic
	}
	if h.FormatVersion != FormatVersion1 && h.FormatVersion != FormatVersion2 {
		return nil, errUnsupportedVersion
	}
	return &h, nil
}

// These sentinels are re-exported by package hat as ErrBadMagic and
// ErrUnsupportedVersion; kept unexported here to avoid a dependency cycle
// between hat and hat/store.
var (
	errBadMagic           = errors.New("store: bad magic")
	errUnsupportedVersion = errors.New("store: unsupported format version")
)

// IsBadMagic reports whether err is store's bad-magic sentinel.
func IsBadMagic(err error) bool { return errors.Is(err, errBadMagic) }

// IsUnsupportedVersion reports whether err is store's unsupported-version
// sentinel.
func IsUnsupportedVersion(err error) bool { return errors.Is(err, errUnsupportedVersion) }
