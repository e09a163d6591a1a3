package hat

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when Consolidate is invoked while another
	// consolidation call is already in flight.
	ErrBusy = errors.New("hat: consolidation already running")
	// ErrNotFound is returned when a caller-supplied session or document
	// id names no existing container.
	ErrNotFound = errors.New("hat: container not found")
	// ErrBadMagic is returned when a persisted stream's header does not
	// start with the "HAT1" magic.
	ErrBadMagic = errors.New("hat: bad magic")
	// ErrUnsupportedVersion is returned when a persisted stream declares
	// a format_version this build does not know how to read.
	ErrUnsupportedVersion = errors.New("hat: unsupported format version")
)

// ErrDimensionMismatch indicates a vector or query whose length does not
// match the index's configured dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("hat: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrCorrupt indicates a structural failure while reconstructing a
// persisted tree: a truncated stream, an orphan container, a cycle, or a
// depth that does not match the four-level invariant.
type ErrCorrupt struct {
	Reason string
}

func (e *ErrCorrupt) Error() string {
	return fmt.Sprintf("hat: corrupt index: %s", e.Reason)
}

// ErrIO wraps an underlying I/O failure encountered while saving or
// loading a persisted stream.
type ErrIO struct {
	cause error
}

func (e *ErrIO) Error() string {
	return fmt.Sprintf("hat: io error: %v", e.cause)
}

func (e *ErrIO) Unwrap() error { return e.cause }

func wrapIO(err error) error {
	if err == nil {
		return nil
	}
	return &ErrIO{cause: err}
}
