package hnsw

import (
	"errors"
	"fmt"
)

// Sentinel errors for the error kinds named in the index's error-handling
// design. Callers should use errors.Is against these, since the returned
// error is usually wrapped with call-specific detail.
var (
	// ErrDimensionMismatch is returned by Insert or Search when the given
	// vector's length differs from the index's established dimension.
	// The call fails with index state unchanged.
	ErrDimensionMismatch = errors.New("hnsw: vector dimension mismatch")

	// ErrInvalidParameter is returned by New/LoadConfig when a
	// construction parameter is out of range (M < 2, ...), and by Search
	// when k < 0 or efSearch < 1.
	ErrInvalidParameter = errors.New("hnsw: invalid parameter")

	// ErrCorruptFormat is returned by Load/LoadFile when a blob fails
	// structural validation: bad magic/version, truncated sections, or a
	// violated graph invariant.
	ErrCorruptFormat = errors.New("hnsw: corrupt index format")
)

// wrapErr wraps a sentinel error with call-specific detail while keeping
// it matchable with errors.Is(err, sentinel).
func wrapErr(sentinel error, detail string) error {
	return fmt.Errorf("%w: %s", sentinel, detail)
}

func errInvalidParam(msg string) error {
	return wrapErr(ErrInvalidParameter, msg)
}
