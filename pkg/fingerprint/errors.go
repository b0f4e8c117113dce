package fingerprint

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDigest is returned when parsing a malformed hex digest.
	ErrInvalidDigest = errors.New("digest must be a 64 chars hex string")
	// ErrTruncated is returned when the source ends before its declared size.
	ErrTruncated = errors.New("source truncated")
	// ErrNilReader ...
	ErrNilReader = errors.New("missing source reader")
)

// ReadError is returned when the source of a fingerprint could not be fully
// consumed.
type ReadError struct {
	// Read is the number of bytes consumed before the failure.
	Read int64
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read source after %d bytes: %s", e.Read, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
