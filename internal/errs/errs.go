// Package errs holds the error values shared by the storage layers.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrCorruptRecord    = errors.New("corrupt record")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrQueueClosed      = errors.New("queue is closed")
)

// IOError reports a failed disk operation on a path.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// NewIOError wraps err, or returns nil when err is nil.
func NewIOError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// Corrupt marks err as a decoding failure.
func Corrupt(err error) error {
	if err == nil {
		return ErrCorruptRecord
	}
	return fmt.Errorf("%w: %v", ErrCorruptRecord, err)
}

// IsIO reports whether err comes from a failed disk operation.
func IsIO(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}
