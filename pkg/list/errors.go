package list

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidArgument marks usage errors detected at construction or call time.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrIndexOutOfRange is returned by edits addressing a position outside the list.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrDisposed is returned by edits on a disposed list.
	ErrDisposed = errors.New("list disposed")
)

// NewInvalidArgumentError returns an error wrapping ErrInvalidArgument.
func NewInvalidArgumentError(arg, reason string) error {
	return errors.Wrapf(ErrInvalidArgument, "%s %s", arg, reason)
}

// NewIndexOutOfRangeError returns an error wrapping ErrIndexOutOfRange.
func NewIndexOutOfRangeError(op string, index, size int) error {
	return errors.Wrapf(ErrIndexOutOfRange, "%s: index %d, size %d", op, index, size)
}
