package cache

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidArgument marks usage errors detected at construction or call time.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDisposed is reported when a disposed cache is edited.
	ErrDisposed = errors.New("cache disposed")
)

// NewInvalidArgumentError returns an error wrapping ErrInvalidArgument.
func NewInvalidArgumentError(arg, reason string) error {
	return errors.Wrapf(ErrInvalidArgument, "%s %s", arg, reason)
}
