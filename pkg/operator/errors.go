package operator

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidArgument marks usage errors: nil callbacks, non-positive sizes.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnknownKey is raised when an upstream change refers to a key the stage never saw.
	ErrUnknownKey = errors.New("unknown key")
)

// NewInvalidArgumentError returns an error wrapping ErrInvalidArgument.
func NewInvalidArgumentError(arg, reason string) error {
	return errors.Wrapf(ErrInvalidArgument, "%s %s", arg, reason)
}

// NewUnknownKeyError returns an error wrapping ErrUnknownKey.
func NewUnknownKeyError(op string, key any) error {
	return errors.Wrapf(ErrUnknownKey, "%s: key %v", op, key)
}

func mustNotBeNil(arg string, isNil bool) {
	if isNil {
		panic(NewInvalidArgumentError(arg, "must not be nil"))
	}
}
