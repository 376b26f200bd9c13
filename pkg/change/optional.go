package change

import "fmt"

// Optional is an explicit presence wrapper. The zero value is None.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some wraps a present value.
func Some[T any](v T) Optional[T] { return Optional[T]{value: v, ok: true} }

// None returns an absent value.
func None[T any]() Optional[T] { return Optional[T]{} }

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) { return o.value, o.ok }

// HasValue reports whether a value is present.
func (o Optional[T]) HasValue() bool { return o.ok }

// Value returns the wrapped value, or the zero value of T when absent.
func (o Optional[T]) Value() T { return o.value }

// OrElse returns the wrapped value or def if absent.
func (o Optional[T]) OrElse(def T) T {
	if o.ok {
		return o.value
	}
	return def
}

// String implements fmt.Stringer.
func (o Optional[T]) String() string {
	if !o.ok {
		return "None"
	}
	return fmt.Sprintf("Some(%v)", o.value)
}
