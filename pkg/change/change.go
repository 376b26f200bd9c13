package change

import "fmt"

// Reason is the kind of a keyed change.
type Reason int

const (
	Add     Reason = iota // a key appeared
	Update                // the value of an existing key was replaced
	Remove                // a key disappeared
	Refresh               // the value was mutated in place, identity unchanged
	Moved                 // the position of a key changed in a sorted view
)

func (r Reason) String() string {
	switch r {
	case Add:
		return "Add"
	case Update:
		return "Update"
	case Remove:
		return "Remove"
	case Refresh:
		return "Refresh"
	case Moved:
		return "Moved"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// KeyValue is a key paired with its value.
type KeyValue[K comparable, V any] struct {
	Key   K
	Value V
}

// Change is a single keyed mutation. Previous is present iff Reason is Update. CurrentIndex and
// PreviousIndex are -1 unless the change belongs to a sorted change set.
type Change[K comparable, V any] struct {
	Reason        Reason
	Key           K
	Current       V
	Previous      Optional[V]
	CurrentIndex  int
	PreviousIndex int
}

// NewAdd returns an Add change.
func NewAdd[K comparable, V any](key K, current V) Change[K, V] {
	return Change[K, V]{Reason: Add, Key: key, Current: current, CurrentIndex: -1, PreviousIndex: -1}
}

// NewUpdate returns an Update change carrying the replaced value.
func NewUpdate[K comparable, V any](key K, current, previous V) Change[K, V] {
	return Change[K, V]{Reason: Update, Key: key, Current: current, Previous: Some(previous),
		CurrentIndex: -1, PreviousIndex: -1}
}

// NewRemove returns a Remove change; current is the removed value.
func NewRemove[K comparable, V any](key K, current V) Change[K, V] {
	return Change[K, V]{Reason: Remove, Key: key, Current: current, CurrentIndex: -1, PreviousIndex: -1}
}

// NewRefresh returns a Refresh change.
func NewRefresh[K comparable, V any](key K, current V) Change[K, V] {
	return Change[K, V]{Reason: Refresh, Key: key, Current: current, CurrentIndex: -1, PreviousIndex: -1}
}

// NewMoved returns a Moved change for a sorted view.
func NewMoved[K comparable, V any](key K, current V, currentIndex, previousIndex int) Change[K, V] {
	return Change[K, V]{Reason: Moved, Key: key, Current: current,
		CurrentIndex: currentIndex, PreviousIndex: previousIndex}
}

// WithIndex returns a copy of the change with the given indices.
func (c Change[K, V]) WithIndex(currentIndex, previousIndex int) Change[K, V] {
	c.CurrentIndex = currentIndex
	c.PreviousIndex = previousIndex
	return c
}

// String implements fmt.Stringer.
func (c Change[K, V]) String() string {
	switch c.Reason {
	case Update:
		return fmt.Sprintf("%s(%v: %v -> %v)", c.Reason, c.Key, c.Previous.Value(), c.Current)
	case Moved:
		return fmt.Sprintf("%s(%v: %d -> %d)", c.Reason, c.Key, c.PreviousIndex, c.CurrentIndex)
	default:
		return fmt.Sprintf("%s(%v: %v)", c.Reason, c.Key, c.Current)
	}
}
