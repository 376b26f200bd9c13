package change

import "strings"

// ChangeSet is one batch of keyed changes, emitted atomically.
type ChangeSet[K comparable, V any] []Change[K, V]

// Len returns the number of changes.
func (cs ChangeSet[K, V]) Len() int { return len(cs) }

func (cs ChangeSet[K, V]) count(r Reason) int {
	n := 0
	for i := range cs {
		if cs[i].Reason == r {
			n++
		}
	}
	return n
}

// Adds returns the number of Add changes.
func (cs ChangeSet[K, V]) Adds() int { return cs.count(Add) }

// Updates returns the number of Update changes.
func (cs ChangeSet[K, V]) Updates() int { return cs.count(Update) }

// Removes returns the number of Remove changes.
func (cs ChangeSet[K, V]) Removes() int { return cs.count(Remove) }

// Refreshes returns the number of Refresh changes.
func (cs ChangeSet[K, V]) Refreshes() int { return cs.count(Refresh) }

// Moves returns the number of Moved changes.
func (cs ChangeSet[K, V]) Moves() int { return cs.count(Moved) }

// Keys returns the keys of the changes in emitted order.
func (cs ChangeSet[K, V]) Keys() []K {
	ret := make([]K, len(cs))
	for i := range cs {
		ret[i] = cs[i].Key
	}
	return ret
}

// String implements fmt.Stringer.
func (cs ChangeSet[K, V]) String() string {
	if len(cs) == 0 {
		return "∅"
	}
	parts := make([]string, len(cs))
	for i := range cs {
		parts[i] = cs[i].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// SortReason tells why a sorted change set was produced.
type SortReason int

const (
	SortInitialLoad     SortReason = iota // first batch after subscribe
	SortComparerChanged                   // a new comparer arrived
	SortDataChanged                       // upstream data changed
	SortReorder                           // an explicit resort was requested
)

func (r SortReason) String() string {
	switch r {
	case SortInitialLoad:
		return "InitialLoad"
	case SortComparerChanged:
		return "ComparerChanged"
	case SortDataChanged:
		return "DataChanged"
	case SortReorder:
		return "Reorder"
	default:
		return "Unknown"
	}
}

// SortedChangeSet is a change set whose changes carry positions, together with the full sorted
// content after the batch. Indices are valid against the sequence as it was right before each
// change is applied: Add inserts at CurrentIndex, Remove deletes at CurrentIndex, Update and
// Moved delete at PreviousIndex and insert at CurrentIndex, Refresh stays at CurrentIndex.
type SortedChangeSet[K comparable, V any] struct {
	Changes     ChangeSet[K, V]
	SortedItems []KeyValue[K, V]
	Reason      SortReason
}

// Len returns the number of changes.
func (s SortedChangeSet[K, V]) Len() int { return len(s.Changes) }
