package change

import (
	"fmt"
	"strings"
)

// ListReason is the kind of an index-ordered change.
type ListReason int

const (
	ListAdd ListReason = iota
	ListAddRange
	ListReplace
	ListRemove
	ListRemoveRange
	ListRefresh
	ListMoved
	ListClear
)

func (r ListReason) String() string {
	switch r {
	case ListAdd:
		return "Add"
	case ListAddRange:
		return "AddRange"
	case ListReplace:
		return "Replace"
	case ListRemove:
		return "Remove"
	case ListRemoveRange:
		return "RemoveRange"
	case ListRefresh:
		return "Refresh"
	case ListMoved:
		return "Moved"
	case ListClear:
		return "Clear"
	default:
		return fmt.Sprintf("ListReason(%d)", int(r))
	}
}

// IsRange reports whether changes of this reason carry a Range rather than an Item.
func (r ListReason) IsRange() bool {
	return r == ListAddRange || r == ListRemoveRange || r == ListClear
}

// ItemChange is the payload of a single-item list change.
type ItemChange[T any] struct {
	Current       T
	Previous      Optional[T]
	CurrentIndex  int
	PreviousIndex int
}

// RangeChange is the payload of a range list change: the contiguous items starting at Index.
type RangeChange[T any] struct {
	Items []T
	Index int
}

// ListChange is a single index-ordered mutation.
type ListChange[T any] struct {
	Reason ListReason
	Item   ItemChange[T]
	Range  RangeChange[T]
}

// NewListAdd inserts item at index.
func NewListAdd[T any](item T, index int) ListChange[T] {
	return ListChange[T]{Reason: ListAdd, Item: ItemChange[T]{Current: item, CurrentIndex: index, PreviousIndex: -1}}
}

// NewListAddRange inserts items starting at index.
func NewListAddRange[T any](items []T, index int) ListChange[T] {
	return ListChange[T]{Reason: ListAddRange, Range: RangeChange[T]{Items: items, Index: index}}
}

// NewListRemove deletes item at index.
func NewListRemove[T any](item T, index int) ListChange[T] {
	return ListChange[T]{Reason: ListRemove, Item: ItemChange[T]{Current: item, CurrentIndex: index, PreviousIndex: -1}}
}

// NewListRemoveRange deletes the contiguous items starting at index.
func NewListRemoveRange[T any](items []T, index int) ListChange[T] {
	return ListChange[T]{Reason: ListRemoveRange, Range: RangeChange[T]{Items: items, Index: index}}
}

// NewListReplace replaces previous with item at index.
func NewListReplace[T any](item, previous T, index int) ListChange[T] {
	return ListChange[T]{Reason: ListReplace, Item: ItemChange[T]{Current: item, Previous: Some(previous),
		CurrentIndex: index, PreviousIndex: index}}
}

// NewListRefresh signals an in-place mutation of the item at index.
func NewListRefresh[T any](item T, index int) ListChange[T] {
	return ListChange[T]{Reason: ListRefresh, Item: ItemChange[T]{Current: item, CurrentIndex: index, PreviousIndex: -1}}
}

// NewListMoved moves item from previousIndex to currentIndex.
func NewListMoved[T any](item T, currentIndex, previousIndex int) ListChange[T] {
	return ListChange[T]{Reason: ListMoved, Item: ItemChange[T]{Current: item,
		CurrentIndex: currentIndex, PreviousIndex: previousIndex}}
}

// NewListClear drops all items.
func NewListClear[T any](items []T) ListChange[T] {
	return ListChange[T]{Reason: ListClear, Range: RangeChange[T]{Items: items, Index: 0}}
}

// ItemCount returns the number of items touched by the change.
func (c ListChange[T]) ItemCount() int {
	if c.Reason.IsRange() {
		return len(c.Range.Items)
	}
	return 1
}

// String implements fmt.Stringer.
func (c ListChange[T]) String() string {
	switch c.Reason {
	case ListAddRange, ListRemoveRange, ListClear:
		return fmt.Sprintf("%s(%v@%d)", c.Reason, c.Range.Items, c.Range.Index)
	case ListMoved:
		return fmt.Sprintf("%s(%v: %d -> %d)", c.Reason, c.Item.Current, c.Item.PreviousIndex, c.Item.CurrentIndex)
	case ListReplace:
		return fmt.Sprintf("%s(%v -> %v@%d)", c.Reason, c.Item.Previous.Value(), c.Item.Current, c.Item.CurrentIndex)
	default:
		return fmt.Sprintf("%s(%v@%d)", c.Reason, c.Item.Current, c.Item.CurrentIndex)
	}
}

// ListChangeSet is one batch of index-ordered changes.
type ListChangeSet[T any] []ListChange[T]

// Len returns the number of changes.
func (cs ListChangeSet[T]) Len() int { return len(cs) }

// Adds returns the number of added items, counting every item of a range.
func (cs ListChangeSet[T]) Adds() int {
	n := 0
	for _, c := range cs {
		if c.Reason == ListAdd || c.Reason == ListAddRange {
			n += c.ItemCount()
		}
	}
	return n
}

// Removes returns the number of removed items, counting every item of a range or clear.
func (cs ListChangeSet[T]) Removes() int {
	n := 0
	for _, c := range cs {
		if c.Reason == ListRemove || c.Reason == ListRemoveRange || c.Reason == ListClear {
			n += c.ItemCount()
		}
	}
	return n
}

// Replaced returns the number of Replace changes.
func (cs ListChangeSet[T]) Replaced() int { return cs.count(ListReplace) }

// Refreshes returns the number of Refresh changes.
func (cs ListChangeSet[T]) Refreshes() int { return cs.count(ListRefresh) }

// Moves returns the number of Moved changes.
func (cs ListChangeSet[T]) Moves() int { return cs.count(ListMoved) }

func (cs ListChangeSet[T]) count(r ListReason) int {
	n := 0
	for _, c := range cs {
		if c.Reason == r {
			n++
		}
	}
	return n
}

// String implements fmt.Stringer.
func (cs ListChangeSet[T]) String() string {
	if len(cs) == 0 {
		return "∅"
	}
	parts := make([]string, len(cs))
	for i := range cs {
		parts[i] = cs[i].String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
