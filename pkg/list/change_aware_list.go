package list

import (
	"slices"

	"github.com/l7mp/dcollections/pkg/change"
)

// ChangeAwareList is a slice that records every mutation as a list change until the changes are
// captured. Contiguous inserts are coalesced into AddRange, contiguous removes into RemoveRange,
// and a remove that undoes an insert of the same batch cancels it.
type ChangeAwareList[T any] struct {
	items   []T
	changes change.ListChangeSet[T]
}

// NewChangeAwareList creates a list holding a copy of items; nothing is recorded for them.
func NewChangeAwareList[T any](items ...T) *ChangeAwareList[T] {
	return &ChangeAwareList[T]{items: slices.Clone(items)}
}

// Count returns the number of items.
func (l *ChangeAwareList[T]) Count() int { return len(l.items) }

// Items returns a copy of the items.
func (l *ChangeAwareList[T]) Items() []T { return slices.Clone(l.items) }

// At returns the item at index.
func (l *ChangeAwareList[T]) At(index int) (T, error) {
	if index < 0 || index >= len(l.items) {
		var zero T
		return zero, NewIndexOutOfRangeError("at", index, len(l.items))
	}
	return l.items[index], nil
}

// IndexFunc returns the index of the first item matching f, or -1.
func (l *ChangeAwareList[T]) IndexFunc(f func(T) bool) int { return slices.IndexFunc(l.items, f) }

// Add appends item.
func (l *ChangeAwareList[T]) Add(item T) {
	_ = l.Insert(len(l.items), item)
}

// AddRange appends items.
func (l *ChangeAwareList[T]) AddRange(items ...T) {
	_ = l.InsertRange(len(l.items), items...)
}

// Insert inserts item at index.
func (l *ChangeAwareList[T]) Insert(index int, item T) error {
	if index < 0 || index > len(l.items) {
		return NewIndexOutOfRangeError("insert", index, len(l.items))
	}
	l.items = slices.Insert(l.items, index, item)
	l.recordInsert(index, []T{item})
	return nil
}

// InsertRange inserts items starting at index.
func (l *ChangeAwareList[T]) InsertRange(index int, items ...T) error {
	if index < 0 || index > len(l.items) {
		return NewIndexOutOfRangeError("insert range", index, len(l.items))
	}
	if len(items) == 0 {
		return nil
	}
	l.items = slices.Insert(l.items, index, items...)
	l.recordInsert(index, slices.Clone(items))
	return nil
}

func (l *ChangeAwareList[T]) recordInsert(index int, items []T) {
	if n := len(l.changes); n > 0 {
		last := &l.changes[n-1]
		switch last.Reason {
		case change.ListAdd:
			if at := last.Item.CurrentIndex; index == at || index == at+1 {
				merged := []T{last.Item.Current}
				merged = slices.Insert(merged, index-at, items...)
				*last = change.NewListAddRange(merged, at)
				return
			}
		case change.ListAddRange:
			if at := last.Range.Index; index >= at && index <= at+len(last.Range.Items) {
				last.Range.Items = slices.Insert(last.Range.Items, index-at, items...)
				return
			}
		}
	}
	if len(items) == 1 {
		l.changes = append(l.changes, change.NewListAdd(items[0], index))
		return
	}
	l.changes = append(l.changes, change.NewListAddRange(items, index))
}

// RemoveAt removes the item at index.
func (l *ChangeAwareList[T]) RemoveAt(index int) error {
	if index < 0 || index >= len(l.items) {
		return NewIndexOutOfRangeError("remove", index, len(l.items))
	}
	item := l.items[index]
	l.items = slices.Delete(l.items, index, index+1)
	l.recordRemove(index, item)
	return nil
}

func (l *ChangeAwareList[T]) recordRemove(index int, item T) {
	if n := len(l.changes); n > 0 {
		last := &l.changes[n-1]
		switch last.Reason {
		case change.ListAdd:
			if last.Item.CurrentIndex == index {
				// the insert is undone
				l.changes = l.changes[:n-1]
				return
			}
		case change.ListAddRange:
			if at := last.Range.Index; index >= at && index < at+len(last.Range.Items) {
				last.Range.Items = slices.Delete(last.Range.Items, index-at, index-at+1)
				if len(last.Range.Items) == 0 {
					l.changes = l.changes[:n-1]
				}
				return
			}
		case change.ListRemove:
			switch at := last.Item.CurrentIndex; index {
			case at:
				*last = change.NewListRemoveRange([]T{last.Item.Current, item}, at)
				return
			case at - 1:
				*last = change.NewListRemoveRange([]T{item, last.Item.Current}, index)
				return
			}
		case change.ListRemoveRange:
			switch at := last.Range.Index; index {
			case at:
				last.Range.Items = append(last.Range.Items, item)
				return
			case at - 1:
				last.Range.Items = slices.Insert(last.Range.Items, 0, item)
				last.Range.Index = index
				return
			}
		}
	}
	l.changes = append(l.changes, change.NewListRemove(item, index))
}

// evict removes the item at index recording exactly one Remove change, never coalesced.
func (l *ChangeAwareList[T]) evict(index int) T {
	item := l.items[index]
	l.items = slices.Delete(l.items, index, index+1)
	l.changes = append(l.changes, change.NewListRemove(item, index))
	return item
}

// RemoveRange removes count items starting at index as one RemoveRange change.
func (l *ChangeAwareList[T]) RemoveRange(index, count int) error {
	if count < 0 || index < 0 || index+count > len(l.items) {
		return NewIndexOutOfRangeError("remove range", index, len(l.items))
	}
	switch count {
	case 0:
		return nil
	case 1:
		return l.RemoveAt(index)
	}
	removed := slices.Clone(l.items[index : index+count])
	l.items = slices.Delete(l.items, index, index+count)
	l.changes = append(l.changes, change.NewListRemoveRange(removed, index))
	return nil
}

// RemoveMany removes every item matching f and returns the number of removed items.
func (l *ChangeAwareList[T]) RemoveMany(f func(T) bool) int {
	n := 0
	// walk backwards so that runs of matches coalesce into ranges
	for i := len(l.items) - 1; i >= 0; i-- {
		if f(l.items[i]) {
			_ = l.RemoveAt(i)
			n++
		}
	}
	return n
}

// ReplaceAt replaces the item at index.
func (l *ChangeAwareList[T]) ReplaceAt(index int, item T) error {
	if index < 0 || index >= len(l.items) {
		return NewIndexOutOfRangeError("replace", index, len(l.items))
	}
	previous := l.items[index]
	l.items[index] = item
	l.changes = append(l.changes, change.NewListReplace(item, previous, index))
	return nil
}

// Move moves the item at from so that it ends up at to.
func (l *ChangeAwareList[T]) Move(from, to int) error {
	if from < 0 || from >= len(l.items) {
		return NewIndexOutOfRangeError("move", from, len(l.items))
	}
	if to < 0 || to >= len(l.items) {
		return NewIndexOutOfRangeError("move", to, len(l.items))
	}
	if from == to {
		return nil
	}
	item := l.items[from]
	l.items = slices.Delete(l.items, from, from+1)
	l.items = slices.Insert(l.items, to, item)
	l.changes = append(l.changes, change.NewListMoved(item, to, from))
	return nil
}

// Refresh records an in-place mutation of the item at index.
func (l *ChangeAwareList[T]) Refresh(index int) error {
	if index < 0 || index >= len(l.items) {
		return NewIndexOutOfRangeError("refresh", index, len(l.items))
	}
	l.changes = append(l.changes, change.NewListRefresh(l.items[index], index))
	return nil
}

// Clear removes every item as one Clear change.
func (l *ChangeAwareList[T]) Clear() {
	if len(l.items) == 0 {
		return
	}
	l.changes = append(l.changes, change.NewListClear(l.items))
	l.items = nil
}

// CaptureChanges returns the changes recorded since the last capture and resets the record.
func (l *ChangeAwareList[T]) CaptureChanges() change.ListChangeSet[T] {
	ret := l.changes
	l.changes = nil
	return ret
}

// restore resets the content and drops the uncaptured changes.
func (l *ChangeAwareList[T]) restore(items []T) {
	l.items = items
	l.changes = nil
}
