package list

import (
	"slices"

	"github.com/l7mp/dcollections/pkg/change"
)

// Clone applies a list change set to items, the way a consumer materializes the stream, and
// returns the resulting slice. It fails if a change addresses a position the sequence does not
// have at that point.
func Clone[T any](items []T, cs change.ListChangeSet[T]) ([]T, error) {
	for _, c := range cs {
		n := len(items)
		switch c.Reason {
		case change.ListAdd:
			if i := c.Item.CurrentIndex; i < 0 || i > n {
				return nil, NewIndexOutOfRangeError("clone add", i, n)
			}
			items = slices.Insert(items, c.Item.CurrentIndex, c.Item.Current)
		case change.ListAddRange:
			if i := c.Range.Index; i < 0 || i > n {
				return nil, NewIndexOutOfRangeError("clone add range", i, n)
			}
			items = slices.Insert(items, c.Range.Index, c.Range.Items...)
		case change.ListRemove:
			if i := c.Item.CurrentIndex; i < 0 || i >= n {
				return nil, NewIndexOutOfRangeError("clone remove", i, n)
			}
			items = slices.Delete(items, c.Item.CurrentIndex, c.Item.CurrentIndex+1)
		case change.ListRemoveRange:
			i, m := c.Range.Index, len(c.Range.Items)
			if i < 0 || i+m > n {
				return nil, NewIndexOutOfRangeError("clone remove range", i, n)
			}
			items = slices.Delete(items, i, i+m)
		case change.ListReplace, change.ListRefresh:
			if i := c.Item.CurrentIndex; i < 0 || i >= n {
				return nil, NewIndexOutOfRangeError("clone replace", i, n)
			}
			items[c.Item.CurrentIndex] = c.Item.Current
		case change.ListMoved:
			from, to := c.Item.PreviousIndex, c.Item.CurrentIndex
			if from < 0 || from >= n || to < 0 || to >= n {
				return nil, NewIndexOutOfRangeError("clone move", from, n)
			}
			item := items[from]
			items = slices.Delete(items, from, from+1)
			items = slices.Insert(items, to, item)
		case change.ListClear:
			items = items[:0]
		}
	}
	return items, nil
}
