package testutils

import (
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/list"
)

// ErrInconsistent is returned when a change does not apply to the materialized state.
var ErrInconsistent = errors.New("inconsistent change")

// Materialize applies keyed change sets to an empty map.
func Materialize[K comparable, V any](css ...change.ChangeSet[K, V]) (map[K]V, error) {
	state := map[K]V{}
	for _, cs := range css {
		for _, c := range cs {
			_, exists := state[c.Key]
			switch c.Reason {
			case change.Add:
				if exists {
					return nil, errors.Wrapf(ErrInconsistent, "add of existing key %v", c.Key)
				}
				state[c.Key] = c.Current
			case change.Update, change.Refresh, change.Moved:
				if !exists {
					return nil, errors.Wrapf(ErrInconsistent, "%s of unknown key %v", c.Reason, c.Key)
				}
				state[c.Key] = c.Current
			case change.Remove:
				if !exists {
					return nil, errors.Wrapf(ErrInconsistent, "remove of unknown key %v", c.Key)
				}
				delete(state, c.Key)
			}
		}
	}
	return state, nil
}

// MaterializeSorted applies the changes of sorted change sets to an empty sequence, checking the
// positions every change carries.
func MaterializeSorted[K comparable, V any](css ...change.SortedChangeSet[K, V]) ([]change.KeyValue[K, V], error) {
	var items []change.KeyValue[K, V]
	for _, s := range css {
		var err error
		if items, err = ApplySorted(items, s.Changes); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// ApplySorted applies positional changes to items.
func ApplySorted[K comparable, V any](items []change.KeyValue[K, V], cs change.ChangeSet[K, V]) ([]change.KeyValue[K, V], error) {
	items = slices.Clone(items)
	at := func(i int, key K) error {
		if i < 0 || i >= len(items) || items[i].Key != key {
			return errors.Wrapf(ErrInconsistent, "key %v is not at index %d", key, i)
		}
		return nil
	}
	for _, c := range cs {
		kv := change.KeyValue[K, V]{Key: c.Key, Value: c.Current}
		switch c.Reason {
		case change.Add:
			if c.CurrentIndex < 0 || c.CurrentIndex > len(items) {
				return nil, errors.Wrapf(ErrInconsistent, "add of %v at index %d", c.Key, c.CurrentIndex)
			}
			items = slices.Insert(items, c.CurrentIndex, kv)
		case change.Remove:
			if err := at(c.CurrentIndex, c.Key); err != nil {
				return nil, err
			}
			items = slices.Delete(items, c.CurrentIndex, c.CurrentIndex+1)
		case change.Update, change.Moved:
			if err := at(c.PreviousIndex, c.Key); err != nil {
				return nil, err
			}
			items = slices.Delete(items, c.PreviousIndex, c.PreviousIndex+1)
			if c.CurrentIndex < 0 || c.CurrentIndex > len(items) {
				return nil, errors.Wrapf(ErrInconsistent, "%s of %v to index %d", c.Reason, c.Key, c.CurrentIndex)
			}
			items = slices.Insert(items, c.CurrentIndex, kv)
		case change.Refresh:
			if err := at(c.CurrentIndex, c.Key); err != nil {
				return nil, err
			}
			items[c.CurrentIndex] = kv
		}
	}
	return items, nil
}

// MaterializeList applies list change sets to an empty sequence.
func MaterializeList[T any](css ...change.ListChangeSet[T]) ([]T, error) {
	var items []T
	for _, cs := range css {
		var err error
		if items, err = list.Clone(items, cs); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// Values returns the values of a key-value sequence.
func Values[K comparable, V any](kvs []change.KeyValue[K, V]) []V {
	ret := make([]V, len(kvs))
	for i := range kvs {
		ret[i] = kvs[i].Value
	}
	return ret
}

// Keys returns the keys of a key-value sequence.
func Keys[K comparable, V any](kvs []change.KeyValue[K, V]) []K {
	ret := make([]K, len(kvs))
	for i := range kvs {
		ret[i] = kvs[i].Key
	}
	return ret
}
