package operator

import (
	"reflect"

	"github.com/l7mp/dcollections/pkg/cache"
	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/stream"
)

// TransformMany flattens every item into the values returned by many, keyed by keyOf. A derived
// key produced by several items is reference counted: it is added when its count goes from zero
// to one and removed when it drops back to zero. Updates and refreshes diff the old derived keys
// of an item against the new ones; a derived key the item still produces is updated when its value
// changed. Duplicate keys produced by a single item count once.
func TransformMany[K comparable, V any, DK comparable, D any](src stream.Stream[change.ChangeSet[K, V]], many func(V) []D,
	keyOf func(D) DK) stream.Stream[change.ChangeSet[DK, D]] {
	mustNotBeNil("source", src == nil)
	mustNotBeNil("selector", many == nil)
	mustNotBeNil("key selector", keyOf == nil)

	return apply(src, "transform-many", func() stage[K, V, DK, D] {
		t := &flattener[K, V, DK, D]{
			many:     many,
			keyOf:    keyOf,
			refs:     map[DK]int{},
			children: map[K][]DK{},
			state:    cache.NewChangeAwareCache[DK, D](),
		}
		return t.process
	})
}

type flattener[K comparable, V any, DK comparable, D any] struct {
	many     func(V) []D
	keyOf    func(D) DK
	refs     map[DK]int
	children map[K][]DK
	state    *cache.ChangeAwareCache[DK, D]
}

func (t *flattener[K, V, DK, D]) process(cs change.ChangeSet[K, V]) (change.ChangeSet[DK, D], error) {
	for i := range cs {
		c := &cs[i]
		switch c.Reason {
		case change.Add, change.Update, change.Refresh:
			t.set(c.Key, c.Current)
		case change.Remove:
			for _, dk := range t.children[c.Key] {
				t.release(dk)
			}
			delete(t.children, c.Key)
		}
	}
	return t.state.CaptureChanges(), nil
}

func (t *flattener[K, V, DK, D]) set(key K, v V) {
	derived := t.many(v)
	keys := make([]DK, 0, len(derived))
	values := make(map[DK]D, len(derived))
	for _, d := range derived {
		dk := t.keyOf(d)
		if _, ok := values[dk]; ok {
			continue
		}
		values[dk] = d
		keys = append(keys, dk)
	}

	old := t.children[key]
	kept := make(map[DK]bool, len(old))
	for _, dk := range old {
		if _, ok := values[dk]; ok {
			kept[dk] = true
			continue
		}
		t.release(dk)
	}
	for _, dk := range keys {
		if kept[dk] {
			if cur, ok := t.state.Lookup(dk); !ok || !reflect.DeepEqual(cur, values[dk]) {
				t.state.AddOrUpdate(dk, values[dk])
			}
			continue
		}
		if t.refs[dk]++; t.refs[dk] == 1 {
			t.state.AddOrUpdate(dk, values[dk])
		}
	}

	if len(keys) == 0 {
		delete(t.children, key)
		return
	}
	t.children[key] = keys
}

func (t *flattener[K, V, DK, D]) release(dk DK) {
	if t.refs[dk]--; t.refs[dk] > 0 {
		return
	}
	delete(t.refs, dk)
	t.state.Remove(dk)
}
