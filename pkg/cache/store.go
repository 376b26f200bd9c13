package cache

import (
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"

	"github.com/l7mp/dcollections/pkg/change"
)

type entry[K comparable, V any] struct {
	key   K
	value V
}

// Cache is a plain keyed store that remembers insertion order: iteration, snapshots and replays
// list keys in the order they were first added. Overwriting a key keeps its position; removing
// and re-adding it moves it to the end. Cache is not safe for concurrent use.
type Cache[K comparable, V any] struct {
	index map[K]uint64
	order *treemap.Map // sequence number -> *entry
	seq   uint64
}

// NewCache creates an empty cache.
func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		index: make(map[K]uint64),
		order: treemap.NewWith(utils.UInt64Comparator),
	}
}

func (c *Cache[K, V]) get(key K) (*entry[K, V], bool) {
	seq, ok := c.index[key]
	if !ok {
		return nil, false
	}
	e, _ := c.order.Get(seq)
	return e.(*entry[K, V]), true
}

// Lookup returns the value stored for key.
func (c *Cache[K, V]) Lookup(key K) (V, bool) {
	e, ok := c.get(key)
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Contains reports whether key is stored.
func (c *Cache[K, V]) Contains(key K) bool {
	_, ok := c.index[key]
	return ok
}

// Set stores value under key and returns the value it replaced, if any.
func (c *Cache[K, V]) Set(key K, value V) (V, bool) {
	if e, ok := c.get(key); ok {
		old := e.value
		e.value = value
		return old, true
	}
	c.seq++
	c.index[key] = c.seq
	c.order.Put(c.seq, &entry[K, V]{key: key, value: value})
	var zero V
	return zero, false
}

// Delete removes key and returns the removed value, if any.
func (c *Cache[K, V]) Delete(key K) (V, bool) {
	seq, ok := c.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	e, _ := c.order.Get(seq)
	c.order.Remove(seq)
	delete(c.index, key)
	return e.(*entry[K, V]).value, true
}

// Count returns the number of stored keys.
func (c *Cache[K, V]) Count() int { return len(c.index) }

// Range calls f for every key in insertion order until f returns false.
func (c *Cache[K, V]) Range(f func(K, V) bool) {
	it := c.order.Iterator()
	for it.Next() {
		e := it.Value().(*entry[K, V])
		if !f(e.key, e.value) {
			return
		}
	}
}

// Keys returns the stored keys in insertion order.
func (c *Cache[K, V]) Keys() []K {
	ret := make([]K, 0, c.Count())
	c.Range(func(k K, _ V) bool { ret = append(ret, k); return true })
	return ret
}

// Items returns the stored values in insertion order.
func (c *Cache[K, V]) Items() []V {
	ret := make([]V, 0, c.Count())
	c.Range(func(_ K, v V) bool { ret = append(ret, v); return true })
	return ret
}

// KeyValues returns the stored pairs in insertion order.
func (c *Cache[K, V]) KeyValues() []change.KeyValue[K, V] {
	ret := make([]change.KeyValue[K, V], 0, c.Count())
	c.Range(func(k K, v V) bool {
		ret = append(ret, change.KeyValue[K, V]{Key: k, Value: v})
		return true
	})
	return ret
}

// Clear drops every key.
func (c *Cache[K, V]) Clear() {
	c.index = make(map[K]uint64)
	c.order.Clear()
}

// Clone applies a change set to the cache, mirroring the state that produced it.
func (c *Cache[K, V]) Clone(cs change.ChangeSet[K, V]) {
	for i := range cs {
		ch := &cs[i]
		switch ch.Reason {
		case change.Add, change.Update, change.Refresh, change.Moved:
			c.Set(ch.Key, ch.Current)
		case change.Remove:
			c.Delete(ch.Key)
		}
	}
}
