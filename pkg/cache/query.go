package cache

import (
	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/stream"
)

// Query is a read-only view over keyed state.
type Query[K comparable, V any] interface {
	// Lookup returns the value stored for key.
	Lookup(key K) change.Optional[V]
	// Keys returns the keys in insertion order.
	Keys() []K
	// Items returns the values in insertion order.
	Items() []V
	// KeyValues returns the pairs in insertion order.
	KeyValues() []change.KeyValue[K, V]
	// Count returns the number of keys.
	Count() int
}

// ObservableCache is a Query that can also be observed.
type ObservableCache[K comparable, V any] interface {
	Query[K, V]
	// Connect replays the current content as one Add-only change set, then streams live
	// change sets.
	Connect() stream.Stream[change.ChangeSet[K, V]]
	// Watch streams the changes of a single key, starting with its current value.
	Watch(key K) stream.Stream[change.Change[K, V]]
	// CountChanged streams the size of the cache whenever it changes, starting with the
	// current size.
	CountChanged() stream.Stream[int]
}

// Snapshot is an immutable point-in-time copy of keyed state.
type Snapshot[K comparable, V any] struct {
	cache *Cache[K, V]
}

var _ Query[int, int] = &Snapshot[int, int]{}

// NewSnapshot copies the given pairs into a snapshot.
func NewSnapshot[K comparable, V any](kvs []change.KeyValue[K, V]) *Snapshot[K, V] {
	c := NewCache[K, V]()
	for _, kv := range kvs {
		c.Set(kv.Key, kv.Value)
	}
	return &Snapshot[K, V]{cache: c}
}

// SnapshotOf copies the current state of a cache.
func SnapshotOf[K comparable, V any](c *Cache[K, V]) *Snapshot[K, V] {
	return NewSnapshot(c.KeyValues())
}

func (s *Snapshot[K, V]) Lookup(key K) change.Optional[V] {
	if v, ok := s.cache.Lookup(key); ok {
		return change.Some(v)
	}
	return change.None[V]()
}

func (s *Snapshot[K, V]) Keys() []K                          { return s.cache.Keys() }
func (s *Snapshot[K, V]) Items() []V                         { return s.cache.Items() }
func (s *Snapshot[K, V]) KeyValues() []change.KeyValue[K, V] { return s.cache.KeyValues() }
func (s *Snapshot[K, V]) Count() int                         { return s.cache.Count() }
