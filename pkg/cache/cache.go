package cache

import (
	"sync"

	"github.com/go-logr/logr"

	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/stream"
)

// Updater is the edit surface handed to SourceCache.Edit. All calls made through one Updater
// form a single batch.
type Updater[K comparable, V any] interface {
	// AddOrUpdate adds new items and overwrites existing ones, keyed by the cache's key selector.
	AddOrUpdate(items ...V)
	// AddOrUpdateKey stores item under an explicit key.
	AddOrUpdateKey(key K, item V)
	// Remove removes the given keys; unknown keys are ignored.
	Remove(keys ...K)
	// RemoveItems removes the keys of the given items.
	RemoveItems(items ...V)
	// Refresh re-emits the current value of the given keys.
	Refresh(keys ...K)
	// RefreshAll re-emits every value.
	RefreshAll()
	// Clear removes every key.
	Clear()
	// Lookup returns the value stored for key, as seen inside the batch.
	Lookup(key K) change.Optional[V]
	// Count returns the size of the cache, as seen inside the batch.
	Count() int
}

// Option configures a SourceCache.
type Option func(*options)

type options struct {
	log  logr.Logger
	name string
}

// WithLogger sets the logger of the cache.
func WithLogger(log logr.Logger) Option { return func(o *options) { o.log = log } }

// WithName names the cache in log lines.
func WithName(name string) Option { return func(o *options) { o.name = name } }

// SourceCache is the keyed source of truth. Every edit batch produces at most one change set,
// consolidated so that repeated operations on a key within the batch report only their net
// effect. Batches are serialized; subscribers are notified synchronously on the editing
// goroutine. Subscribers must not edit the same cache from within a notification.
type SourceCache[K comparable, V any] struct {
	keyOf func(V) K

	writeMu  sync.Mutex   // serializes batches and their emission
	mu       sync.RWMutex // guards data, version and disposed
	data     *ChangeAwareCache[K, V]
	version  uint64
	disposed bool

	changes *stream.Subject[versioned[K, V]]
	log     logr.Logger
}

var _ ObservableCache[int, int] = &SourceCache[int, int]{}

// NewSourceCache creates an empty cache keyed by keyOf. It panics if keyOf is nil.
func NewSourceCache[K comparable, V any](keyOf func(V) K, opts ...Option) *SourceCache[K, V] {
	if keyOf == nil {
		panic(NewInvalidArgumentError("key selector", "must not be nil"))
	}
	o := options{log: logr.Discard(), name: "source-cache"}
	for _, opt := range opts {
		opt(&o)
	}
	return &SourceCache[K, V]{
		keyOf:   keyOf,
		data:    NewChangeAwareCache[K, V](),
		changes: stream.NewSubject[versioned[K, V]](),
		log:     o.log.WithName(o.name),
	}
}

// KeyOf returns the key the cache would assign to item.
func (c *SourceCache[K, V]) KeyOf(item V) K { return c.keyOf(item) }

// Edit runs update as one batch and emits the consolidated change set, if any. If update panics,
// the batch is rolled back and the panic is passed on; the cache stays usable.
func (c *SourceCache[K, V]) Edit(update func(Updater[K, V])) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	v, ok := c.commit(update)
	if !ok {
		return
	}
	cs := v.changes
	c.log.V(4).Info("cache: batch committed", "version", v.version, "adds", cs.Adds(),
		"updates", cs.Updates(), "removes", cs.Removes(), "refreshes", cs.Refreshes())

	c.changes.OnNext(v)
}

// commit applies update to the data under the data lock and returns the versioned change set.
func (c *SourceCache[K, V]) commit(update func(Updater[K, V])) (versioned[K, V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		c.log.V(2).Info("cache: ignoring edit on a disposed cache", "error", ErrDisposed)
		return versioned[K, V]{}, false
	}

	applied := false
	defer func() {
		if !applied {
			c.log.V(2).Info("cache: edit batch aborted, rolling back")
			c.data.rollback()
		}
	}()
	update(&updater[K, V]{cache: c})
	cs := change.Consolidate(c.data.CaptureChanges())
	applied = true

	if len(cs) == 0 {
		c.log.V(5).Info("cache: edit batch has no net effect")
		return versioned[K, V]{}, false
	}
	c.version++
	return versioned[K, V]{version: c.version, changes: cs}, true
}

// AddOrUpdate adds or overwrites items in one batch.
func (c *SourceCache[K, V]) AddOrUpdate(items ...V) {
	c.Edit(func(u Updater[K, V]) { u.AddOrUpdate(items...) })
}

// Remove removes key.
func (c *SourceCache[K, V]) Remove(key K) {
	c.Edit(func(u Updater[K, V]) { u.Remove(key) })
}

// RemoveKeys removes keys in one batch.
func (c *SourceCache[K, V]) RemoveKeys(keys ...K) {
	c.Edit(func(u Updater[K, V]) { u.Remove(keys...) })
}

// RemoveItems removes the keys of items in one batch.
func (c *SourceCache[K, V]) RemoveItems(items ...V) {
	c.Edit(func(u Updater[K, V]) { u.RemoveItems(items...) })
}

// Refresh re-emits the current value of keys under reason Refresh.
func (c *SourceCache[K, V]) Refresh(keys ...K) {
	c.Edit(func(u Updater[K, V]) { u.Refresh(keys...) })
}

// RefreshAll re-emits every value under reason Refresh.
func (c *SourceCache[K, V]) RefreshAll() {
	c.Edit(func(u Updater[K, V]) { u.RefreshAll() })
}

// Clear removes every key; nothing is emitted for an empty cache.
func (c *SourceCache[K, V]) Clear() {
	c.Edit(func(u Updater[K, V]) { u.Clear() })
}

// Lookup returns the value stored for key.
func (c *SourceCache[K, V]) Lookup(key K) change.Optional[V] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.data.Lookup(key); ok {
		return change.Some(v)
	}
	return change.None[V]()
}

// Keys returns the keys in insertion order.
func (c *SourceCache[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Keys()
}

// Items returns the values in insertion order.
func (c *SourceCache[K, V]) Items() []V {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Items()
}

// KeyValues returns the pairs in insertion order.
func (c *SourceCache[K, V]) KeyValues() []change.KeyValue[K, V] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.KeyValues()
}

// Count returns the number of keys.
func (c *SourceCache[K, V]) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Count()
}

// Snapshot returns an immutable copy of the current content.
func (c *SourceCache[K, V]) Snapshot() *Snapshot[K, V] {
	return NewSnapshot(c.KeyValues())
}

// Dispose completes every subscriber and clears the cache without emitting. Later edits are
// ignored.
func (c *SourceCache[K, V]) Dispose() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.data.Cache.Clear()
	c.data.CaptureChanges()
	c.mu.Unlock()

	c.log.V(2).Info("cache: disposed")
	c.changes.OnCompleted()
}

type updater[K comparable, V any] struct {
	cache *SourceCache[K, V]
}

func (u *updater[K, V]) AddOrUpdate(items ...V) {
	for _, item := range items {
		u.cache.data.AddOrUpdate(u.cache.keyOf(item), item)
	}
}

func (u *updater[K, V]) AddOrUpdateKey(key K, item V) { u.cache.data.AddOrUpdate(key, item) }

func (u *updater[K, V]) Remove(keys ...K) {
	for _, k := range keys {
		u.cache.data.Remove(k)
	}
}

func (u *updater[K, V]) RemoveItems(items ...V) {
	for _, item := range items {
		u.cache.data.Remove(u.cache.keyOf(item))
	}
}

func (u *updater[K, V]) Refresh(keys ...K) {
	for _, k := range keys {
		u.cache.data.Refresh(k)
	}
}

func (u *updater[K, V]) RefreshAll() { u.cache.data.RefreshAll() }
func (u *updater[K, V]) Clear()      { u.cache.data.Clear() }
func (u *updater[K, V]) Count() int  { return u.cache.data.Count() }

func (u *updater[K, V]) Lookup(key K) change.Optional[V] {
	if v, ok := u.cache.data.Lookup(key); ok {
		return change.Some(v)
	}
	return change.None[V]()
}
