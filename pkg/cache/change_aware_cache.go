package cache

import "github.com/l7mp/dcollections/pkg/change"

// ChangeAwareCache is a Cache that records every mutation as a change until the changes are
// captured. Operators use it as their shadow state: mutate it while processing an upstream
// change set, then emit the captured changes.
type ChangeAwareCache[K comparable, V any] struct {
	*Cache[K, V]
	changes change.ChangeSet[K, V]
}

// NewChangeAwareCache creates an empty change-aware cache.
func NewChangeAwareCache[K comparable, V any]() *ChangeAwareCache[K, V] {
	return &ChangeAwareCache[K, V]{Cache: NewCache[K, V]()}
}

// AddOrUpdate records an Add for a new key and an Update for an existing one.
func (c *ChangeAwareCache[K, V]) AddOrUpdate(key K, value V) {
	if old, ok := c.Set(key, value); ok {
		c.changes = append(c.changes, change.NewUpdate(key, value, old))
		return
	}
	c.changes = append(c.changes, change.NewAdd(key, value))
}

// Remove records a Remove if key exists.
func (c *ChangeAwareCache[K, V]) Remove(key K) {
	if old, ok := c.Delete(key); ok {
		c.changes = append(c.changes, change.NewRemove(key, old))
	}
}

// Refresh records a Refresh if key exists.
func (c *ChangeAwareCache[K, V]) Refresh(key K) {
	if v, ok := c.Lookup(key); ok {
		c.changes = append(c.changes, change.NewRefresh(key, v))
	}
}

// RefreshAll records a Refresh for every key.
func (c *ChangeAwareCache[K, V]) RefreshAll() {
	c.Range(func(k K, v V) bool {
		c.changes = append(c.changes, change.NewRefresh(k, v))
		return true
	})
}

// Clear records a Remove for every key.
func (c *ChangeAwareCache[K, V]) Clear() {
	c.Range(func(k K, v V) bool {
		c.changes = append(c.changes, change.NewRemove(k, v))
		return true
	})
	c.Cache.Clear()
}

// Clone applies an upstream change set and records it.
func (c *ChangeAwareCache[K, V]) Clone(cs change.ChangeSet[K, V]) {
	for i := range cs {
		ch := &cs[i]
		switch ch.Reason {
		case change.Add, change.Update:
			c.AddOrUpdate(ch.Key, ch.Current)
		case change.Remove:
			c.Remove(ch.Key)
		case change.Refresh:
			c.Refresh(ch.Key)
		}
	}
}

// CaptureChanges returns the changes recorded since the last capture and resets the record.
func (c *ChangeAwareCache[K, V]) CaptureChanges() change.ChangeSet[K, V] {
	ret := c.changes
	c.changes = nil
	return ret
}

// rollback undoes the uncaptured changes, newest first, and drops them. Keys restored after a
// Remove go to the end of the insertion order.
func (c *ChangeAwareCache[K, V]) rollback() {
	for i := len(c.changes) - 1; i >= 0; i-- {
		ch := &c.changes[i]
		switch ch.Reason {
		case change.Add:
			c.Delete(ch.Key)
		case change.Update:
			c.Set(ch.Key, ch.Previous.Value())
		case change.Remove:
			c.Set(ch.Key, ch.Current)
		}
	}
	c.changes = nil
}

// HasChanges reports whether uncaptured changes exist.
func (c *ChangeAwareCache[K, V]) HasChanges() bool { return len(c.changes) > 0 }
