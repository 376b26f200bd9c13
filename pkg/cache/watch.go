package cache

import (
	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/stream"
)

// versioned tags a committed change set with the cache version it produced.
type versioned[K comparable, V any] struct {
	version uint64
	changes change.ChangeSet[K, V]
}

// Connect replays the current content as one Add-only change set (nothing for an empty cache)
// and then streams every committed change set.
func (c *SourceCache[K, V]) Connect() stream.Stream[change.ChangeSet[K, V]] {
	return stream.Create(func(o stream.Observer[change.ChangeSet[K, V]]) stream.Subscription {
		return c.connect(func(initial []change.KeyValue[K, V]) {
			if len(initial) == 0 {
				return
			}
			cs := make(change.ChangeSet[K, V], len(initial))
			for i, kv := range initial {
				cs[i] = change.NewAdd(kv.Key, kv.Value)
			}
			o.OnNext(cs)
		}, o.OnNext, o.OnCompleted)
	})
}

// connect subscribes a new watcher. The watcher's gate is held while the initial snapshot is
// delivered, so batches committed concurrently are queued behind the snapshot; batches already
// contained in the snapshot are skipped by version.
func (c *SourceCache[K, V]) connect(initial func([]change.KeyValue[K, V]), next func(change.ChangeSet[K, V]), completed func()) stream.Subscription {
	gate := &stream.Gate{}
	sub := stream.Empty
	gate.Do(func() {
		c.mu.RLock()
		snapshot := c.data.KeyValues()
		seen := c.version
		disposed := c.disposed
		if !disposed {
			sub = c.changes.Subscribe(stream.Funcs[versioned[K, V]]{
				Next: func(v versioned[K, V]) {
					if v.version <= seen {
						return
					}
					gate.Do(func() { next(v.changes) })
				},
				Completed: func() { gate.Do(completed) },
			})
		}
		c.mu.RUnlock()

		if disposed {
			completed()
			return
		}
		initial(snapshot)
	})
	return sub
}

// Watch streams the changes of key, starting with an Add of its current value if present.
func (c *SourceCache[K, V]) Watch(key K) stream.Stream[change.Change[K, V]] {
	return stream.Create(func(o stream.Observer[change.Change[K, V]]) stream.Subscription {
		return c.connect(func(initial []change.KeyValue[K, V]) {
			for _, kv := range initial {
				if kv.Key == key {
					o.OnNext(change.NewAdd(kv.Key, kv.Value))
					return
				}
			}
		}, func(cs change.ChangeSet[K, V]) {
			for _, ch := range cs {
				if ch.Key == key {
					o.OnNext(ch)
				}
			}
		}, o.OnCompleted)
	})
}

// CountChanged streams the number of keys whenever it changes, starting with the current count.
func (c *SourceCache[K, V]) CountChanged() stream.Stream[int] {
	return stream.Create(func(o stream.Observer[int]) stream.Subscription {
		count := 0
		return c.connect(func(initial []change.KeyValue[K, V]) {
			count = len(initial)
			o.OnNext(count)
		}, func(cs change.ChangeSet[K, V]) {
			if d := cs.Adds() - cs.Removes(); d != 0 {
				count += d
				o.OnNext(count)
			}
		}, o.OnCompleted)
	})
}
