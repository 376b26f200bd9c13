package list

import (
	"slices"

	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/stream"
)

// EvictionPolicy selects the items LimitSizeTo evicts when the list grows over its limit.
type EvictionPolicy int

const (
	// RemoveOldest evicts the earliest added items first (FIFO).
	RemoveOldest EvictionPolicy = iota
	// RemoveNewest evicts the most recently added items first (LIFO).
	RemoveNewest
)

func (p EvictionPolicy) String() string {
	if p == RemoveNewest {
		return "RemoveNewest"
	}
	return "RemoveOldest"
}

// LimitSizeTo bounds the size of src. While the returned stream is subscribed, every edit batch
// that adds items and leaves src with more than limit items evicts the overflow according to
// policy: one Remove change per evicted item, in eviction order, is appended to the same batch,
// and the evicted items are emitted on the returned stream. Replacing items never evicts and
// clearing the list resets the bookkeeping. LimitSizeTo panics if limit is not positive.
func LimitSizeTo[T any](src *SourceList[T], limit int, policy EvictionPolicy) stream.Stream[[]T] {
	if src == nil {
		panic(NewInvalidArgumentError("source", "must not be nil"))
	}
	if limit <= 0 {
		panic(NewInvalidArgumentError("size limit", "must be positive"))
	}

	return stream.Create(func(o stream.Observer[[]T]) stream.Subscription {
		lim := &limiter[T]{limit: limit, policy: policy, evicted: stream.NewSubject[[]T]()}
		sub := lim.evicted.Subscribe(o)

		src.writeMu.Lock()
		src.mu.Lock()
		if src.disposed {
			src.mu.Unlock()
			src.writeMu.Unlock()
			o.OnCompleted()
			return sub
		}
		// items already present are stamped in list order
		for range src.data.Count() {
			lim.stamps = append(lim.stamps, lim.next)
			lim.next++
		}
		src.limiters = append(src.limiters, lim)
		src.mu.Unlock()
		src.writeMu.Unlock()

		src.log.V(2).Info("list: size limiter installed", "limit", limit, "policy", policy.String())

		return stream.NewSubscription(func() {
			sub.Dispose()
			src.writeMu.Lock()
			src.mu.Lock()
			src.limiters = slices.DeleteFunc(src.limiters, func(l *limiter[T]) bool { return l == lim })
			src.mu.Unlock()
			src.writeMu.Unlock()
		})
	})
}

type eviction[T any] struct {
	limiter *limiter[T]
	items   []T
}

// limiter tracks an insertion stamp per list position.
type limiter[T any] struct {
	limit   int
	policy  EvictionPolicy
	stamps  []uint64
	next    uint64
	evicted *stream.Subject[[]T]
}

func (l *limiter[T]) stamp(n int) []uint64 {
	ret := make([]uint64, n)
	for i := range ret {
		ret[i] = l.next
		l.next++
	}
	return ret
}

// track mirrors a committed change set onto the stamps and reports whether it added items.
func (l *limiter[T]) track(cs change.ListChangeSet[T]) bool {
	added := false
	for _, c := range cs {
		switch c.Reason {
		case change.ListAdd:
			l.stamps = slices.Insert(l.stamps, c.Item.CurrentIndex, l.stamp(1)...)
			added = true
		case change.ListAddRange:
			l.stamps = slices.Insert(l.stamps, c.Range.Index, l.stamp(len(c.Range.Items))...)
			added = true
		case change.ListRemove:
			l.stamps = slices.Delete(l.stamps, c.Item.CurrentIndex, c.Item.CurrentIndex+1)
		case change.ListRemoveRange:
			l.stamps = slices.Delete(l.stamps, c.Range.Index, c.Range.Index+len(c.Range.Items))
		case change.ListMoved:
			s := l.stamps[c.Item.PreviousIndex]
			l.stamps = slices.Delete(l.stamps, c.Item.PreviousIndex, c.Item.PreviousIndex+1)
			l.stamps = slices.Insert(l.stamps, c.Item.CurrentIndex, s)
		case change.ListClear:
			l.stamps = l.stamps[:0]
		}
	}
	return added
}

// enforce evicts the overflow from data and returns the extended change set and the evicted
// items in eviction order.
func (l *limiter[T]) enforce(data *ChangeAwareList[T], cs change.ListChangeSet[T]) (change.ListChangeSet[T], []T) {
	if !l.track(cs) || len(l.stamps) <= l.limit {
		return cs, nil
	}

	victims := slices.Clone(l.stamps)
	slices.Sort(victims)
	if l.policy == RemoveNewest {
		slices.Reverse(victims)
	}
	victims = victims[:len(l.stamps)-l.limit]

	evicted := make([]T, 0, len(victims))
	for _, s := range victims {
		i := slices.Index(l.stamps, s)
		l.stamps = slices.Delete(l.stamps, i, i+1)
		evicted = append(evicted, data.evict(i))
	}
	return append(cs, data.CaptureChanges()...), evicted
}
