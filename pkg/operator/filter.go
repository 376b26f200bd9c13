package operator

import (
	"github.com/l7mp/dcollections/pkg/cache"
	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/stream"
)

// Filter keeps the items matching pred. An item that starts matching is added, one that stops
// matching is removed, and updates and refreshes of a matching item are passed on as such.
func Filter[K comparable, V any](src stream.Stream[change.ChangeSet[K, V]], pred func(V) bool) stream.Stream[change.ChangeSet[K, V]] {
	mustNotBeNil("source", src == nil)
	mustNotBeNil("predicate", pred == nil)

	return apply(src, "filter", func() stage[K, V, K, V] {
		state := cache.NewChangeAwareCache[K, V]()
		return func(cs change.ChangeSet[K, V]) (change.ChangeSet[K, V], error) {
			for i := range cs {
				filterChange(state, &cs[i], pred)
			}
			return state.CaptureChanges(), nil
		}
	})
}

func filterChange[K comparable, V any](state *cache.ChangeAwareCache[K, V], c *change.Change[K, V], pred func(V) bool) {
	switch c.Reason {
	case change.Add, change.Update:
		if pred(c.Current) {
			state.AddOrUpdate(c.Key, c.Current)
		} else {
			state.Remove(c.Key)
		}
	case change.Remove:
		state.Remove(c.Key)
	case change.Refresh:
		match, exists := pred(c.Current), state.Contains(c.Key)
		switch {
		case match && exists:
			state.Set(c.Key, c.Current)
			state.Refresh(c.Key)
		case match:
			state.AddOrUpdate(c.Key, c.Current)
		case exists:
			state.Remove(c.Key)
		}
	}
}

// FilterDynamic filters with the latest predicate received on preds. Nothing is emitted before
// the first predicate arrives. Every new predicate re-evaluates the whole upstream content and
// emits only the Adds and Removes between the old and the new matching set. A nil predicate
// fails the stream.
func FilterDynamic[K comparable, V any](src stream.Stream[change.ChangeSet[K, V]], preds stream.Stream[func(V) bool]) stream.Stream[change.ChangeSet[K, V]] {
	mustNotBeNil("source", src == nil)
	mustNotBeNil("predicate stream", preds == nil)

	return stream.Create(func(o stream.Observer[change.ChangeSet[K, V]]) stream.Subscription {
		var (
			gate  = &stream.Gate{}
			all   = cache.NewCache[K, V]()
			state = cache.NewChangeAwareCache[K, V]()
			pred  func(V) bool
		)

		emit := func() {
			if cs := state.CaptureChanges(); len(cs) > 0 {
				o.OnNext(cs)
			}
		}

		onPredicate := func(p func(V) bool) {
			if p == nil {
				o.OnError(NewInvalidArgumentError("predicate", "must not be nil"))
				return
			}
			pred = p
			all.Range(func(k K, v V) bool {
				switch match := pred(v); {
				case match && !state.Contains(k):
					state.AddOrUpdate(k, v)
				case !match && state.Contains(k):
					state.Remove(k)
				}
				return true
			})
			log.V(4).Info("filter: predicate changed", "matching", state.Count(), "total", all.Count())
			emit()
		}

		onChanges := func(cs change.ChangeSet[K, V]) {
			all.Clone(cs)
			if pred == nil {
				return
			}
			for i := range cs {
				filterChange(state, &cs[i], pred)
			}
			emit()
		}

		subs := stream.NewComposite()
		subs.Add(preds.Subscribe(stream.GateObserver(gate, stream.Funcs[func(V) bool]{
			Next:  onPredicate,
			Error: o.OnError,
		})))
		subs.Add(src.Subscribe(stream.GateObserver(gate, stream.Forward(o, onChanges))))
		return subs
	})
}
