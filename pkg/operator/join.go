package operator

import (
	"github.com/l7mp/dcollections/pkg/cache"
	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/stream"
)

// InnerJoin pairs the items of left and right stored under the same key. A result exists exactly
// while both sides hold the key.
func InnerJoin[K comparable, L, R, D any](left stream.Stream[change.ChangeSet[K, L]], right stream.Stream[change.ChangeSet[K, R]],
	selector func(K, L, R) D) stream.Stream[change.ChangeSet[K, D]] {
	mustNotBeNil("result selector", selector == nil)
	return join(left, right, "inner-join", func(k K, l change.Optional[L], r change.Optional[R]) (D, bool) {
		lv, lok := l.Get()
		rv, rok := r.Get()
		if !lok || !rok {
			var zero D
			return zero, false
		}
		return selector(k, lv, rv), true
	})
}

// LeftJoin keeps a result for every left key; the right side is absent until a right item with the
// same key appears.
func LeftJoin[K comparable, L, R, D any](left stream.Stream[change.ChangeSet[K, L]], right stream.Stream[change.ChangeSet[K, R]],
	selector func(K, L, change.Optional[R]) D) stream.Stream[change.ChangeSet[K, D]] {
	mustNotBeNil("result selector", selector == nil)
	return join(left, right, "left-join", func(k K, l change.Optional[L], r change.Optional[R]) (D, bool) {
		lv, ok := l.Get()
		if !ok {
			var zero D
			return zero, false
		}
		return selector(k, lv, r), true
	})
}

// RightJoin is the mirror of LeftJoin.
func RightJoin[K comparable, L, R, D any](left stream.Stream[change.ChangeSet[K, L]], right stream.Stream[change.ChangeSet[K, R]],
	selector func(K, change.Optional[L], R) D) stream.Stream[change.ChangeSet[K, D]] {
	mustNotBeNil("result selector", selector == nil)
	return join(left, right, "right-join", func(k K, l change.Optional[L], r change.Optional[R]) (D, bool) {
		rv, ok := r.Get()
		if !ok {
			var zero D
			return zero, false
		}
		return selector(k, l, rv), true
	})
}

// FullJoin keeps a result for every key held by either side.
func FullJoin[K comparable, L, R, D any](left stream.Stream[change.ChangeSet[K, L]], right stream.Stream[change.ChangeSet[K, R]],
	selector func(K, change.Optional[L], change.Optional[R]) D) stream.Stream[change.ChangeSet[K, D]] {
	mustNotBeNil("result selector", selector == nil)
	return join(left, right, "full-join", func(k K, l change.Optional[L], r change.Optional[R]) (D, bool) {
		if !l.HasValue() && !r.HasValue() {
			var zero D
			return zero, false
		}
		return selector(k, l, r), true
	})
}

// join keeps both sides and re-evaluates a single key on every one-sided change. eval reports
// whether a result exists for the key.
func join[K comparable, L, R, D any](left stream.Stream[change.ChangeSet[K, L]], right stream.Stream[change.ChangeSet[K, R]], name string,
	eval func(K, change.Optional[L], change.Optional[R]) (D, bool)) stream.Stream[change.ChangeSet[K, D]] {
	mustNotBeNil("left source", left == nil)
	mustNotBeNil("right source", right == nil)

	return stream.Create(func(o stream.Observer[change.ChangeSet[K, D]]) stream.Subscription {
		var (
			gate      = &stream.Gate{}
			lefts     = cache.NewCache[K, L]()
			rights    = cache.NewCache[K, R]()
			state     = cache.NewChangeAwareCache[K, D]()
			completed int
		)

		lookup := func(k K) (change.Optional[L], change.Optional[R]) {
			l, r := change.None[L](), change.None[R]()
			if v, ok := lefts.Lookup(k); ok {
				l = change.Some(v)
			}
			if v, ok := rights.Lookup(k); ok {
				r = change.Some(v)
			}
			return l, r
		}
		update := func(k K, reason change.Reason) {
			l, r := lookup(k)
			d, ok := eval(k, l, r)
			switch {
			case !ok:
				state.Remove(k)
			case reason == change.Refresh && state.Contains(k):
				state.Set(k, d)
				state.Refresh(k)
			default:
				state.AddOrUpdate(k, d)
			}
		}
		emit := func(side string) {
			if cs := state.CaptureChanges(); len(cs) > 0 {
				log.V(5).Info("join: emitting", "stage", name, "side", side, "changes", len(cs))
				o.OnNext(cs)
			}
		}
		complete := func() {
			if completed++; completed == 2 {
				o.OnCompleted()
			}
		}

		subs := stream.NewComposite()
		subs.Add(left.Subscribe(stream.GateObserver(gate, stream.Funcs[change.ChangeSet[K, L]]{
			Next: func(cs change.ChangeSet[K, L]) {
				lefts.Clone(cs)
				for i := range cs {
					update(cs[i].Key, cs[i].Reason)
				}
				emit("left")
			},
			Error:     o.OnError,
			Completed: complete,
		})))
		subs.Add(right.Subscribe(stream.GateObserver(gate, stream.Funcs[change.ChangeSet[K, R]]{
			Next: func(cs change.ChangeSet[K, R]) {
				rights.Clone(cs)
				for i := range cs {
					update(cs[i].Key, cs[i].Reason)
				}
				emit("right")
			},
			Error:     o.OnError,
			Completed: complete,
		})))
		return subs
	})
}
