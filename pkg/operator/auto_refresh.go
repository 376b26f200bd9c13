package operator

import (
	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/notify"
	"github.com/l7mp/dcollections/pkg/stream"
)

// AutoRefresh injects a Refresh for an item every time it announces a change of one of the given
// properties, or of any property when none is given. Upstream change sets pass through unchanged.
func AutoRefresh[K comparable, V notify.PropertyNotifier](src stream.Stream[change.ChangeSet[K, V]], properties ...string) stream.Stream[change.ChangeSet[K, V]] {
	return AutoRefreshOnObservable(src, func(v V, _ K) stream.Stream[string] {
		return notify.Properties(v, properties...)
	})
}

// AutoRefreshOnObservable subscribes to the stream returned by reevaluator for every item and
// injects a Refresh of the item whenever that stream emits. The per-item subscription is replaced
// when the item is updated and disposed when it is removed.
func AutoRefreshOnObservable[K comparable, V any, X any](src stream.Stream[change.ChangeSet[K, V]], reevaluator func(V, K) stream.Stream[X]) stream.Stream[change.ChangeSet[K, V]] {
	mustNotBeNil("source", src == nil)
	mustNotBeNil("reevaluator", reevaluator == nil)

	type watch struct {
		value V
		sub   stream.Subscription
	}

	return stream.Create(func(o stream.Observer[change.ChangeSet[K, V]]) stream.Subscription {
		gate := &stream.Gate{}
		watches := map[K]*watch{}

		unwatch := func(key K) {
			if w, ok := watches[key]; ok {
				w.sub.Dispose()
				delete(watches, key)
			}
		}
		watchItem := func(key K, v V) {
			unwatch(key)
			w := &watch{value: v, sub: stream.Empty}
			watches[key] = w
			w.sub = reevaluator(v, key).Subscribe(stream.Funcs[X]{
				Next: func(X) {
					gate.Do(func() {
						if watches[key] != w {
							return
						}
						log.V(5).Info("auto-refresh: item changed", "key", key)
						o.OnNext(change.ChangeSet[K, V]{change.NewRefresh(key, w.value)})
					})
				},
				Error: func(err error) { gate.Do(func() { o.OnError(err) }) },
			})
		}

		sub := src.Subscribe(stream.GateObserver(gate, stream.Forward(o, func(cs change.ChangeSet[K, V]) {
			o.OnNext(cs)
			for i := range cs {
				c := &cs[i]
				switch c.Reason {
				case change.Add, change.Update:
					watchItem(c.Key, c.Current)
				case change.Refresh:
					if w, ok := watches[c.Key]; ok {
						w.value = c.Current
					}
				case change.Remove:
					unwatch(c.Key)
				}
			}
		})))

		return stream.NewSubscription(func() {
			sub.Dispose()
			gate.Do(func() {
				for key := range watches {
					unwatch(key)
				}
			})
		})
	})
}
