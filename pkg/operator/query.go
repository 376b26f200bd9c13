package operator

import (
	"github.com/l7mp/dcollections/pkg/cache"
	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/stream"
)

// QueryWhenChanged emits an immutable snapshot of the upstream content after every change set.
func QueryWhenChanged[K comparable, V any](src stream.Stream[change.ChangeSet[K, V]]) stream.Stream[cache.Query[K, V]] {
	mustNotBeNil("source", src == nil)
	return stream.Create(func(o stream.Observer[cache.Query[K, V]]) stream.Subscription {
		state := cache.NewCache[K, V]()
		return src.Subscribe(stream.Forward(o, func(cs change.ChangeSet[K, V]) {
			state.Clone(cs)
			o.OnNext(cache.SnapshotOf(state))
		}))
	})
}
