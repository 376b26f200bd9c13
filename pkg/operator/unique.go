package operator

import (
	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/stream"
)

// EnsureUniqueKeys collapses repeated changes of a key within one change set to their net effect,
// see change.Consolidate. Change sets that net to nothing are dropped.
func EnsureUniqueKeys[K comparable, V any](src stream.Stream[change.ChangeSet[K, V]]) stream.Stream[change.ChangeSet[K, V]] {
	mustNotBeNil("source", src == nil)
	return apply(src, "ensure-unique-keys", func() stage[K, V, K, V] {
		return func(cs change.ChangeSet[K, V]) (change.ChangeSet[K, V], error) {
			return change.Consolidate(cs), nil
		}
	})
}
