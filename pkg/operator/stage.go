package operator

import (
	"github.com/cockroachdb/errors"

	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/stream"
)

// stage processes one upstream change set and returns the change set to emit. Every subscription
// gets its own stage, so a stage owns its derived state exclusively.
type stage[K comparable, V any, K2 comparable, W any] func(change.ChangeSet[K, V]) (change.ChangeSet[K2, W], error)

// apply runs a single-input stateful stage over src. Empty results are not emitted and a stage
// error fails the output stream.
func apply[K comparable, V any, K2 comparable, W any](src stream.Stream[change.ChangeSet[K, V]], name string,
	newStage func() stage[K, V, K2, W]) stream.Stream[change.ChangeSet[K2, W]] {
	return stream.Create(func(o stream.Observer[change.ChangeSet[K2, W]]) stream.Subscription {
		process := newStage()
		return src.Subscribe(stream.Forward(o, func(cs change.ChangeSet[K, V]) {
			out, err := process(cs)
			if err != nil {
				log.Error(err, "stage failed", "stage", name)
				o.OnError(errors.Wrapf(err, "%s", name))
				return
			}
			log.V(5).Info("processed change set", "stage", name, "in", len(cs), "out", len(out))
			if len(out) > 0 {
				o.OnNext(out)
			}
		}))
	})
}
