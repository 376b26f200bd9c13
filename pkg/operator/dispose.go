package operator

import (
	"io"

	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/stream"
)

// DisposeMany closes the items implementing io.Closer once they leave the stream: removed items
// and the previous values of updated items are closed after their change set was passed on, and
// every live item is closed when the subscription is disposed.
func DisposeMany[K comparable, V any](src stream.Stream[change.ChangeSet[K, V]]) stream.Stream[change.ChangeSet[K, V]] {
	mustNotBeNil("source", src == nil)
	return stream.Create(func(o stream.Observer[change.ChangeSet[K, V]]) stream.Subscription {
		gate := &stream.Gate{}
		live := map[K]V{}

		sub := src.Subscribe(stream.GateObserver(gate, stream.Forward(o, func(cs change.ChangeSet[K, V]) {
			var done []V
			for _, c := range cs {
				switch c.Reason {
				case change.Add, change.Refresh:
					live[c.Key] = c.Current
				case change.Update:
					live[c.Key] = c.Current
					if prev, ok := c.Previous.Get(); ok {
						done = append(done, prev)
					}
				case change.Remove:
					delete(live, c.Key)
					done = append(done, c.Current)
				}
			}
			o.OnNext(cs)
			for _, v := range done {
				closeItem(v)
			}
		})))

		return stream.NewSubscription(func() {
			sub.Dispose()
			gate.Do(func() {
				for k, v := range live {
					closeItem(v)
					delete(live, k)
				}
			})
		})
	})
}

func closeItem[V any](v V) {
	c, ok := any(v).(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		log.Error(err, "dispose-many: failed to close item")
	}
}
