package operator

import (
	"context"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/semaphore"

	"github.com/l7mp/dcollections/pkg/cache"
	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/stream"
)

// AsyncOption configures TransformAsync.
type AsyncOption func(*asyncOptions)

type asyncOptions struct {
	ctx            context.Context
	maxConcurrency int64
	onError        func(error)
}

// WithContext sets the parent context of the per-item contexts.
func WithContext(ctx context.Context) AsyncOption {
	return func(o *asyncOptions) { o.ctx = ctx }
}

// WithMaxConcurrency bounds the number of selectors running at the same time.
func WithMaxConcurrency(n int) AsyncOption {
	if n <= 0 {
		panic(NewInvalidArgumentError("max concurrency", "must be positive"))
	}
	return func(o *asyncOptions) { o.maxConcurrency = int64(n) }
}

// WithAsyncErrorHandler reports selector failures to f instead of failing the stream. The error
// passed to f is a TransformError.
func WithAsyncErrorHandler(f func(error)) AsyncOption {
	return func(o *asyncOptions) { o.onError = f }
}

type asyncTask struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// TransformAsync projects every item with f on its own goroutine. Each in-flight item has its own
// context: removing or replacing the item cancels it and the late result, if any, is discarded.
// Results are emitted as they complete, one change set each. Removal of an emitted item is
// emitted right away and a Refresh of an emitted item passes through. A selector error fails the
// stream unless an error handler is set; errors after cancellation are dropped. Disposing the
// subscription cancels everything still pending and the output completes once the upstream has
// completed and nothing is pending.
func TransformAsync[K comparable, V, W any](src stream.Stream[change.ChangeSet[K, V]], f func(context.Context, V, K) (W, error),
	opts ...AsyncOption) stream.Stream[change.ChangeSet[K, W]] {
	mustNotBeNil("source", src == nil)
	mustNotBeNil("selector", f == nil)

	cfg := asyncOptions{ctx: context.Background()}
	for _, opt := range opts {
		opt(&cfg)
	}

	return stream.Create(func(o stream.Observer[change.ChangeSet[K, W]]) stream.Subscription {
		var (
			gate        = &stream.Gate{}
			state       = cache.NewChangeAwareCache[K, W]()
			inflight    = map[K]*asyncTask{}
			upstreamEnd bool
			sem         *semaphore.Weighted
		)
		if cfg.maxConcurrency > 0 {
			sem = semaphore.NewWeighted(cfg.maxConcurrency)
		}
		ctx, cancel := context.WithCancel(cfg.ctx)

		emit := func() {
			if cs := state.CaptureChanges(); len(cs) > 0 {
				o.OnNext(cs)
			}
		}
		maybeComplete := func() {
			if upstreamEnd && len(inflight) == 0 {
				o.OnCompleted()
			}
		}
		abort := func(key K) {
			if t, ok := inflight[key]; ok {
				t.cancel()
				delete(inflight, key)
				log.V(5).Info("transform-async: cancelled pending transform", "key", key)
			}
		}

		finish := func(t *asyncTask, key K, v V, w W, err error) {
			if inflight[key] != t {
				// superseded or removed meanwhile
				return
			}
			delete(inflight, key)
			t.cancel()
			switch {
			case err == nil:
				state.AddOrUpdate(key, w)
				emit()
			case t.ctx.Err() != nil || errors.Is(err, context.Canceled):
			case cfg.onError != nil:
				cfg.onError(TransformError[K, V]{Key: key, Source: v, Err: err})
			default:
				o.OnError(TransformError[K, V]{Key: key, Source: v, Err: err})
				return
			}
			maybeComplete()
		}
		start := func(key K, v V) {
			abort(key)
			tctx, tcancel := context.WithCancel(ctx)
			t := &asyncTask{ctx: tctx, cancel: tcancel}
			inflight[key] = t
			go func() {
				if sem != nil {
					if err := sem.Acquire(tctx, 1); err != nil {
						var zero W
						gate.Do(func() { finish(t, key, v, zero, err) })
						return
					}
					defer sem.Release(1)
				}
				w, err := f(tctx, v, key)
				gate.Do(func() { finish(t, key, v, w, err) })
			}()
		}

		sub := src.Subscribe(stream.GateObserver(gate, stream.Funcs[change.ChangeSet[K, V]]{
			Next: func(cs change.ChangeSet[K, V]) {
				for i := range cs {
					c := &cs[i]
					switch c.Reason {
					case change.Add, change.Update:
						start(c.Key, c.Current)
					case change.Remove:
						abort(c.Key)
						state.Remove(c.Key)
					case change.Refresh:
						if state.Contains(c.Key) {
							state.Refresh(c.Key)
						}
					}
				}
				emit()
				maybeComplete()
			},
			Error: o.OnError,
			Completed: func() {
				upstreamEnd = true
				maybeComplete()
			},
		}))

		return stream.NewSubscription(func() {
			sub.Dispose()
			cancel()
			log.V(2).Info("transform-async: disposed")
		})
	})
}
