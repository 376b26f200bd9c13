package operator

import (
	"fmt"

	"github.com/l7mp/dcollections/pkg/cache"
	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/stream"
)

// TransformError reports an item the selector of TransformSafe or TransformAsync failed on.
type TransformError[K comparable, V any] struct {
	Key    K
	Source V
	Err    error
}

func (e TransformError[K, V]) Error() string {
	return fmt.Sprintf("transform failed for key %v: %v", e.Key, e.Err)
}

func (e TransformError[K, V]) Unwrap() error { return e.Err }

// TransformOption configures Transform and TransformSafe.
type TransformOption func(*transformOptions)

type transformOptions struct {
	onRefresh bool
	force     any
}

// WithTransformOnRefresh re-runs the selector on Refresh and emits the result as an Update.
func WithTransformOnRefresh() TransformOption {
	return func(o *transformOptions) { o.onRefresh = true }
}

// WithForceTransform re-runs the selector on every current item matching a predicate received on
// force. The stream must be a stream.Stream[func(V, K) bool] for the item and key types of the
// transform it is passed to.
func WithForceTransform[K comparable, V any](force stream.Stream[func(V, K) bool]) TransformOption {
	return func(o *transformOptions) { o.force = force }
}

// Transform projects every item with f, preserving keys and reasons. Updates carry the projection
// of the previous value.
func Transform[K comparable, V, W any](src stream.Stream[change.ChangeSet[K, V]], f func(V, K) W, opts ...TransformOption) stream.Stream[change.ChangeSet[K, W]] {
	mustNotBeNil("selector", f == nil)
	return transform(src, "transform", func(v V, k K) (W, error) { return f(v, k), nil }, nil, opts)
}

// TransformSafe projects every item with f. An item f fails on is left out of the output: a
// failed Add establishes no entry and a failed Update keeps the previous projection. Every
// failure is reported once to onError.
func TransformSafe[K comparable, V, W any](src stream.Stream[change.ChangeSet[K, V]], f func(V, K) (W, error),
	onError func(TransformError[K, V]), opts ...TransformOption) stream.Stream[change.ChangeSet[K, W]] {
	mustNotBeNil("selector", f == nil)
	mustNotBeNil("error handler", onError == nil)
	return transform(src, "transform-safe", f, onError, opts)
}

func transform[K comparable, V, W any](src stream.Stream[change.ChangeSet[K, V]], name string, f func(V, K) (W, error),
	onError func(TransformError[K, V]), opts []TransformOption) stream.Stream[change.ChangeSet[K, W]] {
	mustNotBeNil("source", src == nil)

	o := transformOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	var force stream.Stream[func(V, K) bool]
	if o.force != nil {
		s, ok := o.force.(stream.Stream[func(V, K) bool])
		if !ok {
			panic(NewInvalidArgumentError("force transform stream", fmt.Sprintf("has type %T", o.force)))
		}
		force = s
	}

	t := &transformer[K, V, W]{name: name, f: f, onError: onError, onRefresh: o.onRefresh}
	if force == nil {
		return apply(src, name, func() stage[K, V, K, W] { return t.newState().process })
	}

	return stream.Create(func(out stream.Observer[change.ChangeSet[K, W]]) stream.Subscription {
		gate := &stream.Gate{}
		state := t.newState()
		emit := func(cs change.ChangeSet[K, W]) {
			if len(cs) > 0 {
				out.OnNext(cs)
			}
		}

		subs := stream.NewComposite()
		subs.Add(force.Subscribe(stream.GateObserver(gate, stream.Funcs[func(V, K) bool]{
			Next: func(pred func(V, K) bool) {
				if pred != nil {
					emit(state.force(pred))
				}
			},
			Error: out.OnError,
		})))
		subs.Add(src.Subscribe(stream.GateObserver(gate, stream.Forward(out, func(cs change.ChangeSet[K, V]) {
			ret, _ := state.process(cs)
			emit(ret)
		}))))
		return subs
	})
}

type transformer[K comparable, V, W any] struct {
	name      string
	f         func(V, K) (W, error)
	onError   func(TransformError[K, V])
	onRefresh bool
}

func (t *transformer[K, V, W]) newState() *transformState[K, V, W] {
	return &transformState[K, V, W]{
		transformer: t,
		sources:     cache.NewCache[K, V](),
		state:       cache.NewChangeAwareCache[K, W](),
	}
}

type transformState[K comparable, V, W any] struct {
	*transformer[K, V, W]
	sources *cache.Cache[K, V]
	state   *cache.ChangeAwareCache[K, W]
}

func (s *transformState[K, V, W]) process(cs change.ChangeSet[K, V]) (change.ChangeSet[K, W], error) {
	for i := range cs {
		c := &cs[i]
		switch c.Reason {
		case change.Add, change.Update:
			s.sources.Set(c.Key, c.Current)
			s.apply(c.Key, c.Current)
		case change.Remove:
			s.sources.Delete(c.Key)
			s.state.Remove(c.Key)
		case change.Refresh:
			s.sources.Set(c.Key, c.Current)
			if s.onRefresh || !s.state.Contains(c.Key) {
				s.apply(c.Key, c.Current)
			} else {
				s.state.Refresh(c.Key)
			}
		}
	}
	return s.state.CaptureChanges(), nil
}

func (s *transformState[K, V, W]) apply(key K, v V) {
	w, err := s.f(v, key)
	if err != nil {
		log.V(4).Info("transform: selector failed", "stage", s.name, "key", key, "error", err.Error())
		s.onError(TransformError[K, V]{Key: key, Source: v, Err: err})
		return
	}
	s.state.AddOrUpdate(key, w)
}

func (s *transformState[K, V, W]) force(pred func(V, K) bool) change.ChangeSet[K, W] {
	s.sources.Range(func(k K, v V) bool {
		if pred(v, k) {
			s.apply(k, v)
		}
		return true
	})
	log.V(4).Info("transform: forced re-transform", "stage", s.name, "changes", s.state.HasChanges())
	return s.state.CaptureChanges()
}
