// Package stream is the push-based substrate change sets flow on. A Stream delivers values to
// its Observers synchronously on the goroutine that produces them; every Subscribe returns a
// Subscription whose Dispose detaches the observer and releases whatever the subscription holds.
package stream

import (
	"sync"
	"sync/atomic"
)

// Observer receives the values of a stream. OnError and OnCompleted are terminal: no further
// calls follow either of them.
type Observer[T any] interface {
	OnNext(T)
	OnError(error)
	OnCompleted()
}

// Stream is a source of values that can be subscribed to.
type Stream[T any] interface {
	Subscribe(Observer[T]) Subscription
}

// Subscription is the handle of a live subscription.
type Subscription interface {
	Dispose()
}

// Funcs adapts plain functions to an Observer. Nil fields are ignored.
type Funcs[T any] struct {
	Next      func(T)
	Error     func(error)
	Completed func()
}

func (f Funcs[T]) OnNext(v T) {
	if f.Next != nil {
		f.Next(v)
	}
}

func (f Funcs[T]) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

func (f Funcs[T]) OnCompleted() {
	if f.Completed != nil {
		f.Completed()
	}
}

// Forward returns an observer that calls next for every value and passes terminal events on to
// out unchanged.
func Forward[T, U any](out Observer[U], next func(T)) Observer[T] {
	return Funcs[T]{Next: next, Error: out.OnError, Completed: out.OnCompleted}
}

// NewSubscription wraps a dispose function so that it runs at most once.
func NewSubscription(dispose func()) Subscription {
	return &funcSubscription{dispose: dispose}
}

type funcSubscription struct {
	once    sync.Once
	dispose func()
}

func (s *funcSubscription) Dispose() {
	s.once.Do(func() {
		if s.dispose != nil {
			s.dispose()
		}
	})
}

// Empty is a subscription that holds nothing.
var Empty Subscription = NewSubscription(nil)

// Composite disposes a group of subscriptions together.
type Composite struct {
	mu       sync.Mutex
	subs     []Subscription
	disposed bool
}

// NewComposite creates a composite subscription holding subs.
func NewComposite(subs ...Subscription) *Composite {
	return &Composite{subs: subs}
}

// Add appends a subscription; it is disposed immediately if the composite already was.
func (c *Composite) Add(sub Subscription) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		sub.Dispose()
		return
	}
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
}

// Dispose disposes every held subscription in reverse order of addition.
func (c *Composite) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for i := len(subs) - 1; i >= 0; i-- {
		subs[i].Dispose()
	}
}

// Create makes a cold stream: subscribe runs once per subscriber and returns the resources of
// that subscription. The observer handed to subscribe drops every call after a terminal event or
// after the subscription was disposed, and a terminal event disposes the subscription's
// resources.
func Create[T any](subscribe func(Observer[T]) Subscription) Stream[T] {
	return createStream[T](subscribe)
}

type createStream[T any] func(Observer[T]) Subscription

func (f createStream[T]) Subscribe(o Observer[T]) Subscription {
	s := &safeObserver[T]{observer: o}
	s.attach(f(s))
	return s
}

type safeObserver[T any] struct {
	observer Observer[T]
	done     atomic.Bool

	mu       sync.Mutex
	upstream Subscription
	detached bool
}

func (s *safeObserver[T]) OnNext(v T) {
	if s.done.Load() {
		return
	}
	s.observer.OnNext(v)
}

func (s *safeObserver[T]) OnError(err error) {
	if s.done.Swap(true) {
		return
	}
	s.observer.OnError(err)
	s.Dispose()
}

func (s *safeObserver[T]) OnCompleted() {
	if s.done.Swap(true) {
		return
	}
	s.observer.OnCompleted()
	s.Dispose()
}

func (s *safeObserver[T]) attach(sub Subscription) {
	if sub == nil {
		return
	}
	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		sub.Dispose()
		return
	}
	s.upstream = sub
	s.mu.Unlock()
}

func (s *safeObserver[T]) Dispose() {
	s.done.Store(true)
	s.mu.Lock()
	s.detached = true
	sub := s.upstream
	s.upstream = nil
	s.mu.Unlock()
	if sub != nil {
		sub.Dispose()
	}
}
