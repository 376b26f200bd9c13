package stream

import "sync"

// Subject is a hot multicast stream: every value pushed with OnNext reaches all observers
// subscribed at that time, in subscription order. Once terminated, late subscribers receive the
// terminal event immediately.
type Subject[T any] struct {
	mu        sync.RWMutex
	observers []*subjectEntry[T]
	nextID    uint64
	done      bool
	err       error
}

type subjectEntry[T any] struct {
	id       uint64
	observer Observer[T]
}

// NewSubject creates an empty subject.
func NewSubject[T any]() *Subject[T] { return &Subject[T]{} }

var _ Observer[int] = &Subject[int]{}
var _ Stream[int] = &Subject[int]{}

// Subscribe implements Stream.
func (s *Subject[T]) Subscribe(o Observer[T]) Subscription {
	s.mu.Lock()
	if s.done {
		err := s.err
		s.mu.Unlock()
		if err != nil {
			o.OnError(err)
		} else {
			o.OnCompleted()
		}
		return Empty
	}
	id := s.nextID
	s.nextID++
	s.observers = append(s.observers, &subjectEntry[T]{id: id, observer: o})
	s.mu.Unlock()

	return NewSubscription(func() { s.remove(id) })
}

func (s *Subject[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.observers {
		if e.id == id {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
			return
		}
	}
}

func (s *Subject[T]) snapshot() []*subjectEntry[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.observers
}

// OnNext pushes v to all current observers.
func (s *Subject[T]) OnNext(v T) {
	for _, e := range s.snapshot() {
		e.observer.OnNext(v)
	}
}

// OnError terminates the subject with err.
func (s *Subject[T]) OnError(err error) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done, s.err = true, err
	obs := s.observers
	s.observers = nil
	s.mu.Unlock()

	for _, e := range obs {
		e.observer.OnError(err)
	}
}

// OnCompleted terminates the subject normally.
func (s *Subject[T]) OnCompleted() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	obs := s.observers
	s.observers = nil
	s.mu.Unlock()

	for _, e := range obs {
		e.observer.OnCompleted()
	}
}

// HasObservers reports whether anyone is subscribed.
func (s *Subject[T]) HasObservers() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers) > 0
}
