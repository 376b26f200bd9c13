package testutils

import (
	"sync"
	"time"

	"github.com/l7mp/dcollections/pkg/stream"
)

// Recorder subscribes to a stream and keeps everything it emits. It is safe to poll from
// gomega's Eventually while the stream emits from other goroutines.
type Recorder[T any] struct {
	mu        sync.Mutex
	values    []T
	err       error
	completed bool
	ch        chan T
	sub       stream.Subscription
}

// Record subscribes to src.
func Record[T any](src stream.Stream[T]) *Recorder[T] {
	r := &Recorder[T]{ch: make(chan T, 1024)}
	r.sub = src.Subscribe(stream.Funcs[T]{
		Next: func(v T) {
			r.mu.Lock()
			r.values = append(r.values, v)
			r.mu.Unlock()
			select {
			case r.ch <- v:
			default:
			}
		},
		Error: func(err error) {
			r.mu.Lock()
			r.err = err
			r.mu.Unlock()
		},
		Completed: func() {
			r.mu.Lock()
			r.completed = true
			r.mu.Unlock()
		},
	})
	return r
}

// Values returns a copy of the recorded values.
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.values...)
}

// Len returns the number of recorded values.
func (r *Recorder[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// Last returns the last recorded value.
func (r *Recorder[T]) Last() T {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		var zero T
		return zero
	}
	return r.values[len(r.values)-1]
}

// Err returns the error the stream failed with, if any.
func (r *Recorder[T]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Completed reports whether the stream completed.
func (r *Recorder[T]) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

// Reset drops the recorded values.
func (r *Recorder[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = nil
	for {
		select {
		case <-r.ch:
		default:
			return
		}
	}
}

// Dispose unsubscribes from the stream.
func (r *Recorder[T]) Dispose() { r.sub.Dispose() }

// TryNext waits for the next value within the specified timeout. Returns the value and true if
// successful, or the zero value and false if timeout occurs.
func (r *Recorder[T]) TryNext(timeout time.Duration) (T, bool) {
	select {
	case v := <-r.ch:
		return v, true
	case <-time.After(timeout):
		var zero T
		return zero, false
	}
}
