package stream

import "sync"

// Gate serializes work coming from several inputs of one operator. Do runs fn right away when
// the gate is idle; when the gate is busy, on this or another goroutine, fn is queued and run by
// the goroutine currently draining the gate. Re-entrant calls therefore never deadlock: they are
// run after the work that triggered them.
type Gate struct {
	mu       sync.Mutex
	queue    []func()
	draining bool
}

// Do runs or queues fn.
func (g *Gate) Do(fn func()) {
	g.mu.Lock()
	g.queue = append(g.queue, fn)
	if g.draining {
		g.mu.Unlock()
		return
	}
	g.draining = true
	for len(g.queue) > 0 {
		next := g.queue[0]
		g.queue[0] = nil
		g.queue = g.queue[1:]
		g.mu.Unlock()
		next()
		g.mu.Lock()
	}
	g.draining = false
	g.mu.Unlock()
}

// GateObserver returns an observer that runs every event of o through the gate.
func GateObserver[T any](g *Gate, o Observer[T]) Observer[T] {
	return Funcs[T]{
		Next:      func(v T) { g.Do(func() { o.OnNext(v) }) },
		Error:     func(err error) { g.Do(func() { o.OnError(err) }) },
		Completed: func() { g.Do(o.OnCompleted) },
	}
}
