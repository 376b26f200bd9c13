package list

import (
	"reflect"
	"slices"
	"sync"

	"github.com/go-logr/logr"

	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/stream"
)

// Updater is the edit surface handed to SourceList.Edit. All calls made through one Updater form
// a single batch.
type Updater[T any] interface {
	Add(item T)
	AddRange(items ...T)
	Insert(index int, item T) error
	InsertRange(index int, items ...T) error
	// Remove removes the first item equal to item and reports whether one was found.
	Remove(item T) bool
	RemoveAt(index int) error
	RemoveRange(index, count int) error
	// RemoveMany removes every item matching f and returns how many were removed.
	RemoveMany(f func(T) bool) int
	// Replace replaces the first item equal to old and reports whether one was found.
	Replace(old, item T) bool
	ReplaceAt(index int, item T) error
	Move(from, to int) error
	Refresh(index int) error
	Clear()
	Count() int
	At(index int) (T, error)
}

// Option configures a SourceList.
type Option func(*options)

type options struct {
	log   logr.Logger
	name  string
	equal func(a, b any) bool
}

// WithLogger sets the logger of the list.
func WithLogger(log logr.Logger) Option { return func(o *options) { o.log = log } }

// WithName names the list in log lines.
func WithName(name string) Option { return func(o *options) { o.name = name } }

// WithEquality sets the equality used by Remove and Replace. The default is reflect.DeepEqual.
func WithEquality[T any](eq func(a, b T) bool) Option {
	return func(o *options) { o.equal = func(a, b any) bool { return eq(a.(T), b.(T)) } }
}

type versioned[T any] struct {
	version uint64
	changes change.ListChangeSet[T]
}

// SourceList is the index-ordered source of truth. Every edit batch produces at most one list
// change set. Batches are serialized; subscribers are notified synchronously on the editing
// goroutine and must not edit the same list from within a notification.
type SourceList[T any] struct {
	writeMu  sync.Mutex
	mu       sync.RWMutex
	data     *ChangeAwareList[T]
	version  uint64
	disposed bool
	limiters []*limiter[T]

	equal   func(a, b T) bool
	changes *stream.Subject[versioned[T]]
	log     logr.Logger
}

// NewSourceList creates an empty list.
func NewSourceList[T any](opts ...Option) *SourceList[T] {
	o := options{log: logr.Discard(), name: "source-list"}
	for _, opt := range opts {
		opt(&o)
	}
	eq := func(a, b T) bool { return reflect.DeepEqual(a, b) }
	if o.equal != nil {
		eq = func(a, b T) bool { return o.equal(a, b) }
	}
	return &SourceList[T]{
		data:    NewChangeAwareList[T](),
		equal:   eq,
		changes: stream.NewSubject[versioned[T]](),
		log:     o.log.WithName(o.name),
	}
}

// Edit runs update as one batch. If update returns an error the list is rolled back to its state
// before the batch, nothing is emitted and the error is returned. A panicking update is rolled
// back the same way before the panic is passed on.
func (l *SourceList[T]) Edit(update func(Updater[T]) error) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	v, evictions, err := l.commit(update)
	if err != nil || len(v.changes) == 0 {
		return err
	}
	cs := v.changes
	l.log.V(4).Info("list: batch committed", "version", v.version, "adds", cs.Adds(),
		"removes", cs.Removes(), "moves", cs.Moves())

	l.changes.OnNext(v)
	for _, e := range evictions {
		e.limiter.evicted.OnNext(e.items)
	}
	return nil
}

// commit applies update and the size limits under the data lock.
func (l *SourceList[T]) commit(update func(Updater[T]) error) (versioned[T], []eviction[T], error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disposed {
		return versioned[T]{}, nil, ErrDisposed
	}

	backup := slices.Clone(l.data.items)
	applied := false
	defer func() {
		if !applied {
			l.log.V(2).Info("list: edit batch aborted, rolling back")
			l.data.restore(backup)
		}
	}()
	if err := update(&updater[T]{list: l}); err != nil {
		l.log.V(4).Info("list: edit batch rolled back", "error", err.Error())
		return versioned[T]{}, nil, err
	}
	applied = true

	cs := l.data.CaptureChanges()
	var evictions []eviction[T]
	for i, lim := range l.limiters {
		var evicted []T
		n := len(cs)
		cs, evicted = lim.enforce(l.data, cs)
		if len(evicted) == 0 {
			continue
		}
		evictions = append(evictions, eviction[T]{limiter: lim, items: evicted})
		// limiters that already ran must see the evictions too
		for _, prev := range l.limiters[:i] {
			prev.track(cs[n:])
		}
	}
	if len(cs) == 0 {
		return versioned[T]{}, nil, nil
	}
	l.version++
	return versioned[T]{version: l.version, changes: cs}, evictions, nil
}

// Add appends item.
func (l *SourceList[T]) Add(item T) {
	_ = l.Edit(func(u Updater[T]) error { u.Add(item); return nil })
}

// AddRange appends items as one AddRange change.
func (l *SourceList[T]) AddRange(items ...T) {
	_ = l.Edit(func(u Updater[T]) error { u.AddRange(items...); return nil })
}

// Insert inserts item at index.
func (l *SourceList[T]) Insert(index int, item T) error {
	return l.Edit(func(u Updater[T]) error { return u.Insert(index, item) })
}

// InsertRange inserts items at index as one AddRange change.
func (l *SourceList[T]) InsertRange(index int, items ...T) error {
	return l.Edit(func(u Updater[T]) error { return u.InsertRange(index, items...) })
}

// Remove removes the first item equal to item.
func (l *SourceList[T]) Remove(item T) bool {
	found := false
	_ = l.Edit(func(u Updater[T]) error { found = u.Remove(item); return nil })
	return found
}

// RemoveAt removes the item at index.
func (l *SourceList[T]) RemoveAt(index int) error {
	return l.Edit(func(u Updater[T]) error { return u.RemoveAt(index) })
}

// RemoveRange removes count items starting at index as one RemoveRange change.
func (l *SourceList[T]) RemoveRange(index, count int) error {
	return l.Edit(func(u Updater[T]) error { return u.RemoveRange(index, count) })
}

// RemoveMany removes every item matching f.
func (l *SourceList[T]) RemoveMany(f func(T) bool) int {
	n := 0
	_ = l.Edit(func(u Updater[T]) error { n = u.RemoveMany(f); return nil })
	return n
}

// Replace replaces the first item equal to old with item.
func (l *SourceList[T]) Replace(old, item T) bool {
	found := false
	_ = l.Edit(func(u Updater[T]) error { found = u.Replace(old, item); return nil })
	return found
}

// ReplaceAt replaces the item at index.
func (l *SourceList[T]) ReplaceAt(index int, item T) error {
	return l.Edit(func(u Updater[T]) error { return u.ReplaceAt(index, item) })
}

// Move moves the item at from to position to.
func (l *SourceList[T]) Move(from, to int) error {
	return l.Edit(func(u Updater[T]) error { return u.Move(from, to) })
}

// Refresh signals an in-place mutation of the item at index.
func (l *SourceList[T]) Refresh(index int) error {
	return l.Edit(func(u Updater[T]) error { return u.Refresh(index) })
}

// Clear removes every item; nothing is emitted for an empty list.
func (l *SourceList[T]) Clear() {
	_ = l.Edit(func(u Updater[T]) error { u.Clear(); return nil })
}

// Items returns a copy of the current items.
func (l *SourceList[T]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.data.Items()
}

// Count returns the number of items.
func (l *SourceList[T]) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.data.Count()
}

// Connect replays the current content as one AddRange at index 0 (nothing for an empty list) and
// then streams every committed change set.
func (l *SourceList[T]) Connect() stream.Stream[change.ListChangeSet[T]] {
	return stream.Create(func(o stream.Observer[change.ListChangeSet[T]]) stream.Subscription {
		return l.connect(func(initial []T) {
			if len(initial) > 0 {
				o.OnNext(change.ListChangeSet[T]{change.NewListAddRange(initial, 0)})
			}
		}, o.OnNext, o.OnCompleted)
	})
}

// CountChanged streams the number of items whenever it changes, starting with the current count.
func (l *SourceList[T]) CountChanged() stream.Stream[int] {
	return stream.Create(func(o stream.Observer[int]) stream.Subscription {
		count := 0
		return l.connect(func(initial []T) {
			count = len(initial)
			o.OnNext(count)
		}, func(cs change.ListChangeSet[T]) {
			if d := cs.Adds() - cs.Removes(); d != 0 {
				count += d
				o.OnNext(count)
			}
		}, o.OnCompleted)
	})
}

func (l *SourceList[T]) connect(initial func([]T), next func(change.ListChangeSet[T]), completed func()) stream.Subscription {
	gate := &stream.Gate{}
	sub := stream.Empty
	gate.Do(func() {
		l.mu.RLock()
		snapshot := l.data.Items()
		seen := l.version
		disposed := l.disposed
		if !disposed {
			sub = l.changes.Subscribe(stream.Funcs[versioned[T]]{
				Next: func(v versioned[T]) {
					if v.version <= seen {
						return
					}
					gate.Do(func() { next(v.changes) })
				},
				Completed: func() { gate.Do(completed) },
			})
		}
		l.mu.RUnlock()

		if disposed {
			completed()
			return
		}
		initial(snapshot)
	})
	return sub
}

// Dispose completes every subscriber and clears the list without emitting.
func (l *SourceList[T]) Dispose() {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return
	}
	l.disposed = true
	l.data.restore(nil)
	limiters := l.limiters
	l.limiters = nil
	l.mu.Unlock()

	l.log.V(2).Info("list: disposed")
	l.changes.OnCompleted()
	for _, lim := range limiters {
		lim.evicted.OnCompleted()
	}
}

type updater[T any] struct {
	list *SourceList[T]
}

func (u *updater[T]) data() *ChangeAwareList[T] { return u.list.data }

func (u *updater[T]) Add(item T)                              { u.data().Add(item) }
func (u *updater[T]) AddRange(items ...T)                     { u.data().AddRange(items...) }
func (u *updater[T]) Insert(index int, item T) error          { return u.data().Insert(index, item) }
func (u *updater[T]) InsertRange(index int, items ...T) error { return u.data().InsertRange(index, items...) }
func (u *updater[T]) RemoveAt(index int) error                { return u.data().RemoveAt(index) }
func (u *updater[T]) RemoveRange(index, count int) error      { return u.data().RemoveRange(index, count) }
func (u *updater[T]) RemoveMany(f func(T) bool) int           { return u.data().RemoveMany(f) }
func (u *updater[T]) ReplaceAt(index int, item T) error       { return u.data().ReplaceAt(index, item) }
func (u *updater[T]) Move(from, to int) error                 { return u.data().Move(from, to) }
func (u *updater[T]) Refresh(index int) error                 { return u.data().Refresh(index) }
func (u *updater[T]) Clear()                                  { u.data().Clear() }
func (u *updater[T]) Count() int                              { return u.data().Count() }
func (u *updater[T]) At(index int) (T, error)                 { return u.data().At(index) }

func (u *updater[T]) Remove(item T) bool {
	i := u.data().IndexFunc(func(v T) bool { return u.list.equal(v, item) })
	if i < 0 {
		return false
	}
	return u.data().RemoveAt(i) == nil
}

func (u *updater[T]) Replace(old, item T) bool {
	i := u.data().IndexFunc(func(v T) bool { return u.list.equal(v, old) })
	if i < 0 {
		return false
	}
	return u.data().ReplaceAt(i, item) == nil
}
