package stream

// Map converts every value of src with f.
func Map[T, U any](src Stream[T], f func(T) U) Stream[U] {
	return Create(func(o Observer[U]) Subscription {
		return src.Subscribe(Forward(o, func(v T) { o.OnNext(f(v)) }))
	})
}

// Just emits the given values and completes.
func Just[T any](values ...T) Stream[T] {
	return Create(func(o Observer[T]) Subscription {
		for _, v := range values {
			o.OnNext(v)
		}
		o.OnCompleted()
		return Empty
	})
}

// Never emits nothing and never terminates.
func Never[T any]() Stream[T] {
	return Create(func(Observer[T]) Subscription { return Empty })
}

// Throw fails immediately with err.
func Throw[T any](err error) Stream[T] {
	return Create(func(o Observer[T]) Subscription {
		o.OnError(err)
		return Empty
	})
}

// Subscribe is a shorthand for subscribing plain functions.
func Subscribe[T any](src Stream[T], next func(T), errFn func(error), completed func()) Subscription {
	return src.Subscribe(Funcs[T]{Next: next, Error: errFn, Completed: completed})
}

// Filter passes on the values of src matching pred.
func Filter[T any](src Stream[T], pred func(T) bool) Stream[T] {
	return Create(func(o Observer[T]) Subscription {
		return src.Subscribe(Forward(o, func(v T) {
			if pred(v) {
				o.OnNext(v)
			}
		}))
	})
}
