package change

type netChange[K comparable, V any] struct {
	key            K
	existedAtStart bool
	original       V
	exists         bool
	final          V
	written        bool
	refreshed      bool
	moved          *Change[K, V]
}

// Consolidate collapses the changes of one batch to their net observable effect per key:
//   - a key that was new at batch start and exists at the end yields one Add with the final value,
//   - a key that existed at batch start and exists at the end after an Add or Update yields one
//     Update carrying the batch-start value as previous and the final value as current,
//   - a key that existed at batch start and is gone at the end yields one Remove carrying the
//     last value the key held,
//   - an Add followed by a Remove yields nothing,
//   - a Refresh is dropped when the key also got an Add or Update and kept once otherwise.
//
// Keys are emitted in the order they were first touched. Indices are dropped, except for keys
// that only moved.
func Consolidate[K comparable, V any](cs ChangeSet[K, V]) ChangeSet[K, V] {
	if len(cs) <= 1 {
		return cs
	}

	index := make(map[K]*netChange[K, V], len(cs))
	order := make([]*netChange[K, V], 0, len(cs))
	for i := range cs {
		c := cs[i]
		n, ok := index[c.Key]
		if !ok {
			n = &netChange[K, V]{key: c.Key}
			index[c.Key] = n
			order = append(order, n)
			n.first(c)
			continue
		}
		n.next(c)
	}

	if len(order) == len(cs) {
		// every key touched once: nothing to collapse
		return cs
	}

	ret := make(ChangeSet[K, V], 0, len(order))
	for _, n := range order {
		if c, ok := n.result(); ok {
			ret = append(ret, c)
		}
	}
	return ret
}

func (n *netChange[K, V]) first(c Change[K, V]) {
	switch c.Reason {
	case Add:
		n.exists, n.final, n.written = true, c.Current, true
	case Update:
		n.existedAtStart, n.original = true, c.Previous.Value()
		n.exists, n.final, n.written = true, c.Current, true
	case Remove:
		n.existedAtStart, n.original, n.final = true, c.Current, c.Current
	case Refresh:
		n.existedAtStart, n.original = true, c.Current
		n.exists, n.final, n.refreshed = true, c.Current, true
	case Moved:
		n.existedAtStart, n.original = true, c.Current
		n.exists, n.final = true, c.Current
		n.moved = &c
	}
}

func (n *netChange[K, V]) next(c Change[K, V]) {
	switch c.Reason {
	case Add, Update:
		n.exists, n.final, n.written = true, c.Current, true
	case Remove:
		n.exists, n.final = false, c.Current
	case Refresh:
		if n.exists {
			n.final, n.refreshed = c.Current, true
		}
	case Moved:
		if n.exists {
			n.final = c.Current
			n.moved = &c
		}
	}
}

func (n *netChange[K, V]) result() (Change[K, V], bool) {
	switch {
	case !n.existedAtStart && n.exists:
		return NewAdd(n.key, n.final), true
	case n.existedAtStart && !n.exists:
		return NewRemove(n.key, n.final), true
	case n.existedAtStart && n.written:
		return NewUpdate(n.key, n.final, n.original), true
	case n.existedAtStart && n.refreshed:
		return NewRefresh(n.key, n.final), true
	case n.existedAtStart && n.moved != nil:
		return *n.moved, true
	}
	return Change[K, V]{}, false
}
