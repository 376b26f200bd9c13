package operator

import (
	"slices"
	"sort"

	"github.com/l7mp/dcollections/pkg/cache"
	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/stream"
)

// SortOption configures Sort and SortDynamic.
type SortOption func(*sortOptions)

type sortOptions struct {
	resort stream.Stream[struct{}]
}

// WithResort re-sorts the whole content every time trigger emits. Use it when items are mutated in
// place without a Refresh reaching the sorter.
func WithResort(trigger stream.Stream[struct{}]) SortOption {
	return func(o *sortOptions) { o.resort = trigger }
}

// Sort keeps the upstream items ordered by cmp and emits change sets whose changes carry
// positions. Items comparing equal keep their arrival order. An Update or Refresh that leaves an
// item in order between its neighbours does not move it; a Refresh that moves it is emitted as
// Moved.
func Sort[K comparable, V any](src stream.Stream[change.ChangeSet[K, V]], cmp func(a, b V) int, opts ...SortOption) stream.Stream[change.SortedChangeSet[K, V]] {
	mustNotBeNil("comparer", cmp == nil)
	return SortDynamic(src, stream.Just(cmp), opts...)
}

// SortDynamic sorts with the latest comparer received on comparers. Nothing is emitted before the
// first comparer arrives. A new comparer re-sorts the content and emits the Moved changes that
// turn the old order into the new one. A nil comparer fails the stream.
func SortDynamic[K comparable, V any](src stream.Stream[change.ChangeSet[K, V]], comparers stream.Stream[func(a, b V) int],
	opts ...SortOption) stream.Stream[change.SortedChangeSet[K, V]] {
	mustNotBeNil("source", src == nil)
	mustNotBeNil("comparer stream", comparers == nil)

	cfg := sortOptions{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return stream.Create(func(o stream.Observer[change.SortedChangeSet[K, V]]) stream.Subscription {
		gate := &stream.Gate{}
		s := &sorter[K, V]{values: cache.NewCache[K, V]()}

		emit := func(cs change.ChangeSet[K, V], reason change.SortReason) {
			if len(cs) == 0 {
				return
			}
			s.loaded = true
			o.OnNext(change.SortedChangeSet[K, V]{Changes: cs, SortedItems: slices.Clone(s.items), Reason: reason})
		}

		subs := stream.NewComposite()
		subs.Add(comparers.Subscribe(stream.GateObserver(gate, stream.Funcs[func(a, b V) int]{
			Next: func(cmp func(a, b V) int) {
				if cmp == nil {
					o.OnError(NewInvalidArgumentError("comparer", "must not be nil"))
					return
				}
				first := s.cmp == nil
				s.cmp = cmp
				if first {
					emit(s.load(), s.loadReason())
					return
				}
				log.V(4).Info("sort: comparer changed", "items", len(s.items))
				emit(s.resort(), change.SortComparerChanged)
			},
			Error: o.OnError,
		})))
		if cfg.resort != nil {
			subs.Add(cfg.resort.Subscribe(stream.GateObserver(gate, stream.Funcs[struct{}]{
				Next: func(struct{}) {
					if s.cmp != nil {
						log.V(4).Info("sort: resort requested", "items", len(s.items))
						emit(s.resort(), change.SortReorder)
					}
				},
				Error: o.OnError,
			})))
		}
		subs.Add(src.Subscribe(stream.GateObserver(gate, stream.Forward(o, func(cs change.ChangeSet[K, V]) {
			if s.cmp == nil {
				s.values.Clone(cs)
				return
			}
			if len(s.items) == 0 && onlyAdds(cs) {
				s.values.Clone(cs)
				emit(s.load(), s.loadReason())
				return
			}
			out, err := s.process(cs)
			if err != nil {
				log.Error(err, "sort: inconsistent upstream")
				o.OnError(err)
				return
			}
			emit(out, change.SortDataChanged)
		}))))
		return subs
	})
}

// Unsorted drops the positional information of a sorted stream.
func Unsorted[K comparable, V any](src stream.Stream[change.SortedChangeSet[K, V]]) stream.Stream[change.ChangeSet[K, V]] {
	mustNotBeNil("source", src == nil)
	return stream.Create(func(o stream.Observer[change.ChangeSet[K, V]]) stream.Subscription {
		return src.Subscribe(stream.Forward(o, func(s change.SortedChangeSet[K, V]) {
			out := make(change.ChangeSet[K, V], 0, len(s.Changes))
			for _, c := range s.Changes {
				if c.Reason == change.Moved {
					continue
				}
				out = append(out, c.WithIndex(-1, -1))
			}
			if len(out) > 0 {
				o.OnNext(out)
			}
		}))
	})
}

func onlyAdds[K comparable, V any](cs change.ChangeSet[K, V]) bool {
	for i := range cs {
		if cs[i].Reason != change.Add {
			return false
		}
	}
	return true
}

// sorter holds the upstream content twice: in arrival order and, once a comparer is known, in
// sorted order.
type sorter[K comparable, V any] struct {
	cmp    func(a, b V) int
	values *cache.Cache[K, V]
	items  []change.KeyValue[K, V]
	loaded bool
}

func (s *sorter[K, V]) compare(a, b change.KeyValue[K, V]) int { return s.cmp(a.Value, b.Value) }

func (s *sorter[K, V]) loadReason() change.SortReason {
	if s.loaded {
		return change.SortDataChanged
	}
	return change.SortInitialLoad
}

// load sorts the whole content and reports it as Adds at ascending positions.
func (s *sorter[K, V]) load() change.ChangeSet[K, V] {
	s.items = s.values.KeyValues()
	slices.SortStableFunc(s.items, s.compare)
	out := make(change.ChangeSet[K, V], len(s.items))
	for i, kv := range s.items {
		out[i] = change.NewAdd(kv.Key, kv.Value).WithIndex(i, -1)
	}
	return out
}

// resort re-sorts the content and returns the moves that reproduce the new order.
func (s *sorter[K, V]) resort() change.ChangeSet[K, V] {
	target := slices.Clone(s.items)
	slices.SortStableFunc(target, s.compare)

	var out change.ChangeSet[K, V]
	for i := range target {
		if s.items[i].Key == target[i].Key {
			continue
		}
		j := i + 1 + slices.IndexFunc(s.items[i+1:], func(kv change.KeyValue[K, V]) bool { return kv.Key == target[i].Key })
		kv := s.items[j]
		s.items = slices.Delete(s.items, j, j+1)
		s.items = slices.Insert(s.items, i, kv)
		out = append(out, change.NewMoved(kv.Key, kv.Value, i, j))
	}
	return out
}

func (s *sorter[K, V]) process(cs change.ChangeSet[K, V]) (change.ChangeSet[K, V], error) {
	out := make(change.ChangeSet[K, V], 0, len(cs))
	for i := range cs {
		c := &cs[i]
		switch c.Reason {
		case change.Add, change.Update:
			prev, exists := s.values.Set(c.Key, c.Current)
			if !exists {
				pos := s.upperBound(c.Current)
				s.items = slices.Insert(s.items, pos, change.KeyValue[K, V]{Key: c.Key, Value: c.Current})
				out = append(out, change.NewAdd(c.Key, c.Current).WithIndex(pos, -1))
				continue
			}
			from, to, err := s.reposition(c.Key, prev, c.Current)
			if err != nil {
				return nil, err
			}
			out = append(out, change.NewUpdate(c.Key, c.Current, c.Previous.OrElse(prev)).WithIndex(to, from))
		case change.Refresh:
			prev, exists := s.values.Set(c.Key, c.Current)
			if !exists {
				return nil, NewUnknownKeyError("sort refresh", c.Key)
			}
			from, to, err := s.reposition(c.Key, prev, c.Current)
			if err != nil {
				return nil, err
			}
			if from == to {
				out = append(out, change.NewRefresh(c.Key, c.Current).WithIndex(to, to))
			} else {
				out = append(out, change.NewMoved(c.Key, c.Current, to, from))
			}
		case change.Remove:
			prev, exists := s.values.Delete(c.Key)
			if !exists {
				return nil, NewUnknownKeyError("sort remove", c.Key)
			}
			idx := s.indexOf(c.Key, prev)
			if idx < 0 {
				return nil, NewUnknownKeyError("sort remove", c.Key)
			}
			s.items = slices.Delete(s.items, idx, idx+1)
			out = append(out, change.NewRemove(c.Key, prev).WithIndex(idx, -1))
		}
	}
	return out, nil
}

// reposition takes key out of the order and puts it back with its new value. The item stays where
// it was if it is still ordered between its neighbours.
func (s *sorter[K, V]) reposition(key K, prev, v V) (int, int, error) {
	from := s.indexOf(key, prev)
	if from < 0 {
		return -1, -1, NewUnknownKeyError("sort", key)
	}
	s.items = slices.Delete(s.items, from, from+1)
	to := from
	if !s.fits(from, v) {
		to = s.upperBound(v)
	}
	s.items = slices.Insert(s.items, to, change.KeyValue[K, V]{Key: key, Value: v})
	return from, to, nil
}

func (s *sorter[K, V]) fits(i int, v V) bool {
	return (i == 0 || s.cmp(s.items[i-1].Value, v) <= 0) && (i == len(s.items) || s.cmp(v, s.items[i].Value) <= 0)
}

// upperBound returns the position after the last item not greater than v.
func (s *sorter[K, V]) upperBound(v V) int {
	return sort.Search(len(s.items), func(i int) bool { return s.cmp(s.items[i].Value, v) > 0 })
}

// indexOf finds key by binary search on its last known value and falls back to a linear scan when
// the value was mutated in place.
func (s *sorter[K, V]) indexOf(key K, v V) int {
	i := sort.Search(len(s.items), func(i int) bool { return s.cmp(s.items[i].Value, v) >= 0 })
	for ; i < len(s.items) && s.cmp(s.items[i].Value, v) == 0; i++ {
		if s.items[i].Key == key {
			return i
		}
	}
	return slices.IndexFunc(s.items, func(kv change.KeyValue[K, V]) bool { return kv.Key == key })
}
