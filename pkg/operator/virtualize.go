package operator

import (
	"slices"

	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/stream"
)

// VirtualRequest asks for Size items starting at StartIndex of a sorted stream.
type VirtualRequest struct {
	StartIndex int
	Size       int
}

// VirtualResponse describes the window a virtual change set refers to.
type VirtualResponse struct {
	StartIndex int
	Size       int
	TotalSize  int
}

// VirtualChangeSet is a sorted change set restricted to a window. Indices are relative to the
// window and SortedItems holds the window content.
type VirtualChangeSet[K comparable, V any] struct {
	change.SortedChangeSet[K, V]
	Response VirtualResponse
}

// PageResponse describes the page a paged change set refers to. Pages are numbered from 0.
type PageResponse struct {
	Page      int
	PageSize  int
	TotalSize int
	Pages     int
}

// PagedChangeSet is a sorted change set restricted to a page.
type PagedChangeSet[K comparable, V any] struct {
	change.SortedChangeSet[K, V]
	Response PageResponse
}

// Virtualize restricts a sorted stream to the window requested last on requests. Nothing is
// emitted before the first request. Windows reaching past the data are cut to the available
// items; a request with a non-positive size fails the stream.
func Virtualize[K comparable, V any](src stream.Stream[change.SortedChangeSet[K, V]], requests stream.Stream[VirtualRequest]) stream.Stream[VirtualChangeSet[K, V]] {
	mustNotBeNil("source", src == nil)
	mustNotBeNil("request stream", requests == nil)

	return windowed(src, requests, "virtualize",
		func(req VirtualRequest) error {
			if req.Size <= 0 {
				return NewInvalidArgumentError("virtual size", "must be positive")
			}
			return nil
		},
		func(req VirtualRequest, total int) (int, int) { return max(req.StartIndex, 0), req.Size },
		func(s change.SortedChangeSet[K, V], req VirtualRequest, start, total int) VirtualChangeSet[K, V] {
			return VirtualChangeSet[K, V]{SortedChangeSet: s,
				Response: VirtualResponse{StartIndex: start, Size: len(s.SortedItems), TotalSize: total}}
		})
}

// Page restricts a sorted stream to page p of pageSize items, p being the page requested last on
// pages. Page p covers the items [p*pageSize, (p+1)*pageSize); pages past the last one are clamped
// to it and negative pages to the first. Page panics if pageSize is not positive.
func Page[K comparable, V any](src stream.Stream[change.SortedChangeSet[K, V]], pageSize int, pages stream.Stream[int]) stream.Stream[PagedChangeSet[K, V]] {
	mustNotBeNil("source", src == nil)
	mustNotBeNil("page stream", pages == nil)
	if pageSize <= 0 {
		panic(NewInvalidArgumentError("page size", "must be positive"))
	}

	return windowed(src, pages, "page",
		func(int) error { return nil },
		func(p, total int) (int, int) {
			p = min(max(p, 0), pageCount(total, pageSize)-1)
			return p * pageSize, pageSize
		},
		func(s change.SortedChangeSet[K, V], _ int, start, total int) PagedChangeSet[K, V] {
			return PagedChangeSet[K, V]{SortedChangeSet: s, Response: PageResponse{
				Page: start / pageSize, PageSize: pageSize, TotalSize: total, Pages: pageCount(total, pageSize)}}
		})
}

func pageCount(total, size int) int { return max((total+size-1)/size, 1) }

// Top restricts a sorted stream to its first n items. Top panics if n is not positive.
func Top[K comparable, V any](src stream.Stream[change.SortedChangeSet[K, V]], n int) stream.Stream[change.SortedChangeSet[K, V]] {
	mustNotBeNil("source", src == nil)
	if n <= 0 {
		panic(NewInvalidArgumentError("top size", "must be positive"))
	}

	return windowed(src, stream.Just(n), "top",
		func(int) error { return nil },
		func(n, _ int) (int, int) { return 0, n },
		func(s change.SortedChangeSet[K, V], _ int, _, _ int) change.SortedChangeSet[K, V] { return s })
}

// windowed is the common core of the windowing operators. bounds maps the last request and the
// current data size to a start index and a size; wrap decorates the window change set.
func windowed[K comparable, V any, Q any, Out any](src stream.Stream[change.SortedChangeSet[K, V]], requests stream.Stream[Q], name string,
	validate func(Q) error, bounds func(Q, int) (int, int),
	wrap func(change.SortedChangeSet[K, V], Q, int, int) Out) stream.Stream[Out] {
	return stream.Create(func(o stream.Observer[Out]) stream.Subscription {
		var (
			gate       = &stream.Gate{}
			all        []change.KeyValue[K, V]
			req        Q
			hasRequest bool
			w          = &window[K, V]{}
		)

		emit := func(updated change.ChangeSet[K, V], reason change.SortReason) {
			if !hasRequest {
				return
			}
			start, size := bounds(req, len(all))
			start = min(start, len(all))
			end := min(start+size, len(all))
			cs := w.update(all[start:end], updated)
			if len(cs) == 0 {
				return
			}
			log.V(4).Info("window changed", "stage", name, "start", start, "size", end-start,
				"total", len(all), "changes", len(cs))
			s := change.SortedChangeSet[K, V]{Changes: cs, SortedItems: slices.Clone(w.items), Reason: reason}
			o.OnNext(wrap(s, req, start, len(all)))
		}

		subs := stream.NewComposite()
		subs.Add(requests.Subscribe(stream.GateObserver(gate, stream.Funcs[Q]{
			Next: func(q Q) {
				if err := validate(q); err != nil {
					o.OnError(err)
					return
				}
				req, hasRequest = q, true
				emit(nil, change.SortReorder)
			},
			Error: o.OnError,
		})))
		subs.Add(src.Subscribe(stream.GateObserver(gate, stream.Forward(o, func(s change.SortedChangeSet[K, V]) {
			all = s.SortedItems
			emit(s.Changes, s.Reason)
		}))))
		return subs
	})
}

// window is the content of a window as last emitted.
type window[K comparable, V any] struct {
	items []change.KeyValue[K, V]
}

// update turns the window into next and returns the changes that do so: Removes for the items
// leaving, then Moves and Adds that put every position right, then Updates and Refreshes for items
// that stayed but changed upstream. Indices are relative to the window.
func (w *window[K, V]) update(next []change.KeyValue[K, V], updated change.ChangeSet[K, V]) change.ChangeSet[K, V] {
	var out change.ChangeSet[K, V]

	inNext := make(map[K]bool, len(next))
	for _, kv := range next {
		inNext[kv.Key] = true
	}
	working := slices.Clone(w.items)
	stayed := make(map[K]V, len(working))
	for i := len(working) - 1; i >= 0; i-- {
		kv := working[i]
		if inNext[kv.Key] {
			stayed[kv.Key] = kv.Value
			continue
		}
		out = append(out, change.NewRemove(kv.Key, kv.Value).WithIndex(i, -1))
		working = slices.Delete(working, i, i+1)
	}

	for i, kv := range next {
		if i < len(working) && working[i].Key == kv.Key {
			working[i] = kv
			continue
		}
		j := slices.IndexFunc(working, func(x change.KeyValue[K, V]) bool { return x.Key == kv.Key })
		if j < 0 {
			working = slices.Insert(working, i, kv)
			out = append(out, change.NewAdd(kv.Key, kv.Value).WithIndex(i, -1))
			continue
		}
		working = slices.Delete(working, j, j+1)
		working = slices.Insert(working, i, kv)
		out = append(out, change.NewMoved(kv.Key, kv.Value, i, j))
	}

	if len(updated) > 0 {
		pos := make(map[K]int, len(next))
		for i, kv := range next {
			pos[kv.Key] = i
		}
		for _, c := range updated {
			prev, ok := stayed[c.Key]
			if !ok {
				continue
			}
			i := pos[c.Key]
			switch c.Reason {
			case change.Update:
				out = append(out, change.NewUpdate(c.Key, next[i].Value, prev).WithIndex(i, i))
			case change.Refresh:
				out = append(out, change.NewRefresh(c.Key, next[i].Value).WithIndex(i, i))
			}
		}
	}

	w.items = working
	return out
}
