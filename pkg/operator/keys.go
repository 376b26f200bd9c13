package operator

import (
	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/stream"
)

// AddKey turns an index-ordered stream into a keyed one. Range changes are expanded to one change
// per item, a Replace becomes an Update, or a Remove and an Add when the key changed, and Moves
// are dropped.
func AddKey[T any, K comparable](src stream.Stream[change.ListChangeSet[T]], keyOf func(T) K) stream.Stream[change.ChangeSet[K, T]] {
	mustNotBeNil("source", src == nil)
	mustNotBeNil("key selector", keyOf == nil)

	return stream.Create(func(o stream.Observer[change.ChangeSet[K, T]]) stream.Subscription {
		return src.Subscribe(stream.Forward(o, func(lcs change.ListChangeSet[T]) {
			var out change.ChangeSet[K, T]
			for _, c := range lcs {
				switch c.Reason {
				case change.ListAdd:
					out = append(out, change.NewAdd(keyOf(c.Item.Current), c.Item.Current))
				case change.ListAddRange:
					for _, item := range c.Range.Items {
						out = append(out, change.NewAdd(keyOf(item), item))
					}
				case change.ListRemove:
					out = append(out, change.NewRemove(keyOf(c.Item.Current), c.Item.Current))
				case change.ListRemoveRange, change.ListClear:
					for _, item := range c.Range.Items {
						out = append(out, change.NewRemove(keyOf(item), item))
					}
				case change.ListReplace:
					prev := c.Item.Previous.Value()
					k, pk := keyOf(c.Item.Current), keyOf(prev)
					if k == pk {
						out = append(out, change.NewUpdate(k, c.Item.Current, prev))
						continue
					}
					out = append(out, change.NewRemove(pk, prev), change.NewAdd(k, c.Item.Current))
				case change.ListRefresh:
					out = append(out, change.NewRefresh(keyOf(c.Item.Current), c.Item.Current))
				}
			}
			if len(out) > 0 {
				o.OnNext(out)
			}
		}))
	})
}

// Cast converts every value, previous values included, with f. Cast is stateless: keys, reasons
// and indices are kept.
func Cast[K comparable, V, W any](src stream.Stream[change.ChangeSet[K, V]], f func(V) W) stream.Stream[change.ChangeSet[K, W]] {
	mustNotBeNil("source", src == nil)
	mustNotBeNil("converter", f == nil)

	return stream.Map(src, func(cs change.ChangeSet[K, V]) change.ChangeSet[K, W] {
		out := make(change.ChangeSet[K, W], len(cs))
		for i, c := range cs {
			out[i] = change.Change[K, W]{Reason: c.Reason, Key: c.Key, Current: f(c.Current),
				CurrentIndex: c.CurrentIndex, PreviousIndex: c.PreviousIndex}
			if prev, ok := c.Previous.Get(); ok {
				out[i].Previous = change.Some(f(prev))
			}
		}
		return out
	})
}

// ChangeKey re-keys a stream with keyOf. An Update that changes the key of an item is emitted as a
// Remove under the old key followed by an Add under the new one.
func ChangeKey[K comparable, V any, K2 comparable](src stream.Stream[change.ChangeSet[K, V]], keyOf func(K, V) K2) stream.Stream[change.ChangeSet[K2, V]] {
	mustNotBeNil("source", src == nil)
	mustNotBeNil("key selector", keyOf == nil)

	return apply(src, "change-key", func() stage[K, V, K2, V] {
		keys := map[K]K2{}
		return func(cs change.ChangeSet[K, V]) (change.ChangeSet[K2, V], error) {
			out := make(change.ChangeSet[K2, V], 0, len(cs))
			for _, c := range cs {
				old, known := keys[c.Key]
				switch c.Reason {
				case change.Add:
					k := keyOf(c.Key, c.Current)
					keys[c.Key] = k
					out = append(out, change.NewAdd(k, c.Current))
				case change.Update:
					k := keyOf(c.Key, c.Current)
					keys[c.Key] = k
					switch {
					case !known:
						out = append(out, change.NewAdd(k, c.Current))
					case k == old:
						out = append(out, change.NewUpdate(k, c.Current, c.Previous.Value()))
					default:
						out = append(out, change.NewRemove(old, c.Previous.Value()), change.NewAdd(k, c.Current))
					}
				case change.Remove:
					if !known {
						return nil, NewUnknownKeyError("change key", c.Key)
					}
					delete(keys, c.Key)
					out = append(out, change.NewRemove(old, c.Current))
				case change.Refresh:
					if known {
						out = append(out, change.NewRefresh(old, c.Current))
					}
				}
			}
			return out, nil
		}
	})
}
