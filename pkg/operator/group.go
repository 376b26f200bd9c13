package operator

import (
	"fmt"

	"github.com/l7mp/dcollections/pkg/cache"
	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/stream"
)

// Group is one partition produced by GroupOn. Its cache holds the members of the group and can be
// observed on its own; it is disposed, completing its subscribers, after the group was removed.
type Group[K comparable, V any, G comparable] struct {
	key   G
	cache *cache.SourceCache[K, V]
}

// Key returns the group key.
func (g *Group[K, V, G]) Key() G { return g.key }

// Cache returns the members of the group.
func (g *Group[K, V, G]) Cache() cache.ObservableCache[K, V] { return g.cache }

func (g *Group[K, V, G]) String() string { return fmt.Sprintf("Group(%v)", g.key) }

// GroupOn partitions the upstream items by groupOf. A group is added when its first member
// arrives and removed when its last member leaves. An Update or Refresh that changes the group of
// an item moves it between groups. The member edits of one upstream change set are applied to
// each group cache as one batch, and a group created and emptied by the same change set is never
// reported.
func GroupOn[K comparable, V any, G comparable](src stream.Stream[change.ChangeSet[K, V]], groupOf func(V) G) stream.Stream[change.ChangeSet[G, *Group[K, V, G]]] {
	return GroupOnWithRegroup(src, groupOf, nil)
}

// GroupOnWithRegroup is GroupOn that also re-evaluates the group of every item whenever regroup
// emits. A nil regroup stream never triggers.
func GroupOnWithRegroup[K comparable, V any, G comparable](src stream.Stream[change.ChangeSet[K, V]], groupOf func(V) G,
	regroup stream.Stream[struct{}]) stream.Stream[change.ChangeSet[G, *Group[K, V, G]]] {
	mustNotBeNil("source", src == nil)
	mustNotBeNil("group selector", groupOf == nil)

	return stream.Create(func(o stream.Observer[change.ChangeSet[G, *Group[K, V, G]]]) stream.Subscription {
		gate := &stream.Gate{}
		g := newGrouper[K, V, G](groupOf)
		emit := func() {
			cs := g.state.CaptureChanges()
			if len(cs) > 0 {
				o.OnNext(cs)
			}
			g.disposeRemoved()
		}

		subs := stream.NewComposite()
		subs.Add(stream.NewSubscription(g.dispose))
		if regroup != nil {
			subs.Add(regroup.Subscribe(stream.GateObserver(gate, stream.Funcs[struct{}]{
				Next: func(struct{}) {
					g.regroup()
					emit()
				},
				Error: o.OnError,
			})))
		}
		subs.Add(src.Subscribe(stream.GateObserver(gate, stream.Forward(o, func(cs change.ChangeSet[K, V]) {
			g.process(cs)
			emit()
		}))))
		return subs
	})
}

type memberEdit[K comparable, V any] struct {
	reason change.Reason
	key    K
	value  V
}

type grouper[K comparable, V any, G comparable] struct {
	groupOf func(V) G
	values  *cache.Cache[K, V]
	members map[K]G
	groups  map[G]*Group[K, V, G]
	state   *cache.ChangeAwareCache[G, *Group[K, V, G]]

	// per batch
	edits   map[G][]memberEdit[K, V]
	touched []G
	removed []*Group[K, V, G]
}

func newGrouper[K comparable, V any, G comparable](groupOf func(V) G) *grouper[K, V, G] {
	return &grouper[K, V, G]{
		groupOf: groupOf,
		values:  cache.NewCache[K, V](),
		members: map[K]G{},
		groups:  map[G]*Group[K, V, G]{},
		state:   cache.NewChangeAwareCache[G, *Group[K, V, G]](),
		edits:   map[G][]memberEdit[K, V]{},
	}
}

func (g *grouper[K, V, G]) queue(group G, e memberEdit[K, V]) {
	if _, ok := g.edits[group]; !ok {
		g.touched = append(g.touched, group)
	}
	g.edits[group] = append(g.edits[group], e)
}

func (g *grouper[K, V, G]) place(key K, v V, reason change.Reason) {
	group := g.groupOf(v)
	old, had := g.members[key]
	g.members[key] = group
	switch {
	case had && old != group:
		g.queue(old, memberEdit[K, V]{reason: change.Remove, key: key})
		g.queue(group, memberEdit[K, V]{reason: change.Add, key: key, value: v})
	case had && reason == change.Refresh:
		g.queue(group, memberEdit[K, V]{reason: change.Refresh, key: key})
	default:
		g.queue(group, memberEdit[K, V]{reason: change.Add, key: key, value: v})
	}
}

func (g *grouper[K, V, G]) process(cs change.ChangeSet[K, V]) {
	for i := range cs {
		c := &cs[i]
		switch c.Reason {
		case change.Add, change.Update, change.Refresh:
			g.values.Set(c.Key, c.Current)
			g.place(c.Key, c.Current, c.Reason)
		case change.Remove:
			g.values.Delete(c.Key)
			if old, ok := g.members[c.Key]; ok {
				delete(g.members, c.Key)
				g.queue(old, memberEdit[K, V]{reason: change.Remove, key: c.Key})
			}
		}
	}
	g.commit()
}

func (g *grouper[K, V, G]) regroup() {
	g.values.Range(func(k K, v V) bool {
		if group := g.groupOf(v); group != g.members[k] {
			g.place(k, v, change.Update)
		}
		return true
	})
	log.V(4).Info("group: regrouped", "groups", len(g.groups), "moved", len(g.touched))
	g.commit()
}

// commit applies the queued member edits, one batch per group, and records the group changes.
func (g *grouper[K, V, G]) commit() {
	for _, key := range g.touched {
		edits := g.edits[key]
		grp, exists := g.groups[key]
		if !exists {
			grp = &Group[K, V, G]{key: key, cache: cache.NewSourceCache(memberKeyOf[K, V],
				cache.WithLogger(log), cache.WithName("group"))}
		}
		grp.cache.Edit(func(u cache.Updater[K, V]) {
			for _, e := range edits {
				switch e.reason {
				case change.Add:
					u.AddOrUpdateKey(e.key, e.value)
				case change.Remove:
					u.Remove(e.key)
				case change.Refresh:
					u.Refresh(e.key)
				}
			}
		})

		switch n := grp.cache.Count(); {
		case !exists && n > 0:
			g.groups[key] = grp
			g.state.AddOrUpdate(key, grp)
		case !exists:
			grp.cache.Dispose()
		case n == 0:
			delete(g.groups, key)
			g.state.Remove(key)
			g.removed = append(g.removed, grp)
		}
	}
	clear(g.edits)
	g.touched = g.touched[:0]
}

func (g *grouper[K, V, G]) disposeRemoved() {
	for _, grp := range g.removed {
		grp.cache.Dispose()
	}
	g.removed = g.removed[:0]
}

func (g *grouper[K, V, G]) dispose() {
	for _, grp := range g.groups {
		grp.cache.Dispose()
	}
	clear(g.groups)
}

// memberKeyOf is the key selector of group caches. Members are always stored under the key of
// their upstream change, so it is never called.
func memberKeyOf[K comparable, V any](V) K {
	panic(NewInvalidArgumentError("group cache", "is keyed by the upstream key"))
}
