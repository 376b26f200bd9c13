package operator_test

import (
	"strings"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/dcollections/internal/testutils"
	"github.com/l7mp/dcollections/pkg/cache"
	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/list"
	"github.com/l7mp/dcollections/pkg/notify"
	"github.com/l7mp/dcollections/pkg/operator"
	"github.com/l7mp/dcollections/pkg/stream"
)

type tracked struct {
	notify.Notifier
	Name string
	Age  int
}

func (t *tracked) SetAge(age int) {
	t.Age = age
	t.NotifyChanged("Age")
}

func newTracked(ts ...*tracked) *cache.SourceCache[string, *tracked] {
	src := cache.NewSourceCache(func(t *tracked) string { return t.Name })
	src.AddOrUpdate(ts...)
	return src
}

var _ = Describe("AutoRefresh", func() {
	It("should inject a refresh when a watched property changes", func() {
		a := &tracked{Name: "a", Age: 1}
		src := newTracked(a)
		rec := testutils.Record(operator.AutoRefresh(src.Connect(), "Age"))
		defer rec.Dispose()
		Expect(rec.Len()).To(Equal(1))

		a.SetAge(2)
		Expect(rec.Last()).To(Equal(change.ChangeSet[string, *tracked]{change.NewRefresh("a", a)}))

		a.NotifyChanged("Name")
		Expect(rec.Len()).To(Equal(2))
	})

	It("should stop watching removed items", func() {
		a := &tracked{Name: "a", Age: 1}
		src := newTracked(a)
		rec := testutils.Record(operator.AutoRefresh(src.Connect()))
		defer rec.Dispose()

		src.Remove("a")
		n := rec.Len()
		a.SetAge(5)
		Expect(rec.Len()).To(Equal(n))
		Expect(a.WhenPropertyChanged().(*stream.Subject[string]).HasObservers()).To(BeFalse())
	})

	It("should watch the new value of an updated item", func() {
		a1, a2 := &tracked{Name: "a", Age: 1}, &tracked{Name: "a", Age: 2}
		src := newTracked(a1)
		rec := testutils.Record(operator.AutoRefresh(src.Connect()))
		defer rec.Dispose()

		src.AddOrUpdate(a2)
		n := rec.Len()
		a1.SetAge(10)
		Expect(rec.Len()).To(Equal(n))
		a2.SetAge(20)
		Expect(rec.Last()).To(Equal(change.ChangeSet[string, *tracked]{change.NewRefresh("a", a2)}))
	})

	It("should re-sort items mutated in place", func() {
		a, b, c := &tracked{Name: "a", Age: 1}, &tracked{Name: "b", Age: 2}, &tracked{Name: "c", Age: 3}
		src := newTracked(a, b, c)
		rec := testutils.Record(operator.Sort(operator.AutoRefresh(src.Connect(), "Age"),
			func(x, y *tracked) int { return x.Age - y.Age }))
		defer rec.Dispose()

		a.SetAge(10)
		Expect(rec.Last().Changes).To(HaveLen(1))
		Expect(rec.Last().Changes[0].Reason).To(Equal(change.Moved))
		Expect(testutils.Keys(rec.Last().SortedItems)).To(Equal([]string{"b", "c", "a"}))
	})

	It("should refresh on any per-item stream", func() {
		triggers := map[string]*stream.Subject[int]{"a": stream.NewSubject[int](), "b": stream.NewSubject[int]()}
		src := newPeople(person{"a", 1}, person{"b", 2})
		rec := testutils.Record(operator.AutoRefreshOnObservable(src.Connect(),
			func(_ person, k string) stream.Stream[int] { return triggers[k] }))
		defer rec.Dispose()

		triggers["b"].OnNext(1)
		Expect(rec.Last()).To(Equal(change.ChangeSet[string, person]{change.NewRefresh("b", person{"b", 2})}))
	})
})

var _ = Describe("AddKey", func() {
	It("should key an index-ordered stream", func() {
		src := list.NewSourceList[person]()
		src.AddRange(person{"a", 1}, person{"b", 2})
		rec := testutils.Record(operator.AddKey(src.Connect(), personKey))
		Expect(rec.Last().Adds()).To(Equal(2))

		Expect(src.ReplaceAt(0, person{"a", 10})).To(Succeed())
		Expect(rec.Last()).To(Equal(change.ChangeSet[string, person]{
			change.NewUpdate("a", person{"a", 10}, person{"a", 1}),
		}))

		Expect(src.ReplaceAt(0, person{"c", 3})).To(Succeed())
		Expect(rec.Last()).To(Equal(change.ChangeSet[string, person]{
			change.NewRemove("a", person{"a", 10}),
			change.NewAdd("c", person{"c", 3}),
		}))

		n := rec.Len()
		Expect(src.Move(0, 1)).To(Succeed())
		Expect(rec.Len()).To(Equal(n))

		src.Clear()
		Expect(mustMaterialize(rec.Values()...)).To(BeEmpty())
	})
})

var _ = Describe("Cast", func() {
	It("should convert current and previous values", func() {
		src := newPeople(person{"a", 1})
		rec := testutils.Record(operator.Cast(src.Connect(), func(p person) int { return p.Age }))
		src.AddOrUpdate(person{"a", 2})
		Expect(rec.Last()).To(Equal(change.ChangeSet[string, int]{change.NewUpdate("a", 2, 1)}))
	})
})

var _ = Describe("ChangeKey", func() {
	byUpperName := func(k string, _ person) string { return strings.ToUpper(k) }

	It("should re-key every change", func() {
		src := newPeople(person{"a", 1})
		rec := testutils.Record(operator.ChangeKey(src.Connect(), byUpperName))
		src.AddOrUpdate(person{"a", 2})
		src.Remove("a")
		Expect(rec.Values()).To(Equal([]change.ChangeSet[string, person]{
			{change.NewAdd("A", person{"a", 1})},
			{change.NewUpdate("A", person{"a", 2}, person{"a", 1})},
			{change.NewRemove("A", person{"a", 2})},
		}))
	})

	It("should split an update that changes the key", func() {
		src := newPeople(person{"a", 1})
		rec := testutils.Record(operator.ChangeKey(src.Connect(), func(_ string, p person) int { return p.Age }))
		src.AddOrUpdate(person{"a", 2})
		Expect(rec.Last()).To(Equal(change.ChangeSet[int, person]{
			change.NewRemove(1, person{"a", 1}),
			change.NewAdd(2, person{"a", 2}),
		}))
	})

	It("should fail on the removal of an unknown key", func() {
		upstream := stream.NewSubject[change.ChangeSet[string, person]]()
		rec := testutils.Record(operator.ChangeKey[string, person, string](upstream, byUpperName))
		upstream.OnNext(change.ChangeSet[string, person]{change.NewRemove("x", person{"x", 1})})
		Expect(rec.Err()).To(MatchError(operator.ErrUnknownKey))
	})
})

var _ = Describe("EnsureUniqueKeys", func() {
	It("should collapse repeated keys", func() {
		upstream := stream.NewSubject[change.ChangeSet[string, int]]()
		rec := testutils.Record(operator.EnsureUniqueKeys[string, int](upstream))
		upstream.OnNext(change.ChangeSet[string, int]{
			change.NewAdd("a", 1),
			change.NewUpdate("a", 2, 1),
			change.NewAdd("b", 1),
			change.NewRemove("b", 1),
		})
		Expect(rec.Values()).To(Equal([]change.ChangeSet[string, int]{{change.NewAdd("a", 2)}}))

		upstream.OnNext(change.ChangeSet[string, int]{change.NewAdd("c", 1), change.NewRemove("c", 1)})
		Expect(rec.Len()).To(Equal(1))
	})
})

var _ = Describe("QueryWhenChanged", func() {
	It("should emit immutable snapshots", func() {
		src := newPeople(person{"a", 1})
		rec := testutils.Record(operator.QueryWhenChanged(src.Connect()))
		src.AddOrUpdate(person{"b", 2})
		src.Remove("a")

		qs := rec.Values()
		Expect(qs).To(HaveLen(3))
		Expect(qs[0].Keys()).To(Equal([]string{"a"}))
		Expect(qs[1].Count()).To(Equal(2))
		Expect(qs[2].Lookup("a").HasValue()).To(BeFalse())
		Expect(qs[2].Lookup("b").Value()).To(Equal(person{"b", 2}))
	})
})

type resource struct {
	name   string
	closed int
	err    error
}

func (r *resource) Close() error {
	r.closed++
	return r.err
}

var _ = Describe("DisposeMany", func() {
	It("should close items leaving the stream", func() {
		a1, a2, b := &resource{name: "a"}, &resource{name: "a"}, &resource{name: "b", err: errors.New("busy")}
		src := cache.NewSourceCache(func(r *resource) string { return r.name })
		src.AddOrUpdate(a1, b)
		rec := testutils.Record(operator.DisposeMany(src.Connect()))

		src.AddOrUpdate(a2)
		Expect(a1.closed).To(Equal(1))
		Expect(a2.closed).To(Equal(0))

		src.Remove("b")
		Expect(b.closed).To(Equal(1))

		rec.Dispose()
		Expect(a2.closed).To(Equal(1))
		Expect(a1.closed).To(Equal(1))
	})
})
