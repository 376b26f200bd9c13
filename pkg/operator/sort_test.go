package operator_test

import (
	"math/rand"
	"slices"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/dcollections/internal/testutils"
	"github.com/l7mp/dcollections/pkg/cache"
	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/operator"
	"github.com/l7mp/dcollections/pkg/stream"
)

var _ = Describe("Sort", func() {
	var (
		src *cache.SourceCache[string, person]
		rec *testutils.Recorder[change.SortedChangeSet[string, person]]
	)

	BeforeEach(func() {
		src = newPeople(person{"a", 30}, person{"b", 20}, person{"c", 40})
		rec = testutils.Record(operator.Sort(src.Connect(), byAge))
	})

	keys := func() []string { return testutils.Keys(rec.Last().SortedItems) }

	It("should load the initial content in order", func() {
		Expect(rec.Len()).To(Equal(1))
		s := rec.Last()
		Expect(s.Reason).To(Equal(change.SortInitialLoad))
		Expect(s.Changes).To(Equal(change.ChangeSet[string, person]{
			change.NewAdd("b", person{"b", 20}).WithIndex(0, -1),
			change.NewAdd("a", person{"a", 30}).WithIndex(1, -1),
			change.NewAdd("c", person{"c", 40}).WithIndex(2, -1),
		}))
		Expect(keys()).To(Equal([]string{"b", "a", "c"}))
	})

	It("should insert, reposition and remove single items", func() {
		src.AddOrUpdate(person{"d", 25})
		Expect(rec.Last().Reason).To(Equal(change.SortDataChanged))
		Expect(rec.Last().Changes).To(Equal(change.ChangeSet[string, person]{
			change.NewAdd("d", person{"d", 25}).WithIndex(1, -1),
		}))

		src.AddOrUpdate(person{"a", 10})
		Expect(rec.Last().Changes).To(Equal(change.ChangeSet[string, person]{
			change.NewUpdate("a", person{"a", 10}, person{"a", 30}).WithIndex(0, 2),
		}))
		Expect(keys()).To(Equal([]string{"a", "b", "d", "c"}))

		src.Remove("d")
		Expect(rec.Last().Changes).To(Equal(change.ChangeSet[string, person]{
			change.NewRemove("d", person{"d", 25}).WithIndex(2, -1),
		}))

		Expect(testutils.Keys(mustMaterializeSorted(rec.Values()...))).To(Equal([]string{"a", "b", "c"}))
	})

	It("should not move an item whose update keeps it in order", func() {
		src.AddOrUpdate(person{"a", 35})
		Expect(rec.Last().Changes).To(Equal(change.ChangeSet[string, person]{
			change.NewUpdate("a", person{"a", 35}, person{"a", 30}).WithIndex(1, 1),
		}))
	})

	It("should keep equal items in arrival order", func() {
		src.AddOrUpdate(person{"x", 30}, person{"y", 30})
		Expect(keys()).To(Equal([]string{"b", "a", "x", "y", "c"}))
	})

	It("should fail on a remove it cannot place", func() {
		upstream := stream.NewSubject[change.ChangeSet[string, person]]()
		r := testutils.Record(operator.Sort[string, person](upstream, byAge))
		upstream.OnNext(change.ChangeSet[string, person]{change.NewAdd("a", person{"a", 1})})
		upstream.OnNext(change.ChangeSet[string, person]{change.NewRemove("b", person{"b", 1})})
		Expect(r.Err()).To(MatchError(operator.ErrUnknownKey))
	})

	It("should stay totally ordered under random edits", func() {
		r := rand.New(rand.NewSource(7))
		for batch := 0; batch < 200; batch++ {
			src.Edit(func(u cache.Updater[string, person]) {
				for i := 0; i < 3; i++ {
					name := string(rune('a' + r.Intn(15)))
					switch r.Intn(5) {
					case 0:
						u.Remove(name)
					case 1:
						u.Refresh(name)
					default:
						u.AddOrUpdate(person{name, r.Intn(10)})
					}
				}
			})
		}

		items := mustMaterializeSorted(rec.Values()...)
		Expect(items).To(Equal(rec.Last().SortedItems))
		Expect(slices.IsSortedFunc(testutils.Values(items), byAge)).To(BeTrue())
		Expect(testutils.Keys(items)).To(ConsistOf(src.Keys()))
	})
})

var _ = Describe("Sort with in-place mutation", func() {
	It("should move a refreshed item and report it as Moved", func() {
		b := &person{"b", 20}
		src := cache.NewSourceCache(func(p *person) string { return p.Name })
		src.AddOrUpdate(&person{"a", 30}, b, &person{"c", 40})
		rec := testutils.Record(operator.Sort(src.Connect(), func(x, y *person) int { return byAge(*x, *y) }))

		b.Age = 50
		src.Refresh("b")
		Expect(rec.Last().Changes).To(HaveLen(1))
		c := rec.Last().Changes[0]
		Expect(c.Reason).To(Equal(change.Moved))
		Expect(c.PreviousIndex).To(Equal(0))
		Expect(c.CurrentIndex).To(Equal(2))

		a := rec.Last().SortedItems[0].Value
		src.Refresh(a.Name)
		Expect(rec.Last().Changes[0].Reason).To(Equal(change.Refresh))
	})

	It("should re-sort everything on a resort trigger", func() {
		people := []*person{{"a", 1}, {"b", 2}, {"c", 3}}
		src := cache.NewSourceCache(func(p *person) string { return p.Name })
		src.AddOrUpdate(people...)
		resort := stream.NewSubject[struct{}]()
		rec := testutils.Record(operator.Sort(src.Connect(), func(x, y *person) int { return byAge(*x, *y) },
			operator.WithResort(resort)))

		people[0].Age, people[2].Age = 3, 1
		resort.OnNext(struct{}{})
		Expect(rec.Last().Reason).To(Equal(change.SortReorder))
		Expect(rec.Last().Changes.Moves()).To(BeNumerically(">", 0))
		Expect(testutils.Keys(rec.Last().SortedItems)).To(Equal([]string{"c", "b", "a"}))
		Expect(testutils.Keys(mustMaterializeSorted(rec.Values()...))).To(Equal([]string{"c", "b", "a"}))
	})
})

var _ = Describe("SortDynamic", func() {
	It("should wait for the first comparer and re-sort on a new one", func() {
		src := newPeople(person{"a", 30}, person{"b", 20}, person{"c", 40})
		comparers := stream.NewSubject[func(a, b person) int]()
		rec := testutils.Record(operator.SortDynamic(src.Connect(), comparers))
		Expect(rec.Len()).To(Equal(0))

		comparers.OnNext(byAge)
		Expect(rec.Last().Reason).To(Equal(change.SortInitialLoad))
		Expect(testutils.Keys(rec.Last().SortedItems)).To(Equal([]string{"b", "a", "c"}))

		comparers.OnNext(byName)
		Expect(rec.Last().Reason).To(Equal(change.SortComparerChanged))
		Expect(rec.Last().Changes.Moves()).To(Equal(rec.Last().Changes.Len()))
		Expect(testutils.Keys(mustMaterializeSorted(rec.Values()...))).To(Equal([]string{"a", "b", "c"}))

		comparers.OnNext(nil)
		Expect(rec.Err()).To(MatchError(operator.ErrInvalidArgument))
	})
})

var _ = Describe("Unsorted", func() {
	It("should drop positions and moves", func() {
		src := newPeople(person{"a", 30}, person{"b", 20})
		comparers := stream.NewSubject[func(a, b person) int]()
		rec := testutils.Record(operator.Unsorted(operator.SortDynamic(src.Connect(), comparers)))
		comparers.OnNext(byAge)
		comparers.OnNext(byName)
		Expect(rec.Len()).To(Equal(1))
		for _, c := range rec.Last() {
			Expect(c.CurrentIndex).To(Equal(-1))
		}
		Expect(mustMaterialize(rec.Values()...)).To(HaveLen(2))
	})
})
