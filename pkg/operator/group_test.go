package operator_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/dcollections/internal/testutils"
	"github.com/l7mp/dcollections/pkg/cache"
	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/operator"
	"github.com/l7mp/dcollections/pkg/stream"
)

func decade(p person) int { return p.Age / 10 }

type groupChanges = change.ChangeSet[int, *operator.Group[string, person, int]]

var _ = Describe("GroupOn", func() {
	var (
		src *cache.SourceCache[string, person]
		rec *testutils.Recorder[groupChanges]
	)

	BeforeEach(func() {
		src = newPeople(person{"a", 30}, person{"b", 35}, person{"c", 40})
		rec = testutils.Record(operator.GroupOn(src.Connect(), decade))
	})

	AfterEach(func() {
		rec.Dispose()
	})

	groups := func() map[int]*operator.Group[string, person, int] {
		return mustMaterialize(rec.Values()...)
	}

	It("should create a group per group key", func() {
		Expect(rec.Len()).To(Equal(1))
		Expect(rec.Last().Adds()).To(Equal(2))
		gs := groups()
		Expect(gs).To(HaveLen(2))
		Expect(gs[3].Key()).To(Equal(3))
		Expect(gs[3].Cache().Keys()).To(Equal([]string{"a", "b"}))
		Expect(gs[4].Cache().Items()).To(Equal([]person{{"c", 40}}))
	})

	It("should move items between groups and remove emptied groups", func() {
		old := groups()[4]
		members := testutils.Record(old.Cache().Connect())

		src.AddOrUpdate(person{"c", 31})
		Expect(rec.Last()).To(HaveLen(1))
		Expect(rec.Last()[0].Reason).To(Equal(change.Remove))
		Expect(rec.Last()[0].Key).To(Equal(4))
		Expect(members.Completed()).To(BeTrue())

		gs := groups()
		Expect(gs).To(HaveLen(1))
		Expect(gs[3].Cache().Keys()).To(ConsistOf("a", "b", "c"))
	})

	It("should batch member edits per group", func() {
		g := groups()[3]
		members := testutils.Record(g.Cache().Connect())
		members.Reset()

		src.Edit(func(u cache.Updater[string, person]) {
			u.AddOrUpdate(person{"d", 33}, person{"e", 34})
			u.Remove("a")
		})
		Expect(members.Len()).To(Equal(1))
		Expect(members.Last().Adds()).To(Equal(2))
		Expect(members.Last().Removes()).To(Equal(1))
		Expect(rec.Len()).To(Equal(1))
	})

	It("should pass updates within a group to the group cache", func() {
		members := testutils.Record(groups()[3].Cache().Connect())
		src.AddOrUpdate(person{"a", 31})
		Expect(members.Last()).To(Equal(change.ChangeSet[string, person]{
			change.NewUpdate("a", person{"a", 31}, person{"a", 30}),
		}))
		Expect(rec.Len()).To(Equal(1))
	})

	It("should never report a group created and emptied by the same change set", func() {
		upstream := stream.NewSubject[change.ChangeSet[string, person]]()
		r := testutils.Record(operator.GroupOn[string, person, int](upstream, decade))
		upstream.OnNext(change.ChangeSet[string, person]{change.NewAdd("a", person{"a", 30})})
		upstream.OnNext(change.ChangeSet[string, person]{
			change.NewAdd("d", person{"d", 50}),
			change.NewUpdate("d", person{"d", 31}, person{"d", 50}),
		})
		Expect(r.Len()).To(Equal(1))
		gs := mustMaterialize(r.Values()...)
		Expect(gs).To(HaveLen(1))
		Expect(gs[3].Cache().Keys()).To(Equal([]string{"a", "d"}))
	})

	It("should dispose the groups with the subscription", func() {
		members := testutils.Record(groups()[3].Cache().Connect())
		rec.Dispose()
		Expect(members.Completed()).To(BeTrue())
	})
})

var _ = Describe("GroupOnWithRegroup", func() {
	It("should regroup items mutated in place", func() {
		a := &person{"a", 30}
		src := cache.NewSourceCache(func(p *person) string { return p.Name })
		src.AddOrUpdate(a, &person{"b", 40})
		regroup := stream.NewSubject[struct{}]()
		rec := testutils.Record(operator.GroupOnWithRegroup(src.Connect(),
			func(p *person) int { return p.Age / 10 }, regroup))
		defer rec.Dispose()

		a.Age = 45
		regroup.OnNext(struct{}{})
		gs := mustMaterialize(rec.Values()...)
		Expect(gs).To(HaveLen(1))
		Expect(gs[4].Cache().Keys()).To(ConsistOf("a", "b"))
	})

	It("should regroup a refreshed item", func() {
		a := &person{"a", 30}
		src := cache.NewSourceCache(func(p *person) string { return p.Name })
		src.AddOrUpdate(a)
		rec := testutils.Record(operator.GroupOn(src.Connect(), func(p *person) int { return p.Age / 10 }))
		defer rec.Dispose()

		a.Age = 60
		src.Refresh("a")
		Expect(rec.Last().Adds()).To(Equal(1))
		Expect(rec.Last().Removes()).To(Equal(1))
		gs := mustMaterialize(rec.Values()...)
		Expect(gs).To(HaveKey(6))
		Expect(gs).NotTo(HaveKey(3))
	})
})
