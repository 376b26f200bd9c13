package operator_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/dcollections/internal/testutils"
	"github.com/l7mp/dcollections/pkg/cache"
	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/operator"
	"github.com/l7mp/dcollections/pkg/stream"
)

type address struct {
	Name string
	City string
}

type resident struct {
	Person  change.Optional[person]
	Address change.Optional[address]
}

var _ = Describe("Joins", func() {
	var (
		people    *cache.SourceCache[string, person]
		addresses *cache.SourceCache[string, address]
	)

	BeforeEach(func() {
		people = newPeople(person{"a", 30}, person{"b", 40})
		addresses = cache.NewSourceCache(func(a address) string { return a.Name })
		addresses.AddOrUpdate(address{"b", "Budapest"}, address{"c", "Cluj"})
	})

	Describe("InnerJoin", func() {
		var rec *testutils.Recorder[change.ChangeSet[string, string]]

		BeforeEach(func() {
			rec = testutils.Record(operator.InnerJoin(people.Connect(), addresses.Connect(),
				func(k string, p person, a address) string { return k + "@" + a.City }))
		})

		It("should hold the keys present on both sides", func() {
			Expect(mustMaterialize(rec.Values()...)).To(Equal(map[string]string{"b": "b@Budapest"}))

			addresses.AddOrUpdate(address{"a", "Athens"})
			Expect(rec.Last()).To(Equal(change.ChangeSet[string, string]{change.NewAdd("a", "a@Athens")}))

			addresses.AddOrUpdate(address{"a", "Arad"})
			Expect(rec.Last()).To(Equal(change.ChangeSet[string, string]{change.NewUpdate("a", "a@Arad", "a@Athens")}))

			people.Remove("b")
			Expect(rec.Last()).To(Equal(change.ChangeSet[string, string]{change.NewRemove("b", "b@Budapest")}))
		})

		It("should turn a refresh on either side into a refresh", func() {
			addresses.Refresh("b")
			Expect(rec.Last()).To(Equal(change.ChangeSet[string, string]{change.NewRefresh("b", "b@Budapest")}))
			n := rec.Len()
			people.Refresh("a")
			Expect(rec.Len()).To(Equal(n))
			people.Refresh("b")
			Expect(rec.Len()).To(Equal(n + 1))
			Expect(rec.Last()).To(Equal(change.ChangeSet[string, string]{change.NewRefresh("b", "b@Budapest")}))
		})
	})

	It("should keep every left key in a left join", func() {
		rec := testutils.Record(operator.LeftJoin(people.Connect(), addresses.Connect(),
			func(_ string, p person, a change.Optional[address]) resident {
				return resident{Person: change.Some(p), Address: a}
			}))
		state := mustMaterialize(rec.Values()...)
		Expect(state).To(HaveLen(2))
		Expect(state["a"].Address.HasValue()).To(BeFalse())
		Expect(state["b"].Address.Value().City).To(Equal("Budapest"))

		addresses.Remove("b")
		Expect(rec.Last()).To(HaveLen(1))
		Expect(rec.Last()[0].Reason).To(Equal(change.Update))
		Expect(rec.Last()[0].Current.Address.HasValue()).To(BeFalse())
	})

	It("should keep every right key in a right join", func() {
		rec := testutils.Record(operator.RightJoin(people.Connect(), addresses.Connect(),
			func(_ string, p change.Optional[person], a address) resident {
				return resident{Person: p, Address: change.Some(a)}
			}))
		state := mustMaterialize(rec.Values()...)
		Expect(state).To(HaveLen(2))
		Expect(state).To(HaveKey("c"))
		Expect(state["c"].Person.HasValue()).To(BeFalse())
	})

	It("should keep the union of the keys in a full join", func() {
		rec := testutils.Record(operator.FullJoin(people.Connect(), addresses.Connect(),
			func(_ string, p change.Optional[person], a change.Optional[address]) resident {
				return resident{Person: p, Address: a}
			}))
		Expect(mustMaterialize(rec.Values()...)).To(HaveLen(3))

		people.Remove("b")
		Expect(rec.Last()[0].Reason).To(Equal(change.Update))
		addresses.Remove("b")
		Expect(rec.Last()[0].Reason).To(Equal(change.Remove))
		Expect(mustMaterialize(rec.Values()...)).To(HaveLen(2))
	})

	It("should track intersection and union under random edits", func() {
		r := rand.New(rand.NewSource(3))
		inner := testutils.Record(operator.InnerJoin(people.Connect(), addresses.Connect(),
			func(k string, _ person, _ address) string { return k }))
		full := testutils.Record(operator.FullJoin(people.Connect(), addresses.Connect(),
			func(k string, _ change.Optional[person], _ change.Optional[address]) string { return k }))

		for i := 0; i < 300; i++ {
			name := string(rune('a' + r.Intn(10)))
			switch r.Intn(4) {
			case 0:
				people.Remove(name)
			case 1:
				addresses.Remove(name)
			case 2:
				people.AddOrUpdate(person{name, r.Intn(100)})
			default:
				addresses.AddOrUpdate(address{name, "x"})
			}
		}

		left, right := map[string]bool{}, map[string]bool{}
		for _, k := range people.Keys() {
			left[k] = true
		}
		for _, k := range addresses.Keys() {
			right[k] = true
		}
		var intersection, union []string
		for k := range left {
			union = append(union, k)
			if right[k] {
				intersection = append(intersection, k)
			}
		}
		for k := range right {
			if !left[k] {
				union = append(union, k)
			}
		}

		Expect(keysOf(mustMaterialize(inner.Values()...))).To(ConsistOf(intersection))
		Expect(keysOf(mustMaterialize(full.Values()...))).To(ConsistOf(union))
	})

	It("should complete when both sides completed", func() {
		left := stream.NewSubject[change.ChangeSet[string, person]]()
		right := stream.NewSubject[change.ChangeSet[string, address]]()
		rec := testutils.Record(operator.InnerJoin[string, person, address, string](left, right,
			func(k string, _ person, _ address) string { return k }))
		left.OnCompleted()
		Expect(rec.Completed()).To(BeFalse())
		right.OnCompleted()
		Expect(rec.Completed()).To(BeTrue())
	})
})

func keysOf[K comparable, V any](m map[K]V) []K {
	ret := make([]K, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	return ret
}
