package operator_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/dcollections/internal/testutils"
	"github.com/l7mp/dcollections/pkg/cache"
	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/operator"
	"github.com/l7mp/dcollections/pkg/stream"
)

const (
	timeout  = time.Second * 1
	interval = time.Millisecond * 10
)

var errBoom = errors.New("boom")

func label(p person, _ string) string { return fmt.Sprintf("%s:%d", p.Name, p.Age) }

var _ = Describe("Transform", func() {
	It("should project items and their previous values", func() {
		src := newPeople(person{"a", 30})
		rec := testutils.Record(operator.Transform(src.Connect(), label))
		Expect(rec.Last()).To(Equal(change.ChangeSet[string, string]{change.NewAdd("a", "a:30")}))

		src.AddOrUpdate(person{"a", 31})
		Expect(rec.Last()).To(Equal(change.ChangeSet[string, string]{change.NewUpdate("a", "a:31", "a:30")}))

		src.Remove("a")
		Expect(rec.Last()).To(Equal(change.ChangeSet[string, string]{change.NewRemove("a", "a:31")}))
	})

	It("should pass refreshes on without re-running the selector", func() {
		calls := 0
		src := newPeople(person{"a", 30})
		rec := testutils.Record(operator.Transform(src.Connect(), func(p person, k string) string {
			calls++
			return label(p, k)
		}))
		src.Refresh("a")
		Expect(calls).To(Equal(1))
		Expect(rec.Last()).To(Equal(change.ChangeSet[string, string]{change.NewRefresh("a", "a:30")}))
	})

	It("should re-run the selector on refresh when asked to", func() {
		calls := 0
		src := newPeople(person{"a", 30})
		rec := testutils.Record(operator.Transform(src.Connect(), func(p person, k string) string {
			calls++
			return fmt.Sprintf("%s#%d", p.Name, calls)
		}, operator.WithTransformOnRefresh()))
		src.Refresh("a")
		Expect(rec.Last()).To(Equal(change.ChangeSet[string, string]{change.NewUpdate("a", "a#2", "a#1")}))
	})

	It("should re-transform the items selected by a force predicate", func() {
		calls := map[string]int{}
		force := stream.NewSubject[func(person, string) bool]()
		src := newPeople(person{"a", 30}, person{"b", 40})
		rec := testutils.Record(operator.Transform(src.Connect(), func(p person, _ string) string {
			calls[p.Name]++
			return fmt.Sprintf("%s#%d", p.Name, calls[p.Name])
		}, operator.WithForceTransform(stream.Stream[func(person, string) bool](force))))

		force.OnNext(func(_ person, k string) bool { return k == "b" })
		Expect(rec.Last()).To(Equal(change.ChangeSet[string, string]{change.NewUpdate("b", "b#2", "b#1")}))
		Expect(calls["a"]).To(Equal(1))
	})

	It("should panic on a force stream of the wrong type", func() {
		force := stream.NewSubject[func(int, string) bool]()
		src := newPeople()
		Expect(func() {
			operator.Transform(src.Connect(), label,
				operator.WithForceTransform(stream.Stream[func(int, string) bool](force)))
		}).To(Panic())
	})
})

var _ = Describe("TransformSafe", func() {
	var (
		src    *cache.SourceCache[string, person]
		failed []operator.TransformError[string, person]
		rec    *testutils.Recorder[change.ChangeSet[string, string]]
	)

	BeforeEach(func() {
		failed = nil
		src = newPeople()
		rec = testutils.Record(operator.TransformSafe(src.Connect(), func(p person, k string) (string, error) {
			if p.Age < 0 {
				return "", errBoom
			}
			return label(p, k), nil
		}, func(err operator.TransformError[string, person]) { failed = append(failed, err) }))
	})

	It("should leave failed items out and report each failure once", func() {
		src.AddOrUpdate(person{"a", 1}, person{"b", -1})
		Expect(rec.Last()).To(Equal(change.ChangeSet[string, string]{change.NewAdd("a", "a:1")}))
		Expect(failed).To(HaveLen(1))
		Expect(failed[0].Key).To(Equal("b"))
		Expect(failed[0]).To(MatchError(errBoom))
		Expect(rec.Err()).NotTo(HaveOccurred())
	})

	It("should keep the previous projection when an update fails", func() {
		src.AddOrUpdate(person{"a", 1})
		n := rec.Len()
		src.AddOrUpdate(person{"a", -1})
		Expect(rec.Len()).To(Equal(n))
		Expect(failed).To(HaveLen(1))

		src.AddOrUpdate(person{"a", 2})
		Expect(rec.Last()).To(Equal(change.ChangeSet[string, string]{change.NewUpdate("a", "a:2", "a:1")}))
	})

	It("should add an item once its selector succeeds", func() {
		src.AddOrUpdate(person{"a", -1})
		Expect(rec.Len()).To(Equal(0))
		src.AddOrUpdate(person{"a", 3})
		Expect(rec.Last()).To(Equal(change.ChangeSet[string, string]{change.NewAdd("a", "a:3")}))
	})
})

var _ = Describe("TransformAsync", func() {
	double := func(_ context.Context, p person, _ string) (int, error) { return 2 * p.Age, nil }

	materialized := func(rec *testutils.Recorder[change.ChangeSet[string, int]]) func() map[string]int {
		return func() map[string]int {
			state, err := testutils.Materialize(rec.Values()...)
			if err != nil {
				return nil
			}
			return state
		}
	}

	It("should panic on a non-positive concurrency", func() {
		Expect(func() { operator.WithMaxConcurrency(0) }).To(Panic())
	})

	It("should emit the results", func() {
		src := newPeople(person{"a", 1}, person{"b", 2})
		rec := testutils.Record(operator.TransformAsync(src.Connect(), double))
		defer rec.Dispose()

		Eventually(materialized(rec), timeout, interval).Should(Equal(map[string]int{"a": 2, "b": 4}))
		src.AddOrUpdate(person{"a", 5})
		Eventually(materialized(rec), timeout, interval).Should(Equal(map[string]int{"a": 10, "b": 4}))
		src.Remove("b")
		Eventually(materialized(rec), timeout, interval).Should(Equal(map[string]int{"a": 10}))
	})

	It("should cancel the transform of a removed item", func() {
		var cancelled atomic.Int32
		src := newPeople()
		rec := testutils.Record(operator.TransformAsync(src.Connect(), func(ctx context.Context, p person, _ string) (int, error) {
			<-ctx.Done()
			cancelled.Add(1)
			return 0, ctx.Err()
		}))
		defer rec.Dispose()

		src.AddOrUpdate(person{"slow", 1})
		src.Remove("slow")
		Eventually(cancelled.Load, timeout, interval).Should(Equal(int32(1)))
		Consistently(rec.Len, 50*time.Millisecond, interval).Should(Equal(0))
		Expect(rec.Err()).NotTo(HaveOccurred())
	})

	It("should discard the late result of a replaced item", func() {
		release := make(chan struct{})
		src := newPeople()
		rec := testutils.Record(operator.TransformAsync(src.Connect(), func(ctx context.Context, p person, _ string) (int, error) {
			if p.Age == 1 {
				<-release
			}
			return 2 * p.Age, nil
		}))
		defer rec.Dispose()

		src.AddOrUpdate(person{"a", 1})
		src.AddOrUpdate(person{"a", 2})
		Eventually(materialized(rec), timeout, interval).Should(Equal(map[string]int{"a": 4}))
		close(release)
		Consistently(materialized(rec), 50*time.Millisecond, interval).Should(Equal(map[string]int{"a": 4}))
	})

	It("should fail the stream on a selector error", func() {
		src := newPeople(person{"a", 1})
		rec := testutils.Record(operator.TransformAsync(src.Connect(), func(context.Context, person, string) (int, error) {
			return 0, errBoom
		}))
		Eventually(rec.Err, timeout, interval).Should(MatchError(errBoom))
	})

	It("should report selector errors to the handler", func() {
		var (
			mu     sync.Mutex
			errs   []error
			failed = func() int { mu.Lock(); defer mu.Unlock(); return len(errs) }
		)
		src := newPeople(person{"a", -1}, person{"b", 1})
		rec := testutils.Record(operator.TransformAsync(src.Connect(), func(_ context.Context, p person, _ string) (int, error) {
			if p.Age < 0 {
				return 0, errBoom
			}
			return p.Age, nil
		}, operator.WithAsyncErrorHandler(func(err error) {
			mu.Lock()
			defer mu.Unlock()
			errs = append(errs, err)
		})))
		defer rec.Dispose()

		Eventually(failed, timeout, interval).Should(Equal(1))
		Eventually(materialized(rec), timeout, interval).Should(Equal(map[string]int{"b": 1}))
		Expect(rec.Err()).NotTo(HaveOccurred())

		mu.Lock()
		var terr operator.TransformError[string, person]
		Expect(errors.As(errs[0], &terr)).To(BeTrue())
		Expect(terr.Key).To(Equal("a"))
		mu.Unlock()
	})

	It("should bound the number of concurrent selectors", func() {
		var running, maxSeen atomic.Int32
		src := newPeople(numbered(10)...)
		rec := testutils.Record(operator.TransformAsync(src.Connect(), func(_ context.Context, p person, _ string) (int, error) {
			n := running.Add(1)
			for {
				m := maxSeen.Load()
				if n <= m || maxSeen.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return p.Age, nil
		}, operator.WithMaxConcurrency(2)))
		defer rec.Dispose()

		Eventually(func() int { return len(materialized(rec)()) }, timeout, interval).Should(Equal(10))
		Expect(maxSeen.Load()).To(BeNumerically("<=", 2))
	})

	It("should complete after the upstream completed and all results arrived", func() {
		upstream := stream.Just(change.ChangeSet[string, person]{
			change.NewAdd("a", person{"a", 1}),
			change.NewAdd("b", person{"b", 2}),
		})
		rec := testutils.Record(operator.TransformAsync(upstream, double))
		Eventually(rec.Completed, timeout, interval).Should(BeTrue())
		Expect(materialized(rec)()).To(Equal(map[string]int{"a": 2, "b": 4}))
	})

	It("should cancel pending transforms on dispose", func() {
		var cancelled atomic.Int32
		src := newPeople(person{"a", 1}, person{"b", 2})
		rec := testutils.Record(operator.TransformAsync(src.Connect(), func(ctx context.Context, _ person, _ string) (int, error) {
			<-ctx.Done()
			cancelled.Add(1)
			return 0, ctx.Err()
		}))
		rec.Dispose()
		Eventually(cancelled.Load, timeout, interval).Should(Equal(int32(2)))
	})
})

type team struct {
	Name    string
	Members []int
}

var _ = Describe("TransformMany", func() {
	var (
		src *cache.SourceCache[string, team]
		rec *testutils.Recorder[change.ChangeSet[int, int]]
	)

	BeforeEach(func() {
		src = cache.NewSourceCache(func(t team) string { return t.Name })
		rec = testutils.Record(operator.TransformMany(src.Connect(),
			func(t team) []int { return t.Members }, func(m int) int { return m }))
	})

	It("should add and remove a derived value only at its first and last reference", func() {
		src.AddOrUpdate(team{"1", []int{1, 2}})
		Expect(rec.Last()).To(Equal(change.ChangeSet[int, int]{change.NewAdd(1, 1), change.NewAdd(2, 2)}))

		src.AddOrUpdate(team{"2", []int{1, 2, 3}})
		Expect(rec.Last()).To(Equal(change.ChangeSet[int, int]{change.NewAdd(3, 3)}))

		n := rec.Len()
		src.Remove("1")
		Expect(rec.Len()).To(Equal(n))

		src.Remove("2")
		Expect(rec.Last()).To(ConsistOf(change.NewRemove(1, 1), change.NewRemove(2, 2), change.NewRemove(3, 3)))
		Expect(mustMaterialize(rec.Values()...)).To(BeEmpty())
	})

	It("should diff the derived values of an updated item", func() {
		src.AddOrUpdate(team{"1", []int{1, 2}}, team{"2", []int{2}})
		src.AddOrUpdate(team{"1", []int{2, 3}})
		Expect(rec.Last()).To(ConsistOf(change.NewRemove(1, 1), change.NewAdd(3, 3)))

		n := rec.Len()
		src.AddOrUpdate(team{"2", nil})
		Expect(rec.Len()).To(Equal(n))
		Expect(mustMaterialize(rec.Values()...)).To(Equal(map[int]int{2: 2, 3: 3}))
	})

	It("should update a kept derived key whose value changed", func() {
		type seat struct{ Member, Size int }
		seats := testutils.Record(operator.TransformMany(src.Connect(),
			func(t team) []seat {
				ret := []seat{}
				for _, m := range t.Members {
					ret = append(ret, seat{m, len(t.Members)})
				}
				return ret
			}, func(s seat) int { return s.Member }))

		src.AddOrUpdate(team{"1", []int{1, 2}})
		src.AddOrUpdate(team{"1", []int{1, 2, 3}})
		Expect(seats.Last()).To(ConsistOf(
			change.NewUpdate(1, seat{1, 3}, seat{1, 2}),
			change.NewUpdate(2, seat{2, 3}, seat{2, 2}),
			change.NewAdd(3, seat{3, 3}),
		))

		n := seats.Len()
		src.Refresh("1")
		Expect(seats.Len()).To(Equal(n))
		Expect(mustMaterialize(seats.Values()...)).To(Equal(map[int]seat{1: {1, 3}, 2: {2, 3}, 3: {3, 3}}))
	})

	It("should count duplicates produced by one item once", func() {
		src.AddOrUpdate(team{"1", []int{1, 1}}, team{"2", []int{1}})
		src.Remove("2")
		Expect(mustMaterialize(rec.Values()...)).To(Equal(map[int]int{1: 1}))
		src.Remove("1")
		Expect(mustMaterialize(rec.Values()...)).To(BeEmpty())
	})
})
