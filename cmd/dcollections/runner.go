package main

import (
	"context"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/go-logr/logr"

	"github.com/l7mp/dcollections/pkg/cache"
	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/document"
	"github.com/l7mp/dcollections/pkg/metrics"
	"github.com/l7mp/dcollections/pkg/operator"
	"github.com/l7mp/dcollections/pkg/predicate"
	"github.com/l7mp/dcollections/pkg/stream"
	"github.com/l7mp/dcollections/pkg/util"
)

// Runner replays a scenario through its pipeline and prints every change set the pipeline emits.
type Runner struct {
	scenario *Scenario
	key      document.Path
	metrics  *metrics.Collector
	out      io.Writer
	log      logr.Logger
}

// NewRunner creates a runner for a scenario. It fails if the scenario does not validate.
func NewRunner(s *Scenario, m *metrics.Collector, out io.Writer, log logr.Logger) (*Runner, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	key, err := document.ParsePath(s.Key)
	if err != nil {
		return nil, err
	}
	return &Runner{scenario: s, key: key, metrics: m, out: out,
		log: log.WithName("runner").WithValues("scenario", s.Name)}, nil
}

// Run builds the pipeline, replays the steps and tears the pipeline down. It stops at the first
// pipeline error or when ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	s := r.scenario
	src := cache.NewSourceCache(r.keyOf, cache.WithLogger(r.log), cache.WithName(s.Name))
	defer src.Dispose()

	var (
		filters = stream.NewSubject[string]()
		pages   = stream.NewSubject[int]()
		resort  = stream.NewSubject[struct{}]()
		failed  error
	)
	onError := func(err error) { failed = err }

	keyed := metrics.Monitor(src.Connect(), r.metrics, s.Name+"/source")
	keyed = operator.FilterDynamic(keyed, predicate.FromExpressions[document.Document](filters, predicate.WithLogger(r.log)))
	keyed = metrics.Monitor(keyed, r.metrics, s.Name+"/filter")

	var sub stream.Subscription
	if s.Sort == "" {
		sub = stream.Subscribe(keyed, r.printKeyed, onError, nil)
	} else {
		field, err := document.ParsePath(s.Sort)
		if err != nil {
			return err
		}
		sorted := operator.Sort(keyed, field.Compare, operator.WithResort(resort))
		sorted = metrics.MonitorSorted(sorted, r.metrics, s.Name+"/sort")
		switch {
		case s.Page != nil:
			sub = stream.Subscribe(operator.Page(sorted, s.Page.Size, pages), r.printPaged, onError, nil)
		case s.Top > 0:
			sub = stream.Subscribe(operator.Top(sorted, s.Top), r.printSorted, onError, nil)
		default:
			sub = stream.Subscribe(sorted, r.printSorted, onError, nil)
		}
	}
	defer sub.Dispose()

	filter := s.Filter
	if filter == "" {
		filter = "true"
	}
	filters.OnNext(filter)
	if s.Page != nil {
		pages.OnNext(s.Page.Number)
	}

	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.log.V(2).Info("applying step", "step", i)
		fmt.Fprintf(r.out, "[%s] step %d\n", s.Name, i)

		src.Edit(func(u cache.Updater[string, document.Document]) {
			if step.Clear {
				u.Clear()
			}
			u.AddOrUpdate(step.Add...)
			u.Remove(step.Remove...)
			u.Refresh(step.Refresh...)
		})
		if step.Filter != nil {
			filters.OnNext(*step.Filter)
		}
		if step.Page != nil {
			pages.OnNext(*step.Page)
		}
		if step.Resort {
			resort.OnNext(struct{}{})
		}

		if failed != nil {
			return errors.Wrapf(failed, "scenario %q: step %d", s.Name, i)
		}
	}
	return nil
}

func (r *Runner) keyOf(doc document.Document) string {
	key, err := r.key.GetString(doc)
	if err != nil {
		r.log.Error(err, "item has no key, using its content", "item", util.Stringify(doc))
		key, _ = document.Key(doc)
	}
	return key
}

func (r *Runner) printKeyed(cs change.ChangeSet[string, document.Document]) {
	for _, c := range cs {
		fmt.Fprintf(r.out, "[%s]   %-7s %s %s\n", r.scenario.Name, c.Reason, c.Key, util.Stringify(c.Current))
	}
}

func (r *Runner) printSorted(s change.SortedChangeSet[string, document.Document]) {
	fmt.Fprintf(r.out, "[%s]   sorted (%s): %v\n", r.scenario.Name, s.Reason,
		util.Map(func(kv change.KeyValue[string, document.Document]) string { return kv.Key }, s.SortedItems))
	for _, c := range s.Changes {
		switch c.Reason {
		case change.Moved, change.Update:
			fmt.Fprintf(r.out, "[%s]   %-7s %s @%d->%d %s\n", r.scenario.Name, c.Reason, c.Key,
				c.PreviousIndex, c.CurrentIndex, util.Stringify(c.Current))
		default:
			fmt.Fprintf(r.out, "[%s]   %-7s %s @%d %s\n", r.scenario.Name, c.Reason, c.Key,
				c.CurrentIndex, util.Stringify(c.Current))
		}
	}
}

func (r *Runner) printPaged(p operator.PagedChangeSet[string, document.Document]) {
	fmt.Fprintf(r.out, "[%s]   page %d/%d (size %d, total %d)\n", r.scenario.Name, p.Response.Page,
		p.Response.Pages, p.Response.PageSize, p.Response.TotalSize)
	r.printSorted(p.SortedChangeSet)
}
