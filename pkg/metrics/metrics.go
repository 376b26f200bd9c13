// Package metrics instruments change-set pipelines with Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/l7mp/dcollections/pkg/change"
	"github.com/l7mp/dcollections/pkg/stream"
)

// Collector holds the counters of monitored stages.
type Collector struct {
	// changes counts the changes passing a stage.
	// Labels: stage, reason (Add, Update, Remove, Refresh, Moved)
	changes *prometheus.CounterVec
	// changeSets counts the change sets passing a stage.
	// Labels: stage
	changeSets *prometheus.CounterVec
	// errors counts the stages terminated by an error.
	// Labels: stage
	errors *prometheus.CounterVec
}

// NewCollector creates the counters and registers them with reg. A nil reg leaves them
// unregistered.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		changes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dcollections",
			Name:      "changes_total",
			Help:      "Total number of changes emitted by a stage",
		}, []string{"stage", "reason"}),
		changeSets: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dcollections",
			Name:      "changesets_total",
			Help:      "Total number of change sets emitted by a stage",
		}, []string{"stage"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dcollections",
			Name:      "stage_errors_total",
			Help:      "Total number of stages failed with an error",
		}, []string{"stage"}),
	}
}

// Changes returns the change counter of stage and reason.
func (c *Collector) Changes(stage string, reason change.Reason) prometheus.Counter {
	return c.changes.WithLabelValues(stage, reason.String())
}

// ChangeSets returns the change-set counter of stage.
func (c *Collector) ChangeSets(stage string) prometheus.Counter {
	return c.changeSets.WithLabelValues(stage)
}

// Errors returns the error counter of stage.
func (c *Collector) Errors(stage string) prometheus.Counter {
	return c.errors.WithLabelValues(stage)
}

// Monitor passes src through unchanged, counting its change sets and changes under stage.
func Monitor[K comparable, V any](src stream.Stream[change.ChangeSet[K, V]], c *Collector, stage string) stream.Stream[change.ChangeSet[K, V]] {
	return stream.Create(func(o stream.Observer[change.ChangeSet[K, V]]) stream.Subscription {
		return src.Subscribe(stream.Funcs[change.ChangeSet[K, V]]{
			Next: func(cs change.ChangeSet[K, V]) {
				record(c, stage, cs)
				o.OnNext(cs)
			},
			Error: func(err error) {
				c.Errors(stage).Inc()
				o.OnError(err)
			},
			Completed: o.OnCompleted,
		})
	})
}

// MonitorSorted is Monitor for sorted streams.
func MonitorSorted[K comparable, V any](src stream.Stream[change.SortedChangeSet[K, V]], c *Collector, stage string) stream.Stream[change.SortedChangeSet[K, V]] {
	return stream.Create(func(o stream.Observer[change.SortedChangeSet[K, V]]) stream.Subscription {
		return src.Subscribe(stream.Funcs[change.SortedChangeSet[K, V]]{
			Next: func(s change.SortedChangeSet[K, V]) {
				record(c, stage, s.Changes)
				o.OnNext(s)
			},
			Error: func(err error) {
				c.Errors(stage).Inc()
				o.OnError(err)
			},
			Completed: o.OnCompleted,
		})
	})
}

func record[K comparable, V any](c *Collector, stage string, cs change.ChangeSet[K, V]) {
	c.ChangeSets(stage).Inc()
	for i := range cs {
		c.Changes(stage, cs[i].Reason).Inc()
	}
}
