// Package metrics exports solver progress as Prometheus metrics.
//
// A Collector is a progress.Sink: pass it to solver.WithSink and serve the
// registry it was created with.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"q.log/milp/progress"
)

const namespace = "milp"

// Collector counts solver events. It is safe for concurrent use, so one
// collector can observe many solves.
type Collector struct {
	solves     *prometheus.CounterVec
	duration   prometheus.Histogram
	pivots     *prometheus.CounterVec
	refactors  prometheus.Counter
	nodes      *prometheus.CounterVec
	incumbents prometheus.Counter
	active     prometheus.Gauge

	mu     sync.Mutex
	starts map[string]time.Time
	now    func() time.Time
}

// New registers the collector's metrics with reg.
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		solves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solves_total",
			Help:      "Finished solves by status",
		}, []string{"status"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_duration_seconds",
			Help:      "Wall time of a solve from its first event to the last",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		pivots: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simplex",
			Name:      "iterations_total",
			Help:      "Simplex iterations by whether they moved the objective",
		}, []string{"degenerate"}),
		refactors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simplex",
			Name:      "refactorizations_total",
			Help:      "Basis refactorizations",
		}),
		nodes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bnb",
			Name:      "nodes_total",
			Help:      "Branch and bound nodes by final state",
		}, []string{"state"}),
		incumbents: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bnb",
			Name:      "incumbents_total",
			Help:      "Improved solutions found",
		}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_solves",
			Help:      "Solves that emitted events but not yet finished",
		}),
		starts: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (c *Collector) Emit(e progress.Event) {
	c.track(e)
	switch e.Kind {
	case progress.Iteration:
		if e.Degenerate {
			c.pivots.WithLabelValues("true").Inc()
		} else {
			c.pivots.WithLabelValues("false").Inc()
		}
	case progress.Refactor:
		c.refactors.Inc()
	case progress.Node:
		c.nodes.WithLabelValues(e.Status).Inc()
	case progress.Incumbent:
		c.incumbents.Inc()
	case progress.Done:
		c.solves.WithLabelValues(e.Status).Inc()
	}
}

// track times each run by its id. Events without one are counted but not timed.
func (c *Collector) track(e progress.Event) {
	if e.RunID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	start, ok := c.starts[e.RunID]
	if e.Kind == progress.Done {
		if ok {
			delete(c.starts, e.RunID)
			c.active.Dec()
			c.duration.Observe(c.now().Sub(start).Seconds())
		}
		return
	}
	if !ok {
		c.starts[e.RunID] = c.now()
		c.active.Inc()
	}
}
