// Package metrics exposes the orchestrator's Prometheus collectors: run
// outcomes, per-node duration, pushes, and CI observations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors holds every metric the orchestrator reports. One instance is
// shared process-wide; each run's label values distinguish it.
type Collectors struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	nodeDuration  *prometheus.HistogramVec
	fixesTotal    *prometheus.CounterVec
	pushesTotal   *prometheus.CounterVec
	ciObservations *prometheus.CounterVec
	activeRuns    prometheus.Gauge
}

// durationBuckets covers a single pipeline node (sub-second) through a
// full run against a slow CI provider (tens of minutes).
var durationBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1200}

// New registers every collector against a fresh registry, avoiding
// cross-test collisions the way the teacher's exporter construction
// guards against repeated registration.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	c := &Collectors{
		registry: reg,
		runsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "healer_runs_total",
			Help: "Total repair runs, partitioned by final status.",
		}, []string{"status"}),
		runDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "healer_run_duration_seconds",
			Help:    "Wall-clock duration of a completed run.",
			Buckets: durationBuckets,
		}, []string{"status"}),
		nodeDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "healer_node_duration_seconds",
			Help:    "Wall-clock duration of one pipeline node invocation.",
			Buckets: durationBuckets,
		}, []string{"node"}),
		fixesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "healer_fixes_total",
			Help: "Synthesized fixes, partitioned by bug type and outcome status.",
		}, []string{"bug_type", "status"}),
		pushesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "healer_pushes_total",
			Help: "Publisher push attempts, partitioned by outcome.",
		}, []string{"outcome"}),
		ciObservations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "healer_ci_observations_total",
			Help: "CI poll observations, partitioned by status.",
		}, []string{"status"}),
		activeRuns: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "healer_active_runs",
			Help: "Number of repair runs currently in progress.",
		}),
	}
	return c
}

// Handler returns the /metrics scrape endpoint for this Collectors'
// registry.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collectors) RunStarted()   { c.activeRuns.Inc() }
func (c *Collectors) RunFinished(status string, duration time.Duration) {
	c.activeRuns.Dec()
	c.runsTotal.WithLabelValues(status).Inc()
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (c *Collectors) NodeObserved(node string, duration time.Duration) {
	c.nodeDuration.WithLabelValues(node).Observe(duration.Seconds())
}

func (c *Collectors) FixObserved(bugType, status string) {
	c.fixesTotal.WithLabelValues(bugType, status).Inc()
}

func (c *Collectors) PushObserved(outcome string) {
	c.pushesTotal.WithLabelValues(outcome).Inc()
}

func (c *Collectors) CIObserved(status string) {
	c.ciObservations.WithLabelValues(status).Inc()
}
