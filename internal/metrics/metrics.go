// Package metrics exposes run engine counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "run_engine"

// Recorder owns its registry so several engines (or tests) never collide on
// the global one.
type Recorder struct {
	registry      *prometheus.Registry
	runs          *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	invalidations prometheus.Counter
	active        prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Runs that reached a terminal status.",
		}, []string{"type", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time from RUNNING to a terminal status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"type"}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_invalidations_total",
			Help:      "Browser configs marked INVALID after a session failure.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Runs currently executing.",
		}),
	}
	r.registry.MustRegister(
		r.runs, r.duration, r.invalidations, r.active,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// RunStarted increments the active gauge. Call the returned func once the
// run is finished.
func (r *Recorder) RunStarted() func() {
	if r == nil {
		return func() {}
	}
	r.active.Inc()
	return r.active.Dec
}

func (r *Recorder) RunFinished(runType, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.runs.WithLabelValues(runType, status).Inc()
	r.duration.WithLabelValues(runType).Observe(d.Seconds())
}

func (r *Recorder) SessionInvalidated() {
	if r == nil {
		return
	}
	r.invalidations.Inc()
}

// Registry exposes the underlying registry for tests and extra collectors.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry on /metrics.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
