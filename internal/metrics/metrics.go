// Package metrics exposes Prometheus instrumentation for throttling decisions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Decision outcomes.
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"
)

// Recorder collects rate limiter metrics on its own registry.
type Recorder struct {
	registry  *prometheus.Registry
	decisions *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	published *prometheus.CounterVec
}

// NewRecorder creates a recorder with Go runtime and process collectors attached.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	r := &Recorder{
		registry: registry,
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimit_decisions_total",
			Help: "Rate limit decisions by strategy version and outcome.",
		}, []string{"strategy", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ratelimit_decision_duration_seconds",
			Help:    "Time spent in the store deciding one request.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"strategy"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimit_throttle_events_total",
			Help: "Throttle audit events by publish result.",
		}, []string{"result"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.decisions,
		r.latency,
		r.published,
	)

	return r
}

// ObserveDecision records the outcome of one Admit call.
func (r *Recorder) ObserveDecision(strategy, outcome string, elapsed time.Duration) {
	r.decisions.WithLabelValues(strategy, outcome).Inc()
	r.latency.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

// ObservePublish records whether a throttle event reached the stream.
func (r *Recorder) ObservePublish(err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}

	r.published.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
