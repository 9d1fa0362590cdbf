// Package metrics exposes Prometheus collectors for the harvesting stages.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	outcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_outcomes_total",
			Help: "Total number of per-URL outcomes, labeled by stage and outcome.",
		},
		[]string{"stage", "outcome"},
	)

	sweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_sweeps_total",
			Help: "Total number of retry sweeps run, labeled by stage.",
		},
		[]string{"stage"},
	)

	sweepGainedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_sweep_gained_total",
			Help: "Total number of new results produced by retry sweeps, labeled by stage.",
		},
		[]string{"stage"},
	)

	taskDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvester_task_duration_seconds",
			Help:    "Histogram of per-URL task latencies, labeled by stage.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"stage"},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvester_active_workers",
			Help: "Number of pool workers currently processing a task.",
		},
	)

	rateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvester_rate_limit_delays_seconds",
			Help:    "Histogram of rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"host"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_http_requests_total",
			Help: "Total number of requests served by the metrics endpoint, labeled by method, route and code.",
		},
		[]string{"method", "route", "code"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveOutcome counts one per-URL outcome for a stage.
func ObserveOutcome(stage, outcome string) {
	outcomesTotal.WithLabelValues(stage, outcome).Inc()
}

// ObserveSweep records a completed retry sweep and what it gained.
func ObserveSweep(stage string, gained int) {
	sweepsTotal.WithLabelValues(stage).Inc()
	if gained > 0 {
		sweepGainedTotal.WithLabelValues(stage).Add(float64(gained))
	}
}

// ObserveTask records how long one per-URL task took.
func ObserveTask(stage string, d time.Duration) {
	taskDurationSeconds.WithLabelValues(stage).Observe(d.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, d time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(host).Observe(d.Seconds())
}

func observeHTTPRequest(method, route string, code int) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}
