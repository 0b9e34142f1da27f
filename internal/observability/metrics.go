package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	httpErrorsTotal     *prometheus.CounterVec
	livenessPollsTotal  *prometheus.CounterVec
	dispatchTotal       *prometheus.CounterVec
	clampRefusalsTotal  *prometheus.CounterVec
	sessionsActiveGauge prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors shared by the arena binaries.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arena_http_latency_seconds",
			Help:    "Latency distribution for HTTP requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_http_errors_total",
			Help: "Total number of error responses returned.",
		}, []string{"method", "route", "status"})

		livenessPollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_liveness_polls_total",
			Help: "Contest liveness samples by outcome.",
		}, []string{"outcome"})

		dispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_dispatch_total",
			Help: "Test and submit runs by mode and verdict status.",
		}, []string{"mode", "status"})

		clampRefusalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_clamp_refusals_total",
			Help: "Actions refused locally because the contest was inactive or gone.",
		}, []string{"action"})

		sessionsActiveGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arena_sessions_active",
			Help: "Number of open problem-solving sessions.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			livenessPollsTotal,
			dispatchTotal,
			clampRefusalsTotal,
			sessionsActiveGauge,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// LivenessPolls counts contest status samples.
func LivenessPolls() *prometheus.CounterVec {
	RegisterMetrics()
	return livenessPollsTotal
}

// Dispatches counts test and submit runs.
func Dispatches() *prometheus.CounterVec {
	RegisterMetrics()
	return dispatchTotal
}

// ClampRefusals counts locally refused actions.
func ClampRefusals() *prometheus.CounterVec {
	RegisterMetrics()
	return clampRefusalsTotal
}

// SessionsActive tracks open sessions.
func SessionsActive() prometheus.Gauge {
	RegisterMetrics()
	return sessionsActiveGauge
}
