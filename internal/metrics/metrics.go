package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for TaskSync
type Metrics struct {
	// Backend request metrics
	BackendRequests *prometheus.CounterVec
	BackendLatency  *prometheus.HistogramVec

	// Fetch lifecycle metrics
	Fetches        *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
	FetchDiscarded *prometheus.CounterVec

	// Shared cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
	CacheShared *prometheus.CounterVec

	// Session metrics
	AuthEvents    *prometheus.CounterVec
	SessionChecks *prometheus.CounterVec

	// Third-party API metrics
	ExternalCalls   *prometheus.CounterVec
	ExternalLatency *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		BackendRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasksync_backend_requests_total",
				Help: "Total number of backend API requests",
			},
			[]string{"service", "method", "status"},
		),
		BackendLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tasksync_backend_latency_seconds",
				Help:    "Backend API request latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"service"},
		),

		Fetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasksync_fetches_total",
				Help: "Total number of one-shot fetches by outcome",
			},
			[]string{"resource", "outcome"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tasksync_fetch_duration_seconds",
				Help:    "One-shot fetch duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"resource"},
		),
		FetchDiscarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasksync_fetch_discarded_total",
				Help: "Fetch results dropped because the owner was gone",
			},
			[]string{"resource"},
		),

		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasksync_cache_hits_total",
				Help: "Repository cache hits",
			},
			[]string{"group"},
		),
		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasksync_cache_misses_total",
				Help: "Repository cache misses",
			},
			[]string{"group"},
		),
		CacheShared: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasksync_cache_shared_total",
				Help: "Reads that joined an in-flight request",
			},
			[]string{"group"},
		),

		AuthEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasksync_auth_events_total",
				Help: "Auth state events emitted by the backend client",
			},
			[]string{"event"},
		),
		SessionChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasksync_session_checks_total",
				Help: "Session state checks by resulting phase",
			},
			[]string{"phase"},
		),

		ExternalCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasksync_external_calls_total",
				Help: "Calls to third-party APIs",
			},
			[]string{"api", "success"},
		),
		ExternalLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tasksync_external_latency_seconds",
				Help:    "Third-party API latency in seconds",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"api"},
		),
	}
}

// RecordBackendRequest records one backend HTTP exchange
func (m *Metrics) RecordBackendRequest(service, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.BackendRequests.WithLabelValues(service, method, statusClass(status)).Inc()
	m.BackendLatency.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordFetch records the outcome of a one-shot fetch
func (m *Metrics) RecordFetch(resource, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Fetches.WithLabelValues(resource, outcome).Inc()
	m.FetchDuration.WithLabelValues(resource).Observe(duration.Seconds())
}

// RecordFetchDiscarded records a result dropped after its owner went away
func (m *Metrics) RecordFetchDiscarded(resource string) {
	if m == nil {
		return
	}
	m.FetchDiscarded.WithLabelValues(resource).Inc()
}

// RecordCache records a cache lookup outcome: "hit", "miss" or "shared"
func (m *Metrics) RecordCache(group, outcome string) {
	if m == nil {
		return
	}
	switch outcome {
	case "hit":
		m.CacheHits.WithLabelValues(group).Inc()
	case "shared":
		m.CacheShared.WithLabelValues(group).Inc()
	default:
		m.CacheMisses.WithLabelValues(group).Inc()
	}
}

// RecordAuthEvent records an auth state event
func (m *Metrics) RecordAuthEvent(event string) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(event).Inc()
}

// RecordSessionCheck records the phase a session check settled in
func (m *Metrics) RecordSessionCheck(phase string) {
	if m == nil {
		return
	}
	m.SessionChecks.WithLabelValues(phase).Inc()
}

// RecordExternalCall records a news or assistant call
func (m *Metrics) RecordExternalCall(api string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	ok := "false"
	if success {
		ok = "true"
	}
	m.ExternalCalls.WithLabelValues(api, ok).Inc()
	m.ExternalLatency.WithLabelValues(api).Observe(duration.Seconds())
}

func statusClass(status int) string {
	switch {
	case status == 0:
		return "error"
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
