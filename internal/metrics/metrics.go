// Package metrics holds the process-wide Prometheus collectors. They are
// registered on the default registry and served by promhttp at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequests counts served requests by route pattern and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "spendigo",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "Total HTTP requests by route and status.",
}, []string{"method", "route", "status"})

// HTTPDuration tracks request latency by route pattern.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "spendigo",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route"})

// HTTPRateLimited counts requests rejected by the per-IP limiter.
var HTTPRateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "spendigo",
	Subsystem: "http",
	Name:      "rate_limited_total",
	Help:      "Total requests rejected by the per-client rate limiter.",
})

// HTTPSuspicious counts requests matching a known probe pattern.
var HTTPSuspicious = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "spendigo",
	Subsystem: "http",
	Name:      "suspicious_requests_total",
	Help:      "Total requests flagged as probes or scans.",
})

// HTTPAuthFailures counts requests refused for missing or invalid identity.
var HTTPAuthFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "spendigo",
	Subsystem: "http",
	Name:      "auth_failures_total",
	Help:      "Total requests refused by the identity check.",
})

// ─── Ledger ─────────────────────────────────────────────────────────────────

// LedgerMutations counts committed ledger mutations by operation and strategy.
var LedgerMutations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "spendigo",
	Subsystem: "ledger",
	Name:      "mutations_total",
	Help:      "Total committed ledger mutations.",
}, []string{"operation", "strategy"})

// LedgerRejections counts mutations refused before commit, by reason.
var LedgerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "spendigo",
	Subsystem: "ledger",
	Name:      "rejections_total",
	Help:      "Total ledger mutations rejected before commit.",
}, []string{"reason"})

// ─── Voice ──────────────────────────────────────────────────────────────────

// VoiceExtractions counts extractions by the path that produced the draft.
var VoiceExtractions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "spendigo",
	Subsystem: "voice",
	Name:      "extractions_total",
	Help:      "Total voice extractions by path (llm, fallback, rate_limited).",
}, []string{"path"})

// LLMAttempts counts outbound LLM HTTP attempts by outcome.
var LLMAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "spendigo",
	Subsystem: "llm",
	Name:      "attempts_total",
	Help:      "Total LLM completion attempts by outcome.",
}, []string{"outcome"})

// LLMDuration tracks end-to-end LLM extraction latency, retries included.
var LLMDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "spendigo",
	Subsystem: "llm",
	Name:      "extraction_duration_seconds",
	Help:      "LLM extraction latency in seconds, including retries.",
	Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
})

// ─── Mirror ─────────────────────────────────────────────────────────────────

// MirrorSyncs counts mirror refreshes by result (written, unchanged, error).
var MirrorSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "spendigo",
	Subsystem: "mirror",
	Name:      "syncs_total",
	Help:      "Total mirror refreshes by result.",
}, []string{"result"})

// ActiveSessions tracks open user sessions in the API server.
var ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "spendigo",
	Subsystem: "session",
	Name:      "active",
	Help:      "Number of open user sessions.",
})

// ObserveHTTP records one served request.
func ObserveHTTP(method, route, status string, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(method, route, status).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
