// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LockAcquisitions tracks lock acquisition attempts by resource type and
	// outcome (granted, denied, error).
	LockAcquisitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lock_acquisitions_total",
			Help: "Total lock acquisition attempts by resource type and outcome",
		},
		[]string{"resource_type", "outcome"},
	)

	// LockHeartbeats tracks lease renewal attempts by outcome
	// (renewed, not_owner, error).
	LockHeartbeats = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lock_heartbeats_total",
			Help: "Total lock heartbeat attempts by outcome",
		},
		[]string{"outcome"},
	)

	// LockReleases tracks release calls. Releases are idempotent, so this
	// counts requests, not records removed.
	LockReleases = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lock_releases_total",
			Help: "Total lock release requests",
		},
	)

	// LockSweepPurged tracks expired lock records purged by the sweeper.
	LockSweepPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lock_sweep_purged_total",
			Help: "Total expired lock records purged by the sweeper",
		},
	)

	// GuardDecisions tracks authorization guard decisions on mutating
	// requests (allowed, not_locked, lock_held).
	GuardDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lock_guard_decisions_total",
			Help: "Total authorization guard decisions by resource type and decision",
		},
		[]string{"resource_type", "decision"},
	)

	// HTTPRequestsTotal tracks total HTTP requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request duration.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// DatabaseQueryDuration tracks database query duration.
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(method, path, status string) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(method, path string, seconds float64) {
	HTTPRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

// RecordDatabaseQuery records the duration of a database operation.
func RecordDatabaseQuery(operation string, seconds float64) {
	DatabaseQueryDuration.WithLabelValues(operation).Observe(seconds)
}

// RegisterMetricsEndpoint registers the /metrics endpoint on a Gin router.
func RegisterMetricsEndpoint(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// MetricsHandler returns the Prometheus HTTP handler.
func MetricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
