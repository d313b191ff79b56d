// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetricsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	RegisterMetricsEndpoint(router)

	// Test that /metrics endpoint works
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# HELP")
}

func TestMetricsHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	handler := MetricsHandler()

	require.NotNil(t, handler)
}

func TestLockCounters(t *testing.T) {
	// These should not panic
	LockAcquisitions.WithLabelValues("semester", "granted").Inc()
	LockAcquisitions.WithLabelValues("section", "denied").Inc()
	LockHeartbeats.WithLabelValues("renewed").Inc()
	LockHeartbeats.WithLabelValues("not_owner").Inc()
	LockReleases.Inc()
	LockSweepPurged.Add(3)
	GuardDecisions.WithLabelValues("subject", "allowed").Inc()
	GuardDecisions.WithLabelValues("subject", "lock_held").Inc()
}

func TestRecordHelpers(t *testing.T) {
	RecordHTTPRequest("GET", "/api/v1/semesters", "200")
	RecordHTTPRequestDuration("GET", "/api/v1/semesters", 0.05)
	RecordDatabaseQuery("lock_acquire", 0.002)
}
