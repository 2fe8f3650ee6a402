package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceExposesLedgerCounters(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodPost, "batches", "/api/v1/batches/:id/enrollments", http.StatusCreated, 20*time.Millisecond)
	m.RecordEnrollment(OutcomeSuccess)
	m.RecordEnrollment("CAPACITY_EXCEEDED")
	m.RecordFeeTransition("APPROVED", OutcomeSuccess)
	m.RecordTxRetry()
	m.RecordBatchTransitions("ONGOING", 2)
	m.RecordCacheOperation(true, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `ledger_enrollments_total{outcome="CAPACITY_EXCEEDED"} 1`)
	assert.Contains(t, body, `ledger_fee_transitions_total{outcome="success",transition="APPROVED"} 1`)
	assert.Contains(t, body, "ledger_tx_retries_total 1")
	assert.Contains(t, body, `ledger_batch_lifecycle_transitions_total{status="ONGOING"} 2`)
	assert.Contains(t, body, "cache_hit_ratio 1")
	assert.Contains(t, body, `http_requests_total{group="batches",method="POST",route="/api/v1/batches/:id/enrollments",status="201"} 1`)
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.RecordEnrollment(OutcomeSuccess)
	m.RecordTxRetry()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
