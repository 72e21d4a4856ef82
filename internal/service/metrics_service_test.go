package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-wizard/internal/models"
)

func TestMetricsSnapshotAggregates(t *testing.T) {
	m := NewMetricsService(func() int { return 4 })

	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/enrollment-wizards/:id", http.StatusOK, 20*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/enrollment-wizards", http.StatusCreated, 40*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.ObserveSubmission("success")
	m.ObserveSubmission("conflict")
	m.ObserveStaleLookup("courses")

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 30.0, snap.AverageRequestDurationMs, 0.001)
	assert.InDelta(t, 2.0/3.0, snap.CacheHitRatio, 0.0001)
	assert.Equal(t, uint64(1), snap.SubmissionsSucceeded)
	assert.Equal(t, uint64(1), snap.SubmissionsFailed)
	assert.Equal(t, uint64(1), snap.StaleLookupsDiscarded)
	assert.Equal(t, 4, snap.ActiveWizards)
}

func TestMetricsHandlerExposesWizardCollectors(t *testing.T) {
	m := NewMetricsService(func() int { return 1 })
	m.ObserveStepTransition(models.StepStudent, StepOutcomeRejected)
	m.ObserveSweep(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "wizard_step_transitions_total")
	assert.Contains(t, body, `outcome="rejected"`)
	assert.Contains(t, body, "wizard_sessions_swept_total 2")
	assert.Contains(t, body, "wizard_sessions_active 1")
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveSubmission("success")
	m.ObserveSweep(1)
	assert.Equal(t, models.SystemMetrics{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
