package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/fleetdocs/internal/domain"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveHTTP("GET", "/health", 200, time.Millisecond)
		m.Calculation("survey", "ok")
		m.SetUpcoming("acme", &domain.UpcomingSurveys{})
		m.IngestedRows("ok", 3)
		m.CacheLookup(true)
		m.JobRun("digest", nil)
	})
	assert.Nil(t, m.Registry())

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveHTTP("GET", "/api/v1/ships", 200, 20*time.Millisecond)
	m.ObserveHTTP("GET", "/api/v1/ships", 200, 10*time.Millisecond)
	m.ObserveHTTP("GET", "", 404, time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/ships", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")))

	m.Calculation("docking", "insufficient_data")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calculations.WithLabelValues("docking", "insufficient_data")))

	m.CacheLookup(false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))

	m.JobRun("digest", errors.New("db down"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("digest", "error")))

	m.IngestedRows("ok", 0)
	m.IngestedRows("ok", 4)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ingestedRows.WithLabelValues("ok")))
}

func TestSetUpcoming(t *testing.T) {
	m := New()
	m.SetUpcoming("acme", &domain.UpcomingSurveys{Entries: []domain.UpcomingSurveyEntry{
		{Status: domain.StatusOverdue},
		{Status: domain.StatusOverdue},
		{Status: domain.StatusValid},
	}})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.upcomingByStatus.WithLabelValues("acme", domain.StatusOverdue)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.upcomingByStatus.WithLabelValues("acme", domain.StatusCritical)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upcomingByStatus.WithLabelValues("acme", domain.StatusValid)))
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.Calculation("survey", "ok")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fleetdocs_survey_calculations_total")
}
