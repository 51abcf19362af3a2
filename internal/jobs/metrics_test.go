package jobmetrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("reference:warmup").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("reference:warmup").End(boom), boom)
	m.AddWarmed("17", 6)

	body := scrape(t, reg)
	require.Contains(t, body, `po_console_jobs_total{job="reference:warmup",status="success"} 1`)
	require.Contains(t, body, `po_console_jobs_failures_total{job="reference:warmup"} 1`)
	require.Contains(t, body, `po_console_reference_warmed_total{tenant="17"} 6`)

	again := NewMetrics(reg)
	require.Same(t, m.runs, again.runs)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	require.NoError(t, m.Track("x").End(nil))
	m.AddWarmed("17", 1)
}
