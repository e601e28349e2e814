package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordReconcileRun("ok", 1, 2, 3, time.Second)
	m.RecordGenerate("ok")
	m.RecordTransition("draft", "active")
	m.RecordHealthRefresh("ok")
	m.RecordExtraction("ok")

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestRecordReconcileRun(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordReconcileRun("ok", 3, 1, 0, 50*time.Millisecond)
	m.RecordReconcileRun("ok", 2, 0, 1, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReconcileRunsTotal.WithLabelValues("ok")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ReconcileMatchesTotal.WithLabelValues(OutcomeApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconcileMatchesTotal.WithLabelValues(OutcomeSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconcileMatchesTotal.WithLabelValues(OutcomeFailed)))
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New(nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := m.Middleware(mux)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "GET /items/{id}", "404")))

	out := httptest.NewRecorder()
	m.Handler().ServeHTTP(out, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, out.Code)
	assert.True(t, strings.Contains(out.Body.String(), "billflow_http_requests_total"))
	assert.True(t, strings.Contains(out.Body.String(), "go_goroutines"))
}
