// Package metrics defines the Prometheus instruments for billing jobs and the
// HTTP API. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Match outcomes recorded by the reconciliation run.
const (
	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ReconcileRunsTotal    *prometheus.CounterVec
	ReconcileMatchesTotal *prometheus.CounterVec
	ReconcileRunDuration  prometheus.Histogram

	RecurringGeneratedTotal   *prometheus.CounterVec
	RecurringTransitionsTotal *prometheus.CounterVec

	HealthRefreshTotal *prometheus.CounterVec
	ExtractionsTotal   *prometheus.CounterVec
}

// New creates and registers all metrics on registry. A nil registry gets a
// fresh one with the Go and process collectors attached.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billflow_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billflow_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		ReconcileRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billflow_reconcile_runs_total",
				Help: "Reconciliation runs by result",
			},
			[]string{"result"},
		),
		ReconcileMatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billflow_reconcile_matches_total",
				Help: "Selected reconciliation matches by outcome",
			},
			[]string{"outcome"},
		),
		ReconcileRunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "billflow_reconcile_run_duration_seconds",
				Help:    "Duration of one account's reconciliation run",
				Buckets: prometheus.DefBuckets,
			},
		),
		RecurringGeneratedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billflow_recurring_generated_total",
				Help: "Invoice generation attempts from recurring templates by result",
			},
			[]string{"result"},
		),
		RecurringTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billflow_recurring_transitions_total",
				Help: "Recurring template state transitions",
			},
			[]string{"from", "to"},
		),
		HealthRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billflow_health_refresh_total",
				Help: "Client health score refreshes by result",
			},
			[]string{"result"},
		),
		ExtractionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billflow_extractions_total",
				Help: "Document extractions by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReconcileRunsTotal,
		m.ReconcileMatchesTotal,
		m.ReconcileRunDuration,
		m.RecurringGeneratedTotal,
		m.RecurringTransitionsTotal,
		m.HealthRefreshTotal,
		m.ExtractionsTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordReconcileRun records one run and its per-match outcomes.
func (m *Metrics) RecordReconcileRun(result string, applied, skipped, failed int, d time.Duration) {
	if m == nil {
		return
	}
	m.ReconcileRunsTotal.WithLabelValues(result).Inc()
	m.ReconcileMatchesTotal.WithLabelValues(OutcomeApplied).Add(float64(applied))
	m.ReconcileMatchesTotal.WithLabelValues(OutcomeSkipped).Add(float64(skipped))
	m.ReconcileMatchesTotal.WithLabelValues(OutcomeFailed).Add(float64(failed))
	m.ReconcileRunDuration.Observe(d.Seconds())
}

// RecordGenerate records one invoice generation attempt.
func (m *Metrics) RecordGenerate(result string) {
	if m == nil {
		return
	}
	m.RecurringGeneratedTotal.WithLabelValues(result).Inc()
}

// RecordTransition records a template state change.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.RecurringTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordHealthRefresh records one cached score refresh.
func (m *Metrics) RecordHealthRefresh(result string) {
	if m == nil {
		return
	}
	m.HealthRefreshTotal.WithLabelValues(result).Inc()
}

// RecordExtraction records one document extraction.
func (m *Metrics) RecordExtraction(result string) {
	if m == nil {
		return
	}
	m.ExtractionsTotal.WithLabelValues(result).Inc()
}

// Middleware records request count and latency per route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
