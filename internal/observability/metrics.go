// Package observability wires Prometheus metrics for the HTTP surface and
// the ledger core.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the process registry. It implements the recorder interfaces
// of the ledger and replay engines, so services stay free of any prometheus
// dependency.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	postingsAccepted *prometheus.CounterVec
	postingsRejected *prometheus.CounterVec
	replaysTotal     *prometheus.CounterVec
	replayMismatches *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	accepted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_ledger_postings_accepted_total",
		Help: "Committed ledger postings per company.",
	}, []string{"company"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_ledger_postings_rejected_total",
		Help: "Rejected ledger postings per company and reason.",
	}, []string{"company", "reason"})
	replays := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_replay_runs_total",
		Help: "Completed ledger replays per company.",
	}, []string{"company"})
	mismatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_replay_fingerprint_mismatches_total",
		Help: "Replay fingerprint mismatches per company.",
	}, []string{"company"})
	registry.MustRegister(requests, duration, accepted, rejected, replays, mismatches)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		postingsAccepted: accepted,
		postingsRejected: rejected,
		replaysTotal:     replays,
		replayMismatches: mismatches,
	}
}

// PostingAccepted implements ledger.Recorder.
func (m *Metrics) PostingAccepted(companyID string) {
	if m != nil {
		m.postingsAccepted.WithLabelValues(companyID).Inc()
	}
}

// PostingRejected implements ledger.Recorder.
func (m *Metrics) PostingRejected(companyID, reason string) {
	if m != nil {
		m.postingsRejected.WithLabelValues(companyID, reason).Inc()
	}
}

// ReplayCompleted implements replay.Recorder.
func (m *Metrics) ReplayCompleted(companyID string) {
	if m != nil {
		m.replaysTotal.WithLabelValues(companyID).Inc()
	}
}

// FingerprintMismatch implements replay.Recorder.
func (m *Metrics) FingerprintMismatch(companyID string) {
	if m != nil {
		m.replayMismatches.WithLabelValues(companyID).Inc()
	}
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request counts and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for job level metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
