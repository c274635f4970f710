package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestLedgerCountersAppearInScrape(t *testing.T) {
	m := NewMetrics()
	m.PostingAccepted("acme")
	m.PostingRejected("acme", "invariant")
	m.ReplayCompleted("acme")
	m.FingerprintMismatch("acme")

	body := scrape(t, m)
	require.Contains(t, body, `meridian_ledger_postings_accepted_total{company="acme"} 1`)
	require.Contains(t, body, `meridian_ledger_postings_rejected_total{company="acme",reason="invariant"} 1`)
	require.Contains(t, body, `meridian_replay_runs_total{company="acme"} 1`)
	require.Contains(t, body, `meridian_replay_fingerprint_mismatches_total{company="acme"} 1`)
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	m := NewMetrics()
	router := chi.NewRouter()
	router.Use(m.Middleware)
	router.Get("/companies/{companyID}/replay", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/companies/acme/replay", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := scrape(t, m)
	require.Contains(t, body, "/companies/{companyID}/replay")
	require.True(t, strings.Contains(body, `code="200"`))
}

func TestNilMetricsAreInert(t *testing.T) {
	var m *Metrics
	m.PostingAccepted("acme")
	m.ReplayCompleted("acme")

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
