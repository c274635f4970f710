package ledgerhttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian/internal/ledger"
	"github.com/meridian-books/meridian/internal/periods"
	"github.com/meridian-books/meridian/internal/shared"
)

func newTestRouter(t *testing.T) (http.Handler, *periods.Registry) {
	t.Helper()
	audit := shared.NewMemoryAuditLog()
	registry := periods.NewRegistry(periods.NewMemoryRepository(), audit)
	engine := ledger.NewEngine(ledger.NewMemoryStore(), registry, audit, nil)
	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), engine)

	r := chi.NewRouter()
	r.Route("/companies/{companyID}", handler.MountRoutes)
	return r, registry
}

const postBody = `{
	"transactionNumber": 42,
	"date": "2026-01-15T00:00:00Z",
	"type": "JOURNAL",
	"createdBy": "alice",
	"idempotencyKey": "req-001",
	"currency": "USD",
	"lines": [
		{"accountId": "supplies", "side": "DEBIT", "amount": "25.00"},
		{"accountId": "cash", "side": "CREDIT", "amount": "25.00"}
	]
}`

func TestPostTransactionCreated(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/companies/acme/transactions", strings.NewReader(postBody))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var resp struct {
		TransactionID string `json:"transactionId"`
		CompanyID     string `json:"companyId"`
		Lines         []struct {
			Amount string `json:"amount"`
		} `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.TransactionID, 32)
	require.Equal(t, "acme", resp.CompanyID)
	require.Len(t, resp.Lines, 2)
	require.Equal(t, "25.00", resp.Lines[0].Amount)

	// Same request again returns the stored transaction.
	rr2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/companies/acme/transactions", strings.NewReader(postBody))
	router.ServeHTTP(rr2, req2)
	require.Equal(t, http.StatusCreated, rr2.Code)
	require.Contains(t, rr2.Body.String(), resp.TransactionID)
}

func TestPostUnbalancedReturns422(t *testing.T) {
	router, _ := newTestRouter(t)

	body := strings.Replace(postBody, `"amount": "25.00"}`, `"amount": "30.00"}`, 1)
	req := httptest.NewRequest(http.MethodPost, "/companies/acme/transactions", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}

func TestPostConflictingRetryReturns409(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/companies/acme/transactions", strings.NewReader(postBody))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	changed := strings.Replace(postBody, `"type": "JOURNAL"`, `"type": "ADJUSTMENT"`, 1)
	rr2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/companies/acme/transactions", strings.NewReader(changed))
	router.ServeHTTP(rr2, req2)
	require.Equal(t, http.StatusConflict, rr2.Code)
}

func TestPostIntoLockedPeriodReturns423(t *testing.T) {
	router, registry := newTestRouter(t)

	_, err := registry.SoftClose(context.Background(), "acme", time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), "controller")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/companies/acme/transactions", strings.NewReader(postBody))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusLocked, rr.Code)
}

func TestPostRejectsMissingFields(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/companies/acme/transactions", strings.NewReader(`{"currency":"USD"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetUnknownTransactionReturns404(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/companies/acme/transactions/deadbeef", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}
