// Package attesthttp serves attestation submission.
package attesthttp

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-books/meridian/internal/attest"
	"github.com/meridian-books/meridian/internal/platform/httpx"
	"github.com/meridian-books/meridian/internal/reports"
)

type Handler struct {
	logger    *slog.Logger
	service   *attest.Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *attest.Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers attestation routes under /companies/{companyID}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/attestations", h.attest)
}

type attestRequest struct {
	Actor  string `json:"actor" validate:"required,max=200"`
	From   string `json:"from" validate:"required,datetime=2006-01-02"`
	To     string `json:"to" validate:"required,datetime=2006-01-02"`
	Hashes struct {
		TrialBalance    string `json:"trialBalance" validate:"required,len=64,hexadecimal"`
		IncomeStatement string `json:"incomeStatement" validate:"required,len=64,hexadecimal"`
		BalanceSheet    string `json:"balanceSheet" validate:"required,len=64,hexadecimal"`
		CashFlow        string `json:"cashFlow" validate:"required,len=64,hexadecimal"`
		TaxExport       string `json:"taxExport" validate:"required,len=64,hexadecimal"`
	} `json:"hashes" validate:"required"`
	Permissions []string `json:"permissions" validate:"required,min=1"`
}

type attestResponse struct {
	AttestationID string `json:"attestationId"`
	CorrelationID string `json:"correlationId"`
	AttestedAt    string `json:"attestedAt"`
}

func (h *Handler) attest(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")
	var req attestRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	from, _ := time.Parse("2006-01-02", req.From)
	to, _ := time.Parse("2006-01-02", req.To)

	att, err := h.service.Attest(r.Context(), attest.Request{
		CompanyID: companyID,
		Actor:     req.Actor,
		Period:    reports.NewPeriod(from, to),
		Hashes: attest.ReportHashes{
			TrialBalance:    req.Hashes.TrialBalance,
			IncomeStatement: req.Hashes.IncomeStatement,
			BalanceSheet:    req.Hashes.BalanceSheet,
			CashFlow:        req.Hashes.CashFlow,
			TaxExport:       req.Hashes.TaxExport,
		},
		Permissions: req.Permissions,
	})
	if err != nil {
		h.logger.Warn("attestation rejected", slog.String("company", companyID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, attestResponse{
		AttestationID: att.AttestationID,
		CorrelationID: att.CorrelationID,
		AttestedAt:    att.AttestedAt.Format(time.RFC3339),
	})
}
