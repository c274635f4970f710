// Package ledgerhttp wires the posting API.
package ledgerhttp

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-books/meridian/internal/ledger"
	"github.com/meridian-books/meridian/internal/platform/httpx"
)

type Handler struct {
	logger    *slog.Logger
	engine    *ledger.Engine
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, engine *ledger.Engine) *Handler {
	return &Handler{logger: logger, engine: engine, validator: validator.New()}
}

// MountRoutes registers posting routes under /companies/{companyID}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/transactions", h.post)
	r.Get("/transactions/{transactionID}", h.get)
	r.Post("/transactions/{transactionID}/reverse", h.reverse)
}

type postLineRequest struct {
	AccountID   string `json:"accountId" validate:"required"`
	Side        string `json:"side" validate:"required,oneof=DEBIT CREDIT"`
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description" validate:"max=500"`
}

type postRequest struct {
	TransactionNumber int64             `json:"transactionNumber" validate:"required,gt=0"`
	Date              time.Time         `json:"date" validate:"required"`
	Type              string            `json:"type" validate:"required,max=50"`
	Description       string            `json:"description" validate:"max=500"`
	ReferenceNumber   string            `json:"referenceNumber" validate:"max=100"`
	CreatedBy         string            `json:"createdBy" validate:"required,max=200"`
	IdempotencyKey    string            `json:"idempotencyKey" validate:"required,max=200"`
	Currency          string            `json:"currency" validate:"required,len=3"`
	Lines             []postLineRequest `json:"lines" validate:"required,min=2,dive"`
}

type transactionResponse struct {
	TransactionID     string         `json:"transactionId"`
	CompanyID         string         `json:"companyId"`
	TransactionNumber int64          `json:"transactionNumber"`
	Date              string         `json:"date"`
	Type              string         `json:"type"`
	Description       string         `json:"description,omitempty"`
	ReferenceNumber   string         `json:"referenceNumber,omitempty"`
	Currency          string         `json:"currency"`
	Lines             []lineResponse `json:"lines"`
}

type lineResponse struct {
	LineID      string `json:"lineId"`
	AccountID   string `json:"accountId"`
	Side        string `json:"side"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
}

func toTransactionResponse(txn ledger.Transaction) transactionResponse {
	lines := make([]lineResponse, len(txn.Lines))
	for i, line := range txn.Lines {
		lines[i] = lineResponse{
			LineID:      line.LineID,
			AccountID:   line.AccountID,
			Side:        string(line.Side),
			Amount:      line.Amount.Canonical(),
			Currency:    line.Amount.Currency,
			Description: line.Description,
		}
	}
	return transactionResponse{
		TransactionID:     txn.TransactionID,
		CompanyID:         txn.CompanyID,
		TransactionNumber: txn.TransactionNumber,
		Date:              txn.Date.Format("2006-01-02"),
		Type:              txn.Type,
		Description:       txn.Description,
		ReferenceNumber:   txn.ReferenceNumber,
		Currency:          txn.Currency,
		Lines:             lines,
	}
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}

	lines := make([]ledger.Entry, len(req.Lines))
	for i, line := range req.Lines {
		amount, err := ledger.NewMoney(line.Amount, req.Currency)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		lines[i] = ledger.Entry{
			AccountID:   line.AccountID,
			Side:        ledger.Side(line.Side),
			Amount:      amount,
			Description: line.Description,
		}
	}

	txn, err := h.engine.Post(r.Context(), ledger.Transaction{
		CompanyID:         companyID,
		TransactionNumber: req.TransactionNumber,
		Date:              req.Date,
		Type:              req.Type,
		Description:       req.Description,
		ReferenceNumber:   req.ReferenceNumber,
		CreatedBy:         req.CreatedBy,
		IdempotencyKey:    req.IdempotencyKey,
		Currency:          req.Currency,
		Lines:             lines,
	})
	if err != nil {
		h.logger.Warn("posting rejected", slog.String("company", companyID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(txn))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")
	transactionID := chi.URLParam(r, "transactionID")

	txn, err := h.engine.Get(r.Context(), companyID, transactionID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionResponse(txn))
}

type reverseRequest struct {
	TransactionNumber int64     `json:"transactionNumber" validate:"required,gt=0"`
	IdempotencyKey    string    `json:"idempotencyKey" validate:"required,max=200"`
	Date              time.Time `json:"date" validate:"required"`
	Actor             string    `json:"actor" validate:"required,max=200"`
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyID")
	transactionID := chi.URLParam(r, "transactionID")

	var req reverseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}

	txn, err := h.engine.Reverse(r.Context(), companyID, transactionID, req.TransactionNumber, req.IdempotencyKey, req.Actor, req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(txn))
}
