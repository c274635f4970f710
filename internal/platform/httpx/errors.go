package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-books/meridian/internal/access"
	"github.com/meridian-books/meridian/internal/attest"
	"github.com/meridian-books/meridian/internal/export"
	"github.com/meridian-books/meridian/internal/ledger"
	"github.com/meridian-books/meridian/internal/periods"
	"github.com/meridian-books/meridian/internal/shared"
	"github.com/meridian-books/meridian/internal/tax"
)

// ErrValidation marks malformed request payloads.
var ErrValidation = errors.New("validation failed")

// RespondError maps domain errors to RFC7807 responses. Invariant and lock
// violations carry their message verbatim; they are part of the contract,
// not internals to hide.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ledger.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Idempotency Conflict", err.Error())
	case errors.Is(err, ledger.ErrInvariant):
		Problem(w, http.StatusUnprocessableEntity, "Ledger Invariant Violation", err.Error())
	case errors.Is(err, ledger.ErrNoLines), errors.Is(err, ledger.ErrUnknownCurrency), errors.Is(err, ledger.ErrNonPositiveAmount):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, periods.ErrPeriodLocked):
		Problem(w, http.StatusLocked, "Period Locked", err.Error())
	case errors.Is(err, periods.ErrNotFinalized):
		Problem(w, http.StatusConflict, "Period Not Finalized", err.Error())
	case errors.Is(err, periods.ErrInvalidTransition):
		Problem(w, http.StatusConflict, "Invalid Period Transition", err.Error())
	case errors.Is(err, export.ErrDraftForbidden):
		Problem(w, http.StatusForbidden, "Draft Exports Are Forbidden", err.Error())
	case errors.Is(err, export.ErrUnknownMode), errors.Is(err, export.ErrUnknownFormat), errors.Is(err, export.ErrInvalidEnvelope):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrPermissionDenied):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, access.ErrTokenInvalid):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, access.ErrWriteCapability), errors.Is(err, access.ErrInvalidTTL):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, attest.ErrMalformedHash), errors.Is(err, attest.ErrActorRequired):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, tax.ErrEmptyPeriod):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, tax.ErrNoJurisdictionAccounts):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ledger.ErrTransactionNotFound), errors.Is(err, periods.ErrNotFound), errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
