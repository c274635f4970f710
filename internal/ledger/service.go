package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meridian-books/meridian/internal/shared"
)

// PeriodGuard gates postings by transaction date. The guard resolves lock
// state server-side by (company, date); no caller-supplied period id and no
// externally issued access token can bypass it.
type PeriodGuard interface {
	EnsurePostable(ctx context.Context, companyID string, date time.Time) error
}

// Recorder receives posting outcome signals for metrics.
type Recorder interface {
	PostingAccepted(companyID string)
	PostingRejected(companyID, reason string)
}

// Engine orchestrates validated, idempotent posting into the append-only
// store. It holds no mutable state of its own; correctness rests on the
// store's atomicity.
type Engine struct {
	store   Store
	guard   PeriodGuard
	audit   shared.AuditPort
	metrics Recorder
	now     func() time.Time
}

// NewEngine constructs an Engine.
func NewEngine(store Store, guard PeriodGuard, audit shared.AuditPort, metrics Recorder) *Engine {
	return &Engine{store: store, guard: guard, audit: audit, metrics: metrics, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (e *Engine) WithNow(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// Post validates, gates, and atomically appends a transaction. All checks
// pass before commit; the first failure wins and leaves no partial effects.
// Two concurrent posts of the same (company, number, idempotency key) result
// in exactly one stored transaction.
func (e *Engine) Post(ctx context.Context, input Transaction) (Transaction, error) {
	txn := Normalize(input)
	if err := ValidateTransaction(txn); err != nil {
		e.reject(txn.CompanyID, "invariant")
		return Transaction{}, err
	}
	if e.guard != nil {
		if err := e.guard.EnsurePostable(ctx, txn.CompanyID, txn.Date); err != nil {
			e.reject(txn.CompanyID, "period_lock")
			return Transaction{}, err
		}
	}

	existing, err := e.store.GetTransaction(ctx, txn.CompanyID, txn.TransactionID)
	switch {
	case err == nil:
		return e.resolveDuplicate(txn, existing)
	case !errors.Is(err, ErrTransactionNotFound):
		return Transaction{}, err
	}

	if err := e.store.AppendTransaction(ctx, txn); err != nil {
		if errors.Is(err, ErrAlreadyApplied) {
			// Lost a race against an identical retry; fall through to the
			// idempotent comparison against whatever won.
			stored, getErr := e.store.GetTransaction(ctx, txn.CompanyID, txn.TransactionID)
			if getErr != nil {
				return Transaction{}, getErr
			}
			return e.resolveDuplicate(txn, stored)
		}
		return Transaction{}, err
	}

	if e.metrics != nil {
		e.metrics.PostingAccepted(txn.CompanyID)
	}
	if e.audit != nil {
		_ = e.audit.Record(ctx, shared.AuditLog{
			Actor:     txn.CreatedBy,
			CompanyID: txn.CompanyID,
			Action:    "ledger.post",
			Entity:    "ledger_transaction",
			EntityID:  txn.TransactionID,
			Meta: map[string]any{
				"transaction_number": txn.TransactionNumber,
				"currency":           txn.Currency,
				"lines":              len(txn.Lines),
			},
			At: e.now(),
		})
	}
	return txn, nil
}

// Get returns a stored transaction.
func (e *Engine) Get(ctx context.Context, companyID, transactionID string) (Transaction, error) {
	return e.store.GetTransaction(ctx, companyID, transactionID)
}

// Reverse posts a correcting transaction that mirrors every line of the
// original. The original is never mutated; the reversal references it.
func (e *Engine) Reverse(ctx context.Context, companyID, transactionID string, number int64, idempotencyKey, actor string, date time.Time) (Transaction, error) {
	original, err := e.store.GetTransaction(ctx, companyID, transactionID)
	if err != nil {
		return Transaction{}, err
	}
	lines := make([]Entry, len(original.Lines))
	for i, line := range original.Lines {
		side := SideDebit
		if line.Side == SideDebit {
			side = SideCredit
		}
		lines[i] = Entry{
			AccountID:   line.AccountID,
			Side:        side,
			Amount:      line.Amount,
			Description: line.Description,
		}
	}
	reversal := Transaction{
		CompanyID:         companyID,
		TransactionNumber: number,
		Date:              date,
		Type:              "REVERSAL",
		Description:       fmt.Sprintf("Reversal of %s", original.TransactionID),
		ReferenceNumber:   original.TransactionID,
		CreatedBy:         actor,
		IdempotencyKey:    idempotencyKey,
		Currency:          original.Currency,
		Lines:             lines,
	}
	return e.Post(ctx, reversal)
}

func (e *Engine) resolveDuplicate(submitted, stored Transaction) (Transaction, error) {
	submittedHash, err := ContentHash(submitted)
	if err != nil {
		return Transaction{}, err
	}
	storedHash, err := ContentHash(stored)
	if err != nil {
		return Transaction{}, err
	}
	if submittedHash != storedHash {
		e.reject(submitted.CompanyID, "idempotency_conflict")
		return Transaction{}, fmt.Errorf("%w: %s", ErrIdempotencyConflict, submitted.TransactionID)
	}
	// Identical logical content: already applied, observably a no-op.
	return stored, nil
}

func (e *Engine) reject(companyID, reason string) {
	if e.metrics != nil {
		e.metrics.PostingRejected(companyID, reason)
	}
}
