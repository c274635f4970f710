// Package replay reconstructs account balances and a tamper-evident
// fingerprint by re-processing a company's full transaction history in
// canonical order. Replay is read-only and safe to run concurrently.
package replay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian/internal/ledger"
)

// ErrFingerprintMismatch is raised when a supplied expected fingerprint does
// not match the recomputed one. It is a ledger invariant violation: the log
// has been altered or the caller's snapshot is stale.
var ErrFingerprintMismatch = fmt.Errorf("%w: fingerprint mismatch", ledger.ErrInvariant)

// Options narrows a replay run.
type Options struct {
	// From/To bound the transaction dates folded into the result. Zero values
	// leave the corresponding side unbounded.
	From time.Time
	To   time.Time
	// ExpectedFingerprint, when set, must match the recomputed fingerprint.
	ExpectedFingerprint string
}

// Aggregate is the running position of a single account.
type Aggregate struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// Net returns debits minus credits.
func (a Aggregate) Net() decimal.Decimal {
	return a.Debit.Sub(a.Credit)
}

// Result is derived, never stored: recomputed on demand and bit-for-bit
// reproducible from the same transaction log.
type Result struct {
	CompanyID   string
	Balances    map[string]Aggregate
	Fingerprint string
	// Log holds the replayed transactions in canonical order.
	Log []ledger.Transaction
}

// Recorder receives replay outcome signals for metrics.
type Recorder interface {
	ReplayCompleted(companyID string)
	FingerprintMismatch(companyID string)
}

// Engine replays a company's ledger from the append-only store.
type Engine struct {
	store   ledger.Store
	metrics Recorder
}

// NewEngine constructs a replay Engine.
func NewEngine(store ledger.Store, metrics Recorder) *Engine {
	return &Engine{store: store, metrics: metrics}
}

// Replay loads the company's transactions, orders them canonically (date,
// transaction number, transaction id, never insertion time), folds every
// line into per-account balances, and fingerprints the canonical stream.
func (e *Engine) Replay(ctx context.Context, companyID string, opts Options) (Result, error) {
	txns, err := e.store.ListTransactions(ctx, companyID)
	if err != nil {
		return Result{}, err
	}
	sort.Slice(txns, func(i, j int) bool {
		if !txns[i].Date.Equal(txns[j].Date) {
			return txns[i].Date.Before(txns[j].Date)
		}
		if txns[i].TransactionNumber != txns[j].TransactionNumber {
			return txns[i].TransactionNumber < txns[j].TransactionNumber
		}
		return txns[i].TransactionID < txns[j].TransactionID
	})

	hasher := sha256.New()
	balances := make(map[string]Aggregate)
	var log []ledger.Transaction
	for _, txn := range txns {
		if !opts.From.IsZero() && txn.Date.Before(opts.From) {
			continue
		}
		if !opts.To.IsZero() && txn.Date.After(opts.To) {
			continue
		}
		record, err := ledger.CanonicalRecord(txn)
		if err != nil {
			return Result{}, err
		}
		hasher.Write(record)
		hasher.Write([]byte{'\n'})
		for _, line := range txn.Lines {
			agg := balances[line.AccountID]
			switch line.Side {
			case ledger.SideDebit:
				agg.Debit = agg.Debit.Add(line.Amount.Amount)
			case ledger.SideCredit:
				agg.Credit = agg.Credit.Add(line.Amount.Amount)
			}
			balances[line.AccountID] = agg
		}
		log = append(log, txn)
	}

	result := Result{
		CompanyID:   companyID,
		Balances:    balances,
		Fingerprint: hex.EncodeToString(hasher.Sum(nil)),
		Log:         log,
	}
	if opts.ExpectedFingerprint != "" && opts.ExpectedFingerprint != result.Fingerprint {
		if e.metrics != nil {
			e.metrics.FingerprintMismatch(companyID)
		}
		return Result{}, fmt.Errorf("%w: expected %s got %s", ErrFingerprintMismatch, opts.ExpectedFingerprint, result.Fingerprint)
	}
	if e.metrics != nil {
		e.metrics.ReplayCompleted(companyID)
	}
	return result, nil
}

// Verify replays the ledger against an expected fingerprint. It is the
// auditor-facing entry point: any silent alteration of the log fails here.
func (e *Engine) Verify(ctx context.Context, companyID, expectedFingerprint string) (Result, error) {
	return e.Replay(ctx, companyID, Options{ExpectedFingerprint: expectedFingerprint})
}
