// Package ledger implements the append-only, replay-verified financial
// ledger: invariant validation, deterministic id derivation, and idempotent
// posting of double-entry transactions.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Side marks a line as a debit or a credit.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// AccountType enumerates chart-of-accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Account models a chart-of-accounts node scoped to a company.
type Account struct {
	CompanyID    string
	AccountID    string
	Code         string
	Name         string
	Type         AccountType
	Jurisdiction string
	TaxPayable   bool
	Cash         bool
}

// Entry is one debit or credit line of a transaction.
type Entry struct {
	CompanyID     string
	TransactionID string
	LineID        string
	AccountID     string
	Side          Side
	Amount        Money
	Description   string
}

// Transaction is the unit of posting. Once committed its lines are never
// mutated or deleted; corrections are new transactions referencing it.
type Transaction struct {
	CompanyID         string
	TransactionID     string
	TransactionNumber int64
	Date              time.Time
	Type              string
	Description       string
	ReferenceNumber   string
	CreatedBy         string
	IdempotencyKey    string
	Currency          string
	Lines             []Entry
}

var (
	// ErrInvariant is the root of all ledger invariant violations. These are
	// fatal to the operation and never retried automatically.
	ErrInvariant = errors.New("ledger: invariant violation")
	// ErrUnbalanced indicates sum(debits) != sum(credits).
	ErrUnbalanced = fmt.Errorf("%w: debits and credits must balance", ErrInvariant)
	// ErrCurrencyMixed indicates a line currency differs from the transaction currency.
	ErrCurrencyMixed = fmt.Errorf("%w: all lines must share the transaction currency", ErrInvariant)
	// ErrDuplicateLine indicates two lines with identical semantic content,
	// which would derive the same line id.
	ErrDuplicateLine = fmt.Errorf("%w: duplicate line content", ErrInvariant)
	// ErrIdempotencyConflict indicates a transaction with the same derived id
	// but different content was already committed.
	ErrIdempotencyConflict = errors.New("ledger: idempotency key reused with different content")
	// ErrAlreadyApplied is returned by stores when the derived transaction id
	// already exists; the engine resolves it to the idempotent path.
	ErrAlreadyApplied = errors.New("ledger: transaction already applied")
	// ErrTransactionNotFound indicates a missing transaction.
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
	// ErrNoLines indicates a transaction without enough lines for double entry.
	ErrNoLines = errors.New("ledger: transaction requires at least two lines")
)

const idSeparator = "\x1f"

// StableID derives a deterministic identifier from a kind and its semantic
// seed parts: the same input always yields the same id. Implemented as a
// truncated SHA-256 so idempotency never depends on random ids.
func StableID(kind string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	for _, p := range parts {
		h.Write([]byte(idSeparator))
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// DeriveTransactionID computes the transaction id from the idempotency tuple.
// Re-submitting the same logical request always maps to the same id.
func DeriveTransactionID(companyID string, number int64, idempotencyKey string) string {
	return StableID("txn", companyID, strconv.FormatInt(number, 10), idempotencyKey)
}

// DeriveLineID computes a line id from the line's full semantic content.
func DeriveLineID(transactionID string, e Entry) string {
	return StableID("line",
		e.CompanyID,
		transactionID,
		e.AccountID,
		string(e.Side),
		e.Amount.Canonical(),
		e.Amount.Currency,
		e.Description,
	)
}

// Normalize fills derived identifiers and canonicalises the transaction date
// to a UTC day. It does not validate invariants; see ValidateTransaction.
func Normalize(txn Transaction) Transaction {
	txn.Date = dateOnly(txn.Date)
	txn.Currency = strings.ToUpper(strings.TrimSpace(txn.Currency))
	txn.TransactionID = DeriveTransactionID(txn.CompanyID, txn.TransactionNumber, txn.IdempotencyKey)
	lines := make([]Entry, len(txn.Lines))
	for i, line := range txn.Lines {
		line.CompanyID = txn.CompanyID
		line.TransactionID = txn.TransactionID
		line.LineID = DeriveLineID(txn.TransactionID, line)
		lines[i] = line
	}
	txn.Lines = lines
	return txn
}

func dateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
