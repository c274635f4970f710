package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// AssertBalanced fails unless sum(debit lines) equals sum(credit lines),
// computed in exact decimal arithmetic in the transaction's posting currency.
func AssertBalanced(txn Transaction) error {
	debits := decimal.Zero
	credits := decimal.Zero
	for _, line := range txn.Lines {
		switch line.Side {
		case SideDebit:
			debits = debits.Add(line.Amount.Amount)
		case SideCredit:
			credits = credits.Add(line.Amount.Amount)
		default:
			return fmt.Errorf("%w: line %s has side %q", ErrInvariant, line.LineID, line.Side)
		}
	}
	if !debits.Equal(credits) {
		return fmt.Errorf("%w (debits=%s credits=%s)", ErrUnbalanced, debits, credits)
	}
	return nil
}

// AssertCurrencyIsolation fails if any line's currency differs from the
// transaction's declared posting currency.
func AssertCurrencyIsolation(txn Transaction) error {
	for _, line := range txn.Lines {
		if line.Amount.Currency != txn.Currency {
			return fmt.Errorf("%w (transaction=%s line=%s)", ErrCurrencyMixed, txn.Currency, line.Amount.Currency)
		}
	}
	return nil
}

// ValidateTransaction runs every precondition that must hold before commit.
// The first failure wins and nothing is written on failure.
func ValidateTransaction(txn Transaction) error {
	if txn.CompanyID == "" {
		return errors.New("ledger: company id required")
	}
	if txn.TransactionNumber <= 0 {
		return errors.New("ledger: transaction number required")
	}
	if txn.IdempotencyKey == "" {
		return errors.New("ledger: idempotency key required")
	}
	if txn.Date.IsZero() {
		return errors.New("ledger: transaction date required")
	}
	if _, err := NewMoney("1", txn.Currency); err != nil {
		return err
	}
	if len(txn.Lines) < 2 {
		return ErrNoLines
	}
	seen := make(map[string]int, len(txn.Lines))
	for idx, line := range txn.Lines {
		if line.AccountID == "" {
			return fmt.Errorf("ledger: line %d missing account", idx)
		}
		if line.Side != SideDebit && line.Side != SideCredit {
			return fmt.Errorf("%w: line %d has side %q", ErrInvariant, idx, line.Side)
		}
		if err := line.Amount.Validate(); err != nil {
			return fmt.Errorf("ledger: line %d: %w", idx, err)
		}
		// Line ids are derived from line content, so content-identical lines
		// collide on the same id and must be split or described apart.
		id := DeriveLineID(txn.TransactionID, line)
		if prev, ok := seen[id]; ok {
			return fmt.Errorf("%w: lines %d and %d", ErrDuplicateLine, prev, idx)
		}
		seen[id] = idx
	}
	if err := AssertCurrencyIsolation(txn); err != nil {
		return err
	}
	return AssertBalanced(txn)
}
