package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// ErrUnknownCurrency indicates a currency code outside ISO 4217.
var ErrUnknownCurrency = errors.New("ledger: unknown currency code")

// ErrNonPositiveAmount indicates a zero or negative line amount.
var ErrNonPositiveAmount = errors.New("ledger: amount must be positive")

// Money pairs an exact decimal amount with its ISO 4217 currency code.
// Amounts are never represented as floating point anywhere in the ledger.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NewMoney parses the amount string and validates the currency code.
func NewMoney(amount, code string) (Money, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("ledger: parse amount %q: %w", amount, err)
	}
	return Money{Amount: value, Currency: unit.String()}, nil
}

// MustMoney is a test and fixture helper; it panics on invalid input.
func MustMoney(amount, code string) Money {
	m, err := NewMoney(amount, code)
	if err != nil {
		panic(err)
	}
	return m
}

// Validate checks the currency code and that the amount is strictly positive.
func (m Money) Validate() error {
	if _, err := currency.ParseISO(m.Currency); err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownCurrency, m.Currency)
	}
	if !m.Amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrNonPositiveAmount, m.Amount)
	}
	return nil
}

// Canonical renders the amount at the currency's standard scale, e.g.
// "10.00" for USD. Equal values always render identically, which makes the
// rendering safe to feed into stable ids and fingerprints.
func (m Money) Canonical() string {
	return m.Amount.StringFixed(m.scale())
}

func (m Money) scale() int32 {
	unit, err := currency.ParseISO(m.Currency)
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// String implements fmt.Stringer.
func (m Money) String() string {
	return m.Canonical() + " " + m.Currency
}
