// Package periods implements the per-company period lock registry that gates
// every ledger mutation and every finalized-reporting read.
package periods

import (
	"errors"
	"fmt"
	"time"
)

// State enumerates the period lock lifecycle.
type State string

const (
	StateOpen       State = "OPEN"
	StateSoftClosed State = "SOFT_CLOSED"
	StateHardLocked State = "HARD_LOCKED"
)

// Period is the lock state for a date window scoped to one company. Periods
// come into existence implicitly OPEN; transitions are explicit
// administrative actions.
type Period struct {
	PeriodID   string
	CompanyID  string
	Name       string
	StartDate  time.Time
	EndDate    time.Time
	State      State
	ChangedBy  string
	ChangedAt  time.Time
	Persistent bool
}

var (
	// ErrPeriodLocked is the period lock violation: a mutation was attempted
	// against a closed period. Always fatal and surfaced verbatim.
	ErrPeriodLocked = errors.New("periods: period lock violation")
	// ErrNotFinalized rejects finalized-only operations over an open period.
	ErrNotFinalized = errors.New("periods: finalized period required")
	// ErrInvalidTransition indicates a state change outside the lifecycle.
	ErrInvalidTransition = errors.New("periods: invalid state transition")
	// ErrNotFound indicates no stored period covers the date.
	ErrNotFound = errors.New("periods: period not found")
)

// ValidateTransition checks the lifecycle policy. HARD_LOCKED is terminal.
func ValidateTransition(current, target State) error {
	if current == target {
		return nil
	}
	switch current {
	case StateOpen:
		if target == StateSoftClosed || target == StateHardLocked {
			return nil
		}
	case StateSoftClosed:
		if target == StateHardLocked || target == StateOpen {
			return nil
		}
	case StateHardLocked:
		// terminal
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
}

// ImplicitPeriod returns the calendar-month OPEN period covering date. It is
// what a company gets before any administrative action touched the month.
func ImplicitPeriod(companyID string, date time.Time) Period {
	u := date.UTC()
	start := time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	name := start.Format("2006-01")
	return Period{
		PeriodID:  companyID + ":" + name,
		CompanyID: companyID,
		Name:      name,
		StartDate: start,
		EndDate:   end,
		State:     StateOpen,
	}
}
