package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meridian-books/meridian/internal/shared"
)

// Registry resolves lock state by date and applies administrative
// transitions. It is constructed explicitly and injected wherever gating is
// needed; there is no process-wide singleton.
type Registry struct {
	repo  Repository
	audit shared.AuditPort
	now   func() time.Time
}

// NewRegistry constructs a Registry.
func NewRegistry(repo Repository, audit shared.AuditPort) *Registry {
	return &Registry{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (r *Registry) WithNow(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// ResolveByDate returns the period covering the date, falling back to the
// implicit OPEN calendar month when no administrative action touched it yet.
func (r *Registry) ResolveByDate(ctx context.Context, companyID string, date time.Time) (Period, error) {
	period, err := r.repo.FindByDate(ctx, companyID, date)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ImplicitPeriod(companyID, date), nil
		}
		return Period{}, err
	}
	return period, nil
}

// EnsurePostable gates the ledger write path: only an OPEN period accepts new
// postings. SOFT_CLOSED and HARD_LOCKED both reject with the lock violation.
func (r *Registry) EnsurePostable(ctx context.Context, companyID string, date time.Time) error {
	period, err := r.ResolveByDate(ctx, companyID, date)
	if err != nil {
		return err
	}
	if period.State != StateOpen {
		return fmt.Errorf("%w: period %s is %s", ErrPeriodLocked, period.Name, period.State)
	}
	return nil
}

// EnsureFinalized gates finalized-only reads (tax export, attestation):
// the period must be SOFT_CLOSED or HARD_LOCKED.
func (r *Registry) EnsureFinalized(ctx context.Context, companyID string, date time.Time) error {
	period, err := r.ResolveByDate(ctx, companyID, date)
	if err != nil {
		return err
	}
	if period.State == StateOpen {
		return fmt.Errorf("%w: period %s is OPEN", ErrNotFinalized, period.Name)
	}
	return nil
}

// EnsureFinalizedRange walks the range period by period and fails closed on
// the first date that resolves to an OPEN period.
func (r *Registry) EnsureFinalizedRange(ctx context.Context, companyID string, from, to time.Time) error {
	if from.After(to) {
		return fmt.Errorf("periods: range start %s after end %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	cursor := from
	for !cursor.After(to) {
		period, err := r.ResolveByDate(ctx, companyID, cursor)
		if err != nil {
			return err
		}
		if period.State == StateOpen {
			return fmt.Errorf("%w: period %s is OPEN", ErrNotFinalized, period.Name)
		}
		cursor = period.EndDate.AddDate(0, 0, 1)
	}
	return nil
}

// SoftClose transitions the period covering date to SOFT_CLOSED.
func (r *Registry) SoftClose(ctx context.Context, companyID string, date time.Time, actor string) (Period, error) {
	return r.transition(ctx, companyID, date, StateSoftClosed, actor)
}

// HardLock transitions the period covering date to HARD_LOCKED. Terminal.
func (r *Registry) HardLock(ctx context.Context, companyID string, date time.Time, actor string) (Period, error) {
	return r.transition(ctx, companyID, date, StateHardLocked, actor)
}

// Reopen transitions a SOFT_CLOSED period back to OPEN.
func (r *Registry) Reopen(ctx context.Context, companyID string, date time.Time, actor string) (Period, error) {
	return r.transition(ctx, companyID, date, StateOpen, actor)
}

func (r *Registry) transition(ctx context.Context, companyID string, date time.Time, target State, actor string) (Period, error) {
	if actor == "" {
		return Period{}, errors.New("periods: actor required")
	}
	period, err := r.ResolveByDate(ctx, companyID, date)
	if err != nil {
		return Period{}, err
	}
	if err := ValidateTransition(period.State, target); err != nil {
		return Period{}, err
	}
	previous := period.State
	period.State = target
	period.ChangedBy = actor
	period.ChangedAt = r.now().UTC()
	if err := r.repo.Save(ctx, period, previous); err != nil {
		return Period{}, err
	}
	if r.audit != nil {
		_ = r.audit.Record(ctx, shared.AuditLog{
			Actor:     actor,
			CompanyID: companyID,
			Action:    "period.transition",
			Entity:    "period",
			EntityID:  period.PeriodID,
			Meta: map[string]any{
				"from": string(previous),
				"to":   string(target),
			},
			At: period.ChangedAt,
		})
	}
	return period, nil
}
