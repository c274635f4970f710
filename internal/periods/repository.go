package periods

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists period lock state. Lookups are strictly by
// (companyID, date); callers never pass a period id into a gate check, so
// lock state cannot be bypassed with a fabricated id.
type Repository interface {
	FindByDate(ctx context.Context, companyID string, date time.Time) (Period, error)
	// Save persists a transition only if the stored state still equals
	// expected. A stale write loses with ErrInvalidTransition, so a racing
	// reopen can never overwrite a hard lock.
	Save(ctx context.Context, period Period, expected State) error
	List(ctx context.Context, companyID string) ([]Period, error)
	ListCompanies(ctx context.Context) ([]string, error)
}

type pgRepository struct {
	db *pgxpool.Pool
}

// NewPGRepository returns a Repository backed by PostgreSQL.
func NewPGRepository(db *pgxpool.Pool) Repository {
	return &pgRepository{db: db}
}

func (r *pgRepository) FindByDate(ctx context.Context, companyID string, date time.Time) (Period, error) {
	var p Period
	var state string
	err := r.db.QueryRow(ctx, `SELECT period_id, company_id, name, start_date, end_date, state, changed_by, changed_at
FROM period_locks WHERE company_id=$1 AND $2 BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1`,
		companyID, date.UTC()).
		Scan(&p.PeriodID, &p.CompanyID, &p.Name, &p.StartDate, &p.EndDate, &state, &p.ChangedBy, &p.ChangedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrNotFound
		}
		return Period{}, fmt.Errorf("periods: find by date: %w", err)
	}
	p.State = State(state)
	p.Persistent = true
	return p, nil
}

func (r *pgRepository) Save(ctx context.Context, period Period, expected State) error {
	ct, err := r.db.Exec(ctx, `INSERT INTO period_locks (period_id, company_id, name, start_date, end_date, state, changed_by, changed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (company_id, period_id) DO UPDATE SET state=$6, changed_by=$7, changed_at=$8
WHERE period_locks.state=$9`,
		period.PeriodID, period.CompanyID, period.Name, period.StartDate, period.EndDate,
		string(period.State), period.ChangedBy, period.ChangedAt, string(expected))
	if err != nil {
		return fmt.Errorf("periods: save: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: period %s changed concurrently", ErrInvalidTransition, period.PeriodID)
	}
	return nil
}

func (r *pgRepository) List(ctx context.Context, companyID string) ([]Period, error) {
	rows, err := r.db.Query(ctx, `SELECT period_id, company_id, name, start_date, end_date, state, changed_by, changed_at
FROM period_locks WHERE company_id=$1 ORDER BY start_date`, companyID)
	if err != nil {
		return nil, fmt.Errorf("periods: list: %w", err)
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		var p Period
		var state string
		if err := rows.Scan(&p.PeriodID, &p.CompanyID, &p.Name, &p.StartDate, &p.EndDate, &state, &p.ChangedBy, &p.ChangedAt); err != nil {
			return nil, err
		}
		p.State = State(state)
		p.Persistent = true
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pgRepository) ListCompanies(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT company_id FROM period_locks ORDER BY company_id`)
	if err != nil {
		return nil, fmt.Errorf("periods: list companies: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// MemoryRepository is an explicitly constructed in-process Repository; tests
// instantiate isolated instances instead of sharing process-wide state.
type MemoryRepository struct {
	mu      sync.RWMutex
	periods map[string][]Period // companyID -> periods
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{periods: make(map[string][]Period)}
}

// FindByDate implements Repository.
func (r *MemoryRepository) FindByDate(_ context.Context, companyID string, date time.Time) (Period, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u := date.UTC()
	d := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	for _, p := range r.periods[companyID] {
		if !d.Before(p.StartDate) && !d.After(p.EndDate) {
			return p, nil
		}
	}
	return Period{}, ErrNotFound
}

// Save implements Repository.
func (r *MemoryRepository) Save(_ context.Context, period Period, expected State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	period.Persistent = true
	list := r.periods[period.CompanyID]
	for i, p := range list {
		if p.PeriodID == period.PeriodID {
			if p.State != expected {
				return fmt.Errorf("%w: period %s changed concurrently", ErrInvalidTransition, period.PeriodID)
			}
			list[i] = period
			return nil
		}
	}
	r.periods[period.CompanyID] = append(list, period)
	return nil
}

// List implements Repository.
func (r *MemoryRepository) List(_ context.Context, companyID string) ([]Period, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Period, len(r.periods[companyID]))
	copy(out, r.periods[companyID])
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

// ListCompanies implements Repository.
func (r *MemoryRepository) ListCompanies(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.periods))
	for id := range r.periods {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
