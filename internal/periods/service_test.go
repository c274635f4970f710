package periods

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian/internal/shared"
)

func newRegistry() (*Registry, *shared.MemoryAuditLog) {
	audit := shared.NewMemoryAuditLog()
	return NewRegistry(NewMemoryRepository(), audit), audit
}

func jan15() time.Time {
	return time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
}

func TestResolveFallsBackToImplicitOpenMonth(t *testing.T) {
	registry, _ := newRegistry()

	period, err := registry.ResolveByDate(context.Background(), "acme", jan15())
	require.NoError(t, err)
	require.Equal(t, StateOpen, period.State)
	require.Equal(t, "acme:2026-01", period.PeriodID)
	require.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), period.StartDate)
	require.Equal(t, time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC), period.EndDate)
}

func TestLifecycleTransitions(t *testing.T) {
	registry, audit := newRegistry()
	ctx := context.Background()

	period, err := registry.SoftClose(ctx, "acme", jan15(), "controller")
	require.NoError(t, err)
	require.Equal(t, StateSoftClosed, period.State)

	// Soft close is reversible.
	period, err = registry.Reopen(ctx, "acme", jan15(), "controller")
	require.NoError(t, err)
	require.Equal(t, StateOpen, period.State)

	_, err = registry.SoftClose(ctx, "acme", jan15(), "controller")
	require.NoError(t, err)
	period, err = registry.HardLock(ctx, "acme", jan15(), "controller")
	require.NoError(t, err)
	require.Equal(t, StateHardLocked, period.State)

	// HARD_LOCKED is terminal.
	_, err = registry.Reopen(ctx, "acme", jan15(), "cfo")
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = registry.SoftClose(ctx, "acme", jan15(), "cfo")
	require.ErrorIs(t, err, ErrInvalidTransition)

	require.NotEmpty(t, audit.Records())
	require.Equal(t, "period.transition", audit.Records()[0].Action)
}

func TestSaveLosesAgainstConcurrentTransition(t *testing.T) {
	repo := NewMemoryRepository()
	registry := NewRegistry(repo, nil)
	ctx := context.Background()

	_, err := registry.SoftClose(ctx, "acme", jan15(), "controller")
	require.NoError(t, err)

	// Two admins race from the same SOFT_CLOSED read. The hard lock commits
	// first; the stale reopen must lose, not overwrite the terminal state.
	stale, err := repo.FindByDate(ctx, "acme", jan15())
	require.NoError(t, err)

	_, err = registry.HardLock(ctx, "acme", jan15(), "cfo")
	require.NoError(t, err)

	reopened := stale
	reopened.State = StateOpen
	reopened.ChangedBy = "controller"
	err = repo.Save(ctx, reopened, stale.State)
	require.ErrorIs(t, err, ErrInvalidTransition)

	current, err := repo.FindByDate(ctx, "acme", jan15())
	require.NoError(t, err)
	require.Equal(t, StateHardLocked, current.State)
}

func TestEnsurePostable(t *testing.T) {
	registry, _ := newRegistry()
	ctx := context.Background()

	require.NoError(t, registry.EnsurePostable(ctx, "acme", jan15()))

	_, err := registry.SoftClose(ctx, "acme", jan15(), "controller")
	require.NoError(t, err)
	err = registry.EnsurePostable(ctx, "acme", jan15())
	require.ErrorIs(t, err, ErrPeriodLocked)

	// Other months stay open.
	require.NoError(t, registry.EnsurePostable(ctx, "acme", jan15().AddDate(0, 1, 0)))
	// Other tenants are untouched.
	require.NoError(t, registry.EnsurePostable(ctx, "globex", jan15()))
}

func TestEnsureFinalized(t *testing.T) {
	registry, _ := newRegistry()
	ctx := context.Background()

	err := registry.EnsureFinalized(ctx, "acme", jan15())
	require.ErrorIs(t, err, ErrNotFinalized)

	_, err = registry.SoftClose(ctx, "acme", jan15(), "controller")
	require.NoError(t, err)
	require.NoError(t, registry.EnsureFinalized(ctx, "acme", jan15()))

	_, err = registry.HardLock(ctx, "acme", jan15(), "controller")
	require.NoError(t, err)
	require.NoError(t, registry.EnsureFinalized(ctx, "acme", jan15()))
}

func TestEnsureFinalizedRangeFailsClosed(t *testing.T) {
	registry, _ := newRegistry()
	ctx := context.Background()

	jan := jan15()
	feb := jan.AddDate(0, 1, 0)

	_, err := registry.SoftClose(ctx, "acme", jan, "controller")
	require.NoError(t, err)

	// January alone is finalized.
	require.NoError(t, registry.EnsureFinalizedRange(ctx, "acme",
		time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC)))

	// A range reaching into open February fails.
	err = registry.EnsureFinalizedRange(ctx, "acme",
		time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, ErrNotFinalized)

	_, err = registry.SoftClose(ctx, "acme", feb, "controller")
	require.NoError(t, err)
	require.NoError(t, registry.EnsureFinalizedRange(ctx, "acme",
		time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC)))
}

func TestValidateTransitionTable(t *testing.T) {
	cases := []struct {
		from, to State
		ok       bool
	}{
		{StateOpen, StateSoftClosed, true},
		{StateOpen, StateHardLocked, true},
		{StateSoftClosed, StateOpen, true},
		{StateSoftClosed, StateHardLocked, true},
		{StateHardLocked, StateOpen, false},
		{StateHardLocked, StateSoftClosed, false},
		{StateOpen, StateOpen, true},
	}
	for _, tc := range cases {
		err := ValidateTransition(tc.from, tc.to)
		if tc.ok {
			require.NoError(t, err, "%s -> %s", tc.from, tc.to)
		} else {
			require.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", tc.from, tc.to)
		}
	}
}

func TestTransitionRequiresActor(t *testing.T) {
	registry, _ := newRegistry()
	_, err := registry.SoftClose(context.Background(), "acme", jan15(), "")
	require.Error(t, err)
}
