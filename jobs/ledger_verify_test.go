package jobs

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian/internal/ledger"
	"github.com/meridian-books/meridian/internal/periods"
	"github.com/meridian-books/meridian/internal/replay"
	"github.com/meridian-books/meridian/internal/shared"
)

func seedTxn(t *testing.T, store *ledger.MemoryStore, number int64, day int) {
	t.Helper()
	txn := ledger.Normalize(ledger.Transaction{
		CompanyID:         "acme",
		TransactionNumber: number,
		Date:              time.Date(2026, time.January, day, 0, 0, 0, 0, time.UTC),
		Type:              "JOURNAL",
		IdempotencyKey:    "seed",
		Currency:          "USD",
		Lines: []ledger.Entry{
			{AccountID: "cash", Side: ledger.SideDebit, Amount: ledger.MustMoney("10.00", "USD")},
			{AccountID: "revenue", Side: ledger.SideCredit, Amount: ledger.MustMoney("10.00", "USD")},
		},
	})
	require.NoError(t, store.AppendTransaction(context.Background(), txn))
}

func TestVerifierChecksLockedPeriods(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := ledger.NewMemoryStore()
	seedTxn(t, store, 1, 10)

	audit := shared.NewMemoryAuditLog()
	repo := periods.NewMemoryRepository()
	registry := periods.NewRegistry(repo, audit)
	_, err := registry.HardLock(ctx, "acme", time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC), "controller")
	require.NoError(t, err)

	verifier := NewLedgerVerifier(replay.NewEngine(store, nil), repo, client, audit, slog.Default(), nil)

	// First run records the checkpoint, second run passes against it.
	require.NoError(t, verifier.Verify(ctx, "acme"))
	require.NoError(t, verifier.Verify(ctx, "acme"))

	// A transaction smuggled into the locked period changes the fingerprint.
	seedTxn(t, store, 2, 12)
	err = verifier.Verify(ctx, "acme")
	require.ErrorIs(t, err, replay.ErrFingerprintMismatch)

	var flagged bool
	for _, rec := range audit.Records() {
		if rec.Action == "ledger.verify.mismatch" {
			flagged = true
		}
	}
	require.True(t, flagged)
}

func TestVerifierIgnoresOpenPeriods(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := ledger.NewMemoryStore()
	seedTxn(t, store, 1, 10)

	repo := periods.NewMemoryRepository()
	verifier := NewLedgerVerifier(replay.NewEngine(store, nil), repo, client, nil, slog.Default(), nil)

	// Nothing locked, nothing checked.
	require.NoError(t, verifier.Verify(ctx, "acme"))
	require.Empty(t, mr.Keys())
}
