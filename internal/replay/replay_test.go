package replay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian/internal/ledger"
)

type stubRecorder struct {
	completed  int
	mismatches int
}

func (r *stubRecorder) ReplayCompleted(string)     { r.completed++ }
func (r *stubRecorder) FingerprintMismatch(string) { r.mismatches++ }

func seed(t *testing.T, store *ledger.MemoryStore, companyID string, number int64, day int, amount string) {
	t.Helper()
	txn := ledger.Normalize(ledger.Transaction{
		CompanyID:         companyID,
		TransactionNumber: number,
		Date:              time.Date(2026, time.March, day, 0, 0, 0, 0, time.UTC),
		Type:              "JOURNAL",
		IdempotencyKey:    "seed",
		Currency:          "USD",
		Lines: []ledger.Entry{
			{AccountID: "cash", Side: ledger.SideDebit, Amount: ledger.MustMoney(amount, "USD")},
			{AccountID: "revenue", Side: ledger.SideCredit, Amount: ledger.MustMoney(amount, "USD")},
		},
	})
	require.NoError(t, store.AppendTransaction(context.Background(), txn))
}

func TestReplayDeterministic(t *testing.T) {
	store := ledger.NewMemoryStore()
	seed(t, store, "acme", 1, 3, "10.00")
	seed(t, store, "acme", 2, 5, "7.25")
	engine := NewEngine(store, nil)

	first, err := engine.Replay(context.Background(), "acme", Options{})
	require.NoError(t, err)
	second, err := engine.Replay(context.Background(), "acme", Options{})
	require.NoError(t, err)

	require.Equal(t, first.Fingerprint, second.Fingerprint)
	require.Len(t, first.Fingerprint, 64)
	require.Equal(t, "17.25", first.Balances["cash"].Net().String())
	require.Equal(t, "-17.25", first.Balances["revenue"].Net().String())
}

func TestReplayFingerprintChangesWithLog(t *testing.T) {
	store := ledger.NewMemoryStore()
	seed(t, store, "acme", 1, 3, "10.00")
	engine := NewEngine(store, nil)

	before, err := engine.Replay(context.Background(), "acme", Options{})
	require.NoError(t, err)

	seed(t, store, "acme", 2, 5, "7.25")
	after, err := engine.Replay(context.Background(), "acme", Options{})
	require.NoError(t, err)

	require.NotEqual(t, before.Fingerprint, after.Fingerprint)
}

func TestReplayVerifyMismatch(t *testing.T) {
	store := ledger.NewMemoryStore()
	seed(t, store, "acme", 1, 3, "10.00")
	metrics := &stubRecorder{}
	engine := NewEngine(store, metrics)

	_, err := engine.Verify(context.Background(), "acme", "0000000000000000000000000000000000000000000000000000000000000000")
	require.ErrorIs(t, err, ErrFingerprintMismatch)
	require.ErrorIs(t, err, ledger.ErrInvariant)
	require.Equal(t, 1, metrics.mismatches)

	good, err := engine.Replay(context.Background(), "acme", Options{})
	require.NoError(t, err)
	_, err = engine.Verify(context.Background(), "acme", good.Fingerprint)
	require.NoError(t, err)
}

func TestReplayWindowBoundsFold(t *testing.T) {
	store := ledger.NewMemoryStore()
	seed(t, store, "acme", 1, 3, "10.00")
	seed(t, store, "acme", 2, 20, "5.00")
	engine := NewEngine(store, nil)

	res, err := engine.Replay(context.Background(), "acme", Options{
		From: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, "10", res.Balances["cash"].Net().String())
	require.Len(t, res.Log, 1)
}

func TestReplayTenantIsolation(t *testing.T) {
	store := ledger.NewMemoryStore()
	seed(t, store, "acme", 1, 3, "10.00")
	seed(t, store, "globex", 1, 3, "99.00")
	engine := NewEngine(store, nil)

	acme, err := engine.Replay(context.Background(), "acme", Options{})
	require.NoError(t, err)
	globex, err := engine.Replay(context.Background(), "globex", Options{})
	require.NoError(t, err)

	require.Equal(t, "10", acme.Balances["cash"].Net().String())
	require.Equal(t, "99", globex.Balances["cash"].Net().String())
	require.NotEqual(t, acme.Fingerprint, globex.Fingerprint)

	empty, err := engine.Replay(context.Background(), "initech", Options{})
	require.NoError(t, err)
	require.Empty(t, empty.Balances)
}

func TestReplayOrderIsCanonicalNotInsertion(t *testing.T) {
	// Insert out of date order; fingerprints must match a store populated in
	// date order.
	first := ledger.NewMemoryStore()
	seed(t, first, "acme", 2, 20, "5.00")
	seed(t, first, "acme", 1, 3, "10.00")

	second := ledger.NewMemoryStore()
	seed(t, second, "acme", 1, 3, "10.00")
	seed(t, second, "acme", 2, 20, "5.00")

	a, err := NewEngine(first, nil).Replay(context.Background(), "acme", Options{})
	require.NoError(t, err)
	b, err := NewEngine(second, nil).Replay(context.Background(), "acme", Options{})
	require.NoError(t, err)
	require.Equal(t, a.Fingerprint, b.Fingerprint)
}
