package tax

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian/internal/ledger"
	"github.com/meridian-books/meridian/internal/periods"
	"github.com/meridian-books/meridian/internal/replay"
	"github.com/meridian-books/meridian/internal/reports"
	"github.com/meridian-books/meridian/internal/shared"
)

type fixture struct {
	store    *ledger.MemoryStore
	registry *periods.Registry
	audit    *shared.MemoryAuditLog
	engine   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	audit := shared.NewMemoryAuditLog()
	registry := periods.NewRegistry(periods.NewMemoryRepository(), audit)

	require.NoError(t, store.SaveAccount(ctx, ledger.Account{
		CompanyID: "acme", AccountID: "cash", Code: "1000", Name: "Cash",
		Type: ledger.AccountTypeAsset, Cash: true,
	}))
	require.NoError(t, store.SaveAccount(ctx, ledger.Account{
		CompanyID: "acme", AccountID: "vat-de", Code: "2100", Name: "VAT Payable DE",
		Type: ledger.AccountTypeLiability, Jurisdiction: "DE", TaxPayable: true,
	}))
	require.NoError(t, store.SaveAccount(ctx, ledger.Account{
		CompanyID: "acme", AccountID: "vat-fr", Code: "2110", Name: "VAT Payable FR",
		Type: ledger.AccountTypeLiability, Jurisdiction: "FR", TaxPayable: true,
	}))

	return &fixture{
		store:    store,
		registry: registry,
		audit:    audit,
		engine:   NewEngine(replay.NewEngine(store, nil), store, registry, audit),
	}
}

func (f *fixture) post(t *testing.T, number int64, date time.Time, debitAccount, creditAccount, amount string) {
	t.Helper()
	txn := ledger.Normalize(ledger.Transaction{
		CompanyID:         "acme",
		TransactionNumber: number,
		Date:              date,
		Type:              "JOURNAL",
		IdempotencyKey:    "seed",
		Currency:          "USD",
		Lines: []ledger.Entry{
			{AccountID: debitAccount, Side: ledger.SideDebit, Amount: ledger.MustMoney(amount, "USD")},
			{AccountID: creditAccount, Side: ledger.SideCredit, Amount: ledger.MustMoney(amount, "USD")},
		},
	})
	require.NoError(t, ledger.ValidateTransaction(txn))
	require.NoError(t, f.store.AppendTransaction(context.Background(), txn))
}

func january() (time.Time, time.Time) {
	return time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC)
}

func TestExportRejectsOpenPeriod(t *testing.T) {
	f := newFixture(t)
	from, to := january()
	f.post(t, 1, from.AddDate(0, 0, 9), "cash", "vat-de", "10.00")

	_, err := f.engine.ExportTaxSummary(context.Background(), ExportConfig{
		CompanyID: "acme", PeriodID: "2026-01", From: from, To: to,
	})
	require.ErrorIs(t, err, periods.ErrNotFinalized)
}

func TestExportAfterSoftCloseIsStable(t *testing.T) {
	f := newFixture(t)
	from, to := january()
	ctx := context.Background()

	// $10 cash debit against tax payable in an open January, then soft-close.
	f.post(t, 1, from.AddDate(0, 0, 9), "cash", "vat-de", "10.00")
	_, err := f.registry.SoftClose(ctx, "acme", from, "controller")
	require.NoError(t, err)

	cfg := ExportConfig{CompanyID: "acme", PeriodID: "2026-01", From: from, To: to}
	first, err := f.engine.ExportTaxSummary(ctx, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, first.Payload.Jurisdictions)
	require.Equal(t, "10", first.Payload.TotalPayable)
	require.True(t, reports.ValidHash(first.IntegrityHash))

	second, err := f.engine.ExportTaxSummary(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, first.IntegrityHash, second.IntegrityHash)
}

func TestExportGroupsByJurisdiction(t *testing.T) {
	f := newFixture(t)
	from, to := january()
	ctx := context.Background()

	f.post(t, 1, from.AddDate(0, 0, 4), "cash", "vat-de", "10.00")
	f.post(t, 2, from.AddDate(0, 0, 5), "cash", "vat-fr", "7.50")
	_, err := f.registry.HardLock(ctx, "acme", from, "controller")
	require.NoError(t, err)

	summary, err := f.engine.ExportTaxSummary(ctx, ExportConfig{
		CompanyID: "acme", PeriodID: "2026-01", From: from, To: to,
	})
	require.NoError(t, err)
	require.Len(t, summary.Payload.Jurisdictions, 2)
	require.Equal(t, "DE", summary.Payload.Jurisdictions[0].Jurisdiction)
	require.Equal(t, "10", summary.Payload.Jurisdictions[0].TaxPayable)
	require.Equal(t, "FR", summary.Payload.Jurisdictions[1].Jurisdiction)
	require.Equal(t, "7.5", summary.Payload.Jurisdictions[1].TaxPayable)
	require.Equal(t, "17.5", summary.Payload.TotalPayable)
}

func TestExportFiltersRequestedJurisdictions(t *testing.T) {
	f := newFixture(t)
	from, to := january()
	ctx := context.Background()

	f.post(t, 1, from.AddDate(0, 0, 4), "cash", "vat-de", "10.00")
	f.post(t, 2, from.AddDate(0, 0, 5), "cash", "vat-fr", "7.50")
	_, err := f.registry.SoftClose(ctx, "acme", from, "controller")
	require.NoError(t, err)

	summary, err := f.engine.ExportTaxSummary(ctx, ExportConfig{
		CompanyID: "acme", PeriodID: "2026-01", From: from, To: to,
		Jurisdictions: []string{"FR"},
	})
	require.NoError(t, err)
	require.Len(t, summary.Payload.Jurisdictions, 1)
	require.Equal(t, "FR", summary.Payload.Jurisdictions[0].Jurisdiction)
	require.Equal(t, "7.5", summary.Payload.TotalPayable)

	_, err = f.engine.ExportTaxSummary(ctx, ExportConfig{
		CompanyID: "acme", PeriodID: "2026-01", From: from, To: to,
		Jurisdictions: []string{"JP"},
	})
	require.ErrorIs(t, err, ErrNoJurisdictionAccounts)
}

func TestEnvelopeHashEqualsSummaryHash(t *testing.T) {
	f := newFixture(t)
	from, to := january()
	ctx := context.Background()

	f.post(t, 1, from.AddDate(0, 0, 9), "cash", "vat-de", "10.00")
	_, err := f.registry.SoftClose(ctx, "acme", from, "controller")
	require.NoError(t, err)

	summary, err := f.engine.ExportTaxSummary(ctx, ExportConfig{
		CompanyID: "acme", PeriodID: "2026-01", From: from, To: to,
	})
	require.NoError(t, err)

	env, err := BuildExportEnvelope(summary)
	require.NoError(t, err)
	require.Equal(t, reports.KindTaxSummary, env.Kind)
	require.Equal(t, summary.IntegrityHash, env.IntegrityHash)
}

func TestExportIsAudited(t *testing.T) {
	f := newFixture(t)
	from, to := january()
	ctx := context.Background()

	f.post(t, 1, from.AddDate(0, 0, 9), "cash", "vat-de", "10.00")
	_, err := f.registry.SoftClose(ctx, "acme", from, "controller")
	require.NoError(t, err)

	_, err = f.engine.ExportTaxSummary(ctx, ExportConfig{
		CompanyID: "acme", PeriodID: "2026-01", From: from, To: to,
	})
	require.NoError(t, err)

	var found bool
	for _, rec := range f.audit.Records() {
		if rec.Action == "tax.export" && rec.CompanyID == "acme" {
			found = true
		}
	}
	require.True(t, found)
}
