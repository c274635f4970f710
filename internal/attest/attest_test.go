package attest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian/internal/reports"
	"github.com/meridian-books/meridian/internal/shared"
)

func validRequest() Request {
	hash := strings.Repeat("ab", 32)
	return Request{
		CompanyID: "acme",
		Actor:     "cfo@acme.test",
		Period: reports.NewPeriod(
			time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC),
		),
		Hashes: ReportHashes{
			TrialBalance:    hash,
			IncomeStatement: hash,
			BalanceSheet:    hash,
			CashFlow:        hash,
			TaxExport:       hash,
		},
		Permissions: []string{shared.PermFinanceAttest},
	}
}

func TestAttestWithoutPermissionNamesIt(t *testing.T) {
	audit := shared.NewMemoryAuditLog()
	svc := NewService(audit)

	req := validRequest()
	req.Permissions = []string{shared.PermFinanceReportsView}

	_, err := svc.Attest(context.Background(), req)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
	require.Contains(t, err.Error(), shared.PermFinanceAttest)
	require.Empty(t, audit.Records())
}

func TestAttestRejectsMalformedHash(t *testing.T) {
	svc := NewService(shared.NewMemoryAuditLog())

	req := validRequest()
	req.Hashes.CashFlow = "deadbeef"

	_, err := svc.Attest(context.Background(), req)
	require.ErrorIs(t, err, ErrMalformedHash)
}

func TestAttestRecordsAuditEvent(t *testing.T) {
	audit := shared.NewMemoryAuditLog()
	svc := NewService(audit)
	svc.WithNow(func() time.Time { return time.Date(2026, time.February, 3, 9, 0, 0, 0, time.UTC) })

	att, err := svc.Attest(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotEmpty(t, att.AttestationID)
	require.NotEmpty(t, att.CorrelationID)

	records := audit.Records()
	require.Len(t, records, 1)
	rec := records[0]
	require.Equal(t, "tax.attest", rec.Action)
	require.Equal(t, "cfo@acme.test", rec.Actor)
	require.Equal(t, att.AttestationID, rec.EntityID)
	require.Equal(t, att.CorrelationID, rec.CorrelationID)
	require.Equal(t, att.Hashes.TaxExport, rec.Meta["taxExport"])
}

func TestAttestationIDIsContentDerived(t *testing.T) {
	svc := NewService(shared.NewMemoryAuditLog())

	first, err := svc.Attest(context.Background(), validRequest())
	require.NoError(t, err)
	second, err := svc.Attest(context.Background(), validRequest())
	require.NoError(t, err)
	require.Equal(t, first.AttestationID, second.AttestationID)

	changed := validRequest()
	changed.Hashes.TrialBalance = strings.Repeat("cd", 32)
	third, err := svc.Attest(context.Background(), changed)
	require.NoError(t, err)
	require.NotEqual(t, first.AttestationID, third.AttestationID)
}
