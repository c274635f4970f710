package export

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian/internal/reports"
	"github.com/meridian-books/meridian/internal/shared"
)

func testEnvelope(t *testing.T) reports.Envelope {
	t.Helper()
	period := reports.NewPeriod(
		time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC),
	)
	env, err := reports.NewEnvelope(reports.KindTaxSummary, "acme", period, map[string]any{
		"totalPayable": "10",
		"jurisdictions": []any{
			map[string]any{"jurisdiction": "DE", "taxPayable": "10"},
		},
	})
	require.NoError(t, err)
	return env
}

func TestDraftAlwaysRejected(t *testing.T) {
	engine := NewEngine(shared.NewMemoryAuditLog())

	_, err := engine.ExportFinalizedReport(context.Background(), testEnvelope(t), FormatJSON, ModeDraft)
	require.ErrorIs(t, err, ErrDraftForbidden)

	// Rejection precedes envelope inspection.
	_, err = engine.ExportFinalizedReport(context.Background(), reports.Envelope{}, FormatJSON, ModeDraft)
	require.ErrorIs(t, err, ErrDraftForbidden)
}

func TestUnknownModeAndFormatRejected(t *testing.T) {
	engine := NewEngine(nil)

	_, err := engine.ExportFinalizedReport(context.Background(), testEnvelope(t), FormatJSON, Mode("PREVIEW"))
	require.ErrorIs(t, err, ErrUnknownMode)

	_, err = engine.ExportFinalizedReport(context.Background(), testEnvelope(t), Format("XML"), ModeFinal)
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFinalJSONExport(t *testing.T) {
	audit := shared.NewMemoryAuditLog()
	engine := NewEngine(audit)
	engine.WithNow(func() time.Time { return time.Date(2026, time.February, 2, 12, 0, 0, 0, time.UTC) })

	artifact, err := engine.ExportFinalizedReport(context.Background(), testEnvelope(t), FormatJSON, ModeFinal)
	require.NoError(t, err)
	require.True(t, reports.ValidHash(artifact.IntegrityHash))
	require.Contains(t, string(artifact.Body), `"integrityHash"`)
	require.Equal(t, "acme", artifact.CompanyID)

	require.Len(t, audit.Records(), 1)
	require.Equal(t, "export.final", audit.Records()[0].Action)
}

func TestFinalCSVExportIsDeterministic(t *testing.T) {
	engine := NewEngine(nil)

	first, err := engine.ExportFinalizedReport(context.Background(), testEnvelope(t), FormatCSV, ModeFinal)
	require.NoError(t, err)
	second, err := engine.ExportFinalizedReport(context.Background(), testEnvelope(t), FormatCSV, ModeFinal)
	require.NoError(t, err)

	require.Equal(t, first.IntegrityHash, second.IntegrityHash)
	body := string(first.Body)
	require.True(t, strings.HasPrefix(body, "key,value"))
	require.Contains(t, body, "payload.jurisdictions.0.jurisdiction,DE")
	require.Contains(t, body, "payload.totalPayable,10")
}

func TestMalformedEnvelopeRejected(t *testing.T) {
	engine := NewEngine(nil)
	env := testEnvelope(t)
	env.IntegrityHash = "not-a-hash"

	_, err := engine.ExportFinalizedReport(context.Background(), env, FormatJSON, ModeFinal)
	require.ErrorIs(t, err, ErrInvalidEnvelope)
}
