// Package tax derives jurisdiction tax summaries from the ledger and wraps
// them in export envelopes. Exports are fail-closed: every date in the
// requested period must lie in a finalized (soft-closed or hard-locked)
// period, or the whole export is refused.
package tax

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-books/meridian/internal/ledger"
	"github.com/meridian-books/meridian/internal/periods"
	"github.com/meridian-books/meridian/internal/replay"
	"github.com/meridian-books/meridian/internal/reports"
	"github.com/meridian-books/meridian/internal/shared"
)

var (
	// ErrNoJurisdictionAccounts indicates the chart has no tax-payable
	// accounts matching the requested jurisdictions.
	ErrNoJurisdictionAccounts = errors.New("tax: no tax-payable accounts for requested jurisdictions")
	// ErrEmptyPeriod indicates a config without a usable date range.
	ErrEmptyPeriod = errors.New("tax: export period required")
)

// ExportConfig identifies what to export. Period state is always resolved
// server-side from the dates; PeriodID is a label carried into the summary,
// never an authority for lock state.
type ExportConfig struct {
	CompanyID     string
	PeriodID      string
	From          time.Time
	To            time.Time
	Jurisdictions []string
}

// JurisdictionLine is the tax position of one jurisdiction.
type JurisdictionLine struct {
	Jurisdiction string `json:"jurisdiction"`
	Accounts     int    `json:"accounts"`
	TaxPayable   string `json:"taxPayable"`
}

// SummaryPayload is the hashed content of a tax summary.
type SummaryPayload struct {
	CompanyID     string             `json:"companyId"`
	PeriodID      string             `json:"periodId"`
	Period        reports.Period     `json:"period"`
	Jurisdictions []JurisdictionLine `json:"jurisdictions"`
	TotalPayable  string             `json:"totalPayable"`
	Fingerprint   string             `json:"fingerprint"`
}

// Summary couples the payload with its integrity hash.
type Summary struct {
	Payload       SummaryPayload `json:"payload"`
	IntegrityHash string         `json:"integrityHash"`
}

// Engine computes tax summaries by replay.
type Engine struct {
	replayer *replay.Engine
	store    ledger.Store
	registry *periods.Registry
	audit    shared.AuditPort
}

func NewEngine(replayer *replay.Engine, store ledger.Store, registry *periods.Registry, audit shared.AuditPort) *Engine {
	return &Engine{replayer: replayer, store: store, registry: registry, audit: audit}
}

// ExportTaxSummary verifies the whole period is finalized, replays the
// ledger over it, and folds tax-payable account balances by jurisdiction.
// Any OPEN date in the range fails the export before anything is computed.
func (e *Engine) ExportTaxSummary(ctx context.Context, cfg ExportConfig) (Summary, error) {
	if cfg.From.IsZero() || cfg.To.IsZero() || cfg.To.Before(cfg.From) {
		return Summary{}, ErrEmptyPeriod
	}
	if err := e.registry.EnsureFinalizedRange(ctx, cfg.CompanyID, cfg.From, cfg.To); err != nil {
		return Summary{}, err
	}

	accounts, err := e.store.ListAccounts(ctx, cfg.CompanyID)
	if err != nil {
		return Summary{}, err
	}
	wanted := make(map[string]bool, len(cfg.Jurisdictions))
	for _, j := range cfg.Jurisdictions {
		wanted[j] = true
	}
	taxAccounts := make(map[string]ledger.Account)
	for _, acct := range accounts {
		if !acct.TaxPayable {
			continue
		}
		if len(wanted) > 0 && !wanted[acct.Jurisdiction] {
			continue
		}
		taxAccounts[acct.AccountID] = acct
	}
	if len(taxAccounts) == 0 {
		return Summary{}, ErrNoJurisdictionAccounts
	}

	res, err := e.replayer.Replay(ctx, cfg.CompanyID, replay.Options{From: cfg.From, To: cfg.To})
	if err != nil {
		return Summary{}, err
	}

	type position struct {
		accounts int
		payable  decimal.Decimal
	}
	byJurisdiction := make(map[string]*position)
	total := decimal.Zero
	for accountID, acct := range taxAccounts {
		agg := res.Balances[accountID]
		payable := agg.Credit.Sub(agg.Debit)
		pos := byJurisdiction[acct.Jurisdiction]
		if pos == nil {
			pos = &position{}
			byJurisdiction[acct.Jurisdiction] = pos
		}
		pos.accounts++
		pos.payable = pos.payable.Add(payable)
		total = total.Add(payable)
	}

	lines := make([]JurisdictionLine, 0, len(byJurisdiction))
	for jurisdiction, pos := range byJurisdiction {
		lines = append(lines, JurisdictionLine{
			Jurisdiction: jurisdiction,
			Accounts:     pos.accounts,
			TaxPayable:   pos.payable.String(),
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Jurisdiction < lines[j].Jurisdiction })

	payload := SummaryPayload{
		CompanyID:     cfg.CompanyID,
		PeriodID:      cfg.PeriodID,
		Period:        reports.NewPeriod(cfg.From, cfg.To),
		Jurisdictions: lines,
		TotalPayable:  total.String(),
		Fingerprint:   res.Fingerprint,
	}
	hash, err := reports.IntegrityHash(payload)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Payload: payload, IntegrityHash: hash}

	if e.audit != nil {
		_ = e.audit.Record(ctx, shared.AuditLog{
			CompanyID: cfg.CompanyID,
			Action:    "tax.export",
			Entity:    "tax_summary",
			EntityID:  cfg.PeriodID,
			Meta: map[string]any{
				"integrityHash": summary.IntegrityHash,
				"fingerprint":   res.Fingerprint,
			},
		})
	}
	return summary, nil
}

// BuildExportEnvelope wraps a summary for export. The envelope hash is
// derived from the same payload with the same scheme, so it always equals
// the summary's own hash.
func BuildExportEnvelope(summary Summary) (reports.Envelope, error) {
	env, err := reports.NewEnvelope(reports.KindTaxSummary, summary.Payload.CompanyID, summary.Payload.Period, summary.Payload)
	if err != nil {
		return reports.Envelope{}, err
	}
	if env.IntegrityHash != summary.IntegrityHash {
		return reports.Envelope{}, fmt.Errorf("%w: envelope hash diverged from summary", ledger.ErrInvariant)
	}
	return env, nil
}
