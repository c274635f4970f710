// Package attest records tax attestations: an actor's cryptographically
// anchored sign-off binding the five report hashes of a period into one
// immutable audit event.
package attest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-books/meridian/internal/ledger"
	"github.com/meridian-books/meridian/internal/reports"
	"github.com/meridian-books/meridian/internal/shared"
)

var (
	// ErrMalformedHash indicates a report hash that is not 64 hex characters.
	ErrMalformedHash = errors.New("attest: report hash must be 64 hex characters")
	// ErrActorRequired indicates a request without an actor.
	ErrActorRequired = errors.New("attest: actor required")
)

// ReportHashes carries the five artifacts an attestation certifies.
type ReportHashes struct {
	TrialBalance    string `json:"trialBalance"`
	IncomeStatement string `json:"incomeStatement"`
	BalanceSheet    string `json:"balanceSheet"`
	CashFlow        string `json:"cashFlow"`
	TaxExport       string `json:"taxExport"`
}

func (h ReportHashes) validate() error {
	for name, hash := range map[string]string{
		"trialBalance":    h.TrialBalance,
		"incomeStatement": h.IncomeStatement,
		"balanceSheet":    h.BalanceSheet,
		"cashFlow":        h.CashFlow,
		"taxExport":       h.TaxExport,
	} {
		if !reports.ValidHash(hash) {
			return fmt.Errorf("%w: %s", ErrMalformedHash, name)
		}
	}
	return nil
}

// Request is an attestation submission. Permissions holds the caller's
// separately verified grants; the service itself decides whether they
// suffice.
type Request struct {
	CompanyID   string
	Actor       string
	Period      reports.Period
	Hashes      ReportHashes
	Permissions []string
}

// Attestation is the recorded sign-off. The id is derived from the semantic
// content, so re-submitting the identical attestation yields the same id.
type Attestation struct {
	AttestationID string
	CompanyID     string
	Actor         string
	Period        reports.Period
	Hashes        ReportHashes
	CorrelationID string
	AttestedAt    time.Time
}

// Service validates and records attestations.
type Service struct {
	audit shared.AuditPort
	now   func() time.Time
}

func NewService(audit shared.AuditPort) *Service {
	return &Service{audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Attest records the sign-off. The permission gate runs first and names the
// missing permission on rejection; nothing is audited for rejected requests.
func (s *Service) Attest(ctx context.Context, req Request) (Attestation, error) {
	if !shared.HasPermission(req.Permissions, shared.PermFinanceAttest) {
		return Attestation{}, shared.PermissionError(shared.PermFinanceAttest)
	}
	if req.Actor == "" {
		return Attestation{}, ErrActorRequired
	}
	if req.CompanyID == "" {
		return Attestation{}, errors.New("attest: company id required")
	}
	if err := req.Hashes.validate(); err != nil {
		return Attestation{}, err
	}

	att := Attestation{
		AttestationID: ledger.StableID("attestation",
			req.CompanyID,
			req.Actor,
			req.Period.Label(),
			req.Hashes.TrialBalance,
			req.Hashes.IncomeStatement,
			req.Hashes.BalanceSheet,
			req.Hashes.CashFlow,
			req.Hashes.TaxExport,
		),
		CompanyID:     req.CompanyID,
		Actor:         req.Actor,
		Period:        req.Period,
		Hashes:        req.Hashes,
		CorrelationID: uuid.NewString(),
		AttestedAt:    s.now().UTC(),
	}

	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:         att.Actor,
		CompanyID:     att.CompanyID,
		Action:        "tax.attest",
		Entity:        "attestation",
		EntityID:      att.AttestationID,
		CorrelationID: att.CorrelationID,
		Meta: map[string]any{
			"period":          att.Period.Label(),
			"trialBalance":    att.Hashes.TrialBalance,
			"incomeStatement": att.Hashes.IncomeStatement,
			"balanceSheet":    att.Hashes.BalanceSheet,
			"cashFlow":        att.Hashes.CashFlow,
			"taxExport":       att.Hashes.TaxExport,
		},
	})
	if err != nil {
		return Attestation{}, fmt.Errorf("attest: record audit event: %w", err)
	}
	return att, nil
}
