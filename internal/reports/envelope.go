// Package reports holds the envelope and integrity-hash primitives shared by
// statement derivation, tax export, and attestation.
package reports

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EnvelopeVersion is stamped on every envelope produced by this build.
const EnvelopeVersion = "v1"

// Envelope kinds emitted by the reporting modules.
const (
	KindTrialBalance    = "TRIAL_BALANCE"
	KindIncomeStatement = "INCOME_STATEMENT"
	KindBalanceSheet    = "BALANCE_SHEET"
	KindCashFlowDirect  = "CASH_FLOW_DIRECT"
	KindTaxSummary      = "TAX_SUMMARY"
)

// ErrHashPayload indicates the payload could not be canonically serialized.
var ErrHashPayload = errors.New("reports: payload not hashable")

// Period is a closed date range [From, To] used by reporting modules.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// NewPeriod normalises both bounds to UTC dates.
func NewPeriod(from, to time.Time) Period {
	return Period{From: dateOnly(from), To: dateOnly(to)}
}

// Contains reports whether the date falls inside the period.
func (p Period) Contains(date time.Time) bool {
	d := dateOnly(date)
	return !d.Before(p.From) && !d.After(p.To)
}

// Label renders the period as "2024-01-01..2024-01-31".
func (p Period) Label() string {
	return p.From.Format("2006-01-02") + ".." + p.To.Format("2006-01-02")
}

func dateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Envelope wraps a derived report payload. The integrity hash is always
// computed from the payload; there is no way to set it independently, so the
// envelope and its content cannot silently diverge.
type Envelope struct {
	Kind          string `json:"kind"`
	Version       string `json:"version"`
	CompanyID     string `json:"companyId"`
	Period        Period `json:"period"`
	IntegrityHash string `json:"integrityHash"`
	Payload       any    `json:"payload"`
}

// NewEnvelope builds an envelope around payload, deriving the hash from the
// payload's canonical serialization.
func NewEnvelope(kind, companyID string, period Period, payload any) (Envelope, error) {
	if kind == "" {
		return Envelope{}, errors.New("reports: envelope kind required")
	}
	if companyID == "" {
		return Envelope{}, errors.New("reports: company id required")
	}
	hash, err := IntegrityHash(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Kind:          kind,
		Version:       EnvelopeVersion,
		CompanyID:     companyID,
		Period:        period,
		IntegrityHash: hash,
		Payload:       payload,
	}, nil
}

// IntegrityHash returns the 64-hex-character SHA-256 of the canonical JSON
// serialization of v. The same scheme backs the replay fingerprint, so every
// hash in the system is comparable byte for byte.
func IntegrityHash(v any) (string, error) {
	data, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalJSON serializes v deterministically: struct fields in declaration
// order, map keys sorted (encoding/json guarantees both), no indentation.
func CanonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHashPayload, err)
	}
	return data, nil
}

// ValidHash reports whether s looks like a hash produced by IntegrityHash.
func ValidHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
