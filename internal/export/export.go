// Package export serializes finalized report envelopes into downloadable
// artifacts. Only FINAL exports exist; DRAFT is refused unconditionally.
package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/meridian-books/meridian/internal/reports"
	"github.com/meridian-books/meridian/internal/shared"
)

// Mode gates an export request.
type Mode string

const (
	ModeDraft Mode = "DRAFT"
	ModeFinal Mode = "FINAL"
)

// Format selects the artifact serialization.
type Format string

const (
	FormatJSON Format = "JSON"
	FormatCSV  Format = "CSV"
)

var (
	// ErrDraftForbidden is returned for every DRAFT export attempt.
	ErrDraftForbidden = errors.New("export: draft exports are forbidden")
	// ErrUnknownMode is returned for modes other than DRAFT or FINAL.
	ErrUnknownMode = errors.New("export: unknown export mode")
	// ErrUnknownFormat is returned for unsupported serialization formats.
	ErrUnknownFormat = errors.New("export: unknown format")
	// ErrInvalidEnvelope is returned for envelopes without a valid hash.
	ErrInvalidEnvelope = errors.New("export: envelope integrity hash missing or malformed")
)

// Artifact is the serialized export. IntegrityHash covers the serialized
// bytes, not the envelope payload, so consumers can verify the exact file
// they received.
type Artifact struct {
	Kind          string
	CompanyID     string
	Format        Format
	Body          []byte
	IntegrityHash string
	ExportedAt    time.Time
}

// Engine performs finalized exports.
type Engine struct {
	audit shared.AuditPort
	now   func() time.Time
}

func NewEngine(audit shared.AuditPort) *Engine {
	return &Engine{audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (e *Engine) WithNow(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// ExportFinalizedReport serializes the envelope. DRAFT mode fails before the
// envelope is even inspected.
func (e *Engine) ExportFinalizedReport(ctx context.Context, env reports.Envelope, format Format, mode Mode) (Artifact, error) {
	switch mode {
	case ModeDraft:
		return Artifact{}, ErrDraftForbidden
	case ModeFinal:
	default:
		return Artifact{}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if !reports.ValidHash(env.IntegrityHash) {
		return Artifact{}, ErrInvalidEnvelope
	}

	var body []byte
	var err error
	switch format {
	case FormatJSON:
		body, err = json.MarshalIndent(env, "", "  ")
	case FormatCSV:
		body, err = marshalCSV(env)
	default:
		return Artifact{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("export: serialize %s: %w", format, err)
	}

	sum := sha256.Sum256(body)
	artifact := Artifact{
		Kind:          env.Kind,
		CompanyID:     env.CompanyID,
		Format:        format,
		Body:          body,
		IntegrityHash: hex.EncodeToString(sum[:]),
		ExportedAt:    e.now().UTC(),
	}
	if e.audit != nil {
		_ = e.audit.Record(ctx, shared.AuditLog{
			CompanyID: env.CompanyID,
			Action:    "export.final",
			Entity:    "export_artifact",
			EntityID:  env.Kind,
			Meta: map[string]any{
				"format":        string(format),
				"integrityHash": artifact.IntegrityHash,
				"envelopeHash":  env.IntegrityHash,
			},
		})
	}
	return artifact, nil
}

// marshalCSV flattens the envelope into key/value rows. Nested payloads are
// walked depth-first with dotted key paths, keys sorted at each level so the
// output is deterministic.
func marshalCSV(env reports.Envelope) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"key", "value"}); err != nil {
		return nil, err
	}
	records := [][]string{
		{"kind", env.Kind},
		{"version", env.Version},
		{"companyId", env.CompanyID},
		{"period.from", env.Period.From.UTC().Format("2006-01-02")},
		{"period.to", env.Period.To.UTC().Format("2006-01-02")},
		{"integrityHash", env.IntegrityHash},
	}
	// Round-trip through JSON so the flattened values match the canonical
	// serialization the hash was computed over.
	raw, err := json.Marshal(env.Payload)
	if err != nil {
		return nil, err
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	records = append(records, flatten("payload", payload)...)
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func flatten(prefix string, v any) [][]string {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out [][]string
		for _, k := range keys {
			out = append(out, flatten(prefix+"."+k, val[k])...)
		}
		return out
	case []any:
		var out [][]string
		for i, item := range val {
			out = append(out, flatten(fmt.Sprintf("%s.%d", prefix, i), item)...)
		}
		return out
	case nil:
		return [][]string{{prefix, ""}}
	default:
		return [][]string{{prefix, fmt.Sprint(val)}}
	}
}
