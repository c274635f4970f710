// Package access issues and verifies time-boxed, read-only tokens for
// external accountants and auditors. Tokens grant statement reads and replay
// verification only; nothing issued here can mutate the ledger or bypass a
// period lock.
package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/meridian-books/meridian/internal/shared"
)

// Read-only capabilities grantable to external parties.
const (
	CapReportsRead  = "REPORTS_READ"
	CapReplayVerify = "REPLAY_VERIFY"
)

var (
	// ErrWriteCapability indicates an attempt to grant anything outside the
	// read-only capability set.
	ErrWriteCapability = errors.New("access: only read-only capabilities are issuable")
	// ErrInvalidTTL indicates a non-positive or excessive lifetime.
	ErrInvalidTTL = errors.New("access: ttl must be positive and at most 30 days")
	// ErrTokenInvalid covers bad signatures, expiry, and malformed claims.
	ErrTokenInvalid = errors.New("access: token invalid")
)

const maxTTL = 30 * 24 * time.Hour

func grantable(capability string) bool {
	return capability == CapReportsRead || capability == CapReplayVerify
}

// Scope is the decoded authority of a token.
type Scope struct {
	CompanyID    string    `json:"companyId"`
	Subject      string    `json:"subject"`
	ValidFrom    time.Time `json:"validFrom"`
	ValidTo      time.Time `json:"validTo"`
	Capabilities []string  `json:"capabilities"`
}

// Allows reports whether the scope carries the capability.
func (s Scope) Allows(capability string) bool {
	for _, c := range s.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

type claims struct {
	CompanyID    string   `json:"cid"`
	Capabilities []string `json:"cap"`
	jwt.RegisteredClaims
}

// Service signs and verifies access tokens with an HMAC secret.
type Service struct {
	secret []byte
	audit  shared.AuditPort
	now    func() time.Time
}

func NewService(secret []byte, audit shared.AuditPort) (*Service, error) {
	if len(secret) < 32 {
		return nil, errors.New("access: signing secret must be at least 32 bytes")
	}
	return &Service{secret: secret, audit: audit, now: time.Now}, nil
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Grant issues a signed token for the subject, valid from now for ttl.
// Requests naming any capability outside the read-only set fail whole.
func (s *Service) Grant(ctx context.Context, companyID, subject string, ttl time.Duration, capabilities []string) (string, Scope, error) {
	if companyID == "" || subject == "" {
		return "", Scope{}, errors.New("access: company id and subject required")
	}
	if ttl <= 0 || ttl > maxTTL {
		return "", Scope{}, ErrInvalidTTL
	}
	if len(capabilities) == 0 {
		return "", Scope{}, fmt.Errorf("%w: at least one capability required", ErrWriteCapability)
	}
	for _, c := range capabilities {
		if !grantable(c) {
			return "", Scope{}, fmt.Errorf("%w: %q", ErrWriteCapability, c)
		}
	}

	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(ttl)
	tokenID := uuid.NewString()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		CompanyID:    companyID,
		Capabilities: capabilities,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", Scope{}, fmt.Errorf("access: sign token: %w", err)
	}

	scope := Scope{
		CompanyID:    companyID,
		Subject:      subject,
		ValidFrom:    issuedAt,
		ValidTo:      expiresAt,
		Capabilities: capabilities,
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:     subject,
			CompanyID: companyID,
			Action:    "access.grant",
			Entity:    "access_token",
			EntityID:  tokenID,
			Meta: map[string]any{
				"capabilities": capabilities,
				"validTo":      expiresAt.Format(time.RFC3339),
			},
		})
	}
	return signed, scope, nil
}

// Verify checks signature and validity window and returns the decoded scope.
// Every verification attempt is audited, including failures.
func (s *Service) Verify(ctx context.Context, tokenString string) (Scope, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	var c claims
	_, err := parser.ParseWithClaims(tokenString, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		s.auditVerify(ctx, "", "", "unparseable", false)
		return Scope{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	for _, capability := range c.Capabilities {
		if !grantable(capability) {
			s.auditVerify(ctx, c.CompanyID, c.Subject, c.ID, false)
			return Scope{}, fmt.Errorf("%w: non-grantable capability %q", ErrTokenInvalid, capability)
		}
	}

	scope := Scope{
		CompanyID:    c.CompanyID,
		Subject:      c.Subject,
		Capabilities: c.Capabilities,
	}
	if c.NotBefore != nil {
		scope.ValidFrom = c.NotBefore.Time.UTC()
	}
	if c.ExpiresAt != nil {
		scope.ValidTo = c.ExpiresAt.Time.UTC()
	}
	s.auditVerify(ctx, c.CompanyID, c.Subject, c.ID, true)
	return scope, nil
}

func (s *Service) auditVerify(ctx context.Context, companyID, subject, tokenID string, ok bool) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:     subject,
		CompanyID: companyID,
		Action:    "access.verify",
		Entity:    "access_token",
		EntityID:  tokenID,
		Meta:      map[string]any{"ok": ok},
	})
}
