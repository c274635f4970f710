package shared

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog represents a record stored in audit_logs. Records are append-only;
// there is no update or delete path.
type AuditLog struct {
	Actor         string
	CompanyID     string
	Action        string
	Entity        string
	EntityID      string
	CorrelationID string
	Meta          map[string]any
	At            time.Time
}

// AuditPort is the write interface services depend on.
type AuditPort interface {
	Record(ctx context.Context, log AuditLog) error
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (actor, company_id, action, entity, entity_id, correlation_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))`,
		log.Actor, log.CompanyID, log.Action, log.Entity, log.EntityID, log.CorrelationID, metaJSON, log.At)
	return err
}

// MemoryAuditLog collects audit records in memory. Tests and local setups
// construct one per case; it satisfies AuditPort.
type MemoryAuditLog struct {
	mu      sync.Mutex
	records []AuditLog
}

// NewMemoryAuditLog returns an empty recorder.
func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{}
}

// Record implements AuditPort.
func (m *MemoryAuditLog) Record(_ context.Context, log AuditLog) error {
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, log)
	return nil
}

// Records returns a copy of everything recorded so far.
func (m *MemoryAuditLog) Records() []AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AuditLog, len(m.records))
	copy(out, m.records)
	return out
}
