package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog represents an append-only record stored in audit_logs: who changed
// what table/row, with the before and after payloads.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Before   map[string]any
	After    map[string]any
	At       time.Time
}

// AuditLogger writes records into audit_logs. Records are never updated or
// deleted once written.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

const insertAuditLog = `INSERT INTO audit_logs (actor_id, action, entity, entity_id, before, after, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE(NULLIF($7, '0001-01-01 00:00:00Z'::timestamptz), NOW()))`

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	before, err := json.Marshal(log.Before)
	if err != nil {
		return err
	}
	after, err := json.Marshal(log.After)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, insertAuditLog, log.ActorID, log.Action, log.Entity, log.EntityID, before, after, log.At)
	return err
}

// RecordTx persists the log entry inside the caller's transaction so the audit
// fact commits or rolls back together with the change it describes.
func (l *AuditLogger) RecordTx(ctx context.Context, tx pgx.Tx, log AuditLog) error {
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	before, err := json.Marshal(log.Before)
	if err != nil {
		return err
	}
	after, err := json.Marshal(log.After)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, insertAuditLog, log.ActorID, log.Action, log.Entity, log.EntityID, before, after, log.At)
	return err
}
