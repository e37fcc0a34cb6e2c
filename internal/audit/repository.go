package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the audit trail. Writing goes through shared.AuditLogger;
// nothing ever updates or deletes rows here.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns audit entries matching the filter, newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]Entry, error) {
	conditions := []string{"1=1"}
	args := []any{}
	if f.Entity != "" {
		args = append(args, f.Entity)
		conditions = append(conditions, fmt.Sprintf("a.entity = $%d", len(args)))
	}
	if f.Action != "" {
		args = append(args, f.Action)
		conditions = append(conditions, fmt.Sprintf("a.action = $%d", len(args)))
	}
	if f.ActorID != 0 {
		args = append(args, f.ActorID)
		conditions = append(conditions, fmt.Sprintf("a.actor_id = $%d", len(args)))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		conditions = append(conditions, fmt.Sprintf("a.occurred_at >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		conditions = append(conditions, fmt.Sprintf("a.occurred_at <= $%d", len(args)))
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	limitPos := len(args)
	args = append(args, f.Offset)
	offsetPos := len(args)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT a.id, a.actor_id, COALESCE(u.name, ''), a.action, a.entity, a.entity_id,
		       a.before, a.after, a.occurred_at
		FROM audit_logs a
		LEFT JOIN users u ON u.id = a.actor_id
		WHERE %s
		ORDER BY a.occurred_at DESC, a.id DESC
		LIMIT $%d OFFSET $%d
	`, strings.Join(conditions, " AND "), limitPos, offsetPos), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorName, &e.Action, &e.Entity, &e.EntityID,
			&e.Before, &e.After, &e.OccurredAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
