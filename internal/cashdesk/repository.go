package cashdesk

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lanch-pos/lanch-pos/internal/platform/db"
)

// Repository persists cash desk sessions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Open starts a session. A partial unique index on status = 'OPEN' guarantees
// a single open session across the desk.
func (r *Repository) Open(ctx context.Context, operatorID int64, opening decimal.Decimal) (Session, error) {
	var s Session
	err := r.pool.QueryRow(ctx, `
		INSERT INTO cashdesk_sessions (operator_id, status, opening_amount, opened_at)
		VALUES ($1, 'OPEN', $2, now())
		RETURNING id, operator_id, status, opening_amount, opened_at
	`, operatorID, opening).Scan(&s.ID, &s.OperatorID, &s.Status, &s.OpeningAmount, &s.OpenedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Session{}, ErrSessionOpen
		}
		return Session{}, err
	}
	s.CashSales = decimal.Zero
	s.Withdrawals = decimal.Zero
	s.TopUps = decimal.Zero
	s.Expected = opening
	return s, nil
}

// Current returns the open session with its running totals.
func (r *Repository) Current(ctx context.Context) (Session, error) {
	var (
		s        Session
		closedAt *time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT cs.id, cs.operator_id, COALESCE(u.name, ''), cs.status, cs.opening_amount, cs.opened_at, cs.closed_at
		FROM cashdesk_sessions cs
		LEFT JOIN users u ON u.id = cs.operator_id
		WHERE cs.status = 'OPEN'
	`).Scan(&s.ID, &s.OperatorID, &s.OperatorName, &s.Status, &s.OpeningAmount, &s.OpenedAt, &closedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNoOpenSession
		}
		return Session{}, err
	}
	s.ClosedAt = closedAt
	if err := r.fillTotals(ctx, r.pool, &s); err != nil {
		return Session{}, err
	}
	return s, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *Repository) fillTotals(ctx context.Context, q queryRower, s *Session) error {
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(total), 0)
		FROM orders
		WHERE payment_method = 'CASH' AND status <> 'CANCELLED' AND created_at >= $1
	`, s.OpenedAt).Scan(&s.CashSales)
	if err != nil {
		return err
	}
	err = q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount) FILTER (WHERE type = 'SANGRIA'), 0),
		       COALESCE(SUM(amount) FILTER (WHERE type = 'SUPRIMENTO'), 0)
		FROM cashdesk_movements
		WHERE session_id = $1
	`, s.ID).Scan(&s.Withdrawals, &s.TopUps)
	if err != nil {
		return err
	}
	s.Expected = s.OpeningAmount.Add(s.CashSales).Add(s.TopUps).Sub(s.Withdrawals)
	return nil
}

// AddMovement records a sangria or suprimento against the open session.
func (r *Repository) AddMovement(ctx context.Context, movementType MovementType, amount decimal.Decimal, reason string, actorID int64) (Movement, error) {
	var m Movement
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var sessionID int64
		err := tx.QueryRow(ctx, `SELECT id FROM cashdesk_sessions WHERE status = 'OPEN' FOR UPDATE`).Scan(&sessionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNoOpenSession
			}
			return err
		}
		m = Movement{SessionID: sessionID, Type: movementType, Amount: amount, Reason: reason, ActorID: actorID}
		return tx.QueryRow(ctx, `
			INSERT INTO cashdesk_movements (session_id, type, amount, reason, actor_id, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
			RETURNING id, created_at
		`, sessionID, movementType, amount, reason, actorID).Scan(&m.ID, &m.CreatedAt)
	})
	if err != nil {
		return Movement{}, err
	}
	return m, nil
}

// Close finalizes the open session against the counted drawer amount.
func (r *Repository) Close(ctx context.Context, counted decimal.Decimal) (Session, error) {
	var s Session
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT id, operator_id, status, opening_amount, opened_at
			FROM cashdesk_sessions
			WHERE status = 'OPEN'
			FOR UPDATE
		`).Scan(&s.ID, &s.OperatorID, &s.Status, &s.OpeningAmount, &s.OpenedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNoOpenSession
			}
			return err
		}
		if err := r.fillTotals(ctx, tx, &s); err != nil {
			return err
		}
		s.Counted = counted
		s.Difference = counted.Sub(s.Expected)
		s.Status = SessionClosed

		var closedAt time.Time
		err = tx.QueryRow(ctx, `
			UPDATE cashdesk_sessions
			SET status = 'CLOSED', counted_amount = $2, expected_amount = $3, difference = $4, closed_at = now()
			WHERE id = $1
			RETURNING closed_at
		`, s.ID, counted, s.Expected, s.Difference).Scan(&closedAt)
		if err != nil {
			return err
		}
		s.ClosedAt = &closedAt
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	return s, nil
}

// History lists closed sessions, newest first.
func (r *Repository) History(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 || limit > 200 {
		limit = 30
	}
	rows, err := r.pool.Query(ctx, `
		SELECT cs.id, cs.operator_id, COALESCE(u.name, ''), cs.status, cs.opening_amount,
		       COALESCE(cs.expected_amount, 0), COALESCE(cs.counted_amount, 0), COALESCE(cs.difference, 0),
		       cs.opened_at, cs.closed_at
		FROM cashdesk_sessions cs
		LEFT JOIN users u ON u.id = cs.operator_id
		WHERE cs.status = 'CLOSED'
		ORDER BY cs.opened_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.OperatorID, &s.OperatorName, &s.Status, &s.OpeningAmount,
			&s.Expected, &s.Counted, &s.Difference, &s.OpenedAt, &s.ClosedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Movements lists movements of one session.
func (r *Repository) Movements(ctx context.Context, sessionID int64) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_id, type, amount, COALESCE(reason, ''), actor_id, created_at
		FROM cashdesk_movements
		WHERE session_id = $1
		ORDER BY created_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Type, &m.Amount, &m.Reason, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
