package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lanch-pos/lanch-pos/internal/platform/db"
	"github.com/lanch-pos/lanch-pos/internal/shared"
)

// Repository persists stock movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Apply executes one movement atomically: the product row is locked, the new
// quantity computed and both the movement record and the product updated in
// the same transaction.
func (r *Repository) Apply(ctx context.Context, in Input, actorID int64) (Movement, error) {
	var m Movement
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var (
			name       string
			trackStock bool
			current    int
		)
		err := tx.QueryRow(ctx, `
			SELECT name, track_stock, stock FROM products
			WHERE id = $1 AND deleted_at IS NULL
			FOR UPDATE
		`, in.ProductID).Scan(&name, &trackStock, &current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: product %d", shared.ErrNotFound, in.ProductID)
			}
			if db.IsLockTimeout(err) {
				return fmt.Errorf("%w: product row contended", shared.ErrBusy)
			}
			return err
		}
		if !trackStock {
			return fmt.Errorf("%w: %s", ErrUntracked, name)
		}

		next := current
		switch in.Type {
		case MovementIn:
			next = current + in.Quantity
		case MovementOut:
			next = current - in.Quantity
			if next < 0 {
				return fmt.Errorf("%w: %s has %d", ErrNegativeStock, name, current)
			}
		case MovementAdjust:
			next = in.Quantity
		default:
			return fmt.Errorf("%w: unknown movement type %q", shared.ErrValidation, in.Type)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE products SET stock = $2, updated_at = now() WHERE id = $1
		`, in.ProductID, next); err != nil {
			return err
		}

		m = Movement{
			ProductID:   in.ProductID,
			ProductName: name,
			Type:        in.Type,
			Quantity:    in.Quantity,
			Before:      current,
			After:       next,
			Reason:      in.Reason,
			ActorID:     actorID,
		}
		return tx.QueryRow(ctx, `
			INSERT INTO stock_movements (product_id, type, quantity, before_stock, after_stock, reason, actor_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			RETURNING id, created_at
		`, m.ProductID, m.Type, m.Quantity, m.Before, m.After, m.Reason, m.ActorID).
			Scan(&m.ID, &m.CreatedAt)
	})
	if err != nil {
		return Movement{}, err
	}
	return m, nil
}

// Movements lists recent movements, newest first, optionally for one product.
func (r *Repository) Movements(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	sql := `
		SELECT m.id, m.product_id, p.name, m.type, m.quantity, m.before_stock, m.after_stock,
		       COALESCE(m.reason, ''), m.actor_id, m.created_at
		FROM stock_movements m
		JOIN products p ON p.id = m.product_id`
	args := []any{}
	if productID != 0 {
		args = append(args, productID)
		sql += fmt.Sprintf(` WHERE m.product_id = $%d`, len(args))
	}
	args = append(args, limit)
	sql += fmt.Sprintf(` ORDER BY m.created_at DESC, m.id DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.ProductName, &m.Type, &m.Quantity,
			&m.Before, &m.After, &m.Reason, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// Alerts lists tracked active products at or below their minimum stock.
func (r *Repository) Alerts(ctx context.Context) ([]Alert, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, stock, min_stock
		FROM products
		WHERE deleted_at IS NULL AND active = TRUE AND track_stock = TRUE AND stock <= min_stock
		ORDER BY stock - min_stock, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ProductID, &a.Name, &a.Stock, &a.MinStock); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
