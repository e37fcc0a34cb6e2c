package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lanch-pos/lanch-pos/internal/platform/db"
	"github.com/lanch-pos/lanch-pos/internal/shared"
)

// Repository reads ledger state outside of settlement transactions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository using the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Balance returns the consumed total, limit and remaining allowance for the
// pair. A missing entry reads as zero consumption.
func (r *Repository) Balance(ctx context.Context, employeeID, periodID int64) (Balance, error) {
	var b Balance
	err := r.pool.QueryRow(ctx, `
		SELECT e.id, e.monthly_limit, COALESCE(le.consumed, 0)
		FROM employees e
		LEFT JOIN ledger_entries le ON le.employee_id = e.id AND le.period_id = $2
		WHERE e.id = $1
	`, employeeID, periodID).Scan(&b.EmployeeID, &b.Limit, &b.Consumed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{}, fmt.Errorf("%w: employee %d", shared.ErrNotFound, employeeID)
		}
		return Balance{}, err
	}
	b.PeriodID = periodID
	b.Available = b.Limit.Sub(b.Consumed)
	if b.Available.IsNegative() {
		b.Available = decimal.Zero
	}
	return b, nil
}

// PeriodEntries lists all non-zero entries of a period joined with employee
// identity. Ordering is left to the caller.
func (r *Repository) PeriodEntries(ctx context.Context, periodID int64) ([]PeriodEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT le.employee_id, e.registration, e.name, s.name, s.cost_center, le.consumed
		FROM ledger_entries le
		JOIN employees e ON e.id = le.employee_id
		JOIN sectors s ON s.id = e.sector_id
		WHERE le.period_id = $1 AND le.consumed > 0
	`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []PeriodEntry
	for rows.Next() {
		var e PeriodEntry
		if err := rows.Scan(&e.EmployeeID, &e.Registration, &e.Name, &e.Sector, &e.CostCenter, &e.Consumed); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// TxLedger exposes the settlement operations that must share the caller's
// transaction. Implemented over pgx.Tx and by in-memory test fakes.
type TxLedger interface {
	ReserveAndCommit(ctx context.Context, employeeID, periodID int64, amount decimal.Decimal) error
	Reverse(ctx context.Context, employeeID, periodID int64, amount decimal.Decimal) error
}

type txLedger struct {
	tx pgx.Tx
}

// NewTxLedger wraps a transaction with ledger operations.
func NewTxLedger(tx pgx.Tx) TxLedger {
	return &txLedger{tx: tx}
}

// ReserveAndCommit atomically checks and updates the employee's running total.
// The entry row is locked FOR UPDATE so concurrent settlements for the same
// pair serialize instead of jointly overspending against a stale read.
func (l *txLedger) ReserveAndCommit(ctx context.Context, employeeID, periodID int64, amount decimal.Decimal) error {
	status, err := periodStatus(ctx, l.tx, periodID)
	if err != nil {
		return err
	}
	if status != "OPEN" {
		return ErrPeriodClosed
	}

	if _, err := l.tx.Exec(ctx, `
		INSERT INTO ledger_entries (employee_id, period_id, consumed, updated_at)
		VALUES ($1, $2, 0, now())
		ON CONFLICT (employee_id, period_id) DO NOTHING
	`, employeeID, periodID); err != nil {
		return busy(err)
	}

	var consumed, limit decimal.Decimal
	err = l.tx.QueryRow(ctx, `
		SELECT le.consumed, e.monthly_limit
		FROM ledger_entries le
		JOIN employees e ON e.id = le.employee_id
		WHERE le.employee_id = $1 AND le.period_id = $2
		FOR UPDATE OF le
	`, employeeID, periodID).Scan(&consumed, &limit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: employee %d", shared.ErrNotFound, employeeID)
		}
		return busy(err)
	}

	total := consumed.Add(amount)
	if total.GreaterThan(limit) {
		return ErrInsufficientAllowance
	}

	_, err = l.tx.Exec(ctx, `
		UPDATE ledger_entries SET consumed = $3, updated_at = now()
		WHERE employee_id = $1 AND period_id = $2
	`, employeeID, periodID, total)
	return busy(err)
}

// Reverse decreases the consumed total on order cancellation. Reversal in a
// closed period is rejected; the close is a hard boundary.
func (l *txLedger) Reverse(ctx context.Context, employeeID, periodID int64, amount decimal.Decimal) error {
	status, err := periodStatus(ctx, l.tx, periodID)
	if err != nil {
		return err
	}
	if status != "OPEN" {
		return ErrPeriodClosed
	}

	var consumed decimal.Decimal
	err = l.tx.QueryRow(ctx, `
		SELECT consumed FROM ledger_entries
		WHERE employee_id = $1 AND period_id = $2
		FOR UPDATE
	`, employeeID, periodID).Scan(&consumed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEntryNotFound
		}
		return busy(err)
	}

	total := consumed.Sub(amount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	_, err = l.tx.Exec(ctx, `
		UPDATE ledger_entries SET consumed = $3, updated_at = now()
		WHERE employee_id = $1 AND period_id = $2
	`, employeeID, periodID, total)
	return busy(err)
}

// periodStatus reads the period status under a share lock. The close takes
// the period row FOR UPDATE, so a settlement and a concurrent close conflict
// here instead of committing against each other's stale snapshot.
func periodStatus(ctx context.Context, tx pgx.Tx, periodID int64) (string, error) {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM periods WHERE id = $1 FOR SHARE`, periodID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: period %d", shared.ErrNotFound, periodID)
		}
		return "", busy(err)
	}
	return status, nil
}

func busy(err error) error {
	if err == nil {
		return nil
	}
	if db.IsLockTimeout(err) {
		return fmt.Errorf("%w: ledger row contended", shared.ErrBusy)
	}
	return err
}
