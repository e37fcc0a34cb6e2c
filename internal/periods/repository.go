package periods

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lanch-pos/lanch-pos/internal/platform/db"
	"github.com/lanch-pos/lanch-pos/internal/shared"
)

// Repository persists period state.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository using the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the close workflow.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Period, error)
	Snapshot(ctx context.Context, periodID int64) (int, error)
	MarkClosed(ctx context.Context, id, closedBy int64) (Period, error)
	InsertIfAbsent(ctx context.Context, year, month int) (Period, bool, error)
	SnapshotRows(ctx context.Context, periodID int64) ([]SnapshotRow, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const periodColumns = `id, year, month, status, closed_by, closed_at, created_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Year, &p.Month, &p.Status, &p.ClosedBy, &p.ClosedAt, &p.CreatedAt)
	return p, err
}

// List returns periods newest first with consumption aggregates.
func (r *Repository) List(ctx context.Context) ([]WithTotals, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.year, p.month, p.status, p.closed_by, p.closed_at, p.created_at,
		       COALESCE(SUM(le.consumed), 0),
		       COUNT(le.id) FILTER (WHERE le.consumed > 0)
		FROM periods p
		LEFT JOIN ledger_entries le ON le.period_id = p.id
		GROUP BY p.id
		ORDER BY p.year DESC, p.month DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WithTotals
	for rows.Next() {
		var wt WithTotals
		if err := rows.Scan(&wt.ID, &wt.Year, &wt.Month, &wt.Status, &wt.ClosedBy, &wt.ClosedAt, &wt.CreatedAt,
			&wt.ConsumedTotal, &wt.EmployeeCount); err != nil {
			return nil, err
		}
		out = append(out, wt)
	}
	return out, rows.Err()
}

// Get fetches a single period by id.
func (r *Repository) Get(ctx context.Context, id int64) (Period, error) {
	p, err := scanPeriod(r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, fmt.Errorf("%w: period %d", shared.ErrNotFound, id)
		}
		return Period{}, err
	}
	return p, nil
}

// OpenPeriod resolves the single OPEN period. Resolved by query on every call
// so it stays correct across process instances.
func (r *Repository) OpenPeriod(ctx context.Context) (Period, error) {
	p, err := scanPeriod(r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE status = 'OPEN' ORDER BY year, month LIMIT 1`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrNoOpenPeriod
		}
		return Period{}, err
	}
	return p, nil
}

// SnapshotRows reads the frozen export rows of a closed period.
func (r *Repository) SnapshotRows(ctx context.Context, periodID int64) ([]SnapshotRow, error) {
	return snapshotRows(ctx, r.pool, periodID)
}

// Latest returns the most recent period by calendar order.
func (r *Repository) Latest(ctx context.Context) (Period, error) {
	p, err := scanPeriod(r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods ORDER BY year DESC, month DESC LIMIT 1`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ErrNoOpenPeriod
		}
		return Period{}, err
	}
	return p, nil
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Period, error) {
	p, err := scanPeriod(t.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, fmt.Errorf("%w: period %d", shared.ErrNotFound, id)
		}
		if db.IsLockTimeout(err) {
			return Period{}, fmt.Errorf("%w: period row contended", shared.ErrBusy)
		}
		return Period{}, err
	}
	return p, nil
}

// Snapshot freezes the period's non-zero ledger entries into period_snapshots.
// One INSERT..SELECT keeps the copy atomic with the close.
func (t *txRepo) Snapshot(ctx context.Context, periodID int64) (int, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO period_snapshots (period_id, employee_id, registration, name, sector, cost_center, consumed, created_at)
		SELECT le.period_id, e.id, e.registration, e.name, s.name, s.cost_center, le.consumed, now()
		FROM ledger_entries le
		JOIN employees e ON e.id = le.employee_id
		JOIN sectors s ON s.id = e.sector_id
		WHERE le.period_id = $1 AND le.consumed > 0
	`, periodID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (t *txRepo) MarkClosed(ctx context.Context, id, closedBy int64) (Period, error) {
	p, err := scanPeriod(t.tx.QueryRow(ctx, `
		UPDATE periods SET status = 'CLOSED', closed_by = $2, closed_at = now()
		WHERE id = $1
		RETURNING `+periodColumns, id, closedBy))
	if err != nil {
		return Period{}, err
	}
	return p, nil
}

// InsertIfAbsent opens the (year, month) period unless it already exists.
// The bool reports whether a new row was created.
func (t *txRepo) InsertIfAbsent(ctx context.Context, year, month int) (Period, bool, error) {
	p, err := scanPeriod(t.tx.QueryRow(ctx, `
		INSERT INTO periods (year, month, status, created_at)
		VALUES ($1, $2, 'OPEN', now())
		ON CONFLICT (year, month) DO NOTHING
		RETURNING `+periodColumns, year, month))
	if err == nil {
		return p, true, nil
	}
	if db.IsUniqueViolation(err) {
		// idx_periods_single_open: only one OPEN period may exist at a time.
		return Period{}, false, fmt.Errorf("%w: another period is still open", shared.ErrConflict)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Period{}, false, err
	}
	p, err = scanPeriod(t.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE year = $1 AND month = $2`, year, month))
	if err != nil {
		return Period{}, false, err
	}
	return p, false, nil
}

func (t *txRepo) SnapshotRows(ctx context.Context, periodID int64) ([]SnapshotRow, error) {
	return snapshotRows(ctx, t.tx, periodID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func snapshotRows(ctx context.Context, q querier, periodID int64) ([]SnapshotRow, error) {
	rows, err := q.Query(ctx, `
		SELECT employee_id, registration, name, sector, cost_center, consumed
		FROM period_snapshots
		WHERE period_id = $1
	`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotRow
	for rows.Next() {
		var r SnapshotRow
		if err := rows.Scan(&r.EmployeeID, &r.Registration, &r.Name, &r.Sector, &r.CostCenter, &r.Consumed); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
