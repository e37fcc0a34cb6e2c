package reports

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Repository runs read-only report queries. Cancelled orders never count
// toward revenue.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// DailySales returns per-day totals inside the window, oldest first.
func (r *Repository) DailySales(ctx context.Context, w Window) ([]DailySales, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT created_at::date AS day,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE customer_class = 'STAFF'),
		       COUNT(*) FILTER (WHERE customer_class = 'VISITOR'),
		       COALESCE(SUM(total), 0)
		FROM orders
		WHERE status <> 'CANCELLED' AND created_at >= $1 AND created_at < $2 + INTERVAL '1 day'
		GROUP BY day
		ORDER BY day
	`, w.From, w.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailySales
	for rows.Next() {
		var d DailySales
		if err := rows.Scan(&d.Day, &d.Orders, &d.StaffOrders, &d.VisitorOrders, &d.Revenue); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// PaymentBreakdown returns revenue per payment method inside the window.
func (r *Repository) PaymentBreakdown(ctx context.Context, w Window) ([]PaymentBreakdown, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT payment_method, COUNT(*), COALESCE(SUM(total), 0)
		FROM orders
		WHERE status <> 'CANCELLED' AND created_at >= $1 AND created_at < $2 + INTERVAL '1 day'
		GROUP BY payment_method
		ORDER BY SUM(total) DESC
	`, w.From, w.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PaymentBreakdown
	for rows.Next() {
		var p PaymentBreakdown
		if err := rows.Scan(&p.Method, &p.Orders, &p.Revenue); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// TopProducts ranks products by quantity sold inside the window.
func (r *Repository) TopProducts(ctx context.Context, w Window, limit int) ([]TopProduct, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx, `
		SELECT oi.product_id, oi.product_name, SUM(oi.quantity), COALESCE(SUM(oi.subtotal), 0)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.status <> 'CANCELLED' AND o.created_at >= $1 AND o.created_at < $2 + INTERVAL '1 day'
		GROUP BY oi.product_id, oi.product_name
		ORDER BY SUM(oi.quantity) DESC
		LIMIT $3
	`, w.From, w.To, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TopProduct
	for rows.Next() {
		var t TopProduct
		if err := rows.Scan(&t.ProductID, &t.Name, &t.Quantity, &t.Revenue); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SectorConsumption totals allowance consumption per sector for a period.
func (r *Repository) SectorConsumption(ctx context.Context, periodID int64) ([]SectorConsumption, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.name, s.cost_center, COUNT(DISTINCT le.employee_id), COALESCE(SUM(le.consumed), 0)
		FROM ledger_entries le
		JOIN employees e ON e.id = le.employee_id
		JOIN sectors s ON s.id = e.sector_id
		WHERE le.period_id = $1 AND le.consumed > 0
		GROUP BY s.name, s.cost_center
		ORDER BY SUM(le.consumed) DESC
	`, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SectorConsumption
	for rows.Next() {
		var s SectorConsumption
		if err := rows.Scan(&s.Sector, &s.CostCenter, &s.Employees, &s.Total); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Dashboard assembles the landing page summary. The aggregates are
// independent, so they run concurrently against the pool.
func (r *Repository) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	d.PeriodTotal = decimal.Zero

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.pool.QueryRow(ctx, `
			SELECT COUNT(*), COALESCE(SUM(total) FILTER (WHERE status <> 'CANCELLED'), 0)
			FROM orders WHERE created_at::date = CURRENT_DATE
		`).Scan(&d.TodayOrders, &d.TodayRevenue)
	})

	g.Go(func() error {
		return r.pool.QueryRow(ctx, `
			SELECT COUNT(*) FROM orders WHERE status IN ('PENDING', 'PREPARING')
		`).Scan(&d.PendingKitchen)
	})

	g.Go(func() error {
		return r.pool.QueryRow(ctx, `
			SELECT COUNT(*) FROM products
			WHERE deleted_at IS NULL AND active = TRUE AND track_stock = TRUE AND stock <= min_stock
		`).Scan(&d.LowStockItems)
	})

	g.Go(func() error {
		var year, month int
		var total decimal.Decimal
		err := r.pool.QueryRow(ctx, `
			SELECT p.year, p.month, COALESCE(SUM(le.consumed), 0)
			FROM periods p
			LEFT JOIN ledger_entries le ON le.period_id = p.id
			WHERE p.status = 'OPEN'
			GROUP BY p.year, p.month
			ORDER BY p.year, p.month
			LIMIT 1
		`).Scan(&year, &month, &total)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		d.ActivePeriod = fmt.Sprintf("%02d/%d", month, year)
		d.PeriodTotal = total
		return nil
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}
