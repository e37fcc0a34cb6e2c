package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lanch-pos/lanch-pos/internal/ledger"
	"github.com/lanch-pos/lanch-pos/internal/platform/db"
	"github.com/lanch-pos/lanch-pos/internal/shared"
)

// Product is the catalog projection settlement needs: current price, stock
// posture and activity flag.
type Product struct {
	ID         int64
	Name       string
	Price      decimal.Decimal
	TrackStock bool
	Stock      int
	Active     bool
}

// Employee is the staff projection settlement needs.
type Employee struct {
	ID     int64
	Name   string
	Active bool
}

// Repository persists orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service. The
// whole settlement shares one transaction: stock decrement, ledger
// reservation and order persistence commit together or not at all.
type TxRepository interface {
	ProductForUpdate(ctx context.Context, id int64) (Product, error)
	AdjustStock(ctx context.Context, productID int64, delta int) error
	EmployeeByRef(ctx context.Context, id int64, registration string) (Employee, error)
	OpenPeriodID(ctx context.Context) (int64, error)
	NextNumber(ctx context.Context, day string) (string, error)
	InsertOrder(ctx context.Context, o *Order) error
	InsertItems(ctx context.Context, orderID int64, items []Item) error
	OrderForUpdate(ctx context.Context, id int64) (Order, error)
	SetStatus(ctx context.Context, id int64, status Status) error
	Ledger() ledger.TxLedger
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

func (t *txRepo) Ledger() ledger.TxLedger {
	return ledger.NewTxLedger(t.tx)
}

func (t *txRepo) ProductForUpdate(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := t.tx.QueryRow(ctx, `
		SELECT id, name, price, track_stock, stock, active
		FROM products
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE
	`, id).Scan(&p.ID, &p.Name, &p.Price, &p.TrackStock, &p.Stock, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
		}
		if db.IsLockTimeout(err) {
			return Product{}, fmt.Errorf("%w: product row contended", shared.ErrBusy)
		}
		return Product{}, err
	}
	return p, nil
}

func (t *txRepo) AdjustStock(ctx context.Context, productID int64, delta int) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND track_stock = TRUE
	`, productID, delta)
	return err
}

func (t *txRepo) EmployeeByRef(ctx context.Context, id int64, registration string) (Employee, error) {
	var (
		e     Employee
		query string
		arg   any
	)
	switch {
	case id != 0:
		query = `SELECT id, name, active FROM employees WHERE id = $1`
		arg = id
	case registration != "":
		query = `SELECT id, name, active FROM employees WHERE registration = $1`
		arg = registration
	default:
		return Employee{}, fmt.Errorf("%w: employee id or registration required", shared.ErrValidation)
	}
	err := t.tx.QueryRow(ctx, query, arg).Scan(&e.ID, &e.Name, &e.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, fmt.Errorf("%w: employee", shared.ErrNotFound)
		}
		return Employee{}, err
	}
	return e, nil
}

func (t *txRepo) OpenPeriodID(ctx context.Context) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `SELECT id FROM periods WHERE status = 'OPEN' ORDER BY year, month LIMIT 1`).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: no open period", shared.ErrNotFound)
		}
		return 0, err
	}
	return id, nil
}

// NextNumber produces the next human-readable order number for the day:
// YYYYMMDD plus a four-digit daily sequence.
func (t *txRepo) NextNumber(ctx context.Context, day string) (string, error) {
	var count int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE number LIKE $1`, day+"%").Scan(&count)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", day, count+1), nil
}

func (t *txRepo) InsertOrder(ctx context.Context, o *Order) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (number, customer_class, employee_id, operator_id, period_id, total, status, payment_method, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING id, created_at, updated_at
	`, o.Number, o.CustomerClass, o.EmployeeID, o.OperatorID, o.PeriodID, o.Total, o.Status, o.PaymentMethod, o.Note).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: order number %s", shared.ErrConflict, o.Number)
		}
		return err
	}
	return nil
}

func (t *txRepo) InsertItems(ctx context.Context, orderID int64, items []Item) error {
	for i := range items {
		err := t.tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, orderID, items[i].ProductID, items[i].ProductName, items[i].Quantity, items[i].UnitPrice, items[i].Subtotal).
			Scan(&items[i].ID)
		if err != nil {
			return err
		}
		items[i].OrderID = orderID
	}
	return nil
}

func (t *txRepo) OrderForUpdate(ctx context.Context, id int64) (Order, error) {
	var o Order
	err := t.tx.QueryRow(ctx, `
		SELECT o.id, o.number, o.customer_class, o.employee_id, COALESCE(e.name, ''), o.operator_id, o.period_id,
		       o.total, o.status, o.payment_method, COALESCE(o.note, ''), o.created_at, o.updated_at
		FROM orders o
		LEFT JOIN employees e ON e.id = o.employee_id
		WHERE o.id = $1
		FOR UPDATE OF o
	`, id).Scan(&o.ID, &o.Number, &o.CustomerClass, &o.EmployeeID, &o.EmployeeName, &o.OperatorID, &o.PeriodID,
		&o.Total, &o.Status, &o.PaymentMethod, &o.Note, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
		}
		if db.IsLockTimeout(err) {
			return Order{}, fmt.Errorf("%w: order row contended", shared.ErrBusy)
		}
		return Order{}, err
	}
	items, err := loadItems(ctx, t.tx, []int64{o.ID})
	if err != nil {
		return Order{}, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (t *txRepo) SetStatus(ctx context.Context, id int64, status Status) error {
	_, err := t.tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}

const orderColumns = `o.id, o.number, o.customer_class, o.employee_id, COALESCE(e.name, ''), o.operator_id, o.period_id,
       o.total, o.status, o.payment_method, COALESCE(o.note, ''), o.created_at, o.updated_at`

// Get fetches a single order with its items.
func (r *Repository) Get(ctx context.Context, id int64) (Order, error) {
	var o Order
	err := r.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		LEFT JOIN employees e ON e.id = o.employee_id
		WHERE o.id = $1
	`, id).Scan(&o.ID, &o.Number, &o.CustomerClass, &o.EmployeeID, &o.EmployeeName, &o.OperatorID, &o.PeriodID,
		&o.Total, &o.Status, &o.PaymentMethod, &o.Note, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, fmt.Errorf("%w: order %d", shared.ErrNotFound, id)
		}
		return Order{}, err
	}
	items, err := loadItems(ctx, r.pool, []int64{o.ID})
	if err != nil {
		return Order{}, err
	}
	o.Items = items[o.ID]
	return o, nil
}

// List returns orders newest first according to the filter.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	conditions := []string{"1=1"}
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("o.status = $%d", len(args)))
	}
	if filter.CustomerClass != "" {
		args = append(args, filter.CustomerClass)
		conditions = append(conditions, fmt.Sprintf("o.customer_class = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("o.created_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conditions = append(conditions, fmt.Sprintf("o.created_at <= $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT `+orderColumns+`
		FROM orders o
		LEFT JOIN employees e ON e.id = o.employee_id
		WHERE %s
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $%d
	`, strings.Join(conditions, " AND "), len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(ctx, r.pool, rows)
}

// Kitchen lists active orders for the kitchen display: pending first, then
// preparing, then ready, oldest first within each group.
func (r *Repository) Kitchen(ctx context.Context) ([]KitchenTicket, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.number, o.customer_class, COALESCE(e.name, 'Paciente/Visitante'), o.status, COALESCE(o.note, ''), o.created_at,
		       COALESCE(string_agg(oi.quantity || 'x ' || oi.product_name, ', ' ORDER BY oi.id), '')
		FROM orders o
		LEFT JOIN employees e ON e.id = o.employee_id
		LEFT JOIN order_items oi ON oi.order_id = o.id
		WHERE o.status IN ('PENDING', 'PREPARING', 'READY')
		GROUP BY o.id, e.name
		ORDER BY CASE o.status WHEN 'PENDING' THEN 1 WHEN 'PREPARING' THEN 2 ELSE 3 END, o.created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now()
	var tickets []KitchenTicket
	for rows.Next() {
		var t KitchenTicket
		if err := rows.Scan(&t.ID, &t.Number, &t.Class, &t.Customer, &t.Status, &t.Note, &t.CreatedAt, &t.Items); err != nil {
			return nil, err
		}
		t.WaitMinutes = int(now.Sub(t.CreatedAt).Minutes())
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// Today aggregates the current day's orders.
func (r *Repository) Today(ctx context.Context) (TodaySummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		LEFT JOIN employees e ON e.id = o.employee_id
		WHERE o.created_at::date = CURRENT_DATE
		ORDER BY o.created_at DESC
	`)
	if err != nil {
		return TodaySummary{}, err
	}
	defer rows.Close()

	orders, err := collectOrders(ctx, r.pool, rows)
	if err != nil {
		return TodaySummary{}, err
	}

	summary := TodaySummary{
		Date:    time.Now().Format("2006-01-02"),
		Revenue: decimal.Zero,
		Orders:  orders,
	}
	for _, o := range orders {
		summary.TotalOrders++
		if o.CustomerClass == ClassStaff {
			summary.StaffOrders++
		} else {
			summary.VisitorOrders++
		}
		if o.Status != StatusCancelled {
			summary.Revenue = summary.Revenue.Add(o.Total)
		}
	}
	return summary, nil
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func collectOrders(ctx context.Context, q rowQuerier, rows pgx.Rows) ([]Order, error) {
	var (
		orders []Order
		ids    []int64
	)
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.Number, &o.CustomerClass, &o.EmployeeID, &o.EmployeeName, &o.OperatorID, &o.PeriodID,
			&o.Total, &o.Status, &o.PaymentMethod, &o.Note, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return orders, nil
	}
	items, err := loadItems(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func loadItems(ctx context.Context, q rowQuerier, orderIDs []int64) (map[int64][]Item, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, subtotal
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id
	`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byOrder := make(map[int64][]Item)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, err
		}
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	return byOrder, rows.Err()
}
