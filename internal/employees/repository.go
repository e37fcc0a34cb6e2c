package employees

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lanch-pos/lanch-pos/internal/platform/db"
	"github.com/lanch-pos/lanch-pos/internal/shared"
)

// Repository persists employees in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const employeeSelect = `
	SELECT e.id, e.registration, e.cpf, e.name, e.sector_id, s.name, s.cost_center,
	       e.monthly_limit, e.active, e.created_at, e.updated_at
	FROM employees e
	JOIN sectors s ON s.id = e.sector_id`

func scanEmployee(row pgx.Row) (Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.Registration, &e.CPF, &e.Name, &e.SectorID, &e.SectorName, &e.CostCenter,
		&e.MonthlyLimit, &e.Active, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, fmt.Errorf("%w: employee", shared.ErrNotFound)
		}
		return Employee{}, err
	}
	return e, nil
}

// Search lists employees, optionally filtered by a name or registration
// fragment, ordered by name.
func (r *Repository) Search(ctx context.Context, query string, activeOnly bool) ([]Employee, error) {
	sql := employeeSelect + ` WHERE 1=1`
	args := []any{}
	if query != "" {
		args = append(args, "%"+query+"%")
		sql += fmt.Sprintf(` AND (e.name ILIKE $%d OR e.registration ILIKE $%d)`, len(args), len(args))
	}
	if activeOnly {
		sql += ` AND e.active = TRUE`
	}
	sql += ` ORDER BY e.name LIMIT 200`

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.Registration, &e.CPF, &e.Name, &e.SectorID, &e.SectorName, &e.CostCenter,
			&e.MonthlyLimit, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// Get fetches an employee by id.
func (r *Repository) Get(ctx context.Context, id int64) (Employee, error) {
	return scanEmployee(r.pool.QueryRow(ctx, employeeSelect+` WHERE e.id = $1`, id))
}

// GetByRegistration fetches an employee by badge number.
func (r *Repository) GetByRegistration(ctx context.Context, registration string) (Employee, error) {
	return scanEmployee(r.pool.QueryRow(ctx, employeeSelect+` WHERE e.registration = $1`, registration))
}

// Create inserts an employee.
func (r *Repository) Create(ctx context.Context, in Input) (Employee, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO employees (registration, cpf, name, sector_id, monthly_limit, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, now(), now())
		RETURNING id
	`, in.Registration, in.CPF, in.Name, in.SectorID, in.MonthlyLimit).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Employee{}, fmt.Errorf("%w: registration or cpf already enrolled", shared.ErrConflict)
		}
		return Employee{}, err
	}
	return r.Get(ctx, id)
}

// Update replaces the mutable fields.
func (r *Repository) Update(ctx context.Context, id int64, in Input) (Employee, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE employees
		SET registration = $2, cpf = $3, name = $4, sector_id = $5, monthly_limit = $6, updated_at = now()
		WHERE id = $1
	`, id, in.Registration, in.CPF, in.Name, in.SectorID, in.MonthlyLimit)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Employee{}, fmt.Errorf("%w: registration or cpf already enrolled", shared.ErrConflict)
		}
		return Employee{}, err
	}
	if tag.RowsAffected() == 0 {
		return Employee{}, fmt.Errorf("%w: employee %d", shared.ErrNotFound, id)
	}
	return r.Get(ctx, id)
}

// SetActive toggles an employee. Former staff are deactivated, never deleted,
// so closed periods keep their consumption history.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE employees SET active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: employee %d", shared.ErrNotFound, id)
	}
	return nil
}
