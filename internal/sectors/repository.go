package sectors

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lanch-pos/lanch-pos/internal/platform/db"
	"github.com/lanch-pos/lanch-pos/internal/shared"
)

// Repository persists sectors in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sectorColumns = `id, name, cost_center, active, created_at, updated_at`

// List returns sectors ordered by name. Inactive sectors are included so the
// back office can reactivate them.
func (r *Repository) List(ctx context.Context) ([]Sector, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sectorColumns+` FROM sectors ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sectors []Sector
	for rows.Next() {
		var s Sector
		if err := rows.Scan(&s.ID, &s.Name, &s.CostCenter, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sectors = append(sectors, s)
	}
	return sectors, rows.Err()
}

// Get fetches a sector by id.
func (r *Repository) Get(ctx context.Context, id int64) (Sector, error) {
	var s Sector
	err := r.pool.QueryRow(ctx, `SELECT `+sectorColumns+` FROM sectors WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.CostCenter, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sector{}, fmt.Errorf("%w: sector %d", shared.ErrNotFound, id)
		}
		return Sector{}, err
	}
	return s, nil
}

// Create inserts a sector.
func (r *Repository) Create(ctx context.Context, in Input) (Sector, error) {
	var s Sector
	err := r.pool.QueryRow(ctx, `
		INSERT INTO sectors (name, cost_center, active, created_at, updated_at)
		VALUES ($1, $2, TRUE, now(), now())
		RETURNING `+sectorColumns+`
	`, in.Name, in.CostCenter).
		Scan(&s.ID, &s.Name, &s.CostCenter, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Sector{}, fmt.Errorf("%w: sector %q exists", shared.ErrConflict, in.Name)
		}
		return Sector{}, err
	}
	return s, nil
}

// Update replaces the mutable fields.
func (r *Repository) Update(ctx context.Context, id int64, in Input) (Sector, error) {
	var s Sector
	err := r.pool.QueryRow(ctx, `
		UPDATE sectors SET name = $2, cost_center = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+sectorColumns+`
	`, id, in.Name, in.CostCenter).
		Scan(&s.ID, &s.Name, &s.CostCenter, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sector{}, fmt.Errorf("%w: sector %d", shared.ErrNotFound, id)
		}
		if db.IsUniqueViolation(err) {
			return Sector{}, fmt.Errorf("%w: sector %q exists", shared.ErrConflict, in.Name)
		}
		return Sector{}, err
	}
	return s, nil
}

// SetActive toggles a sector. Sectors with employees are deactivated, never
// deleted, so historical exports keep resolving.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sectors SET active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: sector %d", shared.ErrNotFound, id)
	}
	return nil
}
