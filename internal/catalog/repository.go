package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lanch-pos/lanch-pos/internal/platform/db"
	"github.com/lanch-pos/lanch-pos/internal/shared"
)

// Repository persists the menu catalog in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListCategories returns categories ordered by name.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, active, created_at, updated_at FROM categories ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CreateCategory inserts a category.
func (r *Repository) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx, `
		INSERT INTO categories (name, active, created_at, updated_at)
		VALUES ($1, TRUE, now(), now())
		RETURNING id, name, active, created_at, updated_at
	`, in.Name).Scan(&c.ID, &c.Name, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Category{}, fmt.Errorf("%w: category %q exists", shared.ErrConflict, in.Name)
		}
		return Category{}, err
	}
	return c, nil
}

// UpdateCategory renames a category.
func (r *Repository) UpdateCategory(ctx context.Context, id int64, in CategoryInput) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx, `
		UPDATE categories SET name = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, name, active, created_at, updated_at
	`, id, in.Name).Scan(&c.ID, &c.Name, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, fmt.Errorf("%w: category %d", shared.ErrNotFound, id)
		}
		if db.IsUniqueViolation(err) {
			return Category{}, fmt.Errorf("%w: category %q exists", shared.ErrConflict, in.Name)
		}
		return Category{}, err
	}
	return c, nil
}

const productSelect = `
	SELECT p.id, p.name, p.category_id, c.name, p.price, p.track_stock, p.stock, p.min_stock,
	       p.active, p.created_at, p.updated_at
	FROM products p
	JOIN categories c ON c.id = p.category_id`

// ListProducts returns non-deleted products, optionally restricted to one
// category or to active items only.
func (r *Repository) ListProducts(ctx context.Context, categoryID int64, activeOnly bool) ([]Product, error) {
	sql := productSelect + ` WHERE p.deleted_at IS NULL`
	args := []any{}
	if categoryID != 0 {
		args = append(args, categoryID)
		sql += fmt.Sprintf(` AND p.category_id = $%d`, len(args))
	}
	if activeOnly {
		sql += ` AND p.active = TRUE`
	}
	sql += ` ORDER BY c.name, p.name`

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.CategoryID, &p.CategoryName, &p.Price, &p.TrackStock,
			&p.Stock, &p.MinStock, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetProduct fetches one product.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, productSelect+` WHERE p.id = $1 AND p.deleted_at IS NULL`, id).
		Scan(&p.ID, &p.Name, &p.CategoryID, &p.CategoryName, &p.Price, &p.TrackStock,
			&p.Stock, &p.MinStock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
		}
		return Product{}, err
	}
	return p, nil
}

// CreateProduct inserts a product. Stock starts at zero; receipts come in
// through stock movements.
func (r *Repository) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO products (name, category_id, price, track_stock, stock, min_stock, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, TRUE, now(), now())
		RETURNING id
	`, in.Name, in.CategoryID, in.Price, in.TrackStock, in.MinStock).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Product{}, fmt.Errorf("%w: product %q exists", shared.ErrConflict, in.Name)
		}
		return Product{}, err
	}
	return r.GetProduct(ctx, id)
}

// UpdateProduct replaces the mutable fields. Existing orders keep the unit
// price snapshotted at sale time.
func (r *Repository) UpdateProduct(ctx context.Context, id int64, in ProductInput) (Product, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products
		SET name = $2, category_id = $3, price = $4, track_stock = $5, min_stock = $6, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id, in.Name, in.CategoryID, in.Price, in.TrackStock, in.MinStock)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Product{}, fmt.Errorf("%w: product %q exists", shared.ErrConflict, in.Name)
		}
		return Product{}, err
	}
	if tag.RowsAffected() == 0 {
		return Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return r.GetProduct(ctx, id)
}

// SetProductActive toggles a product on the menu.
func (r *Repository) SetProductActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products SET active = $2, updated_at = now() WHERE id = $1 AND deleted_at IS NULL
	`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return nil
}

// DeleteProduct soft-deletes a product. Sold items reference the snapshot
// stored on order lines, so removal never breaks history.
func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products SET deleted_at = now(), active = FALSE, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return nil
}
