package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products on the menu.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product is a menu item. Items with TrackStock false (prepared meals) sell
// without inventory control; packaged goods keep a counted stock.
type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	CategoryID   int64           `json:"category_id"`
	CategoryName string          `json:"category_name,omitempty"`
	Price        decimal.Decimal `json:"price"`
	TrackStock   bool            `json:"track_stock"`
	Stock        int             `json:"stock"`
	MinStock     int             `json:"min_stock"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CategoryInput carries the mutable category fields.
type CategoryInput struct {
	Name string `json:"name" validate:"required,min=2"`
}

// ProductInput carries the mutable product fields.
type ProductInput struct {
	Name       string          `json:"name" validate:"required,min=2"`
	CategoryID int64           `json:"category_id" validate:"required"`
	Price      decimal.Decimal `json:"price"`
	TrackStock bool            `json:"track_stock"`
	MinStock   int             `json:"min_stock" validate:"gte=0"`
}
