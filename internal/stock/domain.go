package stock

import (
	"errors"
	"time"
)

// MovementType classifies a stock movement.
type MovementType string

const (
	// MovementIn receives goods into stock.
	MovementIn MovementType = "IN"
	// MovementOut writes goods off outside a sale (losses, spoilage).
	MovementOut MovementType = "OUT"
	// MovementAdjust sets the counted quantity after a physical inventory.
	MovementAdjust MovementType = "ADJUST"
)

// Movement is one stock mutation with its audit trail.
type Movement struct {
	ID          int64        `json:"id"`
	ProductID   int64        `json:"product_id"`
	ProductName string       `json:"product_name,omitempty"`
	Type        MovementType `json:"type"`
	Quantity    int          `json:"quantity"`
	Before      int          `json:"before"`
	After       int          `json:"after"`
	Reason      string       `json:"reason,omitempty"`
	ActorID     int64        `json:"actor_id"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Input requests a stock movement. For ADJUST, Quantity is the absolute
// counted amount; for IN/OUT it is the delta.
type Input struct {
	ProductID int64        `json:"product_id" validate:"required"`
	Type      MovementType `json:"type" validate:"required,oneof=IN OUT ADJUST"`
	Quantity  int          `json:"quantity" validate:"gte=0"`
	Reason    string       `json:"reason"`
}

// Alert flags a tracked product at or below its minimum.
type Alert struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
	MinStock  int    `json:"min_stock"`
}

// ErrUntracked is returned when moving stock of a product that does not track
// inventory.
var ErrUntracked = errors.New("stock: product does not track stock")

// ErrNegativeStock is returned when an OUT movement would drive stock below
// zero.
var ErrNegativeStock = errors.New("stock: movement would make stock negative")
