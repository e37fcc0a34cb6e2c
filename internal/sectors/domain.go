package sectors

import "time"

// Sector is a hospital unit employees belong to. The cost center code is what
// payroll uses to attribute the monthly discount.
type Sector struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	CostCenter string    `json:"cost_center"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Input carries the mutable sector fields.
type Input struct {
	Name       string `json:"name" validate:"required,min=2"`
	CostCenter string `json:"cost_center" validate:"required"`
}
