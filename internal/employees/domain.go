package employees

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Employee is a staff member entitled to consume against the monthly
// allowance. Registration is the badge number payroll knows them by.
type Employee struct {
	ID           int64           `json:"id"`
	Registration string          `json:"registration"`
	CPF          string          `json:"cpf"`
	Name         string          `json:"name"`
	SectorID     int64           `json:"sector_id"`
	SectorName   string          `json:"sector_name,omitempty"`
	CostCenter   string          `json:"cost_center,omitempty"`
	MonthlyLimit decimal.Decimal `json:"monthly_limit"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Input carries the mutable employee fields.
type Input struct {
	Registration string          `json:"registration" validate:"required"`
	CPF          string          `json:"cpf" validate:"required,len=11,numeric"`
	Name         string          `json:"name" validate:"required,min=3"`
	SectorID     int64           `json:"sector_id" validate:"required"`
	MonthlyLimit decimal.Decimal `json:"monthly_limit"`
}

// ErrInvalidCPF is returned when the CPF check digits do not verify.
var ErrInvalidCPF = errors.New("employees: invalid cpf")

// ValidCPF verifies the two CPF check digits. Input must be the 11 bare
// digits, no punctuation.
func ValidCPF(cpf string) bool {
	if len(cpf) != 11 {
		return false
	}
	digits := make([]int, 11)
	same := true
	for i, c := range cpf {
		if c < '0' || c > '9' {
			return false
		}
		digits[i] = int(c - '0')
		if digits[i] != digits[0] {
			same = false
		}
	}
	// All-equal sequences like 00000000000 pass the checksum but are invalid.
	if same {
		return false
	}
	for _, pos := range []int{9, 10} {
		sum := 0
		for i := 0; i < pos; i++ {
			sum += digits[i] * (pos + 1 - i)
		}
		check := (sum * 10) % 11
		if check == 10 {
			check = 0
		}
		if check != digits[pos] {
			return false
		}
	}
	return true
}
