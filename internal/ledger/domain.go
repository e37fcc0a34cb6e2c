package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Entry is the running consumption total of one employee within one period.
// Unique per (employee, period); updated incrementally as orders settle.
type Entry struct {
	ID         int64
	EmployeeID int64
	PeriodID   int64
	Consumed   decimal.Decimal
	UpdatedAt  time.Time
}

// Balance is the read model returned to operators before settlement.
// Available is clamped to zero for display only; the stored consumed total is
// never clamped.
type Balance struct {
	EmployeeID int64           `json:"employee_id"`
	PeriodID   int64           `json:"period_id"`
	Consumed   decimal.Decimal `json:"consumed"`
	Limit      decimal.Decimal `json:"limit"`
	Available  decimal.Decimal `json:"available"`
}

// PeriodEntry is an entry joined with employee identity, used by closing and
// consumption listings.
type PeriodEntry struct {
	EmployeeID   int64           `json:"employee_id"`
	Registration string          `json:"registration"`
	Name         string          `json:"name"`
	Sector       string          `json:"sector"`
	CostCenter   string          `json:"cost_center"`
	Consumed     decimal.Decimal `json:"consumed"`
}

// ErrInsufficientAllowance is returned when a settlement would push the
// employee's consumed total above the monthly limit. The limit is inclusive:
// an order equal to the remaining balance succeeds.
var ErrInsufficientAllowance = errors.New("ledger: insufficient allowance")

// ErrPeriodClosed is returned when settling or reversing against a CLOSED
// period. The close is a hard boundary.
var ErrPeriodClosed = errors.New("ledger: period closed")

// ErrEntryNotFound indicates no ledger entry exists for the pair.
var ErrEntryNotFound = errors.New("ledger: entry not found")
