package periods

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the period lifecycle. A period is terminal once CLOSED.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Period is one calendar-month accounting window ("competência"). Exactly one
// period is OPEN at a time; closing one opens its successor.
type Period struct {
	ID        int64      `json:"id"`
	Year      int        `json:"year"`
	Month     int        `json:"month"`
	Status    Status     `json:"status"`
	ClosedBy  *int64     `json:"closed_by,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Code renders the period as MM/YYYY for exports and labels.
func (p Period) Code() string {
	return fmt.Sprintf("%02d/%d", p.Month, p.Year)
}

// Next returns the calendar successor of the period.
func (p Period) Next() (year, month int) {
	if p.Month == 12 {
		return p.Year + 1, 1
	}
	return p.Year, p.Month + 1
}

// WithTotals decorates a period with consumption aggregates for listings.
type WithTotals struct {
	Period
	ConsumedTotal decimal.Decimal `json:"consumed_total"`
	EmployeeCount int             `json:"employee_count"`
}

// SnapshotRow is one line of the consolidated export, frozen at close time.
// Later corrections never alter it; corrections require a manual reversing
// process, not a re-open.
type SnapshotRow struct {
	EmployeeID   int64           `json:"employee_id"`
	Registration string          `json:"registration"`
	Name         string          `json:"name"`
	Sector       string          `json:"sector"`
	CostCenter   string          `json:"cost_center"`
	Consumed     decimal.Decimal `json:"consumed"`
}

// ClosedSummary is the result of closing a period.
type ClosedSummary struct {
	Period Period          `json:"period"`
	Next   Period          `json:"next_period"`
	Rows   []SnapshotRow   `json:"rows"`
	Total  decimal.Decimal `json:"total"`
}

// ErrAlreadyClosed is returned when closing a period that is not OPEN.
// Calling close twice is a no-op error, never a re-close.
var ErrAlreadyClosed = errors.New("periods: period already closed")

// ErrNoOpenPeriod indicates no OPEN period exists for new orders to attach to.
var ErrNoOpenPeriod = errors.New("periods: no open period")
