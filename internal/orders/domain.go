package orders

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// CustomerClass separates staff drawing against their allowance from patients
// and visitors paying directly.
type CustomerClass string

const (
	ClassStaff   CustomerClass = "STAFF"
	ClassVisitor CustomerClass = "VISITOR"
)

// Status captures the kitchen-driven order lifecycle.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPreparing Status = "PREPARING"
	StatusReady     Status = "READY"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// PaymentMethod enumerates settlement methods. ALLOWANCE is reserved for
// staff; visitors pay with a direct method.
type PaymentMethod string

const (
	PayAllowance PaymentMethod = "ALLOWANCE"
	PayPix       PaymentMethod = "PIX"
	PayCard      PaymentMethod = "CARD"
	PayCash      PaymentMethod = "CASH"
)

// CanTransition reports whether the kitchen may move an order from one status
// to the next. Transitions are forward-only; cancellation is a separate
// operation with its own rules.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusPreparing
	case StatusPreparing:
		return to == StatusReady
	case StatusReady:
		return to == StatusDelivered
	default:
		return false
	}
}

// Order is a committed sale with its settled financial effect.
type Order struct {
	ID            int64           `json:"id"`
	Number        string          `json:"number"`
	CustomerClass CustomerClass   `json:"customer_class"`
	EmployeeID    *int64          `json:"employee_id,omitempty"`
	EmployeeName  string          `json:"employee_name,omitempty"`
	OperatorID    int64           `json:"operator_id"`
	PeriodID      *int64          `json:"period_id,omitempty"`
	Total         decimal.Decimal `json:"total"`
	Status        Status          `json:"status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Note          string          `json:"note,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Items         []Item          `json:"items"`
}

// Item is one order line. Unit price is copied from the product at order time
// so later price changes never alter historical orders.
type Item struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// KitchenTicket is the kitchen display projection of an active order.
type KitchenTicket struct {
	ID          int64         `json:"id"`
	Number      string        `json:"number"`
	Customer    string        `json:"customer"`
	Class       CustomerClass `json:"customer_class"`
	Status      Status        `json:"status"`
	Note        string        `json:"note,omitempty"`
	Items       string        `json:"items"`
	CreatedAt   time.Time     `json:"created_at"`
	WaitMinutes int           `json:"wait_minutes"`
}

// TodaySummary aggregates the current day's activity for the front desk.
type TodaySummary struct {
	Date          string          `json:"date"`
	TotalOrders   int             `json:"total_orders"`
	StaffOrders   int             `json:"staff_orders"`
	VisitorOrders int             `json:"visitor_orders"`
	Revenue       decimal.Decimal `json:"revenue"`
	Orders        []Order         `json:"orders"`
}

// CreateInput is the validated cart handed to Create.
type CreateInput struct {
	CustomerClass CustomerClass
	EmployeeID    int64
	Registration  string
	PaymentMethod PaymentMethod
	Note          string
	Items         []CreateItem
}

// CreateItem is a requested product/quantity pair.
type CreateItem struct {
	ProductID int64
	Quantity  int
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status        Status
	CustomerClass CustomerClass
	From          time.Time
	To            time.Time
	Limit         int
}

// ErrOutOfStock is returned when a tracked product cannot cover the requested
// quantity. The whole order fails; there is no partial fulfillment.
var ErrOutOfStock = errors.New("orders: insufficient stock")

// ErrInvalidTransition is returned for any status change outside the allowed
// set, including on terminal orders.
var ErrInvalidTransition = errors.New("orders: invalid status transition")

// ErrEmployeeInactive blocks consumption by deactivated staff.
var ErrEmployeeInactive = errors.New("orders: employee inactive")
