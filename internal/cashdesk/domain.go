package cashdesk

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// SessionStatus tracks the cash desk lifecycle.
type SessionStatus string

const (
	SessionOpen   SessionStatus = "OPEN"
	SessionClosed SessionStatus = "CLOSED"
)

// MovementType classifies manual cash movements during a session.
type MovementType string

const (
	// MovementWithdrawal removes cash from the drawer (sangria).
	MovementWithdrawal MovementType = "SANGRIA"
	// MovementTopUp adds change money to the drawer (suprimento).
	MovementTopUp MovementType = "SUPRIMENTO"
)

// Session is one cash desk shift. Expected is the opening float plus cash
// sales and top-ups minus withdrawals; Difference is counted minus expected.
type Session struct {
	ID            int64           `json:"id"`
	OperatorID    int64           `json:"operator_id"`
	OperatorName  string          `json:"operator_name,omitempty"`
	Status        SessionStatus   `json:"status"`
	OpeningAmount decimal.Decimal `json:"opening_amount"`
	CashSales     decimal.Decimal `json:"cash_sales"`
	Withdrawals   decimal.Decimal `json:"withdrawals"`
	TopUps        decimal.Decimal `json:"top_ups"`
	Expected      decimal.Decimal `json:"expected"`
	Counted       decimal.Decimal `json:"counted"`
	Difference    decimal.Decimal `json:"difference"`
	OpenedAt      time.Time       `json:"opened_at"`
	ClosedAt      *time.Time      `json:"closed_at,omitempty"`
}

// Movement is one manual cash movement inside a session.
type Movement struct {
	ID        int64           `json:"id"`
	SessionID int64           `json:"session_id"`
	Type      MovementType    `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	ActorID   int64           `json:"actor_id"`
	CreatedAt time.Time       `json:"created_at"`
}

// ErrSessionOpen is returned when opening a desk while another session is
// still open.
var ErrSessionOpen = errors.New("cashdesk: a session is already open")

// ErrNoOpenSession is returned for operations that need an open session.
var ErrNoOpenSession = errors.New("cashdesk: no open session")
