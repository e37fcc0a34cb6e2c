package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailySales aggregates settled orders for one calendar day.
type DailySales struct {
	Day           time.Time       `json:"day"`
	Orders        int             `json:"orders"`
	StaffOrders   int             `json:"staff_orders"`
	VisitorOrders int             `json:"visitor_orders"`
	Revenue       decimal.Decimal `json:"revenue"`
}

// PaymentBreakdown totals revenue per settlement method.
type PaymentBreakdown struct {
	Method  string          `json:"method"`
	Orders  int             `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}

// TopProduct ranks a product by quantity sold in the window.
type TopProduct struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// SectorConsumption totals allowance consumption per sector in the window.
type SectorConsumption struct {
	Sector     string          `json:"sector"`
	CostCenter string          `json:"cost_center"`
	Employees  int             `json:"employees"`
	Total      decimal.Decimal `json:"total"`
}

// Dashboard is the landing page summary.
type Dashboard struct {
	TodayOrders    int             `json:"today_orders"`
	TodayRevenue   decimal.Decimal `json:"today_revenue"`
	PendingKitchen int             `json:"pending_kitchen"`
	LowStockItems  int             `json:"low_stock_items"`
	ActivePeriod   string          `json:"active_period,omitempty"`
	PeriodTotal    decimal.Decimal `json:"period_total"`
}

// Window bounds a report query, inclusive on both ends.
type Window struct {
	From time.Time
	To   time.Time
}
