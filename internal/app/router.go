package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lanch-pos/lanch-pos/internal/audit"
	"github.com/lanch-pos/lanch-pos/internal/auth"
	"github.com/lanch-pos/lanch-pos/internal/cashdesk"
	"github.com/lanch-pos/lanch-pos/internal/catalog"
	"github.com/lanch-pos/lanch-pos/internal/employees"
	"github.com/lanch-pos/lanch-pos/internal/ledger"
	"github.com/lanch-pos/lanch-pos/internal/observability"
	"github.com/lanch-pos/lanch-pos/internal/orders"
	"github.com/lanch-pos/lanch-pos/internal/periods"
	"github.com/lanch-pos/lanch-pos/internal/reports"
	"github.com/lanch-pos/lanch-pos/internal/sectors"
	"github.com/lanch-pos/lanch-pos/internal/shared"
	"github.com/lanch-pos/lanch-pos/internal/stock"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Tokens           *auth.TokenIssuer
	Revoked          *auth.RevocationStore
	AuthHandler      *auth.Handler
	SectorsHandler   *sectors.Handler
	EmployeesHandler *employees.Handler
	CatalogHandler   *catalog.Handler
	StockHandler     *stock.Handler
	LedgerHandler    *ledger.Handler
	OrdersHandler    *orders.Handler
	PeriodsHandler   *periods.Handler
	ReportsHandler   *reports.Handler
	CashdeskHandler  *cashdesk.Handler
	AuditHandler     *audit.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults. Route groups
// are split by required role: public, any authenticated user, order
// operators, and administrators.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		params.AuthHandler.PublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(params.Tokens, params.Revoked, params.Logger))

			params.AuthHandler.Routes(r)
			params.SectorsHandler.Routes(r)
			params.EmployeesHandler.Routes(r)
			params.CatalogHandler.Routes(r)
			params.StockHandler.Routes(r)
			params.LedgerHandler.Routes(r)
			params.OrdersHandler.Routes(r)
			params.PeriodsHandler.Routes(r)
			params.ReportsHandler.Routes(r)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(shared.RoleAdmin, shared.RoleAttendant))
				params.CashdeskHandler.Routes(r)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				params.AuthHandler.AdminRoutes(r)
				params.SectorsHandler.AdminRoutes(r)
				params.EmployeesHandler.AdminRoutes(r)
				params.CatalogHandler.AdminRoutes(r)
				params.StockHandler.AdminRoutes(r)
				params.PeriodsHandler.AdminRoutes(r)
				params.ReportsHandler.AdminRoutes(r)
				params.CashdeskHandler.AdminRoutes(r)
				params.AuditHandler.AdminRoutes(r)
			})
		})
	})

	return r
}
