package reports

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lanch-pos/lanch-pos/internal/platform/httpx"
)

// Handler wires HTTP endpoints for back-office reports.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler constructs a reports HTTP handler.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// Routes registers the dashboard for all authenticated users.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/reports/dashboard", h.dashboard)
}

// AdminRoutes registers detailed report endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/reports/sales/daily", h.dailySales)
	r.Get("/reports/sales/payment-methods", h.paymentBreakdown)
	r.Get("/reports/sales/top-products", h.topProducts)
	r.Get("/reports/periods/{id}/sectors", h.sectorConsumption)
}

// window parses from/to query params, defaulting to the last 30 days.
func window(r *http.Request) (Window, error) {
	now := time.Now()
	w := Window{From: now.AddDate(0, 0, -30), To: now}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return Window{}, err
		}
		w.From = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return Window{}, err
		}
		w.To = t
	}
	return w, nil
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.repo.Dashboard(r.Context())
	if err != nil {
		h.logger.Error("dashboard", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) dailySales(w http.ResponseWriter, r *http.Request) {
	win, err := window(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "dates must be YYYY-MM-DD")
		return
	}
	sales, err := h.repo.DailySales(r.Context(), win)
	if err != nil {
		h.logger.Error("daily sales", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sales)
}

func (h *Handler) paymentBreakdown(w http.ResponseWriter, r *http.Request) {
	win, err := window(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "dates must be YYYY-MM-DD")
		return
	}
	breakdown, err := h.repo.PaymentBreakdown(r.Context(), win)
	if err != nil {
		h.logger.Error("payment breakdown", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, breakdown)
}

func (h *Handler) topProducts(w http.ResponseWriter, r *http.Request) {
	win, err := window(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "dates must be YYYY-MM-DD")
		return
	}
	var limit int
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	top, err := h.repo.TopProducts(r.Context(), win, limit)
	if err != nil {
		h.logger.Error("top products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, top)
}

func (h *Handler) sectorConsumption(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid period id")
		return
	}
	sectors, err := h.repo.SectorConsumption(r.Context(), id)
	if err != nil {
		h.logger.Error("sector consumption", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sectors)
}
