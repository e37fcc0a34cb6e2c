package ledger

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lanch-pos/lanch-pos/internal/platform/httpx"
)

// Handler exposes balance queries.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a ledger HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Routes registers ledger endpoints on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/employees/{id}/balance", h.balance)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	employeeID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid employee id")
		return
	}
	var periodID int64
	if raw := r.URL.Query().Get("period_id"); raw != "" {
		periodID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid period id")
			return
		}
	}
	balance, err := h.service.Balance(r.Context(), employeeID, periodID)
	if err != nil {
		h.logger.Error("balance query", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}
