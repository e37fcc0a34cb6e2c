package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lanch-pos/lanch-pos/internal/platform/httpx"
)

// Handler wires HTTP endpoints for stock control.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a stock HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// Routes registers read endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/stock/movements", h.movements)
	r.Get("/stock/alerts", h.alerts)
}

// AdminRoutes registers movement endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/stock/movements", h.move)
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	m, err := h.service.Move(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, ErrUntracked):
			httpx.Problem(w, http.StatusUnprocessableEntity, "Untracked Product", err.Error())
		case errors.Is(err, ErrNegativeStock):
			httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
		default:
			h.logger.Error("stock movement", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	var productID int64
	if v := r.URL.Query().Get("product_id"); v != "" {
		productID, _ = strconv.ParseInt(v, 10, 64)
	}
	var limit int
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	movements, err := h.service.Movements(r.Context(), productID, limit)
	if err != nil {
		h.logger.Error("list movements", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.Alerts(r.Context())
	if err != nil {
		h.logger.Error("stock alerts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, alerts)
}
