package cashdesk

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lanch-pos/lanch-pos/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the cash desk.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a cashdesk HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Routes registers cash desk endpoints for operators.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/cashdesk/open", h.open)
	r.Get("/cashdesk/current", h.current)
	r.Post("/cashdesk/movements", h.move)
	r.Post("/cashdesk/close", h.close)
}

// AdminRoutes registers history endpoints.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/cashdesk/history", h.history)
	r.Get("/cashdesk/{id}/movements", h.movements)
}

type openRequest struct {
	OpeningAmount decimal.Decimal `json:"opening_amount"`
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	session, err := h.service.Open(r.Context(), req.OpeningAmount)
	if err != nil {
		if errors.Is(err, ErrSessionOpen) {
			httpx.Problem(w, http.StatusConflict, "Session Open", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, session)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Current(r.Context())
	if err != nil {
		if errors.Is(err, ErrNoOpenSession) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("current session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, session)
}

type moveRequest struct {
	Type   MovementType    `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	m, err := h.service.Move(r.Context(), req.Type, req.Amount, req.Reason)
	if err != nil {
		if errors.Is(err, ErrNoOpenSession) {
			httpx.Problem(w, http.StatusConflict, "No Open Session", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

type closeRequest struct {
	CountedAmount decimal.Decimal `json:"counted_amount"`
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	session, err := h.service.Close(r.Context(), req.CountedAmount)
	if err != nil {
		if errors.Is(err, ErrNoOpenSession) {
			httpx.Problem(w, http.StatusConflict, "No Open Session", err.Error())
			return
		}
		h.logger.Error("close session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, session)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	var limit int
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	sessions, err := h.service.History(r.Context(), limit)
	if err != nil {
		h.logger.Error("session history", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessions)
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid session id")
		return
	}
	movements, err := h.service.Movements(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}
