package periods

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lanch-pos/lanch-pos/internal/platform/httpx"
	"github.com/lanch-pos/lanch-pos/internal/shared"
)

// Handler wires HTTP endpoints for period lifecycle and payroll export.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a periods HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Routes registers period endpoints. Closing, creating and exporting periods
// require the ADMIN role, enforced by the router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/periods", h.list)
	r.Get("/periods/current", h.current)
	r.Get("/periods/{id}/consumption", h.consumption)
}

// AdminRoutes registers endpoints restricted to administrators.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/periods", h.createNext)
	r.Post("/periods/{id}/close", h.close)
	r.Get("/periods/{id}/export", h.export)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	periods, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list periods", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, periods)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	period, err := h.service.Current(r.Context())
	if err != nil {
		if errors.Is(err, ErrNoOpenPeriod) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "no open period")
			return
		}
		h.logger.Error("current period", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) consumption(w http.ResponseWriter, r *http.Request) {
	id, err := paramID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid period id")
		return
	}
	period, rows, err := h.service.Consumption(r.Context(), id)
	if err != nil {
		h.logger.Error("period consumption", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"period": period,
		"rows":   rows,
		"total":  rowsTotal(rows),
	})
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	id, err := paramID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid period id")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	summary, err := h.service.Close(r.Context(), id, actor.UserID)
	if err != nil {
		if errors.Is(err, ErrAlreadyClosed) {
			httpx.Problem(w, http.StatusConflict, "Already Closed", err.Error())
			return
		}
		h.logger.Error("close period", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) createNext(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	period, err := h.service.CreateNext(r.Context(), actor.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrConflict) {
			httpx.Problem(w, http.StatusConflict, "Conflict", "period already exists")
			return
		}
		h.logger.Error("create period", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, period)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	id, err := paramID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid period id")
		return
	}
	period, rows, err := h.service.ExportRows(r.Context(), id)
	if err != nil {
		h.logger.Error("export period", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	filename := fmt.Sprintf("desconto_folha_%02d_%d", period.Month, period.Year)
	switch format := r.URL.Query().Get("format"); format {
	case "", "csv":
		data, err := ExportCSV(period, rows)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".csv"))
		_, _ = w.Write(data)
	case "xlsx", "excel":
		data, err := ExportXLSX(period, rows)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".xlsx"))
		_, _ = w.Write(data)
	default:
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid format (use csv or xlsx)")
	}
}

func paramID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
