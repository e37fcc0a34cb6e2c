package orders

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lanch-pos/lanch-pos/internal/ledger"
	"github.com/lanch-pos/lanch-pos/internal/platform/httpx"
	"github.com/lanch-pos/lanch-pos/internal/shared"
)

// IdempotencyPort guards order submissions against client retries. A second
// request carrying an already-recorded key is rejected before settlement.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Handler wires HTTP endpoints for order settlement and the kitchen queue.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	idem      IdempotencyPort
}

// NewHandler constructs an orders HTTP handler. idem may be nil, in which
// case the Idempotency-Key header is ignored.
func NewHandler(logger *slog.Logger, service *Service, idem IdempotencyPort) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), idem: idem}
}

// Routes registers order endpoints. Creation and cancellation require the
// ADMIN or ATENDENTE role; the kitchen may only advance status.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/orders", h.create)
	r.Get("/orders", h.list)
	r.Get("/orders/today", h.today)
	r.Get("/orders/kitchen", h.kitchen)
	r.Get("/orders/{id}", h.get)
	r.Patch("/orders/{id}/status", h.updateStatus)
	r.Post("/orders/{id}/cancel", h.cancel)
}

type createRequest struct {
	CustomerClass string `json:"customer_class" validate:"required,oneof=STAFF VISITOR"`
	EmployeeID    int64  `json:"employee_id"`
	Registration  string `json:"registration"`
	PaymentMethod string `json:"payment_method"`
	Note          string `json:"note"`
	Items         []struct {
		ProductID int64 `json:"product_id" validate:"required"`
		Quantity  int   `json:"quantity" validate:"required,gt=0"`
	} `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	if !actor.CanOperateOrders() {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}

	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	in := CreateInput{
		CustomerClass: CustomerClass(req.CustomerClass),
		EmployeeID:    req.EmployeeID,
		Registration:  req.Registration,
		PaymentMethod: PaymentMethod(req.PaymentMethod),
		Note:          req.Note,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, CreateItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if h.idem != nil && idemKey != "" {
		if err := h.idem.CheckAndInsert(r.Context(), idemKey, "orders"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate Request", "this order was already submitted")
				return
			}
			h.logger.Error("idempotency check", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
	}

	order, err := h.service.Create(r.Context(), in)
	if err != nil {
		if h.idem != nil && idemKey != "" {
			// Release the key so the client may retry a failed submission.
			if delErr := h.idem.Delete(r.Context(), idemKey); delErr != nil {
				h.logger.Error("idempotency release", slog.Any("error", delErr))
			}
		}
		switch {
		case errors.Is(err, ErrOutOfStock):
			httpx.Problem(w, http.StatusConflict, "Out Of Stock", err.Error())
		case errors.Is(err, ErrEmployeeInactive):
			httpx.Problem(w, http.StatusUnprocessableEntity, "Employee Inactive", err.Error())
		case errors.Is(err, ledger.ErrInsufficientAllowance):
			httpx.Problem(w, http.StatusForbidden, "Insufficient Allowance", err.Error())
		case errors.Is(err, ledger.ErrPeriodClosed):
			httpx.Problem(w, http.StatusConflict, "Period Closed", err.Error())
		default:
			h.logger.Error("create order", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := paramID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Status:        Status(r.URL.Query().Get("status")),
		CustomerClass: CustomerClass(r.URL.Query().Get("customer_class")),
	}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid from date")
			return
		}
		filter.From = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid to date")
			return
		}
		filter.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}

	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) kitchen(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.service.Kitchen(r.Context())
	if err != nil {
		h.logger.Error("kitchen queue", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tickets)
}

func (h *Handler) today(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Today(r.Context())
	if err != nil {
		h.logger.Error("today summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=PREPARING READY DELIVERED"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := paramID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.UpdateStatus(r.Context(), id, Status(req.Status))
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
			return
		}
		h.logger.Error("update order status", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	if !actor.CanOperateOrders() {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	id, err := paramID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid order id")
		return
	}
	order, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
			return
		}
		if errors.Is(err, ledger.ErrPeriodClosed) {
			httpx.Problem(w, http.StatusConflict, "Period Closed", err.Error())
			return
		}
		h.logger.Error("cancel order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func paramID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
