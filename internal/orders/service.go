package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lanch-pos/lanch-pos/internal/ledger"
	"github.com/lanch-pos/lanch-pos/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, error)
	Kitchen(ctx context.Context) ([]KitchenTicket, error)
	Today(ctx context.Context) (TodaySummary, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort abstracts the settlement counters.
type MetricsPort interface {
	OrderSettled(class, method string)
	AllowanceDenied()
}

// Service coordinates order settlement and lifecycle.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	metrics MetricsPort
	log     *slog.Logger
	now     func() time.Time
}

// NewService constructs Service.
func NewService(repo RepositoryPort, audit AuditPort, log *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, log: log, now: time.Now}
}

// WithMetrics attaches settlement counters.
func (s *Service) WithMetrics(metrics MetricsPort) *Service {
	s.metrics = metrics
	return s
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create settles a new order in a single transaction: it locks the products,
// verifies and decrements stock, charges the staff allowance when applicable,
// and persists the order with price snapshots. Any failure rolls the whole
// settlement back. A duplicate order number from two concurrent carts is
// retried once with a fresh sequence.
func (s *Service) Create(ctx context.Context, in CreateInput) (Order, error) {
	if err := s.validate(in); err != nil {
		return Order{}, err
	}

	order, err := s.create(ctx, in)
	if errors.Is(err, shared.ErrConflict) {
		order, err = s.create(ctx, in)
	}
	if err != nil {
		if s.metrics != nil && errors.Is(err, ledger.ErrInsufficientAllowance) {
			s.metrics.AllowanceDenied()
		}
		return Order{}, err
	}
	if s.metrics != nil {
		s.metrics.OrderSettled(string(order.CustomerClass), string(order.PaymentMethod))
	}

	actor, _ := shared.ActorFromContext(ctx)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "CRIAR",
			Entity:   "orders",
			EntityID: strconv.FormatInt(order.ID, 10),
			After: map[string]any{
				"number":         order.Number,
				"customer_class": order.CustomerClass,
				"payment_method": order.PaymentMethod,
				"total":          order.Total.StringFixed(2),
			},
		})
	}
	s.log.InfoContext(ctx, "order created",
		slog.String("number", order.Number),
		slog.String("class", string(order.CustomerClass)),
		slog.String("total", order.Total.StringFixed(2)))
	return order, nil
}

func (s *Service) validate(in CreateInput) error {
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: order needs at least one item", shared.ErrValidation)
	}
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
		}
	}
	switch in.CustomerClass {
	case ClassStaff:
		if in.EmployeeID == 0 && in.Registration == "" {
			return fmt.Errorf("%w: staff order needs an employee", shared.ErrValidation)
		}
		if in.PaymentMethod != "" && in.PaymentMethod != PayAllowance {
			return fmt.Errorf("%w: staff orders settle against the allowance", shared.ErrValidation)
		}
	case ClassVisitor:
		switch in.PaymentMethod {
		case PayPix, PayCard, PayCash:
		case PayAllowance:
			return fmt.Errorf("%w: visitors cannot use the allowance", shared.ErrValidation)
		default:
			return fmt.Errorf("%w: payment method required", shared.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown customer class %q", shared.ErrValidation, in.CustomerClass)
	}
	return nil
}

func (s *Service) create(ctx context.Context, in CreateInput) (Order, error) {
	actor, _ := shared.ActorFromContext(ctx)
	var order Order

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		total := decimal.Zero
		items := make([]Item, 0, len(in.Items))
		for _, req := range in.Items {
			p, err := tx.ProductForUpdate(ctx, req.ProductID)
			if err != nil {
				return err
			}
			if !p.Active {
				return fmt.Errorf("%w: product %q is inactive", shared.ErrValidation, p.Name)
			}
			if p.TrackStock {
				if p.Stock < req.Quantity {
					return fmt.Errorf("%w: %q has %d left", ErrOutOfStock, p.Name, p.Stock)
				}
				if err := tx.AdjustStock(ctx, p.ID, -req.Quantity); err != nil {
					return err
				}
			}
			subtotal := p.Price.Mul(decimal.NewFromInt(int64(req.Quantity)))
			total = total.Add(subtotal)
			items = append(items, Item{
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    req.Quantity,
				UnitPrice:   p.Price,
				Subtotal:    subtotal,
			})
		}

		order = Order{
			CustomerClass: in.CustomerClass,
			OperatorID:    actor.UserID,
			Total:         total,
			Status:        StatusPending,
			PaymentMethod: in.PaymentMethod,
			Note:          in.Note,
		}

		if in.CustomerClass == ClassStaff {
			emp, err := tx.EmployeeByRef(ctx, in.EmployeeID, in.Registration)
			if err != nil {
				return err
			}
			if !emp.Active {
				return fmt.Errorf("%w: %s", ErrEmployeeInactive, emp.Name)
			}
			periodID, err := tx.OpenPeriodID(ctx)
			if err != nil {
				return err
			}
			if err := tx.Ledger().ReserveAndCommit(ctx, emp.ID, periodID, total); err != nil {
				return err
			}
			order.EmployeeID = &emp.ID
			order.EmployeeName = emp.Name
			order.PeriodID = &periodID
			order.PaymentMethod = PayAllowance
		}

		number, err := tx.NextNumber(ctx, s.now().Format("20060102"))
		if err != nil {
			return err
		}
		order.Number = number

		if err := tx.InsertOrder(ctx, &order); err != nil {
			return err
		}
		if err := tx.InsertItems(ctx, order.ID, items); err != nil {
			return err
		}
		order.Items = items
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// UpdateStatus advances an order along the kitchen lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, id int64, to Status) (Order, error) {
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		o, err := tx.OrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
		}
		if err := tx.SetStatus(ctx, id, to); err != nil {
			return err
		}
		o.Status = to
		order = o
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	actor, _ := shared.ActorFromContext(ctx)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "ATUALIZAR_STATUS",
			Entity:   "orders",
			EntityID: strconv.FormatInt(id, 10),
			After:    map[string]any{"status": to},
		})
	}
	return order, nil
}

// Cancel voids an order that has not yet been prepared past the point of no
// return. It restores tracked stock and reverses the allowance charge in the
// same transaction. Once the order's period is closed the payroll amount is
// final and cancellation is refused.
func (s *Service) Cancel(ctx context.Context, id int64) (Order, error) {
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		o, err := tx.OrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if o.Status != StatusPending && o.Status != StatusPreparing {
			return fmt.Errorf("%w: cannot cancel %s order", ErrInvalidTransition, o.Status)
		}
		if o.CustomerClass == ClassStaff && o.EmployeeID != nil && o.PeriodID != nil {
			if err := tx.Ledger().Reverse(ctx, *o.EmployeeID, *o.PeriodID, o.Total); err != nil {
				return err
			}
		}
		for _, it := range o.Items {
			if err := tx.AdjustStock(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		if err := tx.SetStatus(ctx, id, StatusCancelled); err != nil {
			return err
		}
		o.Status = StatusCancelled
		order = o
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	actor, _ := shared.ActorFromContext(ctx)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "CANCELAR",
			Entity:   "orders",
			EntityID: strconv.FormatInt(id, 10),
			Before:   map[string]any{"total": order.Total.StringFixed(2)},
			After:    map[string]any{"status": StatusCancelled},
		})
	}
	s.log.InfoContext(ctx, "order cancelled", slog.String("number", order.Number))
	return order, nil
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.repo.Get(ctx, id)
}

// List returns orders matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	return s.repo.List(ctx, filter)
}

// Kitchen returns the active kitchen queue.
func (s *Service) Kitchen(ctx context.Context) ([]KitchenTicket, error) {
	return s.repo.Kitchen(ctx)
}

// Today returns the day's dashboard summary.
func (s *Service) Today(ctx context.Context) (TodaySummary, error) {
	return s.repo.Today(ctx)
}
