package cashdesk

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/lanch-pos/lanch-pos/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Open(ctx context.Context, operatorID int64, opening decimal.Decimal) (Session, error)
	Current(ctx context.Context) (Session, error)
	AddMovement(ctx context.Context, movementType MovementType, amount decimal.Decimal, reason string, actorID int64) (Movement, error)
	Close(ctx context.Context, counted decimal.Decimal) (Session, error)
	History(ctx context.Context, limit int) ([]Session, error)
	Movements(ctx context.Context, sessionID int64) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages cash desk shifts.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Open starts a shift with the given float.
func (s *Service) Open(ctx context.Context, opening decimal.Decimal) (Session, error) {
	if opening.IsNegative() {
		return Session{}, fmt.Errorf("%w: opening amount cannot be negative", shared.ErrValidation)
	}
	actor, _ := shared.ActorFromContext(ctx)
	session, err := s.repo.Open(ctx, actor.UserID, opening)
	if err != nil {
		return Session{}, err
	}
	s.record(ctx, "ABRIR_CAIXA", session.ID, nil, map[string]any{"opening": opening.StringFixed(2)})
	return session, nil
}

// Current returns the open session with running totals.
func (s *Service) Current(ctx context.Context) (Session, error) {
	return s.repo.Current(ctx)
}

// Move records a sangria or suprimento.
func (s *Service) Move(ctx context.Context, movementType MovementType, amount decimal.Decimal, reason string) (Movement, error) {
	if !amount.IsPositive() {
		return Movement{}, fmt.Errorf("%w: amount must be positive", shared.ErrValidation)
	}
	if movementType != MovementWithdrawal && movementType != MovementTopUp {
		return Movement{}, fmt.Errorf("%w: unknown movement type %q", shared.ErrValidation, movementType)
	}
	if movementType == MovementWithdrawal && reason == "" {
		return Movement{}, fmt.Errorf("%w: withdrawals require a reason", shared.ErrValidation)
	}
	actor, _ := shared.ActorFromContext(ctx)
	m, err := s.repo.AddMovement(ctx, movementType, amount, reason, actor.UserID)
	if err != nil {
		return Movement{}, err
	}
	s.record(ctx, string(movementType), m.SessionID, nil, map[string]any{
		"amount": amount.StringFixed(2),
		"reason": reason,
	})
	return m, nil
}

// Close finalizes the shift against the counted amount. The difference is
// recorded as-is; reconciliation happens off-system.
func (s *Service) Close(ctx context.Context, counted decimal.Decimal) (Session, error) {
	if counted.IsNegative() {
		return Session{}, fmt.Errorf("%w: counted amount cannot be negative", shared.ErrValidation)
	}
	session, err := s.repo.Close(ctx, counted)
	if err != nil {
		return Session{}, err
	}
	s.record(ctx, "FECHAR_CAIXA", session.ID,
		map[string]any{"expected": session.Expected.StringFixed(2)},
		map[string]any{"counted": counted.StringFixed(2), "difference": session.Difference.StringFixed(2)})
	return session, nil
}

// History lists closed sessions.
func (s *Service) History(ctx context.Context, limit int) ([]Session, error) {
	return s.repo.History(ctx, limit)
}

// Movements lists one session's manual movements.
func (s *Service) Movements(ctx context.Context, sessionID int64) ([]Movement, error) {
	return s.repo.Movements(ctx, sessionID)
}

func (s *Service) record(ctx context.Context, action string, sessionID int64, before, after map[string]any) {
	if s.audit == nil {
		return
	}
	actor, _ := shared.ActorFromContext(ctx)
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "cashdesk_sessions",
		EntityID: strconv.FormatInt(sessionID, 10),
		Before:   before,
		After:    after,
	})
}
