package stock

import (
	"context"
	"strconv"

	"github.com/lanch-pos/lanch-pos/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Apply(ctx context.Context, in Input, actorID int64) (Movement, error)
	Movements(ctx context.Context, productID int64, limit int) ([]Movement, error)
	Alerts(ctx context.Context) ([]Alert, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service applies stock movements with their audit trail.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Move applies one movement on behalf of the acting user.
func (s *Service) Move(ctx context.Context, in Input) (Movement, error) {
	actor, _ := shared.ActorFromContext(ctx)
	m, err := s.repo.Apply(ctx, in, actor.UserID)
	if err != nil {
		return Movement{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "MOVIMENTAR_ESTOQUE",
			Entity:   "products",
			EntityID: strconv.FormatInt(m.ProductID, 10),
			Before:   map[string]any{"stock": m.Before},
			After:    map[string]any{"stock": m.After, "type": m.Type, "reason": m.Reason},
		})
	}
	return m, nil
}

// Movements lists recent movements.
func (s *Service) Movements(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	return s.repo.Movements(ctx, productID, limit)
}

// Alerts lists products needing replenishment.
func (s *Service) Alerts(ctx context.Context) ([]Alert, error) {
	return s.repo.Alerts(ctx)
}
