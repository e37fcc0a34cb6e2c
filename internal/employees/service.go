package employees

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/lanch-pos/lanch-pos/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Search(ctx context.Context, query string, activeOnly bool) ([]Employee, error)
	Get(ctx context.Context, id int64) (Employee, error)
	GetByRegistration(ctx context.Context, registration string) (Employee, error)
	Create(ctx context.Context, in Input) (Employee, error)
	Update(ctx context.Context, id int64, in Input) (Employee, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service enforces enrollment rules on top of the repository.
type Service struct {
	repo         RepositoryPort
	audit        AuditPort
	defaultLimit decimal.Decimal
}

// NewService constructs Service. defaultLimit applies when enrollment omits a
// monthly limit.
func NewService(repo RepositoryPort, audit AuditPort, defaultLimit decimal.Decimal) *Service {
	return &Service{repo: repo, audit: audit, defaultLimit: defaultLimit}
}

func (s *Service) normalize(in *Input) error {
	if !ValidCPF(in.CPF) {
		return fmt.Errorf("%w: %s", shared.ErrValidation, ErrInvalidCPF)
	}
	if in.MonthlyLimit.IsZero() {
		in.MonthlyLimit = s.defaultLimit
	}
	if in.MonthlyLimit.IsNegative() {
		return fmt.Errorf("%w: monthly limit cannot be negative", shared.ErrValidation)
	}
	return nil
}

// Enroll registers a new employee.
func (s *Service) Enroll(ctx context.Context, in Input) (Employee, error) {
	if err := s.normalize(&in); err != nil {
		return Employee{}, err
	}
	e, err := s.repo.Create(ctx, in)
	if err != nil {
		return Employee{}, err
	}
	s.record(ctx, "CRIAR", e.ID, nil, map[string]any{
		"registration": e.Registration,
		"name":         e.Name,
		"monthly_limit": e.MonthlyLimit.StringFixed(2),
	})
	return e, nil
}

// Update replaces an employee's enrollment data. Limit changes take effect in
// the current open period immediately.
func (s *Service) Update(ctx context.Context, id int64, in Input) (Employee, error) {
	if err := s.normalize(&in); err != nil {
		return Employee{}, err
	}
	before, err := s.repo.Get(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	e, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return Employee{}, err
	}
	s.record(ctx, "ATUALIZAR", e.ID,
		map[string]any{"name": before.Name, "monthly_limit": before.MonthlyLimit.StringFixed(2)},
		map[string]any{"name": e.Name, "monthly_limit": e.MonthlyLimit.StringFixed(2)})
	return e, nil
}

// SetActive toggles an employee.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	s.record(ctx, "ATIVAR_DESATIVAR", id, nil, map[string]any{"active": active})
	return nil
}

// Search lists employees matching the query.
func (s *Service) Search(ctx context.Context, query string, activeOnly bool) ([]Employee, error) {
	return s.repo.Search(ctx, query, activeOnly)
}

// Get fetches one employee by id.
func (s *Service) Get(ctx context.Context, id int64) (Employee, error) {
	return s.repo.Get(ctx, id)
}

// GetByRegistration fetches one employee by badge number.
func (s *Service) GetByRegistration(ctx context.Context, registration string) (Employee, error) {
	return s.repo.GetByRegistration(ctx, registration)
}

func (s *Service) record(ctx context.Context, action string, id int64, before, after map[string]any) {
	if s.audit == nil {
		return
	}
	actor, _ := shared.ActorFromContext(ctx)
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   "employees",
		EntityID: strconv.FormatInt(id, 10),
		Before:   before,
		After:    after,
	})
}
