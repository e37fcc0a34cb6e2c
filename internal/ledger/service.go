package ledger

import (
	"context"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Balance(ctx context.Context, employeeID, periodID int64) (Balance, error)
	PeriodEntries(ctx context.Context, periodID int64) ([]PeriodEntry, error)
}

// OpenPeriodResolver resolves the currently OPEN period id. Every call hits
// the store; the open period is never cached process-wide.
type OpenPeriodResolver interface {
	OpenPeriodID(ctx context.Context) (int64, error)
}

// Service answers balance queries for operators.
type Service struct {
	repo    RepositoryPort
	periods OpenPeriodResolver
}

// NewService constructs a Service instance.
func NewService(repo RepositoryPort, periods OpenPeriodResolver) *Service {
	return &Service{repo: repo, periods: periods}
}

// Balance returns the employee's balance for the given period, or for the
// currently OPEN period when periodID is zero.
func (s *Service) Balance(ctx context.Context, employeeID, periodID int64) (Balance, error) {
	if periodID == 0 {
		id, err := s.periods.OpenPeriodID(ctx)
		if err != nil {
			return Balance{}, err
		}
		periodID = id
	}
	return s.repo.Balance(ctx, employeeID, periodID)
}

// PeriodEntries lists a period's non-zero consumption entries.
func (s *Service) PeriodEntries(ctx context.Context, periodID int64) ([]PeriodEntry, error) {
	return s.repo.PeriodEntries(ctx, periodID)
}
