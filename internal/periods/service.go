package periods

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/lanch-pos/lanch-pos/internal/ledger"
	"github.com/lanch-pos/lanch-pos/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context) ([]WithTotals, error)
	Get(ctx context.Context, id int64) (Period, error)
	OpenPeriod(ctx context.Context) (Period, error)
	Latest(ctx context.Context) (Period, error)
	SnapshotRows(ctx context.Context, periodID int64) ([]SnapshotRow, error)
}

// ConsumptionPort reads live ledger entries for open-period listings.
type ConsumptionPort interface {
	PeriodEntries(ctx context.Context, periodID int64) ([]ledger.PeriodEntry, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the period lifecycle and the monthly close.
type Service struct {
	repo        RepositoryPort
	consumption ConsumptionPort
	audit       AuditPort
	now         func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo RepositoryPort, consumption ConsumptionPort, audit AuditPort) *Service {
	return &Service{
		repo:        repo,
		consumption: consumption,
		audit:       audit,
		now:         time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns all periods newest first with consumption aggregates.
func (s *Service) List(ctx context.Context) ([]WithTotals, error) {
	return s.repo.List(ctx)
}

// Get returns a single period by id.
func (s *Service) Get(ctx context.Context, id int64) (Period, error) {
	return s.repo.Get(ctx, id)
}

// Current returns the OPEN period.
func (s *Service) Current(ctx context.Context) (Period, error) {
	return s.repo.OpenPeriod(ctx)
}

// OpenPeriodID implements the resolver consumed by the ledger and orders
// modules.
func (s *Service) OpenPeriodID(ctx context.Context) (int64, error) {
	p, err := s.repo.OpenPeriod(ctx)
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

// Consumption lists a period's per-employee totals, sorted by sector then
// employee name. For a CLOSED period the frozen snapshot is returned.
func (s *Service) Consumption(ctx context.Context, periodID int64) (Period, []SnapshotRow, error) {
	period, err := s.repo.Get(ctx, periodID)
	if err != nil {
		return Period{}, nil, err
	}
	rows, err := s.exportRows(ctx, period)
	if err != nil {
		return Period{}, nil, err
	}
	return period, rows, nil
}

// Close finalises a period: it freezes the ledger into a snapshot, marks the
// period CLOSED and atomically opens the calendar successor, so there is
// always exactly one OPEN period for new orders to attach to.
func (s *Service) Close(ctx context.Context, periodID, closedBy int64) (ClosedSummary, error) {
	var summary ClosedSummary
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.GetForUpdate(ctx, periodID)
		if err != nil {
			return err
		}
		if period.Status != StatusOpen {
			return ErrAlreadyClosed
		}
		if _, err := tx.Snapshot(ctx, period.ID); err != nil {
			return err
		}
		closed, err := tx.MarkClosed(ctx, period.ID, closedBy)
		if err != nil {
			return err
		}
		year, month := closed.Next()
		next, _, err := tx.InsertIfAbsent(ctx, year, month)
		if err != nil {
			return err
		}
		rows, err := tx.SnapshotRows(ctx, period.ID)
		if err != nil {
			return err
		}
		sortRows(rows)
		summary = ClosedSummary{Period: closed, Next: next, Rows: rows, Total: rowsTotal(rows)}
		return nil
	})
	if err != nil {
		return ClosedSummary{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  closedBy,
			Action:   "FECHAR",
			Entity:   "periods",
			EntityID: strconv.FormatInt(summary.Period.ID, 10),
			Before:   map[string]any{"status": StatusOpen},
			After:    map[string]any{"status": StatusClosed, "rows": len(summary.Rows), "total": summary.Total},
		})
	}
	return summary, nil
}

// CreateNext opens the calendar successor of the latest period. Duplicate
// creation surfaces as a conflict.
func (s *Service) CreateNext(ctx context.Context, actorID int64) (Period, error) {
	var created Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		year, month := s.now().Year(), int(s.now().Month())
		if latest, err := s.repo.Latest(ctx); err == nil {
			year, month = latest.Next()
		}
		p, inserted, err := tx.InsertIfAbsent(ctx, year, month)
		if err != nil {
			return err
		}
		if !inserted {
			return shared.ErrConflict
		}
		created = p
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "CRIAR",
			Entity:   "periods",
			EntityID: strconv.FormatInt(created.ID, 10),
			After:    map[string]any{"year": created.Year, "month": created.Month},
		})
	}
	return created, nil
}

// ExportRows returns the rows for payroll export, sorted by sector then name.
func (s *Service) ExportRows(ctx context.Context, periodID int64) (Period, []SnapshotRow, error) {
	return s.Consumption(ctx, periodID)
}

func (s *Service) exportRows(ctx context.Context, period Period) ([]SnapshotRow, error) {
	var rows []SnapshotRow
	if period.Status == StatusClosed {
		snap, err := s.repo.SnapshotRows(ctx, period.ID)
		if err != nil {
			return nil, err
		}
		rows = snap
	} else {
		entries, err := s.consumption.PeriodEntries(ctx, period.ID)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			rows = append(rows, SnapshotRow{
				EmployeeID:   e.EmployeeID,
				Registration: e.Registration,
				Name:         e.Name,
				Sector:       e.Sector,
				CostCenter:   e.CostCenter,
				Consumed:     e.Consumed,
			})
		}
	}
	sortRows(rows)
	return rows, nil
}

// sortRows orders export rows by sector then employee name using pt-BR
// collation, so exports are reproducible and accent-correct.
func sortRows(rows []SnapshotRow) {
	coll := collate.New(language.BrazilianPortuguese)
	sort.SliceStable(rows, func(i, j int) bool {
		if c := coll.CompareString(rows[i].Sector, rows[j].Sector); c != 0 {
			return c < 0
		}
		return coll.CompareString(rows[i].Name, rows[j].Name) < 0
	})
}

func rowsTotal(rows []SnapshotRow) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Consumed)
	}
	return total
}
