package periods

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lanch-pos/lanch-pos/internal/ledger"
	"github.com/lanch-pos/lanch-pos/internal/shared"
)

type fakeRepo struct {
	periods   map[int64]Period
	snapshots map[int64][]SnapshotRow
	entries   map[int64][]ledger.PeriodEntry
	nextID    int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		periods:   map[int64]Period{},
		snapshots: map[int64][]SnapshotRow{},
		entries:   map[int64][]ledger.PeriodEntry{},
		nextID:    1,
	}
}

func (f *fakeRepo) addPeriod(year, month int, status Status) Period {
	p := Period{ID: f.nextID, Year: year, Month: month, Status: status, CreatedAt: time.Now()}
	f.periods[p.ID] = p
	f.nextID++
	return p
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) List(ctx context.Context) ([]WithTotals, error) {
	var out []WithTotals
	for _, p := range f.periods {
		out = append(out, WithTotals{Period: p})
	}
	return out, nil
}

func (f *fakeRepo) Get(ctx context.Context, id int64) (Period, error) {
	p, ok := f.periods[id]
	if !ok {
		return Period{}, fmt.Errorf("%w: period %d", shared.ErrNotFound, id)
	}
	return p, nil
}

func (f *fakeRepo) OpenPeriod(ctx context.Context) (Period, error) {
	for _, p := range f.periods {
		if p.Status == StatusOpen {
			return p, nil
		}
	}
	return Period{}, ErrNoOpenPeriod
}

func (f *fakeRepo) Latest(ctx context.Context) (Period, error) {
	var latest Period
	found := false
	for _, p := range f.periods {
		if !found || p.Year*100+p.Month > latest.Year*100+latest.Month {
			latest, found = p, true
		}
	}
	if !found {
		return Period{}, shared.ErrNotFound
	}
	return latest, nil
}

func (f *fakeRepo) GetForUpdate(ctx context.Context, id int64) (Period, error) {
	return f.Get(ctx, id)
}

func (f *fakeRepo) Snapshot(ctx context.Context, periodID int64) (int, error) {
	var rows []SnapshotRow
	for _, e := range f.entries[periodID] {
		if e.Consumed.IsPositive() {
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
	f.snapshots[periodID] = rows
	return len(rows), nil
}

func (f *fakeRepo) MarkClosed(ctx context.Context, id, closedBy int64) (Period, error) {
	p := f.periods[id]
	now := time.Now()
	p.Status = StatusClosed
	p.ClosedBy = &closedBy
	p.ClosedAt = &now
	f.periods[id] = p
	return p, nil
}

func (f *fakeRepo) InsertIfAbsent(ctx context.Context, year, month int) (Period, bool, error) {
	for _, p := range f.periods {
		if p.Year == year && p.Month == month {
			return p, false, nil
		}
	}
	// Mirrors idx_periods_single_open: at most one OPEN row at a time.
	for _, p := range f.periods {
		if p.Status == StatusOpen {
			return Period{}, false, fmt.Errorf("%w: another period is still open", shared.ErrConflict)
		}
	}
	return f.addPeriod(year, month, StatusOpen), true, nil
}

func (f *fakeRepo) SnapshotRows(ctx context.Context, periodID int64) ([]SnapshotRow, error) {
	return f.snapshots[periodID], nil
}

func (f *fakeRepo) PeriodEntries(ctx context.Context, periodID int64) ([]ledger.PeriodEntry, error) {
	var out []ledger.PeriodEntry
	for _, e := range f.entries[periodID] {
		if e.Consumed.IsPositive() {
			out = append(out, e)
		}
	}
	return out, nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCloseFreezesSnapshotAndOpensSuccessor(t *testing.T) {
	repo := newFakeRepo()
	p := repo.addPeriod(2025, 3, StatusOpen)
	repo.entries[p.ID] = []ledger.PeriodEntry{
		{EmployeeID: 1, Registration: "1001", Name: "Maria Souza", Sector: "Enfermagem", CostCenter: "CC-10", Consumed: dec("84.00")},
		{EmployeeID: 2, Registration: "1002", Name: "João Lima", Sector: "Administração", CostCenter: "CC-01", Consumed: dec("12.50")},
		{EmployeeID: 3, Registration: "1003", Name: "Ana Prado", Sector: "Enfermagem", CostCenter: "CC-10", Consumed: decimal.Zero},
	}
	audit := &recordingAudit{}
	svc := NewService(repo, repo, audit)

	summary, err := svc.Close(context.Background(), p.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, summary.Period.Status)
	require.Equal(t, 2025, summary.Next.Year)
	require.Equal(t, 4, summary.Next.Month)
	require.Equal(t, StatusOpen, summary.Next.Status)

	// Zero-consumption employees are left out; rows sort by sector then name.
	require.Len(t, summary.Rows, 2)
	require.Equal(t, "João Lima", summary.Rows[0].Name)
	require.Equal(t, "Maria Souza", summary.Rows[1].Name)
	require.True(t, summary.Total.Equal(dec("96.50")))

	require.Len(t, audit.logs, 1)
	require.Equal(t, "FECHAR", audit.logs[0].Action)

	open, err := repo.OpenPeriod(context.Background())
	require.NoError(t, err)
	require.Equal(t, summary.Next.ID, open.ID)
}

func TestCloseTwiceFails(t *testing.T) {
	repo := newFakeRepo()
	p := repo.addPeriod(2025, 3, StatusOpen)
	svc := NewService(repo, repo, nil)

	_, err := svc.Close(context.Background(), p.ID, 7)
	require.NoError(t, err)

	_, err = svc.Close(context.Background(), p.ID, 7)
	require.ErrorIs(t, err, ErrAlreadyClosed)
}

func TestCloseDecemberRollsIntoJanuary(t *testing.T) {
	repo := newFakeRepo()
	p := repo.addPeriod(2024, 12, StatusOpen)
	svc := NewService(repo, repo, nil)

	summary, err := svc.Close(context.Background(), p.ID, 7)
	require.NoError(t, err)
	require.Equal(t, 2025, summary.Next.Year)
	require.Equal(t, 1, summary.Next.Month)
}

func TestConsumptionReadsSnapshotWhenClosed(t *testing.T) {
	repo := newFakeRepo()
	p := repo.addPeriod(2025, 2, StatusClosed)
	repo.snapshots[p.ID] = []SnapshotRow{
		{EmployeeID: 1, Registration: "1001", Name: "Maria Souza", Sector: "Enfermagem", CostCenter: "CC-10", Consumed: dec("55.00")},
	}
	// Live entries diverge from the snapshot and must be ignored.
	repo.entries[p.ID] = []ledger.PeriodEntry{
		{EmployeeID: 1, Registration: "1001", Name: "Maria Souza", Sector: "Enfermagem", CostCenter: "CC-10", Consumed: dec("99.00")},
	}
	svc := NewService(repo, repo, nil)

	_, rows, err := svc.Consumption(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].Consumed.Equal(dec("55.00")))
}

func TestConsumptionReadsLiveLedgerWhenOpen(t *testing.T) {
	repo := newFakeRepo()
	p := repo.addPeriod(2025, 3, StatusOpen)
	repo.entries[p.ID] = []ledger.PeriodEntry{
		{EmployeeID: 2, Registration: "1002", Name: "João Lima", Sector: "Administração", CostCenter: "CC-01", Consumed: dec("20.00")},
	}
	svc := NewService(repo, repo, nil)

	_, rows, err := svc.Consumption(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "João Lima", rows[0].Name)
}

// latestErrRepo simulates a repository that cannot resolve the latest period,
// forcing CreateNext to fall back to the wall clock.
type latestErrRepo struct {
	*fakeRepo
}

func (r latestErrRepo) Latest(ctx context.Context) (Period, error) {
	return Period{}, shared.ErrNotFound
}

func TestCreateNextRejectsDuplicate(t *testing.T) {
	fake := newFakeRepo()
	fake.addPeriod(2025, 3, StatusOpen)
	svc := NewService(latestErrRepo{fake}, fake, nil)
	svc.WithNow(func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) })

	_, err := svc.CreateNext(context.Background(), 7)
	require.True(t, errors.Is(err, shared.ErrConflict))
}

func TestCreateNextFollowsLatest(t *testing.T) {
	repo := newFakeRepo()
	repo.addPeriod(2025, 3, StatusClosed)
	audit := &recordingAudit{}
	svc := NewService(repo, repo, audit)

	created, err := svc.CreateNext(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 2025, created.Year)
	require.Equal(t, 4, created.Month)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "CRIAR", audit.logs[0].Action)
}

func TestCreateNextConflictsWhileAnotherPeriodIsOpen(t *testing.T) {
	repo := newFakeRepo()
	repo.addPeriod(2025, 3, StatusOpen)
	svc := NewService(repo, repo, nil)

	_, err := svc.CreateNext(context.Background(), 7)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestOpenPeriodIDFailsWithoutOpenPeriod(t *testing.T) {
	repo := newFakeRepo()
	repo.addPeriod(2025, 2, StatusClosed)
	svc := NewService(repo, repo, nil)

	_, err := svc.OpenPeriodID(context.Background())
	require.ErrorIs(t, err, ErrNoOpenPeriod)
}
