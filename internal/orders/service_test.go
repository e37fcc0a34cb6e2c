package orders

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lanch-pos/lanch-pos/internal/ledger"
	"github.com/lanch-pos/lanch-pos/internal/shared"
)

type fakeLedger struct {
	limits   map[int64]decimal.Decimal
	consumed map[string]decimal.Decimal
	closed   map[int64]bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		limits:   map[int64]decimal.Decimal{},
		consumed: map[string]decimal.Decimal{},
		closed:   map[int64]bool{},
	}
}

func ledgerKey(employeeID, periodID int64) string {
	return fmt.Sprintf("%d/%d", employeeID, periodID)
}

func (l *fakeLedger) ReserveAndCommit(_ context.Context, employeeID, periodID int64, amount decimal.Decimal) error {
	if l.closed[periodID] {
		return ledger.ErrPeriodClosed
	}
	key := ledgerKey(employeeID, periodID)
	total := l.consumed[key].Add(amount)
	if total.GreaterThan(l.limits[employeeID]) {
		return ledger.ErrInsufficientAllowance
	}
	l.consumed[key] = total
	return nil
}

func (l *fakeLedger) Reverse(_ context.Context, employeeID, periodID int64, amount decimal.Decimal) error {
	if l.closed[periodID] {
		return ledger.ErrPeriodClosed
	}
	key := ledgerKey(employeeID, periodID)
	next := l.consumed[key].Sub(amount)
	if next.IsNegative() {
		next = decimal.Zero
	}
	l.consumed[key] = next
	return nil
}

type fakeRepo struct {
	products       map[int64]*Product
	employees      map[int64]Employee
	byRegistration map[string]Employee
	openPeriod     int64
	ledger         *fakeLedger
	orders         map[int64]*Order
	nextID         int64
	conflictsLeft  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		products:       map[int64]*Product{},
		employees:      map[int64]Employee{},
		byRegistration: map[string]Employee{},
		openPeriod:     1,
		ledger:         newFakeLedger(),
		orders:         map[int64]*Order{},
	}
}

type snapshot struct {
	stock    map[int64]int
	consumed map[string]decimal.Decimal
	orders   map[int64]Order
	nextID   int64
}

func (r *fakeRepo) snapshot() snapshot {
	s := snapshot{
		stock:    map[int64]int{},
		consumed: map[string]decimal.Decimal{},
		orders:   map[int64]Order{},
		nextID:   r.nextID,
	}
	for id, p := range r.products {
		s.stock[id] = p.Stock
	}
	for k, v := range r.ledger.consumed {
		s.consumed[k] = v
	}
	for id, o := range r.orders {
		s.orders[id] = *o
	}
	return s
}

func (r *fakeRepo) restore(s snapshot) {
	for id, stock := range s.stock {
		r.products[id].Stock = stock
	}
	r.ledger.consumed = s.consumed
	r.orders = map[int64]*Order{}
	for id := range s.orders {
		o := s.orders[id]
		r.orders[id] = &o
	}
	r.nextID = s.nextID
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	s := r.snapshot()
	if err := fn(ctx, &fakeTx{repo: r}); err != nil {
		r.restore(s)
		return err
	}
	return nil
}

func (r *fakeRepo) Get(_ context.Context, id int64) (Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return Order{}, shared.ErrNotFound
	}
	return *o, nil
}

func (r *fakeRepo) List(context.Context, ListFilter) ([]Order, error) { return nil, nil }
func (r *fakeRepo) Kitchen(context.Context) ([]KitchenTicket, error) { return nil, nil }
func (r *fakeRepo) Today(context.Context) (TodaySummary, error) { return TodaySummary{}, nil }

type fakeTx struct {
	repo *fakeRepo
}

func (t *fakeTx) Ledger() ledger.TxLedger { return t.repo.ledger }

func (t *fakeTx) ProductForUpdate(_ context.Context, id int64) (Product, error) {
	p, ok := t.repo.products[id]
	if !ok {
		return Product{}, shared.ErrNotFound
	}
	return *p, nil
}

func (t *fakeTx) AdjustStock(_ context.Context, productID int64, delta int) error {
	if p, ok := t.repo.products[productID]; ok && p.TrackStock {
		p.Stock += delta
	}
	return nil
}

func (t *fakeTx) EmployeeByRef(_ context.Context, id int64, registration string) (Employee, error) {
	if id != 0 {
		if e, ok := t.repo.employees[id]; ok {
			return e, nil
		}
		return Employee{}, shared.ErrNotFound
	}
	if e, ok := t.repo.byRegistration[registration]; ok {
		return e, nil
	}
	return Employee{}, shared.ErrNotFound
}

func (t *fakeTx) OpenPeriodID(context.Context) (int64, error) {
	if t.repo.openPeriod == 0 {
		return 0, shared.ErrNotFound
	}
	return t.repo.openPeriod, nil
}

func (t *fakeTx) NextNumber(_ context.Context, day string) (string, error) {
	return fmt.Sprintf("%s%04d", day, len(t.repo.orders)+1), nil
}

func (t *fakeTx) InsertOrder(_ context.Context, o *Order) error {
	if t.repo.conflictsLeft > 0 {
		t.repo.conflictsLeft--
		return fmt.Errorf("%w: order number %s", shared.ErrConflict, o.Number)
	}
	t.repo.nextID++
	o.ID = t.repo.nextID
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	stored := *o
	t.repo.orders[o.ID] = &stored
	return nil
}

func (t *fakeTx) InsertItems(_ context.Context, orderID int64, items []Item) error {
	o := t.repo.orders[orderID]
	for i := range items {
		items[i].OrderID = orderID
		items[i].ID = int64(i + 1)
	}
	o.Items = append([]Item(nil), items...)
	return nil
}

func (t *fakeTx) OrderForUpdate(_ context.Context, id int64) (Order, error) {
	o, ok := t.repo.orders[id]
	if !ok {
		return Order{}, shared.ErrNotFound
	}
	return *o, nil
}

func (t *fakeTx) SetStatus(_ context.Context, id int64, status Status) error {
	t.repo.orders[id].Status = status
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testService(repo *fakeRepo) *Service {
	svc := NewService(repo, nil, slog.New(slog.DiscardHandler))
	return svc.WithNow(func() time.Time {
		return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	})
}

func actorCtx(role string) context.Context {
	return shared.ContextWithActor(context.Background(), shared.Actor{UserID: 7, Username: "maria", Role: role})
}

func seedRepo() *fakeRepo {
	repo := newFakeRepo()
	repo.products[1] = &Product{ID: 1, Name: "Almoco Executivo", Price: dec("4.50"), TrackStock: true, Stock: 10, Active: true}
	repo.products[2] = &Product{ID: 2, Name: "Suco Natural", Price: dec("4.50"), TrackStock: false, Active: true}
	repo.employees[5] = Employee{ID: 5, Name: "Joana Souza", Active: true}
	repo.byRegistration["MAT-0042"] = repo.employees[5]
	repo.ledger.limits[5] = dec("100.00")
	return repo
}

func TestCreateStaffOrderChargesAllowance(t *testing.T) {
	repo := seedRepo()
	svc := testService(repo)

	order, err := svc.Create(actorCtx(shared.RoleAttendant), CreateInput{
		CustomerClass: ClassStaff,
		EmployeeID:    5,
		Items: []CreateItem{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
	})
	require.NoError(t, err)
	require.True(t, order.Total.Equal(dec("13.50")), "total %s", order.Total)
	require.Equal(t, PayAllowance, order.PaymentMethod)
	require.Equal(t, StatusPending, order.Status)
	require.Equal(t, "202503100001", order.Number)
	require.NotNil(t, order.PeriodID)
	require.Equal(t, int64(1), *order.PeriodID)
	require.Len(t, order.Items, 2)
	require.True(t, order.Items[0].Subtotal.Equal(dec("9.00")))

	require.Equal(t, 8, repo.products[1].Stock)
	require.True(t, repo.ledger.consumed[ledgerKey(5, 1)].Equal(dec("13.50")))
}

func TestCreateStaffOrderByRegistration(t *testing.T) {
	repo := seedRepo()
	svc := testService(repo)

	order, err := svc.Create(actorCtx(shared.RoleAttendant), CreateInput{
		CustomerClass: ClassStaff,
		Registration:  "MAT-0042",
		Items:         []CreateItem{{ProductID: 2, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, "Joana Souza", order.EmployeeName)
}

func TestCreateRollsBackOnInsufficientAllowance(t *testing.T) {
	repo := seedRepo()
	repo.ledger.consumed[ledgerKey(5, 1)] = dec("95.00")
	svc := testService(repo)

	_, err := svc.Create(actorCtx(shared.RoleAttendant), CreateInput{
		CustomerClass: ClassStaff,
		EmployeeID:    5,
		Items:         []CreateItem{{ProductID: 1, Quantity: 2}},
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientAllowance)

	// Stock decrement must not survive the failed settlement.
	require.Equal(t, 10, repo.products[1].Stock)
	require.True(t, repo.ledger.consumed[ledgerKey(5, 1)].Equal(dec("95.00")))
	require.Empty(t, repo.orders)
}

func TestCreateAllowsSpendingToExactLimit(t *testing.T) {
	repo := seedRepo()
	repo.ledger.consumed[ledgerKey(5, 1)] = dec("95.50")
	svc := testService(repo)

	order, err := svc.Create(actorCtx(shared.RoleAttendant), CreateInput{
		CustomerClass: ClassStaff,
		EmployeeID:    5,
		Items:         []CreateItem{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
	require.True(t, order.Total.Equal(dec("4.50")))
	require.True(t, repo.ledger.consumed[ledgerKey(5, 1)].Equal(dec("100.00")))
}

func TestCreateFailsWhenOutOfStock(t *testing.T) {
	repo := seedRepo()
	repo.products[1].Stock = 1
	svc := testService(repo)

	_, err := svc.Create(actorCtx(shared.RoleAttendant), CreateInput{
		CustomerClass: ClassStaff,
		EmployeeID:    5,
		Items:         []CreateItem{{ProductID: 1, Quantity: 2}},
	})
	require.ErrorIs(t, err, ErrOutOfStock)
	require.Empty(t, repo.orders)
	require.True(t, repo.ledger.consumed[ledgerKey(5, 1)].IsZero())
}

func TestCreateRejectsInactiveEmployee(t *testing.T) {
	repo := seedRepo()
	repo.employees[5] = Employee{ID: 5, Name: "Joana Souza", Active: false}
	svc := testService(repo)

	_, err := svc.Create(actorCtx(shared.RoleAttendant), CreateInput{
		CustomerClass: ClassStaff,
		EmployeeID:    5,
		Items:         []CreateItem{{ProductID: 2, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrEmployeeInactive)
	require.Empty(t, repo.orders)
}

func TestCreateVisitorRequiresDirectPayment(t *testing.T) {
	repo := seedRepo()
	svc := testService(repo)
	ctx := actorCtx(shared.RoleAttendant)

	_, err := svc.Create(ctx, CreateInput{
		CustomerClass: ClassVisitor,
		PaymentMethod: PayAllowance,
		Items:         []CreateItem{{ProductID: 2, Quantity: 1}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{
		CustomerClass: ClassVisitor,
		Items:         []CreateItem{{ProductID: 2, Quantity: 1}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	order, err := svc.Create(ctx, CreateInput{
		CustomerClass: ClassVisitor,
		PaymentMethod: PayPix,
		Items:         []CreateItem{{ProductID: 2, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Nil(t, order.EmployeeID)
	require.Nil(t, order.PeriodID)
	require.True(t, repo.ledger.consumed[ledgerKey(5, 1)].IsZero())
}

func TestCreateRetriesOnceOnNumberConflict(t *testing.T) {
	repo := seedRepo()
	repo.conflictsLeft = 1
	svc := testService(repo)

	order, err := svc.Create(actorCtx(shared.RoleAttendant), CreateInput{
		CustomerClass: ClassVisitor,
		PaymentMethod: PayCash,
		Items:         []CreateItem{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Len(t, repo.orders, 1)
	// Stock moved exactly once despite the retried transaction.
	require.Equal(t, 9, repo.products[1].Stock)
	require.Equal(t, StatusPending, order.Status)
}

func TestCreateGivesUpAfterSecondConflict(t *testing.T) {
	repo := seedRepo()
	repo.conflictsLeft = 2
	svc := testService(repo)

	_, err := svc.Create(actorCtx(shared.RoleAttendant), CreateInput{
		CustomerClass: ClassVisitor,
		PaymentMethod: PayCash,
		Items:         []CreateItem{{ProductID: 1, Quantity: 1}},
	})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Equal(t, 10, repo.products[1].Stock)
}

func TestUpdateStatusFollowsLifecycle(t *testing.T) {
	repo := seedRepo()
	svc := testService(repo)
	ctx := actorCtx(shared.RoleKitchen)

	order, err := svc.Create(actorCtx(shared.RoleAttendant), CreateInput{
		CustomerClass: ClassVisitor,
		PaymentMethod: PayCard,
		Items:         []CreateItem{{ProductID: 2, Quantity: 1}},
	})
	require.NoError(t, err)

	for _, next := range []Status{StatusPreparing, StatusReady, StatusDelivered} {
		order, err = svc.UpdateStatus(ctx, order.ID, next)
		require.NoError(t, err)
		require.Equal(t, next, order.Status)
	}

	_, err = svc.UpdateStatus(ctx, order.ID, StatusPreparing)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateStatusRejectsSkippingSteps(t *testing.T) {
	repo := seedRepo()
	svc := testService(repo)

	order, err := svc.Create(actorCtx(shared.RoleAttendant), CreateInput{
		CustomerClass: ClassVisitor,
		PaymentMethod: PayCash,
		Items:         []CreateItem{{ProductID: 2, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(actorCtx(shared.RoleKitchen), order.ID, StatusDelivered)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelRestoresStockAndAllowance(t *testing.T) {
	repo := seedRepo()
	svc := testService(repo)
	ctx := actorCtx(shared.RoleAttendant)

	order, err := svc.Create(ctx, CreateInput{
		CustomerClass: ClassStaff,
		EmployeeID:    5,
		Items:         []CreateItem{{ProductID: 1, Quantity: 3}},
	})
	require.NoError(t, err)
	require.Equal(t, 7, repo.products[1].Stock)

	cancelled, err := svc.Cancel(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Equal(t, 10, repo.products[1].Stock)
	require.True(t, repo.ledger.consumed[ledgerKey(5, 1)].IsZero())
}

func TestCancelRefusedAfterReady(t *testing.T) {
	repo := seedRepo()
	svc := testService(repo)
	ctx := actorCtx(shared.RoleAttendant)

	order, err := svc.Create(ctx, CreateInput{
		CustomerClass: ClassVisitor,
		PaymentMethod: PayPix,
		Items:         []CreateItem{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)

	kitchen := actorCtx(shared.RoleKitchen)
	_, err = svc.UpdateStatus(kitchen, order.ID, StatusPreparing)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(kitchen, order.ID, StatusReady)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, order.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, 9, repo.products[1].Stock)
}

func TestCancelRefusedWhenPeriodClosed(t *testing.T) {
	repo := seedRepo()
	svc := testService(repo)
	ctx := actorCtx(shared.RoleAttendant)

	order, err := svc.Create(ctx, CreateInput{
		CustomerClass: ClassStaff,
		EmployeeID:    5,
		Items:         []CreateItem{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)

	repo.ledger.closed[1] = true
	_, err = svc.Cancel(ctx, order.ID)
	require.ErrorIs(t, err, ledger.ErrPeriodClosed)
	require.Equal(t, StatusPending, repo.orders[order.ID].Status)
	require.Equal(t, 9, repo.products[1].Stock)
}

func TestCreateSequenceAgainstMonthlyLimit(t *testing.T) {
	repo := seedRepo()
	repo.products[3] = &Product{ID: 3, Name: "Marmita Grande", Price: dec("15.00"), Active: true}
	repo.products[4] = &Product{ID: 4, Name: "Sobremesa", Price: dec("10.00"), Active: true}
	repo.ledger.limits[5] = dec("500.00")
	repo.ledger.consumed[ledgerKey(5, 1)] = dec("480.00")
	svc := testService(repo)
	ctx := actorCtx(shared.RoleAttendant)

	_, err := svc.Create(ctx, CreateInput{
		CustomerClass: ClassStaff,
		EmployeeID:    5,
		Items:         []CreateItem{{ProductID: 3, Quantity: 1}},
	})
	require.NoError(t, err)
	require.True(t, repo.ledger.consumed[ledgerKey(5, 1)].Equal(dec("495.00")))

	_, err = svc.Create(ctx, CreateInput{
		CustomerClass: ClassStaff,
		EmployeeID:    5,
		Items:         []CreateItem{{ProductID: 4, Quantity: 1}},
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientAllowance)
	require.True(t, repo.ledger.consumed[ledgerKey(5, 1)].Equal(dec("495.00")))
}
