package cashdesk

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lanch-pos/lanch-pos/internal/shared"
)

type fakeRepo struct {
	open      *Session
	movements []Movement
	cashSales decimal.Decimal
	closed    []Session
	nextID    int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{cashSales: decimal.Zero}
}

func (r *fakeRepo) Open(_ context.Context, operatorID int64, opening decimal.Decimal) (Session, error) {
	if r.open != nil {
		return Session{}, ErrSessionOpen
	}
	r.nextID++
	s := Session{
		ID:            r.nextID,
		OperatorID:    operatorID,
		Status:        SessionOpen,
		OpeningAmount: opening,
		Expected:      opening,
		OpenedAt:      time.Now(),
	}
	r.open = &s
	return s, nil
}

func (r *fakeRepo) totals() (withdrawals, topUps decimal.Decimal) {
	withdrawals, topUps = decimal.Zero, decimal.Zero
	for _, m := range r.movements {
		switch m.Type {
		case MovementWithdrawal:
			withdrawals = withdrawals.Add(m.Amount)
		case MovementTopUp:
			topUps = topUps.Add(m.Amount)
		}
	}
	return withdrawals, topUps
}

func (r *fakeRepo) Current(context.Context) (Session, error) {
	if r.open == nil {
		return Session{}, ErrNoOpenSession
	}
	s := *r.open
	s.CashSales = r.cashSales
	s.Withdrawals, s.TopUps = r.totals()
	s.Expected = s.OpeningAmount.Add(s.CashSales).Add(s.TopUps).Sub(s.Withdrawals)
	return s, nil
}

func (r *fakeRepo) AddMovement(_ context.Context, movementType MovementType, amount decimal.Decimal, reason string, actorID int64) (Movement, error) {
	if r.open == nil {
		return Movement{}, ErrNoOpenSession
	}
	m := Movement{
		ID:        int64(len(r.movements) + 1),
		SessionID: r.open.ID,
		Type:      movementType,
		Amount:    amount,
		Reason:    reason,
		ActorID:   actorID,
		CreatedAt: time.Now(),
	}
	r.movements = append(r.movements, m)
	return m, nil
}

func (r *fakeRepo) Close(ctx context.Context, counted decimal.Decimal) (Session, error) {
	s, err := r.Current(ctx)
	if err != nil {
		return Session{}, err
	}
	now := time.Now()
	s.Status = SessionClosed
	s.Counted = counted
	s.Difference = counted.Sub(s.Expected)
	s.ClosedAt = &now
	r.closed = append(r.closed, s)
	r.open = nil
	return s, nil
}

func (r *fakeRepo) History(context.Context, int) ([]Session, error) { return r.closed, nil }

func (r *fakeRepo) Movements(context.Context, int64) ([]Movement, error) { return r.movements, nil }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ctxWithOperator() context.Context {
	return shared.ContextWithActor(context.Background(), shared.Actor{UserID: 3, Username: "ana", Role: shared.RoleAttendant})
}

func TestOpenRejectsSecondSession(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := ctxWithOperator()

	_, err := svc.Open(ctx, dec("50.00"))
	require.NoError(t, err)

	_, err = svc.Open(ctx, dec("20.00"))
	require.ErrorIs(t, err, ErrSessionOpen)
}

func TestCloseComputesDifference(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := ctxWithOperator()

	_, err := svc.Open(ctx, dec("50.00"))
	require.NoError(t, err)

	repo.cashSales = dec("120.00")

	_, err = svc.Move(ctx, MovementTopUp, dec("30.00"), "troco")
	require.NoError(t, err)
	_, err = svc.Move(ctx, MovementWithdrawal, dec("80.00"), "deposito no cofre")
	require.NoError(t, err)

	// Expected: 50 + 120 + 30 - 80 = 120.
	session, err := svc.Close(ctx, dec("118.50"))
	require.NoError(t, err)
	require.True(t, session.Expected.Equal(dec("120.00")), "expected %s", session.Expected)
	require.True(t, session.Difference.Equal(dec("-1.50")), "difference %s", session.Difference)
	require.Equal(t, SessionClosed, session.Status)

	_, err = svc.Current(ctx)
	require.ErrorIs(t, err, ErrNoOpenSession)
}

func TestMoveValidation(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	ctx := ctxWithOperator()

	_, err := svc.Open(ctx, dec("50.00"))
	require.NoError(t, err)

	_, err = svc.Move(ctx, MovementWithdrawal, dec("0"), "x")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Move(ctx, MovementWithdrawal, dec("10.00"), "")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Move(ctx, MovementType("OUTRO"), dec("10.00"), "x")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestMoveRequiresOpenSession(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	_, err := svc.Move(ctxWithOperator(), MovementTopUp, dec("10.00"), "troco")
	require.ErrorIs(t, err, ErrNoOpenSession)
}
