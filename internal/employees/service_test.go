package employees

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/lanch-pos/lanch-pos/internal/shared"
)

type fakeRepo struct {
	byID           map[int64]Employee
	byRegistration map[string]int64
	nextID         int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[int64]Employee{}, byRegistration: map[string]int64{}}
}

func (r *fakeRepo) Search(context.Context, string, bool) ([]Employee, error) { return nil, nil }

func (r *fakeRepo) Get(_ context.Context, id int64) (Employee, error) {
	if e, ok := r.byID[id]; ok {
		return e, nil
	}
	return Employee{}, shared.ErrNotFound
}

func (r *fakeRepo) GetByRegistration(_ context.Context, registration string) (Employee, error) {
	if id, ok := r.byRegistration[registration]; ok {
		return r.byID[id], nil
	}
	return Employee{}, shared.ErrNotFound
}

func (r *fakeRepo) Create(_ context.Context, in Input) (Employee, error) {
	if _, ok := r.byRegistration[in.Registration]; ok {
		return Employee{}, shared.ErrConflict
	}
	r.nextID++
	e := Employee{
		ID:           r.nextID,
		Registration: in.Registration,
		CPF:          in.CPF,
		Name:         in.Name,
		SectorID:     in.SectorID,
		MonthlyLimit: in.MonthlyLimit,
		Active:       true,
	}
	r.byID[e.ID] = e
	r.byRegistration[e.Registration] = e.ID
	return e, nil
}

func (r *fakeRepo) Update(_ context.Context, id int64, in Input) (Employee, error) {
	e, ok := r.byID[id]
	if !ok {
		return Employee{}, shared.ErrNotFound
	}
	e.Name = in.Name
	e.MonthlyLimit = in.MonthlyLimit
	r.byID[id] = e
	return e, nil
}

func (r *fakeRepo) SetActive(_ context.Context, id int64, active bool) error {
	e, ok := r.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	e.Active = active
	r.byID[id] = e
	return nil
}

func TestValidCPF(t *testing.T) {
	require.True(t, ValidCPF("52998224725"))
	require.True(t, ValidCPF("11144477735"))
	require.False(t, ValidCPF("52998224724"), "wrong check digit")
	require.False(t, ValidCPF("11111111111"), "repeated digits")
	require.False(t, ValidCPF("5299822472"), "short")
	require.False(t, ValidCPF("5299822472a"), "non numeric")
}

func TestEnrollAppliesDefaultLimit(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, decimal.RequireFromString("100.00"))

	e, err := svc.Enroll(context.Background(), Input{
		Registration: "MAT-0001",
		CPF:          "52998224725",
		Name:         "Joana Souza",
		SectorID:     1,
	})
	require.NoError(t, err)
	require.True(t, e.MonthlyLimit.Equal(decimal.RequireFromString("100.00")))
}

func TestEnrollKeepsExplicitLimit(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, decimal.RequireFromString("100.00"))

	e, err := svc.Enroll(context.Background(), Input{
		Registration: "MAT-0002",
		CPF:          "11144477735",
		Name:         "Carlos Lima",
		SectorID:     2,
		MonthlyLimit: decimal.RequireFromString("250.00"),
	})
	require.NoError(t, err)
	require.True(t, e.MonthlyLimit.Equal(decimal.RequireFromString("250.00")))
}

func TestEnrollRejectsBadCPFAndNegativeLimit(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, decimal.RequireFromString("100.00"))
	ctx := context.Background()

	_, err := svc.Enroll(ctx, Input{Registration: "MAT-0003", CPF: "12345678900", Name: "X", SectorID: 1})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Enroll(ctx, Input{
		Registration: "MAT-0003",
		CPF:          "52998224725",
		Name:         "X",
		SectorID:     1,
		MonthlyLimit: decimal.RequireFromString("-1"),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.byID)
}
