package periods

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/lanch-pos/lanch-pos/internal/shared"
)

func beginTxRepo(t *testing.T) (pgxmock.PgxPoolIface, *txRepo) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	return mock, &txRepo{tx: tx}
}

func TestInsertIfAbsentCreatesPeriod(t *testing.T) {
	mock, repo := beginTxRepo(t)

	now := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO periods`).
		WithArgs(2025, 4).
		WillReturnRows(pgxmock.NewRows([]string{"id", "year", "month", "status", "closed_by", "closed_at", "created_at"}).
			AddRow(int64(2), 2025, 4, StatusOpen, nil, nil, now))

	p, inserted, err := repo.InsertIfAbsent(context.Background(), 2025, 4)
	require.NoError(t, err)
	require.True(t, inserted)
	require.Equal(t, int64(2), p.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertIfAbsentConflictsWhileAnotherPeriodIsOpen(t *testing.T) {
	mock, repo := beginTxRepo(t)

	// idx_periods_single_open rejects a second OPEN row with 23505.
	mock.ExpectQuery(`INSERT INTO periods`).
		WithArgs(2025, 4).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_periods_single_open"})

	_, _, err := repo.InsertIfAbsent(context.Background(), 2025, 4)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}
