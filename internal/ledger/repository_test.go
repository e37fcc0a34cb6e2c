package ledger

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/lanch-pos/lanch-pos/internal/shared"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func beginTx(t *testing.T) (pgxmock.PgxPoolIface, TxLedger) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	return mock, NewTxLedger(tx)
}

func TestReserveAndCommitAddsToRunningTotal(t *testing.T) {
	mock, led := beginTx(t)

	mock.ExpectQuery(`SELECT status FROM periods`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("OPEN"))
	mock.ExpectExec(`INSERT INTO ledger_entries`).
		WithArgs(int64(1), int64(3)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT le.consumed, e.monthly_limit`).
		WithArgs(int64(1), int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"consumed", "monthly_limit"}).AddRow(dec("10.00"), dec("100.00")))
	mock.ExpectExec(`UPDATE ledger_entries SET consumed`).
		WithArgs(int64(1), int64(3), dec("14.50")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := led.ReserveAndCommit(context.Background(), 1, 3, dec("4.50"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveAndCommitAllowsExactLimit(t *testing.T) {
	mock, led := beginTx(t)

	mock.ExpectQuery(`SELECT status FROM periods`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("OPEN"))
	mock.ExpectExec(`INSERT INTO ledger_entries`).
		WithArgs(int64(1), int64(3)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT le.consumed, e.monthly_limit`).
		WithArgs(int64(1), int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"consumed", "monthly_limit"}).AddRow(dec("95.50"), dec("100.00")))
	mock.ExpectExec(`UPDATE ledger_entries SET consumed`).
		WithArgs(int64(1), int64(3), dec("100.00")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := led.ReserveAndCommit(context.Background(), 1, 3, dec("4.50"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveAndCommitRejectsOverspend(t *testing.T) {
	mock, led := beginTx(t)

	mock.ExpectQuery(`SELECT status FROM periods`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("OPEN"))
	mock.ExpectExec(`INSERT INTO ledger_entries`).
		WithArgs(int64(1), int64(3)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT le.consumed, e.monthly_limit`).
		WithArgs(int64(1), int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"consumed", "monthly_limit"}).AddRow(dec("98.00"), dec("100.00")))

	err := led.ReserveAndCommit(context.Background(), 1, 3, dec("4.50"))
	require.ErrorIs(t, err, ErrInsufficientAllowance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveAndCommitRejectsClosedPeriod(t *testing.T) {
	mock, led := beginTx(t)

	mock.ExpectQuery(`SELECT status FROM periods`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("CLOSED"))

	err := led.ReserveAndCommit(context.Background(), 1, 3, dec("4.50"))
	require.ErrorIs(t, err, ErrPeriodClosed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReverseFloorsAtZero(t *testing.T) {
	mock, led := beginTx(t)

	mock.ExpectQuery(`SELECT status FROM periods`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("OPEN"))
	mock.ExpectQuery(`SELECT consumed FROM ledger_entries`).
		WithArgs(int64(1), int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"consumed"}).AddRow(dec("5.00")))
	mock.ExpectExec(`UPDATE ledger_entries SET consumed`).
		WithArgs(int64(1), int64(3), decimal.Zero).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := led.Reverse(context.Background(), 1, 3, dec("8.00"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReverseRejectsClosedPeriod(t *testing.T) {
	mock, led := beginTx(t)

	mock.ExpectQuery(`SELECT status FROM periods`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("CLOSED"))

	err := led.Reverse(context.Background(), 1, 3, dec("8.00"))
	require.ErrorIs(t, err, ErrPeriodClosed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReverseMissingEntry(t *testing.T) {
	mock, led := beginTx(t)

	mock.ExpectQuery(`SELECT status FROM periods`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("OPEN"))
	mock.ExpectQuery(`SELECT consumed FROM ledger_entries`).
		WithArgs(int64(1), int64(3)).
		WillReturnError(pgx.ErrNoRows)

	err := led.Reverse(context.Background(), 1, 3, dec("8.00"))
	require.ErrorIs(t, err, ErrEntryNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementLocksPeriodRow(t *testing.T) {
	mock, led := beginTx(t)

	// The status read must take a share lock so it conflicts with a
	// concurrent close holding the period row FOR UPDATE.
	lockedRead := `SELECT status FROM periods WHERE id = \$1 FOR SHARE`

	mock.ExpectQuery(lockedRead).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("OPEN"))
	mock.ExpectExec(`INSERT INTO ledger_entries`).
		WithArgs(int64(1), int64(3)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT le.consumed, e.monthly_limit`).
		WithArgs(int64(1), int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"consumed", "monthly_limit"}).AddRow(dec("0.00"), dec("100.00")))
	mock.ExpectExec(`UPDATE ledger_entries SET consumed`).
		WithArgs(int64(1), int64(3), dec("4.50")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, led.ReserveAndCommit(context.Background(), 1, 3, dec("4.50")))

	mock.ExpectQuery(lockedRead).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("OPEN"))
	mock.ExpectQuery(`SELECT consumed FROM ledger_entries`).
		WithArgs(int64(1), int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"consumed"}).AddRow(dec("4.50")))
	mock.ExpectExec(`UPDATE ledger_entries SET consumed`).
		WithArgs(int64(1), int64(3), dec("2.50")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, led.Reverse(context.Background(), 1, 3, dec("2.00")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlementSurfacesBusyOnSerializationFailure(t *testing.T) {
	mock, led := beginTx(t)

	mock.ExpectQuery(`SELECT status FROM periods`).
		WithArgs(int64(3)).
		WillReturnError(&pgconn.PgError{Code: "40001"})

	err := led.ReserveAndCommit(context.Background(), 1, 3, dec("4.50"))
	require.ErrorIs(t, err, shared.ErrBusy)
	require.NoError(t, mock.ExpectationsWereMet())
}
