package billing

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func setupMock(t *testing.T) (Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)

	return repo, mock, func() { sqlxDB.Close() }
}

func TestResume_RequiresPausedState(t *testing.T) {
	repo, mock, closeFn := setupMock(t)
	defer closeFn()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE subscriptions")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.Resume(context.Background(), 5)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRenewalFailure_ReturnsNewCount(t *testing.T) {
	repo, mock, closeFn := setupMock(t)
	defer closeFn()

	nextAttempt := time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SET retry_count = retry_count + 1")).
		WithArgs(5, nextAttempt).
		WillReturnRows(sqlmock.NewRows([]string{"retry_count"}).AddRow(2))

	count, err := repo.RenewalFailure(context.Background(), 5, nextAttempt)
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestCancel_RejectsFinishedSubscription(t *testing.T) {
	repo, mock, closeFn := setupMock(t)
	defer closeFn()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE subscriptions SET status = 'cancelled'")).
		WithArgs(9).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Cancel(context.Background(), 9)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestClaimInvoice_TakesUnsettledPeriod(t *testing.T) {
	repo, mock, closeFn := setupMock(t)
	defer closeFn()

	attempted := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO invoices")).
		WithArgs(3, "2025-06-01", int64(50000)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "subscription_id", "period_key", "amount_cents", "status", "attempted_at", "created_at"}).
			AddRow(11, 3, "2025-06-01", int64(50000), InvoiceCharging, attempted, attempted))

	inv, err := repo.ClaimInvoice(context.Background(), 3, "2025-06-01", 50000)
	require.NoError(t, err)
	require.Equal(t, InvoiceCharging, inv.Status)
}

func TestClaimInvoice_SettledPeriodRefused(t *testing.T) {
	repo, mock, closeFn := setupMock(t)
	defer closeFn()

	// Paid or freshly charging: the conditional upsert updates no row.
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO invoices")).
		WithArgs(3, "2025-06-01", int64(50000)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "subscription_id", "period_key", "amount_cents", "status", "attempted_at", "created_at"}))

	_, err := repo.ClaimInvoice(context.Background(), 3, "2025-06-01", 50000)
	require.ErrorIs(t, err, ErrInvoiceSettled)
}
