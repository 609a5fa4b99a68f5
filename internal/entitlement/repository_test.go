package entitlement

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

func grantRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "kind", "purpose", "total", "used",
		"start_date", "expire_date", "status", "transaction_ref",
		"frozen_until", "created_at", "updated_at",
	})
}

func addGrant(rows *sqlmock.Rows, id int, kind string, total interface{}, used int, status string, expire interface{}) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, 1, kind, "class", total, used,
		now.Add(-24*time.Hour), expire, status, "", nil, now, now)
}

func TestDebit_Succeeds(t *testing.T) {
	repo, mock, closeFn := setupMock(t)
	defer closeFn()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE entitlement_grants")).
		WithArgs(5, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Debit(context.Background(), 5, 1))
}

func TestDebit_InsufficientBalance(t *testing.T) {
	repo, mock, closeFn := setupMock(t)
	defer closeFn()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE entitlement_grants")).
		WithArgs(5, 1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	// Grant exists, active and in-window, but fully spent.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs(5).
		WillReturnRows(addGrant(grantRows(), 5, KindClassPass, 10, 10, StatusActive, time.Now().Add(48*time.Hour)))

	err := repo.Debit(context.Background(), 5, 1)
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestDebit_ExpiredGrant(t *testing.T) {
	repo, mock, closeFn := setupMock(t)
	defer closeFn()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE entitlement_grants")).
		WithArgs(5, 1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs(5).
		WillReturnRows(addGrant(grantRows(), 5, KindClassPass, 10, 2, StatusExpired, time.Now().Add(-time.Hour)))

	err := repo.Debit(context.Background(), 5, 1)
	require.ErrorIs(t, err, ErrGrantExpired)
}

func TestDebit_GrantNotFound(t *testing.T) {
	repo, mock, closeFn := setupMock(t)
	defer closeFn()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE entitlement_grants")).
		WithArgs(99, 1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs(99).
		WillReturnRows(grantRows())

	err := repo.Debit(context.Background(), 99, 1)
	require.ErrorIs(t, err, ErrGrantNotFound)
}

func TestCredit_FloorsAtZero(t *testing.T) {
	repo, mock, closeFn := setupMock(t)
	defer closeFn()

	mock.ExpectExec(regexp.QuoteMeta("SET used = GREATEST(used - $2, 0)")).
		WithArgs(5, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Credit(context.Background(), 5, 3))
}

func TestResolve_OrdersMembershipFirst(t *testing.T) {
	repo, mock, closeFn := setupMock(t)
	defer closeFn()

	rows := grantRows()
	rows = addGrant(rows, 2, KindMembership, nil, 0, StatusActive, time.Now().Add(30*24*time.Hour))
	rows = addGrant(rows, 1, KindClassPass, 10, 4, StatusActive, time.Now().Add(7*24*time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY CASE WHEN kind = 'membership' THEN 0 ELSE 1 END")).
		WithArgs(1, PurposeClass).
		WillReturnRows(rows)

	grants, err := repo.Resolve(context.Background(), 1, PurposeClass)
	require.NoError(t, err)
	require.Len(t, grants, 2)
	require.Equal(t, KindMembership, grants[0].Kind)
	require.Nil(t, grants[0].Total)
	require.Equal(t, KindClassPass, grants[1].Kind)
}

func TestFreeze_RequiresActiveGrant(t *testing.T) {
	repo, mock, closeFn := setupMock(t)
	defer closeFn()

	until := time.Now().Add(14 * 24 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("SET status = 'frozen'")).
		WithArgs(5, until).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Freeze(context.Background(), 5, until, "vacation")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestExpireLapsed(t *testing.T) {
	repo, mock, closeFn := setupMock(t)
	defer closeFn()

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'expired'")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	count, err := repo.ExpireLapsed(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
}
