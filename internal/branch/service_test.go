package branch

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func setupMock(t *testing.T) (Service, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	svc := NewService(NewRepository(sqlxDB))

	return svc, mock, func() { sqlxDB.Close() }
}

func TestCreateBranch(t *testing.T) {
	svc, mock, closeFn := setupMock(t)
	defer closeFn()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO branches")).
		WithArgs("Moolai Senayan", "Jakarta", "021-555-0101").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "location", "phone", "created_at"}).
			AddRow(1, "Moolai Senayan", "Jakarta", "021-555-0101", time.Now()))

	created, err := svc.Create(context.Background(), CreateBranchRequest{
		Name:     "Moolai Senayan",
		Location: "Jakarta",
		Phone:    "021-555-0101",
	})
	require.NoError(t, err)
	require.Equal(t, 1, created.ID)
	require.Equal(t, "Moolai Senayan", created.Name)
}

func TestGetBranch_NotFound(t *testing.T) {
	svc, mock, closeFn := setupMock(t)
	defer closeFn()

	mock.ExpectQuery(regexp.QuoteMeta("FROM branches WHERE id = $1")).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.GetByID(context.Background(), 99)
	require.ErrorIs(t, err, ErrBranchNotFound)
}
