package user

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

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "email", "phone", "password_hash", "role", "branch_id", "created_at"})
}

func TestRepository_Create(t *testing.T) {
	repo, mock, closeFn := setupMock(t)
	defer closeFn()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("Ayu", "ayu@example.com", "", "hash", "member", 1).
		WillReturnRows(userRows().AddRow(1, "Ayu", "ayu@example.com", "", "hash", "member", 1, time.Now()))

	user, err := repo.Create(context.Background(), "Ayu", "ayu@example.com", "", "hash", "member", 1)
	require.NoError(t, err)
	require.Equal(t, 1, user.ID)
	require.Equal(t, "member", user.Role)
	require.Equal(t, 1, user.BranchID)
}

func TestRepository_FindByEmail(t *testing.T) {
	repo, mock, closeFn := setupMock(t)
	defer closeFn()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, email, phone, password_hash, role, branch_id, created_at")).
		WithArgs("ayu@example.com").
		WillReturnRows(userRows().AddRow(3, "Ayu", "ayu@example.com", "", "hash", "member", 2, time.Now()))

	user, err := repo.FindByEmail(context.Background(), "ayu@example.com")
	require.NoError(t, err)
	require.Equal(t, 3, user.ID)
	require.Equal(t, 2, user.BranchID)
}

func TestRepository_EmailExists(t *testing.T) {
	repo, mock, closeFn := setupMock(t)
	defer closeFn()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)")).
		WithArgs("ayu@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.EmailExists(context.Background(), "ayu@example.com")
	require.NoError(t, err)
	require.True(t, exists)
}
