package schedule

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

func TestInsertInstance_IdempotentOnConflict(t *testing.T) {
	repo, mock, closeFn := setupMock(t)
	defer closeFn()

	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	startsAt := date.Add(18 * time.Hour)
	endsAt := date.Add(19 * time.Hour)

	// Conflict: insert touches nothing, the re-select returns the
	// previously materialized row.
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (template_id, session_date) DO NOTHING")).
		WithArgs(1, date, startsAt, endsAt, 15).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery(regexp.QuoteMeta("WHERE template_id = $1 AND session_date = $2")).
		WithArgs(1, date).
		WillReturnRows(sqlmock.NewRows([]string{"id", "template_id", "session_date", "starts_at", "ends_at", "capacity", "created_at"}).
			AddRow(42, 1, date, startsAt, endsAt, 15, time.Now()))

	inst, err := repo.InsertInstance(context.Background(), &Instance{
		TemplateID: 1, SessionDate: date, StartsAt: startsAt, EndsAt: endsAt, Capacity: 15,
	})
	require.NoError(t, err)
	require.Equal(t, 42, inst.ID)
}

func TestDeactivateTemplate_NotFound(t *testing.T) {
	repo, mock, closeFn := setupMock(t)
	defer closeFn()

	mock.ExpectExec(regexp.QuoteMeta("SET active = false")).
		WithArgs(9).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeactivateTemplate(context.Background(), 9)
	require.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestGetInstance_NotFound(t *testing.T) {
	repo, mock, closeFn := setupMock(t)
	defer closeFn()

	mock.ExpectQuery(regexp.QuoteMeta("FROM session_instances WHERE id = $1")).
		WithArgs(77).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetInstance(context.Background(), 77)
	require.ErrorIs(t, err, ErrInstanceNotFound)
}
