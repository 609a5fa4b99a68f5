package checkin

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrBookingNotFound = errors.New("booking not found")
)

const checkinColumns = `id, branch_id, user_id, type, grant_id, booking_id, checkin_time, checkout_time, method`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

func (r *repository) LockUserTx(ctx context.Context, tx *sqlx.Tx, userID int) error {
	var id int
	err := tx.GetContext(ctx, &id, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

func (r *repository) OpenCheckinTx(ctx context.Context, tx *sqlx.Tx, userID int) (*Checkin, error) {
	var c Checkin
	err := tx.GetContext(ctx, &c, `
		SELECT `+checkinColumns+` FROM member_checkins
		WHERE user_id = $1 AND checkout_time IS NULL
		ORDER BY checkin_time DESC
		LIMIT 1
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) Open(ctx context.Context, userID int) (*Checkin, error) {
	var c Checkin
	err := r.db.GetContext(ctx, &c, `
		SELECT `+checkinColumns+` FROM member_checkins
		WHERE user_id = $1 AND checkout_time IS NULL
		ORDER BY checkin_time DESC
		LIMIT 1
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) CloseOpenTx(ctx context.Context, tx *sqlx.Tx, userID int, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE member_checkins
		SET checkout_time = $2
		WHERE user_id = $1 AND checkout_time IS NULL
	`, userID, at)
	return err
}

func (r *repository) LastCheckinTx(ctx context.Context, tx *sqlx.Tx, userID int) (*Checkin, error) {
	var c Checkin
	err := tx.GetContext(ctx, &c, `
		SELECT `+checkinColumns+` FROM member_checkins
		WHERE user_id = $1
		ORDER BY checkin_time DESC
		LIMIT 1
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) InsertTx(ctx context.Context, tx *sqlx.Tx, c *Checkin) (*Checkin, error) {
	var created Checkin
	err := tx.GetContext(ctx, &created, `
		INSERT INTO member_checkins (branch_id, user_id, type, grant_id, booking_id, checkin_time, method)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+checkinColumns,
		c.BranchID, c.UserID, c.Type, c.GrantID, c.BookingID, c.CheckinTime, c.Method)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *repository) ConfirmedBookingTx(ctx context.Context, tx *sqlx.Tx, bookingID int) (*BookingRef, error) {
	var ref BookingRef
	err := tx.GetContext(ctx, &ref, `
		SELECT b.id, b.user_id, b.grant_id, b.status, t.kind, i.starts_at
		FROM bookings b
		JOIN session_instances i ON i.id = b.session_instance_id
		JOIN session_templates t ON t.id = i.template_id
		WHERE b.id = $1
	`, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &ref, nil
}

// CheckOut closes the open visit if there is one. Returns false when
// nothing was open; calling it twice is harmless.
func (r *repository) CheckOut(ctx context.Context, userID int, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE member_checkins
		SET checkout_time = $2
		WHERE user_id = $1 AND checkout_time IS NULL
	`, userID, at)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *repository) PresenceByBranch(ctx context.Context, branchID int, date time.Time) ([]CheckinWithUser, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	checkins := []CheckinWithUser{}
	err := r.db.SelectContext(ctx, &checkins, `
		SELECT c.id, c.branch_id, c.user_id, c.type, c.grant_id, c.booking_id,
		       c.checkin_time, c.checkout_time, c.method,
		       u.name AS user_name, u.email AS user_email
		FROM member_checkins c
		JOIN users u ON u.id = c.user_id
		WHERE c.branch_id = $1 AND c.checkin_time >= $2 AND c.checkin_time < $3
		ORDER BY c.checkin_time DESC
	`, branchID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	return checkins, nil
}
