package booking

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidStatus   = errors.New("booking is not in a state that allows this")
)

const bookingColumns = `id, user_id, session_instance_id, grant_id, status, waitlist_pos, requested_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

func (r *repository) LockInstance(ctx context.Context, tx *sqlx.Tx, instanceID int) (*SessionInfo, error) {
	var info SessionInfo
	err := tx.GetContext(ctx, &info, `
		SELECT i.id, i.template_id, i.capacity, i.starts_at, i.ends_at,
		       t.kind, t.class_name, t.branch_id
		FROM session_instances i
		JOIN session_templates t ON t.id = i.template_id
		WHERE i.id = $1
		FOR UPDATE OF i
	`, instanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &info, nil
}

func (r *repository) CountConfirmedTx(ctx context.Context, tx *sqlx.Tx, instanceID int) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM bookings
		WHERE session_instance_id = $1 AND status = 'confirmed'
	`, instanceID)
	return count, err
}

func (r *repository) HasActiveBookingTx(ctx context.Context, tx *sqlx.Tx, userID, instanceID int) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE user_id = $1 AND session_instance_id = $2
			  AND status IN ('confirmed', 'waitlisted')
		)
	`, userID, instanceID)
	return exists, err
}

func (r *repository) InsertTx(ctx context.Context, tx *sqlx.Tx, b *Booking) (*Booking, error) {
	var created Booking
	err := tx.GetContext(ctx, &created, `
		INSERT INTO bookings (user_id, session_instance_id, grant_id, status, waitlist_pos)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+bookingColumns,
		b.UserID, b.InstanceID, b.GrantID, b.Status, b.WaitlistPos)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *repository) NextWaitlistPosTx(ctx context.Context, tx *sqlx.Tx, instanceID int) (int, error) {
	var pos int
	err := tx.GetContext(ctx, &pos, `
		SELECT COALESCE(MAX(waitlist_pos), 0) + 1 FROM bookings
		WHERE session_instance_id = $1 AND status = 'waitlisted'
	`, instanceID)
	return pos, err
}

func (r *repository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int) (*Booking, error) {
	var b Booking
	err := tx.GetContext(ctx, &b,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// UpdateStatusTx flips status only from the expected prior state; a
// booking that moved under us makes this return ErrInvalidStatus
// instead of silently overwriting.
func (r *repository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id int, from, to string) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET status = $3,
		    waitlist_pos = CASE WHEN $3 = 'waitlisted' THEN waitlist_pos ELSE NULL END,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInvalidStatus
	}
	return nil
}

func (r *repository) WaitlistTx(ctx context.Context, tx *sqlx.Tx, instanceID int) ([]Booking, error) {
	bookings := []Booking{}
	err := tx.SelectContext(ctx, &bookings, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE session_instance_id = $1 AND status = 'waitlisted'
		ORDER BY waitlist_pos ASC
	`, instanceID)
	return bookings, err
}

func (r *repository) GetByID(ctx context.Context, id int) (*Booking, error) {
	var b Booking
	err := r.db.GetContext(ctx, &b,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *repository) ListByUser(ctx context.Context, userID int) ([]BookingWithDetails, error) {
	return r.listDetailed(ctx, `b.user_id = $1 ORDER BY i.starts_at DESC`, userID)
}

func (r *repository) Roster(ctx context.Context, instanceID int) ([]BookingWithDetails, error) {
	return r.listDetailed(ctx,
		`b.session_instance_id = $1 AND b.status IN ('confirmed', 'attended', 'no_show') ORDER BY u.name`,
		instanceID)
}

func (r *repository) Waitlist(ctx context.Context, instanceID int) ([]BookingWithDetails, error) {
	return r.listDetailed(ctx,
		`b.session_instance_id = $1 AND b.status = 'waitlisted' ORDER BY b.waitlist_pos ASC`,
		instanceID)
}

func (r *repository) listDetailed(ctx context.Context, where string, arg interface{}) ([]BookingWithDetails, error) {
	bookings := []BookingWithDetails{}
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT b.id, b.user_id, b.session_instance_id, b.grant_id, b.status,
		       b.waitlist_pos, b.requested_at, b.updated_at,
		       u.name AS user_name, u.email AS user_email,
		       t.class_name, t.kind, i.starts_at
		FROM bookings b
		JOIN users u ON u.id = b.user_id
		JOIN session_instances i ON i.id = b.session_instance_id
		JOIN session_templates t ON t.id = i.template_id
		WHERE `+where, arg)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}
