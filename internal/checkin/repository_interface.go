package checkin

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	BeginTx(ctx context.Context) (*sqlx.Tx, error)

	// LockUserTx serializes check-in decisions for one user; the
	// open-record and cooldown checks read a stable view under it.
	LockUserTx(ctx context.Context, tx *sqlx.Tx, userID int) error
	OpenCheckinTx(ctx context.Context, tx *sqlx.Tx, userID int) (*Checkin, error)
	CloseOpenTx(ctx context.Context, tx *sqlx.Tx, userID int, at time.Time) error
	LastCheckinTx(ctx context.Context, tx *sqlx.Tx, userID int) (*Checkin, error)
	InsertTx(ctx context.Context, tx *sqlx.Tx, c *Checkin) (*Checkin, error)
	ConfirmedBookingTx(ctx context.Context, tx *sqlx.Tx, bookingID int) (*BookingRef, error)

	Open(ctx context.Context, userID int) (*Checkin, error)
	CheckOut(ctx context.Context, userID int, at time.Time) (bool, error)
	PresenceByBranch(ctx context.Context, branchID int, date time.Time) ([]CheckinWithUser, error)
}
