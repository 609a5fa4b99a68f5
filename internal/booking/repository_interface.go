package booking

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Repository exposes the transactional primitives the service composes
// into booking transitions. The service owns the transaction so a
// capacity check, a grant debit, and a status flip commit as one unit.
type Repository interface {
	BeginTx(ctx context.Context) (*sqlx.Tx, error)

	// LockInstance takes the per-instance write lock every booking
	// transition serializes on.
	LockInstance(ctx context.Context, tx *sqlx.Tx, instanceID int) (*SessionInfo, error)
	CountConfirmedTx(ctx context.Context, tx *sqlx.Tx, instanceID int) (int, error)
	HasActiveBookingTx(ctx context.Context, tx *sqlx.Tx, userID, instanceID int) (bool, error)
	InsertTx(ctx context.Context, tx *sqlx.Tx, b *Booking) (*Booking, error)
	NextWaitlistPosTx(ctx context.Context, tx *sqlx.Tx, instanceID int) (int, error)
	GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int) (*Booking, error)
	UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id int, from, to string) error
	WaitlistTx(ctx context.Context, tx *sqlx.Tx, instanceID int) ([]Booking, error)

	GetByID(ctx context.Context, id int) (*Booking, error)
	ListByUser(ctx context.Context, userID int) ([]BookingWithDetails, error)
	Roster(ctx context.Context, instanceID int) ([]BookingWithDetails, error)
	Waitlist(ctx context.Context, instanceID int) ([]BookingWithDetails, error)
}
