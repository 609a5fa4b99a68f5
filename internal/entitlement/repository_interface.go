package entitlement

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, grant *Grant) (*Grant, error)
	GetByID(ctx context.Context, id int) (*Grant, error)
	ListByUser(ctx context.Context, userID int) ([]Grant, error)

	// Debit and Credit adjust the used counter with a conditional
	// UPDATE; the Tx variants run inside a caller-owned transaction so
	// a booking transition and its funding debit commit together.
	Debit(ctx context.Context, grantID, n int) error
	DebitTx(ctx context.Context, tx *sqlx.Tx, grantID, n int) error
	Credit(ctx context.Context, grantID, n int) error
	CreditTx(ctx context.Context, tx *sqlx.Tx, grantID, n int) error

	Freeze(ctx context.Context, grantID int, until time.Time, reason string) error
	Unfreeze(ctx context.Context, grantID int) error
	Cancel(ctx context.Context, grantID int, reason string) error

	// Resolve returns the grants able to fund one unit of the given
	// purpose, membership grants first, then soonest expiry first.
	Resolve(ctx context.Context, userID int, purpose string) ([]Grant, error)

	ExpireLapsed(ctx context.Context, now time.Time) (int64, error)
	CompleteExhausted(ctx context.Context) (int64, error)
	UnfreezeDue(ctx context.Context, now time.Time) (int64, error)
}
