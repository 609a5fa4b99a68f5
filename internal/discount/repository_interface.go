package discount

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	BeginTx(ctx context.Context) (*sqlx.Tx, error)

	GetPromo(ctx context.Context, id int) (*Offer, error)
	GetVoucherByCode(ctx context.Context, code string) (*Offer, error)
	InsertOffer(ctx context.Context, tag string, offer *Offer) (*Offer, error)
	ListOffers(ctx context.Context, tag string) ([]Offer, error)

	// IncrementUsageTx is the compare-and-increment enforcing the
	// global cap: the row update only matches while usage_count is
	// below the limit, and it locks the offer row so concurrent
	// redemptions serialize on it.
	IncrementUsageTx(ctx context.Context, tx *sqlx.Tx, tag string, offerID int) error
	CountUserUsagesTx(ctx context.Context, tx *sqlx.Tx, tag string, offerID, userID int) (int, error)
	InsertUsageTx(ctx context.Context, tx *sqlx.Tx, usage *Usage) error

	Stats(ctx context.Context) ([]OfferStats, error)
}
