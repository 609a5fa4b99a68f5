package discount

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var (
	ErrOfferNotFound      = errors.New("offer not found")
	ErrUsageLimitExceeded = errors.New("offer usage limit exceeded")
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

func (r *repository) GetPromo(ctx context.Context, id int) (*Offer, error) {
	var offer Offer
	err := r.db.GetContext(ctx, &offer, `
		SELECT id, code, name, type, value, scope, min_purchase_cents, max_discount_cents,
		       starts_at, ends_at, usage_limit, usage_count, per_user_limit, active, created_at
		FROM promos WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	offer.Tag = TagPromo
	return &offer, nil
}

func (r *repository) GetVoucherByCode(ctx context.Context, code string) (*Offer, error) {
	var offer Offer
	err := r.db.GetContext(ctx, &offer, `
		SELECT id, code, name, type, value, scope, min_purchase_cents, max_discount_cents,
		       starts_at, ends_at, usage_limit, usage_count, is_single_use, active, created_at
		FROM vouchers WHERE code = $1
	`, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	offer.Tag = TagVoucher
	return &offer, nil
}

func (r *repository) InsertOffer(ctx context.Context, tag string, offer *Offer) (*Offer, error) {
	var created Offer
	var err error
	switch tag {
	case TagPromo:
		err = r.db.GetContext(ctx, &created, `
			INSERT INTO promos (code, name, type, value, scope, min_purchase_cents, max_discount_cents,
				starts_at, ends_at, usage_limit, per_user_limit, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, true)
			RETURNING id, code, name, type, value, scope, min_purchase_cents, max_discount_cents,
				starts_at, ends_at, usage_limit, usage_count, per_user_limit, active, created_at
		`, offer.Code, offer.Name, offer.Type, offer.Value, offer.Scope, offer.MinPurchase,
			offer.MaxDiscount, offer.StartsAt, offer.EndsAt, offer.UsageLimit, offer.PerUserLimit)
	case TagVoucher:
		err = r.db.GetContext(ctx, &created, `
			INSERT INTO vouchers (code, name, type, value, scope, min_purchase_cents, max_discount_cents,
				starts_at, ends_at, usage_limit, is_single_use, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, true)
			RETURNING id, code, name, type, value, scope, min_purchase_cents, max_discount_cents,
				starts_at, ends_at, usage_limit, usage_count, is_single_use, active, created_at
		`, offer.Code, offer.Name, offer.Type, offer.Value, offer.Scope, offer.MinPurchase,
			offer.MaxDiscount, offer.StartsAt, offer.EndsAt, offer.UsageLimit, offer.SingleUse)
	default:
		return nil, ErrOfferNotFound
	}
	if err != nil {
		return nil, err
	}
	created.Tag = tag
	return &created, nil
}

func (r *repository) ListOffers(ctx context.Context, tag string) ([]Offer, error) {
	offers := []Offer{}
	var err error
	switch tag {
	case TagPromo:
		err = r.db.SelectContext(ctx, &offers, `
			SELECT id, code, name, type, value, scope, min_purchase_cents, max_discount_cents,
			       starts_at, ends_at, usage_limit, usage_count, per_user_limit, active, created_at
			FROM promos ORDER BY created_at DESC
		`)
	case TagVoucher:
		err = r.db.SelectContext(ctx, &offers, `
			SELECT id, code, name, type, value, scope, min_purchase_cents, max_discount_cents,
			       starts_at, ends_at, usage_limit, usage_count, is_single_use, active, created_at
			FROM vouchers ORDER BY created_at DESC
		`)
	default:
		return nil, ErrOfferNotFound
	}
	if err != nil {
		return nil, err
	}
	for i := range offers {
		offers[i].Tag = tag
	}
	return offers, nil
}

func (r *repository) IncrementUsageTx(ctx context.Context, tx *sqlx.Tx, tag string, offerID int) error {
	var query string
	switch tag {
	case TagPromo:
		query = `
			UPDATE promos
			SET usage_count = usage_count + 1
			WHERE id = $1 AND active = true
			  AND (usage_limit IS NULL OR usage_count < usage_limit)
		`
	case TagVoucher:
		query = `
			UPDATE vouchers
			SET usage_count = usage_count + 1
			WHERE id = $1 AND active = true
			  AND (usage_limit IS NULL OR usage_count < usage_limit)
			  AND (is_single_use = false OR usage_count = 0)
		`
	default:
		return ErrOfferNotFound
	}

	result, err := tx.ExecContext(ctx, query, offerID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrUsageLimitExceeded
	}
	return nil
}

func (r *repository) CountUserUsagesTx(ctx context.Context, tx *sqlx.Tx, tag string, offerID, userID int) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM discount_usages
		WHERE offer_tag = $1 AND offer_id = $2 AND user_id = $3
	`, tag, offerID, userID)
	return count, err
}

func (r *repository) InsertUsageTx(ctx context.Context, tx *sqlx.Tx, usage *Usage) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO discount_usages (offer_tag, offer_id, user_id, tx_ref, amount_cents)
		VALUES ($1, $2, $3, $4, $5)
	`, usage.OfferTag, usage.OfferID, usage.UserID, usage.TxRef, usage.AmountCents)
	return err
}

func (r *repository) Stats(ctx context.Context) ([]OfferStats, error) {
	stats := []OfferStats{}
	err := r.db.SelectContext(ctx, &stats, `
		SELECT u.offer_tag AS tag, u.offer_id,
		       COALESCE(p.code, v.code, '') AS code,
		       COUNT(*) AS uses, SUM(u.amount_cents) AS total_cents
		FROM discount_usages u
		LEFT JOIN promos p ON u.offer_tag = 'promo' AND p.id = u.offer_id
		LEFT JOIN vouchers v ON u.offer_tag = 'voucher' AND v.id = u.offer_id
		GROUP BY u.offer_tag, u.offer_id, p.code, v.code
		ORDER BY uses DESC
	`)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
