package discount

import "time"

const (
	TagPromo   = "promo"
	TagVoucher = "voucher"

	TypePercentage = "percentage"
	TypeFixed      = "fixed"
	TypeFreeItem   = "free_item"

	ScopeAll        = "all"
	ScopeMembership = "membership"
	ScopeClassPass  = "class_pass"
	ScopePTBundle   = "pt_bundle"
)

// Offer is the common shape of promos and vouchers. Value carries
// percentage points for percentage offers and cents otherwise.
// PerUserLimit only applies to promos, SingleUse only to vouchers.
type Offer struct {
	Tag          string     `db:"-" json:"tag"`
	ID           int        `db:"id" json:"id"`
	Code         string     `db:"code" json:"code"`
	Name         string     `db:"name" json:"name"`
	Type         string     `db:"type" json:"type"`
	Value        float64    `db:"value" json:"value"`
	Scope        string     `db:"scope" json:"scope"`
	MinPurchase  int64      `db:"min_purchase_cents" json:"min_purchase_cents"`
	MaxDiscount  *int64     `db:"max_discount_cents" json:"max_discount_cents,omitempty"`
	StartsAt     time.Time  `db:"starts_at" json:"starts_at"`
	EndsAt       time.Time  `db:"ends_at" json:"ends_at"`
	UsageLimit   *int       `db:"usage_limit" json:"usage_limit,omitempty"`
	UsageCount   int        `db:"usage_count" json:"usage_count"`
	PerUserLimit *int       `db:"per_user_limit" json:"per_user_limit,omitempty"`
	SingleUse    bool       `db:"is_single_use" json:"is_single_use,omitempty"`
	Active       bool       `db:"active" json:"active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// Usage is one redemption in the shared ledger for both offer tags.
type Usage struct {
	ID          int       `db:"id" json:"id"`
	OfferTag    string    `db:"offer_tag" json:"offer_tag"`
	OfferID     int       `db:"offer_id" json:"offer_id"`
	UserID      int       `db:"user_id" json:"user_id"`
	TxRef       string    `db:"tx_ref" json:"tx_ref"`
	AmountCents int64     `db:"amount_cents" json:"amount_cents"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type QuoteLine struct {
	Description string `json:"description" binding:"required"`
	Kind        string `json:"kind" binding:"required,oneof=membership class_pass pt_bundle"`
	AmountCents int64  `json:"amount_cents" binding:"required,min=0"`
}

type QuoteRequest struct {
	Lines       []QuoteLine `json:"lines" binding:"required,min=1,dive"`
	PromoID     *int        `json:"promo_id" binding:"omitempty,min=1"`
	VoucherCode *string     `json:"voucher_code" binding:"omitempty,min=1"`
}

type RedeemRequest struct {
	QuoteRequest
	TxRef string `json:"tx_ref" binding:"required"`
}

type AppliedDiscount struct {
	Tag         string `json:"tag"`
	OfferID     int    `json:"offer_id"`
	Code        string `json:"code"`
	AmountCents int64  `json:"amount_cents"`
}

type QuoteResult struct {
	SubtotalCents int64             `json:"subtotal_cents"`
	DiscountCents int64             `json:"discount_cents"`
	TotalCents    int64             `json:"total_cents"`
	Applied       []AppliedDiscount `json:"applied"`
}

type CreateOfferRequest struct {
	Code         string    `json:"code" binding:"required,max=50"`
	Name         string    `json:"name" binding:"required,max=100"`
	Type         string    `json:"type" binding:"required,oneof=percentage fixed free_item"`
	Value        float64   `json:"value" binding:"required,min=0"`
	Scope        string    `json:"scope" binding:"omitempty,oneof=all membership class_pass pt_bundle"`
	MinPurchase  int64     `json:"min_purchase_cents" binding:"omitempty,min=0"`
	MaxDiscount  *int64    `json:"max_discount_cents" binding:"omitempty,min=1"`
	StartsAt     time.Time `json:"starts_at" binding:"required"`
	EndsAt       time.Time `json:"ends_at" binding:"required"`
	UsageLimit   *int      `json:"usage_limit" binding:"omitempty,min=1"`
	PerUserLimit *int      `json:"per_user_limit" binding:"omitempty,min=1"`
	SingleUse    bool      `json:"is_single_use"`
}

// OfferStats is the reporting view of redemption counters.
type OfferStats struct {
	Tag        string `db:"tag" json:"tag"`
	OfferID    int    `db:"offer_id" json:"offer_id"`
	Code       string `db:"code" json:"code"`
	Uses       int    `db:"uses" json:"uses"`
	TotalCents int64  `db:"total_cents" json:"total_cents"`
}
