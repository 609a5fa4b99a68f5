package discount

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/yoganurrahman/moolai-gym-api/internal/metrics"
)

var (
	ErrOfferNotActive    = errors.New("offer is not active or outside its validity window")
	ErrMinPurchaseNotMet = errors.New("purchase amount below the offer minimum")
	ErrScopeMismatch     = errors.New("no purchase line matches the offer scope")
	ErrInvalidWindow     = errors.New("offer end must be after its start")
)

type Service interface {
	Quote(ctx context.Context, userID int, req QuoteRequest) (*QuoteResult, error)
	Redeem(ctx context.Context, userID int, req RedeemRequest) (*QuoteResult, error)
	CreateOffer(ctx context.Context, tag string, req CreateOfferRequest) (*Offer, error)
	ListOffers(ctx context.Context, tag string) ([]Offer, error)
	Stats(ctx context.Context) ([]OfferStats, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

// Quote prices the stack without touching any counters: at most one
// promo plus one voucher, each computed against the pre-discount
// subtotal, the sum floored at the subtotal.
func (s *service) Quote(ctx context.Context, userID int, req QuoteRequest) (*QuoteResult, error) {
	offers, err := s.loadOffers(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.price(req.Lines, offers)
}

// Redeem re-quotes and then burns usage inside one transaction. The
// offer-row increment is the gate: when the global cap is spent,
// nothing matched and the whole redemption rolls back.
func (s *service) Redeem(ctx context.Context, userID int, req RedeemRequest) (*QuoteResult, error) {
	offers, err := s.loadOffers(ctx, req.QuoteRequest)
	if err != nil {
		return nil, err
	}

	result, err := s.price(req.Lines, offers)
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for _, applied := range result.Applied {
		if err := s.repo.IncrementUsageTx(ctx, tx, applied.Tag, applied.OfferID); err != nil {
			return nil, err
		}

		if applied.Tag == TagPromo {
			if limit := perUserLimit(offers, applied.OfferID); limit != nil {
				// Counted after taking the offer-row lock, so a racing
				// redemption by the same user is already committed or
				// blocked behind us.
				used, err := s.repo.CountUserUsagesTx(ctx, tx, TagPromo, applied.OfferID, userID)
				if err != nil {
					return nil, err
				}
				if used >= *limit {
					return nil, ErrUsageLimitExceeded
				}
			}
		}

		if err := s.repo.InsertUsageTx(ctx, tx, &Usage{
			OfferTag:    applied.Tag,
			OfferID:     applied.OfferID,
			UserID:      userID,
			TxRef:       req.TxRef,
			AmountCents: applied.AmountCents,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	for _, applied := range result.Applied {
		metrics.RecordDiscountRedemption(applied.Tag)
	}

	return result, nil
}

func (s *service) CreateOffer(ctx context.Context, tag string, req CreateOfferRequest) (*Offer, error) {
	if !req.EndsAt.After(req.StartsAt) {
		return nil, ErrInvalidWindow
	}

	scope := req.Scope
	if scope == "" {
		scope = ScopeAll
	}

	return s.repo.InsertOffer(ctx, tag, &Offer{
		Code:         req.Code,
		Name:         req.Name,
		Type:         req.Type,
		Value:        req.Value,
		Scope:        scope,
		MinPurchase:  req.MinPurchase,
		MaxDiscount:  req.MaxDiscount,
		StartsAt:     req.StartsAt,
		EndsAt:       req.EndsAt,
		UsageLimit:   req.UsageLimit,
		PerUserLimit: req.PerUserLimit,
		SingleUse:    req.SingleUse,
	})
}

func (s *service) ListOffers(ctx context.Context, tag string) ([]Offer, error) {
	return s.repo.ListOffers(ctx, tag)
}

func (s *service) Stats(ctx context.Context) ([]OfferStats, error) {
	return s.repo.Stats(ctx)
}

func (s *service) loadOffers(ctx context.Context, req QuoteRequest) ([]*Offer, error) {
	var offers []*Offer

	if req.PromoID != nil {
		promo, err := s.repo.GetPromo(ctx, *req.PromoID)
		if err != nil {
			return nil, err
		}
		offers = append(offers, promo)
	}

	if req.VoucherCode != nil {
		voucher, err := s.repo.GetVoucherByCode(ctx, *req.VoucherCode)
		if err != nil {
			return nil, err
		}
		offers = append(offers, voucher)
	}

	return offers, nil
}

func (s *service) price(lines []QuoteLine, offers []*Offer) (*QuoteResult, error) {
	now := s.now()

	var subtotal int64
	for _, line := range lines {
		subtotal += line.AmountCents
	}

	result := &QuoteResult{SubtotalCents: subtotal}

	for _, offer := range offers {
		if !offer.Active || now.Before(offer.StartsAt) || !now.Before(offer.EndsAt) {
			return nil, ErrOfferNotActive
		}
		if offer.UsageLimit != nil && offer.UsageCount >= *offer.UsageLimit {
			return nil, ErrUsageLimitExceeded
		}
		if offer.SingleUse && offer.UsageCount > 0 {
			return nil, ErrUsageLimitExceeded
		}

		base := scopedBase(lines, offer.Scope, subtotal)
		if base == 0 {
			return nil, ErrScopeMismatch
		}
		if subtotal < offer.MinPurchase {
			return nil, ErrMinPurchaseNotMet
		}

		amount := offerAmount(offer, base)
		result.Applied = append(result.Applied, AppliedDiscount{
			Tag:         offer.Tag,
			OfferID:     offer.ID,
			Code:        offer.Code,
			AmountCents: amount,
		})
		result.DiscountCents += amount
	}

	if result.DiscountCents > subtotal {
		result.DiscountCents = subtotal
	}
	result.TotalCents = subtotal - result.DiscountCents

	return result, nil
}

func scopedBase(lines []QuoteLine, scope string, subtotal int64) int64 {
	if scope == ScopeAll || scope == "" {
		return subtotal
	}
	var base int64
	for _, line := range lines {
		if line.Kind == scope {
			base += line.AmountCents
		}
	}
	return base
}

// offerAmount computes one offer's discount against its base, never
// negative and never more than the base.
func offerAmount(offer *Offer, base int64) int64 {
	var amount int64
	switch offer.Type {
	case TypePercentage:
		amount = int64(math.Round(float64(base) * offer.Value / 100))
		if offer.MaxDiscount != nil && amount > *offer.MaxDiscount {
			amount = *offer.MaxDiscount
		}
	case TypeFixed, TypeFreeItem:
		amount = int64(offer.Value)
	}

	if amount > base {
		amount = base
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}

func perUserLimit(offers []*Offer, offerID int) *int {
	for _, offer := range offers {
		if offer.Tag == TagPromo && offer.ID == offerID {
			return offer.PerUserLimit
		}
	}
	return nil
}
