package entitlement

import (
	"context"
	"errors"
	"time"

	"github.com/yoganurrahman/moolai-gym-api/internal/logger"
	"github.com/yoganurrahman/moolai-gym-api/internal/metrics"
	"github.com/yoganurrahman/moolai-gym-api/internal/notify"
)

var ErrNoActiveEntitlement = errors.New("no active entitlement for this purpose")

// Publisher is the slice of the notification service the store needs.
type Publisher interface {
	Publish(ctx context.Context, kind string, userID int, payload map[string]interface{})
}

type Service interface {
	Purchase(ctx context.Context, req PurchaseRequest) ([]Grant, error)
	GetByID(ctx context.Context, grantID int) (*Grant, error)
	ListByUser(ctx context.Context, userID int) ([]Grant, error)
	Debit(ctx context.Context, grantID, n int) error
	Credit(ctx context.Context, grantID, n int) error
	Freeze(ctx context.Context, grantID int, until time.Time, reason string) error
	Unfreeze(ctx context.Context, grantID int) error
	Cancel(ctx context.Context, grantID int, reason string) error
	Resolve(ctx context.Context, userID int, purpose string) ([]Grant, error)
	Balance(ctx context.Context, userID int) (*BalanceSummary, error)
	RunExpirySweep(ctx context.Context) error
}

type service struct {
	repo   Repository
	events Publisher
}

func NewService(repo Repository, events Publisher) Service {
	return &service{repo: repo, events: events}
}

// Purchase issues one grant per covered purpose. A membership that
// covers gym access and classes becomes two rows with independent
// counters, so resolution and debiting only ever deal with a single
// counter per grant.
func (s *service) Purchase(ctx context.Context, req PurchaseRequest) ([]Grant, error) {
	created := make([]Grant, 0, len(req.Purposes))
	for _, purpose := range req.Purposes {
		grant, err := s.repo.Create(ctx, &Grant{
			UserID:         req.UserID,
			Kind:           req.Kind,
			Purpose:        purpose,
			Total:          req.Total,
			StartDate:      req.StartDate,
			ExpireDate:     req.ExpireDate,
			TransactionRef: req.TransactionRef,
		})
		if err != nil {
			return nil, err
		}
		created = append(created, *grant)

		s.events.Publish(ctx, notify.EventGrantCreated, req.UserID, map[string]interface{}{
			"grant_id": grant.ID,
			"kind":     grant.Kind,
			"purpose":  grant.Purpose,
		})
	}

	logger.Info("Grants issued", "user_id", req.UserID, "kind", req.Kind, "count", len(created))
	return created, nil
}

func (s *service) GetByID(ctx context.Context, grantID int) (*Grant, error) {
	return s.repo.GetByID(ctx, grantID)
}

func (s *service) ListByUser(ctx context.Context, userID int) ([]Grant, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) Debit(ctx context.Context, grantID, n int) error {
	grant, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return err
	}

	if err := s.repo.Debit(ctx, grantID, n); err != nil {
		return err
	}

	metrics.RecordGrantDebit(grant.Kind)
	s.events.Publish(ctx, notify.EventGrantDebited, grant.UserID, map[string]interface{}{
		"grant_id": grantID,
		"amount":   n,
	})
	return nil
}

func (s *service) Credit(ctx context.Context, grantID, n int) error {
	grant, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return err
	}

	if err := s.repo.Credit(ctx, grantID, n); err != nil {
		return err
	}

	s.events.Publish(ctx, notify.EventGrantCredited, grant.UserID, map[string]interface{}{
		"grant_id": grantID,
		"amount":   n,
	})
	return nil
}

func (s *service) Freeze(ctx context.Context, grantID int, until time.Time, reason string) error {
	return s.repo.Freeze(ctx, grantID, until, reason)
}

func (s *service) Unfreeze(ctx context.Context, grantID int) error {
	return s.repo.Unfreeze(ctx, grantID)
}

func (s *service) Cancel(ctx context.Context, grantID int, reason string) error {
	return s.repo.Cancel(ctx, grantID, reason)
}

func (s *service) Resolve(ctx context.Context, userID int, purpose string) ([]Grant, error) {
	grants, err := s.repo.Resolve(ctx, userID, purpose)
	if err != nil {
		return nil, err
	}
	if len(grants) == 0 {
		return nil, ErrNoActiveEntitlement
	}
	return grants, nil
}

func (s *service) Balance(ctx context.Context, userID int) (*BalanceSummary, error) {
	grants, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &BalanceSummary{UserID: userID, Grants: grants}
	now := time.Now()

	var classCredits, ptSessions int
	classUnlimited, ptUnlimited := false, false
	for i := range grants {
		g := &grants[i]
		if !g.Usable(now) {
			continue
		}
		switch g.Purpose {
		case PurposeGym:
			summary.GymAccess = true
		case PurposeClass:
			if g.Unlimited() {
				classUnlimited = true
			} else {
				classCredits += *g.Remaining()
			}
		case PurposePT:
			if g.Unlimited() {
				ptUnlimited = true
			} else {
				ptSessions += *g.Remaining()
			}
		}
	}

	if !classUnlimited {
		summary.ClassCredits = &classCredits
	}
	if !ptUnlimited {
		summary.PTSessions = &ptSessions
	}

	return summary, nil
}

// RunExpirySweep retires lapsed and exhausted grants and reactivates
// freezes whose window has passed. Runs periodically from main.
func (s *service) RunExpirySweep(ctx context.Context) error {
	now := time.Now()

	unfrozen, err := s.repo.UnfreezeDue(ctx, now)
	if err != nil {
		return err
	}

	expired, err := s.repo.ExpireLapsed(ctx, now)
	if err != nil {
		return err
	}

	completed, err := s.repo.CompleteExhausted(ctx)
	if err != nil {
		return err
	}

	if unfrozen+expired+completed > 0 {
		logger.Info("Entitlement sweep", "expired", expired, "completed", completed, "unfrozen", unfrozen)
	}
	return nil
}
