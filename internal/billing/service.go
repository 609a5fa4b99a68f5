package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yoganurrahman/moolai-gym-api/internal/entitlement"
	"github.com/yoganurrahman/moolai-gym-api/internal/logger"
	"github.com/yoganurrahman/moolai-gym-api/internal/metrics"
	"github.com/yoganurrahman/moolai-gym-api/internal/notify"
	"github.com/yoganurrahman/moolai-gym-api/internal/settings"
)

var ErrPauseInPast = errors.New("pause end must be in the future")

const sweepWorkers = 4

// GrantIssuer creates the entitlement grants a paid renewal buys.
type GrantIssuer interface {
	Purchase(ctx context.Context, req entitlement.PurchaseRequest) ([]entitlement.Grant, error)
}

type SettingsSource interface {
	Int(ctx context.Context, key string, def int) int
}

type Publisher interface {
	Publish(ctx context.Context, kind string, userID int, payload map[string]interface{})
}

// SweepReport summarizes one pass over due subscriptions.
type SweepReport struct {
	Due     int `json:"due"`
	Renewed int `json:"renewed"`
	Retried int `json:"retried"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

type Service interface {
	Subscribe(ctx context.Context, req SubscribeRequest) (*Subscription, error)
	GetByID(ctx context.Context, id int) (*Subscription, error)
	ListByUser(ctx context.Context, userID int) ([]Subscription, error)
	Pause(ctx context.Context, id int, until time.Time) error
	Resume(ctx context.Context, id int) (*Subscription, error)
	Cancel(ctx context.Context, id int) error
	Sweep(ctx context.Context, today time.Time) (*SweepReport, error)
}

type service struct {
	repo          Repository
	charger       Charger
	grants        GrantIssuer
	settings      SettingsSource
	publisher     Publisher
	chargeTimeout time.Duration
	now           func() time.Time
}

func NewService(repo Repository, charger Charger, grants GrantIssuer, settings SettingsSource, publisher Publisher, chargeTimeout time.Duration) Service {
	return &service{
		repo:          repo,
		charger:       charger,
		grants:        grants,
		settings:      settings,
		publisher:     publisher,
		chargeTimeout: chargeTimeout,
		now:           time.Now,
	}
}

func (s *service) Subscribe(ctx context.Context, req SubscribeRequest) (*Subscription, error) {
	today := truncateToDay(s.now())
	return s.repo.Create(ctx, &Subscription{
		UserID:            req.UserID,
		GrantKind:         req.GrantKind,
		GrantPurposes:     req.GrantPurposes,
		GrantTotal:        req.GrantTotal,
		GrantDurationDays: req.GrantDurationDays,
		PackageRef:        req.PackageRef,
		BillingCycle:      req.BillingCycle,
		PriceCents:        req.PriceCents,
		NextBillingDate:   today,
	})
}

func (s *service) GetByID(ctx context.Context, id int) (*Subscription, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListByUser(ctx context.Context, userID int) ([]Subscription, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Pause parks the subscription until the given date. The retry counter
// is left alone so a troubled card is still on its last warning when
// billing resumes.
func (s *service) Pause(ctx context.Context, id int, until time.Time) error {
	if !until.After(s.now()) {
		return ErrPauseInPast
	}
	return s.repo.Pause(ctx, id, until)
}

func (s *service) Resume(ctx context.Context, id int) (*Subscription, error) {
	return s.repo.Resume(ctx, id)
}

func (s *service) Cancel(ctx context.Context, id int) error {
	return s.repo.Cancel(ctx, id)
}

// Sweep charges every due subscription once. Subscriptions are
// processed concurrently by a small worker pool; each one must claim
// its period invoice first, so overlapping sweeps cannot double-charge.
func (s *service) Sweep(ctx context.Context, today time.Time) (*SweepReport, error) {
	due, err := s.repo.DueSubscriptions(ctx, today)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Due: len(due)}
	if len(due) == 0 {
		return report, nil
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan Subscription)
	)

	workers := sweepWorkers
	if len(due) < workers {
		workers = len(due)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range jobs {
				outcome := s.processOne(ctx, &sub, today)
				mu.Lock()
				switch outcome {
				case outcomeRenewed:
					report.Renewed++
				case outcomeRetried:
					report.Retried++
				case outcomeFailed:
					report.Failed++
				default:
					report.Skipped++
				}
				mu.Unlock()
			}
		}()
	}

	for _, sub := range due {
		jobs <- sub
	}
	close(jobs)
	wg.Wait()

	logger.Info("billing sweep finished",
		"due", report.Due, "renewed", report.Renewed,
		"retried", report.Retried, "failed", report.Failed, "skipped", report.Skipped)

	return report, nil
}

type sweepOutcome int

const (
	outcomeSkipped sweepOutcome = iota
	outcomeRenewed
	outcomeRetried
	outcomeFailed
)

func (s *service) processOne(ctx context.Context, sub *Subscription, today time.Time) sweepOutcome {
	periodKey := sub.NextBillingDate.Format("2006-01-02")
	reference := fmt.Sprintf("sub-%d-%s", sub.ID, periodKey)

	invoice, err := s.repo.ClaimInvoice(ctx, sub.ID, periodKey, sub.PriceCents)
	if errors.Is(err, ErrInvoiceSettled) {
		// Another sweep paid this period or holds the claim right now.
		return outcomeSkipped
	}
	if err != nil {
		logger.Error("failed to claim invoice", "subscription_id", sub.ID, "error", err)
		return outcomeSkipped
	}

	chargeCtx, cancel := context.WithTimeout(ctx, s.chargeTimeout)
	chargeErr := s.charger.Charge(chargeCtx, sub.UserID, sub.PriceCents, reference)
	cancel()

	if chargeErr != nil {
		return s.recordFailure(ctx, sub, invoice, today, chargeErr)
	}
	return s.recordRenewal(ctx, sub, invoice, today, reference)
}

func (s *service) recordRenewal(ctx context.Context, sub *Subscription, invoice *Invoice, today time.Time, reference string) sweepOutcome {
	if err := s.repo.MarkInvoice(ctx, invoice.ID, InvoicePaid); err != nil {
		logger.Error("failed to mark invoice paid", "invoice_id", invoice.ID, "error", err)
		return outcomeSkipped
	}

	expire := today.AddDate(0, 0, sub.GrantDurationDays)
	if _, err := s.grants.Purchase(ctx, entitlement.PurchaseRequest{
		UserID:         sub.UserID,
		Kind:           sub.GrantKind,
		Purposes:       []string(sub.GrantPurposes),
		Total:          sub.GrantTotal,
		StartDate:      today,
		ExpireDate:     &expire,
		TransactionRef: reference,
	}); err != nil {
		// The charge went through; the grant must not be silently lost.
		logger.Error("renewal charged but grant issuance failed",
			"subscription_id", sub.ID, "reference", reference, "error", err)
		return outcomeSkipped
	}

	next := nextCycleDate(sub.NextBillingDate, sub.BillingCycle, today)
	if err := s.repo.RenewalSuccess(ctx, sub.ID, next); err != nil {
		logger.Error("failed to advance billing date", "subscription_id", sub.ID, "error", err)
		return outcomeSkipped
	}

	metrics.RecordSubscriptionRenewal()
	s.publisher.Publish(ctx, notify.EventSubscriptionRenews, sub.UserID, map[string]interface{}{
		"subscription_id": sub.ID,
		"package_ref":     sub.PackageRef,
		"period_key":      invoice.PeriodKey,
		"amount_cents":    sub.PriceCents,
	})
	return outcomeRenewed
}

func (s *service) recordFailure(ctx context.Context, sub *Subscription, invoice *Invoice, today time.Time, chargeErr error) sweepOutcome {
	if err := s.repo.MarkInvoice(ctx, invoice.ID, InvoiceFailed); err != nil {
		logger.Error("failed to mark invoice failed", "invoice_id", invoice.ID, "error", err)
	}

	retryDays := s.settings.Int(ctx, settings.KeySubscriptionRetryDays, 3)
	maxRetries := s.settings.Int(ctx, settings.KeySubscriptionRetryCount, 3)

	retryCount, err := s.repo.RenewalFailure(ctx, sub.ID, today.AddDate(0, 0, retryDays))
	if err != nil {
		logger.Error("failed to record renewal failure", "subscription_id", sub.ID, "error", err)
		return outcomeSkipped
	}

	logger.Warn("subscription charge failed",
		"subscription_id", sub.ID, "retry_count", retryCount, "error", chargeErr)

	if retryCount < maxRetries {
		return outcomeRetried
	}

	if err := s.repo.MarkFailed(ctx, sub.ID); err != nil {
		logger.Error("failed to mark subscription failed", "subscription_id", sub.ID, "error", err)
		return outcomeSkipped
	}

	metrics.RecordSubscriptionFailure()
	s.publisher.Publish(ctx, notify.EventSubscriptionFailed, sub.UserID, map[string]interface{}{
		"subscription_id": sub.ID,
		"package_ref":     sub.PackageRef,
		"retry_count":     retryCount,
	})
	return outcomeFailed
}

// nextCycleDate advances from the scheduled date, but never lands in
// the past: a subscription revived after a long retry tail picks up
// from today instead of burning through missed periods.
func nextCycleDate(scheduled time.Time, cycle string, today time.Time) time.Time {
	next := advanceCycle(scheduled, cycle)
	if !next.After(today) {
		next = advanceCycle(today, cycle)
	}
	return next
}

func advanceCycle(from time.Time, cycle string) time.Time {
	switch cycle {
	case CycleWeekly:
		return from.AddDate(0, 0, 7)
	case CycleYearly:
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
