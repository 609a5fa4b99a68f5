package booking

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yoganurrahman/moolai-gym-api/internal/entitlement"
	"github.com/yoganurrahman/moolai-gym-api/internal/logger"
	"github.com/yoganurrahman/moolai-gym-api/internal/metrics"
	"github.com/yoganurrahman/moolai-gym-api/internal/notify"
	"github.com/yoganurrahman/moolai-gym-api/internal/schedule"
	"github.com/yoganurrahman/moolai-gym-api/internal/settings"
)

var (
	ErrSessionStarted     = errors.New("session has already started")
	ErrSessionNotStarted  = errors.New("session has not started yet")
	ErrSessionNotEnded    = errors.New("session has not ended yet")
	ErrBookingTooFarAhead = errors.New("session is not open for booking yet")
	ErrAlreadyBooked      = errors.New("user already has an active booking for this session")
	ErrNotYourBooking     = errors.New("booking belongs to another user")
	ErrTooSoonToCancel    = errors.New("cancellation window has passed")
	ErrNoFundingGrant     = errors.New("no grant can fund this booking")
)

// GrantStore is the slice of the entitlement store bookings need.
type GrantStore interface {
	GetByID(ctx context.Context, id int) (*entitlement.Grant, error)
	Resolve(ctx context.Context, userID int, purpose string) ([]entitlement.Grant, error)
	DebitTx(ctx context.Context, tx *sqlx.Tx, grantID, n int) error
	CreditTx(ctx context.Context, tx *sqlx.Tx, grantID, n int) error
}

type SettingsSource interface {
	Hours(ctx context.Context, key string, def int) time.Duration
	Int(ctx context.Context, key string, def int) int
}

type Publisher interface {
	Publish(ctx context.Context, kind string, userID int, payload map[string]interface{})
}

type Service interface {
	Request(ctx context.Context, userID, instanceID int, grantID *int) (*Booking, error)
	Cancel(ctx context.Context, userID, bookingID int, force bool) (*BookingResult, error)
	MarkAttended(ctx context.Context, bookingID int) error
	MarkNoShow(ctx context.Context, bookingID int) error
	GetByID(ctx context.Context, bookingID int) (*Booking, error)
	ListByUser(ctx context.Context, userID int) ([]BookingWithDetails, error)
	Roster(ctx context.Context, instanceID int) ([]BookingWithDetails, error)
	Waitlist(ctx context.Context, instanceID int) ([]BookingWithDetails, error)
}

type service struct {
	repo     Repository
	grants   GrantStore
	settings SettingsSource
	events   Publisher
	now      func() time.Time
}

func NewService(repo Repository, grants GrantStore, settings SettingsSource, events Publisher) Service {
	return &service{
		repo:     repo,
		grants:   grants,
		settings: settings,
		events:   events,
		now:      time.Now,
	}
}

func purposeFor(kind string) string {
	if kind == schedule.KindPT {
		return entitlement.PurposePT
	}
	return entitlement.PurposeClass
}

// Request books a user into a session. The instance row lock
// serializes all transitions for the session, so the capacity check,
// the grant debit, and the insert commit atomically: the session can
// never hold more confirmed bookings than capacity.
func (s *service) Request(ctx context.Context, userID, instanceID int, grantID *int) (*Booking, error) {
	now := s.now()

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	info, err := s.repo.LockInstance(ctx, tx, instanceID)
	if err != nil {
		return nil, err
	}

	if !now.Before(info.StartsAt) {
		return nil, ErrSessionStarted
	}

	if info.Kind == schedule.KindClass {
		advance := s.settings.Int(ctx, settings.KeyClassBookingAdvanceDays, 7)
		if info.StartsAt.After(now.AddDate(0, 0, advance)) {
			return nil, ErrBookingTooFarAhead
		}
	}

	already, err := s.repo.HasActiveBookingTx(ctx, tx, userID, instanceID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, ErrAlreadyBooked
	}

	candidates, err := s.fundingCandidates(ctx, userID, purposeFor(info.Kind), grantID)
	if err != nil {
		return nil, err
	}

	confirmed, err := s.repo.CountConfirmedTx(ctx, tx, instanceID)
	if err != nil {
		return nil, err
	}

	var booking *Booking
	if confirmed < info.Capacity {
		booking, err = s.confirmTx(ctx, tx, userID, instanceID, candidates, grantID != nil)
	} else {
		booking, err = s.waitlistTx(ctx, tx, userID, instanceID, candidates[0].ID)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	metrics.RecordBooking(booking.Status, info.Kind)
	event := notify.EventBookingConfirmed
	if booking.Status == StatusWaitlisted {
		event = notify.EventBookingWaitlisted
	}
	s.events.Publish(ctx, event, userID, map[string]interface{}{
		"booking_id": booking.ID,
		"class_name": info.ClassName,
		"starts_at":  info.StartsAt,
	})

	return booking, nil
}

// fundingCandidates returns the grants to try debiting, in order. A
// pinned grant is validated and used alone; otherwise resolution is
// membership-first, soonest-expiry-first.
func (s *service) fundingCandidates(ctx context.Context, userID int, purpose string, grantID *int) ([]entitlement.Grant, error) {
	if grantID != nil {
		grant, err := s.grants.GetByID(ctx, *grantID)
		if err != nil {
			return nil, err
		}
		if grant.UserID != userID || grant.Purpose != purpose {
			return nil, entitlement.ErrNoActiveEntitlement
		}
		return []entitlement.Grant{*grant}, nil
	}

	candidates, err := s.grants.Resolve(ctx, userID, purpose)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, entitlement.ErrNoActiveEntitlement
	}
	return candidates, nil
}

func (s *service) confirmTx(ctx context.Context, tx *sqlx.Tx, userID, instanceID int, candidates []entitlement.Grant, pinned bool) (*Booking, error) {
	var funded *entitlement.Grant
	var debitErr error
	for i := range candidates {
		debitErr = s.grants.DebitTx(ctx, tx, candidates[i].ID, 1)
		if debitErr == nil {
			funded = &candidates[i]
			break
		}
		if pinned {
			// A pinned grant that cannot pay is an error, not a
			// fallthrough.
			return nil, debitErr
		}
	}
	if funded == nil {
		if debitErr != nil {
			return nil, debitErr
		}
		return nil, ErrNoFundingGrant
	}

	metrics.RecordGrantDebit(funded.Kind)
	return s.repo.InsertTx(ctx, tx, &Booking{
		UserID:     userID,
		InstanceID: instanceID,
		GrantID:    funded.ID,
		Status:     StatusConfirmed,
	})
}

func (s *service) waitlistTx(ctx context.Context, tx *sqlx.Tx, userID, instanceID, grantID int) (*Booking, error) {
	pos, err := s.repo.NextWaitlistPosTx(ctx, tx, instanceID)
	if err != nil {
		return nil, err
	}

	// No debit here; the stored grant is the candidate tried at
	// promotion time.
	return s.repo.InsertTx(ctx, tx, &Booking{
		UserID:      userID,
		InstanceID:  instanceID,
		GrantID:     grantID,
		Status:      StatusWaitlisted,
		WaitlistPos: &pos,
	})
}

// Cancel releases a booking. Cancelling a confirmed booking refunds
// its grant and, still inside the same transaction, promotes the
// earliest waitlisted booking whose grant can pay. Candidates whose
// grants fail to debit keep their waitlist spot and are skipped.
func (s *service) Cancel(ctx context.Context, userID, bookingID int, force bool) (*BookingResult, error) {
	now := s.now()

	// Read without a lock to learn the instance, then take locks in
	// the fixed order: instance first, booking second.
	peek, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !force && peek.UserID != userID {
		return nil, ErrNotYourBooking
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	info, err := s.repo.LockInstance(ctx, tx, peek.InstanceID)
	if err != nil {
		return nil, err
	}

	b, err := s.repo.GetForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusConfirmed && b.Status != StatusWaitlisted {
		return nil, ErrInvalidStatus
	}

	if !force {
		window := s.cancelWindow(ctx, info.Kind)
		if now.After(info.StartsAt.Add(-window)) {
			return nil, ErrTooSoonToCancel
		}
	}

	result := &BookingResult{}
	var skipped []Booking

	if err := s.repo.UpdateStatusTx(ctx, tx, b.ID, b.Status, StatusCancelled); err != nil {
		return nil, err
	}

	if b.Status == StatusConfirmed {
		if err := s.grants.CreditTx(ctx, tx, b.GrantID, 1); err != nil {
			return nil, err
		}

		result.Promoted, skipped, err = s.promoteTx(ctx, tx, info.InstanceID)
		if err != nil {
			return nil, err
		}
	}

	cancelled := *b
	cancelled.Status = StatusCancelled
	result.Booking = &cancelled

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	metrics.RecordBookingCancellation()
	s.events.Publish(ctx, notify.EventBookingCancelled, b.UserID, map[string]interface{}{
		"booking_id": b.ID,
		"class_name": info.ClassName,
	})

	for _, skip := range skipped {
		logger.Warn("Waitlist candidate skipped, grant not debitable",
			"booking_id", skip.ID, "user_id", skip.UserID, "grant_id", skip.GrantID)
		metrics.RecordWaitlistSkip()
		s.events.Publish(ctx, notify.EventWaitlistSkipped, skip.UserID, map[string]interface{}{
			"booking_id": skip.ID,
			"class_name": info.ClassName,
		})
	}

	if result.Promoted != nil {
		metrics.RecordWaitlistPromotion()
		s.events.Publish(ctx, notify.EventBookingPromoted, result.Promoted.UserID, map[string]interface{}{
			"booking_id": result.Promoted.ID,
			"class_name": info.ClassName,
			"starts_at":  info.StartsAt,
		})
	}

	return result, nil
}

func (s *service) cancelWindow(ctx context.Context, kind string) time.Duration {
	if kind == schedule.KindPT {
		return s.settings.Hours(ctx, settings.KeyPTCancelHours, 24)
	}
	return s.settings.Hours(ctx, settings.KeyClassCancelHours, 2)
}

// promoteTx walks the waitlist in position order and confirms the
// first booking whose stored grant debits. Runs under the instance
// lock held by Cancel.
func (s *service) promoteTx(ctx context.Context, tx *sqlx.Tx, instanceID int) (*Booking, []Booking, error) {
	waitlist, err := s.repo.WaitlistTx(ctx, tx, instanceID)
	if err != nil {
		return nil, nil, err
	}

	var skipped []Booking
	for i := range waitlist {
		candidate := waitlist[i]
		err := s.grants.DebitTx(ctx, tx, candidate.GrantID, 1)
		if err != nil {
			if errors.Is(err, entitlement.ErrInsufficientBalance) ||
				errors.Is(err, entitlement.ErrGrantExpired) ||
				errors.Is(err, entitlement.ErrGrantNotFound) {
				skipped = append(skipped, candidate)
				continue
			}
			return nil, nil, err
		}

		if err := s.repo.UpdateStatusTx(ctx, tx, candidate.ID, StatusWaitlisted, StatusConfirmed); err != nil {
			return nil, nil, err
		}

		promoted := candidate
		promoted.Status = StatusConfirmed
		promoted.WaitlistPos = nil
		return &promoted, skipped, nil
	}

	return nil, skipped, nil
}

func (s *service) MarkAttended(ctx context.Context, bookingID int) error {
	return s.markOutcome(ctx, bookingID, StatusAttended)
}

func (s *service) MarkNoShow(ctx context.Context, bookingID int) error {
	return s.markOutcome(ctx, bookingID, StatusNoShow)
}

// markOutcome settles a confirmed booking. Attendance can be recorded
// as soon as the session starts; a no-show only after it ended, since
// the member may still walk in late. No-shows keep their debit; the
// spot was held for them.
func (s *service) markOutcome(ctx context.Context, bookingID int, outcome string) error {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	info, err := s.repo.LockInstance(ctx, tx, b.InstanceID)
	if err != nil {
		return err
	}
	switch outcome {
	case StatusAttended:
		if s.now().Before(info.StartsAt) {
			return ErrSessionNotStarted
		}
	default:
		if s.now().Before(info.EndsAt) {
			return ErrSessionNotEnded
		}
	}

	if err := s.repo.UpdateStatusTx(ctx, tx, bookingID, StatusConfirmed, outcome); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *service) GetByID(ctx context.Context, bookingID int) (*Booking, error) {
	return s.repo.GetByID(ctx, bookingID)
}

func (s *service) ListByUser(ctx context.Context, userID int) ([]BookingWithDetails, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) Roster(ctx context.Context, instanceID int) ([]BookingWithDetails, error) {
	return s.repo.Roster(ctx, instanceID)
}

func (s *service) Waitlist(ctx context.Context, instanceID int) ([]BookingWithDetails, error) {
	return s.repo.Waitlist(ctx, instanceID)
}
