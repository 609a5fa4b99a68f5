package checkin

import (
	"context"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yoganurrahman/moolai-gym-api/internal/booking"
	"github.com/yoganurrahman/moolai-gym-api/internal/entitlement"
	"github.com/yoganurrahman/moolai-gym-api/internal/metrics"
	"github.com/yoganurrahman/moolai-gym-api/internal/notify"
	"github.com/yoganurrahman/moolai-gym-api/internal/schedule"
	"github.com/yoganurrahman/moolai-gym-api/internal/settings"
)

var (
	ErrAlreadyCheckedIn   = errors.New("user already has an open check-in")
	ErrTooSoonToCheckin   = errors.New("check-in cooldown has not elapsed")
	ErrBookingNotEligible = errors.New("booking cannot admit this check-in")
)

type GrantStore interface {
	Resolve(ctx context.Context, userID int, purpose string) ([]entitlement.Grant, error)
	DebitTx(ctx context.Context, tx *sqlx.Tx, grantID, n int) error
}

type SettingsSource interface {
	Int(ctx context.Context, key string, def int) int
	Minutes(ctx context.Context, key string, def int) time.Duration
}

type Publisher interface {
	Publish(ctx context.Context, kind string, userID int, payload map[string]interface{})
}

type Service interface {
	CheckIn(ctx context.Context, req CheckInRequest) (*Checkin, error)
	CheckOut(ctx context.Context, userID int) (bool, error)
	Status(ctx context.Context, userID int) (*Checkin, error)
	PresenceByBranch(ctx context.Context, branchID int, date time.Time) ([]CheckinWithUser, error)
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

// CheckIn admits a member through the gate. The user row lock makes
// the open-record and cooldown checks race-free: two doors scanning
// the same card get serialized and the second one fails cleanly.
func (s *service) CheckIn(ctx context.Context, req CheckInRequest) (*Checkin, error) {
	now := s.now()
	if req.Method == "" {
		req.Method = MethodManual
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.repo.LockUserTx(ctx, tx, req.UserID); err != nil {
		return nil, err
	}

	open, err := s.repo.OpenCheckinTx(ctx, tx, req.UserID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		// With checkout not enforced, a stale open visit is closed at
		// the gate instead of blocking the member.
		if s.settings.Int(ctx, settings.KeyCheckinRequireCheckout, 1) != 0 {
			return nil, ErrAlreadyCheckedIn
		}
		if err := s.repo.CloseOpenTx(ctx, tx, req.UserID, now); err != nil {
			return nil, err
		}
	}

	last, err := s.repo.LastCheckinTx(ctx, tx, req.UserID)
	if err != nil {
		return nil, err
	}
	if last != nil {
		cooldown := s.settings.Minutes(ctx, settings.KeyCheckinCooldownMinutes, 60)
		if now.Sub(last.CheckinTime) < cooldown {
			return nil, ErrTooSoonToCheckin
		}
	}

	record := &Checkin{
		BranchID:    req.BranchID,
		UserID:      req.UserID,
		Type:        req.Type,
		BookingID:   req.BookingID,
		CheckinTime: now,
		Method:      req.Method,
	}

	switch req.Type {
	case TypeGym:
		err = s.fundGymVisitTx(ctx, tx, record)
	default:
		err = s.fundSessionVisitTx(ctx, tx, record, now)
	}
	if err != nil {
		return nil, err
	}

	created, err := s.repo.InsertTx(ctx, tx, record)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	metrics.RecordCheckin(req.Type)
	s.events.Publish(ctx, notify.EventCheckinRecorded, req.UserID, map[string]interface{}{
		"checkin_id": created.ID,
		"branch_id":  req.BranchID,
		"type":       req.Type,
	})

	return created, nil
}

// fundGymVisitTx finds a grant covering gym access. Unlimited
// memberships admit without spending; visit-quota grants debit one.
func (s *service) fundGymVisitTx(ctx context.Context, tx *sqlx.Tx, record *Checkin) error {
	candidates, err := s.grants.Resolve(ctx, record.UserID, entitlement.PurposeGym)
	if err != nil {
		return err
	}

	for i := range candidates {
		g := &candidates[i]
		if g.Unlimited() {
			record.GrantID = &g.ID
			return nil
		}
		if err := s.grants.DebitTx(ctx, tx, g.ID, 1); err == nil {
			record.GrantID = &g.ID
			metrics.RecordGrantDebit(g.Kind)
			return nil
		}
	}

	return entitlement.ErrNoActiveEntitlement
}

// fundSessionVisitTx admits class_only and pt check-ins: either a
// confirmed booking for today (already paid for) or a manual admission
// debiting a qualifying grant.
func (s *service) fundSessionVisitTx(ctx context.Context, tx *sqlx.Tx, record *Checkin, now time.Time) error {
	if record.BookingID != nil {
		ref, err := s.repo.ConfirmedBookingTx(ctx, tx, *record.BookingID)
		if err != nil {
			return err
		}
		if ref.UserID != record.UserID || ref.Status != booking.StatusConfirmed {
			return ErrBookingNotEligible
		}
		if !sameDay(ref.StartsAt, now) {
			return ErrBookingNotEligible
		}
		expectedKind := schedule.KindClass
		if record.Type == TypePT {
			expectedKind = schedule.KindPT
		}
		if ref.Kind != expectedKind {
			return ErrBookingNotEligible
		}

		// The booking already debited its grant; the visit rides on it.
		record.GrantID = &ref.GrantID
		return nil
	}

	purpose := entitlement.PurposeClass
	if record.Type == TypePT {
		purpose = entitlement.PurposePT
	}

	candidates, err := s.grants.Resolve(ctx, record.UserID, purpose)
	if err != nil {
		return err
	}

	for i := range candidates {
		g := &candidates[i]
		if err := s.grants.DebitTx(ctx, tx, g.ID, 1); err == nil {
			record.GrantID = &g.ID
			metrics.RecordGrantDebit(g.Kind)
			return nil
		}
	}

	return entitlement.ErrNoActiveEntitlement
}

func (s *service) CheckOut(ctx context.Context, userID int) (bool, error) {
	return s.repo.CheckOut(ctx, userID, s.now())
}

// Status returns the member's open visit, or nil when none is open.
func (s *service) Status(ctx context.Context, userID int) (*Checkin, error) {
	return s.repo.Open(ctx, userID)
}

func (s *service) PresenceByBranch(ctx context.Context, branchID int, date time.Time) ([]CheckinWithUser, error) {
	return s.repo.PresenceByBranch(ctx, branchID, date)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
