package schedule

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTemplateInactive  = errors.New("session template is inactive")
	ErrDateMismatch      = errors.New("date does not match the template recurrence")
	ErrInvalidRecurrence = errors.New("exactly one of weekday or specific_date must be set")
)

type Service interface {
	CreateTemplate(ctx context.Context, req CreateTemplateRequest) (*Template, error)
	GetTemplate(ctx context.Context, id int) (*Template, error)
	ListTemplates(ctx context.Context, branchID int) ([]Template, error)
	Deactivate(ctx context.Context, id int) error
	MaterializeInstance(ctx context.Context, templateID int, date time.Time) (*Instance, error)
	GetInstance(ctx context.Context, id int) (*Instance, error)
	ListUpcoming(ctx context.Context, branchID int, from, to time.Time) ([]InstanceWithDetails, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateTemplate(ctx context.Context, req CreateTemplateRequest) (*Template, error) {
	var specificDate *time.Time
	if req.SpecificDate != "" {
		parsed, err := time.Parse("2006-01-02", req.SpecificDate)
		if err != nil {
			return nil, err
		}
		specificDate = &parsed
	}

	if (req.Weekday == nil) == (specificDate == nil) {
		return nil, ErrInvalidRecurrence
	}

	return s.repo.CreateTemplate(ctx, &Template{
		BranchID:     req.BranchID,
		Kind:         req.Kind,
		ClassName:    req.ClassName,
		InstructorID: req.InstructorID,
		Weekday:      req.Weekday,
		SpecificDate: specificDate,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Capacity:     req.Capacity,
		Room:         req.Room,
	})
}

func (s *service) GetTemplate(ctx context.Context, id int) (*Template, error) {
	return s.repo.GetTemplate(ctx, id)
}

func (s *service) ListTemplates(ctx context.Context, branchID int) ([]Template, error) {
	return s.repo.ListTemplates(ctx, branchID)
}

func (s *service) Deactivate(ctx context.Context, id int) error {
	return s.repo.DeactivateTemplate(ctx, id)
}

// MaterializeInstance turns a template plus a date into the concrete
// session row bookings attach to. Safe to call repeatedly and
// concurrently for the same date.
func (s *service) MaterializeInstance(ctx context.Context, templateID int, date time.Time) (*Instance, error) {
	tpl, err := s.repo.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !tpl.Active {
		return nil, ErrTemplateInactive
	}
	if !tpl.MatchesDate(date) {
		return nil, ErrDateMismatch
	}

	startsAt, err := combine(date, tpl.StartTime)
	if err != nil {
		return nil, err
	}
	endsAt, err := combine(date, tpl.EndTime)
	if err != nil {
		return nil, err
	}
	if !endsAt.After(startsAt) {
		// Sessions that run past midnight end on the next day.
		endsAt = endsAt.AddDate(0, 0, 1)
	}

	return s.repo.InsertInstance(ctx, &Instance{
		TemplateID:  templateID,
		SessionDate: truncateToDay(date),
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		Capacity:    tpl.Capacity,
	})
}

func (s *service) GetInstance(ctx context.Context, id int) (*Instance, error) {
	return s.repo.GetInstance(ctx, id)
}

func (s *service) ListUpcoming(ctx context.Context, branchID int, from, to time.Time) ([]InstanceWithDetails, error) {
	return s.repo.ListUpcoming(ctx, branchID, from, to)
}

// MatchesDate reports whether the template recurs on the given date.
func (t *Template) MatchesDate(date time.Time) bool {
	if t.Weekday != nil {
		return int(date.Weekday()) == *t.Weekday
	}
	if t.SpecificDate != nil {
		return truncateToDay(date).Equal(truncateToDay(*t.SpecificDate))
	}
	return false
}

func combine(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		// TIME columns scan back with seconds.
		t, err = time.Parse("15:04:05", clock)
		if err != nil {
			return time.Time{}, err
		}
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
