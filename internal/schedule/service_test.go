package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateTemplate(ctx context.Context, tpl *Template) (*Template, error) {
	args := m.Called(ctx, tpl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Template), args.Error(1)
}

func (m *MockRepository) GetTemplate(ctx context.Context, id int) (*Template, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Template), args.Error(1)
}

func (m *MockRepository) ListTemplates(ctx context.Context, branchID int) ([]Template, error) {
	args := m.Called(ctx, branchID)
	return args.Get(0).([]Template), args.Error(1)
}

func (m *MockRepository) DeactivateTemplate(ctx context.Context, id int) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) InsertInstance(ctx context.Context, inst *Instance) (*Instance, error) {
	args := m.Called(ctx, inst)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Instance), args.Error(1)
}

func (m *MockRepository) GetInstance(ctx context.Context, id int) (*Instance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Instance), args.Error(1)
}

func (m *MockRepository) GetInstanceByTemplateAndDate(ctx context.Context, templateID int, date time.Time) (*Instance, error) {
	args := m.Called(ctx, templateID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Instance), args.Error(1)
}

func (m *MockRepository) ListUpcoming(ctx context.Context, branchID int, from, to time.Time) ([]InstanceWithDetails, error) {
	args := m.Called(ctx, branchID, from, to)
	return args.Get(0).([]InstanceWithDetails), args.Error(1)
}

func weekdayPtr(d int) *int { return &d }

func TestCreateTemplate_RequiresExactlyOneRecurrence(t *testing.T) {
	service := NewService(new(MockRepository))

	_, err := service.CreateTemplate(context.Background(), CreateTemplateRequest{
		BranchID: 1, Kind: KindClass, ClassName: "Yoga Flow", InstructorID: 2,
		StartTime: "18:00", EndTime: "19:00", Capacity: 15,
	})
	assert.ErrorIs(t, err, ErrInvalidRecurrence)

	_, err = service.CreateTemplate(context.Background(), CreateTemplateRequest{
		BranchID: 1, Kind: KindClass, ClassName: "Yoga Flow", InstructorID: 2,
		Weekday: weekdayPtr(1), SpecificDate: "2025-03-10",
		StartTime: "18:00", EndTime: "19:00", Capacity: 15,
	})
	assert.ErrorIs(t, err, ErrInvalidRecurrence)
}

func TestMaterializeInstance(t *testing.T) {
	// 2025-03-10 is a Monday.
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		template    *Template
		date        time.Time
		expectedErr error
	}{
		{
			name: "weekday matches",
			template: &Template{
				ID: 1, Weekday: weekdayPtr(1), StartTime: "18:00", EndTime: "19:00",
				Capacity: 15, Active: true,
			},
			date: monday,
		},
		{
			name: "weekday mismatch",
			template: &Template{
				ID: 1, Weekday: weekdayPtr(3), StartTime: "18:00", EndTime: "19:00",
				Capacity: 15, Active: true,
			},
			date:        monday,
			expectedErr: ErrDateMismatch,
		},
		{
			name: "inactive template",
			template: &Template{
				ID: 1, Weekday: weekdayPtr(1), StartTime: "18:00", EndTime: "19:00",
				Capacity: 15, Active: false,
			},
			date:        monday,
			expectedErr: ErrTemplateInactive,
		},
		{
			name: "specific date matches",
			template: &Template{
				ID: 1, SpecificDate: &monday, StartTime: "10:00", EndTime: "11:00",
				Capacity: 1, Active: true,
			},
			date: monday,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			mockRepo.On("GetTemplate", mock.Anything, 1).Return(tt.template, nil)

			if tt.expectedErr == nil {
				mockRepo.On("InsertInstance", mock.Anything, mock.MatchedBy(func(inst *Instance) bool {
					return inst.TemplateID == 1 &&
						inst.StartsAt.Hour() != 0 &&
						inst.EndsAt.After(inst.StartsAt) &&
						inst.Capacity == tt.template.Capacity
				})).Return(&Instance{ID: 42, TemplateID: 1}, nil)
			}

			service := NewService(mockRepo)
			inst, err := service.MaterializeInstance(context.Background(), 1, tt.date)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 42, inst.ID)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestMaterializeInstance_CrossMidnight(t *testing.T) {
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	mockRepo := new(MockRepository)
	mockRepo.On("GetTemplate", mock.Anything, 1).Return(&Template{
		ID: 1, Weekday: weekdayPtr(1), StartTime: "23:00", EndTime: "00:30",
		Capacity: 10, Active: true,
	}, nil)
	mockRepo.On("InsertInstance", mock.Anything, mock.MatchedBy(func(inst *Instance) bool {
		return inst.EndsAt.After(inst.StartsAt) && inst.EndsAt.Day() == 11
	})).Return(&Instance{ID: 7}, nil)

	service := NewService(mockRepo)
	_, err := service.MaterializeInstance(context.Background(), 1, monday)
	require.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestTemplate_MatchesDate(t *testing.T) {
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	weekly := Template{Weekday: weekdayPtr(1)}
	assert.True(t, weekly.MatchesDate(monday))
	assert.False(t, weekly.MatchesDate(monday.AddDate(0, 0, 1)))

	oneOff := Template{SpecificDate: &monday}
	assert.True(t, oneOff.MatchesDate(monday.Add(5*time.Hour)))
	assert.False(t, oneOff.MatchesDate(monday.AddDate(0, 0, 7)))
}
