package user

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/yoganurrahman/moolai-gym-api/internal/auth"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, name, email, phone, passwordHash, role string, branchID int) (*User, error) {
	args := m.Called(ctx, name, email, phone, passwordHash, role, branchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockRepository) FindByID(ctx context.Context, id int) (*User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) Recipient(ctx context.Context, id int) (string, string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.String(1), args.Error(2)
}

func TestService_Register(t *testing.T) {
	tests := []struct {
		name          string
		req           RegisterRequest
		setupMock     func(*MockRepository)
		expectedError error
	}{
		{
			name: "successful registration",
			req: RegisterRequest{
				Name:     "Ayu Lestari",
				Email:    "ayu@example.com",
				Password: "password123",
				BranchID: 1,
			},
			setupMock: func(m *MockRepository) {
				m.On("EmailExists", mock.Anything, "ayu@example.com").Return(false, nil)
				m.On("Create", mock.Anything, "Ayu Lestari", "ayu@example.com", "", mock.Anything, "member", 1).Return(&User{
					ID:       1,
					Name:     "Ayu Lestari",
					Email:    "ayu@example.com",
					Role:     "member",
					BranchID: 1,
				}, nil)
			},
		},
		{
			name: "email already exists",
			req: RegisterRequest{
				Name:     "Ayu Lestari",
				Email:    "existing@example.com",
				Password: "password123",
				BranchID: 1,
			},
			setupMock: func(m *MockRepository) {
				m.On("EmailExists", mock.Anything, "existing@example.com").Return(true, nil)
			},
			expectedError: ErrEmailExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			tt.setupMock(mockRepo)

			service := NewService(mockRepo, "test-secret")
			user, accessToken, refreshToken, err := service.Register(context.Background(), tt.req)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, user)
				assert.Empty(t, accessToken)
				assert.Empty(t, refreshToken)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, user)
				assert.NotEmpty(t, accessToken)
				assert.NotEmpty(t, refreshToken)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestService_Login(t *testing.T) {
	passwordHash, _ := auth.HashPassword("password123")

	tests := []struct {
		name          string
		req           LoginRequest
		setupMock     func(*MockRepository)
		expectedError error
	}{
		{
			name: "successful login",
			req: LoginRequest{
				Email:    "ayu@example.com",
				Password: "password123",
			},
			setupMock: func(m *MockRepository) {
				m.On("FindByEmail", mock.Anything, "ayu@example.com").Return(&User{
					ID:           1,
					Email:        "ayu@example.com",
					PasswordHash: passwordHash,
					Role:         "member",
					BranchID:     1,
				}, nil)
			},
		},
		{
			name: "user not found",
			req: LoginRequest{
				Email:    "notfound@example.com",
				Password: "password123",
			},
			setupMock: func(m *MockRepository) {
				m.On("FindByEmail", mock.Anything, "notfound@example.com").Return(nil, errors.New("not found"))
			},
			expectedError: ErrInvalidCredentials,
		},
		{
			name: "wrong password",
			req: LoginRequest{
				Email:    "ayu@example.com",
				Password: "wrong-password",
			},
			setupMock: func(m *MockRepository) {
				m.On("FindByEmail", mock.Anything, "ayu@example.com").Return(&User{
					ID:           1,
					Email:        "ayu@example.com",
					PasswordHash: passwordHash,
					Role:         "member",
				}, nil)
			},
			expectedError: ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			tt.setupMock(mockRepo)

			service := NewService(mockRepo, "test-secret")
			user, accessToken, refreshToken, err := service.Login(context.Background(), tt.req)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, user)
				assert.Empty(t, accessToken)
				assert.Empty(t, refreshToken)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, user)
				assert.NotEmpty(t, accessToken)
				assert.NotEmpty(t, refreshToken)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestService_RefreshToken(t *testing.T) {
	mockRepo := new(MockRepository)
	mockRepo.On("FindByID", mock.Anything, 7).Return(&User{
		ID:       7,
		Email:    "ayu@example.com",
		Role:     "member",
		BranchID: 2,
	}, nil)

	service := NewService(mockRepo, "test-secret")

	refreshToken, err := auth.GenerateRefreshToken(7, "ayu@example.com", "member", 2, "test-secret")
	assert.NoError(t, err)

	accessToken, user, err := service.RefreshToken(context.Background(), refreshToken)
	assert.NoError(t, err)
	assert.NotEmpty(t, accessToken)
	assert.Equal(t, 7, user.ID)
	mockRepo.AssertExpectations(t)
}
