package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yoganurrahman/moolai-gym-api/internal/entitlement"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, sub *Subscription) (*Subscription, error) {
	args := m.Called(ctx, sub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Subscription), args.Error(1)
}

func (m *MockRepository) GetByID(ctx context.Context, id int) (*Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Subscription), args.Error(1)
}

func (m *MockRepository) ListByUser(ctx context.Context, userID int) ([]Subscription, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]Subscription), args.Error(1)
}

func (m *MockRepository) DueSubscriptions(ctx context.Context, today time.Time) ([]Subscription, error) {
	args := m.Called(ctx, today)
	return args.Get(0).([]Subscription), args.Error(1)
}

func (m *MockRepository) ClaimInvoice(ctx context.Context, subscriptionID int, periodKey string, amountCents int64) (*Invoice, error) {
	args := m.Called(ctx, subscriptionID, periodKey, amountCents)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Invoice), args.Error(1)
}

func (m *MockRepository) MarkInvoice(ctx context.Context, invoiceID int, status string) error {
	args := m.Called(ctx, invoiceID, status)
	return args.Error(0)
}

func (m *MockRepository) RenewalSuccess(ctx context.Context, subscriptionID int, nextBillingDate time.Time) error {
	args := m.Called(ctx, subscriptionID, nextBillingDate)
	return args.Error(0)
}

func (m *MockRepository) RenewalFailure(ctx context.Context, subscriptionID int, nextAttempt time.Time) (int, error) {
	args := m.Called(ctx, subscriptionID, nextAttempt)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) MarkFailed(ctx context.Context, subscriptionID int) error {
	args := m.Called(ctx, subscriptionID)
	return args.Error(0)
}

func (m *MockRepository) Pause(ctx context.Context, subscriptionID int, until time.Time) error {
	args := m.Called(ctx, subscriptionID, until)
	return args.Error(0)
}

func (m *MockRepository) Resume(ctx context.Context, subscriptionID int) (*Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Subscription), args.Error(1)
}

func (m *MockRepository) Cancel(ctx context.Context, subscriptionID int) error {
	args := m.Called(ctx, subscriptionID)
	return args.Error(0)
}

type stubCharger struct {
	err  error
	refs []string
}

func (c *stubCharger) Charge(ctx context.Context, userID int, amountCents int64, reference string) error {
	c.refs = append(c.refs, reference)
	return c.err
}

type blockingCharger struct{}

func (c *blockingCharger) Charge(ctx context.Context, userID int, amountCents int64, reference string) error {
	<-ctx.Done()
	return ctx.Err()
}

type stubIssuer struct {
	reqs []entitlement.PurchaseRequest
	err  error
}

func (i *stubIssuer) Purchase(ctx context.Context, req entitlement.PurchaseRequest) ([]entitlement.Grant, error) {
	i.reqs = append(i.reqs, req)
	if i.err != nil {
		return nil, i.err
	}
	return []entitlement.Grant{{ID: 1, UserID: req.UserID}}, nil
}

type stubSettings struct {
	values map[string]int
}

func (s *stubSettings) Int(ctx context.Context, key string, def int) int {
	if v, ok := s.values[key]; ok {
		return v
	}
	return def
}

type stubPublisher struct {
	events []string
}

func (p *stubPublisher) Publish(ctx context.Context, kind string, userID int, payload map[string]interface{}) {
	p.events = append(p.events, kind)
}

func newBillingService(repo Repository, charger Charger, issuer GrantIssuer, pub Publisher, now time.Time) *service {
	return &service{
		repo:          repo,
		charger:       charger,
		grants:        issuer,
		settings:      &stubSettings{},
		publisher:     pub,
		chargeTimeout: time.Second,
		now:           func() time.Time { return now },
	}
}

func dueSub(id int) Subscription {
	total := 10
	return Subscription{
		ID:                id,
		UserID:            7,
		GrantKind:         "class_pass",
		GrantPurposes:     []string{"class"},
		GrantTotal:        &total,
		GrantDurationDays: 30,
		PackageRef:        "class-10",
		BillingCycle:      CycleMonthly,
		PriceCents:        50000,
		NextBillingDate:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Status:            StatusActive,
	}
}

func TestSweep_RenewsDueSubscription(t *testing.T) {
	today := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sub := dueSub(3)

	mockRepo := new(MockRepository)
	charger := &stubCharger{}
	issuer := &stubIssuer{}
	pub := &stubPublisher{}
	svc := newBillingService(mockRepo, charger, issuer, pub, today)

	mockRepo.On("DueSubscriptions", mock.Anything, today).Return([]Subscription{sub}, nil)
	mockRepo.On("ClaimInvoice", mock.Anything, 3, "2025-06-01", int64(50000)).
		Return(&Invoice{ID: 11, SubscriptionID: 3, PeriodKey: "2025-06-01", Status: InvoiceCharging}, nil)
	mockRepo.On("MarkInvoice", mock.Anything, 11, InvoicePaid).Return(nil)
	mockRepo.On("RenewalSuccess", mock.Anything, 3, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)).Return(nil)

	report, err := svc.Sweep(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Renewed)
	assert.Equal(t, []string{"sub-3-2025-06-01"}, charger.refs)

	require.Len(t, issuer.reqs, 1)
	assert.Equal(t, 7, issuer.reqs[0].UserID)
	assert.Equal(t, "class_pass", issuer.reqs[0].Kind)
	assert.Equal(t, []string{"class"}, issuer.reqs[0].Purposes)
	require.NotNil(t, issuer.reqs[0].ExpireDate)
	assert.Equal(t, today.AddDate(0, 0, 30), *issuer.reqs[0].ExpireDate)

	assert.Equal(t, []string{"subscription.renewed"}, pub.events)
	mockRepo.AssertExpectations(t)
}

func TestSweep_SettledInvoiceSkipsCharge(t *testing.T) {
	today := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sub := dueSub(3)

	mockRepo := new(MockRepository)
	charger := &stubCharger{}
	svc := newBillingService(mockRepo, charger, &stubIssuer{}, &stubPublisher{}, today)

	// The claim loses: the period is paid or another sweep holds it.
	mockRepo.On("DueSubscriptions", mock.Anything, today).Return([]Subscription{sub}, nil)
	mockRepo.On("ClaimInvoice", mock.Anything, 3, "2025-06-01", int64(50000)).
		Return(nil, ErrInvoiceSettled)

	report, err := svc.Sweep(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, charger.refs)
	mockRepo.AssertNotCalled(t, "MarkInvoice", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweep_ChargeFailureSchedulesRetry(t *testing.T) {
	today := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sub := dueSub(3)

	mockRepo := new(MockRepository)
	charger := &stubCharger{err: errors.New("card declined")}
	pub := &stubPublisher{}
	svc := newBillingService(mockRepo, charger, &stubIssuer{}, pub, today)

	mockRepo.On("DueSubscriptions", mock.Anything, today).Return([]Subscription{sub}, nil)
	mockRepo.On("ClaimInvoice", mock.Anything, 3, "2025-06-01", int64(50000)).
		Return(&Invoice{ID: 11, Status: InvoiceCharging}, nil)
	mockRepo.On("MarkInvoice", mock.Anything, 11, InvoiceFailed).Return(nil)
	mockRepo.On("RenewalFailure", mock.Anything, 3, today.AddDate(0, 0, 3)).Return(1, nil)

	report, err := svc.Sweep(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Retried)
	assert.Empty(t, pub.events)
	mockRepo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything)
	mockRepo.AssertExpectations(t)
}

func TestSweep_RetryExhaustionFailsSubscription(t *testing.T) {
	today := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	sub := dueSub(3)
	sub.RetryCount = 2

	mockRepo := new(MockRepository)
	charger := &stubCharger{err: errors.New("card declined")}
	pub := &stubPublisher{}
	svc := newBillingService(mockRepo, charger, &stubIssuer{}, pub, today)

	mockRepo.On("DueSubscriptions", mock.Anything, today).Return([]Subscription{sub}, nil)
	mockRepo.On("ClaimInvoice", mock.Anything, 3, "2025-06-01", int64(50000)).
		Return(&Invoice{ID: 12, Status: InvoiceCharging}, nil)
	mockRepo.On("MarkInvoice", mock.Anything, 12, InvoiceFailed).Return(nil)
	mockRepo.On("RenewalFailure", mock.Anything, 3, today.AddDate(0, 0, 3)).Return(3, nil)
	mockRepo.On("MarkFailed", mock.Anything, 3).Return(nil)

	report, err := svc.Sweep(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"subscription.failed"}, pub.events)
	mockRepo.AssertExpectations(t)
}

func TestSweep_ChargeTimeoutCountsAsFailure(t *testing.T) {
	today := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sub := dueSub(3)

	mockRepo := new(MockRepository)
	svc := newBillingService(mockRepo, &blockingCharger{}, &stubIssuer{}, &stubPublisher{}, today)
	svc.chargeTimeout = 10 * time.Millisecond

	mockRepo.On("DueSubscriptions", mock.Anything, today).Return([]Subscription{sub}, nil)
	mockRepo.On("ClaimInvoice", mock.Anything, 3, "2025-06-01", int64(50000)).
		Return(&Invoice{ID: 11, Status: InvoiceCharging}, nil)
	mockRepo.On("MarkInvoice", mock.Anything, 11, InvoiceFailed).Return(nil)
	mockRepo.On("RenewalFailure", mock.Anything, 3, mock.Anything).Return(1, nil)

	report, err := svc.Sweep(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Retried)
	mockRepo.AssertNotCalled(t, "RenewalSuccess", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweep_GrantIssuanceFailureDoesNotAdvance(t *testing.T) {
	today := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sub := dueSub(3)

	mockRepo := new(MockRepository)
	issuer := &stubIssuer{err: errors.New("db down")}
	svc := newBillingService(mockRepo, &stubCharger{}, issuer, &stubPublisher{}, today)

	mockRepo.On("DueSubscriptions", mock.Anything, today).Return([]Subscription{sub}, nil)
	mockRepo.On("ClaimInvoice", mock.Anything, 3, "2025-06-01", int64(50000)).
		Return(&Invoice{ID: 11, Status: InvoiceCharging}, nil)
	mockRepo.On("MarkInvoice", mock.Anything, 11, InvoicePaid).Return(nil)

	report, err := svc.Sweep(context.Background(), today)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	mockRepo.AssertNotCalled(t, "RenewalSuccess", mock.Anything, mock.Anything, mock.Anything)
}

func TestPause_RejectsPastDate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := newBillingService(new(MockRepository), &stubCharger{}, &stubIssuer{}, &stubPublisher{}, now)

	err := svc.Pause(context.Background(), 1, now.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, ErrPauseInPast)
}

func TestPause_PassesThrough(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	until := now.AddDate(0, 1, 0)

	mockRepo := new(MockRepository)
	mockRepo.On("Pause", mock.Anything, 1, until).Return(nil)
	svc := newBillingService(mockRepo, &stubCharger{}, &stubIssuer{}, &stubPublisher{}, now)

	require.NoError(t, svc.Pause(context.Background(), 1, until))
	mockRepo.AssertExpectations(t)
}

func TestSubscribe_BillsFromToday(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)
	mockRepo := new(MockRepository)
	svc := newBillingService(mockRepo, &stubCharger{}, &stubIssuer{}, &stubPublisher{}, now)

	mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(sub *Subscription) bool {
		return sub.NextBillingDate.Equal(time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC))
	})).Return(&Subscription{ID: 1}, nil)

	_, err := svc.Subscribe(context.Background(), SubscribeRequest{
		UserID:            7,
		GrantKind:         "membership",
		GrantPurposes:     []string{"gym"},
		GrantDurationDays: 30,
		PackageRef:        "gold",
		BillingCycle:      CycleMonthly,
		PriceCents:        100000,
	})
	require.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestNextCycleDate(t *testing.T) {
	today := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		scheduled time.Time
		cycle     string
		want      time.Time
	}{
		{
			name:      "monthly advances from schedule",
			scheduled: time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC),
			cycle:     CycleMonthly,
			want:      time.Date(2025, 7, 20, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "weekly advances from schedule",
			scheduled: time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC),
			cycle:     CycleWeekly,
			want:      time.Date(2025, 6, 27, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "drifted schedule picks up from today",
			scheduled: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			cycle:     CycleMonthly,
			want:      time.Date(2025, 7, 20, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextCycleDate(tt.scheduled, tt.cycle, today))
		})
	}
}
