package billing

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, sub *Subscription) (*Subscription, error)
	GetByID(ctx context.Context, id int) (*Subscription, error)
	ListByUser(ctx context.Context, userID int) ([]Subscription, error)
	DueSubscriptions(ctx context.Context, today time.Time) ([]Subscription, error)

	ClaimInvoice(ctx context.Context, subscriptionID int, periodKey string, amountCents int64) (*Invoice, error)
	MarkInvoice(ctx context.Context, invoiceID int, status string) error

	RenewalSuccess(ctx context.Context, subscriptionID int, nextBillingDate time.Time) error
	RenewalFailure(ctx context.Context, subscriptionID int, nextAttempt time.Time) (int, error)
	MarkFailed(ctx context.Context, subscriptionID int) error

	Pause(ctx context.Context, subscriptionID int, until time.Time) error
	Resume(ctx context.Context, subscriptionID int) (*Subscription, error)
	Cancel(ctx context.Context, subscriptionID int) error
}
