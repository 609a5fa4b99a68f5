package billing

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvalidTransition    = errors.New("subscription is not in a state that allows this")
	ErrInvoiceSettled       = errors.New("invoice for this period is settled or in flight")
)

const subscriptionColumns = `id, user_id, grant_kind, grant_purposes, grant_total, grant_duration_days,
	package_ref, billing_cycle, price_cents, next_billing_date, retry_count, status, paused_until,
	created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, sub *Subscription) (*Subscription, error) {
	var created Subscription
	err := r.db.GetContext(ctx, &created, `
		INSERT INTO subscriptions (user_id, grant_kind, grant_purposes, grant_total, grant_duration_days,
			package_ref, billing_cycle, price_cents, next_billing_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'active')
		RETURNING `+subscriptionColumns,
		sub.UserID, sub.GrantKind, sub.GrantPurposes, sub.GrantTotal, sub.GrantDurationDays,
		sub.PackageRef, sub.BillingCycle, sub.PriceCents, sub.NextBillingDate)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Subscription, error) {
	var sub Subscription
	err := r.db.GetContext(ctx, &sub,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) ListByUser(ctx context.Context, userID int) ([]Subscription, error) {
	subs := []Subscription{}
	err := r.db.SelectContext(ctx, &subs,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	return subs, err
}

// DueSubscriptions returns active subscriptions whose billing date has
// arrived. Paused subscriptions sit in their own status, so a pause
// never shows up here regardless of the date.
func (r *repository) DueSubscriptions(ctx context.Context, today time.Time) ([]Subscription, error) {
	subs := []Subscription{}
	err := r.db.SelectContext(ctx, &subs, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE status = 'active' AND next_billing_date <= $1
		ORDER BY next_billing_date ASC, id ASC
	`, today)
	return subs, err
}

// ClaimInvoice creates the period's invoice in the charging state, or
// takes over an unsettled one. The conditional upsert is the sweep's
// mutual exclusion: a paid invoice, or one another worker is charging
// right now, updates no row and comes back ErrInvoiceSettled. A claim
// older than fifteen minutes counts as abandoned and may be retaken.
func (r *repository) ClaimInvoice(ctx context.Context, subscriptionID int, periodKey string, amountCents int64) (*Invoice, error) {
	var inv Invoice
	err := r.db.GetContext(ctx, &inv, `
		INSERT INTO invoices (subscription_id, period_key, amount_cents, status, attempted_at)
		VALUES ($1, $2, $3, 'charging', NOW())
		ON CONFLICT (subscription_id, period_key)
		DO UPDATE SET status = 'charging', attempted_at = NOW()
		WHERE invoices.status IN ('pending', 'failed')
		   OR (invoices.status = 'charging' AND invoices.attempted_at < NOW() - INTERVAL '15 minutes')
		RETURNING id, subscription_id, period_key, amount_cents, status, attempted_at, created_at
	`, subscriptionID, periodKey, amountCents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvoiceSettled
		}
		return nil, err
	}
	return &inv, nil
}

func (r *repository) MarkInvoice(ctx context.Context, invoiceID int, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET status = $2, attempted_at = NOW() WHERE id = $1`,
		invoiceID, status)
	return err
}

func (r *repository) RenewalSuccess(ctx context.Context, subscriptionID int, nextBillingDate time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET next_billing_date = $2, retry_count = 0, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`, subscriptionID, nextBillingDate)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// RenewalFailure bumps the retry counter and reschedules, returning
// the new count so the caller can decide on exhaustion.
func (r *repository) RenewalFailure(ctx context.Context, subscriptionID int, nextAttempt time.Time) (int, error) {
	var retryCount int
	err := r.db.GetContext(ctx, &retryCount, `
		UPDATE subscriptions
		SET retry_count = retry_count + 1, next_billing_date = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
		RETURNING retry_count
	`, subscriptionID, nextAttempt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrSubscriptionNotFound
		}
		return 0, err
	}
	return retryCount, nil
}

func (r *repository) MarkFailed(ctx context.Context, subscriptionID int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions SET status = 'failed', updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`, subscriptionID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (r *repository) Pause(ctx context.Context, subscriptionID int, until time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions SET status = 'paused', paused_until = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`, subscriptionID, until)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// Resume reactivates a paused subscription. The next billing date is
// pushed out to the pause end so skipped periods are never back-billed.
func (r *repository) Resume(ctx context.Context, subscriptionID int) (*Subscription, error) {
	var sub Subscription
	err := r.db.GetContext(ctx, &sub, `
		UPDATE subscriptions
		SET status = 'active',
		    next_billing_date = GREATEST(next_billing_date, paused_until),
		    paused_until = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'paused'
		RETURNING `+subscriptionColumns, subscriptionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) Cancel(ctx context.Context, subscriptionID int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status IN ('active', 'paused')
	`, subscriptionID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInvalidTransition
	}
	return nil
}
