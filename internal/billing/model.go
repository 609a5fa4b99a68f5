package billing

import (
	"time"

	"github.com/lib/pq"
)

const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"

	CycleWeekly  = "weekly"
	CycleMonthly = "monthly"
	CycleYearly  = "yearly"

	InvoicePending  = "pending"
	InvoiceCharging = "charging"
	InvoicePaid     = "paid"
	InvoiceFailed   = "failed"
)

// Subscription is a recurring purchase of an entitlement package. The
// grant fields describe what to issue on every successful renewal.
type Subscription struct {
	ID                int            `db:"id" json:"id"`
	UserID            int            `db:"user_id" json:"user_id"`
	GrantKind         string         `db:"grant_kind" json:"grant_kind"`
	GrantPurposes     pq.StringArray `db:"grant_purposes" json:"grant_purposes"`
	GrantTotal        *int           `db:"grant_total" json:"grant_total"`
	GrantDurationDays int            `db:"grant_duration_days" json:"grant_duration_days"`
	PackageRef        string         `db:"package_ref" json:"package_ref"`
	BillingCycle      string         `db:"billing_cycle" json:"billing_cycle"`
	PriceCents        int64          `db:"price_cents" json:"price_cents"`
	NextBillingDate   time.Time      `db:"next_billing_date" json:"next_billing_date"`
	RetryCount        int            `db:"retry_count" json:"retry_count"`
	Status            string         `db:"status" json:"status"`
	PausedUntil       *time.Time     `db:"paused_until" json:"paused_until,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// Invoice records one billing attempt per period. The unique
// (subscription_id, period_key) pair makes re-sweeping a period a
// no-op once it is paid.
type Invoice struct {
	ID             int       `db:"id" json:"id"`
	SubscriptionID int       `db:"subscription_id" json:"subscription_id"`
	PeriodKey      string    `db:"period_key" json:"period_key"`
	AmountCents    int64     `db:"amount_cents" json:"amount_cents"`
	Status         string    `db:"status" json:"status"`
	AttemptedAt    time.Time `db:"attempted_at" json:"attempted_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

type SubscribeRequest struct {
	UserID            int      `json:"user_id" binding:"required,min=1"`
	GrantKind         string   `json:"grant_kind" binding:"required,oneof=membership class_pass pt_bundle"`
	GrantPurposes     []string `json:"grant_purposes" binding:"required,min=1,dive,oneof=gym class pt"`
	GrantTotal        *int     `json:"grant_total" binding:"omitempty,min=1"`
	GrantDurationDays int      `json:"grant_duration_days" binding:"required,min=1"`
	PackageRef        string   `json:"package_ref" binding:"required"`
	BillingCycle      string   `json:"billing_cycle" binding:"required,oneof=weekly monthly yearly"`
	PriceCents        int64    `json:"price_cents" binding:"required,min=0"`
}

type PauseRequest struct {
	Until time.Time `json:"until" binding:"required"`
}
