package settings

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
)

// Well-known keys. Values are read at decision time so that an admin
// change takes effect on the next request, never cached indefinitely.
const (
	KeyClassCancelHours        = "class_cancel_hours"
	KeyPTCancelHours           = "pt_cancel_hours"
	KeyCheckinCooldownMinutes  = "checkin_cooldown_minutes"
	KeyCheckinRequireCheckout  = "checkin_require_checkout"
	KeyClassBookingAdvanceDays = "class_booking_advance_days"
	KeySubscriptionRetryDays   = "subscription_retry_days"
	KeySubscriptionRetryCount  = "subscription_retry_count"
)

var ErrSettingNotFound = errors.New("setting not found")

type Setting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSettingNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *Repository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	return err
}

func (r *Repository) List(ctx context.Context) ([]Setting, error) {
	var out []Setting
	err := r.db.SelectContext(ctx, &out, `SELECT key, value, updated_at FROM settings ORDER BY key ASC`)
	return out, err
}

// Int returns the integer value for key, or def when the key is absent
// or malformed.
func (r *Repository) Int(ctx context.Context, key string, def int) int {
	value, err := r.Get(ctx, key)
	if err != nil {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return n
}

func (r *Repository) Hours(ctx context.Context, key string, def int) time.Duration {
	return time.Duration(r.Int(ctx, key, def)) * time.Hour
}

func (r *Repository) Minutes(ctx context.Context, key string, def int) time.Duration {
	return time.Duration(r.Int(ctx, key, def)) * time.Minute
}
