package entitlement

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	ErrGrantNotFound       = errors.New("grant not found")
	ErrGrantExpired        = errors.New("grant expired or not usable")
	ErrInsufficientBalance = errors.New("insufficient grant balance")
	ErrInvalidTransition   = errors.New("invalid grant status transition")
)

const grantColumns = `id, user_id, kind, purpose, total, used, start_date, expire_date, status, transaction_ref, frozen_until, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, grant *Grant) (*Grant, error) {
	query := `
		INSERT INTO entitlement_grants (user_id, kind, purpose, total, start_date, expire_date, status, transaction_ref)
		VALUES ($1, $2, $3, $4, $5, $6, 'active', $7)
		RETURNING ` + grantColumns

	var created Grant
	err := r.db.GetContext(ctx, &created, query,
		grant.UserID, grant.Kind, grant.Purpose, grant.Total,
		grant.StartDate, grant.ExpireDate, grant.TransactionRef,
	)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Grant, error) {
	var grant Grant
	err := r.db.GetContext(ctx, &grant,
		`SELECT `+grantColumns+` FROM entitlement_grants WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGrantNotFound
		}
		return nil, err
	}
	return &grant, nil
}

func (r *repository) ListByUser(ctx context.Context, userID int) ([]Grant, error) {
	grants := []Grant{}
	err := r.db.SelectContext(ctx, &grants,
		`SELECT `+grantColumns+` FROM entitlement_grants WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return grants, nil
}

// debit is the single write path for spending grant units. The WHERE
// clause is the whole correctness story: status, validity window, and
// the used+n <= total cap are all checked by the same atomic UPDATE,
// so two concurrent debits can never overspend a grant.
func debit(ctx context.Context, q sqlx.ExtContext, grantID, n int) error {
	result, err := q.ExecContext(ctx, `
		UPDATE entitlement_grants
		SET used = used + $2, updated_at = NOW()
		WHERE id = $1
		  AND status = 'active'
		  AND start_date <= NOW()
		  AND (expire_date IS NULL OR expire_date > NOW())
		  AND (total IS NULL OR used + $2 <= total)
	`, grantID, n)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	// The update matched nothing; re-read to say why.
	var grant Grant
	err = sqlx.GetContext(ctx, q, &grant,
		`SELECT `+grantColumns+` FROM entitlement_grants WHERE id = $1`, grantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrGrantNotFound
		}
		return err
	}

	now := time.Now()
	if grant.Status != StatusActive || now.Before(grant.StartDate) ||
		(grant.ExpireDate != nil && !now.Before(*grant.ExpireDate)) {
		return ErrGrantExpired
	}
	return ErrInsufficientBalance
}

func (r *repository) Debit(ctx context.Context, grantID, n int) error {
	return debit(ctx, r.db, grantID, n)
}

func (r *repository) DebitTx(ctx context.Context, tx *sqlx.Tx, grantID, n int) error {
	return debit(ctx, tx, grantID, n)
}

// credit refunds units. The GREATEST floor keeps used from going
// negative when a refund races a correction.
func credit(ctx context.Context, q sqlx.ExtContext, grantID, n int) error {
	result, err := q.ExecContext(ctx, `
		UPDATE entitlement_grants
		SET used = GREATEST(used - $2, 0), updated_at = NOW()
		WHERE id = $1
	`, grantID, n)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrGrantNotFound
	}
	return nil
}

func (r *repository) Credit(ctx context.Context, grantID, n int) error {
	return credit(ctx, r.db, grantID, n)
}

func (r *repository) CreditTx(ctx context.Context, tx *sqlx.Tx, grantID, n int) error {
	return credit(ctx, tx, grantID, n)
}

func (r *repository) Freeze(ctx context.Context, grantID int, until time.Time, reason string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE entitlement_grants
		SET status = 'frozen', frozen_until = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`, grantID, until)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (r *repository) Unfreeze(ctx context.Context, grantID int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE entitlement_grants
		SET status = 'active', frozen_until = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'frozen'
	`, grantID)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (r *repository) Cancel(ctx context.Context, grantID int, reason string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE entitlement_grants
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status IN ('active', 'frozen')
	`, grantID)
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

func (r *repository) Resolve(ctx context.Context, userID int, purpose string) ([]Grant, error) {
	grants := []Grant{}
	err := r.db.SelectContext(ctx, &grants, `
		SELECT `+grantColumns+`
		FROM entitlement_grants
		WHERE user_id = $1
		  AND purpose = $2
		  AND status = 'active'
		  AND start_date <= NOW()
		  AND (expire_date IS NULL OR expire_date > NOW())
		  AND (total IS NULL OR used < total)
		ORDER BY CASE WHEN kind = 'membership' THEN 0 ELSE 1 END,
		         expire_date ASC NULLS LAST,
		         id ASC
	`, userID, purpose)
	if err != nil {
		return nil, err
	}
	return grants, nil
}

func (r *repository) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE entitlement_grants
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'active' AND expire_date IS NOT NULL AND expire_date <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *repository) CompleteExhausted(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE entitlement_grants
		SET status = 'completed', updated_at = NOW()
		WHERE status = 'active' AND total IS NOT NULL AND used >= total
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *repository) UnfreezeDue(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE entitlement_grants
		SET status = 'active', frozen_until = NULL, updated_at = NOW()
		WHERE status = 'frozen' AND frozen_until IS NOT NULL AND frozen_until <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
