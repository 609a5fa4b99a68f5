package user

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrUserNotFound = errors.New("user not found")

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, name, email, phone, passwordHash, role string, branchID int) (*User, error) {
	query := `
		INSERT INTO users (name, email, phone, password_hash, role, branch_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, name, email, phone, password_hash, role, branch_id, created_at
	`

	var user User
	err := r.db.GetContext(ctx, &user, query, name, email, phone, passwordHash, role, branchID)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, name, email, phone, password_hash, role, branch_id, created_at
		FROM users
		WHERE email = $1
	`

	var user User
	err := r.db.GetContext(ctx, &user, query, email)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *repository) FindByID(ctx context.Context, id int) (*User, error) {
	query := `
		SELECT id, name, email, phone, password_hash, role, branch_id, created_at
		FROM users
		WHERE id = $1
	`

	var user User
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *repository) Recipient(ctx context.Context, id int) (string, string, error) {
	var row struct {
		Email string `db:"email"`
		Name  string `db:"name"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT email, name FROM users WHERE id = $1`, id)
	if err != nil {
		return "", "", err
	}
	return row.Email, row.Name, nil
}

func (r *repository) EmailExists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, email)
	if err != nil {
		return false, err
	}

	return exists, nil
}
