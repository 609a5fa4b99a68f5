package branch

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrBranchNotFound = errors.New("branch not found")

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, name, location, phone string) (*Branch, error) {
	var created Branch
	err := r.db.GetContext(ctx, &created, `
		INSERT INTO branches (name, location, phone)
		VALUES ($1, $2, $3)
		RETURNING id, name, location, phone, created_at
	`, name, location, phone)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Branch, error) {
	var b Branch
	err := r.db.GetContext(ctx, &b,
		`SELECT id, name, location, phone, created_at FROM branches WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBranchNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *repository) List(ctx context.Context) ([]Branch, error) {
	branches := []Branch{}
	err := r.db.SelectContext(ctx, &branches,
		`SELECT id, name, location, phone, created_at FROM branches ORDER BY name ASC`)
	return branches, err
}
