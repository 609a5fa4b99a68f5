package branch

import "context"

type Repository interface {
	Create(ctx context.Context, name, location, phone string) (*Branch, error)
	GetByID(ctx context.Context, id int) (*Branch, error)
	List(ctx context.Context) ([]Branch, error)
}
