package branch

import "context"

type Service interface {
	Create(ctx context.Context, req CreateBranchRequest) (*Branch, error)
	GetByID(ctx context.Context, id int) (*Branch, error)
	List(ctx context.Context) ([]Branch, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, req CreateBranchRequest) (*Branch, error) {
	return s.repo.Create(ctx, req.Name, req.Location, req.Phone)
}

func (s *service) GetByID(ctx context.Context, id int) (*Branch, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context) ([]Branch, error) {
	return s.repo.List(ctx)
}
