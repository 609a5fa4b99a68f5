package user

import "context"

type Repository interface {
	Create(ctx context.Context, name, email, phone, passwordHash, role string, branchID int) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)

	// Recipient resolves the address the notification worker sends to.
	Recipient(ctx context.Context, id int) (email, name string, err error)
}
