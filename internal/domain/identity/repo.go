package identity

import "context"

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByHandle(ctx context.Context, handle string) (*User, error)
	ListByRole(ctx context.Context, role string, limit, offset int) ([]*User, int, error)
}
