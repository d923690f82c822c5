package repository

import (
	"context"

	"member-service/internal/user/domain"
)

// Repository defines persistence for users and their profiles.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByLoginID(ctx context.Context, loginID string) (*domain.User, error)
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	Create(ctx context.Context, u *domain.User) error
	CreateProfile(ctx context.Context, p *domain.Profile) error
}
