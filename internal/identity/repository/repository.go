package repository

import (
	"context"

	"member-service/internal/identity/domain"
)

// Repository defines persistence for password shadows.
type Repository interface {
	GetByUserID(ctx context.Context, userID string) (*domain.Shadow, error)
	Create(ctx context.Context, s *domain.Shadow) error
	// UpdatePasswordHash replaces the current hash and records prevHash as the previous one.
	UpdatePasswordHash(ctx context.Context, userID, newHash, prevHash string) error
}
