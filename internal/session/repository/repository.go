package repository

import (
	"context"
	"time"

	"member-service/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByHash(ctx context.Context, hash string) (*domain.Session, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	// DeleteByHash removes the session matching userID and hash. A missing row is not an error.
	DeleteByHash(ctx context.Context, userID, hash string) error
	// DeleteByID removes exactly one row; zero rows yields apperr.ErrSessionNotFound.
	DeleteByID(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
