package repository

import (
	"context"
	"time"

	"member-service/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	Create(ctx context.Context, a *domain.AuditLog) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.AuditLog, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
