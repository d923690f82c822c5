package repository

import (
	"context"
	"fmt"
	"time"

	"member-service/internal/audit/domain"
	"member-service/internal/db"
	sb "member-service/internal/db/sqlbuilder"
)

var auditTable = sb.NewTable("audit_logs", "id", "id", "user_id", "action", "resource", "ip", "metadata", "created_at")

type PostgresRepository struct {
	pool db.DBTX
}

// NewPostgresRepository returns an audit log repository backed by pool.
func NewPostgresRepository(pool db.DBTX) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create persists the audit log. The audit log must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	q, args := auditTable.Insert(
		[]string{"id", "user_id", "action", "resource", "ip", "metadata", "created_at"},
		[]any{a.ID, a.UserID, a.Action, a.Resource, a.IP, a.Metadata, a.CreatedAt},
	)
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("auditRepo.Create: %w", err)
	}
	return nil
}

// ListByUser returns the user's most recent audit logs, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	q, args := auditTable.Select(nil, sb.Eq("user_id", userID)).OrderByDesc("created_at").Limit(limit).Build()
	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("auditRepo.ListByUser: %w", err)
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		var a domain.AuditLog
		if err := rows.Scan(&a.ID, &a.UserID, &a.Action, &a.Resource, &a.IP, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("auditRepo.ListByUser: %w", err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("auditRepo.ListByUser: %w", err)
	}
	return out, nil
}

// DeleteBefore removes audit logs older than before and reports how many were deleted.
func (r *PostgresRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	q, args := auditTable.Delete(sb.Lt("created_at", before))
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("auditRepo.DeleteBefore: %w", err)
	}
	return tag.RowsAffected(), nil
}
