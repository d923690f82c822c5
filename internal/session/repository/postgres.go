package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"member-service/internal/db"
	sb "member-service/internal/db/sqlbuilder"
	"member-service/internal/platform/apperr"
	"member-service/internal/session/domain"
)

var sessionsTable = sb.NewTable("user_sessions", "id", "id", "user_id", "hash", "created_at", "expires_at")

// PostgresRepository stores sessions in the user_sessions table.
type PostgresRepository struct {
	pool db.DBTX
}

// NewPostgresRepository returns a session repository backed by pool.
func NewPostgresRepository(pool db.DBTX) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create persists the session. The session must have ID set. A duplicate hash or any insert
// that does not affect exactly one row yields apperr.ErrStorage.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	q, args := sessionsTable.Insert(
		[]string{"id", "user_id", "hash", "created_at", "expires_at"},
		[]any{s.ID, s.UserID, s.Hash, s.CreatedAt, s.ExpiresAt},
	)
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, q, args...)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: duplicate session hash", apperr.ErrStorage)
		}
		return fmt.Errorf("sessionRepo.Create: %w", err)
	}
	return db.ExpectOne(tag, "sessionRepo.Create")
}

// GetByHash returns the session for hash, or nil if not found.
func (r *PostgresRepository) GetByHash(ctx context.Context, hash string) (*domain.Session, error) {
	q, args := sessionsTable.Select(nil, sb.Eq("hash", hash)).Build()
	var s domain.Session
	err := db.Conn(ctx, r.pool).QueryRow(ctx, q, args...).Scan(&s.ID, &s.UserID, &s.Hash, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sessionRepo.GetByHash: %w", err)
	}
	return &s, nil
}

// ListByUser returns the user's sessions, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	q, args := sessionsTable.Select(nil, sb.Eq("user_id", userID)).OrderByDesc("created_at").Build()
	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.ListByUser: %w", err)
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.Hash, &s.CreatedAt, &s.ExpiresAt); err != nil {
			return nil, fmt.Errorf("sessionRepo.ListByUser scan: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// DeleteByHash removes the session for userID and hash if it exists.
func (r *PostgresRepository) DeleteByHash(ctx context.Context, userID, hash string) error {
	q, args := sessionsTable.Delete(sb.Eq("user_id", userID), sb.Eq("hash", hash))
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("sessionRepo.DeleteByHash: %w", err)
	}
	return nil
}

// DeleteByID removes the session with id. Zero affected rows means another caller already
// consumed it.
func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) error {
	q, args := sessionsTable.Delete(sb.Eq("id", id))
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("sessionRepo.DeleteByID: %w", err)
	}
	switch tag.RowsAffected() {
	case 1:
		return nil
	case 0:
		return apperr.ErrSessionNotFound
	default:
		return db.ExpectOne(tag, "sessionRepo.DeleteByID")
	}
}

// DeleteAllForUser removes every session of userID and returns how many were removed.
func (r *PostgresRepository) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	q, args := sessionsTable.Delete(sb.Eq("user_id", userID))
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("sessionRepo.DeleteAllForUser: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes sessions whose advisory expiry is before the given time.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	q, args := sessionsTable.Delete(sb.Lt("expires_at", before))
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("sessionRepo.DeleteExpired: %w", err)
	}
	return tag.RowsAffected(), nil
}
