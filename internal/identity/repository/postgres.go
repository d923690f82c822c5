package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"member-service/internal/db"
	sb "member-service/internal/db/sqlbuilder"
	"member-service/internal/identity/domain"
)

var shadowsTable = sb.NewTable("user_shadows", "user_id",
	"user_id", "password_hash", "prev_password_hash", "created_at", "updated_at")

type PostgresRepository struct {
	pool db.DBTX
}

// NewPostgresRepository returns a shadow repository backed by pool.
func NewPostgresRepository(pool db.DBTX) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetByUserID returns the shadow for userID, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*domain.Shadow, error) {
	q, args := shadowsTable.Select(nil, sb.Eq("user_id", userID)).Build()
	var s domain.Shadow
	err := db.Conn(ctx, r.pool).QueryRow(ctx, q, args...).Scan(
		&s.UserID, &s.PasswordHash, &s.PrevPasswordHash, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("shadowRepo.GetByUserID: %w", err)
	}
	return &s, nil
}

// Create persists the shadow row.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Shadow) error {
	q, args := shadowsTable.Insert(
		[]string{"user_id", "password_hash", "prev_password_hash", "created_at", "updated_at"},
		[]any{s.UserID, s.PasswordHash, s.PrevPasswordHash, s.CreatedAt, s.UpdatedAt},
	)
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("shadowRepo.Create: %w", err)
	}
	return db.ExpectOne(tag, "shadowRepo.Create")
}

// UpdatePasswordHash replaces the hash for userID. Exactly one row must change.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, userID, newHash, prevHash string) error {
	q, args := shadowsTable.Update([]sb.Assign{
		sb.Set("password_hash", newHash),
		sb.Set("prev_password_hash", prevHash),
		sb.Set("updated_at", time.Now().UTC()),
	}, sb.Eq("user_id", userID))
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("shadowRepo.UpdatePasswordHash: %w", err)
	}
	return db.ExpectOne(tag, "shadowRepo.UpdatePasswordHash")
}
