package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"member-service/internal/db"
	sb "member-service/internal/db/sqlbuilder"
	"member-service/internal/platform/apperr"
	"member-service/internal/user/domain"
)

var (
	usersTable = sb.NewTable("users", "id",
		"id", "login_id", "status", "role", "company_id", "created_at", "updated_at", "deleted_at")
	profilesTable = sb.NewTable("user_profiles", "user_id",
		"user_id", "name", "email", "created_at", "updated_at")
)

type PostgresRepository struct {
	pool db.DBTX
}

// NewPostgresRepository returns a user repository backed by pool. Calls made inside
// db.Transactor.WithinTx use the carried transaction instead.
func NewPostgresRepository(pool db.DBTX) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, sb.Eq("id", id))
}

// GetByLoginID returns the non-deleted user for loginID, or nil if not found.
func (r *PostgresRepository) GetByLoginID(ctx context.Context, loginID string) (*domain.User, error) {
	return r.getOne(ctx, sb.Eq("login_id", loginID), sb.IsNull("deleted_at"))
}

func (r *PostgresRepository) getOne(ctx context.Context, conds ...sb.Cond) (*domain.User, error) {
	q, args := usersTable.Select(nil, conds...).Limit(1).Build()
	var u domain.User
	var status string
	err := db.Conn(ctx, r.pool).QueryRow(ctx, q, args...).Scan(
		&u.ID, &u.LoginID, &status, &u.Role, &u.CompanyID, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("userRepo.get: %w", err)
	}
	u.Status = domain.UserStatus(status)
	return &u, nil
}

// GetProfile returns the profile row for userID, or nil if not found.
func (r *PostgresRepository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	q, args := profilesTable.Select(nil, sb.Eq("user_id", userID)).Build()
	var p domain.Profile
	err := db.Conn(ctx, r.pool).QueryRow(ctx, q, args...).Scan(&p.UserID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("userRepo.GetProfile: %w", err)
	}
	return &p, nil
}

// Create inserts the identity row. A duplicate login id yields apperr.ErrAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err)
	}
	q, args := usersTable.Insert(
		[]string{"id", "login_id", "status", "role", "company_id", "created_at", "updated_at"},
		[]any{u.ID, u.LoginID, string(u.Status), u.Role, u.CompanyID, u.CreatedAt, u.UpdatedAt},
	)
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, q, args...)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("userRepo.Create: %w", err)
	}
	return db.ExpectOne(tag, "userRepo.Create")
}

// CreateProfile inserts the profile row for an existing user.
func (r *PostgresRepository) CreateProfile(ctx context.Context, p *domain.Profile) error {
	q, args := profilesTable.Insert(
		[]string{"user_id", "name", "email", "created_at", "updated_at"},
		[]any{p.UserID, p.Name, p.Email, p.CreatedAt, p.UpdatedAt},
	)
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("userRepo.CreateProfile: %w", err)
	}
	return db.ExpectOne(tag, "userRepo.CreateProfile")
}
