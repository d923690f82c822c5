package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"member-service/internal/db"
	sb "member-service/internal/db/sqlbuilder"
	"member-service/internal/passkey/domain"
	"member-service/internal/platform/apperr"
)

var (
	passkeysTable = sb.NewTable("user_passkeys", "id",
		"id", "user_id", "credential_id", "public_key", "sign_count", "transports", "aaguid",
		"attestation_type", "backup_eligible", "backup_state", "created_at", "updated_at")
	challengesTable = sb.NewTable("passkey_challenges", "id",
		"id", "user_id", "kind", "challenge", "hash", "session_data", "created_at", "expires_at")
)

// PostgresCredentialRepository stores passkeys in user_passkeys.
type PostgresCredentialRepository struct {
	pool db.DBTX
}

// NewPostgresCredentialRepository returns a credential repository backed by pool.
func NewPostgresCredentialRepository(pool db.DBTX) *PostgresCredentialRepository {
	return &PostgresCredentialRepository{pool: pool}
}

func scanCredential(row pgx.Row) (*domain.Credential, error) {
	var c domain.Credential
	var count int64
	err := row.Scan(&c.ID, &c.UserID, &c.CredentialID, &c.PublicKey, &count, &c.Transports, &c.AAGUID,
		&c.AttestationType, &c.BackupEligible, &c.BackupState, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.SignCount = uint32(count)
	return &c, nil
}

// ListByUser returns the user's passkeys, oldest first.
func (r *PostgresCredentialRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Credential, error) {
	q, args := passkeysTable.Select(nil, sb.Eq("user_id", userID)).OrderBy("created_at").Build()
	rows, err := db.Conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("passkeyRepo.ListByUser: %w", err)
	}
	defer rows.Close()
	var out []*domain.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("passkeyRepo.ListByUser scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountByUser returns how many passkeys the user has registered.
func (r *PostgresCredentialRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	q, args := passkeysTable.Count(sb.Eq("user_id", userID))
	var n int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("passkeyRepo.CountByUser: %w", err)
	}
	return n, nil
}

// GetByCredentialID returns the passkey for credentialID, or nil if not found.
func (r *PostgresCredentialRepository) GetByCredentialID(ctx context.Context, credentialID string) (*domain.Credential, error) {
	q, args := passkeysTable.Select(nil, sb.Eq("credential_id", credentialID)).Build()
	c, err := scanCredential(db.Conn(ctx, r.pool).QueryRow(ctx, q, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("passkeyRepo.GetByCredentialID: %w", err)
	}
	return c, nil
}

// Create persists a new passkey. A credential id registered before yields apperr.ErrAlreadyExists.
func (r *PostgresCredentialRepository) Create(ctx context.Context, c *domain.Credential) error {
	transports := c.Transports
	if transports == nil {
		transports = []string{}
	}
	q, args := passkeysTable.Insert(
		[]string{"id", "user_id", "credential_id", "public_key", "sign_count", "transports", "aaguid",
			"attestation_type", "backup_eligible", "backup_state", "created_at", "updated_at"},
		[]any{c.ID, c.UserID, c.CredentialID, c.PublicKey, int64(c.SignCount), transports, c.AAGUID,
			c.AttestationType, c.BackupEligible, c.BackupState, c.CreatedAt, c.UpdatedAt},
	)
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, q, args...)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return apperr.ErrAlreadyExists
		}
		return fmt.Errorf("passkeyRepo.Create: %w", err)
	}
	return db.ExpectOne(tag, "passkeyRepo.Create")
}

// AdvanceSignCount updates sign_count only while the stored value is lower, so two concurrent
// assertions carrying the same counter cannot both succeed.
func (r *PostgresCredentialRepository) AdvanceSignCount(ctx context.Context, id string, count uint32) (bool, error) {
	q, args := passkeysTable.Update(
		[]sb.Assign{sb.Set("sign_count", int64(count)), sb.Set("updated_at", time.Now().UTC())},
		sb.Eq("id", id), sb.Lt("sign_count", int64(count)),
	)
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("passkeyRepo.AdvanceSignCount: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// TouchLastUsed sets updated_at to now.
func (r *PostgresCredentialRepository) TouchLastUsed(ctx context.Context, id string) error {
	q, args := passkeysTable.Update([]sb.Assign{sb.Set("updated_at", time.Now().UTC())}, sb.Eq("id", id))
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("passkeyRepo.TouchLastUsed: %w", err)
	}
	return nil
}

// Delete removes the passkey when it belongs to userID.
func (r *PostgresCredentialRepository) Delete(ctx context.Context, userID, credentialID string) (bool, error) {
	q, args := passkeysTable.Delete(sb.Eq("user_id", userID), sb.Eq("credential_id", credentialID))
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("passkeyRepo.Delete: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// PostgresChallengeStore stores ceremonies in passkey_challenges.
type PostgresChallengeStore struct {
	pool db.DBTX
	now  func() time.Time
}

// NewPostgresChallengeStore returns a challenge store backed by pool.
func NewPostgresChallengeStore(pool db.DBTX) *PostgresChallengeStore {
	return &PostgresChallengeStore{pool: pool, now: time.Now}
}

// Create persists the challenge. Exactly one row must be inserted.
func (s *PostgresChallengeStore) Create(ctx context.Context, c *domain.Challenge) error {
	q, args := challengesTable.Insert(
		[]string{"id", "user_id", "kind", "challenge", "hash", "session_data", "created_at", "expires_at"},
		[]any{c.ID, c.UserID, string(c.Kind), c.Challenge, c.Hash, c.SessionData, c.CreatedAt, c.ExpiresAt},
	)
	tag, err := db.Conn(ctx, s.pool).Exec(ctx, q, args...)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("%w: duplicate challenge hash", apperr.ErrStorage)
		}
		return fmt.Errorf("challengeRepo.Create: %w", err)
	}
	return db.ExpectOne(tag, "challengeRepo.Create")
}

// GetByHash returns the unexpired challenge of kind for hash, or nil.
func (s *PostgresChallengeStore) GetByHash(ctx context.Context, hash string, kind domain.ChallengeKind) (*domain.Challenge, error) {
	q, args := challengesTable.Select(nil,
		sb.Eq("hash", hash), sb.Eq("kind", string(kind)), sb.Gt("expires_at", s.now().UTC()),
	).Build()
	var c domain.Challenge
	var k string
	err := db.Conn(ctx, s.pool).QueryRow(ctx, q, args...).Scan(
		&c.ID, &c.UserID, &k, &c.Challenge, &c.Hash, &c.SessionData, &c.CreatedAt, &c.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("challengeRepo.GetByHash: %w", err)
	}
	c.Kind = domain.ChallengeKind(k)
	return &c, nil
}

// DeleteByHash removes the challenge for hash. It reports false when another caller removed it first.
func (s *PostgresChallengeStore) DeleteByHash(ctx context.Context, hash string) (bool, error) {
	q, args := challengesTable.Delete(sb.Eq("hash", hash))
	tag, err := db.Conn(ctx, s.pool).Exec(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("challengeRepo.DeleteByHash: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteExpired removes challenges that expired before the given time.
func (s *PostgresChallengeStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	q, args := challengesTable.Delete(sb.Lt("expires_at", before))
	tag, err := db.Conn(ctx, s.pool).Exec(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("challengeRepo.DeleteExpired: %w", err)
	}
	return tag.RowsAffected(), nil
}
