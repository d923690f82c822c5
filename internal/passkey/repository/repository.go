package repository

import (
	"context"
	"time"

	"member-service/internal/passkey/domain"
)

// CredentialRepository defines persistence for registered passkeys.
type CredentialRepository interface {
	ListByUser(ctx context.Context, userID string) ([]*domain.Credential, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	GetByCredentialID(ctx context.Context, credentialID string) (*domain.Credential, error)
	Create(ctx context.Context, c *domain.Credential) error
	// AdvanceSignCount stores count only when it is greater than the stored value. It reports
	// false when no row was updated.
	AdvanceSignCount(ctx context.Context, id string, count uint32) (bool, error)
	// TouchLastUsed bumps updated_at without changing the counter.
	TouchLastUsed(ctx context.Context, id string) error
	// Delete removes the credential owned by userID; it reports false when nothing matched.
	Delete(ctx context.Context, userID, credentialID string) (bool, error)
}

// ChallengeStore persists outstanding ceremonies. Lookups never return expired challenges.
type ChallengeStore interface {
	Create(ctx context.Context, c *domain.Challenge) error
	GetByHash(ctx context.Context, hash string, kind domain.ChallengeKind) (*domain.Challenge, error)
	// DeleteByHash claims the challenge for hash. Exactly one concurrent caller gets true.
	DeleteByHash(ctx context.Context, hash string) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
