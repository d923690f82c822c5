package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"member-service/internal/passkey/domain"
	"member-service/internal/platform/apperr"
)

const challengeKeyPrefix = "passkey:challenge:"

// RedisChallengeStore keeps ceremonies as TTL-bound keys. Expiry is enforced by Redis; the
// stored ExpiresAt is still checked on read.
type RedisChallengeStore struct {
	cli *redis.Client
	now func() time.Time
}

// NewRedisChallengeStore returns a challenge store using cli.
func NewRedisChallengeStore(cli *redis.Client) *RedisChallengeStore {
	return &RedisChallengeStore{cli: cli, now: time.Now}
}

// NewRedisClient parses url, pings the server and returns the client.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return cli, nil
}

type redisChallenge struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Kind        string    `json:"kind"`
	Challenge   string    `json:"challenge"`
	SessionData []byte    `json:"session_data"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Create stores the challenge under its hash. An existing key yields apperr.ErrStorage.
func (s *RedisChallengeStore) Create(ctx context.Context, c *domain.Challenge) error {
	ttl := c.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("%w: challenge already expired", apperr.ErrStorage)
	}
	b, err := json.Marshal(redisChallenge{
		ID: c.ID, UserID: c.UserID, Kind: string(c.Kind), Challenge: c.Challenge,
		SessionData: c.SessionData, CreatedAt: c.CreatedAt, ExpiresAt: c.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("challengeRedis.Create marshal: %w", err)
	}
	ok, err := s.cli.SetNX(ctx, challengeKeyPrefix+c.Hash, b, ttl).Result()
	if err != nil {
		return fmt.Errorf("challengeRedis.Create: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: duplicate challenge hash", apperr.ErrStorage)
	}
	return nil
}

// GetByHash returns the unexpired challenge of kind for hash, or nil.
func (s *RedisChallengeStore) GetByHash(ctx context.Context, hash string, kind domain.ChallengeKind) (*domain.Challenge, error) {
	val, err := s.cli.Get(ctx, challengeKeyPrefix+hash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("challengeRedis.GetByHash: %w", err)
	}
	var rc redisChallenge
	if err := json.Unmarshal(val, &rc); err != nil {
		return nil, fmt.Errorf("challengeRedis.GetByHash decode: %w", err)
	}
	c := &domain.Challenge{
		ID: rc.ID, UserID: rc.UserID, Kind: domain.ChallengeKind(rc.Kind), Challenge: rc.Challenge,
		Hash: hash, SessionData: rc.SessionData, CreatedAt: rc.CreatedAt, ExpiresAt: rc.ExpiresAt,
	}
	if c.Kind != kind || c.Expired(s.now()) {
		return nil, nil
	}
	return c, nil
}

// DeleteByHash removes the key for hash. It reports false when the key was already gone.
func (s *RedisChallengeStore) DeleteByHash(ctx context.Context, hash string) (bool, error) {
	n, err := s.cli.Del(ctx, challengeKeyPrefix+hash).Result()
	if err != nil {
		return false, fmt.Errorf("challengeRedis.DeleteByHash: %w", err)
	}
	return n == 1, nil
}

// DeleteExpired is a no-op; Redis evicts keys when their TTL lapses.
func (s *RedisChallengeStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
