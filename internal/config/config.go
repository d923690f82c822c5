// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Built-in development secrets. Load rejects them when APP_ENV=production.
const (
	DevAccessSecret  = "dev-access-secret-change-me"
	DevRefreshSecret = "dev-refresh-secret-change-me"
	DevPepper        = "dev-pepper-change-me"
)

// Challenge store backends.
const (
	ChallengeStorePostgres = "postgres"
	ChallengeStoreRedis    = "redis"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// HTTPAddr is the ops listener serving /healthz and /readyz; empty disables it.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL is used when ChallengeStore is "redis" (e.g. redis://localhost:6379/0).
	RedisURL string `mapstructure:"REDIS_URL"`
	// ChallengeStore selects where passkey challenges live: "postgres" (default) or "redis".
	ChallengeStore string `mapstructure:"CHALLENGE_STORE"`

	// AccessTokenSecret and RefreshTokenSecret sign HS256 tokens; they must differ.
	AccessTokenSecret  string `mapstructure:"ACCESS_TOKEN_SECRET"`
	RefreshTokenSecret string `mapstructure:"REFRESH_TOKEN_SECRET"`
	// AccessTokenTTL is the access token lifetime (e.g. "1h").
	AccessTokenTTL string `mapstructure:"ACCESS_TOKEN_TTL"`
	// RefreshTokenTTL is the refresh token and session lifetime (e.g. "1512h").
	RefreshTokenTTL string `mapstructure:"REFRESH_TOKEN_TTL"`
	// JWTIssuer is the iss claim.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// Pepper is mixed into session and challenge correlation hashes.
	Pepper string `mapstructure:"PEPPER"`
	// BcryptCost is the bcrypt cost factor (4-31); default 10.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	WebAuthnRPName string `mapstructure:"WEBAUTHN_RP_NAME"`
	WebAuthnRPID   string `mapstructure:"WEBAUTHN_RP_ID"`
	// WebAuthnOrigin is a comma-separated list of allowed origins.
	WebAuthnOrigin  string `mapstructure:"WEBAUTHN_ORIGIN"`
	WebAuthnTimeout string `mapstructure:"WEBAUTHN_TIMEOUT"`
	// MaxPasskeysPerOwner caps registered passkeys per member.
	MaxPasskeysPerOwner int `mapstructure:"MAX_PASSKEYS_PER_OWNER"`

	// Telemetry (optional). When Kafka brokers are set, the gRPC server emits RPC events to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for telemetry events (default member-telemetry).
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`
	// OTLPEndpoint enables OpenTelemetry traces, metrics and logs when set (e.g. localhost:4317).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// SweepInterval is how often the worker deletes expired sessions and challenges.
	SweepInterval string `mapstructure:"SWEEP_INTERVAL"`
	// AuditRetention is how long audit rows are kept before the worker deletes them.
	AuditRetention string `mapstructure:"AUDIT_RETENTION"`
	// LokiURL enables the worker's Kafka-to-Loki telemetry forwarder (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group of the telemetry forwarder.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("HTTP_ADDR", ":8081")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("CHALLENGE_STORE", ChallengeStorePostgres)
	v.SetDefault("ACCESS_TOKEN_SECRET", DevAccessSecret)
	v.SetDefault("REFRESH_TOKEN_SECRET", DevRefreshSecret)
	v.SetDefault("ACCESS_TOKEN_TTL", "1h")
	v.SetDefault("REFRESH_TOKEN_TTL", "1512h") // 63d
	v.SetDefault("JWT_ISSUER", "member-service")
	v.SetDefault("PEPPER", DevPepper)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("WEBAUTHN_RP_NAME", "Member Service")
	v.SetDefault("WEBAUTHN_RP_ID", "localhost")
	v.SetDefault("WEBAUTHN_ORIGIN", "http://localhost:3001")
	v.SetDefault("WEBAUTHN_TIMEOUT", "600s")
	v.SetDefault("MAX_PASSKEYS_PER_OWNER", 5)
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "member-telemetry")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
	v.SetDefault("SWEEP_INTERVAL", "10m")
	v.SetDefault("AUDIT_RETENTION", "2160h") // 90d
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "member-telemetry-worker")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		return nil, errors.New("config: ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must be set")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return nil, errors.New("config: ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	if cfg.Pepper == "" {
		return nil, errors.New("config: PEPPER must be set")
	}
	if cfg.Env == "production" &&
		(cfg.AccessTokenSecret == DevAccessSecret || cfg.RefreshTokenSecret == DevRefreshSecret || cfg.Pepper == DevPepper) {
		return nil, errors.New("config: development secrets must not be used when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 10
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	cfg.ChallengeStore = strings.ToLower(strings.TrimSpace(cfg.ChallengeStore))
	switch cfg.ChallengeStore {
	case "", ChallengeStorePostgres:
		cfg.ChallengeStore = ChallengeStorePostgres
	case ChallengeStoreRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("config: REDIS_URL must be set when CHALLENGE_STORE=redis")
		}
	default:
		return nil, errors.New("config: CHALLENGE_STORE must be postgres or redis")
	}

	if cfg.MaxPasskeysPerOwner <= 0 {
		return nil, errors.New("config: MAX_PASSKEYS_PER_OWNER must be positive")
	}
	if cfg.WebAuthnRPID == "" || len(cfg.WebAuthnOrigins()) == 0 {
		return nil, errors.New("config: WEBAUTHN_RP_ID and WEBAUTHN_ORIGIN must be set")
	}

	return &cfg, nil
}

// AccessTTL parses AccessTokenTTL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.AccessTokenTTL, time.Hour)
}

// RefreshTTL parses RefreshTokenTTL as a time.Duration. Returns 1512h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.RefreshTokenTTL, 1512*time.Hour)
}

// ChallengeTTL parses WebAuthnTimeout. Returns 600s if unset or invalid.
func (c *Config) ChallengeTTL() time.Duration {
	return parseDuration(c.WebAuthnTimeout, 600*time.Second)
}

// SweepEvery parses SweepInterval. Returns 10m if unset or invalid.
func (c *Config) SweepEvery() time.Duration {
	return parseDuration(c.SweepInterval, 10*time.Minute)
}

// AuditRetentionPeriod parses AuditRetention. Returns 2160h if unset or invalid.
func (c *Config) AuditRetentionPeriod() time.Duration {
	return parseDuration(c.AuditRetention, 2160*time.Hour)
}

// WebAuthnOrigins returns the allowed origins from the comma-separated config.
func (c *Config) WebAuthnOrigins() []string {
	if c == nil {
		return nil
	}
	return splitList(c.WebAuthnOrigin)
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if telemetry is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TelemetryKafkaBrokers)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
