// Package config loads and validates engine config from env and an optional .env file using Viper.
package config

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds engine configuration loaded from the environment.
type Config struct {
	// DatabaseURL is the Postgres DSN; required by every binary that touches storage.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// LogLevel is the zap log level (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// TokenSecret is the base64-encoded HS256 signing key; must decode to at least 32 bytes.
	TokenSecret string `mapstructure:"AUTH_TOKEN_SECRET"`
	// TokenIssuer is the iss claim stamped on access tokens.
	TokenIssuer string `mapstructure:"AUTH_TOKEN_ISSUER"`
	// AccessTokenTTL is the access token lifetime (e.g. "15m").
	AccessTokenTTL string `mapstructure:"ACCESS_TOKEN_TTL"`
	// RefreshTokenTTL is the refresh token lifetime (e.g. "720h" for 30 days).
	RefreshTokenTTL string `mapstructure:"REFRESH_TOKEN_TTL"`
	// BcryptCost is the bcrypt cost factor (4-31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// LockoutThreshold is the number of consecutive failed logins that locks an account.
	LockoutThreshold int `mapstructure:"LOCKOUT_THRESHOLD"`
	// LockoutWindow is how long a locked account stays locked (e.g. "15m").
	LockoutWindow string `mapstructure:"LOCKOUT_DURATION"`
	// SessionLimit is the maximum concurrent sessions per user; the oldest is evicted beyond it.
	SessionLimit int `mapstructure:"SESSION_LIMIT_PER_USER"`
	// BreachGrace is how long pre-bump token versions stay accepted after a breach bump (e.g. "5m"). "0" disables.
	BreachGrace string `mapstructure:"BREACH_GRACE_PERIOD"`
	// SessionRetentionWindow is how long revoked sessions and dead refresh tokens are kept before the janitor purges them.
	SessionRetentionWindow string `mapstructure:"SESSION_RETENTION"`
	// JanitorSweepInterval is the pause between janitor sweeps.
	JanitorSweepInterval string `mapstructure:"JANITOR_INTERVAL"`

	// RedisAddr enables the fail-open version cache when set (e.g. localhost:6379).
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// VersionCacheTTLRaw is how long cached breach versions live (e.g. "30s").
	VersionCacheTTLRaw string `mapstructure:"VERSION_CACHE_TTL"`

	// AuditKafkaBrokers is a comma-separated broker list; when set, audit events are also published to Kafka.
	AuditKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuditKafkaTopic is the Kafka topic for audit events.
	AuditKafkaTopic string `mapstructure:"KAFKA_AUDIT_TOPIC"`
	// AuditKafkaGroupID is the consumer group ID used by the audit worker.
	AuditKafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// AuditBufferSize is the dispatcher queue capacity; events beyond it are dropped, not blocked on.
	AuditBufferSize int `mapstructure:"AUDIT_BUFFER_SIZE"`
	// LokiURL makes the audit worker mirror consumed events to Grafana Loki when set.
	LokiURL string `mapstructure:"LOKI_URL"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables telemetry export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("AUTH_TOKEN_SECRET", "")
	v.SetDefault("AUTH_TOKEN_ISSUER", "auth-session-engine")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "720h") // 30d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("LOCKOUT_THRESHOLD", 5)
	v.SetDefault("LOCKOUT_DURATION", "15m")
	v.SetDefault("SESSION_LIMIT_PER_USER", 5)
	v.SetDefault("BREACH_GRACE_PERIOD", "5m")
	v.SetDefault("SESSION_RETENTION", "2160h") // 90d
	v.SetDefault("JANITOR_INTERVAL", "1h")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("VERSION_CACHE_TTL", "30s")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_AUDIT_TOPIC", "auth.audit")
	v.SetDefault("KAFKA_GROUP_ID", "auth-audit-worker")
	v.SetDefault("AUDIT_BUFFER_SIZE", 256)
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.LockoutThreshold < 1 {
		return nil, errors.New("config: LOCKOUT_THRESHOLD must be at least 1")
	}
	if cfg.SessionLimit < 1 {
		return nil, errors.New("config: SESSION_LIMIT_PER_USER must be at least 1")
	}
	if cfg.TokenSecret != "" {
		if _, err := cfg.SigningKey(); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// SigningKey decodes AUTH_TOKEN_SECRET (standard base64, padded or not) and enforces
// the 256-bit minimum for HS256. Returns an error when the secret is missing or weak.
func (c *Config) SigningKey() ([]byte, error) {
	raw := strings.TrimSpace(c.TokenSecret)
	if raw == "" {
		return nil, errors.New("config: AUTH_TOKEN_SECRET must be set")
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		key, err = base64.RawStdEncoding.DecodeString(raw)
	}
	if err != nil {
		return nil, errors.New("config: AUTH_TOKEN_SECRET must be base64-encoded")
	}
	if len(key) < 32 {
		return nil, errors.New("config: AUTH_TOKEN_SECRET must decode to at least 32 bytes")
	}
	return key, nil
}

// AccessTTL parses AccessTokenTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.AccessTokenTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RefreshTTL parses RefreshTokenTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.RefreshTokenTTL)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// LockoutDuration parses LockoutWindow as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) LockoutDuration() time.Duration {
	d, err := time.ParseDuration(c.LockoutWindow)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// BreachGracePeriod parses BreachGrace as a time.Duration. "0" (or any non-positive
// value) disables the grace window; invalid values fall back to the 5m default.
func (c *Config) BreachGracePeriod() time.Duration {
	d, err := time.ParseDuration(c.BreachGrace)
	if err != nil {
		return 5 * time.Minute
	}
	if d < 0 {
		return 0
	}
	return d
}

// SessionRetention parses SessionRetentionWindow as a time.Duration. Returns 2160h if unset or invalid.
func (c *Config) SessionRetention() time.Duration {
	d, err := time.ParseDuration(c.SessionRetentionWindow)
	if err != nil || d <= 0 {
		return 2160 * time.Hour
	}
	return d
}

// JanitorInterval parses JanitorSweepInterval as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) JanitorInterval() time.Duration {
	d, err := time.ParseDuration(c.JanitorSweepInterval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// VersionCacheTTL parses VersionCacheTTLRaw as a time.Duration. Returns 30s if unset or invalid.
func (c *Config) VersionCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.VersionCacheTTLRaw)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// AuditKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the Kafka audit sink is enabled (non-empty list) and to create the writer.
func (c *Config) AuditKafkaBrokersList() []string {
	if c == nil || c.AuditKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.AuditKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
