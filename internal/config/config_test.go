package config

import (
	"encoding/base64"
	"os"
	"testing"
	"time"
)

func testSecret() string {
	return base64.StdEncoding.EncodeToString(make([]byte, 32))
}

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.TokenIssuer != "auth-session-engine" {
		t.Errorf("TokenIssuer = %q, want %q", cfg.TokenIssuer, "auth-session-engine")
	}
	if cfg.AccessTokenTTL != "15m" {
		t.Errorf("AccessTokenTTL = %q, want %q", cfg.AccessTokenTTL, "15m")
	}
	if cfg.RefreshTokenTTL != "720h" {
		t.Errorf("RefreshTokenTTL = %q, want %q", cfg.RefreshTokenTTL, "720h")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.LockoutThreshold != 5 {
		t.Errorf("LockoutThreshold = %d, want 5", cfg.LockoutThreshold)
	}
	if cfg.SessionLimit != 5 {
		t.Errorf("SessionLimit = %d, want 5", cfg.SessionLimit)
	}
	if cfg.AuditKafkaTopic != "auth.audit" {
		t.Errorf("AuditKafkaTopic = %q, want %q", cfg.AuditKafkaTopic, "auth.audit")
	}
	if cfg.AuditBufferSize != 256 {
		t.Errorf("AuditBufferSize = %d, want 256", cfg.AuditBufferSize)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("LOCKOUT_THRESHOLD", "3")
	os.Setenv("SESSION_LIMIT_PER_USER", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.LockoutThreshold != 3 {
		t.Errorf("LockoutThreshold = %d, want 3", cfg.LockoutThreshold)
	}
	if cfg.SessionLimit != 2 {
		t.Errorf("SessionLimit = %d, want 2", cfg.SessionLimit)
	}
}

func TestLoad_BcryptCostRange(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  int
		err   bool
	}{
		{"valid min", "4", 4, false},
		{"valid max", "31", 31, false},
		{"valid middle", "12", 12, false},
		{"too low", "3", 0, true},
		{"too high", "32", 0, true},
		{"zero", "0", 12, false}, // falls back to 12
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("BCRYPT_COST", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.BcryptCost != tc.want {
				t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, tc.want)
			}
		})
	}
}

func TestLoad_InvalidThresholds(t *testing.T) {
	os.Clearenv()
	os.Setenv("LOCKOUT_THRESHOLD", "0")
	if _, err := Load(); err == nil {
		t.Error("Load should reject LOCKOUT_THRESHOLD=0")
	}

	os.Clearenv()
	os.Setenv("SESSION_LIMIT_PER_USER", "0")
	if _, err := Load(); err == nil {
		t.Error("Load should reject SESSION_LIMIT_PER_USER=0")
	}
}

func TestSigningKey(t *testing.T) {
	os.Clearenv()
	os.Setenv("AUTH_TOKEN_SECRET", testSecret())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	key, err := cfg.SigningKey()
	if err != nil {
		t.Fatalf("SigningKey: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("key length = %d, want 32", len(key))
	}
}

func TestSigningKey_Unpadded(t *testing.T) {
	cfg := &Config{TokenSecret: base64.RawStdEncoding.EncodeToString(make([]byte, 48))}
	key, err := cfg.SigningKey()
	if err != nil {
		t.Fatalf("SigningKey: %v", err)
	}
	if len(key) != 48 {
		t.Errorf("key length = %d, want 48", len(key))
	}
}

func TestSigningKey_Missing(t *testing.T) {
	cfg := &Config{}
	if _, err := cfg.SigningKey(); err == nil {
		t.Error("SigningKey with empty secret should return error")
	}
}

func TestSigningKey_TooShort(t *testing.T) {
	os.Clearenv()
	os.Setenv("AUTH_TOKEN_SECRET", base64.StdEncoding.EncodeToString(make([]byte, 16)))

	if _, err := Load(); err == nil {
		t.Error("Load should reject a 128-bit signing key")
	}
}

func TestSigningKey_NotBase64(t *testing.T) {
	os.Clearenv()
	os.Setenv("AUTH_TOKEN_SECRET", "not-!!-base64")

	if _, err := Load(); err == nil {
		t.Error("Load should reject a non-base64 signing key")
	}
}

func TestAccessTTL(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"valid", "30m", 30 * time.Minute},
		{"invalid", "invalid", 15 * time.Minute},
		{"zero", "0", 15 * time.Minute},
		{"negative", "-5m", 15 * time.Minute},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{AccessTokenTTL: tc.value}
			if got := cfg.AccessTTL(); got != tc.want {
				t.Errorf("AccessTTL = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRefreshTTL(t *testing.T) {
	cfg := &Config{RefreshTokenTTL: "336h"}
	if got := cfg.RefreshTTL(); got != 14*24*time.Hour {
		t.Errorf("RefreshTTL = %v, want %v", got, 14*24*time.Hour)
	}
	cfg = &Config{RefreshTokenTTL: "bogus"}
	if got := cfg.RefreshTTL(); got != 720*time.Hour {
		t.Errorf("RefreshTTL = %v, want %v (default)", got, 720*time.Hour)
	}
}

func TestLockoutDuration(t *testing.T) {
	cfg := &Config{LockoutWindow: "30m"}
	if got := cfg.LockoutDuration(); got != 30*time.Minute {
		t.Errorf("LockoutDuration = %v, want %v", got, 30*time.Minute)
	}
	cfg = &Config{LockoutWindow: ""}
	if got := cfg.LockoutDuration(); got != 15*time.Minute {
		t.Errorf("LockoutDuration = %v, want %v (default)", got, 15*time.Minute)
	}
}

func TestBreachGracePeriod(t *testing.T) {
	cfg := &Config{BreachGrace: "10m"}
	if got := cfg.BreachGracePeriod(); got != 10*time.Minute {
		t.Errorf("BreachGracePeriod = %v, want %v", got, 10*time.Minute)
	}
	// "0" is a deliberate opt-out, not a fallback to default.
	cfg = &Config{BreachGrace: "0"}
	if got := cfg.BreachGracePeriod(); got != 0 {
		t.Errorf("BreachGracePeriod = %v, want 0 (disabled)", got)
	}
	cfg = &Config{BreachGrace: "bogus"}
	if got := cfg.BreachGracePeriod(); got != 5*time.Minute {
		t.Errorf("BreachGracePeriod = %v, want %v (default)", got, 5*time.Minute)
	}
}

func TestAuditKafkaBrokersList(t *testing.T) {
	cfg := &Config{AuditKafkaBrokers: "localhost:9092, kafka-2:9092 ,"}
	got := cfg.AuditKafkaBrokersList()
	if len(got) != 2 || got[0] != "localhost:9092" || got[1] != "kafka-2:9092" {
		t.Errorf("AuditKafkaBrokersList = %v, want two trimmed brokers", got)
	}

	cfg = &Config{}
	if got := cfg.AuditKafkaBrokersList(); got != nil {
		t.Errorf("AuditKafkaBrokersList on empty config = %v, want nil", got)
	}
}
