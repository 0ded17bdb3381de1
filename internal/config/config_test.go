package config

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, name := range []string{"MONGO_URI", "JWT_SECRET"} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("error %q does not name %s", err, name)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CLIENT_URL", "https://app.example.com/")
	t.Setenv("JWT_EXPIRES_IN", "")
	t.Setenv("BCRYPT_COST", "")
	t.Setenv("MAX_UPLOAD_MB", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.JWTExpiresIn != 7*24*time.Hour {
		t.Fatalf("JWTExpiresIn = %v", cfg.JWTExpiresIn)
	}
	if cfg.BcryptCost != 12 || cfg.MaxUploadBytes != 50<<20 {
		t.Fatalf("cost = %d max = %d", cfg.BcryptCost, cfg.MaxUploadBytes)
	}
	if cfg.ClientURL != "https://app.example.com" {
		t.Fatalf("ClientURL = %q", cfg.ClientURL)
	}
	if cfg.RestrictStaffSignup {
		t.Fatal("staff signup restricted by default")
	}
}

func TestLoadRejectsBcryptCost(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("BCRYPT_COST", "40")
	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}

func TestEnvDur(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"", time.Minute},
		{"90s", 90 * time.Second},
		{"7d", 7 * 24 * time.Hour},
		{"0d", time.Minute},
		{"soon", time.Minute},
	}
	for _, tt := range tests {
		t.Setenv("TEST_DUR", tt.raw)
		if got := envDur("TEST_DUR", time.Minute); got != tt.want {
			t.Fatalf("envDur(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestLoadRateLimitConfig(t *testing.T) {
	t.Setenv("AUTH_RATE_LIMIT_BURST", "3")
	t.Setenv("AUTH_RATE_LIMIT_REFILL_EVERY", "1m")
	t.Setenv("AUTH_RATE_LIMIT_TTL", "1s")

	c := LoadRateLimitConfig("AUTH_RATE_LIMIT")
	if c.Capacity != 3 || c.RefillTokens != 1 || c.RefillInterval != time.Minute {
		t.Fatalf("config = %+v", c)
	}
	if c.TTL != 5*time.Minute {
		t.Fatalf("TTL = %v, want clamped to 5 intervals", c.TTL)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := NewLogger("production", tt.level, "test").GetLevel(); got != tt.want {
			t.Errorf("NewLogger(%q) level = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestRabbitURLFallback(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://fallback")
	if got := RabbitURL(); got != "amqp://fallback" {
		t.Fatalf("RabbitURL() = %q", got)
	}
	t.Setenv("RABBITMQ_URL", "amqp://primary")
	if got := RabbitURL(); got != "amqp://primary" {
		t.Fatalf("RabbitURL() = %q", got)
	}
}
