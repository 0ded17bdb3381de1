package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads a token bucket configuration. envPrefix selects
// the variable family, e.g. "AUTH_RATE_LIMIT" reads AUTH_RATE_LIMIT_CAPACITY.
// The defaults are tuned for the credential endpoints: a burst of 10 and one
// token back every 30 seconds per client IP.
func LoadRateLimitConfig(envPrefix string) RateLimitConfig {
	p := strings.TrimSuffix(envPrefix, "_") + "_"
	def := RateLimitConfig{
		Enabled:        envBool(p+"ENABLED", true),
		Capacity:       envInt(p+"CAPACITY", 10),
		RefillTokens:   envInt(p+"REFILL_TOKENS", 1),
		RefillInterval: envDur(p+"REFILL_INTERVAL", 30*time.Second),
		TTL:            envDur(p+"TTL", 15*time.Minute),
		KeyStrategy:    envStr(p+"KEY_STRATEGY", "ip_route"),
		Prefix:         envStr(p+"PREFIX", "rl"),
		Debug:          envBool(p+"DEBUG", false),
	}
	if b := envInt(p+"BURST", -1); b > 0 {
		def.Capacity = b
	}
	if every := envDur(p+"REFILL_EVERY", 0); every > 0 {
		def.RefillTokens = 1
		def.RefillInterval = every
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	minTTL := 5 * def.RefillInterval
	if def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	// "7d" style values, as accepted by the frontend tooling.
	if days, ok := strings.CutSuffix(v, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour
		}
	}
	return d
}
