package config

import (
	"os"
	"time"
)

// RateLimitConfig configures the two fixed-window limiters: one guarding
// the whole API and a much stricter one for login attempts.
type RateLimitConfig struct {
	Enabled     bool
	Limit       int
	Window      time.Duration
	KeyStrategy string
	Prefix      string
	Debug       bool

	LoginLimit  int
	LoginWindow time.Duration
}

func LoadRateLimitConfig() RateLimitConfig {
	def := RateLimitConfig{
		Enabled:     envBool("RATE_LIMIT_ENABLED", true),
		Limit:       envInt("RATE_LIMIT_LIMIT", 120),
		Window:      envDur("RATE_LIMIT_WINDOW", time.Minute),
		KeyStrategy: envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user"),
		Prefix:      envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:       envBool("RATE_LIMIT_DEBUG", false),
		LoginLimit:  envInt("LOGIN_RATE_LIMIT", 5),
		LoginWindow: envDur("LOGIN_RATE_WINDOW", 15*time.Minute),
	}
	if def.Limit < 1 {
		def.Limit = 1
	}
	if def.Window <= 0 {
		def.Window = time.Minute
	}
	if def.LoginLimit < 1 {
		def.LoginLimit = 1
	}
	if def.LoginWindow <= 0 {
		def.LoginWindow = 15 * time.Minute
	}
	return def
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
