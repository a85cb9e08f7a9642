package config

import (
	"errors"
	"os"
	"time"
)

// Config captures all process-wide configuration. It is built once at
// startup and treated as immutable afterwards; secrets are never logged.
type Config struct {
	Addr string

	// SigningSecret keys the HMAC over session tokens. Rotating it
	// invalidates every outstanding token at once.
	SigningSecret string

	// Authority is the remote system of record for credentials, resource
	// locations, and ratings.
	AuthorityURL    string
	AuthorityAPIKey string

	// AllowedOrigin is the single origin permitted to call the JSON API.
	AllowedOrigin string

	// DefaultOrigin receives every request the gateway does not handle
	// itself. Empty disables the pass-through.
	DefaultOrigin string

	// ContactEmail is surfaced on upstream-failure pages so stuck users
	// have a human fallback.
	ContactEmail string

	// RateLimitDisabled turns off all fixed-window checks (demo/tests).
	RateLimitDisabled bool

	Redis RedisConfig
}

// RedisConfig tunes the shared cache client. An empty URL selects the
// in-process store instead.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RatingsCacheTTL bounds staleness of cached ratings payloads.
var RatingsCacheTTL = 5 * time.Minute

// ErrMissingSigningSecret means SIGNING_SECRET is unset. There is no
// fallback: a known signing key would let anyone mint valid session tokens,
// so the process must refuse to start instead.
var ErrMissingSigningSecret = errors.New("SIGNING_SECRET is required")

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	addr := os.Getenv("COURSEGATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	secret := os.Getenv("SIGNING_SECRET")
	if secret == "" {
		return Config{}, ErrMissingSigningSecret
	}

	return Config{
		Addr:              addr,
		SigningSecret:     secret,
		AuthorityURL:      os.Getenv("AUTHORITY_URL"),
		AuthorityAPIKey:   os.Getenv("AUTHORITY_API_KEY"),
		AllowedOrigin:     os.Getenv("ALLOWED_ORIGIN"),
		DefaultOrigin:     os.Getenv("DEFAULT_ORIGIN_URL"),
		ContactEmail:      os.Getenv("CONTACT_EMAIL"),
		RateLimitDisabled: os.Getenv("RATE_LIMIT_DISABLED") == "true",
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}, nil
}
