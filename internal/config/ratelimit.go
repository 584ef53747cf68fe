package config

import "time"

// RateLimitConfig configures the Redis token bucket in front of the write
// endpoints.  Every delegate gets Capacity tokens, refilled by RefillTokens
// every RefillInterval.
type RateLimitConfig struct {
	Enabled        bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Capacity       int           `env:"RATE_LIMIT_CAPACITY" envDefault:"20"`
	RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS" envDefault:"1"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"1s"`
	TTL            time.Duration `env:"RATE_LIMIT_TTL" envDefault:"10m"`
	KeyStrategy    string        `env:"RATE_LIMIT_KEY_STRATEGY" envDefault:"delegate_route"` // delegate_route | delegate | ip_route
	Prefix         string        `env:"RATE_LIMIT_PREFIX" envDefault:"rl"`
	Debug          bool          `env:"RATE_LIMIT_DEBUG" envDefault:"false"`
}

// LoadRateLimitConfig reads the limiter settings and clamps them to sane
// minimums.
func LoadRateLimitConfig() (RateLimitConfig, error) {
	var c RateLimitConfig
	if err := ParseEnv(&c); err != nil {
		return RateLimitConfig{}, err
	}
	return c.normalize(), nil
}

func (c RateLimitConfig) normalize() RateLimitConfig {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	// keep a bucket alive for at least a few refill periods
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c
}

// ProjectorCacheConfig controls the Redis cache of read-model views.  When
// Enabled is false, or Redis is unreachable, views are computed from the
// ledger on every read.
type ProjectorCacheConfig struct {
	Enabled bool          `env:"PROJECTOR_CACHE_ENABLED" envDefault:"true"`
	TTL     time.Duration `env:"PROJECTOR_CACHE_TTL" envDefault:"30s"`
	Prefix  string        `env:"PROJECTOR_CACHE_PREFIX" envDefault:"proj"`
}

// LoadProjectorCacheConfig reads the projector cache settings.
func LoadProjectorCacheConfig() (ProjectorCacheConfig, error) {
	var c ProjectorCacheConfig
	if err := ParseEnv(&c); err != nil {
		return ProjectorCacheConfig{}, err
	}
	if c.TTL <= 0 {
		c.TTL = 30 * time.Second
	}
	if c.Prefix == "" {
		c.Prefix = "proj"
	}
	return c, nil
}
