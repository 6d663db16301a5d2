package config

import (
	"fmt"
	"strings"
	"time"
)

// RateLimitConfig drives the Redis token bucket in front of the public
// booking endpoints.  Capacity tokens refill by RefillTokens every
// RefillInterval; buckets idle for TTL are dropped.
type RateLimitConfig struct {
	Enabled        bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Capacity       int           `env:"RATE_LIMIT_CAPACITY" envDefault:"30"`
	RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS" envDefault:"1"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"2s"`
	TTL            time.Duration `env:"RATE_LIMIT_TTL" envDefault:"10m"`
	KeyStrategy    string        `env:"RATE_LIMIT_KEY_STRATEGY" envDefault:"ip_route"` // ip, user, route, ip_route
	Prefix         string        `env:"RATE_LIMIT_PREFIX" envDefault:"rl"`
	Debug          bool          `env:"RATE_LIMIT_DEBUG"`
}

// normalize clamps the bucket parameters to usable values.
func (c RateLimitConfig) normalize() RateLimitConfig {
	c.KeyStrategy = strings.ToLower(strings.TrimSpace(c.KeyStrategy))
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	return c
}

func (c RateLimitConfig) validate() error {
	switch c.KeyStrategy {
	case "ip", "user", "route", "ip_route", "all":
		return nil
	}
	return fmt.Errorf("RATE_LIMIT_KEY_STRATEGY %q: want ip, user, route, ip_route or all", c.KeyStrategy)
}
