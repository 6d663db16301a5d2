package config

import (
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
)

func parseEnv(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func TestParseDefaults(t *testing.T) {
	cfg, err := parseEnv(map[string]string{"JWT_SECRET": "s"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Port != "8080" || cfg.StoreDriver != DriverMySQL || cfg.HoldTTL != 30*time.Minute {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.SweepInterval != 5*time.Second || cfg.SweepBatch != 100 || cfg.AccessTTL() != time.Hour {
		t.Fatalf("defaults = %+v", cfg)
	}
	seats, err := cfg.Catalog()
	if err != nil || len(seats) != 160 {
		t.Fatalf("catalog = %d seats, %v", len(seats), err)
	}
	if got := cfg.MySQL().DSN(); !strings.HasPrefix(got, "root@tcp(127.0.0.1:3306)/seats?") {
		t.Fatalf("dsn = %q", got)
	}
}

func TestParseRequiresJWTSecret(t *testing.T) {
	if _, err := parseEnv(map[string]string{}); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		vars map[string]string
	}{
		{"unknown driver", map[string]string{"STORE_DRIVER": "oracle"}},
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres"}},
		{"zero ttl", map[string]string{"HOLD_TTL": "0s"}},
		{"bad catalog", map[string]string{"SEAT_CATALOG": "WLA:5-1"}},
		{"bcrypt cost", map[string]string{"BCRYPT_COST": "2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.vars["JWT_SECRET"] = "s"
			if _, err := parseEnv(tc.vars); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestBrokerURLPrefersRabbitMQ(t *testing.T) {
	cfg := Config{AMQPURL: "amqp://b"}
	if cfg.BrokerURL() != "amqp://b" {
		t.Fatalf("broker = %q", cfg.BrokerURL())
	}
	cfg.RabbitURL = "amqp://a"
	if cfg.BrokerURL() != "amqp://a" {
		t.Fatalf("broker = %q", cfg.BrokerURL())
	}
}

func TestRateLimitConfig(t *testing.T) {
	cfg, err := parseEnv(map[string]string{
		"JWT_SECRET":                 "s",
		"RATE_LIMIT_CAPACITY":        "0",
		"RATE_LIMIT_REFILL_INTERVAL": "1m",
		"RATE_LIMIT_TTL":             "1s",
		"RATE_LIMIT_ENABLED":         "false",
		"RATE_LIMIT_KEY_STRATEGY":    "IP",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rl := cfg.RateLimit
	if rl.Enabled || rl.Capacity != 1 || rl.TTL != 5*time.Minute || rl.KeyStrategy != "ip" {
		t.Fatalf("rate limit = %+v", rl)
	}

	def, err := parseEnv(map[string]string{"JWT_SECRET": "s"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !def.RateLimit.Enabled || def.RateLimit.Capacity != 30 || def.RateLimit.RefillInterval != 2*time.Second {
		t.Fatalf("rate limit defaults = %+v", def.RateLimit)
	}
}

func TestRedisConfig(t *testing.T) {
	cfg, err := parseEnv(map[string]string{"JWT_SECRET": "s", "REDIS_ADDR": "cache:6380"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Redis.Addr != "cache:6380" {
		t.Fatalf("addr = %q", cfg.Redis.Addr)
	}
	cfg, err = parseEnv(map[string]string{"JWT_SECRET": "s", "REDIS_ADDR": "cache:6380", "REDIS_HOST": "redis", "REDIS_PORT": "6379"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("addr = %q", cfg.Redis.Addr)
	}
}

func TestMalformedValuesFailParse(t *testing.T) {
	cases := map[string]string{
		"RATE_LIMIT_CAPACITY":        "abc",
		"RATE_LIMIT_REFILL_INTERVAL": "2 seconds",
		"RATE_LIMIT_ENABLED":         "maybe",
		"RATE_LIMIT_KEY_STRATEGY":    "cookie",
		"REDIS_DB":                   "one",
		"REDIS_TLS":                  "sometimes",
		"HOLD_TTL":                   "abc",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			if _, err := parseEnv(map[string]string{"JWT_SECRET": "s", key: val}); err == nil {
				t.Fatalf("%s=%q parsed without error", key, val)
			}
		})
	}
}
