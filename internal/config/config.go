package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/iliyamo/seat-reservation/internal/database"
	"github.com/iliyamo/seat-reservation/internal/model"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; defaults match a local development setup.
type Config struct {
	Env  string `env:"APP_ENV" envDefault:"dev"`   // application environment (dev/test/prod)
	Port string `env:"APP_PORT" envDefault:"8080"` // HTTP port to listen on

	StoreDriver      string        `env:"STORE_DRIVER" envDefault:"mysql"`
	DBUser           string        `env:"DB_USER" envDefault:"root"`
	DBPass           string        `env:"DB_PASS"` // empty allowed
	DBHost           string        `env:"DB_HOST" envDefault:"127.0.0.1"`
	DBPort           string        `env:"DB_PORT" envDefault:"3306"`
	DBName           string        `env:"DB_NAME" envDefault:"seats"`
	DatabaseURL      string        `env:"DATABASE_URL"` // postgres driver only
	DBConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"30s"`

	HoldTTL       time.Duration `env:"HOLD_TTL" envDefault:"30m"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5s"`
	SweepBatch    int           `env:"SWEEP_BATCH" envDefault:"100"`
	SeatCatalog   string        `env:"SEAT_CATALOG" envDefault:"WLA:1-80,WLB:1-80"`

	JWTSecret         string `env:"JWT_SECRET,required,notEmpty"` // secret used to sign admin tokens
	AccessTTLMin      int    `env:"ACCESS_TOKEN_TTL_MIN" envDefault:"60"`
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"` // bcrypt hash of the admin password
	AdminPassword     string `env:"ADMIN_PASSWORD"`      // plain password, hashed at startup
	BcryptCost        int    `env:"BCRYPT_COST" envDefault:"10"`

	RabbitURL    string `env:"RABBITMQ_URL"`
	AMQPURL      string `env:"AMQP_URL"`
	AuditLogPath string `env:"AUDIT_LOG_PATH" envDefault:"logs/booking.log"`

	Redis     RedisConfig
	RateLimit RateLimitConfig
}

// Parse reads the configuration from the process environment and
// validates it.
func Parse() (Config, error) {
	return parse(env.Options{})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Redis = cfg.Redis.resolve()
	cfg.RateLimit = cfg.RateLimit.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads an optional .env file, then the environment.  Invalid
// configuration halts the program with a fatal log message.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("config: loaded .env")
	}
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// Validate checks the cross-field rules the struct tags cannot express.
func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case DriverMySQL, DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q: want mysql, postgres or memory", c.StoreDriver))
	}
	if c.HoldTTL <= 0 {
		errs = append(errs, errors.New("HOLD_TTL must be positive"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}
	if c.SweepBatch <= 0 {
		errs = append(errs, errors.New("SWEEP_BATCH must be positive"))
	}
	if c.AccessTTLMin <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL_MIN must be positive"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST %d out of range 4..31", c.BcryptCost))
	}
	if err := c.RateLimit.validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Redis.DB < 0 {
		errs = append(errs, errors.New("REDIS_DB must not be negative"))
	}
	if _, err := c.Catalog(); err != nil {
		errs = append(errs, fmt.Errorf("SEAT_CATALOG: %w", err))
	}
	return errors.Join(errs...)
}

// Catalog parses SeatCatalog.
func (c Config) Catalog() ([]model.SeatID, error) {
	return model.ParseCatalog(c.SeatCatalog)
}

// MySQL returns the connection parameters for the MySQL store.
func (c Config) MySQL() database.MySQLConfig {
	return database.MySQLConfig{User: c.DBUser, Pass: c.DBPass, Host: c.DBHost, Port: c.DBPort, Name: c.DBName}
}

// AccessTTL is the admin token lifetime.
func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMin) * time.Minute
}

// BrokerURL returns the RabbitMQ URL, preferring RABBITMQ_URL over
// AMQP_URL.  Empty disables event publishing.
func (c Config) BrokerURL() string {
	if c.RabbitURL != "" {
		return c.RabbitURL
	}
	return c.AMQPURL
}
