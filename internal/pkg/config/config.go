// Package config loads service configuration from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Cache drivers.
const (
	CacheDriverRedis  = "redis"
	CacheDriverMemory = "memory"
)

type Config struct {
	Port            string        `env:"PORT,             default=8080"`
	Env             string        `env:"ENV,              default=development"`
	LogLevel        string        `env:"LOG_LEVEL,        default=info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=15s"`

	Auth  AuthConfig
	Mongo MongoConfig
	Redis RedisConfig
	Cache CacheConfig
	Audit AuditConfig
}

type AuthConfig struct {
	AccessSecret  string        `env:"JWT_ACCESS_SECRET,  required"`
	RefreshSecret string        `env:"JWT_REFRESH_SECRET, required"`
	AccessTTL     time.Duration `env:"JWT_ACCESS_TTL,     default=15m"`
	RefreshTTL    time.Duration `env:"JWT_REFRESH_TTL,    default=168h"`
	Issuer        string        `env:"JWT_ISSUER,         default=fleet-api"`
	BcryptCost    int           `env:"BCRYPT_COST,        default=10"`
}

type MongoConfig struct {
	URI      string        `env:"MONGO_URI,     default=mongodb://localhost:27017"`
	Database string        `env:"MONGO_DB,      default=fleet"`
	Timeout  time.Duration `env:"MONGO_TIMEOUT, default=10s"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR,      default=localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,        default=0"`
	PoolSize int           `env:"REDIS_POOL_SIZE, default=10"`
	Timeout  time.Duration `env:"REDIS_TIMEOUT,   default=5s"`
}

type CacheConfig struct {
	Driver string `env:"CACHE_DRIVER, default=redis"`
}

type AuditConfig struct {
	Workers   int           `env:"AUDIT_WORKERS,   default=4"`
	Retention time.Duration `env:"AUDIT_RETENTION, default=2160h"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration through l and validates it.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Validate checks constraints that struct tags cannot express.
func (c *Config) Validate() error {
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	switch c.Cache.Driver {
	case CacheDriverRedis, CacheDriverMemory:
	default:
		return fmt.Errorf("unknown CACHE_DRIVER %q", c.Cache.Driver)
	}
	if c.Audit.Workers < 1 {
		return errors.New("AUDIT_WORKERS must be at least 1")
	}
	return nil
}

// IsDevelopment reports whether the service runs in a local environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "local"
}
