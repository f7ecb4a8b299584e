// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

// Package config loads and validates the aegis service configuration.
//
// Values come from, lowest precedence first: built-in defaults, a YAML file,
// command-line flags the user changed, and the AEGIS_SECRET_KEY and
// DATABASE_URL environment variables.
package config

import (
	"errors"
	"time"

	"github.com/samber/oops"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// Config is the complete service configuration.
type Config struct {
	HTTP    HTTPConfig    `koanf:"http" json:"http,omitempty" yaml:"http"`
	Metrics MetricsConfig `koanf:"metrics" json:"metrics,omitempty" yaml:"metrics"`
	Log     LogConfig     `koanf:"log" json:"log,omitempty" yaml:"log"`
	Auth    AuthConfig    `koanf:"auth" json:"auth,omitempty" yaml:"auth"`
	Store   StoreConfig   `koanf:"store" json:"store,omitempty" yaml:"store"`
}

// HTTPConfig configures the public API listener.
type HTTPConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" yaml:"addr" jsonschema:"description=API listen address"`
}

// MetricsConfig configures the metrics and health listener.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" yaml:"addr" jsonschema:"description=metrics/health listen address; empty disables"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" yaml:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// AuthConfig configures hashing and token issuance.
type AuthConfig struct {
	SecretKey            string       `koanf:"secret_key" json:"secret_key,omitempty" yaml:"secret_key" jsonschema:"description=HS256 signing key; at least 32 bytes"`
	TokenLifetimeMinutes int          `koanf:"token_lifetime_minutes" json:"token_lifetime_minutes,omitempty" yaml:"token_lifetime_minutes" jsonschema:"minimum=1"`
	Issuer               string       `koanf:"issuer" json:"issuer,omitempty" yaml:"issuer"`
	Hasher               string       `koanf:"hasher" json:"hasher,omitempty" yaml:"hasher" jsonschema:"enum=argon2id,enum=bcrypt"`
	Argon2               Argon2Config `koanf:"argon2" json:"argon2,omitempty" yaml:"argon2"`
	BcryptCost           int          `koanf:"bcrypt_cost" json:"bcrypt_cost,omitempty" yaml:"bcrypt_cost" jsonschema:"minimum=4,maximum=31"`
}

// Mirrors the argon2id bounds enforced by the hasher.
const (
	maxArgon2MemoryKiB  = 1 << 20
	maxArgon2Iterations = 64
)

// Argon2Config tunes the argon2id hasher. Zero values select defaults.
type Argon2Config struct {
	MemoryKiB   uint32 `koanf:"memory_kib" json:"memory_kib,omitempty" yaml:"memory_kib" jsonschema:"maximum=1048576"`
	Iterations  uint32 `koanf:"iterations" json:"iterations,omitempty" yaml:"iterations" jsonschema:"maximum=64"`
	Parallelism uint8  `koanf:"parallelism" json:"parallelism,omitempty" yaml:"parallelism"`
}

// StoreConfig selects and configures the credential store.
type StoreConfig struct {
	Driver      string      `koanf:"driver" json:"driver,omitempty" yaml:"driver" jsonschema:"enum=postgres,enum=sqlite,enum=redis,enum=memory"`
	DSN         string      `koanf:"dsn" json:"dsn,omitempty" yaml:"dsn" jsonschema:"description=postgres URL or sqlite file path"`
	AutoMigrate bool        `koanf:"auto_migrate" json:"auto_migrate,omitempty" yaml:"auto_migrate"`
	Redis       RedisConfig `koanf:"redis" json:"redis,omitempty" yaml:"redis"`
}

// RedisConfig configures the redis driver.
type RedisConfig struct {
	Addr     string `koanf:"addr" json:"addr,omitempty" yaml:"addr"`
	Password string `koanf:"password" json:"password,omitempty" yaml:"password"`
	DB       int    `koanf:"db" json:"db,omitempty" yaml:"db" jsonschema:"minimum=0"`
	Prefix   string `koanf:"prefix" json:"prefix,omitempty" yaml:"prefix"`
}

// Default values.
const (
	DefaultHTTPAddr             = "127.0.0.1:8000"
	DefaultMetricsAddr          = "127.0.0.1:9100"
	DefaultLogFormat            = "json"
	DefaultLogLevel             = "info"
	DefaultTokenLifetimeMinutes = 60
	DefaultIssuer               = "aegis"
	DefaultHasher               = "argon2id"
	DefaultBcryptCost           = 12
	DefaultDriver               = DriverSQLite
	DefaultSQLitePath           = "aegis.db"
	DefaultRedisAddr            = "127.0.0.1:6379"
)

// Default returns the configuration used when nothing is overridden.
// It has no secret key.
func Default() *Config {
	return &Config{
		HTTP:    HTTPConfig{Addr: DefaultHTTPAddr},
		Metrics: MetricsConfig{Addr: DefaultMetricsAddr},
		Log:     LogConfig{Format: DefaultLogFormat, Level: DefaultLogLevel},
		Auth: AuthConfig{
			TokenLifetimeMinutes: DefaultTokenLifetimeMinutes,
			Issuer:               DefaultIssuer,
			Hasher:               DefaultHasher,
			BcryptCost:           DefaultBcryptCost,
		},
		Store: StoreConfig{
			Driver:      DefaultDriver,
			DSN:         DefaultSQLitePath,
			AutoMigrate: true,
			Redis:       RedisConfig{Addr: DefaultRedisAddr},
		},
	}
}

// TokenLifetime returns the configured token lifetime.
func (c *Config) TokenLifetime() time.Duration {
	return time.Duration(c.Auth.TokenLifetimeMinutes) * time.Minute
}

// Validate checks structural constraints. The secret key is checked by the
// token issuer at startup, so a file without one still validates.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "http.addr is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level", "log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.Auth.TokenLifetimeMinutes <= 0 {
		return invalid("auth.token_lifetime_minutes", "auth.token_lifetime_minutes must be positive, got %d", c.Auth.TokenLifetimeMinutes)
	}
	switch c.Auth.Hasher {
	case "argon2id":
		if c.Auth.Argon2.MemoryKiB > maxArgon2MemoryKiB {
			return invalid("auth.argon2.memory_kib", "auth.argon2.memory_kib must be at most %d, got %d", maxArgon2MemoryKiB, c.Auth.Argon2.MemoryKiB)
		}
		if c.Auth.Argon2.Iterations > maxArgon2Iterations {
			return invalid("auth.argon2.iterations", "auth.argon2.iterations must be at most %d, got %d", maxArgon2Iterations, c.Auth.Argon2.Iterations)
		}
	case "bcrypt":
		if c.Auth.BcryptCost != 0 && (c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31) {
			return invalid("auth.bcrypt_cost", "auth.bcrypt_cost must be between 4 and 31, got %d", c.Auth.BcryptCost)
		}
	default:
		return invalid("auth.hasher", "auth.hasher must be 'argon2id' or 'bcrypt', got %q", c.Auth.Hasher)
	}
	switch c.Store.Driver {
	case DriverPostgres, DriverSQLite:
		if c.Store.DSN == "" {
			return invalid("store.dsn", "store.dsn is required for the %s driver", c.Store.Driver)
		}
	case DriverRedis:
		if c.Store.Redis.Addr == "" {
			return invalid("store.redis.addr", "store.redis.addr is required for the redis driver")
		}
	case DriverMemory:
	default:
		return invalid("store.driver", "store.driver must be one of postgres, sqlite, redis, memory, got %q", c.Store.Driver)
	}
	return nil
}

// Redact returns a copy with credentials replaced, suitable for display.
func (c *Config) Redact() *Config {
	out := *c
	if out.Auth.SecretKey != "" {
		out.Auth.SecretKey = redacted
	}
	if out.Store.Redis.Password != "" {
		out.Store.Redis.Password = redacted
	}
	if out.Store.Driver == DriverPostgres && out.Store.DSN != "" {
		out.Store.DSN = redactDSN(out.Store.DSN)
	}
	return &out
}

const redacted = "[REDACTED]"

func invalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Wrapf(ErrInvalid, format, args...)
}
