// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package config

import (
	"os"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Environment variables read by Load.
const (
	EnvSecretKey   = "AEGIS_SECRET_KEY"
	EnvDatabaseURL = "DATABASE_URL"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"http-addr":     "http.addr",
	"metrics-addr":  "metrics.addr",
	"log-format":    "log.format",
	"log-level":     "log.level",
	"store-driver":  "store.driver",
	"store-dsn":     "store.dsn",
	"token-minutes": "auth.token_lifetime_minutes",
	"hasher":        "auth.hasher",
}

// RegisterFlags adds the configuration flags to fs with their defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	def := Default()
	fs.String("http-addr", def.HTTP.Addr, "API listen address")
	fs.String("metrics-addr", def.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", def.Log.Format, "log format (json or text)")
	fs.String("log-level", def.Log.Level, "log level (debug, info, warn, error)")
	fs.String("store-driver", def.Store.Driver, "credential store driver (postgres, sqlite, redis, memory)")
	fs.String("store-dsn", def.Store.DSN, "postgres URL or sqlite file path")
	fs.Int("token-minutes", def.Auth.TokenLifetimeMinutes, "session token lifetime in minutes")
	fs.String("hasher", def.Auth.Hasher, "password hash algorithm (argon2id or bcrypt)")
}

// LoadOptions selects the sources read by Load.
type LoadOptions struct {
	// Path is an optional YAML file. It is checked against the JSON Schema
	// before it is merged.
	Path string
	// Flags is an optional flag set prepared with RegisterFlags.
	Flags *pflag.FlagSet
	// Getenv reads environment variables. Nil selects os.Getenv.
	Getenv func(string) string
}

// Load builds and validates a Config from the sources in opts.
func Load(opts LoadOptions) (*Config, error) {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}

	k := koanf.New(".")

	if opts.Path != "" {
		data, err := os.ReadFile(opts.Path)
		if err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", opts.Path).Wrap(err)
		}
		if err := ValidateSchema(data); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("path", opts.Path).Wrap(err)
		}
		if err := k.Load(file.Provider(opts.Path), koanfyaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("path", opts.Path).Wrap(err)
		}
	}

	if opts.Flags != nil {
		// Unchanged flags only fill keys the file left unset.
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("source", "flags").Wrap(err)
		}
	}

	if v := opts.Getenv(EnvSecretKey); v != "" {
		if err := k.Set("auth.secret_key", v); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").With("source", EnvSecretKey).Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	// DATABASE_URL only names a postgres server.
	if v := opts.Getenv(EnvDatabaseURL); v != "" && cfg.Store.Driver == DriverPostgres {
		cfg.Store.DSN = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
