// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-auth/aegis/internal/config"
	"github.com/aegis-auth/aegis/pkg/errutil"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aegis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := config.Load(config.LoadOptions{Getenv: env(nil)})
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: "0.0.0.0:8080"
log:
  format: text
  level: debug
auth:
  token_lifetime_minutes: 15
  hasher: bcrypt
  bcrypt_cost: 10
store:
  driver: memory
`)

	cfg, err := config.Load(config.LoadOptions{Path: path, Getenv: env(nil)})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 15, cfg.Auth.TokenLifetimeMinutes)
	assert.Equal(t, "bcrypt", cfg.Auth.Hasher)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, config.DriverMemory, cfg.Store.Driver)
	// Unset keys keep their defaults.
	assert.Equal(t, config.DefaultMetricsAddr, cfg.Metrics.Addr)
	assert.Equal(t, config.DefaultIssuer, cfg.Auth.Issuer)
}

func TestLoad_UnchangedFlagsDoNotOverrideFile(t *testing.T) {
	path := writeConfig(t, "http:\n  addr: \"0.0.0.0:8080\"\n")

	cfg, err := config.Load(config.LoadOptions{
		Path:   path,
		Flags:  newFlags(t),
		Getenv: env(nil),
	})
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr)
}

func TestLoad_ChangedFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "http:\n  addr: \"0.0.0.0:8080\"\nauth:\n  token_lifetime_minutes: 15\n")

	cfg, err := config.Load(config.LoadOptions{
		Path:   path,
		Flags:  newFlags(t, "--http-addr", "127.0.0.1:9999", "--token-minutes", "5"),
		Getenv: env(nil),
	})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.HTTP.Addr)
	assert.Equal(t, 5, cfg.Auth.TokenLifetimeMinutes)
}

func TestLoad_Environment(t *testing.T) {
	path := writeConfig(t, "auth:\n  secret_key: from-file-0123456789abcdef0123456789\nstore:\n  driver: postgres\n  dsn: postgres://file/db\n")

	cfg, err := config.Load(config.LoadOptions{
		Path: path,
		Getenv: env(map[string]string{
			config.EnvSecretKey:   "from-env-0123456789abcdef0123456789",
			config.EnvDatabaseURL: "postgres://env/db",
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, "from-env-0123456789abcdef0123456789", cfg.Auth.SecretKey)
	assert.Equal(t, "postgres://env/db", cfg.Store.DSN)
}

func TestLoad_DatabaseURLIgnoredForSQLite(t *testing.T) {
	cfg, err := config.Load(config.LoadOptions{
		Getenv: env(map[string]string{config.EnvDatabaseURL: "postgres://env/db"}),
	})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSQLitePath, cfg.Store.DSN)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(config.LoadOptions{Path: filepath.Join(t.TempDir(), "nope.yaml"), Getenv: env(nil)})
		errutil.AssertErrorCode(t, err, "CONFIG_READ_FAILED")
	})

	t.Run("unknown key", func(t *testing.T) {
		path := writeConfig(t, "htp:\n  addr: x\n")
		_, err := config.Load(config.LoadOptions{Path: path, Getenv: env(nil)})
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})

	t.Run("invalid value", func(t *testing.T) {
		path := writeConfig(t, "log:\n  format: xml\n")
		_, err := config.Load(config.LoadOptions{Path: path, Getenv: env(nil)})
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})

	t.Run("invalid flag value", func(t *testing.T) {
		_, err := config.Load(config.LoadOptions{
			Flags:  newFlags(t, "--store-driver", "mysql"),
			Getenv: env(nil),
		})
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})
}
