// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-auth/aegis/internal/config"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aegis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestConfigSchema(t *testing.T) {
	out, err := runRoot(t, "config", "schema")
	require.NoError(t, err)
	assert.Contains(t, out, config.SchemaID)
	assert.Contains(t, out, `"secret_key"`)
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid without secret", func(t *testing.T) {
		path := writeFile(t, "store:\n  driver: memory\n")
		out, err := runRoot(t, "config", "validate", path)
		require.NoError(t, err)
		assert.Contains(t, out, "configuration is valid")
		assert.Contains(t, out, config.EnvSecretKey)
	})

	t.Run("valid with secret", func(t *testing.T) {
		path := writeFile(t, "auth:\n  secret_key: "+testSecret+"\n")
		out, err := runRoot(t, "config", "validate", path)
		require.NoError(t, err)
		assert.NotContains(t, out, "note:")
	})

	t.Run("unknown key", func(t *testing.T) {
		path := writeFile(t, "auth:\n  secret: nope\n")
		_, err := runRoot(t, "config", "validate", path)
		require.Error(t, err)
	})

	t.Run("missing argument", func(t *testing.T) {
		_, err := runRoot(t, "config", "validate")
		require.Error(t, err)
	})
}

func TestConfigShow_RedactsCredentials(t *testing.T) {
	t.Setenv(config.EnvSecretKey, testSecret)
	t.Setenv(config.EnvDatabaseURL, "")
	path := writeFile(t, "store:\n  driver: redis\n  redis:\n    password: hunter2\n")

	out, err := runRoot(t, "--config", path, "config", "show")
	require.NoError(t, err)

	assert.Contains(t, out, "driver: redis")
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, testSecret)
	assert.NotContains(t, out, "hunter2")
}
