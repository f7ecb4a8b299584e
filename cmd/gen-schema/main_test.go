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

func TestRun_WritesSchema(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "config.schema.json")

	require.NoError(t, run(out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	want, err := config.GenerateSchema()
	require.NoError(t, err)
	assert.Equal(t, want, data)
}
