// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/aegis-auth/aegis/internal/auth"
	"github.com/aegis-auth/aegis/internal/config"
	"github.com/aegis-auth/aegis/internal/observability"
	"github.com/aegis-auth/aegis/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// StoreFactory opens the configured credential store.
	// Default: openStore
	StoreFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (CredentialStore, error)

	// MigratorFactory creates a migrator for auto-migration.
	// Default: store.NewMigrator
	MigratorFactory func(dialect store.Dialect, dsn string) (AutoMigrator, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, checker observability.ReadinessChecker, logger *slog.Logger) Server

	// APIServerFactory creates the API server.
	// Default: httpapi.NewServer
	APIServerFactory func(addr string, handler http.Handler, logger *slog.Logger) Server

	// LogWriter receives log output.
	// Default: os.Stderr
	LogWriter io.Writer

	// Ready is called once every server is listening.
	Ready func(apiAddr string)
}

// CredentialStore is an opened store that can be probed and released.
type CredentialStore interface {
	auth.CredentialStore
	Ping(ctx context.Context) error
	Close() error
}

// AutoMigrator wraps the migrator methods used at startup.
type AutoMigrator interface {
	Up() error
	Close() error
}

// Server wraps the lifecycle shared by the API and observability servers.
type Server interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}
