// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/aegis-auth/aegis/internal/auth"
	"github.com/aegis-auth/aegis/internal/config"
	"github.com/aegis-auth/aegis/internal/httpapi"
	"github.com/aegis-auth/aegis/internal/logging"
	"github.com/aegis-auth/aegis/internal/observability"
	"github.com/aegis-auth/aegis/internal/store"
)

// shutdownTimeout bounds graceful shutdown of each server.
const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the credential API server",
		Long: `Start the HTTP API for registration, login and token checks, plus the
metrics and health endpoints. The signing secret must be provided through
auth.secret_key or AEGIS_SECRET_KEY; startup fails without it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps starts the service with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.StoreFactory == nil {
		deps.StoreFactory = openStore
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(dialect store.Dialect, dsn string) (AutoMigrator, error) {
			return store.NewMigrator(dialect, dsn)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, checker observability.ReadinessChecker, logger *slog.Logger) Server {
			return observability.NewServer(addr, checker, logger)
		}
	}
	if deps.APIServerFactory == nil {
		deps.APIServerFactory = func(addr string, handler http.Handler, logger *slog.Logger) Server {
			return httpapi.NewServer(addr, handler, logger)
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	logger := logging.Setup(logging.Options{
		Service: "aegis",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
	}, deps.LogWriter)
	slog.SetDefault(logger)

	// A missing or weak secret is fatal before anything listens.
	tokens, err := auth.NewTokenIssuer([]byte(cfg.Auth.SecretKey), auth.WithIssuer(cfg.Auth.Issuer))
	if err != nil {
		return oops.With("operation", "configure token issuer").Wrap(err)
	}

	hasher, err := auth.NewPasswordHasher(hasherOptions(cfg))
	if err != nil {
		return oops.With("operation", "configure password hasher").Wrap(err)
	}

	if err := autoMigrate(cfg, deps, logger); err != nil {
		return err
	}

	credentials, err := deps.StoreFactory(ctx, cfg, logger)
	if err != nil {
		return oops.Code("STORE_OPEN_FAILED").With("driver", cfg.Store.Driver).Wrap(err)
	}
	defer func() {
		if closeErr := credentials.Close(); closeErr != nil {
			logger.Warn("error closing credential store", "error", closeErr)
		}
	}()
	logger.Info("credential store ready", "driver", cfg.Store.Driver)

	svc, err := auth.NewServiceWithLogger(credentials, hasher, tokens, cfg.TokenLifetime(), logger)
	if err != nil {
		return oops.With("operation", "create auth service").Wrap(err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiServer := deps.APIServerFactory(cfg.HTTP.Addr, httpapi.NewHandler(svc, logger), logger)
	apiErrCh, err := apiServer.Start()
	if err != nil {
		return oops.Code("HTTP_START_FAILED").Wrap(err)
	}
	defer stopServer(apiServer, "api", logger)

	var obsErrCh <-chan error
	if cfg.Metrics.Addr != "" {
		obsServer := deps.ObservabilityServerFactory(cfg.Metrics.Addr, credentials.Ping, logger)
		obsErrCh, err = obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		defer stopServer(obsServer, "observability", logger)
	}

	cmd.Println("Aegis started")
	logger.Info("aegis ready",
		"api_addr", apiServer.Addr(),
		"metrics_addr", cfg.Metrics.Addr,
		"token_lifetime", cfg.TokenLifetime().String(),
		"hasher", cfg.Auth.Hasher,
	)
	if deps.Ready != nil {
		deps.Ready(apiServer.Addr())
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err, ok := <-apiErrCh:
		if ok && err != nil {
			return oops.Code("HTTP_SERVE_FAILED").Wrap(err)
		}
	case err, ok := <-obsErrCh:
		if ok && err != nil {
			return oops.Code("OBSERVABILITY_SERVE_FAILED").Wrap(err)
		}
	}
	return nil
}

func autoMigrate(cfg *config.Config, deps *ServeDeps, logger *slog.Logger) error {
	dialect, ok := migrationDialect(cfg.Store.Driver)
	if !ok || !cfg.Store.AutoMigrate {
		return nil
	}

	migrator, err := deps.MigratorFactory(dialect, cfg.Store.DSN)
	if err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("dialect", string(dialect)).Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("error closing migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("dialect", string(dialect)).Wrap(err)
	}
	logger.Info("database migrations applied", "dialect", string(dialect))
	return nil
}

func stopServer(s Server, name string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}

func hasherOptions(cfg *config.Config) auth.HasherOptions {
	return auth.HasherOptions{
		Algorithm: cfg.Auth.Hasher,
		Argon2id: auth.Argon2idParams{
			MemoryKiB:   cfg.Auth.Argon2.MemoryKiB,
			Iterations:  cfg.Auth.Argon2.Iterations,
			Parallelism: cfg.Auth.Argon2.Parallelism,
		},
		BcryptCost: cfg.Auth.BcryptCost,
	}
}
