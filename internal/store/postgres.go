// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

// Package store opens database handles and manages schema migrations for the
// SQL credential stores.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// ConnectOptions tunes the initial connection attempt.
type ConnectOptions struct {
	// MaxRetries bounds the ping attempts after the first one.
	MaxRetries uint64
	// BaseDelay is the first backoff interval; it doubles per retry.
	BaseDelay time.Duration
	Logger    *slog.Logger
}

// DefaultConnectOptions returns the options used by the serve command.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		MaxRetries: 5,
		BaseDelay:  200 * time.Millisecond,
		Logger:     slog.Default(),
	}
}

// pinger is the part of a database handle the retry loop needs.
type pinger interface {
	Ping(ctx context.Context) error
}

// OpenPostgres creates a pgx pool and waits until the server answers a ping.
// Databases started alongside the service may still be booting, so failed
// pings are retried with exponential backoff.
func OpenPostgres(ctx context.Context, dsn string, opts ConnectOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.Code("STORE_CONFIG_INVALID").With("driver", "postgres").Wrap(err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").With("driver", "postgres").Wrap(err)
	}

	if err := waitForPing(ctx, pool, "postgres", opts); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitForPing(ctx context.Context, db pinger, driver string, opts ConnectOptions) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultConnectOptions().BaseDelay
	}

	attempt := 0
	backoff := retry.WithMaxRetries(opts.MaxRetries, retry.NewExponential(opts.BaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := db.Ping(ctx); err != nil {
			opts.Logger.WarnContext(ctx, "database ping failed",
				"driver", driver,
				"attempt", attempt,
				"error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("STORE_CONNECT_FAILED").
			With("driver", driver).
			With("attempts", attempt).
			Wrap(err)
	}
	return nil
}
