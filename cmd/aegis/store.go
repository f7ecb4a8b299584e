// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/aegis-auth/aegis/internal/auth"
	"github.com/aegis-auth/aegis/internal/auth/memory"
	authpg "github.com/aegis-auth/aegis/internal/auth/postgres"
	"github.com/aegis-auth/aegis/internal/auth/redisstore"
	authsqlite "github.com/aegis-auth/aegis/internal/auth/sqlite"
	"github.com/aegis-auth/aegis/internal/config"
	"github.com/aegis-auth/aegis/internal/store"
)

// storeHandle pairs a credential store with the handle that owns its
// connections.
type storeHandle struct {
	auth.CredentialStore
	ping  func(ctx context.Context) error
	close func() error
}

func (h *storeHandle) Ping(ctx context.Context) error { return h.ping(ctx) }

func (h *storeHandle) Close() error { return h.close() }

// openStore opens the credential store named by cfg.Store.Driver.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (CredentialStore, error) {
	opts := store.DefaultConnectOptions()
	opts.Logger = logger

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := store.OpenPostgres(ctx, cfg.Store.DSN, opts)
		if err != nil {
			return nil, oops.With("driver", cfg.Store.Driver).Wrap(err)
		}
		return &storeHandle{
			CredentialStore: authpg.NewAccountRepository(pool),
			ping:            pool.Ping,
			close: func() error {
				pool.Close()
				return nil
			},
		}, nil

	case config.DriverSQLite:
		db, err := store.OpenSQLite(ctx, cfg.Store.DSN, opts)
		if err != nil {
			return nil, oops.With("driver", cfg.Store.Driver).Wrap(err)
		}
		repo := authsqlite.NewAccountRepository(db)
		return &storeHandle{CredentialStore: repo, ping: repo.Ping, close: db.Close}, nil

	case config.DriverRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		rs := redisstore.New(rdb, cfg.Store.Redis.Prefix)
		if err := rs.Ping(ctx); err != nil {
			_ = rdb.Close()
			return nil, oops.Code("STORE_CONNECT_FAILED").With("driver", cfg.Store.Driver).Wrap(err)
		}
		return &storeHandle{CredentialStore: rs, ping: rs.Ping, close: rdb.Close}, nil

	case config.DriverMemory:
		logger.Warn("using in-memory credential store; accounts are lost on exit")
		return memory.New(), nil

	default:
		return nil, oops.Code("CONFIG_INVALID").With("driver", cfg.Store.Driver).Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// migrationDialect reports the migration set for a driver, if it has one.
func migrationDialect(driver string) (store.Dialect, bool) {
	switch driver {
	case config.DriverPostgres:
		return store.DialectPostgres, true
	case config.DriverSQLite:
		return store.DialectSQLite, true
	default:
		return "", false
	}
}
