// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package store

import (
	"context"
	"database/sql"
	"net/url"
	"strings"

	"github.com/samber/oops"
	// Register the pure-Go sqlite driver.
	_ "modernc.org/sqlite"
)

// sqlitePragmas are applied to every connection in the pool.
var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"foreign_keys(1)",
}

// OpenSQLite opens a sqlite database file and verifies it is reachable.
// path may be a bare file path or a file: URI; pragmas already present in
// the URI are kept.
func OpenSQLite(ctx context.Context, path string, opts ConnectOptions) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, oops.Code("STORE_CONFIG_INVALID").With("driver", "sqlite").Errorf("sqlite path cannot be empty")
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").With("driver", "sqlite").Wrap(err)
	}

	if err := waitForPing(ctx, sqlPinger{db}, "sqlite", opts); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// sqliteDSN appends the connection pragmas to path.
func sqliteDSN(path string) string {
	base, query, _ := strings.Cut(path, "?")
	values, err := url.ParseQuery(query)
	if err != nil {
		values = url.Values{}
	}
	existing := strings.Join(values["_pragma"], ",")
	for _, p := range sqlitePragmas {
		name, _, _ := strings.Cut(p, "(")
		if !strings.Contains(existing, name) {
			values.Add("_pragma", p)
		}
	}
	return base + "?" + values.Encode()
}

type sqlPinger struct {
	db *sql.DB
}

func (p sqlPinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
