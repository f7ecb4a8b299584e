// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package store

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	// Register database drivers for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Dialect names a SQL backend with its own migration set.
type Dialect string

// Supported dialects.
const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect validates a dialect name.
func ParseDialect(name string) (Dialect, error) {
	switch d := Dialect(name); d {
	case DialectPostgres, DialectSQLite:
		return d, nil
	default:
		return "", oops.Code("MIGRATION_UNKNOWN_DIALECT").With("dialect", name).Errorf("migrations are not available for driver %q", name)
	}
}

func (d Dialect) dir() string {
	return "migrations/" + string(d)
}

// Migration versions per dialect, computed once since the embedded FS is immutable.
type versionCache struct {
	once     sync.Once
	versions []uint
	err      error
}

var versionCaches = map[Dialect]*versionCache{
	DialectPostgres: {},
	DialectSQLite:   {},
}

// migrateIface abstracts golang-migrate for testing. The real library needs a
// live database, so unit tests substitute this interface.
type migrateIface interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator wraps golang-migrate for database schema management.
type Migrator struct {
	m       migrateIface
	dialect Dialect
}

// NewMigrator creates a Migrator for the given dialect.
// For postgres, dsn is a connection URL with a postgres:// or postgresql://
// scheme. For sqlite, dsn is a database file path.
func NewMigrator(dialect Dialect, dsn string) (*Migrator, error) {
	if _, ok := versionCaches[dialect]; !ok {
		return nil, oops.Code("MIGRATION_UNKNOWN_DIALECT").With("dialect", string(dialect)).Errorf("unknown migration dialect")
	}

	source, err := iofs.New(migrationsFS, dialect.dir())
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").With("operation", "create migration source").Wrap(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(dialect, dsn))
	if err != nil {
		_ = source.Close() //nolint:errcheck // init error takes precedence
		return nil, oops.Code("MIGRATION_INIT_FAILED").
			With("operation", "initialize migrator").
			With("dialect", string(dialect)).
			Wrap(err)
	}

	return &Migrator{m: m, dialect: dialect}, nil
}

// migrateURL converts a store DSN to the URL scheme golang-migrate expects.
func migrateURL(dialect Dialect, dsn string) string {
	switch dialect {
	case DialectPostgres:
		if rest, found := strings.CutPrefix(dsn, "postgres://"); found {
			return "pgx5://" + rest
		}
		if rest, found := strings.CutPrefix(dsn, "postgresql://"); found {
			return "pgx5://" + rest
		}
		return dsn
	case DialectSQLite:
		if strings.HasPrefix(dsn, "sqlite://") {
			return dsn
		}
		return "sqlite://" + dsn
	default:
		return dsn
	}
}

// Dialect returns the dialect this migrator was created for.
func (m *Migrator) Dialect() Dialect {
	return m.dialect
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

// Down rolls back all migrations to version 0.
// WARNING: This drops the accounts table and every stored credential.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_DOWN_FAILED").Wrap(err)
	}
	return nil
}

// Steps applies n migrations. Positive n migrates up, negative n migrates down.
func (m *Migrator) Steps(n int) error {
	if err := m.m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_STEPS_FAILED").With("steps", n).Wrap(err)
	}
	return nil
}

// Version returns the current migration version and dirty state.
// Returns version 0 with dirty=false if no migrations have been applied.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

// Force sets the migration version without running migrations.
// Use only for recovering from a dirty state after manually fixing the database.
func (m *Migrator) Force(version int) error {
	if version < 0 {
		return oops.Code("INVALID_VERSION").Errorf("version must be non-negative, got %d", version)
	}
	if err := m.m.Force(version); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

// Close releases resources.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if srcErr != nil && dbErr != nil {
		return oops.Code("MIGRATION_CLOSE_FAILED").
			With("component", "both").
			Errorf("source: %v; database: %v", srcErr, dbErr)
	}
	if srcErr != nil {
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "source").Wrap(srcErr)
	}
	if dbErr != nil {
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "database").Wrap(dbErr)
	}
	return nil
}

// PendingMigrations returns the versions Up would apply, ascending.
func (m *Migrator) PendingMigrations() ([]uint, error) {
	currentVersion, _, err := m.Version()
	if err != nil {
		return nil, oops.With("operation", "get pending migrations").Wrap(err)
	}

	allVersions, err := allMigrationVersions(m.dialect)
	if err != nil {
		return nil, oops.With("operation", "get pending migrations").Wrap(err)
	}

	var pending []uint
	for _, v := range allVersions {
		if v > currentVersion {
			pending = append(pending, v)
		}
	}
	return pending, nil
}

// AppliedMigrations returns the versions already applied, ascending.
func (m *Migrator) AppliedMigrations() ([]uint, error) {
	currentVersion, _, err := m.Version()
	if err != nil {
		return nil, oops.With("operation", "get applied migrations").Wrap(err)
	}

	if currentVersion == 0 {
		return nil, nil
	}

	allVersions, err := allMigrationVersions(m.dialect)
	if err != nil {
		return nil, oops.With("operation", "get applied migrations").Wrap(err)
	}

	var applied []uint
	for _, v := range allVersions {
		if v <= currentVersion {
			applied = append(applied, v)
		}
	}
	return applied, nil
}

// MigrationName returns the NNNNNN_name of a migration, or "" when the
// version does not exist for the dialect.
func MigrationName(dialect Dialect, version uint) (string, error) {
	entries, err := fs.ReadDir(migrationsFS, dialect.dir())
	if err != nil {
		return "", oops.Code("MIGRATION_READ_FAILED").With("operation", "read migrations dir").Wrap(err)
	}

	prefix := fmt.Sprintf("%06d_", version)
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".up.sql") {
			return strings.TrimSuffix(name, ".up.sql"), nil
		}
	}
	return "", nil
}

// allMigrationVersions returns a copy of the cached, sorted version list.
func allMigrationVersions(dialect Dialect) ([]uint, error) {
	cache, ok := versionCaches[dialect]
	if !ok {
		return nil, oops.Code("MIGRATION_UNKNOWN_DIALECT").With("dialect", string(dialect)).Errorf("unknown migration dialect")
	}
	cache.once.Do(func() {
		cache.versions, cache.err = loadMigrationVersions(dialect)
	})
	if cache.err != nil {
		return nil, cache.err
	}
	result := make([]uint, len(cache.versions))
	copy(result, cache.versions)
	return result, nil
}

// loadMigrationVersions parses version numbers from the embedded file names.
// Files not matching NNNNNN_name.up.sql are logged and skipped.
func loadMigrationVersions(dialect Dialect) ([]uint, error) {
	entries, err := fs.ReadDir(migrationsFS, dialect.dir())
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").With("operation", "read migrations dir").Wrap(err)
	}

	versionSet := make(map[uint]struct{})
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		var version uint
		if _, err := fmt.Sscanf(name, "%06d", &version); err != nil {
			slog.Warn("migration file name doesn't match expected format, skipping",
				"filename", name,
				"dialect", string(dialect),
				"expected_format", "NNNNNN_name.up.sql",
				"error", err)
			continue
		}
		versionSet[version] = struct{}{}
	}

	versions := make([]uint, 0, len(versionSet))
	for v := range versionSet {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}
