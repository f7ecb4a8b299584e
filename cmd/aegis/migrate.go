// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/aegis-auth/aegis/internal/config"
	"github.com/aegis-auth/aegis/internal/store"
)

// schemaMigrator wraps the migrator methods used by the migrate command.
type schemaMigrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
	Dialect() store.Dialect
	Close() error
}

// newSchemaMigrator is replaced in tests.
var newSchemaMigrator = func(dialect store.Dialect, dsn string) (schemaMigrator, error) {
	return store.NewMigrator(dialect, dsn)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
		Long: `Manage the accounts schema of the configured SQL store (postgres or
sqlite). The postgres URL is read from store.dsn or DATABASE_URL.`,
	}
	cmd.PersistentFlags().String("store-driver", config.DefaultDriver, "credential store driver (postgres or sqlite)")
	cmd.PersistentFlags().String("store-dsn", config.DefaultSQLitePath, "postgres URL or sqlite file path")

	var all bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Long: `Roll back the most recent migration. With --all every migration is rolled
back, which drops the accounts table and every stored credential.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m schemaMigrator) error {
				if all {
					if err := m.Down(); err != nil {
						return oops.With("operation", "migrate down").Wrap(err)
					}
					cmd.Println("All migrations rolled back")
					return nil
				}
				if err := m.Steps(-1); err != nil {
					return oops.With("operation", "migrate down one").Wrap(err)
				}
				cmd.Println("Rolled back one migration")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&all, "all", false, "roll back every migration")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(m schemaMigrator) error {
					if err := m.Up(); err != nil {
						return oops.With("operation", "migrate up").Wrap(err)
					}
					cmd.Println("Migrations completed successfully")
					return nil
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(m schemaMigrator) error {
					return printStatus(cmd, m)
				})
			},
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Set the schema version without running migrations",
			Long:  `Mark the schema as being at VERSION and clear the dirty flag. Use only after repairing a failed migration by hand.`,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return oops.Code("INVALID_VERSION").With("version", args[0]).Wrap(err)
				}
				return withMigrator(cmd, func(m schemaMigrator) error {
					if err := m.Force(v); err != nil {
						return oops.With("operation", "force version").Wrap(err)
					}
					cmd.Printf("Schema version forced to %d\n", v)
					return nil
				})
			},
		},
	)
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(schemaMigrator) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dialect, ok := migrationDialect(cfg.Store.Driver)
	if !ok {
		return oops.Code("CONFIG_INVALID").
			With("driver", cfg.Store.Driver).
			Errorf("the %s driver has no schema to migrate", cfg.Store.Driver)
	}

	m, err := newSchemaMigrator(dialect, cfg.Store.DSN)
	if err != nil {
		return oops.Code("MIGRATION_INIT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrf("Warning: failed to close migrator: %v\n", closeErr)
		}
	}()
	return fn(m)
}

func printStatus(cmd *cobra.Command, m schemaMigrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return oops.With("operation", "read version").Wrap(err)
	}
	applied, err := m.AppliedMigrations()
	if err != nil {
		return oops.With("operation", "list applied").Wrap(err)
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return oops.With("operation", "list pending").Wrap(err)
	}

	cmd.Printf("Dialect: %s\n", m.Dialect())
	cmd.Printf("Current version: %d\n", version)
	if dirty {
		cmd.Println("WARNING: schema is dirty; repair it and run 'aegis migrate force VERSION'")
	}
	printList(cmd, m.Dialect(), "Applied", applied)
	printList(cmd, m.Dialect(), "Pending", pending)
	return nil
}

func printList(cmd *cobra.Command, dialect store.Dialect, label string, versions []uint) {
	cmd.Printf("%s (%d):\n", label, len(versions))
	for _, v := range versions {
		name, err := store.MigrationName(dialect, v)
		if err != nil || name == "" {
			name = strconv.FormatUint(uint64(v), 10)
		}
		cmd.Printf("  %s\n", name)
	}
}
