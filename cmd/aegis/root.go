// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/aegis-auth/aegis/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the aegis CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aegis",
		Short: "Aegis - credential issuance and validation service",
		Long: `Aegis registers user accounts with hashed passwords, authenticates
login attempts, and issues time-bounded signed session tokens.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewHashCmd())

	return cmd
}

// loadConfig reads the configuration for cmd from the --config file, the
// command's flags and the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	//nolint:wrapcheck // config errors carry their own codes
	return config.Load(config.LoadOptions{
		Path:   configFile,
		Flags:  cmd.Flags(),
		Getenv: os.Getenv,
	})
}
