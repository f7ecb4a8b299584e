// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aegis-auth/aegis/internal/config"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "schema",
			Short: "Print the configuration JSON Schema",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				schema, err := config.GenerateSchema()
				if err != nil {
					return oops.With("operation", "generate schema").Wrap(err)
				}
				cmd.Println(string(schema))
				return nil
			},
		},
		&cobra.Command{
			Use:   "validate FILE",
			Short: "Check a configuration file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load(config.LoadOptions{
					Path:   args[0],
					Getenv: func(string) string { return "" },
				})
				if err != nil {
					return oops.With("path", args[0]).Wrap(err)
				}
				cmd.Printf("%s: configuration is valid\n", args[0])
				if cfg.Auth.SecretKey == "" {
					cmd.Printf("note: auth.secret_key is not set; serve needs %s\n", config.EnvSecretKey)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration with credentials redacted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := config.Load(config.LoadOptions{Path: configFile, Getenv: os.Getenv})
				if err != nil {
					return oops.With("operation", "load config").Wrap(err)
				}
				out, err := yaml.Marshal(cfg.Redact())
				if err != nil {
					return oops.With("operation", "encode config").Wrap(err)
				}
				cmd.Print(string(out))
				return nil
			},
		},
	)
	return cmd
}
