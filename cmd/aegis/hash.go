// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"bufio"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/aegis-auth/aegis/internal/auth"
)

// NewHashCmd creates the hash subcommand.
func NewHashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Hash a password read from stdin",
		Long: `Read one line from stdin and print its hash using the configured
algorithm. Useful for seeding accounts directly into a store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			hasher, err := auth.NewPasswordHasher(hasherOptions(cfg))
			if err != nil {
				return oops.With("operation", "configure password hasher").Wrap(err)
			}

			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return oops.Code("HASH_INPUT_EMPTY").Errorf("no password on stdin")
			}
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				return oops.Code("HASH_INPUT_EMPTY").Errorf("no password on stdin")
			}

			hash, err := hasher.Hash(password)
			if err != nil {
				return oops.With("operation", "hash password").Wrap(err)
			}
			cmd.Println(hash)
			return nil
		},
	}
	cmd.Flags().String("hasher", auth.AlgorithmArgon2id, "password hash algorithm (argon2id or bcrypt)")
	return cmd
}
