// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewHashCmd creates the hash subcommand.
func NewHashCmd() *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Print the credential digest of a password",
		Long: `Hash a password with the configured argon2id parameters and print
the PHC-formatted digest. Useful for seeding accounts by hand.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			hasher, err := newHasher(cfg.Hasher)
			if err != nil {
				return err
			}

			password, err := readPassword(cmd, fromStdin)
			if err != nil {
				return err
			}
			digest, err := hasher.Hash(password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), digest)
			return err
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}
