// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/enrollkit/enroll/internal/registration"
)

type registerFlags struct {
	email         string
	givenName     string
	familyName    string
	passwordStdin bool
}

// NewRegisterCmd creates the register subcommand.
func NewRegisterCmd() *cobra.Command {
	f := &registerFlags{}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register one account",
		Long: `Register an account against the configured store and notifier and
print the result as JSON. The password is prompted for on a terminal, or read
from the first line of stdin.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRegister(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.email, "email", "", "account email address")
	cmd.Flags().StringVar(&f.givenName, "given-name", "", "given name")
	cmd.Flags().StringVar(&f.familyName, "family-name", "", "family name")
	cmd.Flags().BoolVar(&f.passwordStdin, "password-stdin", false, "read the password from stdin")

	return cmd
}

func runRegister(cmd *cobra.Command, f *registerFlags) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	password, err := readPassword(cmd, f.passwordStdin)
	if err != nil {
		return err
	}

	comps, err := buildComponents(cmd.Context(), cfg, logger, nil)
	if err != nil {
		return err
	}
	defer comps.Close()

	result, err := comps.service.RegisterUser(cmd.Context(), registration.Input{
		Email:      f.email,
		Password:   password,
		GivenName:  f.givenName,
		FamilyName: f.familyName,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
