// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/enrollkit/enroll/internal/config"
	"github.com/enrollkit/enroll/internal/logging"
	"github.com/enrollkit/enroll/internal/xdg"
)

const serviceName = "enroll"

// NewRootCmd creates the root command for the enroll CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "enroll - user account registration service",
		Long: `enroll registers user accounts: it validates input, hashes the
password with argon2id, stores the account and sends a verification email.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (default: XDG_CONFIG_HOME/enroll/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewRegisterCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewHashCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// loadConfig resolves and validates configuration for cmd. An explicit
// --config file must exist; the default location is optional.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	required := path != ""
	if path == "" {
		if path, err = xdg.ConfigFile(); err != nil {
			// No home directory: defaults and flags only.
			path = ""
		}
	}

	cfg, err := config.Load(path, required, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the command logger on cmd's error stream.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.Setup(serviceName, version, logOptions(cfg), cmd.ErrOrStderr())
}

func logOptions(cfg *config.Config) logging.Options {
	return logging.Options{Format: cfg.Log.Format, Level: cfg.Log.Level}
}
