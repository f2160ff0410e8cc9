// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/enrollkit/enroll/internal/config"
	"github.com/enrollkit/enroll/internal/store"
)

// migrator is the part of store.Migrator the migrate commands use.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Version() (uint, bool, error)
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
	Close() error
}

type migratorFactory func(databaseURL string) (migrator, error)

func defaultMigratorFactory(databaseURL string) (migrator, error) {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(defaultMigratorFactory)
}

func newMigrateCmd(factory migratorFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL account schema",
		Long:  `Apply, roll back or inspect the PostgreSQL account schema migrations.`,
	}

	var confirm bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all accounts)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return oops.Code("CONFIRMATION_REQUIRED").Errorf("migrate down drops all accounts; pass --yes to confirm")
			}
			return withMigrator(cmd, factory, func(m migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("All migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&confirm, "yes", false, "confirm dropping all data")

	var confirmSteps bool
	steps := &cobra.Command{
		Use:   "steps N",
		Short: "Apply N migrations, or roll back N when negative",
		Long: `Apply the next N migrations. A negative N rolls back that many and
needs --yes. Pass negative values after "--", e.g. "enroll migrate steps --yes -- -1".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseSteps(args[0])
			if err != nil {
				return err
			}
			if n < 0 && !confirmSteps {
				return oops.Code("CONFIRMATION_REQUIRED").
					With("steps", n).
					Errorf("rolling back migrations may drop accounts; pass --yes to confirm")
			}
			return withMigrator(cmd, factory, func(m migrator) error {
				if err := m.Steps(n); err != nil {
					return err
				}
				version, _, err := m.Version()
				if err != nil {
					return err
				}
				cmd.Printf("Schema at version %d\n", version)
				return nil
			})
		},
	}
	steps.Flags().BoolVar(&confirmSteps, "yes", false, "confirm rolling back")

	force := &cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied and clear the dirty flag",
		Long: `Record VERSION as the applied schema version without running any
migration. Use it after repairing a migration that failed part way.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, factory, func(m migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Schema version forced to %d\n", version)
				return nil
			})
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, factory, func(m migrator) error {
					if err := m.Up(); err != nil {
						return err
					}
					version, _, err := m.Version()
					if err != nil {
						return err
					}
					cmd.Printf("Schema at version %d\n", version)
					return nil
				})
			},
		},
		down,
		steps,
		force,
		&cobra.Command{
			Use:   "status",
			Short: "Show the applied version and pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, factory, func(m migrator) error {
					return printStatus(cmd, m)
				})
			},
		},
	)
	return cmd
}

// parseForceVersion parses a non-negative schema version.
func parseForceVersion(raw string) (int, error) {
	version, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || version < 0 {
		return 0, oops.Code("INVALID_VERSION").
			With("input", raw).
			Errorf("version must be a non-negative integer, got %q", raw)
	}
	return version, nil
}

// parseSteps parses a non-zero step count.
func parseSteps(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n == 0 {
		return 0, oops.Code("INVALID_STEPS").
			With("input", raw).
			Errorf("steps must be a non-zero integer, got %q", raw)
	}
	return n, nil
}

func withMigrator(cmd *cobra.Command, factory migratorFactory, fn func(migrator) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Store.Driver != config.StorePostgres || cfg.Store.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "store.database_url").
			Errorf("migrations need the postgres store and a database URL")
	}

	m, err := factory(cfg.Store.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			cmd.PrintErrf("warning: closing migrator: %v\n", closeErr)
		}
	}()
	return fn(m)
}

func printStatus(cmd *cobra.Command, m migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}
	applied, err := m.AppliedMigrations()
	if err != nil {
		return err
	}
	latest, err := store.LatestVersion()
	if err != nil {
		return err
	}

	name, err := store.MigrationName(version)
	if err != nil {
		return err
	}
	current := fmt.Sprintf("%d", version)
	if name != "" {
		current = fmt.Sprintf("%d (%s)", version, name)
	}

	cmd.Printf("Current version: %s\n", current)
	cmd.Printf("Latest version: %d\n", latest)
	cmd.Printf("Applied: %d of %d\n", len(applied), len(applied)+len(pending))
	if dirty {
		cmd.Printf("State: DIRTY (a migration failed part way; repair it, then run \"enroll migrate force %d\")\n", version)
	}
	if len(pending) == 0 {
		cmd.Println("Pending: none")
		return nil
	}
	cmd.Println("Pending:")
	for _, v := range pending {
		pendingName, err := store.MigrationName(v)
		if err != nil {
			return err
		}
		cmd.Printf("  %s\n", pendingName)
	}
	return nil
}
