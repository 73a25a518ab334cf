// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authstate/internal/store"
)

// newMigrateCmd creates the migrate subcommand.
func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the user directory schema",
		Long:  `Apply, roll back or inspect the PostgreSQL user directory schema.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(a, func(m Migrator) error {
				pending, err := m.Pending()
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					cmd.Println("Schema is up to date")
					return nil
				}
				cmd.Printf("Applying %d migration(s)...\n", len(pending))
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(a, func(m Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Migrations rolled back")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(a, func(m Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				cmd.Println(describeVersion(version, dirty))
				pending, err := m.Pending()
				if err != nil {
					return err
				}
				cmd.Printf("pending: %d\n", len(pending))
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(a *app, fn func(Migrator) error) error {
	if a.cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url is required")
	}
	m, err := a.deps.NewMigrator(a.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := fn(m); err != nil {
		_ = m.Close()
		return err
	}
	return m.Close()
}

func describeVersion(version uint, dirty bool) string {
	if version == 0 {
		return "version: none"
	}
	name, err := store.MigrationName(version)
	if err != nil || name == "" {
		name = "unknown"
	}
	s := fmt.Sprintf("version: %d (%s)", version, name)
	if dirty {
		s += " dirty"
	}
	return s
}
