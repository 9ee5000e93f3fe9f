package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/morezero/inference-client/pkg/db"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres signature cache schema",
		Long: `Manage the postgres signature cache schema.

Migrations are compiled into the binary; MIGRATION_PATH points at a directory
of <version>.up.sql / <version>.down.sql files to use instead.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrations(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool, migrations []db.Migration) error {
					applied, err := db.Migrate(ctx, pool, migrations)
					if err != nil {
						return err
					}
					if len(applied) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
					}
					for _, v := range applied {
						fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", v)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrations(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool, migrations []db.Migration) error {
					version, err := db.Rollback(ctx, pool, migrations)
					if errors.Is(err, db.ErrNothingToRollback) {
						fmt.Fprintln(cmd.OutOrStdout(), "Nothing to roll back.")
						return nil
					}
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %s\n", version)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrations(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool, migrations []db.Migration) error {
					states, err := db.Status(ctx, pool, migrations)
					if err != nil {
						return err
					}
					for _, s := range states {
						if s.Applied() {
							fmt.Fprintf(cmd.OutOrStdout(), "%-32s applied %s\n", s.Version, s.AppliedAt.Format("2006-01-02 15:04:05Z07:00"))
						} else {
							fmt.Fprintf(cmd.OutOrStdout(), "%-32s pending\n", s.Version)
						}
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every cached signature; schema is preserved",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrations(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool, _ []db.Migration) error {
					return db.ClearSignatures(ctx, pool)
				})
			},
		},
		&cobra.Command{
			Use:   "ensure-db [name]",
			Short: "Create the database if missing, on the DATABASE_URL host",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				if err := cfg.ValidateForDB(); err != nil {
					return err
				}
				target := cfg.DatabaseURL
				if len(args) > 0 && args[0] != "" {
					u, err := url.Parse(cfg.DatabaseURL)
					if err != nil {
						return fmt.Errorf("parse DATABASE_URL: %w", err)
					}
					u.Path = "/" + args[0]
					target = u.String()
				}
				if err := db.EnsureDatabase(cmd.Context(), target); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Database is ready.")
				return nil
			},
		},
	)
	return cmd
}

// withMigrations opens a pool from DATABASE_URL, loads migrations and runs fn.
func withMigrations(ctx context.Context, fn func(ctx context.Context, pool *pgxpool.Pool, migrations []db.Migration) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	migrations, err := db.LoadMigrations(cfg.MigrationPath)
	if err != nil {
		return err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	return fn(ctx, pool, migrations)
}
