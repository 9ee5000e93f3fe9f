package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaLogPrefix = "db:schema"

const createVersionTable = `CREATE TABLE IF NOT EXISTS signature_cache_migrations (
    version    TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// ErrNothingToRollback is returned by Rollback when no migration is applied.
var ErrNothingToRollback = errors.New("no applied migration to roll back")

// MigrationState reports whether one migration has been applied.
type MigrationState struct {
	Version   string
	AppliedAt *time.Time
}

// Applied reports whether the migration has run.
func (s MigrationState) Applied() bool { return s.AppliedAt != nil }

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[string]time.Time, error) {
	if _, err := pool.Exec(ctx, createVersionTable); err != nil {
		return nil, fmt.Errorf("%s - failed to create version table: %w", schemaLogPrefix, err)
	}
	rows, err := pool.Query(ctx, `SELECT version, applied_at FROM signature_cache_migrations`)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to read applied versions: %w", schemaLogPrefix, err)
	}
	defer rows.Close()

	applied := make(map[string]time.Time)
	for rows.Next() {
		var v string
		var at time.Time
		if err := rows.Scan(&v, &at); err != nil {
			return nil, err
		}
		applied[v] = at
	}
	return applied, rows.Err()
}

// Migrate applies every migration not yet recorded, each in its own
// transaction. It returns the versions it applied.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) ([]string, error) {
	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, m := range migrations {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.Up); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO signature_cache_migrations (version) VALUES ($1)`, m.Version)
			return err
		})
		if err != nil {
			return done, fmt.Errorf("%s - migration %s failed: %w", schemaLogPrefix, m.Version, err)
		}
		slog.Info(fmt.Sprintf("%s - Applied migration %s", schemaLogPrefix, m.Version))
		done = append(done, m.Version)
	}
	return done, nil
}

// Rollback reverts the most recently applied migration and returns its version.
func Rollback(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) (string, error) {
	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return "", err
	}

	for i := len(migrations) - 1; i >= 0; i-- {
		m := migrations[i]
		if _, ok := applied[m.Version]; !ok {
			continue
		}
		if m.Down == "" {
			return "", fmt.Errorf("%s - migration %s has no down script", schemaLogPrefix, m.Version)
		}
		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.Down); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `DELETE FROM signature_cache_migrations WHERE version = $1`, m.Version)
			return err
		})
		if err != nil {
			return "", fmt.Errorf("%s - rollback of %s failed: %w", schemaLogPrefix, m.Version, err)
		}
		slog.Info(fmt.Sprintf("%s - Rolled back migration %s", schemaLogPrefix, m.Version))
		return m.Version, nil
	}
	return "", ErrNothingToRollback
}

// Status pairs each known migration with its applied time, if any.
func Status(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) ([]MigrationState, error) {
	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return nil, err
	}
	return mergeStatus(migrations, applied), nil
}

func mergeStatus(migrations []Migration, applied map[string]time.Time) []MigrationState {
	out := make([]MigrationState, len(migrations))
	for i, m := range migrations {
		out[i] = MigrationState{Version: m.Version}
		if at, ok := applied[m.Version]; ok {
			at := at
			out[i].AppliedAt = &at
		}
	}
	return out
}

// SchemaApplied reports whether the resource_signatures table exists.
func SchemaApplied(ctx context.Context, pool *pgxpool.Pool) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `SELECT to_regclass('public.resource_signatures') IS NOT NULL`).Scan(&exists)
	return exists, err
}
