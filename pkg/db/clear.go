package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const clearLogPrefix = "db:clear"

// ClearSignatures truncates the signature cache table. Schema is preserved.
func ClearSignatures(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info(fmt.Sprintf("%s - Clearing signature cache", clearLogPrefix))

	if _, err := pool.Exec(ctx, `TRUNCATE TABLE resource_signatures`); err != nil {
		return fmt.Errorf("%s - truncate failed: %w", clearLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Signature cache cleared", clearLogPrefix))
	return nil
}
