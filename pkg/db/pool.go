// Package db persists fetched method signatures in Postgres via pgx.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const logPrefix = "db:pool"

// Pool sizing for a client process; a pool_max_conns or pool_min_conns
// parameter in the URL wins.
const (
	defaultMaxConns        = 5
	defaultMinConns        = 1
	defaultMaxConnIdleTime = 5 * time.Minute
)

// NewPool opens a pgx pool sized for the signature cache and pings it.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse database URL: %w", logPrefix, err)
	}
	if !strings.Contains(databaseURL, "pool_max_conns") {
		cfg.MaxConns = defaultMaxConns
	}
	if !strings.Contains(databaseURL, "pool_min_conns") {
		cfg.MinConns = defaultMinConns
	}
	cfg.MaxConnIdleTime = defaultMaxConnIdleTime

	slog.Info(fmt.Sprintf("%s - Connecting to %s/%s", logPrefix, cfg.ConnConfig.Host, cfg.ConnConfig.Database))
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create pool: %w", logPrefix, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to ping database: %w", logPrefix, err)
	}
	return pool, nil
}
