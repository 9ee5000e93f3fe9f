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

const repoLogPrefix = "db:repository"

// SignatureRepository stores fetched method signatures keyed by resource.
type SignatureRepository struct {
	pool *pgxpool.Pool
}

// NewSignatureRepository creates a new SignatureRepository with the given connection pool.
func NewSignatureRepository(pool *pgxpool.Pool) *SignatureRepository {
	return &SignatureRepository{pool: pool}
}

// GetSignatures returns the record for key that has not expired at now, or
// nil when there is none.
func (r *SignatureRepository) GetSignatures(ctx context.Context, key string, now time.Time) (*SignatureRecord, error) {
	slog.Debug(fmt.Sprintf("%s - GetSignatures key=%s", repoLogPrefix, key))

	row := r.pool.QueryRow(ctx,
		`SELECT resource_key, version, methods, fetched_at, expires_at
		 FROM resource_signatures
		 WHERE resource_key = $1 AND (expires_at IS NULL OR expires_at > $2)
		 LIMIT 1`, key, now)

	var rec SignatureRecord
	err := row.Scan(&rec.ResourceKey, &rec.Version, &rec.Methods, &rec.FetchedAt, &rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - failed to get signatures for %s: %w", repoLogPrefix, key, err)
	}
	return &rec, nil
}

// UpsertSignatures creates or replaces the record for rec.ResourceKey.
func (r *SignatureRepository) UpsertSignatures(ctx context.Context, rec *SignatureRecord) error {
	slog.Debug(fmt.Sprintf("%s - UpsertSignatures key=%s version=%s", repoLogPrefix, rec.ResourceKey, rec.Version))

	_, err := r.pool.Exec(ctx,
		`INSERT INTO resource_signatures (resource_key, version, methods, fetched_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (resource_key) DO UPDATE
		 SET version = EXCLUDED.version,
		     methods = EXCLUDED.methods,
		     fetched_at = EXCLUDED.fetched_at,
		     expires_at = EXCLUDED.expires_at`,
		rec.ResourceKey, rec.Version, rec.Methods, rec.FetchedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("%s - failed to upsert signatures for %s: %w", repoLogPrefix, rec.ResourceKey, err)
	}
	return nil
}

// DeleteSignatures removes the record for key.
func (r *SignatureRepository) DeleteSignatures(ctx context.Context, key string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM resource_signatures WHERE resource_key = $1`, key); err != nil {
		return fmt.Errorf("%s - failed to delete signatures for %s: %w", repoLogPrefix, key, err)
	}
	return nil
}

// PurgeExpired deletes every record that expired at or before now and
// returns how many were removed.
func (r *SignatureRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM resource_signatures WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%s - failed to purge expired signatures: %w", repoLogPrefix, err)
	}
	if n := tag.RowsAffected(); n > 0 {
		slog.Info(fmt.Sprintf("%s - Purged %d expired signature records", repoLogPrefix, n))
	}
	return tag.RowsAffected(), nil
}
