package sigcache

import (
	"context"
	"time"

	"github.com/juju/clock"

	"github.com/morezero/inference-client/pkg/db"
	"github.com/morezero/inference-client/pkg/signature"
)

// Store is the persistence Postgres needs; *db.SignatureRepository implements it.
type Store interface {
	GetSignatures(ctx context.Context, key string, now time.Time) (*db.SignatureRecord, error)
	UpsertSignatures(ctx context.Context, rec *db.SignatureRecord) error
	DeleteSignatures(ctx context.Context, key string) error
}

// Postgres is a durable Cache backed by the resource_signatures table.
type Postgres struct {
	store Store
	ttl   time.Duration
	clock Clock
}

// NewPostgres creates a Postgres cache. A nil clk uses the wall clock.
func NewPostgres(store Store, ttl time.Duration, clk Clock) *Postgres {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Postgres{store: store, ttl: ttl, clock: clk}
}

// Get returns the unexpired set for key, or ErrNotFound.
func (c *Postgres) Get(ctx context.Context, key string) (*signature.Set, error) {
	rec, err := c.store.GetSignatures(ctx, key, c.clock.Now())
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return decodeMethods(rec.ResourceKey, rec.Version, rec.Methods)
}

// Put stores set until the TTL elapses.
func (c *Postgres) Put(ctx context.Context, key string, set *signature.Set) error {
	methods, err := encodeMethods(set)
	if err != nil {
		return err
	}
	now := c.clock.Now().UTC()
	expires := now.Add(c.ttl)
	return c.store.UpsertSignatures(ctx, &db.SignatureRecord{
		ResourceKey: key,
		Version:     set.Version,
		Methods:     methods,
		FetchedAt:   now,
		ExpiresAt:   &expires,
	})
}

// Invalidate drops key.
func (c *Postgres) Invalidate(ctx context.Context, key string) error {
	return c.store.DeleteSignatures(ctx, key)
}
