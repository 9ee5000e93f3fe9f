package sigcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/morezero/inference-client/pkg/signature"
)

// DefaultRedisPrefix namespaces signature keys.
const DefaultRedisPrefix = "inference:signatures:"

// Redis is a Cache shared between processes through Redis.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis creates a Redis cache using an existing client.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// NewRedisFromURL parses a redis:// URL and creates a Redis cache.
func NewRedisFromURL(url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("sigcache:redis - invalid redis url: %w", err)
	}
	return NewRedis(redis.NewClient(opts), "", ttl), nil
}

func (c *Redis) key(k string) string {
	return c.prefix + k
}

// Get returns the cached set, or ErrNotFound on a miss.
func (c *Redis) Get(ctx context.Context, key string) (*signature.Set, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sigcache:redis - get %s: %w", key, err)
	}
	var set signature.Set
	if err := json.Unmarshal(val, &set); err != nil {
		return nil, fmt.Errorf("sigcache:redis - decode %s: %w", key, err)
	}
	return &set, nil
}

// Put stores set with the cache TTL.
func (c *Redis) Put(ctx context.Context, key string, set *signature.Set) error {
	val, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("sigcache:redis - encode %s: %w", key, err)
	}
	return c.client.Set(ctx, c.key(key), val, c.ttl).Err()
}

// Invalidate drops key.
func (c *Redis) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

// Close closes the underlying client.
func (c *Redis) Close() error {
	return c.client.Close()
}
