// Package sigcache caches method signatures so a resource is described once
// per TTL rather than on every call.
package sigcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/morezero/inference-client/pkg/signature"
)

// ErrNotFound is returned by Get on a cache miss.
var ErrNotFound = errors.New("sigcache: not found")

// Cache stores signature sets by resource key.
type Cache interface {
	Get(ctx context.Context, key string) (*signature.Set, error)
	Put(ctx context.Context, key string, set *signature.Set) error
	Invalidate(ctx context.Context, key string) error
}

// Clock is the subset of clock.Clock the caches need.
type Clock interface {
	Now() time.Time
}

// DefaultTTL is used when a cache is created with a zero TTL.
const DefaultTTL = 5 * time.Minute

type memoryEntry struct {
	set     *signature.Set
	expires time.Time
}

// Memory is an in-process Cache with per-entry expiry.
type Memory struct {
	mu      sync.RWMutex
	clock   Clock
	ttl     time.Duration
	entries map[string]memoryEntry
}

// NewMemory creates a Memory cache. A nil clk uses the wall clock.
func NewMemory(ttl time.Duration, clk Clock) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Memory{clock: clk, ttl: ttl, entries: make(map[string]memoryEntry)}
}

// Get returns the cached set, or ErrNotFound when absent or expired.
func (m *Memory) Get(_ context.Context, key string) (*signature.Set, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if now := m.clock.Now(); !now.Before(e.expires) {
		m.evictExpired(key, now)
		return nil, ErrNotFound
	}
	return e.set, nil
}

// evictExpired deletes key only if it is still expired at now; a Put that
// landed after the read keeps its entry.
func (m *Memory) evictExpired(key string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok && !now.Before(e.expires) {
		delete(m.entries, key)
	}
}

// Put stores set until the TTL elapses.
func (m *Memory) Put(_ context.Context, key string, set *signature.Set) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{set: set, expires: m.clock.Now().Add(m.ttl)}
	return nil
}

// Invalidate drops key.
func (m *Memory) Invalidate(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func encodeMethods(set *signature.Set) ([]byte, error) {
	b, err := json.Marshal(set.Methods)
	if err != nil {
		return nil, fmt.Errorf("sigcache:cache - failed to encode signatures: %w", err)
	}
	return b, nil
}

func decodeMethods(key, version string, data []byte) (*signature.Set, error) {
	set := &signature.Set{Resource: key, Version: version}
	if err := json.Unmarshal(data, &set.Methods); err != nil {
		return nil, fmt.Errorf("sigcache:cache - failed to decode signatures for %s: %w", key, err)
	}
	return set, nil
}
