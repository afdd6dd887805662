// Package memory provides an in-process implementation of ports.Cache for
// single-instance deployments and tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fleetwise/fleet-api/internal/core/ports"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero = no expiry
}

// sweepInterval bounds how often Set walks the map for expired entries.
const sweepInterval = time.Minute

// Cache is a mutex-guarded map with per-entry expiry. Expired entries are
// dropped on access, and Set sweeps the whole map at most once per
// sweepInterval so keys that are never read again do not accumulate.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]entry
	now       func() time.Time
	lastSweep time.Time
}

// NewCache returns an empty Cache using the wall clock.
func NewCache() *Cache {
	return NewCacheWithClock(time.Now)
}

// NewCacheWithClock returns an empty Cache that reads time from now.
func NewCacheWithClock(now func() time.Time) *Cache {
	return &Cache{entries: make(map[string]entry), now: now, lastSweep: now()}
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		return nil, ports.ErrCacheMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) >= sweepInterval {
		c.sweep(now)
	}

	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	c.entries[key] = e
	return nil
}

// sweep drops every expired entry. Callers hold c.mu.
func (c *Cache) sweep(now time.Time) {
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
	c.lastSweep = now
}

func (c *Cache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *Cache) DeleteByPrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

func (c *Cache) DeleteAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry)
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

var _ ports.Cache = (*Cache)(nil)
