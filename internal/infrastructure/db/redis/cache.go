package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fleetwise/fleet-api/internal/core/ports"
)

const scanBatch = 200

// Cache implements ports.Cache on a single Redis database.
// Prefix deletion walks the keyspace with SCAN so it never blocks the
// server the way KEYS would.
type Cache struct {
	client *redis.Client
}

// NewCache creates a Cache wrapping the given Redis client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ports.ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}
	return b, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

// DeleteByPrefix removes every key starting with prefix. The scan runs to
// completion before anything is deleted, so removals cannot make the cursor
// skip keys; deletion then proceeds in batches.
func (c *Cache) DeleteByPrefix(ctx context.Context, prefix string) error {
	var keys []string
	iter := c.client.Scan(ctx, 0, escapePattern(prefix)+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan %q: %w", prefix, err)
	}

	for len(keys) > 0 {
		n := min(len(keys), scanBatch)
		if err := c.Delete(ctx, keys[:n]...); err != nil {
			return err
		}
		keys = keys[n:]
	}
	return nil
}

// DeleteAll flushes the selected database.
func (c *Cache) DeleteAll(ctx context.Context) error {
	if err := c.client.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("cache flush: %w", err)
	}
	return nil
}

// escapePattern quotes glob metacharacters so prefix is matched literally.
func escapePattern(prefix string) string {
	var b strings.Builder
	for _, r := range prefix {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ ports.Cache = (*Cache)(nil)
