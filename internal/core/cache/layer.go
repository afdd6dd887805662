package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetwise/fleet-api/internal/core/domain"
	"github.com/fleetwise/fleet-api/internal/core/ports"
	"github.com/fleetwise/fleet-api/internal/pkg/metrics"
)

// Invalidation names everything a write may have made stale: exact keys
// (the entity itself) and prefixes (every list/query over the entity kind).
type Invalidation struct {
	Keys     []string
	Prefixes []string
}

// Layer wraps a ports.Cache with JSON encoding, read-through population and
// the invalidation fallback policy.
type Layer struct {
	cache ports.Cache
	log   zerolog.Logger
}

// NewLayer returns a Layer over c.
func NewLayer(c ports.Cache, log zerolog.Logger) *Layer {
	return &Layer{cache: c, log: log}
}

// ReadThrough returns the cached value under key, or calls load, caches its
// result for ttl and returns it. Cache failures degrade to a miss; load
// errors are returned unchanged and nothing is cached.
func ReadThrough[T any](ctx context.Context, l *Layer, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if l.fetch(ctx, key, &cached) {
		return cached, nil
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	l.store(ctx, key, v, ttl)
	return v, nil
}

// Invalidate deletes every key and prefix in inv. When scoped deletion
// fails the whole cache is flushed instead; only when the flush fails as
// well is an error returned.
func (l *Layer) Invalidate(ctx context.Context, inv Invalidation) error {
	scopedErr := l.scoped(ctx, inv)
	if scopedErr == nil {
		metrics.CacheInvalidationsTotal.WithLabelValues("scoped").Inc()
		return nil
	}

	l.log.Warn().Err(scopedErr).
		Strs("keys", inv.Keys).
		Strs("prefixes", inv.Prefixes).
		Msg("scoped cache invalidation failed, flushing cache")

	if err := l.cache.DeleteAll(ctx); err != nil {
		metrics.CacheInvalidationsTotal.WithLabelValues("failed").Inc()
		return domain.Internal("cache invalidate", errors.Join(scopedErr, err))
	}
	metrics.CacheInvalidationsTotal.WithLabelValues("flush").Inc()
	return nil
}

func (l *Layer) scoped(ctx context.Context, inv Invalidation) error {
	keys := make([]string, 0, len(inv.Keys))
	for _, k := range inv.Keys {
		if k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) > 0 {
		if err := l.cache.Delete(ctx, keys...); err != nil {
			return err
		}
	}
	for _, p := range inv.Prefixes {
		if p == "" {
			continue
		}
		if err := l.cache.DeleteByPrefix(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (l *Layer) fetch(ctx context.Context, key string, dest any) bool {
	ns := namespaceOf(key)

	raw, err := l.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ports.ErrCacheMiss) {
			metrics.CacheLookupsTotal.WithLabelValues(ns, "miss").Inc()
			return false
		}
		metrics.CacheLookupsTotal.WithLabelValues(ns, "error").Inc()
		l.log.Warn().Err(err).Str("key", key).Msg("cache read failed, falling back to store")
		return false
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		metrics.CacheLookupsTotal.WithLabelValues(ns, "error").Inc()
		l.log.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		return false
	}
	metrics.CacheLookupsTotal.WithLabelValues(ns, "hit").Inc()
	return true
}

func (l *Layer) store(ctx context.Context, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("cannot encode cache entry")
		return
	}
	if err := l.cache.Set(ctx, key, raw, ttl); err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
