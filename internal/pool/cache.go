package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/pricearb/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ResolveFunc resolves a pool on a cache miss.
type ResolveFunc func(ctx context.Context) (domain.PoolCacheEntry, bool, error)

// Cache holds resolved pools keyed by (network, token). Entries are written
// once and never replaced or evicted. Concurrent first lookups for one key
// share a single resolution; no lock is held while resolving.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]domain.PoolCacheEntry
	group   singleflight.Group
	store   domain.PoolStore
	logger  *slog.Logger
}

// NewCache creates a Cache. store may be nil for a memory-only cache.
func NewCache(store domain.PoolStore, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries: make(map[string]domain.PoolCacheEntry),
		store:   store,
		logger:  logger.With(slog.String("component", "pool_cache")),
	}
}

func cacheKey(network, token string) string { return network + "/" + token }

// Warm loads every persisted entry. Safe to skip; misses fall through to the
// store anyway.
func (c *Cache) Warm(ctx context.Context) (int, error) {
	if c.store == nil {
		return 0, nil
	}
	entries, err := c.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("pool: warm cache: %w", err)
	}
	for _, e := range entries {
		c.put(e)
	}
	return len(entries), nil
}

// Lookup returns a cached entry without resolving.
func (c *Cache) Lookup(network, token string) (domain.PoolCacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[cacheKey(network, token)]
	return e, ok
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Get returns the entry for (network, token), resolving it on first use.
// Absence is not cached, so a pool created later is picked up next pass.
func (c *Cache) Get(ctx context.Context, network, token string, resolve ResolveFunc) (domain.PoolCacheEntry, bool, error) {
	if e, ok := c.Lookup(network, token); ok {
		return e, true, nil
	}

	key := cacheKey(network, token)
	v, err, _ := c.group.Do(key, func() (any, error) {
		if e, ok := c.Lookup(network, token); ok {
			return &e, nil
		}
		if c.store != nil {
			e, err := c.store.Get(ctx, network, token)
			switch {
			case err == nil:
				return ptr(c.put(e)), nil
			case !errors.Is(err, domain.ErrNotFound):
				c.logger.WarnContext(ctx, "pool store read failed",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
			}
		}

		e, ok, err := resolve(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		stored := c.put(e)
		if c.store != nil {
			if err := c.store.InsertIfAbsent(ctx, stored); err != nil {
				c.logger.WarnContext(ctx, "pool store write failed",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
			}
		}
		c.logger.InfoContext(ctx, "pool resolved",
			slog.String("network", network),
			slog.String("token", token),
			slog.String("pool", stored.PoolAddress.Hex()),
			slog.Uint64("fee_tier", uint64(stored.FeeTier)),
		)
		return &stored, nil
	})
	if err != nil {
		return domain.PoolCacheEntry{}, false, err
	}
	e, _ := v.(*domain.PoolCacheEntry)
	if e == nil {
		return domain.PoolCacheEntry{}, false, nil
	}
	return *e, true, nil
}

// put stores e unless the key already has an entry, and returns whichever
// entry is now cached.
func (c *Cache) put(e domain.PoolCacheEntry) domain.PoolCacheEntry {
	key := cacheKey(e.Network, e.Token)
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		return existing
	}
	c.entries[key] = e
	return e
}

func ptr[T any](v T) *T { return &v }
