package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Cache defaults.
const (
	DefaultCacheTTL        = 5 * time.Minute
	DefaultCacheMaxEntries = 1000
)

// CachedStore serves components and pages from memory for a limited time.
// Writes through the cache invalidate the affected entry; changes made to
// the underlying store by other means are seen once entries expire or the
// cache is cleared.
type CachedStore struct {
	Store

	mu         sync.RWMutex
	components map[string]cacheEntry[*Component]
	pages      map[string]cacheEntry[*Page]
	ttl        time.Duration
	maxEntries int
	hits       atomic.Int64
	misses     atomic.Int64
	now        func() time.Time
}

type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// NewCachedStore wraps s. A ttl of zero disables caching; negative values
// use the defaults.
func NewCachedStore(s Store, ttl time.Duration, maxEntries int) *CachedStore {
	if ttl < 0 {
		ttl = DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	return &CachedStore{
		Store:      s,
		components: make(map[string]cacheEntry[*Component]),
		pages:      make(map[string]cacheEntry[*Page]),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// GetComponent returns a cached component or loads it. Callers share the
// cached value and must not modify it.
func (c *CachedStore) GetComponent(ctx context.Context, id string) (*Component, error) {
	if v, ok := get(c, c.components, id); ok {
		return v, nil
	}
	v, err := c.Store.GetComponent(ctx, id)
	if err != nil {
		return nil, err
	}
	set(c, c.components, id, v)
	return v, nil
}

// GetPage returns a cached page or loads it. Callers share the cached
// value and must not modify it.
func (c *CachedStore) GetPage(ctx context.Context, route string) (*Page, error) {
	route = CleanRoute(route)
	if v, ok := get(c, c.pages, route); ok {
		return v, nil
	}
	v, err := c.Store.GetPage(ctx, route)
	if err != nil {
		return nil, err
	}
	set(c, c.pages, route, v)
	return v, nil
}

// PutComponent writes through and drops the cached entry.
func (c *CachedStore) PutComponent(ctx context.Context, comp *Component) error {
	err := c.Store.PutComponent(ctx, comp)
	if comp != nil {
		c.mu.Lock()
		delete(c.components, comp.ID)
		c.mu.Unlock()
	}
	return err
}

// PutPage writes through and drops the cached entry.
func (c *CachedStore) PutPage(ctx context.Context, p *Page) error {
	err := c.Store.PutPage(ctx, p)
	if p != nil {
		c.mu.Lock()
		delete(c.pages, CleanRoute(p.Route))
		c.mu.Unlock()
	}
	return err
}

// InvalidateComponent removes one component from the cache.
func (c *CachedStore) InvalidateComponent(id string) {
	c.mu.Lock()
	delete(c.components, id)
	c.mu.Unlock()
}

// InvalidatePage removes one page from the cache.
func (c *CachedStore) InvalidatePage(route string) {
	c.mu.Lock()
	delete(c.pages, CleanRoute(route))
	c.mu.Unlock()
}

// Clear removes all entries.
func (c *CachedStore) Clear() {
	c.mu.Lock()
	clear(c.components)
	clear(c.pages)
	c.mu.Unlock()
}

// CacheStats holds cache statistics.
type CacheStats struct {
	Components int   `json:"components"`
	Pages      int   `json:"pages"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
}

// HitRate returns the cache hit rate as a percentage (0-100).
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Stats returns cache statistics.
func (c *CachedStore) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		Components: len(c.components),
		Pages:      len(c.pages),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
	}
}

func get[T any](c *CachedStore, m map[string]cacheEntry[T], key string) (T, bool) {
	var zero T
	if c.ttl == 0 {
		c.misses.Add(1)
		return zero, false
	}

	c.mu.RLock()
	entry, ok := m[key]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		c.misses.Add(1)
		return zero, false
	}
	c.hits.Add(1)
	return entry.value, true
}

func set[T any](c *CachedStore, m map[string]cacheEntry[T], key string, v T) {
	if c.ttl == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(m) >= c.maxEntries {
		evictExpired(m, c.now())
		if len(m) >= c.maxEntries {
			evictSoonest(m, max(1, c.maxEntries/10))
		}
	}
	m[key] = cacheEntry[T]{value: v, expiresAt: c.now().Add(c.ttl)}
}

// evictExpired removes expired entries. Caller must hold the lock.
func evictExpired[T any](m map[string]cacheEntry[T], now time.Time) {
	for k, e := range m {
		if now.After(e.expiresAt) {
			delete(m, k)
		}
	}
}

// evictSoonest removes the n entries closest to expiry. Caller must hold
// the lock.
func evictSoonest[T any](m map[string]cacheEntry[T], n int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return m[keys[i]].expiresAt.Before(m[keys[j]].expiresAt)
	})
	for i := 0; i < n && i < len(keys); i++ {
		delete(m, keys[i])
	}
}
