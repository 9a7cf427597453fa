package server

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sambeau/trellis/pkg/compiler"
	"github.com/sambeau/trellis/pkg/directive"
	"github.com/sambeau/trellis/pkg/store"
)

// compiledPage is a page together with its compiled and parsed template.
type compiledPage struct {
	page     *store.Page
	result   *compiler.Result
	template *directive.Template
}

// pageCache stores compiled pages by route with time-based expiration.
type pageCache struct {
	mu      sync.RWMutex
	entries map[string]*pageEntry
	ttl     time.Duration
	maxSize int
	hits    atomic.Int64
	misses  atomic.Int64
	now     func() time.Time
}

type pageEntry struct {
	page      *compiledPage
	expiresAt time.Time
	size      int // Approximate size in bytes
}

// newPageCache creates a page cache. A ttl of zero disables caching.
func newPageCache(ttl time.Duration, maxSize int) *pageCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &pageCache{
		entries: make(map[string]*pageEntry),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns the compiled page for route if cached and not expired.
func (c *pageCache) Get(route string) (*compiledPage, bool) {
	if c.ttl <= 0 {
		c.misses.Add(1)
		return nil, false
	}

	c.mu.RLock()
	entry, ok := c.entries[route]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, route)
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return entry.page, true
}

// Set stores a compiled page.
func (c *pageCache) Set(route string, p *compiledPage) {
	if c.ttl <= 0 {
		return
	}

	entry := &pageEntry{
		page:      p,
		expiresAt: c.now().Add(c.ttl),
		size:      len(p.result.HTML) + len(p.result.CSS),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictExpired()
		if len(c.entries) >= c.maxSize {
			c.evictSoonest(max(1, c.maxSize/10))
		}
	}

	c.entries[route] = entry
}

// Invalidate removes one route.
func (c *pageCache) Invalidate(route string) {
	c.mu.Lock()
	delete(c.entries, route)
	c.mu.Unlock()
}

// Clear removes all entries from the cache.
func (c *pageCache) Clear() {
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
}

// PageCacheStats holds page cache statistics.
type PageCacheStats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	SizeBytes int   `json:"sizeBytes"`
}

// HitRate returns the cache hit rate as a percentage (0-100).
func (s PageCacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Stats returns cache statistics.
func (c *pageCache) Stats() PageCacheStats {
	c.mu.RLock()
	count := len(c.entries)
	var totalSize int
	for _, e := range c.entries {
		totalSize += e.size
	}
	c.mu.RUnlock()

	return PageCacheStats{
		Entries:   count,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		SizeBytes: totalSize,
	}
}

// evictExpired removes all expired entries. Caller must hold the lock.
func (c *pageCache) evictExpired() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// evictSoonest removes the n entries that expire soonest. Caller must hold
// the lock.
func (c *pageCache) evictSoonest(n int) {
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].expiresAt.Before(c.entries[keys[j]].expiresAt)
	})
	for i := 0; i < n && i < len(keys); i++ {
		delete(c.entries, keys[i])
	}
}
