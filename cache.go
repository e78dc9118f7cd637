package blogadmin

import (
	"sync"
	"time"
)

// maxCacheEntries bounds the number of distinct list queries kept.
const maxCacheEntries = 256

// ListCache is an in-memory TTL cache of list results keyed by the canonical
// paging query. Writes to the underlying entity call Invalidate.
type ListCache[T any] struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry[T]
	ttl     time.Duration
}

type cacheEntry[T any] struct {
	value   T
	fetched time.Time
}

// NewListCache creates a ListCache whose entries live for ttl. A zero ttl
// disables caching.
func NewListCache[T any](ttl time.Duration) *ListCache[T] {
	return &ListCache[T]{entries: make(map[string]cacheEntry[T]), ttl: ttl}
}

func (c *ListCache[T]) lookup(key string) (T, bool) {
	e, ok := c.entries[key]
	if !ok || time.Since(e.fetched) >= c.ttl {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Get returns the cached value for key, calling load on a miss.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *ListCache[T]) Get(key string, load func() (T, error)) (T, error) {
	if c.ttl <= 0 {
		return load()
	}

	c.mu.RLock()
	if v, ok := c.lookup(key); ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.lookup(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	if len(c.entries) >= maxCacheEntries {
		c.entries = make(map[string]cacheEntry[T])
	}
	c.entries[key] = cacheEntry[T]{value: v, fetched: time.Now()}
	return v, nil
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *ListCache[T]) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry[T])
	c.mu.Unlock()
}

// Len returns the number of cached queries.
func (c *ListCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
