package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache keeps search results in process. Used when CACHE_PROVIDER=memory,
// typically with a single gateway instance.
type MemoryCache struct {
	mu      sync.Mutex
	gen     int64
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	result    SearchResult
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) GetSearchResult(ctx context.Context, key string) (*SearchResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, nil
	}
	r := e.result
	return &r, nil
}

// SetSearchResult stores a copy of result. A non-positive ttl never expires.
func (c *MemoryCache) SetSearchResult(ctx context.Context, key string, result *SearchResult, ttl time.Duration) error {
	if result == nil {
		return nil
	}
	e := memoryEntry{result: *result}
	e.result.Payload = append([]byte(nil), result.Payload...)
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Generation(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, nil
}

// InvalidateSearches starts a new generation and drops every stored entry.
func (c *MemoryCache) InvalidateSearches(ctx context.Context) error {
	c.mu.Lock()
	c.gen++
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Close() error {
	return nil
}
