package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Cache provides key-search result caching
type Cache interface {
	// GetSearchResult retrieves a cached search result by key
	// Returns nil if not found
	GetSearchResult(ctx context.Context, key string) (*SearchResult, error)

	// SetSearchResult stores a search result with TTL
	SetSearchResult(ctx context.Context, key string, result *SearchResult, ttl time.Duration) error

	// Generation returns the current search generation. Keys built for an
	// older generation are never read again.
	Generation(ctx context.Context) (int64, error)

	// InvalidateSearches starts a new generation; called whenever the index changes
	InvalidateSearches(ctx context.Context) error

	// Close closes the cache connection
	Close() error
}

// SearchResult is a cached search response. Payload holds the JSON-encoded result.
type SearchResult struct {
	Mode    string          `json:"mode"`
	Payload json.RawMessage `json:"payload"`
}

// GenerateCacheKey derives a stable key from the cache generation, the search
// mode, the requested key and the limit.
func GenerateCacheKey(gen int64, mode, key string, limit int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", mode, strings.TrimSpace(key), limit)))
	return fmt.Sprintf("%s:%d:%s", mode, gen, hex.EncodeToString(sum[:16]))
}
