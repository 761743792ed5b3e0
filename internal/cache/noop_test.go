package cache

import (
	"context"
	"strings"
	"testing"
	"time"
)

// TestNoOpCache verifies that NoOpCache implements the Cache interface correctly
func TestNoOpCache(t *testing.T) {
	var cache Cache = NewNoOpCache()
	ctx := context.Background()

	// GetSearchResult should always miss
	result, err := cache.GetSearchResult(ctx, "test-key")
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil result (cache miss), got %v", result)
	}

	err = cache.SetSearchResult(ctx, "test-key", &SearchResult{
		Mode:    "exact",
		Payload: []byte(`{"key":"Email"}`),
	}, 1*time.Hour)
	if err != nil {
		t.Errorf("Expected no error on SetSearchResult, got %v", err)
	}

	// Nothing was actually stored
	result, err = cache.GetSearchResult(ctx, "test-key")
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil result (no-op cache doesn't store), got %v", result)
	}

	if err := cache.InvalidateSearches(ctx); err != nil {
		t.Errorf("Expected no error on InvalidateSearches, got %v", err)
	}
	if gen, err := cache.Generation(ctx); err != nil || gen != 0 {
		t.Errorf("Expected generation 0, got %d (%v)", gen, err)
	}
	if err := cache.Close(); err != nil {
		t.Errorf("Expected no error on Close, got %v", err)
	}
}

func TestGenerateCacheKey(t *testing.T) {
	a := GenerateCacheKey(3, "exact", "Email", 100)
	if a != GenerateCacheKey(3, "exact", " Email ", 100) {
		t.Errorf("expected surrounding whitespace to be ignored")
	}
	if a == GenerateCacheKey(3, "partial", "Email", 100) {
		t.Errorf("expected mode to change the key")
	}
	if a == GenerateCacheKey(3, "exact", "Email", 50) {
		t.Errorf("expected limit to change the key")
	}
	if a == GenerateCacheKey(4, "exact", "Email", 100) {
		t.Errorf("expected generation to change the key")
	}
	if !strings.HasPrefix(a, "exact:") {
		t.Errorf("expected mode prefix, got %q", a)
	}
}
