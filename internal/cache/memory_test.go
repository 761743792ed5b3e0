package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if err := c.SetSearchResult(ctx, "k", &SearchResult{Mode: "exact", Payload: []byte(`[1]`)}, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := c.GetSearchResult(ctx, "k")
	if err != nil || got == nil {
		t.Fatalf("expected a hit, got %v (%v)", got, err)
	}
	if got.Mode != "exact" || string(got.Payload) != "[1]" {
		t.Errorf("unexpected cached value %+v", got)
	}

	miss, err := c.GetSearchResult(ctx, "other")
	if err != nil || miss != nil {
		t.Errorf("expected a miss, got %v (%v)", miss, err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.SetSearchResult(ctx, "k", &SearchResult{Mode: "stats"}, time.Minute)
	now = now.Add(59 * time.Second)
	if got, _ := c.GetSearchResult(ctx, "k"); got == nil {
		t.Errorf("expected entry to be alive before its ttl")
	}
	now = now.Add(time.Second)
	if got, _ := c.GetSearchResult(ctx, "k"); got != nil {
		t.Errorf("expected entry to expire at its ttl")
	}
}

func TestMemoryCacheInvalidateBumpsGeneration(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	_ = c.SetSearchResult(ctx, "k", &SearchResult{Mode: "exact"}, 0)

	before, _ := c.Generation(ctx)
	if err := c.InvalidateSearches(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after, _ := c.Generation(ctx)
	if after != before+1 {
		t.Errorf("expected generation %d, got %d", before+1, after)
	}
	if got, _ := c.GetSearchResult(ctx, "k"); got != nil {
		t.Errorf("expected entries to be dropped on invalidation")
	}
}
