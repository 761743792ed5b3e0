package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"doc-extractor/internal/cache"
	"doc-extractor/internal/kv"
	"doc-extractor/internal/metrics"
	"doc-extractor/internal/store"
)

const (
	DefaultLimit      = 100
	MaxLimit          = 1000
	DefaultStatsLimit = 50
)

const (
	modeExact   = "exact"
	modePartial = "partial"
	modeStats   = "stats"
)

// Engine maintains the denormalized key-value index and answers key searches.
type Engine struct {
	store store.IndexEntryStore
	cache cache.Cache
	ttl   time.Duration
	log   *slog.Logger
}

func NewEngine(s store.IndexEntryStore, c cache.Cache, ttl time.Duration, log *slog.Logger) *Engine {
	if c == nil {
		c = cache.NewNoOpCache()
	}
	return &Engine{store: s, cache: c, ttl: ttl, log: log}
}

type ValueFrequency struct {
	Value     kv.Value     `json:"value"`
	ValueType kv.ValueType `json:"valueType"`
	Count     int          `json:"count"`
	// Documents lists the distinct original filenames the value appears in.
	Documents []string `json:"documents"`
}

type ExactResult struct {
	Key            string             `json:"key"`
	Results        []store.IndexEntry `json:"results"`
	UniqueValues   []kv.Value         `json:"uniqueValues"`
	TotalResults   int                `json:"totalResults"`
	TotalDocuments int                `json:"totalDocuments"`
	ValueFrequency []ValueFrequency   `json:"valueFrequency"`
}

type Match struct {
	Key       string       `json:"key"`
	Value     kv.Value     `json:"value"`
	ValueType kv.ValueType `json:"valueType"`
}

type DocumentMatches struct {
	DocumentID       uuid.UUID `json:"documentId"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"originalFilename"`
	ExtractedAt      time.Time `json:"extractedAt"`
	Matches          []Match   `json:"matches"`
}

type PartialResult struct {
	Query           string            `json:"query"`
	NormalizedQuery string            `json:"normalizedQuery"`
	Results         []DocumentMatches `json:"results"`
	TotalDocuments  int               `json:"totalDocuments"`
	TotalMatches    int               `json:"totalMatches"`
}

// ClampLimit applies the default and the upper bound to a requested result limit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Index stores one entry per pair whose value is neither nil nor the empty string.
func (e *Engine) Index(ctx context.Context, docID uuid.UUID, filename, originalFilename string, pairs []kv.KeyValue, at time.Time) (int, error) {
	entries := make([]store.IndexEntry, 0, len(pairs))
	for _, p := range pairs {
		if kv.IsEmpty(p.Value) {
			continue
		}
		v := kv.Infer(p.Value)
		entries = append(entries, store.IndexEntry{
			ID:               uuid.New(),
			DocumentID:       docID,
			Filename:         filename,
			OriginalFilename: originalFilename,
			Key:              p.Key,
			NormalizedKey:    kv.NormalizeKey(p.Key),
			Value:            v,
			ValueType:        v.Type(),
			ExtractedAt:      at,
		})
	}
	if len(entries) == 0 {
		return 0, nil
	}

	n, err := e.store.InsertEntries(ctx, entries)
	if err != nil {
		return 0, fmt.Errorf("insert index entries for %s: %w", docID, err)
	}
	metrics.IndexEntries.WithLabelValues("inserted").Add(float64(n))
	e.invalidate(ctx)
	return n, nil
}

// IndexMap indexes the plain key to value form; keys are visited in sorted order.
func (e *Engine) IndexMap(ctx context.Context, docID uuid.UUID, filename, originalFilename string, pairs map[string]any, at time.Time) (int, error) {
	return e.Index(ctx, docID, filename, originalFilename, kv.PairsFromMap(pairs), at)
}

// RemoveByDocument deletes every entry of a document. Removing nothing is not an error.
func (e *Engine) RemoveByDocument(ctx context.Context, docID uuid.UUID) (int, error) {
	n, err := e.store.DeleteEntriesByDocument(ctx, docID)
	if err != nil {
		return 0, fmt.Errorf("remove index entries for %s: %w", docID, err)
	}
	if n > 0 {
		metrics.IndexEntries.WithLabelValues("removed").Add(float64(n))
		e.invalidate(ctx)
	}
	return n, nil
}

func (e *Engine) SearchExact(ctx context.Context, key string, limit int) (ExactResult, error) {
	limit = ClampLimit(limit)
	metrics.Searches.WithLabelValues(modeExact).Inc()

	entries, err := cached(ctx, e, modeExact, key, limit, func() ([]store.IndexEntry, error) {
		return e.store.FindEntriesByKey(ctx, key, limit)
	})
	if err != nil {
		return ExactResult{}, fmt.Errorf("search key %q: %w", key, err)
	}
	return aggregateExact(key, entries), nil
}

// aggregateExact builds unique values and per-value frequencies. Frequencies
// are ordered by count, ties keep first-seen order.
func aggregateExact(key string, entries []store.IndexEntry) ExactResult {
	res := ExactResult{
		Key:            key,
		Results:        entries,
		UniqueValues:   []kv.Value{},
		TotalResults:   len(entries),
		ValueFrequency: []ValueFrequency{},
	}
	if res.Results == nil {
		res.Results = []store.IndexEntry{}
	}

	docs := make(map[uuid.UUID]struct{})
	byValue := make(map[string]int)
	seenDoc := make(map[string]map[string]struct{})
	for _, en := range entries {
		docs[en.DocumentID] = struct{}{}

		canon := kv.Canonical(en.Value)
		i, ok := byValue[canon]
		if !ok {
			i = len(res.ValueFrequency)
			byValue[canon] = i
			res.UniqueValues = append(res.UniqueValues, en.Value)
			res.ValueFrequency = append(res.ValueFrequency, ValueFrequency{
				Value:     en.Value,
				ValueType: en.ValueType,
				Documents: []string{},
			})
			seenDoc[canon] = make(map[string]struct{})
		}
		vf := &res.ValueFrequency[i]
		vf.Count++
		name := displayName(en)
		if _, dup := seenDoc[canon][name]; !dup {
			seenDoc[canon][name] = struct{}{}
			vf.Documents = append(vf.Documents, name)
		}
	}
	res.TotalDocuments = len(docs)

	sort.SliceStable(res.ValueFrequency, func(i, j int) bool {
		return res.ValueFrequency[i].Count > res.ValueFrequency[j].Count
	})
	return res
}

func displayName(en store.IndexEntry) string {
	if en.OriginalFilename != "" {
		return en.OriginalFilename
	}
	return en.Filename
}

// SearchPartial matches entries whose normalized key contains the normalized
// query and groups them by document in first-seen order.
func (e *Engine) SearchPartial(ctx context.Context, key string, limit int) (PartialResult, error) {
	limit = ClampLimit(limit)
	metrics.Searches.WithLabelValues(modePartial).Inc()

	normalized := kv.NormalizeKey(key)
	res := PartialResult{Query: key, NormalizedQuery: normalized, Results: []DocumentMatches{}}
	if normalized == "" {
		return res, nil
	}

	entries, err := cached(ctx, e, modePartial, normalized, limit, func() ([]store.IndexEntry, error) {
		return e.store.FindEntriesByNormalizedKey(ctx, normalized, limit)
	})
	if err != nil {
		return PartialResult{}, fmt.Errorf("partial search %q: %w", key, err)
	}

	groups := make(map[uuid.UUID]int)
	for _, en := range entries {
		i, ok := groups[en.DocumentID]
		if !ok {
			i = len(res.Results)
			groups[en.DocumentID] = i
			res.Results = append(res.Results, DocumentMatches{
				DocumentID:       en.DocumentID,
				Filename:         en.Filename,
				OriginalFilename: en.OriginalFilename,
				ExtractedAt:      en.ExtractedAt,
			})
		}
		res.Results[i].Matches = append(res.Results[i].Matches, Match{Key: en.Key, Value: en.Value, ValueType: en.ValueType})
	}
	res.TotalDocuments = len(res.Results)
	res.TotalMatches = len(entries)
	return res, nil
}

func (e *Engine) KeyStatistics(ctx context.Context, limit int) ([]store.KeyStat, error) {
	if limit <= 0 {
		limit = DefaultStatsLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	stats, err := cached(ctx, e, modeStats, "", limit, func() ([]store.KeyStat, error) {
		return e.store.KeyStats(ctx, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("key statistics: %w", err)
	}
	if stats == nil {
		stats = []store.KeyStat{}
	}
	return stats, nil
}

// cached serves a read through the search cache. Keys carry the cache
// generation read before the fetch; when an index write moves the generation
// while the store is being read, the result may predate that write and is
// returned without being cached.
func cached[T any](ctx context.Context, e *Engine, mode, key string, limit int, fetch func() (T, error)) (T, error) {
	if e.ttl <= 0 {
		return fetch()
	}
	gen, err := e.cache.Generation(ctx)
	if err != nil {
		e.log.Warn("search cache generation unavailable, bypassing cache", "err", err)
		return fetch()
	}

	cacheKey := cache.GenerateCacheKey(gen, mode, key, limit)
	if hit, ok := e.lookup(ctx, cacheKey); ok {
		var v T
		err := json.Unmarshal(hit.Payload, &v)
		if err == nil {
			return v, nil
		}
		e.log.Warn("failed to decode cached search", "mode", mode, "err", err)
	}

	v, err := fetch()
	if err != nil {
		return v, err
	}
	if now, err := e.cache.Generation(ctx); err != nil || now != gen {
		e.log.Debug("index changed during search, not caching", "mode", mode, "generation", gen)
		return v, nil
	}
	e.remember(ctx, cacheKey, mode, v)
	return v, nil
}

func (e *Engine) lookup(ctx context.Context, key string) (*cache.SearchResult, bool) {
	hit, err := e.cache.GetSearchResult(ctx, key)
	if err != nil {
		e.log.Warn("search cache read failed", "err", err)
	}
	if err != nil || hit == nil {
		metrics.CacheMisses.WithLabelValues("search").Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues("search").Inc()
	return hit, true
}

func (e *Engine) remember(ctx context.Context, key, mode string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		e.log.Warn("failed to marshal search result, skipping cache", "err", err)
		return
	}
	if err := e.cache.SetSearchResult(ctx, key, &cache.SearchResult{Mode: mode, Payload: payload}, e.ttl); err != nil {
		e.log.Warn("failed to cache search result", "err", err)
	}
}

func (e *Engine) invalidate(ctx context.Context) {
	if err := e.cache.InvalidateSearches(ctx); err != nil {
		e.log.Warn("failed to invalidate search cache", "err", err)
	}
}
