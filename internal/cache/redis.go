package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix = "doc-extractor:search:"
	generationKey  = "doc-extractor:search-generation"
)

type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects and pings; an unreachable server is a startup error.
func NewRedisCache(addr, password string) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}

	return NewRedisCacheFromClient(client), nil
}

// NewRedisCacheFromClient wraps an already configured client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// GetSearchResult returns nil without error on a miss.
func (c *RedisCache) GetSearchResult(ctx context.Context, key string) (*SearchResult, error) {
	data, err := c.client.Get(ctx, cacheKeyPrefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("get cached search %s: %w", key, err)
	}

	var result SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode cached search %s: %w", key, err)
	}
	return &result, nil
}

func (c *RedisCache) SetSearchResult(ctx context.Context, key string, result *SearchResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode search result: %w", err)
	}
	return c.client.Set(ctx, cacheKeyPrefix+key, data, ttl).Err()
}

// Generation reads the generation counter; a missing counter is generation 0.
func (c *RedisCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read search generation: %w", err)
	}
	return gen, nil
}

// InvalidateSearches bumps the generation counter. Entries of older
// generations are unreachable and expire with their TTL.
func (c *RedisCache) InvalidateSearches(ctx context.Context) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("bump search generation: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
