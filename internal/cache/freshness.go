package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"jarvis/internal/config"
	"jarvis/internal/models"
)

// ErrCacheMiss is returned by KV.Get when no live entry exists for a key.
var ErrCacheMiss = errors.New("cache: miss")

// KV is the key-value surface the freshness checker needs. The production
// implementation is Redis; tests use an in-memory fake.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// RedisKV adapts a go-redis client to the KV interface.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV wraps an existing Redis client.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return val, err
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisKV) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (r *RedisKV) Keys(ctx context.Context, pattern string) ([]string, error) {
	return r.client.Keys(ctx, pattern).Result()
}

// Checker tracks per-resource data freshness in the cache. An entry that is
// absent or past its TTL means the resource needs a refresh. IsFresh reports
// the presence of a live entry; CheckAll inverts it into needs-refresh
// booleans, which is what the orchestrator consumes.
type Checker struct {
	kv   KV
	ttls map[models.ResourceType]time.Duration
}

// NewChecker builds a checker with the configured per-resource TTLs.
func NewChecker(kv KV, cfg config.OrchestratorConfig) *Checker {
	return &Checker{
		kv: kv,
		ttls: map[models.ResourceType]time.Duration{
			models.ResourceCalendar: time.Duration(cfg.CacheTTLCalendar) * time.Second,
			models.ResourceEmail:    time.Duration(cfg.CacheTTLEmail) * time.Second,
			models.ResourceWeb:      time.Duration(cfg.CacheTTLWeb) * time.Second,
		},
	}
}

const defaultTTL = 300 * time.Second

// IsFresh reports whether a live cache entry exists for the resource.
// Note the inversion: callers use !IsFresh to mean "needs refresh".
func (c *Checker) IsFresh(ctx context.Context, resource models.ResourceType, userID, queryHash string) (bool, error) {
	return c.kv.Exists(ctx, cacheKey(resource, userID, queryHash))
}

// GetCached returns the cached payload for the resource, or nil when the
// entry is absent or expired.
func (c *Checker) GetCached(ctx context.Context, resource models.ResourceType, userID, queryHash string) (interface{}, error) {
	raw, err := c.kv.Get(ctx, cacheKey(resource, userID, queryHash))
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var data interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("cache: corrupt entry for %s: %w", resource, err)
	}
	return data, nil
}

// SetCache stores the payload under the resource's configured TTL.
func (c *Checker) SetCache(ctx context.Context, resource models.ResourceType, userID string, data interface{}, queryHash string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("cache: marshal payload for %s: %w", resource, err)
	}
	ttl, ok := c.ttls[resource]
	if !ok {
		ttl = defaultTTL
	}
	return c.kv.Set(ctx, cacheKey(resource, userID, queryHash), string(raw), ttl)
}

// Invalidate deletes every entry for the resource and user, regardless of
// query hash.
func (c *Checker) Invalidate(ctx context.Context, resource models.ResourceType, userID string) error {
	pattern := fmt.Sprintf("jarvis:cache:%s:%s:*", resource, userID)
	keys, err := c.kv.Keys(ctx, pattern)
	if err != nil {
		return err
	}
	return c.kv.Delete(ctx, keys...)
}

// CheckAll reports, for each resource, whether it needs a refresh
// (needs_refresh = NOT has_live_cache_entry). A store failure surfaces as
// an error; the orchestrator treats that as "refresh everything".
func (c *Checker) CheckAll(ctx context.Context, userID string, resources []models.ResourceType) (map[models.ResourceType]bool, error) {
	result := make(map[models.ResourceType]bool, len(resources))
	for _, resource := range resources {
		fresh, err := c.IsFresh(ctx, resource, userID, "")
		if err != nil {
			return nil, err
		}
		result[resource] = !fresh
	}
	return result, nil
}

func cacheKey(resource models.ResourceType, userID, queryHash string) string {
	if queryHash == "" {
		queryHash = "default"
	}
	return fmt.Sprintf("jarvis:cache:%s:%s:%s", resource, userID, queryHash)
}
