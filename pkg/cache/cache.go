package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"mediagrab/pkg/config"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
)

// Backend is the minimal keyed TTL store the cache runs on. The redis
// implementation serves production; memBackend serves tests and
// cache-less local runs.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) error
	// Scan returns every key matching the prefix.
	Scan(ctx context.Context, prefix string) ([]string, error)
}

// Stats summarizes cache effectiveness for one platform.
type Stats struct {
	Platform models.Platform `json:"platform"`
	Hits     int64           `json:"hits"`
	Misses   int64           `json:"misses"`
	Entries  int64           `json:"entries"`
}

// Cache stores scrape results keyed by platform content ID, with a
// normalized-URL hash fallback for URLs no ID can be derived from, and
// alias keys mapping short URLs to their resolved destinations.
//
// A nil backend degrades every lookup to a miss and every write to a
// no-op, so the pipeline works without a configured cache.
type Cache struct {
	backend Backend
	cfg     *config.CacheConfig
	log     logger.Logger
}

// New creates a result cache. backend may be nil.
func New(backend Backend, cfg *config.CacheConfig, log logger.Logger) *Cache {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Cache{backend: backend, cfg: cfg, log: log}
}

// NewRedisBackend connects to redis using the cache configuration.
func NewRedisBackend(cfg *config.CacheConfig) Backend {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &redisBackend{client: client}
}

// QuickLookup checks for a cached result before any URL resolution. It
// tries the content-ID key when one can be derived, then the URL-hash
// fallback, then an alias left by a previous short-URL resolution.
func (c *Cache) QuickLookup(ctx context.Context, platform models.Platform, rawURL string) *models.ScrapeResult {
	if c.backend == nil {
		return nil
	}

	if id := ContentID(platform, rawURL); id != "" {
		if res := c.get(ctx, resultKey(platform, id)); res != nil {
			c.recordHit(ctx, platform)
			return res
		}
	}
	if res := c.get(ctx, urlFallbackKey(platform, rawURL)); res != nil {
		c.recordHit(ctx, platform)
		return res
	}

	// A short URL scraped before leaves an alias to its resolved form.
	if target := c.getAlias(ctx, rawURL); target != "" {
		if id := ContentID(platform, target); id != "" {
			if res := c.get(ctx, resultKey(platform, id)); res != nil {
				c.recordHit(ctx, platform)
				return res
			}
		}
		if res := c.get(ctx, urlFallbackKey(platform, target)); res != nil {
			c.recordHit(ctx, platform)
			return res
		}
	}
	return nil
}

// Lookup checks for a cached result of an already-resolved URL and
// records a miss when nothing is found. Call after QuickLookup and any
// short-URL resolution.
func (c *Cache) Lookup(ctx context.Context, platform models.Platform, resolvedURL string) *models.ScrapeResult {
	if c.backend == nil {
		return nil
	}

	if id := ContentID(platform, resolvedURL); id != "" {
		if res := c.get(ctx, resultKey(platform, id)); res != nil {
			c.recordHit(ctx, platform)
			return res
		}
	}
	if res := c.get(ctx, urlFallbackKey(platform, resolvedURL)); res != nil {
		c.recordHit(ctx, platform)
		return res
	}

	c.recordMiss(ctx, platform)
	return nil
}

// Store writes a successful result under the URL-hash key and, when a
// content ID can be derived, under the content-ID key too, with the
// same TTL. Both keys set together keeps every URL spelling of the same
// post answerable from cache. TTL follows the content type, capped at
// the configured maximum.
func (c *Cache) Store(ctx context.Context, platform models.Platform, resolvedURL string, contentType models.ContentType, result *models.ScrapeResult) {
	if c.backend == nil || result == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		c.log.WithError(err).Warn("failed to encode result for cache")
		return
	}

	ttl := TTLFor(c.cfg, contentType)
	keys := []string{urlFallbackKey(platform, resolvedURL)}
	if id := ContentID(platform, resolvedURL); id != "" {
		keys = append(keys, resultKey(platform, id))
	}
	for _, key := range keys {
		if err := c.backend.Set(ctx, key, string(data), ttl); err != nil {
			c.log.WithError(err).WithField("key", key).Warn("failed to write result to cache")
			return
		}
	}
	c.log.DebugWithFields("result cached", map[string]interface{}{
		"keys": keys,
		"ttl":  ttl.String(),
	})
}

// SetAlias maps a short URL to its resolved destination so the next
// request for the same short link skips resolution entirely.
func (c *Cache) SetAlias(ctx context.Context, shortURL, resolvedURL string) {
	if c.backend == nil || shortURL == resolvedURL {
		return
	}
	if err := c.backend.Set(ctx, aliasKey(shortURL), NormalizeURL(resolvedURL), c.cfg.AliasTTL); err != nil {
		c.log.WithError(err).Warn("failed to write short-url alias")
	}
}

// Delete removes the cached result for one URL, covering both the
// content-ID and URL-hash keys.
func (c *Cache) Delete(ctx context.Context, platform models.Platform, rawURL string) error {
	if c.backend == nil {
		return nil
	}
	keys := []string{urlFallbackKey(platform, rawURL)}
	if id := ContentID(platform, rawURL); id != "" {
		keys = append(keys, resultKey(platform, id))
	}
	return c.backend.Delete(ctx, keys...)
}

// Clear drops every cached result for a platform. Aliases and stats
// survive; they are cheap and platform counters stay meaningful.
func (c *Cache) Clear(ctx context.Context, platform models.Platform) (int, error) {
	if c.backend == nil {
		return 0, nil
	}
	keys, err := c.backend.Scan(ctx, "result:"+string(platform)+":")
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := c.backend.Delete(ctx, keys...); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// PlatformStats reads hit and miss counters plus the live entry count.
func (c *Cache) PlatformStats(ctx context.Context, platform models.Platform) (*Stats, error) {
	stats := &Stats{Platform: platform}
	if c.backend == nil {
		return stats, nil
	}

	stats.Hits = c.counter(ctx, statsKey(platform, "hit"))
	stats.Misses = c.counter(ctx, statsKey(platform, "miss"))

	keys, err := c.backend.Scan(ctx, "result:"+string(platform)+":")
	if err != nil {
		return nil, err
	}
	stats.Entries = int64(len(keys))
	return stats, nil
}

func (c *Cache) get(ctx context.Context, key string) *models.ScrapeResult {
	val, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cache read failed")
		return nil
	}
	if !ok {
		return nil
	}
	var res models.ScrapeResult
	if err := json.Unmarshal([]byte(val), &res); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("corrupt cache entry dropped")
		_ = c.backend.Delete(ctx, key)
		return nil
	}
	res.FromCache = true
	return &res
}

func (c *Cache) getAlias(ctx context.Context, shortURL string) string {
	val, ok, err := c.backend.Get(ctx, aliasKey(shortURL))
	if err != nil || !ok {
		return ""
	}
	return val
}

func (c *Cache) recordHit(ctx context.Context, platform models.Platform) {
	if err := c.backend.Incr(ctx, statsKey(platform, "hit")); err != nil {
		c.log.WithError(err).Debug("failed to bump cache hit counter")
	}
}

func (c *Cache) recordMiss(ctx context.Context, platform models.Platform) {
	if err := c.backend.Incr(ctx, statsKey(platform, "miss")); err != nil {
		c.log.WithError(err).Debug("failed to bump cache miss counter")
	}
}

func (c *Cache) counter(ctx context.Context, key string) int64 {
	val, ok, err := c.backend.Get(ctx, key)
	if err != nil || !ok {
		return 0
	}
	var n int64
	for _, r := range val {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int64(r-'0')
	}
	return n
}

// redisBackend adapts go-redis to the Backend contract.
type redisBackend struct {
	client *redis.Client
}

func (b *redisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := b.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (b *redisBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return b.client.Set(ctx, key, value, ttl).Err()
}

func (b *redisBackend) Delete(ctx context.Context, keys ...string) error {
	return b.client.Del(ctx, keys...).Err()
}

func (b *redisBackend) Incr(ctx context.Context, key string) error {
	return b.client.Incr(ctx, key).Err()
}

func (b *redisBackend) Scan(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := b.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}
