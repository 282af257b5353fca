package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/conneroisu/typster/internal/config"
	"github.com/conneroisu/typster/internal/logging"
)

// CachedFetcher serves repeated URLs from Redis. Only successful bodies are
// stored. A cache that cannot be reached is logged and bypassed, never fatal.
type CachedFetcher struct {
	next   Fetcher
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger logging.Logger
}

// NewCachedFetcher wraps next with a Redis cache.
func NewCachedFetcher(next Fetcher, client redis.UniversalClient, ttl time.Duration, prefix string, logger logging.Logger) *CachedFetcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CachedFetcher{
		next:   next,
		client: client,
		ttl:    ttl,
		prefix: prefix,
		logger: logger.WithComponent("cache"),
	}
}

// NewRedisClient connects to the cache described by a redis:// URL.
func NewRedisClient(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid cache url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// NewFromConfig builds the Fetcher described by cfg. When a cache URL is
// configured the returned closer releases the Redis connection pool.
func NewFromConfig(cfg *config.Config, logger logging.Logger) (Fetcher, func() error, error) {
	client := NewClientFromConfig(cfg.HTTP, logger)
	if cfg.Cache.RedisURL == "" {
		return client, func() error { return nil }, nil
	}

	rdb, err := NewRedisClient(cfg.Cache.RedisURL)
	if err != nil {
		return nil, nil, err
	}

	return NewCachedFetcher(client, rdb, cfg.Cache.TTL, cfg.Cache.Prefix, logger), rdb.Close, nil
}

// Fetch returns the cached body for url or fetches and stores it.
func (f *CachedFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	key := f.prefix + url

	cached, err := f.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		f.logger.Debug(ctx, "Cache hit", "url", url)
		return cached, nil
	case errors.Is(err, redis.Nil):
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		f.logger.Warn(ctx, err, "Cache read failed", "url", url)
	}

	body, err := f.next.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	if err := f.client.Set(ctx, key, body, f.ttl).Err(); err != nil && ctx.Err() == nil {
		f.logger.Warn(ctx, err, "Cache write failed", "url", url)
	}

	return body, nil
}
