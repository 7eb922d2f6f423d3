// Package cache provides the Redis access layer: credit ledger scripts,
// per-account rate limiting and the artifact read cache.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PoolOptions sizes the Redis connection pool. Zero values keep the defaults.
type PoolOptions struct {
	PoolSize     int
	MinIdleConns int
}

const (
	defaultPoolSize     = 10
	defaultMinIdleConns = 2
	poolTimeout         = 4 * time.Second
	connMaxIdleTime     = 5 * time.Minute
)

// Cache wraps the Redis client shared by the ledger, limiter, artifact cache and event stream.
type Cache struct {
	client *redis.Client
}

// New connects to redisURL and verifies the connection.
func New(ctx context.Context, redisURL string, opts PoolOptions) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = defaultPoolSize
	if opts.PoolSize > 0 {
		opt.PoolSize = opts.PoolSize
	}
	opt.MinIdleConns = min(defaultMinIdleConns, opt.PoolSize)
	if opts.MinIdleConns > 0 {
		opt.MinIdleConns = min(opts.MinIdleConns, opt.PoolSize)
	}
	opt.PoolTimeout = poolTimeout
	opt.ConnMaxIdleTime = connMaxIdleTime

	c := NewWithClient(redis.NewClient(opt))
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return c, nil
}

// NewWithClient wraps an existing client without pinging it.
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Ping reports Redis reachability for the readiness probe.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the raw client for the event stream publisher.
func (c *Cache) Client() *redis.Client {
	return c.client
}
