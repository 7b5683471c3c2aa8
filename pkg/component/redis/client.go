// Package redis provides the Redis client used by the embedding and query
// caches.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/cortex-x/pkg/component/storage"
	redisopts "github.com/kart-io/cortex-x/pkg/options/redis"
)

// Client wraps the go-redis client and implements storage.Client.
type Client struct {
	client *goredis.Client
	opts   *redisopts.Options
}

var _ storage.Client = (*Client)(nil)

// New creates a new Redis client from the provided options.
func New(opts *redisopts.Options) (*Client, error) {
	return NewWithContext(context.Background(), opts)
}

// NewWithContext creates a new Redis client and verifies connectivity.
func NewWithContext(ctx context.Context, opts *redisopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("redis options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid redis options: %v", errs)
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr(),
		Password:     opts.Password,
		DB:           opts.Database,
		MaxRetries:   opts.MaxRetries,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Client{client: rdb, opts: opts}, nil
}

// Name returns the storage type identifier.
func (c *Client) Name() string {
	return "redis"
}

// Ping checks if the connection to Redis is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection gracefully.
func (c *Client) Close() error {
	return c.client.Close()
}

// Health returns a HealthChecker function for Redis monitoring.
func (c *Client) Health() storage.HealthChecker {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return c.Ping(ctx)
	}
}

// Client returns the underlying go-redis client for direct use.
func (c *Client) Client() *goredis.Client {
	return c.client
}

// Pipeline returns a Redis pipeline for batch operations.
func (c *Client) Pipeline() goredis.Pipeliner {
	return c.client.Pipeline()
}
