package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"coursegate/internal/platform/config"
)

// Client wraps go-redis so the rest of the process only sees a connection
// handle with a health probe and a clean shutdown.
type Client struct {
	*redis.Client
}

// New dials the shared cache described by cfg. An empty URL means Redis is
// not configured; the (nil, nil) return tells the caller to fall back to the
// in-process store.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)

	// Fail at startup rather than on the first request.
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// Health pings the server. The /health endpoint reports the cache as
// degraded when this fails.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.Client.Close()
}
