// Package database holds the shared connection constructors for the
// agent's operational stores.
package database

import (
	"context"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/justengland/gatekeeper/internal/config"
)

// Redis wraps the go-redis client behind the two operations the
// idempotency cache needs.
type Redis struct {
	Client *redis.Client
	logger zerolog.Logger
}

// NewRedis connects and pings. Callers treat a nil *Redis as "no cache"
// rather than retrying construction.
func NewRedis(cfg config.RedisConfig, logger zerolog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	opts.MaxRetries = cfg.MaxRetries
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info().
		Str("url", maskRedisURL(cfg.URL)).
		Int("pool_size", cfg.PoolSize).
		Msg("redis connected")

	return &Redis{Client: client, logger: logger}, nil
}

// Close releases the client's pool.
func (r *Redis) Close() error {
	if r.Client == nil {
		return nil
	}
	r.logger.Info().Msg("closing redis connection")
	return r.Client.Close()
}

// Get retrieves a value by key.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	return r.Client.Get(ctx, key).Result()
}

// Set stores a value with an expiration.
func (r *Redis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return r.Client.Set(ctx, key, value, expiration).Err()
}

// maskRedisURL blanks any userinfo embedded in the URL before it is
// logged.
func maskRedisURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "redis://***"
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	return u.String()
}
