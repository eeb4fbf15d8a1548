// Package idempotency provides a Redis-backed replay cache so a retried
// job id returns its original result instead of re-invoking the provider.
package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/justengland/gatekeeper/internal/database"
)

// defaultTTL bounds how long a replayed result stays cached. Jobs are not
// expected to be retried hours later, so this is generous rather than
// precise.
const defaultTTL = 24 * time.Hour

// Cache wraps database.Redis and fails open: when Redis is unavailable a
// lookup is a miss and a store is a no-op, rather than blocking dispatch
// on a cache outage.
type Cache struct {
	redis  *database.Redis
	logger zerolog.Logger
	ttl    time.Duration
}

// New builds a Cache. redis may be nil, in which case every lookup misses
// and every store is a no-op.
func New(redis *database.Redis, logger zerolog.Logger) *Cache {
	return &Cache{redis: redis, logger: logger, ttl: defaultTTL}
}

func cacheKey(jobID string) string {
	return fmt.Sprintf("gatekeeper:job:%s", jobID)
}

// Lookup returns the cached result for jobID, if any. A cache miss or a
// Redis error both report found=false; the caller proceeds to dispatch
// normally in either case.
func (c *Cache) Lookup(ctx context.Context, jobID string, out interface{}) (found bool) {
	if c.redis == nil || c.redis.Client == nil {
		return false
	}

	raw, err := c.redis.Get(ctx, cacheKey(jobID))
	if err != nil {
		return false
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		c.logger.Warn().Err(err).Str("job_id", jobID).Msg("failed to decode cached job result, ignoring")
		return false
	}
	return true
}

// Store caches result under jobID. Failures are logged and swallowed:
// losing a cache entry only means a retry re-dispatches, it never
// corrupts state.
func (c *Cache) Store(ctx context.Context, jobID string, result interface{}) {
	if c.redis == nil || c.redis.Client == nil {
		c.logger.Warn().Str("job_id", jobID).Msg("redis unavailable, skipping idempotency cache store")
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn().Err(err).Str("job_id", jobID).Msg("failed to encode job result for idempotency cache")
		return
	}

	if err := c.redis.Set(ctx, cacheKey(jobID), raw, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("job_id", jobID).Msg("failed to store job result in idempotency cache")
	}
}
