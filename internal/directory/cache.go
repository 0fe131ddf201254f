package directory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "directory:party:"

type cachedDirectory struct {
	next   Directory
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedDirectory wraps next with a Redis read-through cache.
// Cache failures degrade to direct reads; they never fail a lookup.
func NewCachedDirectory(next Directory, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) Directory {
	return &cachedDirectory{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *cachedDirectory) GetByID(ctx context.Context, id string) (*Party, error) {
	key := cacheKeyPrefix + id

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p Party
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			return &p, nil
		}
		c.logger.Warn("discarding malformed directory cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("directory cache read failed", zap.String("key", key), zap.Error(err))
	}

	p, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(p); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			c.logger.Warn("directory cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return p, nil
}
