package wallet

import (
	"context"
	"fmt"
	"time"

	redisclient "github.com/transitlab/tsp-api/pkg/redis"
)

// OffenseTracker counts daily-limit breaches per user per local day.
type OffenseTracker interface {
	RecordOffense(ctx context.Context, userID int64, day string) (int64, error)
}

// RedisOffenseTracker keeps the breach counters in Redis with a 48h expiry so
// stale days clean themselves up across time zones.
type RedisOffenseTracker struct {
	redis *redisclient.Client
}

// NewRedisOffenseTracker creates a new offense tracker
func NewRedisOffenseTracker(redis *redisclient.Client) *RedisOffenseTracker {
	return &RedisOffenseTracker{redis: redis}
}

// RecordOffense increments and returns the breach count for the day.
func (t *RedisOffenseTracker) RecordOffense(ctx context.Context, userID int64, day string) (int64, error) {
	key := fmt.Sprintf("purchase_limit_offense:%d:%s", userID, day)
	count, err := t.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := t.redis.Expire(ctx, key, 48*time.Hour).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}
