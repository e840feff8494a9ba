package liveness

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/strataops/vantage/internal/domain"
)

const keyPrefix = "vantage:liveness:"

// RedisTracker stores heartbeat timestamps in Redis with native TTL expiry.
// Useful when several coordinator instances share one agent fleet.
type RedisTracker struct {
	client *redis.Client
}

func NewRedisTracker(client *redis.Client) *RedisTracker {
	return &RedisTracker{client: client}
}

func (t *RedisTracker) Touch(ctx context.Context, agentID string, retention time.Duration) error {
	err := t.client.Set(ctx, keyPrefix+agentID, time.Now().UTC().Format(time.RFC3339Nano), retention).Err()
	if err != nil {
		return domain.Transient("liveness.touch", err)
	}
	return nil
}

func (t *RedisTracker) LastSeen(ctx context.Context, agentID string) (time.Time, bool, error) {
	val, err := t.client.Get(ctx, keyPrefix+agentID).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, domain.Transient("liveness.lastseen", err)
	}
	seen, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, false, err
	}
	return seen, true, nil
}

func (t *RedisTracker) Forget(ctx context.Context, agentID string) error {
	if err := t.client.Del(ctx, keyPrefix+agentID).Err(); err != nil {
		return domain.Transient("liveness.forget", err)
	}
	return nil
}
