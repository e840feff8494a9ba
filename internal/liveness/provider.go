package liveness

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Backend constants
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// NewTracker creates a liveness tracker based on the backend name. The
// redis backend is verified reachable before the service starts taking
// registrations.
func NewTracker(backend, redisAddr string) (Tracker, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryTracker(), nil

	case BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis at %s unreachable: %w", redisAddr, err)
		}
		return NewRedisTracker(client), nil

	default:
		return nil, fmt.Errorf("unknown liveness backend: %s (valid options: memory, redis)", backend)
	}
}
