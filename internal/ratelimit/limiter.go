// Package ratelimit enforces a fixed-window request budget per device.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter answers whether a device may submit another validation claim.
// Allow returning false means the device exhausted the current window.
type Limiter interface {
	Allow(ctx context.Context, deviceID string) (bool, error)
}

// incrExpireScript increments the window counter and, when this is the very
// first increment, starts the window expiry in the same atomic step. Two
// racing first-requests for a device therefore share one window; they can
// never create two windows with different expiries.
var incrExpireScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int64, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, deviceID string) (bool, error) {
	count, err := incrExpireScript.Run(ctx, l.client, []string{deviceKey(deviceID)}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return count <= l.limit, nil
}

func deviceKey(deviceID string) string {
	return fmt.Sprintf("rate:device:%s", deviceID)
}
