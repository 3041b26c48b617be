// Package cache holds time-limited copies of location geofences. The cache
// is a pure accelerator: validation must behave identically whether it is
// cold or warm, and entries are always derivable from the durable store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Vishal-43/smart-attendece-system/internal/model"
)

// GeoFenceCache is the keyed store the validator reads through. Lookups on
// a miss never reach the durable store from here; the caller backfills.
type GeoFenceCache interface {
	Get(ctx context.Context, locationID string) (model.GeoFence, bool, error)
	Put(ctx context.Context, fence model.GeoFence, ttl time.Duration) error
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, locationID string) (model.GeoFence, bool, error) {
	value, err := c.client.Get(ctx, geoFenceKey(locationID)).Result()
	if err == redis.Nil {
		return model.GeoFence{}, false, nil
	}
	if err != nil {
		return model.GeoFence{}, false, err
	}
	var fence model.GeoFence
	if err := json.Unmarshal([]byte(value), &fence); err != nil {
		return model.GeoFence{}, false, err
	}
	return fence, true, nil
}

func (c *RedisCache) Put(ctx context.Context, fence model.GeoFence, ttl time.Duration) error {
	data, err := json.Marshal(fence)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, geoFenceKey(fence.LocationID), data, ttl).Err()
}

func geoFenceKey(locationID string) string {
	return fmt.Sprintf("geofence:%s", locationID)
}
