package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	riderActiveDeliveryKey = "rider:active:"
	activeDeliveryTTL      = 24 * time.Hour
)

// RiderStateCache mirrors the rider's current assignment in Redis so hot
// dashboard reads skip the database. Postgres remains the source of truth.
type RiderStateCache interface {
	SetActiveDelivery(ctx context.Context, riderID, deliveryID string) error
	GetActiveDelivery(ctx context.Context, riderID string) (string, error)
	ClearActiveDelivery(ctx context.Context, riderID string) error
}

type riderStateCache struct {
	redis *redis.Client
}

func NewRiderStateCache(redisClient *redis.Client) RiderStateCache {
	return &riderStateCache{redis: redisClient}
}

func (c *riderStateCache) SetActiveDelivery(ctx context.Context, riderID, deliveryID string) error {
	key := riderActiveDeliveryKey + riderID
	return c.redis.Set(ctx, key, deliveryID, activeDeliveryTTL).Err()
}

func (c *riderStateCache) GetActiveDelivery(ctx context.Context, riderID string) (string, error) {
	key := riderActiveDeliveryKey + riderID
	result, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return result, err
}

func (c *riderStateCache) ClearActiveDelivery(ctx context.Context, riderID string) error {
	key := riderActiveDeliveryKey + riderID
	return c.redis.Del(ctx, key).Err()
}
