package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
)

const (
	orderKeyPrefix  = "order:"
	defaultCacheTTL = 5 * time.Minute

	orderFieldStage = "stage"
	orderFieldData  = "data"
)

// storeOrderScript writes the order hash unless the cached copy is at a later
// lifecycle stage. Returns 1 when written, 0 when skipped.
//
// KEYS[1] order key, ARGV[1] stage, ARGV[2] encoded order, ARGV[3] ttl in ms.
const storeOrderScript = `
local cached = redis.call('HGET', KEYS[1], 'stage')
if cached and tonumber(cached) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'stage', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`

// RedisOrderCache implements OrderCache using one Redis hash per order.
type RedisOrderCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *logging.Logger
}

var _ OrderCache = (*RedisOrderCache)(nil)

// NewRedisOrderCache creates a new Redis-based order cache.
func NewRedisOrderCache(client redis.Cmdable, ttl time.Duration) *RedisOrderCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	return &RedisOrderCache{
		client: client,
		ttl:    ttl,
		logger: logging.New("order-cache"),
	}
}

// Get returns the cached order. A miss yields nil, nil.
func (c *RedisOrderCache) Get(ctx context.Context, id string) (*models.Order, error) {
	data, err := c.client.HGet(ctx, orderKeyPrefix+id, orderFieldData).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("Cache miss", logging.Fields{"order_id": id})
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Cache get error", logging.Fields{
			"order_id": id,
			"error":    err.Error(),
		})
		return nil, fmt.Errorf("read cached order: %w", err)
	}

	var order models.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("decode cached order: %w", err)
	}
	return &order, nil
}

// Set caches order unless the cache already holds a copy at a later stage of
// the order lifecycle. Skipping a stale copy is not an error.
func (c *RedisOrderCache) Set(ctx context.Context, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}

	stored, err := c.client.Eval(ctx, storeOrderScript,
		[]string{orderKeyPrefix + order.ID},
		order.Status.Stage(), data, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		c.logger.Error("Cache set error", logging.Fields{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		return fmt.Errorf("cache order: %w", err)
	}

	if stored == 0 {
		c.logger.Debug("Kept newer cached order", logging.Fields{
			"order_id": order.ID,
			"status":   string(order.Status),
		})
	}
	return nil
}

// Delete evicts an order.
func (c *RedisOrderCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, orderKeyPrefix+id).Err(); err != nil {
		c.logger.Error("Cache delete error", logging.Fields{
			"order_id": id,
			"error":    err.Error(),
		})
		return fmt.Errorf("evict cached order: %w", err)
	}
	return nil
}
