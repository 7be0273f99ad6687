package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stockKeyPrefix    = "stock:"
	idempotencyKeyTTL = 24 * time.Hour
)

var decrementStockScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	return 0
end

current = tonumber(current)
if current >= quantity then
	redis.call('DECRBY', key, quantity)
	return 1
end

return 0
`)

// RedisAdapter mirrors machine stock into Redis and records request
// idempotency keys. Keys are prefixed with namespace so several machines can
// share one Redis.
type RedisAdapter struct {
	client    *redis.Client
	namespace string
}

func NewRedisAdapter(client *redis.Client, namespace string) *RedisAdapter {
	if namespace != "" {
		namespace += ":"
	}
	return &RedisAdapter{client: client, namespace: namespace}
}

func (r *RedisAdapter) stockKey(itemID string) string {
	return r.namespace + stockKeyPrefix + itemID
}

func (r *RedisAdapter) GetStock(ctx context.Context, itemID string) (int, bool, error) {
	qty, err := r.client.Get(ctx, r.stockKey(itemID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return qty, true, nil
}

func (r *RedisAdapter) SetStock(ctx context.Context, itemID string, quantity int) error {
	return r.client.Set(ctx, r.stockKey(itemID), quantity, 0).Err()
}

func (r *RedisAdapter) DecrementStock(ctx context.Context, itemID string, quantity int) (bool, error) {
	result, err := decrementStockScript.Run(ctx, r.client, []string{r.stockKey(itemID)}, quantity).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.namespace+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}
