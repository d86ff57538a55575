package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/vrushab-bit/mini-shop/product-service/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func NewRedisClient(ctx context.Context, addr, password string, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established", zap.String("addr", addr))
	return rdb, nil
}

type ProductCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewProductCache(rdb *redis.Client, ttl time.Duration) *ProductCache {
	return &ProductCache{rdb: rdb, ttl: ttl}
}

func key(id int64) string {
	return "product:" + strconv.FormatInt(id, 10)
}

// Get reports ok=false on a miss. err is set only when redis itself failed
// or the cached entry could not be decoded.
func (c *ProductCache) Get(ctx context.Context, id int64) (p models.Product, ok bool, err error) {
	data, err := c.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Product{}, false, nil
	}
	if err != nil {
		return models.Product{}, false, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return models.Product{}, false, fmt.Errorf("decode cached product %d: %w", id, err)
	}
	return p, true, nil
}

func (c *ProductCache) Set(ctx context.Context, p models.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key(p.ID), data, c.ttl).Err()
}

func (c *ProductCache) Delete(ctx context.Context, id int64) error {
	return c.rdb.Del(ctx, key(id)).Err()
}
