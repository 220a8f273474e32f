package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"storeops/backend/internal/domain"
)

const matrixGenerationKey = "attmatrix:gen"

// RedisMatrixCache namespaces entries under a generation counter, so
// Invalidate is a single INCR instead of a key scan; superseded entries
// expire on their own TTL.
type RedisMatrixCache struct {
	client *redis.Client
}

func NewRedisMatrixCache(addr string, password string, db int) *RedisMatrixCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisMatrixCache{client: client}
}

func (c *RedisMatrixCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisMatrixCache) Close() error {
	return c.client.Close()
}

func (c *RedisMatrixCache) generation(ctx context.Context) (string, error) {
	gen, err := c.client.Get(ctx, matrixGenerationKey).Result()
	if err == redis.Nil {
		return "0", nil
	}
	if err != nil {
		return "", err
	}
	return gen, nil
}

func (c *RedisMatrixCache) namespacedKey(ctx context.Context, key string) (string, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("attmatrix:%s:%s", gen, key), nil
}

func (c *RedisMatrixCache) Get(ctx context.Context, key string) (*domain.AttendanceMatrix, bool, error) {
	fullKey, err := c.namespacedKey(ctx, key)
	if err != nil {
		return nil, false, err
	}

	val, err := c.client.Get(ctx, fullKey).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var matrix domain.AttendanceMatrix
	if err := json.Unmarshal([]byte(val), &matrix); err != nil {
		return nil, false, err
	}
	return &matrix, true, nil
}

func (c *RedisMatrixCache) Set(ctx context.Context, key string, value *domain.AttendanceMatrix, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	fullKey, err := c.namespacedKey(ctx, key)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, fullKey, payload, ttl).Err()
}

func (c *RedisMatrixCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, matrixGenerationKey).Err()
}
