package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// NewRedisClient builds the shared client used by the recommendation cache and
// the rate limiters.
func NewRedisClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

type RedisRecommendationCache struct {
	client redis.UniversalClient
}

func NewRedisRecommendationCache(client redis.UniversalClient) *RedisRecommendationCache {
	return &RedisRecommendationCache{client: client}
}

func (c *RedisRecommendationCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisRecommendationCache) Get(ctx context.Context, key string) (*RecommendationEntry, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var entry RecommendationEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, false, err
	}
	return &entry, true, nil
}

func (c *RedisRecommendationCache) Set(ctx context.Context, key string, value *RecommendationEntry, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}
