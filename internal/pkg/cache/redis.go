// Package cache provides the Redis-backed read-through cache used in front
// of order lookups. A cache miss or a Redis outage is never an error for
// the caller; the source of truth is always the repository.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Get returns "" on a miss.
	Get(ctx context.Context, key string) (string, error)
	// Del drops a key; mutations call it to invalidate stale reads.
	Del(ctx context.Context, key string) error
	GenerateKey(kind, id string) string
}

type redisCache struct {
	client    *redis.Client
	namespace string
}

func NewRedisCache(addr, namespace string) Cache {
	return &redisCache{
		client:    redis.NewClient(&redis.Options{Addr: addr}),
		namespace: namespace,
	}
}

func (r *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (r *redisCache) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *redisCache) GenerateKey(kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", r.namespace, kind, id)
}
