package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"contract-guard/types"

	"github.com/redis/go-redis/v9"
)

// RedisStore 基于 Redis 的缓存，值以 JSON 存储，过期交给 Redis 的 TTL
type RedisStore[V any] struct {
	client *redis.Client
	prefix string
}

// NewRedisClient 创建 Redis 客户端
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisStore[V any](client *redis.Client, prefix string) *RedisStore[V] {
	return &RedisStore[V]{client: client, prefix: prefix}
}

func (r *RedisStore[V]) key(k string) string {
	return r.prefix + k
}

func (r *RedisStore[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("%w: redis get: %v", types.ErrCacheUnavailable, err)
	}
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		// 无法解码的条目视为未命中并删除
		r.client.Del(ctx, r.key(key))
		return zero, false, nil
	}
	return v, true, nil
}

func (r *RedisStore[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %v", types.ErrCacheUnavailable, err)
	}
	return nil
}

func (r *RedisStore[V]) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: redis del: %v", types.ErrCacheUnavailable, err)
	}
	return nil
}

// Sweep Redis 自行淘汰过期键
func (r *RedisStore[V]) Sweep(ctx context.Context) (int, error) {
	return 0, r.Ping(ctx)
}

func (r *RedisStore[V]) Len(ctx context.Context) (int, error) {
	var (
		cursor uint64
		n      int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("%w: redis scan: %v", types.ErrCacheUnavailable, err)
		}
		n += len(keys)
		if next == 0 {
			return n, nil
		}
		cursor = next
	}
}

func (r *RedisStore[V]) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis ping: %v", types.ErrCacheUnavailable, err)
	}
	return nil
}
