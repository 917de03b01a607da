package cache

import (
	"context"
	"time"
)

// Store 带 TTL 的键值缓存后端
// 后端不可达时返回包装了 types.ErrCacheUnavailable 的错误
type Store[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Sweep 清理已过期条目，返回清理数量
	Sweep(ctx context.Context) (int, error)
	Len(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}
