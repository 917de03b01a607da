package cache

import (
	"context"
	"fmt"
	"time"

	"contract-guard/types"
)

// TemplateCache 模板库缓存
type TemplateCache struct {
	store Store[*types.TemplateLibrary]
	ttl   time.Duration
}

func NewTemplateCache(store Store[*types.TemplateLibrary], ttl time.Duration) *TemplateCache {
	return &TemplateCache{store: store, ttl: ttl}
}

// TemplateKey templates:<industry>:<contract type>:<include variables>
func TemplateKey(industry types.Industry, contractType string, includeVariables bool) string {
	return fmt.Sprintf("templates:%s:%s:%t", industry, contractType, includeVariables)
}

func (c *TemplateCache) Get(ctx context.Context, key string) (*types.TemplateLibrary, bool, error) {
	return c.store.Get(ctx, key)
}

func (c *TemplateCache) Put(ctx context.Context, key string, lib *types.TemplateLibrary) error {
	return c.store.Set(ctx, key, lib, c.ttl)
}

func (c *TemplateCache) Sweep(ctx context.Context) (int, error) {
	return c.store.Sweep(ctx)
}

func (c *TemplateCache) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}
