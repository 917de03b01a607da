package cache

import (
	"context"
	"time"

	"contract-guard/types"
)

const (
	fpPrefix = "fp:"
	idPrefix = "id:"
)

// ResultCache 分析结果缓存，同时按指纹与 analysis id 建索引
type ResultCache struct {
	store Store[*types.AnalysisArtifact]
	ttl   time.Duration
}

func NewResultCache(store Store[*types.AnalysisArtifact], ttl time.Duration) *ResultCache {
	return &ResultCache{store: store, ttl: ttl}
}

// Get 按指纹查询
func (c *ResultCache) Get(ctx context.Context, fp types.Fingerprint) (*types.AnalysisArtifact, bool, error) {
	return c.store.Get(ctx, fpPrefix+string(fp))
}

// GetByID 按 analysis id 查询
func (c *ResultCache) GetByID(ctx context.Context, analysisID string) (*types.AnalysisArtifact, bool, error) {
	return c.store.Get(ctx, idPrefix+analysisID)
}

// Put 写入指纹与 id 两个索引，整体 TTL 相同
func (c *ResultCache) Put(ctx context.Context, fp types.Fingerprint, a *types.AnalysisArtifact) error {
	if err := c.store.Set(ctx, idPrefix+a.AnalysisID, a, c.ttl); err != nil {
		return err
	}
	return c.store.Set(ctx, fpPrefix+string(fp), a, c.ttl)
}

// PutByID 只写 id 索引，不改变指纹当前指向的 Artifact
func (c *ResultCache) PutByID(ctx context.Context, a *types.AnalysisArtifact) error {
	return c.store.Set(ctx, idPrefix+a.AnalysisID, a, c.ttl)
}

// Invalidate 删除指纹索引，旧 Artifact 仍可按 id 读取直到过期
func (c *ResultCache) Invalidate(ctx context.Context, fp types.Fingerprint) error {
	return c.store.Delete(ctx, fpPrefix+string(fp))
}

func (c *ResultCache) Sweep(ctx context.Context) (int, error) {
	return c.store.Sweep(ctx)
}

func (c *ResultCache) Len(ctx context.Context) (int, error) {
	return c.store.Len(ctx)
}

func (c *ResultCache) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// TTL 结果缓存的存活时间
func (c *ResultCache) TTL() time.Duration {
	return c.ttl
}
