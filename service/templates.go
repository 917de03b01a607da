package service

import (
	"context"
	"fmt"
	"sort"

	"contract-guard/pkg/logger"
	"contract-guard/storage/cache"
	"contract-guard/types"
)

// TemplateSource 模板数据来源
type TemplateSource interface {
	ListTemplates(ctx context.Context, industry types.Industry, contractType string) ([]types.Template, error)
}

// TemplateService 按行业查询合同模板，结果带缓存
type TemplateService struct {
	cache  *cache.TemplateCache
	source TemplateSource
}

func NewTemplateService(templates *cache.TemplateCache, source TemplateSource) *TemplateService {
	return &TemplateService{cache: templates, source: source}
}

func (s *TemplateService) GetTemplates(ctx context.Context, industry types.Industry, contractType string, includeVariables bool) (*types.TemplateLibrary, error) {
	industry = types.NormalizeIndustry(industry)
	if !industry.Valid() {
		return nil, fmt.Errorf("%w: unknown industry %q", types.ErrInvalidInput, industry)
	}

	key := cache.TemplateKey(industry, contractType, includeVariables)
	lib, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.Warn(ctx, "template cache lookup failed", "key", key, "error", err)
	}
	if ok {
		return lib, nil
	}

	templates, err := s.source.ListTemplates(ctx, industry, contractType)
	if err != nil {
		return nil, err
	}
	lib = buildLibrary(industry, templates, includeVariables)
	if err := s.cache.Put(ctx, key, lib); err != nil {
		logger.Warn(ctx, "template cache store failed", "key", key, "error", err)
	}
	return lib, nil
}

func buildLibrary(industry types.Industry, templates []types.Template, includeVariables bool) *types.TemplateLibrary {
	out := make([]types.Template, len(templates))
	seen := map[types.Category]bool{}
	cats := []types.Category{}
	for i, t := range templates {
		if !includeVariables {
			t.Variables = nil
		}
		out[i] = t
		if t.Category != "" && !seen[t.Category] {
			seen[t.Category] = true
			cats = append(cats, t.Category)
		}
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return &types.TemplateLibrary{
		Industry:   industry,
		Templates:  out,
		TotalCount: len(out),
		Categories: cats,
	}
}
