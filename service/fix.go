package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"contract-guard/logic/risk"
	"contract-guard/pkg/logger"
	"contract-guard/storage/cache"
	"contract-guard/types"

	"github.com/google/uuid"
)

// FixRequest 对某个问题应用修复
type FixRequest struct {
	AnalysisID  string `json:"analysis_id"`
	IssueID     string `json:"issue_id"`
	Description string `json:"fix_description"`
	Payload     string `json:"fix_payload,omitempty"`
	AutoApply   bool   `json:"auto_apply"`
	AppliedBy   string `json:"applied_by,omitempty"`
}

// ArtifactGetter 按 id 取回 Artifact
type ArtifactGetter interface {
	GetAnalysis(ctx context.Context, analysisID string) (*types.AnalysisArtifact, error)
}

// FixApplicator 生成修复后的新 Artifact，原 Artifact 保持不变
type FixApplicator struct {
	artifacts ArtifactGetter
	cache     *cache.ResultCache
	scorer    *risk.Scorer
	repo      Repository
	index     IssueIndexer

	// 串行化指纹索引的检查与替换
	mu sync.Mutex
}

func NewFixApplicator(artifacts ArtifactGetter, results *cache.ResultCache, scorer *risk.Scorer, repo Repository, index IssueIndexer) *FixApplicator {
	return &FixApplicator{
		artifacts: artifacts,
		cache:     results,
		scorer:    scorer,
		repo:      repo,
		index:     index,
	}
}

// ApplyFix 仅当 AutoApply 且带有 Payload 时重新计算风险分
func (f *FixApplicator) ApplyFix(ctx context.Context, req FixRequest) (*types.AnalysisArtifact, error) {
	if req.AnalysisID == "" || req.IssueID == "" {
		return nil, fmt.Errorf("%w: analysis_id and issue_id are required", types.ErrInvalidInput)
	}
	if req.Description == "" {
		return nil, fmt.Errorf("%w: fix_description is required", types.ErrInvalidInput)
	}

	orig, err := f.artifacts.GetAnalysis(ctx, req.AnalysisID)
	if err != nil {
		return nil, err
	}
	idx := orig.FindIssue(req.IssueID)
	if idx < 0 {
		return nil, fmt.Errorf("%w: issue %s in analysis %s", types.ErrIssueNotFound, req.IssueID, req.AnalysisID)
	}

	now := time.Now()
	updated := orig.Clone()
	updated.AnalysisID = uuid.NewString()
	updated.ParentID = orig.AnalysisID
	updated.CreatedAt = now
	updated.Issues[idx].Status = types.IssueFixed
	updated.Issues[idx].AppliedFix = req.Description
	if req.AutoApply && req.Payload != "" {
		updated.RiskScore, updated.RiskLevel = f.scorer.Assess(updated.Industry, updated.Categories, updated.Issues)
	}

	f.replaceHead(ctx, orig, updated)
	f.persist(ctx, orig, updated, &types.FixRecord{
		FixID:       uuid.NewString(),
		AnalysisID:  orig.AnalysisID,
		ResultID:    updated.AnalysisID,
		IssueID:     req.IssueID,
		Description: req.Description,
		Payload:     req.Payload,
		AutoApply:   req.AutoApply,
		AppliedBy:   req.AppliedBy,
		AppliedAt:   now,
	})

	logger.Info(ctx, "fix applied", "analysis_id", orig.AnalysisID, "result_id", updated.AnalysisID,
		"issue_id", req.IssueID, "risk_score", updated.RiskScore)
	return updated, nil
}

// replaceHead 指纹仍指向 orig（或已过期）时才替换为 updated
// 否则说明 orig 已有更新的版本，updated 只按 id 缓存
func (f *FixApplicator) replaceHead(ctx context.Context, orig, updated *types.AnalysisArtifact) {
	fp := updated.Fingerprint
	f.mu.Lock()
	defer f.mu.Unlock()

	head, ok, err := f.cache.Get(ctx, fp)
	if err != nil {
		logger.Warn(ctx, "cache lookup failed", "fingerprint", fp, "error", err)
	}
	if ok && head.AnalysisID != orig.AnalysisID {
		logger.Info(ctx, "fix applied to a superseded analysis, keeping current head",
			"fingerprint", fp, "head_id", head.AnalysisID, "analysis_id", orig.AnalysisID)
		if err := f.cache.PutByID(ctx, updated); err != nil {
			logger.Warn(ctx, "cache store failed", "analysis_id", updated.AnalysisID, "error", err)
		}
		return
	}

	if err := f.cache.Invalidate(ctx, fp); err != nil {
		logger.Warn(ctx, "cache invalidate failed", "fingerprint", fp, "error", err)
	}
	if err := f.cache.Put(ctx, fp, updated); err != nil {
		logger.Warn(ctx, "cache store failed", "fingerprint", fp, "error", err)
	}
}

func (f *FixApplicator) persist(ctx context.Context, orig, updated *types.AnalysisArtifact, fix *types.FixRecord) {
	if f.repo != nil {
		var text string
		if sub, err := f.repo.GetSubmission(ctx, orig.AnalysisID); err == nil {
			text = sub.Text
		}
		if err := f.repo.SaveAnalysis(ctx, updated, text); err != nil {
			logger.Warn(ctx, "persist fixed analysis failed", "analysis_id", updated.AnalysisID, "error", err)
		}
		if err := f.repo.SaveFix(ctx, fix); err != nil {
			logger.Warn(ctx, "persist fix record failed", "fix_id", fix.FixID, "error", err)
		}
	}
	if f.index != nil {
		if err := f.index.IndexArtifact(ctx, updated); err != nil {
			logger.Warn(ctx, "index fixed analysis failed", "analysis_id", updated.AnalysisID, "error", err)
		}
	}
}
