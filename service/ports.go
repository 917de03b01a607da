package service

import (
	"context"
	"time"

	"contract-guard/types"

	"github.com/cloudwego/eino/schema"
)

// Analyzer 外部分析能力
type Analyzer interface {
	Analyze(ctx context.Context, sub types.ContractSubmission) (*types.IssueSet, error)
	AnalyzeStream(ctx context.Context, sub types.ContractSubmission) (*schema.StreamReader[*types.AnalysisEvent], error)
}

// Repository 持久化存储
type Repository interface {
	SaveAnalysis(ctx context.Context, a *types.AnalysisArtifact, contractText string) error
	GetAnalysis(ctx context.Context, analysisID string) (*types.AnalysisArtifact, error)
	GetSubmission(ctx context.Context, analysisID string) (*types.ContractSubmission, error)
	SaveFix(ctx context.Context, fix *types.FixRecord) error
	ListTemplates(ctx context.Context, industry types.Industry, contractType string) ([]types.Template, error)
	DeleteAnalysesBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	Ping(ctx context.Context) error
}

// IssueIndexer 问题检索索引
type IssueIndexer interface {
	IndexArtifact(ctx context.Context, a *types.AnalysisArtifact) error
	DeleteByAnalysisIDs(ctx context.Context, analysisIDs []string) error
	Search(ctx context.Context, req types.IssueSearchRequest) ([]types.IssueHit, error)
	Ping(ctx context.Context) error
}

// TextExtractor 从文件引用中抽取合同正文
type TextExtractor interface {
	ExtractRef(ctx context.Context, ref string) (string, error)
}

// Enqueuer 后台任务调度
type Enqueuer interface {
	// EnqueueUnique 同一 key 已有未结束任务时返回该任务 id
	EnqueueUnique(ctx context.Context, kind types.JobKind, key string, payload any) (string, error)
}
