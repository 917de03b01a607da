package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"contract-guard/pkg/logger"
	"contract-guard/types"
)

// Analyzer 分析入口，由 service.Orchestrator 实现
type Analyzer interface {
	Submit(ctx context.Context, sub types.ContractSubmission) (*types.AnalysisArtifact, error)
	Reanalyze(ctx context.Context, analysisID string, categories []types.Category) (*types.AnalysisArtifact, error)
	AnalyzeBatch(ctx context.Context, items []types.BatchItem, concurrency int) *types.BatchResult
}

// Sweeper 清理过期缓存
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// AnalysisPruner 删除过期分析记录
type AnalysisPruner interface {
	DeleteAnalysesBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

// IndexPruner 删除检索索引中的文档
type IndexPruner interface {
	DeleteByAnalysisIDs(ctx context.Context, analysisIDs []string) error
}

// errNotConfigured 所需依赖未配置，重试无意义
var errNotConfigured = errors.New("dependency not configured")

// Deps 任务处理所需依赖
// Caches、Repo、Index、Monitor 为 nil 时对应任务为空操作；Analyzer 为 nil 时分析类任务直接失败
type Deps struct {
	Analyzer         Analyzer
	Caches           map[string]Sweeper
	Repo             AnalysisPruner
	Index            IndexPruner
	Monitor          *Monitor
	BatchConcurrency int
	Retention        time.Duration
}

// RegisterHandlers 注册全部任务类型
func RegisterHandlers(s *Scheduler, d Deps) {
	s.Register(types.JobAnalyze, d.analyze)
	s.Register(types.JobReanalyze, d.reanalyze)
	s.Register(types.JobBatchAnalyze, d.batchAnalyze)
	s.Register(types.JobCleanupCache, d.cleanupCache)
	s.Register(types.JobCleanupAnalyses, d.cleanupAnalyses)
	s.Register(types.JobHealthCheck, d.healthCheck)
	s.Register(types.JobMetrics, d.metrics)
	s.Register(types.JobAlertCheck, d.alertCheck)
}

func decode[T any](j *types.BackgroundJob) (T, error) {
	var v T
	if err := json.Unmarshal(j.Payload, &v); err != nil {
		return v, fmt.Errorf("%w: decode %s payload: %v", types.ErrInvalidInput, j.Kind, err)
	}
	return v, nil
}

// analyze 指纹已缓存时为缓存命中，重复执行无副作用
func (d Deps) analyze(ctx context.Context, j *types.BackgroundJob) (any, error) {
	if d.Analyzer == nil {
		return nil, fmt.Errorf("%s: analyzer: %w", j.Kind, errNotConfigured)
	}
	p, err := decode[types.AnalyzePayload](j)
	if err != nil {
		return nil, err
	}
	return d.Analyzer.Submit(ctx, p.Submission)
}

func (d Deps) reanalyze(ctx context.Context, j *types.BackgroundJob) (any, error) {
	if d.Analyzer == nil {
		return nil, fmt.Errorf("%s: analyzer: %w", j.Kind, errNotConfigured)
	}
	p, err := decode[types.ReanalyzePayload](j)
	if err != nil {
		return nil, err
	}
	return d.Analyzer.Reanalyze(ctx, p.AnalysisID, p.Categories)
}

// batchAnalyze 单个合同失败只记录在结果中
func (d Deps) batchAnalyze(ctx context.Context, j *types.BackgroundJob) (any, error) {
	if d.Analyzer == nil {
		return nil, fmt.Errorf("%s: analyzer: %w", j.Kind, errNotConfigured)
	}
	p, err := decode[types.BatchPayload](j)
	if err != nil {
		return nil, err
	}
	res := d.Analyzer.AnalyzeBatch(ctx, p.Items, d.BatchConcurrency)
	logger.Info(ctx, "batch finished", "total", res.Total, "completed", res.Completed, "failed", res.Failed)
	return res, nil
}

func (d Deps) cleanupCache(ctx context.Context, _ *types.BackgroundJob) (any, error) {
	removed := make(map[string]int, len(d.Caches))
	var errs []error
	for name, c := range d.Caches {
		n, err := c.Sweep(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep %s: %w", name, err))
			continue
		}
		removed[name] = n
	}
	logger.Info(ctx, "cache cleanup finished", "removed", removed)
	return removed, errors.Join(errs...)
}

func (d Deps) cleanupAnalyses(ctx context.Context, _ *types.BackgroundJob) (any, error) {
	if d.Repo == nil {
		return map[string]int{"deleted": 0}, nil
	}
	cutoff := time.Now().Add(-d.Retention)
	ids, err := d.Repo.DeleteAnalysesBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	if d.Index != nil && len(ids) > 0 {
		if err := d.Index.DeleteByAnalysisIDs(ctx, ids); err != nil {
			logger.Warn(ctx, "delete index documents failed", "count", len(ids), "error", err)
		}
	}
	logger.Info(ctx, "old analyses removed", "count", len(ids), "cutoff", cutoff)
	return map[string]int{"deleted": len(ids)}, nil
}

var skipped = map[string]bool{"skipped": true}

func (d Deps) healthCheck(ctx context.Context, _ *types.BackgroundJob) (any, error) {
	if d.Monitor == nil {
		return skipped, nil
	}
	report := d.Monitor.Health(ctx)
	logger.Info(ctx, "health check", "status", report.Status, "components", report.Components)
	return report, nil
}

func (d Deps) metrics(ctx context.Context, _ *types.BackgroundJob) (any, error) {
	if d.Monitor == nil {
		return skipped, nil
	}
	snap, err := d.Monitor.Collect(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "metrics collected",
		"executions", snap.Executions, "failures", snap.Failures,
		"cache_hits", snap.CacheHits, "cache_misses", snap.CacheMisses,
		"external_calls", snap.ExternalCalls, "in_flight", snap.InFlight,
		"queue_depth", snap.QueueDepth)
	return snap, nil
}

func (d Deps) alertCheck(ctx context.Context, _ *types.BackgroundJob) (any, error) {
	if d.Monitor == nil {
		return skipped, nil
	}
	alerts := d.Monitor.CheckAlerts(ctx)
	return map[string]any{"alerts": alerts, "count": len(alerts)}, nil
}
