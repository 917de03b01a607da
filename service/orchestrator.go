package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"contract-guard/logic/fingerprint"
	"contract-guard/pkg/logger"
	"contract-guard/storage/cache"
	"contract-guard/types"

	"github.com/cloudwego/eino/schema"
)

// Mode 分析调用方式
type Mode string

const (
	ModeSync       Mode = "sync"
	ModeStream     Mode = "stream"
	ModeBackground Mode = "background"
)

// Result 一次分析请求的结果，按 Mode 填充其中一项
type Result struct {
	Artifact *types.AnalysisArtifact
	Stream   *schema.StreamReader[*types.AnalysisEvent]
	JobID    string
}

// Options Orchestrator 可选依赖，nil 表示未启用
type Options struct {
	Repo             Repository
	Index            IssueIndexer
	Extractor        TextExtractor
	Jobs             Enqueuer
	ExecutionTimeout time.Duration
}

// Orchestrator 分析请求入口：缓存、单飞去重、执行与持久化
type Orchestrator struct {
	cache    *cache.ResultCache
	executor *Executor
	opts     Options
	flights  *flightTable
	stats    counters
	wg       sync.WaitGroup
}

func NewOrchestrator(results *cache.ResultCache, executor *Executor, opts Options) *Orchestrator {
	return &Orchestrator{
		cache:    results,
		executor: executor,
		opts:     opts,
		flights:  newFlightTable(),
	}
}

// Analyze 按 mode 分发
func (o *Orchestrator) Analyze(ctx context.Context, sub types.ContractSubmission, mode Mode) (*Result, error) {
	switch mode {
	case "", ModeSync:
		a, err := o.Submit(ctx, sub)
		if err != nil {
			return nil, err
		}
		return &Result{Artifact: a}, nil
	case ModeStream:
		sr, err := o.Stream(ctx, sub)
		if err != nil {
			return nil, err
		}
		return &Result{Stream: sr}, nil
	case ModeBackground:
		return o.SubmitBackground(ctx, sub)
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", types.ErrInvalidInput, mode)
	}
}

// Submit 同步分析，相同指纹的并发请求共享一次执行
func (o *Orchestrator) Submit(ctx context.Context, sub types.ContractSubmission) (*types.AnalysisArtifact, error) {
	sub, fp, err := o.prepare(ctx, sub)
	if err != nil {
		return nil, err
	}
	if a, ok := o.lookup(ctx, fp); ok {
		return a, nil
	}

	f, leader := o.flights.acquire(fp)
	if leader {
		o.lead(ctx, f, sub, fp, nil)
	} else {
		logger.Debug(ctx, "joined in-flight analysis", "fingerprint", fp, "execution_id", f.executionID)
	}

	select {
	case <-f.done:
		return f.artifact, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stream 流式分析，返回的事件流总以 done 或 error 事件结束
// 调用方关闭 reader 后执行继续进行，结果照常写入缓存
func (o *Orchestrator) Stream(ctx context.Context, sub types.ContractSubmission) (*schema.StreamReader[*types.AnalysisEvent], error) {
	sub, fp, err := o.prepare(ctx, sub)
	if err != nil {
		return nil, err
	}

	sr, sw := schema.Pipe[*types.AnalysisEvent](32)
	if a, ok := o.lookup(ctx, fp); ok {
		go replay(newForwarder(sw), a, nil)
		return sr, nil
	}

	f, leader := o.flights.acquire(fp)
	fw := newForwarder(sw)
	if leader && o.lead(ctx, f, sub, fp, fw.emit) {
		go func() {
			<-f.done
			fw.finish(f.artifact, f.err)
		}()
	} else {
		go func() {
			<-f.done
			replay(fw, f.artifact, f.err)
		}()
	}
	return sr, nil
}

// SubmitBackground 后台分析，缓存命中直接返回结果，否则入队并返回任务 id
func (o *Orchestrator) SubmitBackground(ctx context.Context, sub types.ContractSubmission) (*Result, error) {
	sub, fp, err := o.prepare(ctx, sub)
	if err != nil {
		return nil, err
	}
	if a, ok := o.lookup(ctx, fp); ok {
		return &Result{Artifact: a}, nil
	}
	if o.opts.Jobs == nil {
		return nil, fmt.Errorf("%w: background jobs disabled", types.ErrAnalysisUnavailable)
	}
	jobID, err := o.opts.Jobs.EnqueueUnique(ctx, types.JobAnalyze, "analyze:"+fp.String(), types.AnalyzePayload{Submission: sub})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "analysis queued", "job_id", jobID, "fingerprint", fp)
	return &Result{JobID: jobID}, nil
}

// GetAnalysis 按 id 查询，先查缓存再查持久化存储
func (o *Orchestrator) GetAnalysis(ctx context.Context, analysisID string) (*types.AnalysisArtifact, error) {
	if analysisID == "" {
		return nil, fmt.Errorf("%w: analysis_id is required", types.ErrInvalidInput)
	}
	a, ok, err := o.cache.GetByID(ctx, analysisID)
	if err != nil {
		o.stats.cacheErrors.Add(1)
		logger.Warn(ctx, "cache lookup by id failed", "analysis_id", analysisID, "error", err)
	}
	if ok {
		return a, nil
	}
	if o.opts.Repo == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrArtifactNotFound, analysisID)
	}
	return o.opts.Repo.GetAnalysis(ctx, analysisID)
}

// Reanalyze 以存储的原始提交重新分析，可替换分析类别
func (o *Orchestrator) Reanalyze(ctx context.Context, analysisID string, categories []types.Category) (*types.AnalysisArtifact, error) {
	if o.opts.Repo == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrArtifactNotFound, analysisID)
	}
	sub, err := o.opts.Repo.GetSubmission(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	if len(categories) > 0 {
		sub.Categories = categories
	}
	return o.Submit(ctx, *sub)
}

// Stats 监控计数快照
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Executions:          o.stats.executions.Load(),
		Failures:            o.stats.failures.Load(),
		ConsecutiveFailures: o.stats.consecutive.Load(),
		CacheHits:           o.stats.hits.Load(),
		CacheMisses:         o.stats.misses.Load(),
		CacheErrors:         o.stats.cacheErrors.Load(),
		ExternalCalls:       o.executor.Calls(),
		InFlight:            o.flights.len(),
	}
}

// InFlight 执行中的任务
func (o *Orchestrator) InFlight() []FlightInfo {
	return o.flights.snapshot()
}

// Wait 等待所有已启动的执行结束，用于优雅退出
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// prepare 抽取文件正文、校验并计算指纹
func (o *Orchestrator) prepare(ctx context.Context, sub types.ContractSubmission) (types.ContractSubmission, types.Fingerprint, error) {
	if sub.Text == "" && sub.FileRef != "" {
		if o.opts.Extractor == nil {
			return sub, "", fmt.Errorf("%w: file references are not supported", types.ErrInvalidInput)
		}
		text, err := o.opts.Extractor.ExtractRef(ctx, sub.FileRef)
		if err != nil {
			return sub, "", err
		}
		sub.Text = text
	}
	if err := sub.Validate(); err != nil {
		return sub, "", err
	}
	sub = sub.Normalized()
	fp, err := fingerprint.Compute(sub)
	if err != nil {
		return sub, "", err
	}
	return sub, fp, nil
}

// lookup 缓存不可用时按未命中处理
func (o *Orchestrator) lookup(ctx context.Context, fp types.Fingerprint) (*types.AnalysisArtifact, bool) {
	a, ok, err := o.cache.Get(ctx, fp)
	if err != nil {
		o.stats.cacheErrors.Add(1)
		logger.Warn(ctx, "cache lookup failed, bypassing", "fingerprint", fp, "error", err)
	}
	if ok {
		o.stats.hits.Add(1)
		logger.Debug(ctx, "cache hit", "fingerprint", fp, "analysis_id", a.AnalysisID)
		return a, true
	}
	o.stats.misses.Add(1)
	return nil, false
}

// lead 取得标记后再查一次缓存，上一次执行可能恰好在 lookup 与 acquire 之间完成
// 命中时直接以缓存结果释放标记并返回 false，否则启动执行
func (o *Orchestrator) lead(ctx context.Context, f *flight, sub types.ContractSubmission, fp types.Fingerprint, emit func(*types.AnalysisEvent)) bool {
	if a, ok, err := o.cache.Get(ctx, fp); err == nil && ok {
		o.stats.misses.Add(-1)
		o.stats.hits.Add(1)
		logger.Debug(ctx, "cache filled before launch", "fingerprint", fp, "analysis_id", a.AnalysisID)
		o.flights.complete(fp, f, a, nil)
		return false
	}
	o.launch(ctx, f, sub, fp, emit)
	return true
}

// launch 启动与请求生命周期解耦的执行
func (o *Orchestrator) launch(ctx context.Context, f *flight, sub types.ContractSubmission, fp types.Fingerprint, emit func(*types.AnalysisEvent)) {
	runCtx := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		var cancel context.CancelFunc
		if o.opts.ExecutionTimeout > 0 {
			runCtx, cancel = context.WithTimeout(runCtx, o.opts.ExecutionTimeout)
			defer cancel()
		}
		logger.Info(runCtx, "analysis started", "fingerprint", fp, "execution_id", f.executionID)
		a, err := o.run(runCtx, sub, fp, emit)
		o.finish(runCtx, f, sub, fp, a, err)
	}()
}

func (o *Orchestrator) run(ctx context.Context, sub types.ContractSubmission, fp types.Fingerprint, emit func(*types.AnalysisEvent)) (a *types.AnalysisArtifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			a, err = nil, fmt.Errorf("%w: panic: %v", types.ErrAnalysisUnavailable, r)
		}
	}()
	if emit != nil {
		return o.executor.ExecuteStream(ctx, sub, fp, emit)
	}
	return o.executor.Execute(ctx, sub, fp)
}

// finish 成功时先写缓存与存储，再释放标记唤醒等待者；失败不写缓存
func (o *Orchestrator) finish(ctx context.Context, f *flight, sub types.ContractSubmission, fp types.Fingerprint, a *types.AnalysisArtifact, err error) {
	o.stats.recordResult(err)
	if err != nil {
		logger.Error(ctx, "analysis failed", "fingerprint", fp, "execution_id", f.executionID,
			"elapsed", time.Since(f.startedAt), "error", err)
		o.flights.complete(fp, f, nil, err)
		return
	}

	if err := o.cache.Put(ctx, fp, a); err != nil {
		o.stats.cacheErrors.Add(1)
		logger.Warn(ctx, "cache store failed", "fingerprint", fp, "error", err)
	}
	o.persist(ctx, a, sub.Text)
	logger.Info(ctx, "analysis completed", "fingerprint", fp, "analysis_id", a.AnalysisID,
		"issues", len(a.Issues), "risk_level", a.RiskLevel, "elapsed", time.Since(f.startedAt))
	o.flights.complete(fp, f, a, nil)
}

// persist 写入数据库与检索索引，失败只记录日志
func (o *Orchestrator) persist(ctx context.Context, a *types.AnalysisArtifact, text string) {
	if o.opts.Repo != nil {
		if err := o.opts.Repo.SaveAnalysis(ctx, a, text); err != nil {
			logger.Warn(ctx, "persist analysis failed", "analysis_id", a.AnalysisID, "error", err)
		}
	}
	if o.opts.Index != nil {
		if err := o.opts.Index.IndexArtifact(ctx, a); err != nil {
			logger.Warn(ctx, "index analysis failed", "analysis_id", a.AnalysisID, "error", err)
		}
	}
}
