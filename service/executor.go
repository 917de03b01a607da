package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"
	"time"

	"contract-guard/logic/risk"
	"contract-guard/pkg/logger"
	"contract-guard/pkg/retry"
	"contract-guard/types"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

// Executor 调用外部分析能力并组装 AnalysisArtifact
type Executor struct {
	analyzer Analyzer
	scorer   *risk.Scorer
	policy   retry.Policy
	sleep    func(ctx context.Context, d time.Duration) error
	calls    atomic.Int64
}

func NewExecutor(analyzer Analyzer, scorer *risk.Scorer, policy retry.Policy) *Executor {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Executor{
		analyzer: analyzer,
		scorer:   scorer,
		policy:   policy,
		sleep:    retry.Sleep,
	}
}

// Calls 外部调用累计次数，包含重试
func (e *Executor) Calls() int64 {
	return e.calls.Load()
}

// Execute 同步执行，瞬时错误按退避策略重试
func (e *Executor) Execute(ctx context.Context, sub types.ContractSubmission, fp types.Fingerprint) (*types.AnalysisArtifact, error) {
	start := time.Now()
	var set *types.IssueSet
	err := e.withRetry(ctx, func() error {
		var err error
		set, err = e.analyzer.Analyze(ctx, sub)
		return err
	})
	if err != nil {
		return nil, err
	}
	return e.assemble(sub, fp, set, time.Since(start)), nil
}

// ExecuteStream 流式执行，非终止事件交给 emit
// 只有收到 done 事件才算成功，流在此之前结束视为中断
func (e *Executor) ExecuteStream(ctx context.Context, sub types.ContractSubmission, fp types.Fingerprint, emit func(*types.AnalysisEvent)) (*types.AnalysisArtifact, error) {
	start := time.Now()
	var sr *schema.StreamReader[*types.AnalysisEvent]
	err := e.withRetry(ctx, func() error {
		var err error
		sr, err = e.analyzer.AnalyzeStream(ctx, sub)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer sr.Close()

	set := &types.IssueSet{Issues: []types.Issue{}}
	for {
		ev, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return nil, unavailable(fmt.Errorf("%w: stream ended without done event", types.ErrStreamInterrupted))
		}
		if err != nil {
			return nil, unavailable(err)
		}
		if ev == nil {
			continue
		}

		switch ev.Kind {
		case types.EventIssueFound:
			if ev.Issue == nil {
				continue
			}
			issue := *ev.Issue
			issue.ID = strconv.Itoa(len(set.Issues) + 1)
			if issue.Status == "" {
				issue.Status = types.IssueOpen
			}
			set.Issues = append(set.Issues, issue)
			ev.Issue = &issue
		case types.EventSummary:
			set.Summary = ev.Summary
			set.Recommendations = ev.Recommendations
		case types.EventDone:
			return e.assemble(sub, fp, set, time.Since(start)), nil
		case types.EventError:
			return nil, unavailable(errors.New(ev.Error))
		}
		if emit != nil {
			emit(ev)
		}
	}
}

func (e *Executor) withRetry(ctx context.Context, call func() error) error {
	var lastErr error
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		e.calls.Add(1)
		err := call()
		if err == nil {
			return nil
		}
		lastErr = err
		if !types.IsTransient(err) {
			return unavailable(err)
		}
		if attempt == e.policy.MaxAttempts {
			break
		}
		delay := e.policy.Backoff(attempt)
		logger.Warn(ctx, "analysis call failed, retrying",
			"attempt", attempt, "delay", delay, "error", err)
		if err := e.sleep(ctx, delay); err != nil {
			return unavailable(err)
		}
	}
	return fmt.Errorf("%w: giving up after %d attempts: %w", types.ErrAnalysisUnavailable, e.policy.MaxAttempts, lastErr)
}

// assemble 编号问题、计算风险分并生成新的 AnalysisArtifact
func (e *Executor) assemble(sub types.ContractSubmission, fp types.Fingerprint, set *types.IssueSet, elapsed time.Duration) *types.AnalysisArtifact {
	n := sub.Normalized()
	issues := make([]types.Issue, len(set.Issues))
	for i, issue := range set.Issues {
		issue.ID = strconv.Itoa(i + 1)
		if issue.Status == "" {
			issue.Status = types.IssueOpen
		}
		issues[i] = issue
	}
	score, level := e.scorer.Assess(n.Industry, n.Categories, issues)
	recs := set.Recommendations
	if recs == nil {
		recs = []string{}
	}
	return &types.AnalysisArtifact{
		AnalysisID:      uuid.NewString(),
		Fingerprint:     fp,
		Industry:        n.Industry,
		Categories:      n.Categories,
		RiskScore:       score,
		RiskLevel:       level,
		Issues:          issues,
		Summary:         set.Summary,
		Recommendations: recs,
		ProcessingTime:  elapsed,
		CreatedAt:       time.Now(),
	}
}

func unavailable(err error) error {
	if errors.Is(err, types.ErrAnalysisUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", types.ErrAnalysisUnavailable, err)
}
