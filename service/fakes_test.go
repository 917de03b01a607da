package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"contract-guard/logic/risk"
	"contract-guard/pkg/retry"
	"contract-guard/storage/cache"
	"contract-guard/storage/memory"
	"contract-guard/types"

	"github.com/cloudwego/eino/schema"
)

type fakeAnalyzer struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
	errs    []error

	set       *types.IssueSet
	events    []*types.AnalysisEvent
	streamErr error
}

func (f *fakeAnalyzer) begin() (int, chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.calls, f.release
}

func (f *fakeAnalyzer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, _ types.ContractSubmission) (*types.IssueSet, error) {
	n, release := f.begin()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= len(f.errs) && f.errs[n-1] != nil {
		return nil, f.errs[n-1]
	}
	set := *f.set
	set.Issues = append([]types.Issue(nil), f.set.Issues...)
	return &set, nil
}

func (f *fakeAnalyzer) AnalyzeStream(_ context.Context, _ types.ContractSubmission) (*schema.StreamReader[*types.AnalysisEvent], error) {
	n, release := f.begin()
	if n <= len(f.errs) && f.errs[n-1] != nil {
		return nil, f.errs[n-1]
	}
	sr, sw := schema.Pipe[*types.AnalysisEvent](len(f.events) + 1)
	go func() {
		defer sw.Close()
		if release != nil {
			<-release
		}
		for _, ev := range f.events {
			e := *ev
			if sw.Send(&e, nil) {
				return
			}
		}
		if f.streamErr != nil {
			sw.Send(nil, f.streamErr)
		}
	}()
	return sr, nil
}

func sampleSet() *types.IssueSet {
	return &types.IssueSet{
		Issues: []types.Issue{
			{Category: types.CategoryLegal, Severity: types.SeverityCritical, Title: "Unlimited liability", RiskScore: 100},
			{Category: types.CategoryFinancial, Severity: types.SeverityLow, Title: "Late fee", RiskScore: 10},
			{Category: types.CategoryFinancial, Severity: types.SeverityMedium, Title: "Auto renewal price", RiskScore: 50},
		},
		Summary:         "Liability exposure is the main concern",
		Recommendations: []string{"Cap liability"},
	}
}

func sampleEvents() []*types.AnalysisEvent {
	set := sampleSet()
	events := []*types.AnalysisEvent{{Kind: types.EventProgress, Received: 1}}
	for i := range set.Issues {
		events = append(events, &types.AnalysisEvent{Kind: types.EventIssueFound, Issue: &set.Issues[i]})
	}
	return append(events,
		&types.AnalysisEvent{Kind: types.EventSummary, Summary: set.Summary, Recommendations: set.Recommendations},
		&types.AnalysisEvent{Kind: types.EventDone},
	)
}

func sampleSubmission() types.ContractSubmission {
	return types.ContractSubmission{
		Text:       "The supplier accepts unlimited liability for all damages.  Fees renew automatically.",
		Industry:   types.IndustryTechnology,
		Categories: []types.Category{types.CategoryLegal, types.CategoryFinancial},
	}
}

// brokenStore 所有操作都返回缓存不可用
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (*types.AnalysisArtifact, bool, error) {
	return nil, false, types.ErrCacheUnavailable
}
func (brokenStore) Set(context.Context, string, *types.AnalysisArtifact, time.Duration) error {
	return types.ErrCacheUnavailable
}
func (brokenStore) Delete(context.Context, string) error { return types.ErrCacheUnavailable }
func (brokenStore) Sweep(context.Context) (int, error) { return 0, types.ErrCacheUnavailable }
func (brokenStore) Len(context.Context) (int, error) { return 0, types.ErrCacheUnavailable }
func (brokenStore) Ping(context.Context) error { return types.ErrCacheUnavailable }

// lateStore 对接下来 hide 次指纹查询隐藏已有条目，模拟条目在 lookup 之后才写入
type lateStore struct {
	cache.Store[*types.AnalysisArtifact]
	mu   sync.Mutex
	hide int
}

func (s *lateStore) Get(ctx context.Context, key string) (*types.AnalysisArtifact, bool, error) {
	s.mu.Lock()
	if s.hide > 0 && strings.HasPrefix(key, "fp:") {
		s.hide--
		s.mu.Unlock()
		return nil, false, nil
	}
	s.mu.Unlock()
	return s.Store.Get(ctx, key)
}

func (s *lateStore) hideNext(n int) {
	s.mu.Lock()
	s.hide = n
	s.mu.Unlock()
}

type fakeEnqueuer struct {
	mu   sync.Mutex
	keys map[string]string
	jobs []types.JobKind
}

func (f *fakeEnqueuer) EnqueueUnique(_ context.Context, kind types.JobKind, key string, _ any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys == nil {
		f.keys = map[string]string{}
	}
	if id, ok := f.keys[key]; ok {
		return id, nil
	}
	id := "job-" + key[:12]
	f.keys[key] = id
	f.jobs = append(f.jobs, kind)
	return id, nil
}

type testEnv struct {
	orch     *Orchestrator
	analyzer *fakeAnalyzer
	results  *cache.ResultCache
	repo     *memory.Store
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, Base: time.Millisecond, Factor: 2, Max: 5 * time.Millisecond}
}

func newTestEnv(t *testing.T, an *fakeAnalyzer, store cache.Store[*types.AnalysisArtifact], jobs Enqueuer) *testEnv {
	t.Helper()
	if an.set == nil {
		an.set = sampleSet()
	}
	if store == nil {
		store = cache.NewMemoryStore[*types.AnalysisArtifact]()
	}
	results := cache.NewResultCache(store, time.Hour)
	repo := memory.NewStore(DefaultTemplates())
	exec := NewExecutor(an, risk.NewScorer(nil), fastPolicy())
	orch := NewOrchestrator(results, exec, Options{
		Repo:             repo,
		Jobs:             jobs,
		ExecutionTimeout: 5 * time.Second,
	})
	return &testEnv{orch: orch, analyzer: an, results: results, repo: repo}
}
