package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"contract-guard/logic/fingerprint"
	"contract-guard/storage/cache"
	"contract-guard/types"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, sr *schema.StreamReader[*types.AnalysisEvent]) []*types.AnalysisEvent {
	t.Helper()
	defer sr.Close()
	var events []*types.AnalysisEvent
	for {
		ev, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestSubmitAssemblesArtifact(t *testing.T) {
	env := newTestEnv(t, &fakeAnalyzer{}, nil, nil)

	a, err := env.orch.Submit(context.Background(), sampleSubmission())
	require.NoError(t, err)

	assert.NotEmpty(t, a.AnalysisID)
	assert.Len(t, a.Issues, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{a.Issues[0].ID, a.Issues[1].ID, a.Issues[2].ID})
	assert.Equal(t, types.IssueOpen, a.Issues[0].Status)
	assert.Equal(t, 75.0, a.RiskScore)
	assert.Equal(t, types.RiskCritical, a.RiskLevel)

	stored, err := env.repo.GetAnalysis(context.Background(), a.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint, stored.Fingerprint)
}

func TestSubmitCacheHit(t *testing.T) {
	env := newTestEnv(t, &fakeAnalyzer{}, nil, nil)
	ctx := context.Background()

	first, err := env.orch.Submit(ctx, sampleSubmission())
	require.NoError(t, err)

	// 空白差异不影响指纹
	sub := sampleSubmission()
	sub.Text = "  The supplier accepts unlimited liability for all damages. Fees renew automatically.\n"
	second, err := env.orch.Submit(ctx, sub)
	require.NoError(t, err)

	assert.Equal(t, first.AnalysisID, second.AnalysisID)
	assert.Equal(t, 1, env.analyzer.Calls())
	stats := env.orch.Stats()
	assert.EqualValues(t, 1, stats.CacheHits)
	assert.EqualValues(t, 1, stats.Executions)
}

func TestLeaderRechecksCacheBeforeLaunch(t *testing.T) {
	store := &lateStore{Store: cache.NewMemoryStore[*types.AnalysisArtifact]()}
	env := newTestEnv(t, &fakeAnalyzer{}, store, nil)
	ctx := context.Background()

	first, err := env.orch.Submit(ctx, sampleSubmission())
	require.NoError(t, err)

	store.hideNext(1)
	second, err := env.orch.Submit(ctx, sampleSubmission())
	require.NoError(t, err)
	assert.Equal(t, first.AnalysisID, second.AnalysisID)

	store.hideNext(1)
	sr, err := env.orch.Stream(ctx, sampleSubmission())
	require.NoError(t, err)
	events := drain(t, sr)
	require.Len(t, events, 5)
	assert.Equal(t, types.EventIssueFound, events[0].Kind)
	assert.Equal(t, first.AnalysisID, events[4].Artifact.AnalysisID)

	assert.Equal(t, 1, env.analyzer.Calls())
	assert.Empty(t, env.orch.InFlight())
	stats := env.orch.Stats()
	assert.EqualValues(t, 2, stats.CacheHits)
	assert.EqualValues(t, 1, stats.CacheMisses)
}

func TestSubmitCollapsesConcurrentDuplicates(t *testing.T) {
	an := &fakeAnalyzer{release: make(chan struct{})}
	env := newTestEnv(t, an, nil, nil)

	const n = 10
	results := make([]*types.AnalysisArtifact, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = env.orch.Submit(context.Background(), sampleSubmission())
		}()
	}

	require.Eventually(t, func() bool {
		flights := env.orch.InFlight()
		return len(flights) == 1 && flights[0].Waiters == n-1
	}, 2*time.Second, 5*time.Millisecond)
	close(an.release)
	wg.Wait()

	assert.Equal(t, 1, an.Calls())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].AnalysisID, results[i].AnalysisID)
	}
	assert.Equal(t, 0, env.orch.Stats().InFlight)
}

func TestSubmitFailurePropagatesToWaiters(t *testing.T) {
	an := &fakeAnalyzer{release: make(chan struct{}), errs: []error{errors.New("bad request")}}
	env := newTestEnv(t, an, nil, nil)

	const n = 5
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.orch.Submit(context.Background(), sampleSubmission())
		}()
	}
	require.Eventually(t, func() bool {
		flights := env.orch.InFlight()
		return len(flights) == 1 && flights[0].Waiters == n-1
	}, 2*time.Second, 5*time.Millisecond)
	close(an.release)
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, types.ErrAnalysisUnavailable)
	}
	assert.Equal(t, 1, an.Calls())

	size, err := env.results.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, size)
	assert.EqualValues(t, 1, env.orch.Stats().ConsecutiveFailures)
}

func TestSubmitRetriesTransientErrors(t *testing.T) {
	an := &fakeAnalyzer{errs: []error{types.ErrRateLimited, types.ErrTimeout}}
	env := newTestEnv(t, an, nil, nil)

	a, err := env.orch.Submit(context.Background(), sampleSubmission())
	require.NoError(t, err)
	assert.NotNil(t, a)
	assert.Equal(t, 3, an.Calls())
	assert.EqualValues(t, 3, env.orch.Stats().ExternalCalls)
}

func TestSubmitGivesUpAfterMaxAttempts(t *testing.T) {
	an := &fakeAnalyzer{errs: []error{types.ErrServiceUnavailable, types.ErrServiceUnavailable, types.ErrServiceUnavailable}}
	env := newTestEnv(t, an, nil, nil)
	ctx := context.Background()

	_, err := env.orch.Submit(ctx, sampleSubmission())
	require.ErrorIs(t, err, types.ErrAnalysisUnavailable)
	assert.ErrorIs(t, err, types.ErrServiceUnavailable)
	assert.Equal(t, 3, an.Calls())

	// 失败结果不缓存，下次请求重新执行
	_, err = env.orch.Submit(ctx, sampleSubmission())
	require.NoError(t, err)
	assert.Equal(t, 4, an.Calls())
}

func TestSubmitDoesNotRetryPermanentErrors(t *testing.T) {
	an := &fakeAnalyzer{errs: []error{errors.New("invalid api key")}}
	env := newTestEnv(t, an, nil, nil)

	_, err := env.orch.Submit(context.Background(), sampleSubmission())
	require.ErrorIs(t, err, types.ErrAnalysisUnavailable)
	assert.Equal(t, 1, an.Calls())
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t, &fakeAnalyzer{}, nil, nil)
	ctx := context.Background()

	_, err := env.orch.Submit(ctx, types.ContractSubmission{Text: "   "})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	sub := sampleSubmission()
	sub.Industry = "space"
	_, err = env.orch.Submit(ctx, sub)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = env.orch.Submit(ctx, types.ContractSubmission{FileRef: "s3://bucket/a.pdf"})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	assert.Zero(t, env.analyzer.Calls())
}

func TestSubmitBypassesUnavailableCache(t *testing.T) {
	env := newTestEnv(t, &fakeAnalyzer{}, brokenStore{}, nil)
	ctx := context.Background()

	_, err := env.orch.Submit(ctx, sampleSubmission())
	require.NoError(t, err)
	_, err = env.orch.Submit(ctx, sampleSubmission())
	require.NoError(t, err)

	assert.Equal(t, 2, env.analyzer.Calls())
	assert.Positive(t, env.orch.Stats().CacheErrors)
}

func TestSubmitWaiterCancellation(t *testing.T) {
	an := &fakeAnalyzer{release: make(chan struct{})}
	env := newTestEnv(t, an, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := env.orch.Submit(ctx, sampleSubmission())
	assert.ErrorIs(t, err, context.Canceled)

	// 执行不受调用方取消影响，完成后写入缓存
	close(an.release)
	require.NoError(t, env.orch.Wait(context.Background()))
	fp, err := fingerprint.Compute(sampleSubmission())
	require.NoError(t, err)
	_, ok, err := env.results.Get(context.Background(), fp)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStreamDeliversEventsAndCaches(t *testing.T) {
	an := &fakeAnalyzer{events: sampleEvents()}
	env := newTestEnv(t, an, nil, nil)
	ctx := context.Background()

	sr, err := env.orch.Stream(ctx, sampleSubmission())
	require.NoError(t, err)
	events := drain(t, sr)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.Equal(t, types.EventDone, last.Kind)
	require.NotNil(t, last.Artifact)
	assert.Len(t, last.Artifact.Issues, 3)
	assert.Equal(t, 75.0, last.Artifact.RiskScore)

	var issueIDs []string
	for i, ev := range events {
		assert.Equal(t, i+1, ev.Seq)
		if ev.Kind == types.EventIssueFound {
			issueIDs = append(issueIDs, ev.Issue.ID)
		}
	}
	assert.Equal(t, []string{"1", "2", "3"}, issueIDs)

	a, err := env.orch.Submit(ctx, sampleSubmission())
	require.NoError(t, err)
	assert.Equal(t, last.Artifact.AnalysisID, a.AnalysisID)
	assert.Equal(t, 1, an.Calls())
}

func TestStreamReplaysCachedArtifact(t *testing.T) {
	env := newTestEnv(t, &fakeAnalyzer{}, nil, nil)
	ctx := context.Background()

	a, err := env.orch.Submit(ctx, sampleSubmission())
	require.NoError(t, err)

	sr, err := env.orch.Stream(ctx, sampleSubmission())
	require.NoError(t, err)
	events := drain(t, sr)

	require.Len(t, events, 5)
	assert.Equal(t, types.EventSummary, events[3].Kind)
	assert.Equal(t, types.EventDone, events[4].Kind)
	assert.Equal(t, a.AnalysisID, events[4].Artifact.AnalysisID)
	assert.Equal(t, 1, env.analyzer.Calls())
}

func TestStreamInterruptionIsNotCached(t *testing.T) {
	cases := map[string]*fakeAnalyzer{
		"mid-stream error": {
			events:    sampleEvents()[:3],
			streamErr: types.ErrServiceUnavailable,
		},
		"eof without done": {
			events: sampleEvents()[:3],
		},
	}
	for name, an := range cases {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, an, nil, nil)

			sr, err := env.orch.Stream(context.Background(), sampleSubmission())
			require.NoError(t, err)
			events := drain(t, sr)

			last := events[len(events)-1]
			assert.Equal(t, types.EventError, last.Kind)
			assert.Equal(t, "AnalysisUnavailable", last.ErrorKind)
			for _, ev := range events[:len(events)-1] {
				assert.False(t, ev.Terminal())
			}

			size, err := env.results.Len(context.Background())
			require.NoError(t, err)
			assert.Zero(t, size)
		})
	}
}

func TestStreamDisconnectStillCaches(t *testing.T) {
	an := &fakeAnalyzer{events: sampleEvents(), release: make(chan struct{})}
	env := newTestEnv(t, an, nil, nil)

	sr, err := env.orch.Stream(context.Background(), sampleSubmission())
	require.NoError(t, err)
	sr.Close()
	close(an.release)

	fp, err := fingerprint.Compute(sampleSubmission())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, ok, _ := env.results.Get(context.Background(), fp)
		return ok
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStreamWaiterReceivesLeaderOutcome(t *testing.T) {
	an := &fakeAnalyzer{events: sampleEvents(), release: make(chan struct{})}
	env := newTestEnv(t, an, nil, nil)
	ctx := context.Background()

	leader, err := env.orch.Stream(ctx, sampleSubmission())
	require.NoError(t, err)
	waiter, err := env.orch.Stream(ctx, sampleSubmission())
	require.NoError(t, err)
	close(an.release)

	le := drain(t, leader)
	we := drain(t, waiter)
	assert.Equal(t, le[len(le)-1].Artifact.AnalysisID, we[len(we)-1].Artifact.AnalysisID)
	assert.Equal(t, 1, an.Calls())
}

func TestSubmitBackground(t *testing.T) {
	jobs := &fakeEnqueuer{}
	env := newTestEnv(t, &fakeAnalyzer{}, nil, jobs)
	ctx := context.Background()

	first, err := env.orch.SubmitBackground(ctx, sampleSubmission())
	require.NoError(t, err)
	require.NotEmpty(t, first.JobID)
	assert.Nil(t, first.Artifact)

	second, err := env.orch.SubmitBackground(ctx, sampleSubmission())
	require.NoError(t, err)
	assert.Equal(t, first.JobID, second.JobID)
	assert.Equal(t, []types.JobKind{types.JobAnalyze}, jobs.jobs)

	// 缓存命中时直接返回结果
	a, err := env.orch.Submit(ctx, sampleSubmission())
	require.NoError(t, err)
	third, err := env.orch.SubmitBackground(ctx, sampleSubmission())
	require.NoError(t, err)
	assert.Empty(t, third.JobID)
	assert.Equal(t, a.AnalysisID, third.Artifact.AnalysisID)
}

func TestAnalyzeDispatchesByMode(t *testing.T) {
	env := newTestEnv(t, &fakeAnalyzer{events: sampleEvents()}, nil, nil)
	ctx := context.Background()

	res, err := env.orch.Analyze(ctx, sampleSubmission(), ModeStream)
	require.NoError(t, err)
	require.NotNil(t, res.Stream)
	drain(t, res.Stream)

	res, err = env.orch.Analyze(ctx, sampleSubmission(), ModeSync)
	require.NoError(t, err)
	assert.NotNil(t, res.Artifact)

	_, err = env.orch.Analyze(ctx, sampleSubmission(), ModeBackground)
	require.NoError(t, err)

	_, err = env.orch.Analyze(ctx, sampleSubmission(), "later")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestGetAnalysisFallsBackToRepository(t *testing.T) {
	env := newTestEnv(t, &fakeAnalyzer{}, nil, nil)
	ctx := context.Background()

	a, err := env.orch.Submit(ctx, sampleSubmission())
	require.NoError(t, err)

	got, err := env.orch.GetAnalysis(ctx, a.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, a.AnalysisID, got.AnalysisID)

	other := newTestEnv(t, &fakeAnalyzer{}, nil, nil)
	other.orch.opts.Repo = env.repo
	got, err = other.orch.GetAnalysis(ctx, a.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, a.AnalysisID, got.AnalysisID)

	_, err = env.orch.GetAnalysis(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrArtifactNotFound)
}

func TestReanalyzeWithNewCategories(t *testing.T) {
	env := newTestEnv(t, &fakeAnalyzer{}, nil, nil)
	ctx := context.Background()

	a, err := env.orch.Submit(ctx, sampleSubmission())
	require.NoError(t, err)

	same, err := env.orch.Reanalyze(ctx, a.AnalysisID, nil)
	require.NoError(t, err)
	assert.Equal(t, a.AnalysisID, same.AnalysisID)
	assert.Equal(t, 1, env.analyzer.Calls())

	b, err := env.orch.Reanalyze(ctx, a.AnalysisID, []types.Category{types.CategoryCompliance})
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, []types.Category{types.CategoryCompliance}, b.Categories)
	assert.Equal(t, 2, env.analyzer.Calls())
}

func TestAnalyzeBatchPartialFailure(t *testing.T) {
	env := newTestEnv(t, &fakeAnalyzer{}, nil, nil)

	res := env.orch.AnalyzeBatch(context.Background(), []types.BatchItem{
		{ID: "a", Text: "Payment is due within 30 days of invoice.", Industry: types.IndustryRetail},
		{ID: "b", Text: "", Industry: types.IndustryRetail},
		{Text: "Either party may terminate with notice.", Industry: "unknown"},
	}, 2)

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, "completed", res.Results[0].Status)
	assert.NotEmpty(t, res.Results[0].AnalysisID)
	assert.Equal(t, "failed", res.Results[1].Status)
	assert.Equal(t, "3", res.Results[2].ContractID)
}

func TestValidateBatch(t *testing.T) {
	assert.ErrorIs(t, ValidateBatch(nil), types.ErrInvalidInput)
	assert.ErrorIs(t, ValidateBatch(make([]types.BatchItem, MaxBatchItems+1)), types.ErrInvalidInput)
	assert.NoError(t, ValidateBatch(make([]types.BatchItem, 2)))
}
