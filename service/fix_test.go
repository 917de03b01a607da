package service

import (
	"context"
	"testing"

	"contract-guard/logic/risk"
	"contract-guard/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixApplicator(env *testEnv) *FixApplicator {
	return NewFixApplicator(env.orch, env.results, risk.NewScorer(nil), env.repo, nil)
}

func TestApplyFixCreatesNewArtifact(t *testing.T) {
	env := newTestEnv(t, &fakeAnalyzer{}, nil, nil)
	ctx := context.Background()

	orig, err := env.orch.Submit(ctx, sampleSubmission())
	require.NoError(t, err)
	require.Equal(t, 75.0, orig.RiskScore)

	fixed, err := newFixApplicator(env).ApplyFix(ctx, FixRequest{
		AnalysisID:  orig.AnalysisID,
		IssueID:     "3",
		Description: "Fix renewal price for the first term",
		Payload:     "Renewal fees shall not exceed the initial fee.",
		AutoApply:   true,
		AppliedBy:   "legal@example.com",
	})
	require.NoError(t, err)

	assert.NotEqual(t, orig.AnalysisID, fixed.AnalysisID)
	assert.Equal(t, orig.AnalysisID, fixed.ParentID)
	assert.Equal(t, orig.Fingerprint, fixed.Fingerprint)
	assert.Equal(t, 55.0, fixed.RiskScore)
	assert.Equal(t, types.RiskHigh, fixed.RiskLevel)
	assert.Equal(t, types.IssueFixed, fixed.Issues[2].Status)
	assert.Equal(t, "Fix renewal price for the first term", fixed.Issues[2].AppliedFix)

	// 原 Artifact 不变，仍可按 id 取回
	before, err := env.orch.GetAnalysis(ctx, orig.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, 75.0, before.RiskScore)
	assert.Equal(t, types.IssueOpen, before.Issues[2].Status)

	// 相同提交命中修复后的结果
	again, err := env.orch.Submit(ctx, sampleSubmission())
	require.NoError(t, err)
	assert.Equal(t, fixed.AnalysisID, again.AnalysisID)
	assert.Equal(t, 1, env.analyzer.Calls())

	fixes, err := env.repo.ListFixes(ctx, orig.AnalysisID)
	require.NoError(t, err)
	require.Len(t, fixes, 1)
	assert.Equal(t, fixed.AnalysisID, fixes[0].ResultID)

	sub, err := env.repo.GetSubmission(ctx, fixed.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, sampleSubmission().Text, sub.Text)
}

func TestApplyFixOnSupersededAnalysisKeepsNewerHead(t *testing.T) {
	env := newTestEnv(t, &fakeAnalyzer{}, nil, nil)
	ctx := context.Background()
	fa := newFixApplicator(env)

	a, err := env.orch.Submit(ctx, sampleSubmission())
	require.NoError(t, err)

	b, err := fa.ApplyFix(ctx, FixRequest{AnalysisID: a.AnalysisID, IssueID: "3", Description: "Fix renewal price", Payload: "cap", AutoApply: true})
	require.NoError(t, err)

	// 基于已被取代的 A 再修复，不能覆盖 B 的修复
	c, err := fa.ApplyFix(ctx, FixRequest{AnalysisID: a.AnalysisID, IssueID: "1", Description: "Cap liability"})
	require.NoError(t, err)
	assert.Equal(t, a.AnalysisID, c.ParentID)
	assert.Equal(t, types.IssueOpen, c.Issues[2].Status)

	head, err := env.orch.Submit(ctx, sampleSubmission())
	require.NoError(t, err)
	assert.Equal(t, b.AnalysisID, head.AnalysisID)
	assert.Equal(t, types.IssueFixed, head.Issues[2].Status)

	got, err := env.orch.GetAnalysis(ctx, c.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, types.IssueFixed, got.Issues[0].Status)

	// 在当前版本 B 上继续修复则推进指纹索引
	d, err := fa.ApplyFix(ctx, FixRequest{AnalysisID: b.AnalysisID, IssueID: "1", Description: "Cap liability"})
	require.NoError(t, err)
	head, err = env.orch.Submit(ctx, sampleSubmission())
	require.NoError(t, err)
	assert.Equal(t, d.AnalysisID, head.AnalysisID)
	assert.Equal(t, types.IssueFixed, head.Issues[0].Status)
	assert.Equal(t, types.IssueFixed, head.Issues[2].Status)
	assert.Equal(t, 1, env.analyzer.Calls())
}

func TestApplyFixWithoutPayloadKeepsScore(t *testing.T) {
	env := newTestEnv(t, &fakeAnalyzer{}, nil, nil)
	ctx := context.Background()

	orig, err := env.orch.Submit(ctx, sampleSubmission())
	require.NoError(t, err)

	fixed, err := newFixApplicator(env).ApplyFix(ctx, FixRequest{
		AnalysisID:  orig.AnalysisID,
		IssueID:     "1",
		Description: "Cap liability at fees paid",
		AutoApply:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, orig.RiskScore, fixed.RiskScore)
	assert.Equal(t, types.IssueFixed, fixed.Issues[0].Status)
}

func TestApplyFixErrors(t *testing.T) {
	env := newTestEnv(t, &fakeAnalyzer{}, nil, nil)
	ctx := context.Background()
	fa := newFixApplicator(env)

	orig, err := env.orch.Submit(ctx, sampleSubmission())
	require.NoError(t, err)

	_, err = fa.ApplyFix(ctx, FixRequest{AnalysisID: "nope", IssueID: "1", Description: "x"})
	assert.ErrorIs(t, err, types.ErrArtifactNotFound)

	_, err = fa.ApplyFix(ctx, FixRequest{AnalysisID: orig.AnalysisID, IssueID: "42", Description: "x"})
	assert.ErrorIs(t, err, types.ErrIssueNotFound)

	_, err = fa.ApplyFix(ctx, FixRequest{AnalysisID: orig.AnalysisID, IssueID: "1"})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}
