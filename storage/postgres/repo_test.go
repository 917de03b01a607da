package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"contract-guard/types"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func artifact(id string, createdAt time.Time) *types.AnalysisArtifact {
	return &types.AnalysisArtifact{
		AnalysisID:      id,
		Fingerprint:     "fp-" + types.Fingerprint(id),
		Industry:        types.IndustryTechnology,
		Categories:      []types.Category{types.CategoryFinancial, types.CategoryLegal},
		RiskScore:       75,
		RiskLevel:       types.RiskCritical,
		Summary:         "risky",
		Recommendations: []string{"cap liability"},
		ProcessingTime:  1500 * time.Millisecond,
		CreatedAt:       createdAt,
		Issues: []types.Issue{
			{ID: "1", Category: types.CategoryLegal, Severity: types.SeverityCritical, Title: "liability", RiskScore: 100, Status: types.IssueOpen},
			{ID: "2", Category: types.CategoryFinancial, Severity: types.SeverityMedium, Title: "payment", RiskScore: 50, Status: types.IssueFixed, AppliedFix: "net 30"},
		},
	}
}

func TestAnalysisRepoSaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisRepo(newTestDB(t))

	a := artifact("a-1", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, repo.SaveAnalysis(ctx, a, "full contract text"))

	got, err := repo.GetAnalysis(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint, got.Fingerprint)
	assert.Equal(t, a.Categories, got.Categories)
	assert.Equal(t, a.Recommendations, got.Recommendations)
	assert.Equal(t, a.ProcessingTime, got.ProcessingTime)
	require.Len(t, got.Issues, 2)
	assert.Equal(t, "1", got.Issues[0].ID)
	assert.Equal(t, types.IssueFixed, got.Issues[1].Status)
	assert.Equal(t, "net 30", got.Issues[1].AppliedFix)

	sub, err := repo.GetSubmission(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, "full contract text", sub.Text)
	assert.Equal(t, types.IndustryTechnology, sub.Industry)

	_, err = repo.GetAnalysis(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrArtifactNotFound)
	_, err = repo.GetSubmission(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrArtifactNotFound)
}

func TestAnalysisRepoFixes(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisRepo(newTestDB(t))

	fix := &types.FixRecord{FixID: "f-1", AnalysisID: "a-1", ResultID: "a-2", IssueID: "3", Description: "cap", AutoApply: true, AppliedAt: time.Now()}
	require.NoError(t, repo.SaveFix(ctx, fix))

	fixes, err := repo.ListFixes(ctx, "a-1")
	require.NoError(t, err)
	require.Len(t, fixes, 1)
	assert.Equal(t, "a-2", fixes[0].ResultID)
	assert.True(t, fixes[0].AutoApply)
}

func TestAnalysisRepoDeleteBefore(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisRepo(newTestDB(t))
	now := time.Now()

	require.NoError(t, repo.SaveAnalysis(ctx, artifact("old", now.Add(-100*24*time.Hour)), "x"))
	require.NoError(t, repo.SaveAnalysis(ctx, artifact("new", now), "y"))

	ids, err := repo.DeleteAnalysesBefore(ctx, now.Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, ids)

	_, err = repo.GetAnalysis(ctx, "old")
	assert.ErrorIs(t, err, types.ErrArtifactNotFound)
	_, err = repo.GetAnalysis(ctx, "new")
	assert.NoError(t, err)
}

func TestAnalysisRepoTemplates(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisRepo(newTestDB(t))

	templates := []types.Template{
		{ID: "t1", Name: "NDA", Industry: types.IndustryTechnology, ContractType: "nda", Category: types.CategoryLegal,
			Variables: []types.Variable{{Name: "party", Required: true}}},
		{ID: "t2", Name: "SaaS", Industry: types.IndustryTechnology, ContractType: "service", Category: types.CategoryFinancial},
		{ID: "t3", Name: "Lease", Industry: types.IndustryRealEstate, ContractType: "lease", Category: types.CategoryLegal},
	}
	require.NoError(t, repo.SeedTemplates(ctx, templates))
	require.NoError(t, repo.SeedTemplates(ctx, templates))

	got, err := repo.ListTemplates(ctx, types.IndustryTechnology, "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "NDA", got[0].Name)
	assert.Equal(t, "party", got[0].Variables[0].Name)

	got, err = repo.ListTemplates(ctx, types.IndustryTechnology, "NDA")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestAnalysisRepoPing(t *testing.T) {
	repo := NewAnalysisRepo(newTestDB(t))
	assert.NoError(t, repo.Ping(context.Background()))
}
