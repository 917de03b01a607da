package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"contract-guard/types"

	"gorm.io/gorm"
)

// AnalysisRepo 封装分析结果、修复记录与模板的存取
type AnalysisRepo struct {
	db *gorm.DB
}

// NewAnalysisRepo 构造函数
func NewAnalysisRepo(db *gorm.DB) *AnalysisRepo {
	return &AnalysisRepo{db: db}
}

// SaveAnalysis 保存 Artifact 及其问题列表
func (r *AnalysisRepo) SaveAnalysis(ctx context.Context, a *types.AnalysisArtifact, contractText string) error {
	rec := toAnalysisRecord(a, contractText)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(rec).Error
	})
}

// GetAnalysis 根据 analysis id 查询，不存在时返回 ErrArtifactNotFound
func (r *AnalysisRepo) GetAnalysis(ctx context.Context, analysisID string) (*types.AnalysisArtifact, error) {
	rec, err := r.find(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	return rec.toArtifact(), nil
}

// GetSubmission 取回提交时的合同原文与参数
func (r *AnalysisRepo) GetSubmission(ctx context.Context, analysisID string) (*types.ContractSubmission, error) {
	var rec AnalysisRecord
	err := r.db.WithContext(ctx).
		Where("analysis_id = ?", analysisID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", types.ErrArtifactNotFound, analysisID)
	}
	if err != nil {
		return nil, err
	}
	if rec.ContractText == "" {
		return nil, fmt.Errorf("%w: no contract text stored for %s", types.ErrArtifactNotFound, analysisID)
	}
	return &types.ContractSubmission{
		Text:       rec.ContractText,
		Industry:   types.Industry(rec.Industry),
		Categories: rec.categories(),
	}, nil
}

func (r *AnalysisRepo) find(ctx context.Context, analysisID string) (*AnalysisRecord, error) {
	var rec AnalysisRecord
	err := r.db.WithContext(ctx).
		Preload("Issues", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("analysis_id = ?", analysisID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", types.ErrArtifactNotFound, analysisID)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveFix 记录一次修复
func (r *AnalysisRepo) SaveFix(ctx context.Context, fix *types.FixRecord) error {
	return r.db.WithContext(ctx).Create(&FixRecord{
		FixID:       fix.FixID,
		AnalysisID:  fix.AnalysisID,
		ResultID:    fix.ResultID,
		IssueID:     fix.IssueID,
		Description: fix.Description,
		Payload:     fix.Payload,
		AutoApply:   fix.AutoApply,
		AppliedBy:   fix.AppliedBy,
		AppliedAt:   fix.AppliedAt,
	}).Error
}

// ListFixes 查询某次分析上的修复记录
func (r *AnalysisRepo) ListFixes(ctx context.Context, analysisID string) ([]types.FixRecord, error) {
	var recs []FixRecord
	err := r.db.WithContext(ctx).
		Where("analysis_id = ?", analysisID).
		Order("applied_at").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]types.FixRecord, 0, len(recs))
	for _, f := range recs {
		out = append(out, types.FixRecord{
			FixID:       f.FixID,
			AnalysisID:  f.AnalysisID,
			ResultID:    f.ResultID,
			IssueID:     f.IssueID,
			Description: f.Description,
			Payload:     f.Payload,
			AutoApply:   f.AutoApply,
			AppliedBy:   f.AppliedBy,
			AppliedAt:   f.AppliedAt,
		})
	}
	return out, nil
}

// ListTemplates 按行业查询模板，contractType 为空时不过滤
func (r *AnalysisRepo) ListTemplates(ctx context.Context, industry types.Industry, contractType string) ([]types.Template, error) {
	tx := r.db.WithContext(ctx).Where("industry = ?", string(industry))
	if contractType != "" {
		tx = tx.Where("contract_type = ?", strings.ToLower(contractType))
	}
	var recs []TemplateRecord
	if err := tx.Order("name").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]types.Template, 0, len(recs))
	for _, t := range recs {
		out = append(out, types.Template{
			ID:           t.ID,
			Name:         t.Name,
			Industry:     types.Industry(t.Industry),
			ContractType: t.ContractType,
			Category:     types.Category(t.Category),
			Content:      t.Content,
			Variables:    t.Variables,
		})
	}
	return out, nil
}

// SeedTemplates 写入内置模板，已存在的跳过
func (r *AnalysisRepo) SeedTemplates(ctx context.Context, templates []types.Template) error {
	for _, t := range templates {
		rec := TemplateRecord{
			ID:           t.ID,
			Name:         t.Name,
			Industry:     string(t.Industry),
			ContractType: t.ContractType,
			Category:     string(t.Category),
			Content:      t.Content,
			Variables:    t.Variables,
		}
		if err := r.db.WithContext(ctx).Where(TemplateRecord{ID: t.ID}).FirstOrCreate(&rec).Error; err != nil {
			return err
		}
	}
	return nil
}

// DeleteAnalysesBefore 清理早于 cutoff 的分析记录，返回被删除的 analysis id
func (r *AnalysisRepo) DeleteAnalysesBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&AnalysisRecord{}).
			Where("created_at < ?", cutoff).
			Pluck("analysis_id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("analysis_id IN ?", ids).Delete(&IssueRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("analysis_id IN ?", ids).Delete(&FixRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("analysis_id IN ?", ids).Delete(&AnalysisRecord{}).Error
	})
	return ids, err
}

// Ping 检查数据库连接
func (r *AnalysisRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
