package postgres

import (
	"strings"
	"time"

	"contract-guard/types"
)

// AnalysisRecord 对应 analyses 表，保存合同原文以便重新分析
type AnalysisRecord struct {
	AnalysisID      string        `gorm:"column:analysis_id;primaryKey;type:varchar(36)"`
	Fingerprint     string        `gorm:"column:fingerprint;type:varchar(64);index"`
	ParentID        string        `gorm:"column:parent_id;type:varchar(36)"`
	Industry        string        `gorm:"column:industry;type:varchar(50);index"`
	AnalysisTypes   string        `gorm:"column:analysis_types;type:varchar(255)"`
	ContractText    string        `gorm:"column:contract_text;type:text"`
	RiskScore       float64       `gorm:"column:risk_score;type:decimal(5,2)"`
	RiskLevel       string        `gorm:"column:risk_level;type:varchar(20);index"`
	Summary         string        `gorm:"column:summary;type:text"`
	Recommendations []string      `gorm:"column:recommendations;serializer:json"`
	ProcessingMs    int64         `gorm:"column:processing_ms"`
	Issues          []IssueRecord `gorm:"foreignKey:AnalysisID;references:AnalysisID"`
	CreatedAt       time.Time     `gorm:"index"`
}

func (AnalysisRecord) TableName() string {
	return "analyses"
}

// IssueRecord 对应 analysis_issues 表
type IssueRecord struct {
	ID           uint    `gorm:"primaryKey"`
	AnalysisID   string  `gorm:"column:analysis_id;type:varchar(36);index"`
	IssueID      string  `gorm:"column:issue_id;type:varchar(36)"`
	Position     int     `gorm:"column:position"`
	Category     string  `gorm:"column:category;type:varchar(30);index"`
	Severity     string  `gorm:"column:severity;type:varchar(20)"`
	Title        string  `gorm:"column:title;type:varchar(255)"`
	Description  string  `gorm:"column:description;type:text"`
	SuggestedFix string  `gorm:"column:suggested_fix;type:text"`
	RiskScore    float64 `gorm:"column:risk_score"`
	Confidence   float64 `gorm:"column:confidence"`
	Status       string  `gorm:"column:status;type:varchar(20)"`
	AppliedFix   string  `gorm:"column:applied_fix;type:text"`
}

func (IssueRecord) TableName() string {
	return "analysis_issues"
}

// FixRecord 对应 fixes 表
type FixRecord struct {
	FixID       string    `gorm:"column:fix_id;primaryKey;type:varchar(36)"`
	AnalysisID  string    `gorm:"column:analysis_id;type:varchar(36);index"`
	ResultID    string    `gorm:"column:result_id;type:varchar(36)"`
	IssueID     string    `gorm:"column:issue_id;type:varchar(36)"`
	Description string    `gorm:"column:fix_description;type:text"`
	Payload     string    `gorm:"column:fix_payload;type:text"`
	AutoApply   bool      `gorm:"column:auto_apply"`
	AppliedBy   string    `gorm:"column:applied_by;type:varchar(100)"`
	AppliedAt   time.Time `gorm:"column:applied_at"`
}

func (FixRecord) TableName() string {
	return "fixes"
}

// TemplateRecord 对应 contract_templates 表
type TemplateRecord struct {
	ID           string           `gorm:"column:id;primaryKey;type:varchar(64)"`
	Name         string           `gorm:"column:name;type:varchar(255)"`
	Industry     string           `gorm:"column:industry;type:varchar(50);index"`
	ContractType string           `gorm:"column:contract_type;type:varchar(50);index"`
	Category     string           `gorm:"column:category;type:varchar(30)"`
	Content      string           `gorm:"column:content;type:text"`
	Variables    []types.Variable `gorm:"column:variables;serializer:json"`
}

func (TemplateRecord) TableName() string {
	return "contract_templates"
}

// JobRecord 对应 background_jobs 表
type JobRecord struct {
	ID          string     `gorm:"column:id;primaryKey;type:varchar(36)"`
	Kind        string     `gorm:"column:kind;type:varchar(30);index"`
	UniqueKey   string     `gorm:"column:unique_key;type:varchar(128);index"`
	Payload     []byte     `gorm:"column:payload"`
	State       string     `gorm:"column:state;type:varchar(20);index"`
	Attempts    int        `gorm:"column:attempts"`
	MaxAttempts int        `gorm:"column:max_attempts"`
	ScheduledAt time.Time  `gorm:"column:scheduled_at"`
	StartedAt   *time.Time `gorm:"column:started_at"`
	FinishedAt  *time.Time `gorm:"column:finished_at"`
	LastError   string     `gorm:"column:last_error;type:text"`
	Result      []byte     `gorm:"column:result"`
	CreatedAt   time.Time
}

func (JobRecord) TableName() string {
	return "background_jobs"
}

func toAnalysisRecord(a *types.AnalysisArtifact, text string) *AnalysisRecord {
	cats := make([]string, len(a.Categories))
	for i, c := range a.Categories {
		cats[i] = string(c)
	}
	rec := &AnalysisRecord{
		AnalysisID:      a.AnalysisID,
		Fingerprint:     string(a.Fingerprint),
		ParentID:        a.ParentID,
		Industry:        string(a.Industry),
		AnalysisTypes:   strings.Join(cats, ","),
		ContractText:    text,
		RiskScore:       a.RiskScore,
		RiskLevel:       string(a.RiskLevel),
		Summary:         a.Summary,
		Recommendations: a.Recommendations,
		ProcessingMs:    a.ProcessingTime.Milliseconds(),
		CreatedAt:       a.CreatedAt,
	}
	for i, is := range a.Issues {
		rec.Issues = append(rec.Issues, IssueRecord{
			AnalysisID:   a.AnalysisID,
			IssueID:      is.ID,
			Position:     i,
			Category:     string(is.Category),
			Severity:     string(is.Severity),
			Title:        is.Title,
			Description:  is.Description,
			SuggestedFix: is.SuggestedFix,
			RiskScore:    is.RiskScore,
			Confidence:   is.Confidence,
			Status:       string(is.Status),
			AppliedFix:   is.AppliedFix,
		})
	}
	return rec
}

func (r *AnalysisRecord) categories() []types.Category {
	var cats []types.Category
	for _, c := range strings.Split(r.AnalysisTypes, ",") {
		if c != "" {
			cats = append(cats, types.Category(c))
		}
	}
	return cats
}

func (r *AnalysisRecord) toArtifact() *types.AnalysisArtifact {
	a := &types.AnalysisArtifact{
		AnalysisID:      r.AnalysisID,
		Fingerprint:     types.Fingerprint(r.Fingerprint),
		ParentID:        r.ParentID,
		Industry:        types.Industry(r.Industry),
		Categories:      r.categories(),
		RiskScore:       r.RiskScore,
		RiskLevel:       types.RiskLevel(r.RiskLevel),
		Summary:         r.Summary,
		Recommendations: r.Recommendations,
		ProcessingTime:  time.Duration(r.ProcessingMs) * time.Millisecond,
		CreatedAt:       r.CreatedAt,
		Issues:          make([]types.Issue, 0, len(r.Issues)),
	}
	for _, is := range r.Issues {
		a.Issues = append(a.Issues, types.Issue{
			ID:           is.IssueID,
			Category:     types.Category(is.Category),
			Severity:     types.Severity(is.Severity),
			Title:        is.Title,
			Description:  is.Description,
			SuggestedFix: is.SuggestedFix,
			RiskScore:    is.RiskScore,
			Confidence:   is.Confidence,
			Status:       types.IssueStatus(is.Status),
			AppliedFix:   is.AppliedFix,
		})
	}
	return a
}

func toJobRecord(j *types.BackgroundJob) *JobRecord {
	return &JobRecord{
		ID:          j.ID,
		Kind:        string(j.Kind),
		UniqueKey:   j.UniqueKey,
		Payload:     j.Payload,
		State:       string(j.State),
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		ScheduledAt: j.ScheduledAt,
		StartedAt:   j.StartedAt,
		FinishedAt:  j.FinishedAt,
		LastError:   j.LastError,
		Result:      j.Result,
		CreatedAt:   j.CreatedAt,
	}
}

func (r *JobRecord) toJob() *types.BackgroundJob {
	return &types.BackgroundJob{
		ID:          r.ID,
		Kind:        types.JobKind(r.Kind),
		UniqueKey:   r.UniqueKey,
		Payload:     r.Payload,
		State:       types.JobState(r.State),
		Attempts:    r.Attempts,
		MaxAttempts: r.MaxAttempts,
		ScheduledAt: r.ScheduledAt,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		LastError:   r.LastError,
		Result:      r.Result,
		CreatedAt:   r.CreatedAt,
	}
}
