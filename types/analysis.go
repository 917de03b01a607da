package types

import "time"

// Severity 问题严重程度
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RiskLevel 风险等级
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// IssueStatus 问题处理状态
type IssueStatus string

const (
	IssueOpen      IssueStatus = "open"
	IssueFixed     IssueStatus = "fixed"
	IssueDismissed IssueStatus = "dismissed"
)

// Issue 分析发现的单个风险点
type Issue struct {
	ID           string      `json:"id"`
	Category     Category    `json:"category"`
	Severity     Severity    `json:"severity"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	SuggestedFix string      `json:"suggested_fix,omitempty"`
	RiskScore    float64     `json:"risk_score"`
	Confidence   float64     `json:"confidence,omitempty"`
	Status       IssueStatus `json:"status"`
	AppliedFix   string      `json:"applied_fix,omitempty"`
}

// IsOpen 未修复、未忽略的问题参与风险评分
func (i Issue) IsOpen() bool {
	return i.Status == "" || i.Status == IssueOpen
}

// IssueSet 一次外部分析调用的原始结果
type IssueSet struct {
	Issues          []Issue  `json:"issues"`
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
}

// AnalysisArtifact 分析结果。创建后不可修改，修复会生成新的 Artifact
type AnalysisArtifact struct {
	AnalysisID      string        `json:"analysis_id"`
	Fingerprint     Fingerprint   `json:"fingerprint"`
	ParentID        string        `json:"parent_id,omitempty"`
	Industry        Industry      `json:"industry"`
	Categories      []Category    `json:"analysis_types"`
	RiskScore       float64       `json:"risk_score"`
	RiskLevel       RiskLevel     `json:"risk_level"`
	Issues          []Issue       `json:"issues"`
	Summary         string        `json:"summary"`
	Recommendations []string      `json:"recommendations"`
	ProcessingTime  time.Duration `json:"processing_time"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Clone 深拷贝，供修复流程在副本上修改
func (a *AnalysisArtifact) Clone() *AnalysisArtifact {
	c := *a
	c.Categories = append([]Category(nil), a.Categories...)
	c.Issues = append([]Issue(nil), a.Issues...)
	c.Recommendations = append([]string(nil), a.Recommendations...)
	return &c
}

// FindIssue 按 id 查找问题下标
func (a *AnalysisArtifact) FindIssue(issueID string) int {
	for i := range a.Issues {
		if a.Issues[i].ID == issueID {
			return i
		}
	}
	return -1
}

// FixRecord 一次修复操作的记录
type FixRecord struct {
	FixID       string    `json:"fix_id"`
	AnalysisID  string    `json:"analysis_id"`
	ResultID    string    `json:"result_id"`
	IssueID     string    `json:"issue_id"`
	Description string    `json:"fix_description"`
	Payload     string    `json:"fix_payload,omitempty"`
	AutoApply   bool      `json:"auto_apply"`
	AppliedBy   string    `json:"applied_by,omitempty"`
	AppliedAt   time.Time `json:"applied_at"`
}
