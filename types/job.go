package types

import (
	"encoding/json"
	"time"
)

// JobKind 后台任务类型
type JobKind string

const (
	JobAnalyze         JobKind = "analyze"
	JobReanalyze       JobKind = "reanalyze"
	JobBatchAnalyze    JobKind = "batch-analyze"
	JobCleanupCache    JobKind = "cleanup-cache"
	JobCleanupAnalyses JobKind = "cleanup-analyses"
	JobHealthCheck     JobKind = "health-check"
	JobMetrics         JobKind = "metrics"
	JobAlertCheck      JobKind = "alert-check"
)

// JobState 任务状态
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
	JobRetrying  JobState = "retrying"
)

// Terminal 是否为终态
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// BackgroundJob 后台任务，状态机为 queued → running → succeeded | retrying → running ... | failed
type BackgroundJob struct {
	ID          string          `json:"job_id"`
	Kind        JobKind         `json:"kind"`
	UniqueKey   string          `json:"unique_key,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	State       JobState        `json:"state"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Clone 拷贝，避免调用方修改存储中的任务
func (j *BackgroundJob) Clone() *BackgroundJob {
	c := *j
	c.Payload = append(json.RawMessage(nil), j.Payload...)
	c.Result = append(json.RawMessage(nil), j.Result...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// AnalyzePayload analyze 任务参数
type AnalyzePayload struct {
	Submission ContractSubmission `json:"submission"`
}

// ReanalyzePayload reanalyze 任务参数
type ReanalyzePayload struct {
	AnalysisID string     `json:"analysis_id"`
	Categories []Category `json:"analysis_types,omitempty"`
}

// BatchItem 批量分析中的单个合同
type BatchItem struct {
	ID         string     `json:"id"`
	Text       string     `json:"contract_text"`
	Industry   Industry   `json:"industry"`
	Categories []Category `json:"analysis_types"`
}

// BatchPayload batch-analyze 任务参数
type BatchPayload struct {
	Items []BatchItem `json:"contracts"`
}

// BatchItemResult 单个合同的处理结果
type BatchItemResult struct {
	ContractID string    `json:"contract_id"`
	AnalysisID string    `json:"analysis_id,omitempty"`
	RiskLevel  RiskLevel `json:"risk_level,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// BatchResult batch-analyze 任务结果
type BatchResult struct {
	Total     int               `json:"total"`
	Completed int               `json:"completed"`
	Failed    int               `json:"failed"`
	Results   []BatchItemResult `json:"results"`
}
