package types

import "time"

// EventKind 流式分析事件类型
type EventKind string

const (
	EventProgress   EventKind = "progress"
	EventIssueFound EventKind = "issue-found"
	EventSummary    EventKind = "summary"
	EventDone       EventKind = "done"
	EventError      EventKind = "error"
)

// AnalysisEvent 流中的一条事件，done 与 error 为终止事件
type AnalysisEvent struct {
	Kind            EventKind         `json:"type"`
	Seq             int               `json:"seq"`
	Message         string            `json:"message,omitempty"`
	Received        int               `json:"received,omitempty"`
	Issue           *Issue            `json:"issue,omitempty"`
	Summary         string            `json:"summary,omitempty"`
	Recommendations []string          `json:"recommendations,omitempty"`
	Artifact        *AnalysisArtifact `json:"artifact,omitempty"`
	Error           string            `json:"error,omitempty"`
	ErrorKind       string            `json:"error_kind,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
}

// Terminal 是否为终止事件
func (e *AnalysisEvent) Terminal() bool {
	return e.Kind == EventDone || e.Kind == EventError
}

// DoneEvent 构造 done 事件
func DoneEvent(a *AnalysisArtifact) *AnalysisEvent {
	return &AnalysisEvent{Kind: EventDone, Artifact: a, Timestamp: time.Now()}
}

// ErrorEvent 构造 error 事件
func ErrorEvent(err error) *AnalysisEvent {
	return &AnalysisEvent{Kind: EventError, Error: err.Error(), ErrorKind: ErrorKind(err), Timestamp: time.Now()}
}
