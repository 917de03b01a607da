package types

// IssueSearchRequest 问题检索条件
type IssueSearchRequest struct {
	Query    string   `form:"q"`
	Category Category `form:"category"`
	Severity Severity `form:"severity"`
	Industry Industry `form:"industry"`
	Limit    int      `form:"limit"`
}

// IssueHit 检索命中的问题
type IssueHit struct {
	AnalysisID string  `json:"analysis_id"`
	Issue      Issue   `json:"issue"`
	Industry   string  `json:"industry"`
	Score      float64 `json:"score"`
}
