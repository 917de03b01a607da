package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"contract-guard/types"
)

// modelLine 模型输出的单行 JSON
type modelLine struct {
	Type            string          `json:"type"`
	Category        string          `json:"category"`
	Severity        string          `json:"severity"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	SuggestedFix    string          `json:"suggested_fix"`
	RiskScore       json.Number     `json:"risk_score"`
	Confidence      json.Number     `json:"confidence"`
	Summary         string          `json:"summary"`
	Recommendations []string        `json:"recommendations"`
	Issues          json.RawMessage `json:"issues"`
}

// legacyResponse 整体 JSON 格式 {"issues": [...], "summary": "..."}
type legacyResponse struct {
	Issues          []modelLine `json:"issues"`
	Summary         string      `json:"summary"`
	Recommendations []string    `json:"recommendations"`
}

// lineResult 单行解析结果
type lineResult struct {
	issue   *types.Issue
	summary *modelLine
}

// parseLine 解析一行，非 issue/summary 行返回 ok=false
func parseLine(line string) (lineResult, bool) {
	line = strings.TrimSpace(line)
	line = strings.TrimSuffix(line, ",")
	if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
		return lineResult{}, false
	}
	var ml modelLine
	if err := json.Unmarshal([]byte(line), &ml); err != nil {
		return lineResult{}, false
	}
	switch strings.ToLower(ml.Type) {
	case "issue":
		issue := toIssue(ml)
		return lineResult{issue: &issue}, true
	case "summary":
		return lineResult{summary: &ml}, true
	}
	return lineResult{}, false
}

// ParseResponse 解析一次完整的模型输出
func ParseResponse(raw string) (*types.IssueSet, error) {
	set := &types.IssueSet{Issues: []types.Issue{}}
	recognized := false
	for _, line := range strings.Split(stripFences(raw), "\n") {
		res, ok := parseLine(line)
		if !ok {
			continue
		}
		recognized = true
		if res.issue != nil {
			set.Issues = append(set.Issues, *res.issue)
		}
		if res.summary != nil {
			set.Summary = res.summary.Summary
			set.Recommendations = res.summary.Recommendations
		}
	}
	if recognized {
		return set, nil
	}

	// 兜底：截取第一个 { 到最后一个 } 之间的整体 JSON
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in model response", types.ErrAnalysisUnavailable)
	}
	var legacy legacyResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &legacy); err != nil {
		return nil, fmt.Errorf("%w: decode model response: %v", types.ErrAnalysisUnavailable, err)
	}
	for _, ml := range legacy.Issues {
		set.Issues = append(set.Issues, toIssue(ml))
	}
	set.Summary = legacy.Summary
	set.Recommendations = legacy.Recommendations
	return set, nil
}

func toIssue(ml modelLine) types.Issue {
	return types.Issue{
		Category:     types.Category(strings.ToLower(strings.TrimSpace(ml.Category))),
		Severity:     normalizeSeverity(ml.Severity),
		Title:        strings.TrimSpace(ml.Title),
		Description:  strings.TrimSpace(ml.Description),
		SuggestedFix: strings.TrimSpace(ml.SuggestedFix),
		RiskScore:    clamp(number(ml.RiskScore)),
		Confidence:   clamp(number(ml.Confidence)),
		Status:       types.IssueOpen,
	}
}

func normalizeSeverity(s string) types.Severity {
	switch v := types.Severity(strings.ToLower(strings.TrimSpace(s))); v {
	case types.SeverityLow, types.SeverityMedium, types.SeverityHigh, types.SeverityCritical:
		return v
	}
	return types.SeverityMedium
}

func number(n json.Number) float64 {
	f, err := n.Float64()
	if err != nil {
		return 0
	}
	return f
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 100:
		return 100
	}
	return f
}

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	return strings.TrimSuffix(raw, "```")
}
