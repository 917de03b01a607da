package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"contract-guard/types"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const defaultSearchSize = 20

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string   `json:"_id"`
			Score  float64  `json:"_score"`
			Source issueDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// buildSearchQuery 关键词走 multi_match，类别/严重程度/行业走 term 过滤
func buildSearchQuery(req types.IssueSearchRequest) map[string]any {
	size := req.Limit
	if size <= 0 || size > 100 {
		size = defaultSearchSize
	}

	var must []any
	if req.Query != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":  req.Query,
				"fields": []string{"title^3", "description", "suggested_fix"},
			},
		})
	} else {
		must = append(must, map[string]any{"match_all": map[string]any{}})
	}

	var filter []any
	if req.Category != "" {
		filter = append(filter, map[string]any{"term": map[string]any{"category": req.Category}})
	}
	if req.Severity != "" {
		filter = append(filter, map[string]any{"term": map[string]any{"severity": req.Severity}})
	}
	if req.Industry != "" {
		filter = append(filter, map[string]any{"term": map[string]any{"industry": req.Industry}})
	}

	boolQuery := map[string]any{"must": must}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	return map[string]any{
		"size":  size,
		"query": map[string]any{"bool": boolQuery},
		"sort": []any{
			map[string]any{"_score": "desc"},
			map[string]any{"risk_score": "desc"},
		},
	}
}

// Search 检索问题
func (e *IssueIndex) Search(ctx context.Context, req types.IssueSearchRequest) ([]types.IssueHit, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildSearchQuery(req)); err != nil {
		return nil, fmt.Errorf("error encoding query: %w", err)
	}

	res, err := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  &buf,
	}.Do(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("error getting response: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("error response: %s", res.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("error parsing response body: %w", err)
	}

	hits := make([]types.IssueHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		src := h.Source
		hits = append(hits, types.IssueHit{
			AnalysisID: src.AnalysisID,
			Industry:   src.Industry,
			Score:      h.Score,
			Issue: types.Issue{
				ID:           src.IssueID,
				Category:     types.Category(src.Category),
				Severity:     types.Severity(src.Severity),
				Title:        src.Title,
				Description:  src.Description,
				SuggestedFix: src.SuggestedFix,
				RiskScore:    src.RiskScore,
				Status:       types.IssueStatus(src.Status),
			},
		})
	}
	return hits, nil
}
