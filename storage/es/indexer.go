package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"contract-guard/types"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
)

// IssueIndex 以问题为粒度的 ES 索引，用于跨分析检索风险点
type IssueIndex struct {
	client *elasticsearch.Client
	index  string
}

// issueDoc 索引中的文档
type issueDoc struct {
	AnalysisID   string    `json:"analysis_id"`
	Fingerprint  string    `json:"fingerprint"`
	IssueID      string    `json:"issue_id"`
	Industry     string    `json:"industry"`
	Category     string    `json:"category"`
	Severity     string    `json:"severity"`
	Status       string    `json:"status"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	SuggestedFix string    `json:"suggested_fix"`
	RiskScore    float64   `json:"risk_score"`
	CreatedAt    time.Time `json:"created_at"`
}

const mapping = `
{
  "settings": {
	"number_of_shards": 1,
	"number_of_replicas": 0
  },
  "mappings": {
	"properties": {
	  "analysis_id":   { "type": "keyword" },
	  "fingerprint":   { "type": "keyword" },
	  "issue_id":      { "type": "keyword" },
	  "industry":      { "type": "keyword" },
	  "category":      { "type": "keyword" },
	  "severity":      { "type": "keyword" },
	  "status":        { "type": "keyword" },
	  "title":         { "type": "text" },
	  "description":   { "type": "text" },
	  "suggested_fix": { "type": "text" },
	  "risk_score":    { "type": "double" },
	  "created_at":    { "type": "date" }
	}
  }
}`

// NewIssueIndex 初始化 ES 客户端并确保索引存在
func NewIssueIndex(addresses []string, indexName string) (*IssueIndex, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addresses})
	if err != nil {
		return nil, fmt.Errorf("error creating the client: %w", err)
	}
	idx := &IssueIndex{client: client, index: indexName}
	if err := idx.initMapping(context.Background()); err != nil {
		return nil, err
	}
	return idx, nil
}

func (e *IssueIndex) initMapping(ctx context.Context) error {
	res, err := e.client.Indices.Exists([]string{e.index}, e.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return err
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	slog.Info("creating elasticsearch index", "index", e.index)
	res, err = e.client.Indices.Create(
		e.index,
		e.client.Indices.Create.WithContext(ctx),
		e.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("create index error: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index response error: %s", res.String())
	}
	return nil
}

// IndexArtifact 批量写入 Artifact 的全部问题
func (e *IssueIndex) IndexArtifact(ctx context.Context, a *types.AnalysisArtifact) error {
	if len(a.Issues) == 0 {
		return nil
	}
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         e.index,
		Client:        e.client,
		FlushInterval: time.Second,
	})
	if err != nil {
		return err
	}

	for _, issue := range a.Issues {
		data, err := json.Marshal(issueDoc{
			AnalysisID:   a.AnalysisID,
			Fingerprint:  string(a.Fingerprint),
			IssueID:      issue.ID,
			Industry:     string(a.Industry),
			Category:     string(issue.Category),
			Severity:     string(issue.Severity),
			Status:       string(issue.Status),
			Title:        issue.Title,
			Description:  issue.Description,
			SuggestedFix: issue.SuggestedFix,
			RiskScore:    issue.RiskScore,
			CreatedAt:    a.CreatedAt,
		})
		if err != nil {
			return err
		}
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: a.AnalysisID + "_" + issue.ID,
			Body:       bytes.NewReader(data),
		})
		if err != nil {
			return err
		}
	}

	if err := bi.Close(ctx); err != nil {
		return err
	}
	if stats := bi.Stats(); stats.NumFailed > 0 {
		return fmt.Errorf("ES bulk index: %d of %d documents failed", stats.NumFailed, stats.NumAdded)
	}
	return nil
}

// DeleteByAnalysisIDs 删除若干分析的全部问题文档
func (e *IssueIndex) DeleteByAnalysisIDs(ctx context.Context, analysisIDs []string) error {
	if len(analysisIDs) == 0 {
		return nil
	}
	query := map[string]any{
		"query": map[string]any{
			"terms": map[string]any{
				"analysis_id": analysisIDs,
			},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return fmt.Errorf("error encoding query: %w", err)
	}

	res, err := e.client.DeleteByQuery(
		[]string{e.index},
		&buf,
		e.client.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("ES delete request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ES delete response error: %s", res.String())
	}
	return nil
}

// Ping 检查集群是否可达
func (e *IssueIndex) Ping(ctx context.Context) error {
	res, err := e.client.Ping(e.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ES ping error: %s", res.String())
	}
	return nil
}
