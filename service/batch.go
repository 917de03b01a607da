package service

import (
	"context"
	"fmt"
	"strconv"

	"contract-guard/pkg/logger"
	"contract-guard/types"

	"golang.org/x/sync/errgroup"
)

// MaxBatchItems 单个批量任务的合同数上限
const MaxBatchItems = 10

// ValidateBatch 入队前校验批量请求
func ValidateBatch(items []types.BatchItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: contracts must not be empty", types.ErrInvalidInput)
	}
	if len(items) > MaxBatchItems {
		return fmt.Errorf("%w: at most %d contracts per batch", types.ErrInvalidInput, MaxBatchItems)
	}
	return nil
}

// AnalyzeBatch 每个合同独立分析，单个失败不影响其他合同
func (o *Orchestrator) AnalyzeBatch(ctx context.Context, items []types.BatchItem, concurrency int) *types.BatchResult {
	results := make([]types.BatchItemResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, item := range items {
		g.Go(func() error {
			id := item.ID
			if id == "" {
				id = strconv.Itoa(i + 1)
			}
			res := types.BatchItemResult{ContractID: id}
			a, err := o.Submit(gctx, types.ContractSubmission{
				Text:       item.Text,
				Industry:   item.Industry,
				Categories: item.Categories,
			})
			if err != nil {
				res.Status = "failed"
				res.Error = err.Error()
				logger.Warn(ctx, "batch item failed", "contract_id", id, "error", err)
			} else {
				res.Status = "completed"
				res.AnalysisID = a.AnalysisID
				res.RiskLevel = a.RiskLevel
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := &types.BatchResult{Total: len(items), Results: results}
	for _, r := range results {
		if r.Status == "completed" {
			out.Completed++
		} else {
			out.Failed++
		}
	}
	return out
}
