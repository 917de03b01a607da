package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"contract-guard/api/response"
	"contract-guard/pkg/logger"
	"contract-guard/service"
	"contract-guard/types"

	"github.com/gin-gonic/gin"
)

// Analyze 提交分析，mode=background 时入队并返回 202
func (h *ContractHandler) Analyze(c *gin.Context) {
	sub, mode, err := h.bindSubmission(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	ctx := c.Request.Context()

	switch service.Mode(mode) {
	case service.ModeBackground:
		res, err := h.d.Analysis.SubmitBackground(ctx, sub)
		if err != nil {
			response.Error(c, err)
			return
		}
		if res.Artifact != nil {
			response.Success(c, res.Artifact)
			return
		}
		response.Accepted(c, gin.H{
			"job_id":     res.JobID,
			"status":     types.JobQueued,
			"status_url": "/api/v1/jobs/" + res.JobID,
		})
	case "", service.ModeSync:
		a, err := h.d.Analysis.Submit(ctx, sub)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, a)
	default:
		response.Error(c, fmt.Errorf("%w: unknown mode %q", types.ErrInvalidInput, mode))
	}
}

// StreamAnalysis 以 SSE 推送分析事件，流总以 done 或 error 事件结束
func (h *ContractHandler) StreamAnalysis(c *gin.Context) {
	sub, _, err := h.bindSubmission(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	ctx := c.Request.Context()
	sr, err := h.d.Analysis.Stream(ctx, sub)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer sr.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	gone := c.Stream(func(w io.Writer) bool {
		ev, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return false
		}
		if err != nil {
			c.SSEvent(string(types.EventError), types.ErrorEvent(err))
			return false
		}
		c.SSEvent(string(ev.Kind), ev)
		return !ev.Terminal()
	})
	if gone {
		logger.Info(ctx, "stream client disconnected")
	}
}

func (h *ContractHandler) GetAnalysis(c *gin.Context) {
	a, err := h.d.Analysis.GetAnalysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, a)
}

type fixBody struct {
	Description string `json:"fix_description"`
	Payload     string `json:"fix_payload"`
	AutoApply   bool   `json:"auto_apply"`
	AppliedBy   string `json:"applied_by"`
}

// ApplyFix 修复某个问题，返回新的 Artifact
func (h *ContractHandler) ApplyFix(c *gin.Context) {
	var body fixBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, fmt.Errorf("%w: %v", types.ErrInvalidInput, err))
		return
	}
	a, err := h.d.Fixes.ApplyFix(c.Request.Context(), service.FixRequest{
		AnalysisID:  c.Param("id"),
		IssueID:     c.Param("issue_id"),
		Description: body.Description,
		Payload:     body.Payload,
		AutoApply:   body.AutoApply,
		AppliedBy:   body.AppliedBy,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, a)
}

type reanalyzeBody struct {
	Categories []types.Category `json:"analysis_types"`
	Mode       string           `json:"mode"`
}

// Reanalyze 默认后台执行，mode=sync 时同步返回结果
func (h *ContractHandler) Reanalyze(c *gin.Context) {
	var body reanalyzeBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.Error(c, fmt.Errorf("%w: %v", types.ErrInvalidInput, err))
			return
		}
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	if service.Mode(body.Mode) == service.ModeSync {
		a, err := h.d.Analysis.Reanalyze(ctx, id, body.Categories)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, a)
		return
	}

	if _, err := h.d.Analysis.GetAnalysis(ctx, id); err != nil {
		response.Error(c, err)
		return
	}
	cats := types.NormalizeCategories(body.Categories)
	names := make([]string, len(cats))
	for i, cat := range cats {
		names[i] = string(cat)
	}
	key := "reanalyze:" + id
	if len(body.Categories) > 0 {
		key += ":" + strings.Join(names, ",")
	}
	jobID, err := h.d.Jobs.EnqueueUnique(ctx, types.JobReanalyze, key, types.ReanalyzePayload{
		AnalysisID: id,
		Categories: body.Categories,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"job_id": jobID, "status": types.JobQueued, "status_url": "/api/v1/jobs/" + jobID})
}

// Batch 批量分析，始终后台执行
func (h *ContractHandler) Batch(c *gin.Context) {
	var body types.BatchPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, fmt.Errorf("%w: %v", types.ErrInvalidInput, err))
		return
	}
	if err := service.ValidateBatch(body.Items); err != nil {
		response.Error(c, err)
		return
	}
	jobID, err := h.d.Jobs.Enqueue(c.Request.Context(), types.JobBatchAnalyze, body)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{
		"job_id":     jobID,
		"total":      len(body.Items),
		"status":     types.JobQueued,
		"status_url": "/api/v1/jobs/" + jobID,
	})
}

func (h *ContractHandler) GetJob(c *gin.Context) {
	j, err := h.d.Jobs.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, j)
}

func (h *ContractHandler) GetTemplates(c *gin.Context) {
	include := true
	if v := c.Query("include_variables"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.Error(c, fmt.Errorf("%w: include_variables must be a boolean", types.ErrInvalidInput))
			return
		}
		include = b
	}
	lib, err := h.d.Templates.GetTemplates(c.Request.Context(), types.Industry(c.Param("industry")), c.Query("contract_type"), include)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, lib)
}

func (h *ContractHandler) SearchIssues(c *gin.Context) {
	if h.d.Search == nil {
		response.Fail(c, http.StatusServiceUnavailable, "issue search is not configured")
		return
	}
	var req types.IssueSearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, fmt.Errorf("%w: %v", types.ErrInvalidInput, err))
		return
	}
	hits, err := h.d.Search.Search(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"total": len(hits), "hits": hits})
}

func (h *ContractHandler) Health(c *gin.Context) {
	report := h.d.Health.Health(c.Request.Context())
	c.JSON(http.StatusOK, response.Response{
		Code: 0,
		Msg:  report.Status,
		Data: gin.H{
			"status":     report.Status,
			"components": report.Components,
			"checked_at": report.CheckedAt,
			"stats":      h.d.Analysis.Stats(),
		},
	})
}
