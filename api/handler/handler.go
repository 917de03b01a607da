package handler

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"contract-guard/job"
	"contract-guard/logic/extract"
	"contract-guard/service"
	"contract-guard/types"
	"contract-guard/vars"

	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"
)

// Analysis 分析入口，由 service.Orchestrator 实现
type Analysis interface {
	Submit(ctx context.Context, sub types.ContractSubmission) (*types.AnalysisArtifact, error)
	Stream(ctx context.Context, sub types.ContractSubmission) (*schema.StreamReader[*types.AnalysisEvent], error)
	SubmitBackground(ctx context.Context, sub types.ContractSubmission) (*service.Result, error)
	GetAnalysis(ctx context.Context, analysisID string) (*types.AnalysisArtifact, error)
	Reanalyze(ctx context.Context, analysisID string, categories []types.Category) (*types.AnalysisArtifact, error)
	Stats() service.Stats
}

type Fixer interface {
	ApplyFix(ctx context.Context, req service.FixRequest) (*types.AnalysisArtifact, error)
}

type Jobs interface {
	Enqueue(ctx context.Context, kind types.JobKind, payload any) (string, error)
	EnqueueUnique(ctx context.Context, kind types.JobKind, key string, payload any) (string, error)
	Status(ctx context.Context, id string) (*types.BackgroundJob, error)
}

type Templates interface {
	GetTemplates(ctx context.Context, industry types.Industry, contractType string, includeVariables bool) (*types.TemplateLibrary, error)
}

type Searcher interface {
	Search(ctx context.Context, req types.IssueSearchRequest) ([]types.IssueHit, error)
}

type HealthChecker interface {
	Health(ctx context.Context) job.HealthReport
}

// UploadExtractor 从上传文件中抽取正文
type UploadExtractor interface {
	ExtractReader(ctx context.Context, filename string, r io.Reader) (string, error)
}

// Deps Search 与 Uploads 可为 nil
type Deps struct {
	Analysis  Analysis
	Fixes     Fixer
	Jobs      Jobs
	Templates Templates
	Search    Searcher
	Health    HealthChecker
	Uploads   UploadExtractor
}

type ContractHandler struct {
	d Deps
}

func NewContractHandler(d Deps) *ContractHandler {
	return &ContractHandler{d: d}
}

type analyzeRequest struct {
	Text       string           `json:"contract_text" form:"contract_text"`
	Industry   types.Industry   `json:"industry" form:"industry"`
	Categories []types.Category `json:"analysis_types" form:"analysis_types"`
	FileRef    string           `json:"file_ref" form:"file_ref"`
	Mode       string           `json:"mode" form:"mode"`
}

// bindSubmission 支持 JSON 与 multipart 上传两种请求体
func (h *ContractHandler) bindSubmission(c *gin.Context) (types.ContractSubmission, string, error) {
	var req analyzeRequest
	var sub types.ContractSubmission

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, vars.MaxUploadSize+(1<<20))
		if err := c.ShouldBind(&req); err != nil {
			return sub, "", fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
		}
		if fh, err := c.FormFile("file"); err == nil {
			text, err := h.extractUpload(c, fh)
			if err != nil {
				return sub, "", err
			}
			req.Text = text
			sub.FileName = fh.Filename
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		return sub, "", fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}

	sub.Text = req.Text
	sub.Industry = req.Industry
	sub.Categories = req.Categories
	sub.FileRef = req.FileRef
	if sub.Text == "" && sub.FileRef == "" {
		return sub, "", fmt.Errorf("%w: contract_text, file or file_ref is required", types.ErrInvalidInput)
	}

	mode := req.Mode
	if q := c.Query("mode"); q != "" {
		mode = q
	}
	return sub, mode, nil
}

func (h *ContractHandler) extractUpload(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	name := fh.Filename
	if fh.Size > vars.MaxUploadSize {
		return "", fmt.Errorf("%w: file exceeds %d bytes", types.ErrInvalidInput, vars.MaxUploadSize)
	}
	if !extract.Supported(name) {
		return "", fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, name)
	}
	if h.d.Uploads == nil {
		return "", fmt.Errorf("%w: file uploads are not supported", types.ErrInvalidInput)
	}
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("%w: open upload: %v", types.ErrInvalidInput, err)
	}
	defer f.Close()
	return h.d.Uploads.ExtractReader(c.Request.Context(), name, f)
}
