package types

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrAnalysisUnavailable = errors.New("analysis unavailable")
	ErrIssueNotFound       = errors.New("issue not found")
	ErrArtifactNotFound    = errors.New("artifact not found")
	ErrCacheUnavailable    = errors.New("cache unavailable")
	ErrJobFailedTerminal   = errors.New("job failed terminal")
	ErrJobNotFound         = errors.New("job not found")

	// 外部分析能力返回的瞬时错误
	ErrRateLimited        = errors.New("rate limited")
	ErrTimeout            = errors.New("timeout")
	ErrServiceUnavailable = errors.New("service unavailable")

	// 流在终止事件之前中断
	ErrStreamInterrupted = errors.New("stream interrupted")

	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrExtraction        = errors.New("text extraction failed")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidInput, "InvalidInput"},
	{ErrUnsupportedFormat, "UnsupportedFormat"},
	{ErrExtraction, "ExtractionFailed"},
	{ErrIssueNotFound, "IssueNotFound"},
	{ErrArtifactNotFound, "ArtifactNotFound"},
	{ErrJobNotFound, "JobNotFound"},
	{ErrJobFailedTerminal, "JobFailedTerminal"},
	{ErrCacheUnavailable, "CacheUnavailable"},
	{ErrAnalysisUnavailable, "AnalysisUnavailable"},
	{ErrRateLimited, "RateLimited"},
	{ErrTimeout, "Timeout"},
	{ErrServiceUnavailable, "ServiceUnavailable"},
	{ErrStreamInterrupted, "StreamInterrupted"},
}

// ErrorKind 返回错误分类名，用于流事件与 HTTP 响应
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Internal"
}

// IsTransient 是否为可重试的瞬时错误
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrServiceUnavailable)
}
