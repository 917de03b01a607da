package response

import (
	"errors"
	"net/http"

	"contract-guard/pkg/logger"
	"contract-guard/types"

	"github.com/gin-gonic/gin"
)

// ErrorKindKey gin context 中记录错误分类的键，供访问日志使用
const ErrorKindKey = "error_kind"

type Response struct {
	Code      int         `json:"code"` // 0:成功, -1:失败
	Msg       string      `json:"msg"`
	Data      interface{} `json:"data,omitempty"`
	ErrorKind string      `json:"error_kind,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: 0,
		Msg:  "success",
		Data: data,
	})
}

// Accepted 后台任务已受理
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Response{
		Code: 0,
		Msg:  "accepted",
		Data: data,
	})
}

func Fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Response{
		Code:      -1,
		Msg:       msg,
		RequestID: logger.RequestIDFrom(c.Request.Context()),
	})
}

// Error 按错误分类映射 HTTP 状态码
func Error(c *gin.Context, err error) {
	kind := types.ErrorKind(err)
	c.Set(ErrorKindKey, kind)
	c.AbortWithStatusJSON(StatusOf(err), Response{
		Code:      -1,
		Msg:       err.Error(),
		ErrorKind: kind,
		RequestID: logger.RequestIDFrom(c.Request.Context()),
	})
}

func StatusOf(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidInput),
		errors.Is(err, types.ErrUnsupportedFormat),
		errors.Is(err, types.ErrExtraction):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrArtifactNotFound),
		errors.Is(err, types.ErrIssueNotFound),
		errors.Is(err, types.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrAnalysisUnavailable),
		errors.Is(err, types.ErrCacheUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
