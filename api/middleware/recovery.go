package middleware

import (
	"errors"
	"io"
	"runtime/debug"

	"contract-guard/api/response"
	"contract-guard/pkg/logger"

	"github.com/gin-gonic/gin"
)

var errInternal = errors.New("internal server error")

// Recovery 基于 gin 的 CustomRecovery：panic 记录堆栈后返回 Internal 信封
// SSE 等已经写出响应头的请求只中断，不再追加 JSON
func Recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logger.Error(c.Request.Context(), "handler panicked",
			"route", c.FullPath(),
			"panic", recovered,
			"stack", string(debug.Stack()),
		)
		if c.Writer.Written() {
			c.Abort()
			return
		}
		response.Error(c, errInternal)
	})
}
