package middleware

import (
	"log/slog"
	"strings"
	"time"

	"contract-guard/api/response"
	"contract-guard/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequestLogger 访问日志按路由模板归类，路径参数与错误分类作为独立字段
// 健康检查成功时只记 debug
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"bytes", c.Writer.Size(),
			"client_ip", c.ClientIP(),
		}
		for _, p := range c.Params {
			attrs = append(attrs, p.Key, p.Value)
		}
		if kind := c.GetString(response.ErrorKindKey); kind != "" {
			attrs = append(attrs, "error_kind", kind)
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		case strings.HasSuffix(route, "/health"):
			level = slog.LevelDebug
		}
		ctx := c.Request.Context()
		logger.WithContext(ctx).Log(ctx, level, "request completed", attrs...)
	}
}
