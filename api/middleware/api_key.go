package middleware

import (
	"crypto/subtle"
	"net/http"

	"contract-guard/api/response"

	"github.com/gin-gonic/gin"
)

const APIKeyHeader = "X-API-Key"

// APIKey 校验请求头中的 API Key，key 为空时不校验
func APIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		got := c.GetHeader(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			response.Fail(c, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		c.Next()
	}
}
