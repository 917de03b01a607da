package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"contract-guard/api/response"
	"contract-guard/pkg/logger"
	"contract-guard/types"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/test", func(c *gin.Context) {
		id, _ := c.Request.Context().Value(logger.RequestIDKey).(string)
		c.JSON(http.StatusOK, gin.H{"request_id": GetRequestID(c), "ctx_id": id})
	})
	r.GET("/panic", func(*gin.Context) { panic("boom") })
	return r
}

func TestRequestIDGenerated(t *testing.T) {
	r := newRouter(RequestID())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	id := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, id)
	assert.Contains(t, w.Body.String(), `"ctx_id":"`+id+`"`)
}

func TestRequestIDPropagated(t *testing.T) {
	r := newRouter(RequestID())
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, "existing-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "existing-123", w.Header().Get(RequestIDHeader))
}

func TestRequestIDRejectsUnsafeUpstreamID(t *testing.T) {
	r := newRouter(RequestID())
	for _, id := range []string{"bad id\r\nX-Injected: 1", "<script>", strings.Repeat("a", 65)} {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header[RequestIDHeader] = []string{id}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		got := w.Header().Get(RequestIDHeader)
		assert.NotEqual(t, id, got)
		assert.Len(t, got, 36)
	}
}

func TestRecoveryReturns500(t *testing.T) {
	r := newRouter(RequestID(), Recovery())
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, -1, body.Code)
	assert.Equal(t, "Internal", body.ErrorKind)
	assert.Equal(t, "req-1", body.RequestID)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestRecoveryAfterStreamStarted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery())
	r.GET("/stream", func(c *gin.Context) {
		c.SSEvent("progress", "50")
		c.Writer.Flush()
		panic("boom")
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "event:progress")
	assert.NotContains(t, w.Body.String(), `"code"`)
}

func TestRequestLoggerRecordsRouteAndErrorKind(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), RequestLogger())
	r.GET("/analysis/:id", func(c *gin.Context) {
		response.Error(c, types.ErrArtifactNotFound)
	})
	req := httptest.NewRequest(http.MethodGet, "/analysis/abc", nil)
	req.Header.Set(RequestIDHeader, "req-2")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "/analysis/:id", entry["route"])
	assert.Equal(t, "abc", entry["id"])
	assert.Equal(t, "ArtifactNotFound", entry["error_kind"])
	assert.Equal(t, "req-2", entry["request_id"])
}

func TestRateLimitPerClient(t *testing.T) {
	r := newRouter(RateLimit(3))

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = ip + ":12345"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do("192.168.1.1"))
	}
	assert.Equal(t, http.StatusTooManyRequests, do("192.168.1.1"))
	assert.Equal(t, http.StatusOK, do("192.168.1.2"))
}

func TestRateLimitPrunesIdleClients(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newClientLimiter(2, func() time.Time { return now })

	for i := 0; i < 100; i++ {
		assert.True(t, l.allow("10.0.0."+strconv.Itoa(i)))
	}
	assert.Equal(t, 100, l.size())

	now = now.Add(30 * time.Second)
	assert.True(t, l.allow("10.0.1.1"))
	assert.Equal(t, 101, l.size())

	now = now.Add(time.Minute)
	assert.True(t, l.allow("10.0.1.2"))
	assert.Equal(t, 1, l.size())

	// 清理后的新桶仍按配额限流
	assert.True(t, l.allow("10.0.1.2"))
	assert.False(t, l.allow("10.0.1.2"))
}

func TestRateLimitDisabled(t *testing.T) {
	r := newRouter(RateLimit(0))
	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestAPIKey(t *testing.T) {
	r := newRouter(APIKey("secret"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(APIKeyHeader, "secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	open := newRouter(APIKey(""))
	w = httptest.NewRecorder()
	open.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
