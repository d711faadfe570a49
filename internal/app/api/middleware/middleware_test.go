package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fatflowers/deliveryhub/pkg/logctx"
)

func TestMiddlewareChain(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core).Sugar()

	var actor, traceID string
	r := gin.New()
	r.Use(TraceMiddleware(), ActorMiddleware(), RequestLoggerMiddleware(base), AccessLogMiddleware())
	r.GET("/ping/:id", func(c *gin.Context) {
		actor = logctx.ActorFromCtx(c.Request.Context())
		traceID = logctx.TraceIDFromCtx(c.Request.Context())
		logctx.FromCtx(c.Request.Context(), base).Infow("handled")
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping/1", nil)
	req.Header.Set(HeaderRequestID, "trace-abc")
	req.Header.Set(HeaderUserID, "operator-7")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "trace-abc", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "operator-7", actor)
	assert.Equal(t, "trace-abc", traceID)

	handled := logs.FilterMessage("handled").All()
	require.Len(t, handled, 1)
	assert.Equal(t, "trace-abc", handled[0].ContextMap()["trace_id"])
	assert.Equal(t, "operator-7", handled[0].ContextMap()["user_id"])

	access := logs.FilterMessage("http_access").All()
	require.Len(t, access, 1)
	assert.Equal(t, "/ping/:id", access[0].ContextMap()["path"])
	assert.EqualValues(t, http.StatusNoContent, access[0].ContextMap()["status"])
}

func TestTraceMiddleware_GeneratesID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceMiddleware(), RequestLoggerMiddleware(zap.NewNop().Sugar()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get(HeaderRequestID), 36)
}
