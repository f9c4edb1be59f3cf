package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"jsjudge/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
)

func TestTraceContextMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceContextMiddleware(), AccessLogMiddleware())
	var seen string
	r.GET("/ping", func(c *gin.Context) {
		seen, _ = c.Request.Context().Value(contextkey.TraceID).(string)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(traceIDHeader, "trace-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if seen != "trace-123" {
		t.Fatalf("context trace id = %q", seen)
	}
	if w.Header().Get(traceIDHeader) != "trace-123" {
		t.Fatalf("trace header not echoed")
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatalf("request id should be generated")
	}
}
