package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/pgsynclabs/syncengine/internal/httpapi/middleware"
	"github.com/pgsynclabs/syncengine/internal/requestid"
)

func newRequestIDEngine() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, requestid.FromContext(c.Request.Context()))
	})
	return r
}

func TestRequestIDGeneratesWhenAbsent(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	newRequestIDEngine().ServeHTTP(w, req)

	header := w.Header().Get("X-Request-ID")
	if header == "" {
		t.Fatal("expected X-Request-ID response header to be set")
	}
	if w.Body.String() != header {
		t.Fatalf("context request id = %q, want it to match response header %q", w.Body.String(), header)
	}
}

func TestRequestIDPreservesIncoming(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "incoming-id")
	newRequestIDEngine().ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "incoming-id" {
		t.Fatalf("X-Request-ID = %q, want incoming-id", got)
	}
	if w.Body.String() != "incoming-id" {
		t.Fatalf("body = %q, want incoming-id", w.Body.String())
	}
}
