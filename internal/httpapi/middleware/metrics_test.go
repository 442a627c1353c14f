package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/pgsynclabs/syncengine/internal/httpapi/middleware"
	"github.com/pgsynclabs/syncengine/internal/metrics"
)

func TestMetricsRecordsRequestsTotalByRouteAndStatus(t *testing.T) {
	r := gin.New()
	r.Use(middleware.Metrics())
	r.GET("/api/jobs/:id/run", func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/jobs/:id/run", "202"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/j1/run", nil)
	r.ServeHTTP(w, req)

	after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/jobs/:id/run", "202"))
	if after != before+1 {
		t.Fatalf("requests_total = %v, want %v", after, before+1)
	}
}

func TestMetricsUsesUnknownPathForUnmatchedRoutes(t *testing.T) {
	r := gin.New()
	r.Use(middleware.Metrics())

	before := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "unknown", "404"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/no-such-route", nil)
	r.ServeHTTP(w, req)

	after := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "unknown", "404"))
	if after != before+1 {
		t.Fatalf("requests_total = %v, want %v", after, before+1)
	}
}
