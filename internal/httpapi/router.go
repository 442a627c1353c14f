package httpapi

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"

	"github.com/pgsynclabs/syncengine/internal/httpapi/handler"
	"github.com/pgsynclabs/syncengine/internal/httpapi/middleware"
)

// NewRouter wires the six HTTP operations this engine exposes: job
// trigger/pause/resume, run cancellation, SSE progress, and health.
func NewRouter(logger *slog.Logger, jobHandler *handler.JobHandler, statusHandler *handler.StatusHandler, progressHandler *handler.ProgressHandler, healthHandler *handler.HealthHandler, authSecret []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	r.GET("/api/health", healthHandler.Check)

	api := r.Group("/api", middleware.Auth(authSecret))

	jobs := api.Group("/jobs")
	jobs.POST("/:id/run", jobHandler.Run)
	jobs.POST("/:id/pause", jobHandler.Pause)
	jobs.POST("/:id/resume", jobHandler.Resume)
	jobs.GET("/:id/progress", progressHandler.Stream)

	status := api.Group("/status")
	status.POST("/:id/cancel", statusHandler.Cancel)

	return r
}
