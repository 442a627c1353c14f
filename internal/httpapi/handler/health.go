package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pgsynclabs/syncengine/internal/health"
)

// SchedulerStatus reports whether the cron dispatch loop is running,
// satisfied by *scheduler.Scheduler.
type SchedulerStatus interface {
	Running() bool
}

type HealthHandler struct {
	checker   *health.Checker
	scheduler SchedulerStatus
}

func NewHealthHandler(checker *health.Checker, scheduler SchedulerStatus) *HealthHandler {
	return &HealthHandler{checker: checker, scheduler: scheduler}
}

// Check serves GET /api/health: the metadata store must be reachable and
// the scheduler's dispatch loop must be running.
func (h *HealthHandler) Check(c *gin.Context) {
	result := h.checker.Readiness(c.Request.Context())

	if !h.scheduler.Running() {
		result.Status = "down"
		result.Checks["scheduler"] = health.CheckResult{Status: "down", Error: "dispatch loop not running"}
	} else {
		result.Checks["scheduler"] = health.CheckResult{Status: "up"}
	}

	status := http.StatusOK
	if result.Status != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}
