package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pgsynclabs/syncengine/internal/domain"
	"github.com/pgsynclabs/syncengine/internal/repository"
)

// RunJob is satisfied by *supervisor.Supervisor.
type RunJob interface {
	RunJob(ctx context.Context, jobID string) error
}

type JobHandler struct {
	jobs   repository.JobRepository
	runner RunJob
	logger *slog.Logger
}

func NewJobHandler(jobs repository.JobRepository, runner RunJob, logger *slog.Logger) *JobHandler {
	return &JobHandler{jobs: jobs, runner: runner, logger: logger.With("component", "job_handler")}
}

// Run triggers Supervisor.RunJob in a detached goroutine and returns
// immediately — per spec §6, the caller watches progress over the SSE
// endpoint rather than blocking on the HTTP response.
func (h *JobHandler) Run(c *gin.Context) {
	jobID := c.Param("id")

	if _, err := h.jobs.GetByID(c.Request.Context(), jobID); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errJobNotFound})
			return
		}
		h.logger.Error("lookup job", "job_id", jobID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	go func() {
		if err := h.runner.RunJob(context.Background(), jobID); err != nil {
			h.logger.Error("detached run failed", "job_id", jobID, "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "status": "triggered"})
}

func (h *JobHandler) Pause(c *gin.Context) {
	jobID := c.Param("id")

	if err := h.jobs.SetPaused(c.Request.Context(), jobID, true); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errJobNotFound})
			return
		}
		h.logger.Error("pause job", "job_id", jobID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *JobHandler) Resume(c *gin.Context) {
	jobID := c.Param("id")

	if err := h.jobs.SetPaused(c.Request.Context(), jobID, false); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errJobNotFound})
			return
		}
		h.logger.Error("resume job", "job_id", jobID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.Status(http.StatusNoContent)
}
