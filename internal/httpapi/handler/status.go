package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pgsynclabs/syncengine/internal/domain"
	"github.com/pgsynclabs/syncengine/internal/metrics"
	"github.com/pgsynclabs/syncengine/internal/statuscontrol"
)

type StatusHandler struct {
	status *statuscontrol.Controller
	logger *slog.Logger
}

func NewStatusHandler(status *statuscontrol.Controller, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{status: status, logger: logger.With("component", "status_handler")}
}

// Cancel requests cancellation of a run by its RunStatus id. The run itself
// observes the flag on its own polling cadence — this only flips the bit.
func (h *StatusHandler) Cancel(c *gin.Context) {
	statusID := c.Param("id")

	if err := h.status.RequestCancel(c.Request.Context(), statusID); err != nil {
		switch {
		case errors.Is(err, domain.ErrRunStatusNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": errRunStatusNotFound})
		case errors.Is(err, domain.ErrNotCancellable):
			c.JSON(http.StatusConflict, gin.H{"error": errNotCancellable})
		default:
			h.logger.Error("request cancel", "status_id", statusID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		}
		return
	}

	metrics.CancellationsTotal.WithLabelValues("api").Inc()
	c.Status(http.StatusNoContent)
}
