package handler

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pgsynclabs/syncengine/internal/domain"
	"github.com/pgsynclabs/syncengine/internal/progressbus"
)

type ProgressHandler struct {
	bus       *progressbus.Bus
	heartbeat time.Duration
	logger    *slog.Logger
}

func NewProgressHandler(bus *progressbus.Bus, heartbeat time.Duration, logger *slog.Logger) *ProgressHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &ProgressHandler{bus: bus, heartbeat: heartbeat, logger: logger.With("component", "progress_handler")}
}

// Stream serves GET /api/jobs/:id/progress as Server-Sent Events, backed
// by ProgressBus.Subscribe. A late subscriber is replayed the latest known
// snapshot before live events start flowing.
func (h *ProgressHandler) Stream(c *gin.Context) {
	jobID := c.Param("id")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	events, unsubscribe := h.bus.Subscribe(jobID)
	defer unsubscribe()

	if snapshot, ok := h.bus.LatestSnapshot(jobID); ok {
		snapshot.Snapshot = true
		writeEvent(c, snapshot)
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			writeEvent(c, ev)
			if ev.Terminal {
				return
			}
		case <-ticker.C:
			c.SSEvent("", heartbeatPayload())
			c.Writer.Flush()
		}
	}
}

func writeEvent(c *gin.Context, ev domain.ProgressEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	name := ""
	if ev.Terminal {
		name = "complete"
	}
	c.SSEvent(name, string(payload))
	c.Writer.Flush()
}

func heartbeatPayload() string {
	payload, _ := json.Marshal(map[string]any{
		"type":      "heartbeat",
		"timestamp": time.Now().UTC(),
	})
	return string(payload)
}
