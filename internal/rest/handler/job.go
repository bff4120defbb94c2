package handler

import (
	"net/http"

	"github.com/rafaello-cc/levelbot/internal/worker/core"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// JobHandler exposes scheduled job health to the dashboard.
type JobHandler struct {
	monitor *core.Monitor
	logger  *zap.Logger
}

// NewJobHandler creates a new job handler.
func NewJobHandler(monitor *core.Monitor, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		monitor: monitor,
		logger:  logger,
	}
}

// ListJobs returns the last reported status of every scheduled job.
func (h *JobHandler) ListJobs(w http.ResponseWriter, req bunrouter.Request) error {
	statuses, err := h.monitor.GetAllStatuses(req.Context())
	if err != nil {
		h.logger.Error("Failed to load job statuses", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	return bunrouter.JSON(w, statuses)
}
