package handlers

import (
	"net/http"

	"github.com/fitdesk/fitdesk-api/internal/alerts"
	"github.com/fitdesk/fitdesk-api/internal/scheduler"
	"github.com/rs/zerolog"
)

type SchedulerHandler struct {
	sched     *scheduler.Scheduler
	processor *alerts.Processor
	logger    zerolog.Logger
}

func NewSchedulerHandler(sched *scheduler.Scheduler, processor *alerts.Processor, logger zerolog.Logger) *SchedulerHandler {
	return &SchedulerHandler{
		sched:     sched,
		processor: processor,
		logger:    logger.With().Str("handler", "scheduler").Logger(),
	}
}

func (h *SchedulerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Snapshot())
}

// ProcessAlerts runs an alert scan on demand, with the same idempotent
// semantics as the scheduled invocation. Failures surface in the result's
// errors list, never silently.
func (h *SchedulerHandler) ProcessAlerts(w http.ResponseWriter, r *http.Request) {
	result := h.processor.ProcessAlerts(r.Context())
	h.logger.Info().
		Int("triggered", result.AlertsTriggered).
		Int("errors", len(result.Errors)).
		Msg("manual alert scan requested")
	writeJSON(w, http.StatusOK, result)
}
