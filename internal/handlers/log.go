package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fitdesk/fitdesk-api/internal/repository"
	"github.com/rs/zerolog"
)

type LogHandler struct {
	repo   repository.LogRepository
	logger zerolog.Logger
}

func NewLogHandler(repo repository.LogRepository, logger zerolog.Logger) *LogHandler {
	return &LogHandler{
		repo:   repo,
		logger: logger.With().Str("handler", "delivery_log").Logger(),
	}
}

// List returns delivery log rows in a date range, newest first. Defaults to
// the last 7 days.
func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	to := time.Now()
	from := to.AddDate(0, 0, -7)

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'from' timestamp, expected RFC3339")
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid 'to' timestamp, expected RFC3339")
			return
		}
		to = parsed
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := h.repo.ListByDateRange(r.Context(), from, to, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list delivery log")
		writeError(w, http.StatusInternalServerError, "Failed to list delivery log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
