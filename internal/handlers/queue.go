package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fitdesk/fitdesk-api/internal/models"
	"github.com/fitdesk/fitdesk-api/internal/notify"
	"github.com/fitdesk/fitdesk-api/internal/repository"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type QueueHandler struct {
	service notify.Service
	queue   repository.QueueRepository
	logger  zerolog.Logger
}

func NewQueueHandler(service notify.Service, queue repository.QueueRepository, logger zerolog.Logger) *QueueHandler {
	return &QueueHandler{
		service: service,
		queue:   queue,
		logger:  logger.With().Str("handler", "queue").Logger(),
	}
}

// Enqueue creates a queue entry directly, for application events that do not
// go through the alert processor.
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		TemplateID          string               `json:"template_id"`
		RecipientType       models.RecipientType `json:"recipient_type"`
		RecipientIdentifier string               `json:"recipient_identifier"`
		Priority            models.Priority      `json:"priority"`
		ScheduledAt         *time.Time           `json:"scheduled_at"`
		DedupKey            *string              `json:"dedup_key"`
		Metadata            map[string]string    `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	req := notify.EnqueueRequest{
		TemplateID:          payload.TemplateID,
		RecipientType:       payload.RecipientType,
		RecipientIdentifier: payload.RecipientIdentifier,
		Priority:            payload.Priority,
		DedupKey:            payload.DedupKey,
		Metadata:            payload.Metadata,
	}
	if payload.ScheduledAt != nil {
		req.ScheduledAt = *payload.ScheduledAt
	}

	entry, created, err := h.service.Enqueue(r.Context(), req)
	if err != nil {
		if notify.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("failed to enqueue notification")
		writeError(w, http.StatusInternalServerError, "Failed to enqueue notification")
		return
	}

	status := http.StatusCreated
	if !created {
		// Existing entry returned unchanged under its dedup key.
		status = http.StatusOK
	}
	writeJSON(w, status, entry)
}

func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repository.QueueFilter{
		Status:   models.QueueStatus(r.URL.Query().Get("status")),
		Priority: models.Priority(r.URL.Query().Get("priority")),
	}
	if filter.Status != "" && !models.ValidQueueStatus(filter.Status) {
		writeError(w, http.StatusBadRequest, "Unknown status filter")
		return
	}
	if filter.Priority != "" && !models.ValidPriority(filter.Priority) {
		writeError(w, http.StatusBadRequest, "Unknown priority filter")
		return
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			filter.Limit = parsed
		}
	}

	entries, err := h.queue.List(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list queue entries")
		writeError(w, http.StatusInternalServerError, "Failed to list queue entries")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// Cancel is only legal while the entry is still pending; an entry already
// claimed by a worker runs to completion.
func (h *QueueHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	entryID := mux.Vars(r)["entryID"]
	if _, err := uuid.Parse(entryID); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid entry ID")
		return
	}

	if err := h.queue.Cancel(r.Context(), entryID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "Queue entry not found")
		case errors.Is(err, repository.ErrInvalidState):
			writeError(w, http.StatusConflict, "Only pending entries can be cancelled")
		default:
			h.logger.Error().Err(err).Str("entry_id", entryID).Msg("failed to cancel queue entry")
			writeError(w, http.StatusInternalServerError, "Failed to cancel queue entry")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
