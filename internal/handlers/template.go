package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/fitdesk/fitdesk-api/internal/models"
	"github.com/fitdesk/fitdesk-api/internal/notify"
	"github.com/fitdesk/fitdesk-api/internal/repository"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type TemplateHandler struct {
	repo   repository.TemplateRepository
	logger zerolog.Logger
}

func NewTemplateHandler(repo repository.TemplateRepository, logger zerolog.Logger) *TemplateHandler {
	return &TemplateHandler{
		repo:   repo,
		logger: logger.With().Str("handler", "template").Logger(),
	}
}

type templatePayload struct {
	Name            string              `json:"name"`
	Type            models.ChannelType  `json:"type"`
	TriggerEvent    models.TriggerEvent `json:"trigger_event"`
	SubjectTemplate string              `json:"subject_template"`
	BodyTemplate    string              `json:"body_template"`
	Priority        models.Priority     `json:"priority"`
	IsActive        *bool               `json:"is_active"`
}

func (p *templatePayload) toParams() (repository.TemplateParams, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return repository.TemplateParams{}, notify.Validationf("name is required")
	}
	if !models.ValidChannelType(p.Type) {
		return repository.TemplateParams{}, notify.Validationf("unknown channel type %q", p.Type)
	}
	if p.TriggerEvent == "" {
		return repository.TemplateParams{}, notify.Validationf("trigger_event is required")
	}
	if p.Priority == "" {
		p.Priority = models.PriorityMedium
	}
	if !models.ValidPriority(p.Priority) {
		return repository.TemplateParams{}, notify.Validationf("unknown priority %q", p.Priority)
	}
	if err := notify.ValidatePatterns(p.TriggerEvent, p.SubjectTemplate, p.BodyTemplate); err != nil {
		return repository.TemplateParams{}, err
	}
	active := true
	if p.IsActive != nil {
		active = *p.IsActive
	}
	return repository.TemplateParams{
		Name:            p.Name,
		Type:            p.Type,
		TriggerEvent:    p.TriggerEvent,
		SubjectTemplate: p.SubjectTemplate,
		BodyTemplate:    p.BodyTemplate,
		Priority:        p.Priority,
		IsActive:        active,
	}, nil
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload templatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	params, err := payload.toParams()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tpl, err := h.repo.Create(r.Context(), params)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			writeError(w, http.StatusConflict, "Template name already exists")
			return
		}
		h.logger.Error().Err(err).Msg("failed to create template")
		writeError(w, http.StatusInternalServerError, "Failed to create template")
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}

func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	templateID := mux.Vars(r)["templateID"]
	var payload templatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	params, err := payload.toParams()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tpl, err := h.repo.Update(r.Context(), templateID, params)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "Template not found")
		case errors.Is(err, repository.ErrDuplicateName):
			writeError(w, http.StatusConflict, "Template name already exists")
		default:
			h.logger.Error().Err(err).Str("template_id", templateID).Msg("failed to update template")
			writeError(w, http.StatusInternalServerError, "Failed to update template")
		}
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		templates []models.Template
		err       error
	)
	if r.URL.Query().Get("active") == "true" {
		trigger := models.TriggerEvent(r.URL.Query().Get("trigger_event"))
		templates, err = h.repo.ListActive(r.Context(), trigger)
	} else {
		templates, err = h.repo.List(r.Context())
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list templates")
		writeError(w, http.StatusInternalServerError, "Failed to list templates")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"templates": templates})
}

// Delete physically removes a template nothing references. Once queue
// entries or delivery log rows point at it the template has history and
// can only be deactivated.
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	templateID := mux.Vars(r)["templateID"]
	if err := h.repo.Delete(r.Context(), templateID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "Template not found")
		case errors.Is(err, repository.ErrTemplateInUse):
			writeError(w, http.StatusConflict, "Template is referenced by queue or delivery log entries; deactivate it instead")
		default:
			h.logger.Error().Err(err).Str("template_id", templateID).Msg("failed to delete template")
			writeError(w, http.StatusInternalServerError, "Failed to delete template")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Deactivate soft-deletes: the template stops accepting new enqueues but
// stays referenced by queued and historical jobs.
func (h *TemplateHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	templateID := mux.Vars(r)["templateID"]
	if err := h.repo.Deactivate(r.Context(), templateID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Template not found")
			return
		}
		h.logger.Error().Err(err).Str("template_id", templateID).Msg("failed to deactivate template")
		writeError(w, http.StatusInternalServerError, "Failed to deactivate template")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
