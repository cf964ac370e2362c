package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fitdesk/fitdesk-api/internal/models"
	"github.com/fitdesk/fitdesk-api/internal/repository"
	"github.com/rs/zerolog"
)

// EnqueueRequest creates one queue entry against an explicit template.
type EnqueueRequest struct {
	TemplateID          string
	RecipientType       models.RecipientType
	RecipientIdentifier string
	Priority            models.Priority // empty: template default
	ScheduledAt         time.Time       // zero: now
	DedupKey            *string
	Metadata            map[string]string
}

// TriggerRequest creates one queue entry by trigger event, using the first
// active template registered for it.
type TriggerRequest struct {
	Trigger             models.TriggerEvent
	RecipientType       models.RecipientType
	RecipientIdentifier string
	Priority            models.Priority
	DedupKey            *string
	Metadata            map[string]string
}

type Service interface {
	Enqueue(ctx context.Context, req EnqueueRequest) (models.QueueEntry, bool, error)
	EnqueueForTrigger(ctx context.Context, req TriggerRequest) (models.QueueEntry, bool, error)

	// Direct application event helpers, called from the surrounding ERP's
	// request-handling code.
	NotifyTicketAssigned(ctx context.Context, ticketID int64, ticketTitle, equipmentName, assigneeEmail string, dueDate time.Time) error
	NotifyTicketResolved(ctx context.Context, ticketID int64, ticketTitle, equipmentName, memberEmail string) error
}

type service struct {
	queue              repository.QueueRepository
	templates          repository.TemplateRepository
	defaultMaxAttempts int
	logger             zerolog.Logger
}

func NewService(queue repository.QueueRepository, templates repository.TemplateRepository, defaultMaxAttempts int, logger zerolog.Logger) Service {
	return &service{
		queue:              queue,
		templates:          templates,
		defaultMaxAttempts: defaultMaxAttempts,
		logger:             logger.With().Str("component", "notify_service").Logger(),
	}
}

func (s *service) Enqueue(ctx context.Context, req EnqueueRequest) (models.QueueEntry, bool, error) {
	if strings.TrimSpace(req.TemplateID) == "" {
		return models.QueueEntry{}, false, Validationf("template_id is required")
	}
	tpl, err := s.templates.GetByID(ctx, req.TemplateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.QueueEntry{}, false, ErrTemplateNotFound
		}
		return models.QueueEntry{}, false, err
	}
	return s.enqueueWith(ctx, tpl, req)
}

func (s *service) EnqueueForTrigger(ctx context.Context, req TriggerRequest) (models.QueueEntry, bool, error) {
	candidates, err := s.templates.ListActive(ctx, req.Trigger)
	if err != nil {
		return models.QueueEntry{}, false, err
	}
	if len(candidates) == 0 {
		return models.QueueEntry{}, false, ErrTemplateNotFound
	}
	return s.enqueueWith(ctx, candidates[0], EnqueueRequest{
		TemplateID:          candidates[0].ID,
		RecipientType:       req.RecipientType,
		RecipientIdentifier: req.RecipientIdentifier,
		Priority:            req.Priority,
		DedupKey:            req.DedupKey,
		Metadata:            req.Metadata,
	})
}

func (s *service) enqueueWith(ctx context.Context, tpl models.Template, req EnqueueRequest) (models.QueueEntry, bool, error) {
	if !tpl.IsActive {
		return models.QueueEntry{}, false, ErrTemplateInactive
	}
	if strings.TrimSpace(req.RecipientIdentifier) == "" {
		return models.QueueEntry{}, false, Validationf("recipient_identifier is required")
	}
	switch req.RecipientType {
	case models.RecipientMember, models.RecipientTechnician, models.RecipientEmail:
	default:
		return models.QueueEntry{}, false, Validationf("unknown recipient_type %q", req.RecipientType)
	}

	priority := req.Priority
	if priority == "" {
		priority = tpl.Priority
	}
	if !models.ValidPriority(priority) {
		return models.QueueEntry{}, false, Validationf("unknown priority %q", priority)
	}

	scheduledAt := req.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = time.Now()
	}

	var metadata json.RawMessage
	if len(req.Metadata) > 0 {
		bytes, err := json.Marshal(req.Metadata)
		if err != nil {
			return models.QueueEntry{}, false, fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = bytes
	}

	entry, created, err := s.queue.Enqueue(ctx, repository.EnqueueParams{
		TemplateID:          tpl.ID,
		RecipientType:       req.RecipientType,
		RecipientIdentifier: strings.TrimSpace(req.RecipientIdentifier),
		Priority:            priority,
		ScheduledAt:         scheduledAt,
		MaxAttempts:         s.defaultMaxAttempts,
		DedupKey:            req.DedupKey,
		Metadata:            metadata,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("template", tpl.Name).Msg("failed to enqueue notification")
		return models.QueueEntry{}, false, err
	}
	if !created {
		s.logger.Debug().
			Str("template", tpl.Name).
			Str("dedup_key", derefKey(req.DedupKey)).
			Msg("enqueue deduplicated against existing entry")
	}
	return entry, created, nil
}

func (s *service) NotifyTicketAssigned(ctx context.Context, ticketID int64, ticketTitle, equipmentName, assigneeEmail string, dueDate time.Time) error {
	_, _, err := s.EnqueueForTrigger(ctx, TriggerRequest{
		Trigger:             models.TriggerTicketAssigned,
		RecipientType:       models.RecipientEmail,
		RecipientIdentifier: assigneeEmail,
		Metadata: map[string]string{
			"ticket_id":      strconv.FormatInt(ticketID, 10),
			"ticket_title":   ticketTitle,
			"equipment_name": equipmentName,
			"due_date":       dueDate.Format("2006-01-02"),
		},
	})
	return err
}

func (s *service) NotifyTicketResolved(ctx context.Context, ticketID int64, ticketTitle, equipmentName, memberEmail string) error {
	_, _, err := s.EnqueueForTrigger(ctx, TriggerRequest{
		Trigger:             models.TriggerTicketResolved,
		RecipientType:       models.RecipientEmail,
		RecipientIdentifier: memberEmail,
		Metadata: map[string]string{
			"ticket_id":      strconv.FormatInt(ticketID, 10),
			"ticket_title":   ticketTitle,
			"equipment_name": equipmentName,
		},
	})
	return err
}

func derefKey(key *string) string {
	if key == nil {
		return ""
	}
	return *key
}
