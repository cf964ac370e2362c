package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fitdesk/fitdesk-api/internal/metrics"
	"github.com/fitdesk/fitdesk-api/internal/models"
	"github.com/fitdesk/fitdesk-api/internal/notify"
	"github.com/fitdesk/fitdesk-api/internal/repository"
	"github.com/rs/zerolog"
)

// DeliveryWorker drains the notification queue: claims a batch, renders each
// entry's template against its recipient context, pushes it through the
// matching channel and records the outcome in the delivery log.
type DeliveryWorker struct {
	queue     repository.QueueRepository
	templates repository.TemplateRepository
	log       repository.LogRepository
	domain    repository.MaintenanceRepository
	channels  notify.ChannelSet
	renderer  *notify.Renderer
	logger    zerolog.Logger
}

func NewDeliveryWorker(
	queue repository.QueueRepository,
	templates repository.TemplateRepository,
	log repository.LogRepository,
	domain repository.MaintenanceRepository,
	channels notify.ChannelSet,
	renderer *notify.Renderer,
	logger zerolog.Logger,
) *DeliveryWorker {
	return &DeliveryWorker{
		queue:     queue,
		templates: templates,
		log:       log,
		domain:    domain,
		channels:  channels,
		renderer:  renderer,
		logger:    logger.With().Str("component", "delivery_worker").Logger(),
	}
}

type CycleResult struct {
	Claimed int `json:"claimed"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

// RunCycle claims up to batchSize due entries and processes them. One
// entry's failure never aborts the rest of the batch.
func (w *DeliveryWorker) RunCycle(ctx context.Context, batchSize int) (CycleResult, error) {
	var result CycleResult

	entries, err := w.queue.ClaimBatch(ctx, batchSize)
	if err != nil {
		return result, fmt.Errorf("claim batch: %w", err)
	}
	result.Claimed = len(entries)

	for _, entry := range entries {
		if err := w.processEntry(ctx, entry); err != nil {
			result.Failed++
			w.logger.Warn().
				Err(err).
				Str("entry_id", entry.ID).
				Int("attempts", entry.Attempts+1).
				Msg("delivery attempt failed")
		} else {
			result.Sent++
		}
	}

	if depth, err := w.queue.PendingCount(ctx); err == nil {
		metrics.QueueDepth.Set(float64(depth))
	}

	if result.Claimed > 0 {
		w.logger.Info().
			Int("claimed", result.Claimed).
			Int("sent", result.Sent).
			Int("failed", result.Failed).
			Msg("drain cycle complete")
	}
	return result, nil
}

func (w *DeliveryWorker) processEntry(ctx context.Context, entry models.QueueEntry) error {
	tpl, err := w.templates.GetByID(ctx, entry.TemplateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return w.failTerminal(ctx, entry, models.Template{Name: entry.TemplateID}, "template missing")
		}
		return w.failTransient(ctx, entry, models.Template{Name: entry.TemplateID}, fmt.Errorf("load template: %w", err))
	}
	if !tpl.IsActive {
		return w.failTerminal(ctx, entry, tpl, "template inactive")
	}

	channel, ok := w.channels[tpl.Type]
	if !ok {
		return w.failTerminal(ctx, entry, tpl, fmt.Sprintf("no channel configured for type %s", tpl.Type))
	}

	renderCtx, err := w.domain.ResolveRecipientContext(ctx, entry.RecipientType, entry.RecipientIdentifier)
	if err != nil {
		return w.failTransient(ctx, entry, tpl, fmt.Errorf("resolve recipient: %w", err))
	}
	mergeMetadata(renderCtx, entry.Metadata)

	subject, body := w.renderer.Render(tpl, renderCtx)

	if err := channel.Send(ctx, entry.RecipientIdentifier, subject, body); err != nil {
		if notify.IsTransient(err) {
			return w.failTransient(ctx, entry, tpl, err)
		}
		// A send rejected for non-transient reasons (disabled channel,
		// malformed recipient) will fail identically on every retry.
		return w.failTerminal(ctx, entry, tpl, err.Error())
	}

	if err := w.queue.MarkSent(ctx, entry.ID); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	w.appendLog(ctx, entry, tpl, models.DeliveryDelivered)
	metrics.NotificationsSent.WithLabelValues(string(tpl.Type)).Inc()
	return nil
}

// failTerminal handles configuration errors no retry can fix.
func (w *DeliveryWorker) failTerminal(ctx context.Context, entry models.QueueEntry, tpl models.Template, reason string) error {
	if err := w.queue.MarkFailedTerminal(ctx, entry.ID, reason); err != nil {
		return fmt.Errorf("mark failed terminal: %w", err)
	}
	w.appendLog(ctx, entry, tpl, models.DeliveryFailed)
	metrics.NotificationsFailed.WithLabelValues(string(tpl.Type), "terminal").Inc()
	return errors.New(reason)
}

// failTransient routes the entry through retry/backoff, up to max_attempts.
func (w *DeliveryWorker) failTransient(ctx context.Context, entry models.QueueEntry, tpl models.Template, cause error) error {
	if _, err := w.queue.MarkFailed(ctx, entry.ID, cause.Error()); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	w.appendLog(ctx, entry, tpl, models.DeliveryFailed)
	metrics.NotificationsFailed.WithLabelValues(string(tpl.Type), "transient").Inc()
	return cause
}

func (w *DeliveryWorker) appendLog(ctx context.Context, entry models.QueueEntry, tpl models.Template, status models.DeliveryStatus) {
	_, err := w.log.Append(ctx, repository.AppendLogParams{
		QueueEntryID:        entry.ID,
		TemplateName:        tpl.Name,
		RecipientType:       entry.RecipientType,
		RecipientIdentifier: entry.RecipientIdentifier,
		DeliveryMethod:      tpl.Type,
		Status:              status,
		TriggerEvent:        tpl.TriggerEvent,
	})
	if err != nil {
		// The queue row still carries the authoritative status.
		w.logger.Error().Err(err).Str("entry_id", entry.ID).Msg("failed to append delivery log")
	}
}

func mergeMetadata(renderCtx map[string]string, metadata json.RawMessage) {
	if len(metadata) == 0 {
		return
	}
	var extra map[string]string
	if err := json.Unmarshal(metadata, &extra); err != nil {
		return
	}
	for k, v := range extra {
		renderCtx[k] = v
	}
}
