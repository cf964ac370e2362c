package alerts

import (
	"context"
	"fmt"

	"github.com/fitdesk/fitdesk-api/internal/metrics"
	"github.com/fitdesk/fitdesk-api/internal/notify"
	"github.com/rs/zerolog"
)

// Result summarizes one scan across all rules.
type Result struct {
	AlertsTriggered int      `json:"alerts_triggered"`
	Deduplicated    int      `json:"deduplicated"`
	Errors          []string `json:"errors"`
}

// Processor evaluates the registered rules against current domain state and
// enqueues a notification per matching entity. Because enqueue is
// idempotent on the dedup key, a still-breaching condition does not re-alert
// on subsequent scans; the condition must first resolve.
type Processor struct {
	rules   []Rule
	service notify.Service
	logger  zerolog.Logger
}

func NewProcessor(rules []Rule, service notify.Service, logger zerolog.Logger) *Processor {
	return &Processor{
		rules:   rules,
		service: service,
		logger:  logger.With().Str("component", "alert_processor").Logger(),
	}
}

// ProcessAlerts runs every rule once. A rule's failure is recorded and the
// remaining rules still run; the next scheduled scan retries implicitly.
func (p *Processor) ProcessAlerts(ctx context.Context) Result {
	var result Result

	for _, rule := range p.rules {
		candidates, err := rule.Evaluate(ctx)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("rule %s: %v", rule.ID, err))
			p.logger.Error().Err(err).Str("rule", rule.ID).Msg("rule evaluation failed, skipping until next scan")
			continue
		}

		for _, candidate := range candidates {
			dedupKey := candidate.DedupKey
			_, created, err := p.service.EnqueueForTrigger(ctx, notify.TriggerRequest{
				Trigger:             rule.Trigger,
				RecipientType:       candidate.RecipientType,
				RecipientIdentifier: candidate.RecipientIdentifier,
				DedupKey:            &dedupKey,
				Metadata:            candidate.Metadata,
			})
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("rule %s, key %s: %v", rule.ID, dedupKey, err))
				continue
			}
			if created {
				result.AlertsTriggered++
				metrics.AlertsTriggered.WithLabelValues(rule.ID).Inc()
			} else {
				result.Deduplicated++
				metrics.AlertsDeduplicated.WithLabelValues(rule.ID).Inc()
			}
		}
	}

	p.logger.Info().
		Int("triggered", result.AlertsTriggered).
		Int("deduplicated", result.Deduplicated).
		Int("errors", len(result.Errors)).
		Msg("alert scan complete")
	return result
}
