package notify

import (
	"context"
	"fmt"

	"github.com/fitdesk/fitdesk-api/internal/config"
	"github.com/fitdesk/fitdesk-api/internal/models"
	"github.com/rs/zerolog"
)

// PushChannel dispatches mobile push notifications. Delivery is currently a
// logged no-op behind a feature flag until the mobile app ships.
// TODO: replace the mock dispatch with an FCM send once the app registers
// device tokens.
type PushChannel struct {
	enabled   bool
	projectID string
	topic     string
	logger    zerolog.Logger
}

func NewPushChannel(cfg config.PushConfig, logger zerolog.Logger) *PushChannel {
	enabled := cfg.Enabled && cfg.ProjectID != "" && cfg.Topic != ""
	return &PushChannel{
		enabled:   enabled,
		projectID: cfg.ProjectID,
		topic:     cfg.Topic,
		logger:    logger.With().Str("channel", "push").Logger(),
	}
}

func (c *PushChannel) Type() models.ChannelType {
	return models.ChannelPush
}

func (c *PushChannel) Send(_ context.Context, recipient, subject, body string) error {
	if !c.enabled {
		return fmt.Errorf("push channel is not configured")
	}
	c.logger.Info().
		Str("recipient", recipient).
		Str("subject", subject).
		Str("topic", c.topic).
		Msg("push notification dispatched (mock)")
	return nil
}

func (c *PushChannel) String() string {
	if !c.enabled {
		return "PushChannel(disabled)"
	}
	return fmt.Sprintf("PushChannel(project=%s, topic=%s)", c.projectID, c.topic)
}
