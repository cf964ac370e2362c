package notify

import (
	"context"
	"database/sql"

	"github.com/fitdesk/fitdesk-api/internal/models"
	"github.com/rs/zerolog"
)

// InAppChannel persists notifications for the dashboard bell. "Delivery"
// is an insert; the dashboard polls the table.
type InAppChannel struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewInAppChannel(db *sql.DB, logger zerolog.Logger) *InAppChannel {
	return &InAppChannel{
		db:     db,
		logger: logger.With().Str("channel", "in-app").Logger(),
	}
}

func (c *InAppChannel) Type() models.ChannelType {
	return models.ChannelInApp
}

func (c *InAppChannel) Send(ctx context.Context, recipient, subject, body string) error {
	const query = `
		INSERT INTO in_app_notifications (recipient_identifier, subject, body)
		VALUES ($1, $2, $3)`
	if _, err := c.db.ExecContext(ctx, query, recipient, subject, body); err != nil {
		return Transient(err)
	}
	c.logger.Debug().Str("recipient", recipient).Msg("in-app notification stored")
	return nil
}

func (c *InAppChannel) String() string {
	return "InAppChannel"
}
