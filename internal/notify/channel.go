package notify

import (
	"context"

	"github.com/fitdesk/fitdesk-api/internal/models"
)

// Channel delivers one rendered notification over a single transport.
// Adding a transport means adding one implementation, selected by the
// template's channel type at delivery time.
type Channel interface {
	Type() models.ChannelType
	Send(ctx context.Context, recipient, subject, body string) error
}

// ChannelSet indexes channels by type for worker dispatch.
type ChannelSet map[models.ChannelType]Channel

func NewChannelSet(channels ...Channel) ChannelSet {
	set := make(ChannelSet, len(channels))
	for _, ch := range channels {
		if ch != nil {
			set[ch.Type()] = ch
		}
	}
	return set
}
