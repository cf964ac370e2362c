package models

import "time"

type DeliveryStatus string

const (
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliveryBounced   DeliveryStatus = "bounced"
	DeliveryOpened    DeliveryStatus = "opened"
	DeliveryClicked   DeliveryStatus = "clicked"
)

// DeliveryLogEntry records the outcome of one delivery attempt. The log is
// append-only; rows are written by the delivery worker and never mutated.
type DeliveryLogEntry struct {
	ID                  string         `json:"id" db:"id"`
	QueueEntryID        string         `json:"queue_entry_id" db:"queue_entry_id"`
	TemplateName        string         `json:"template_name" db:"template_name"`
	RecipientType       RecipientType  `json:"recipient_type" db:"recipient_type"`
	RecipientIdentifier string         `json:"recipient_identifier" db:"recipient_identifier"`
	DeliveryMethod      ChannelType    `json:"delivery_method" db:"delivery_method"`
	Status              DeliveryStatus `json:"status" db:"status"`
	TriggerEvent        TriggerEvent   `json:"trigger_event" db:"trigger_event"`
	SentAt              time.Time      `json:"sent_at" db:"sent_at"`
}
