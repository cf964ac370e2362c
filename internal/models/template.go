package models

import "time"

type ChannelType string

const (
	ChannelEmail ChannelType = "email"
	ChannelSMS   ChannelType = "sms"
	ChannelPush  ChannelType = "push"
	ChannelInApp ChannelType = "in-app"
)

// ValidChannelType reports whether t is one of the supported delivery channels.
func ValidChannelType(t ChannelType) bool {
	switch t {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp:
		return true
	}
	return false
}

type TriggerEvent string

const (
	TriggerSLABreach      TriggerEvent = "sla_breach"
	TriggerLowStock       TriggerEvent = "low_stock"
	TriggerMaintenanceDue TriggerEvent = "maintenance_due"
	TriggerTicketAssigned TriggerEvent = "ticket_assigned"
	TriggerTicketResolved TriggerEvent = "ticket_resolved"
)

// Template is a named notification pattern. Subject and body use
// {{placeholder}} substitution against the recipient context resolved
// at delivery time.
type Template struct {
	ID              string       `json:"id" db:"id"`
	Name            string       `json:"name" db:"name"`
	Type            ChannelType  `json:"type" db:"type"`
	TriggerEvent    TriggerEvent `json:"trigger_event" db:"trigger_event"`
	SubjectTemplate string       `json:"subject_template" db:"subject_template"`
	BodyTemplate    string       `json:"body_template" db:"body_template"`
	Priority        Priority     `json:"priority" db:"priority"`
	IsActive        bool         `json:"is_active" db:"is_active"`
	CreatedAt       time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" db:"updated_at"`
}
