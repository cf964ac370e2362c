package models

import (
	"encoding/json"
	"time"
)

type QueueStatus string

const (
	StatusPending    QueueStatus = "pending"
	StatusProcessing QueueStatus = "processing"
	StatusSent       QueueStatus = "sent"
	StatusFailed     QueueStatus = "failed"
	StatusCancelled  QueueStatus = "cancelled"
)

// Terminal reports whether s admits no further transitions. A dedup key
// held by an entry in a terminal status no longer blocks re-enqueue.
func (s QueueStatus) Terminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

func ValidQueueStatus(s QueueStatus) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSent, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

func ValidPriority(p Priority) bool {
	return p.Weight() != 0
}

// Weight maps a priority to its claim-ordering rank, highest first.
// Unknown priorities weigh zero and sort last.
func (p Priority) Weight() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

type RecipientType string

const (
	RecipientMember     RecipientType = "member"
	RecipientTechnician RecipientType = "technician"
	RecipientEmail      RecipientType = "email"
)

// QueueEntry is one scheduled notification job. Entries with a non-null
// DedupKey originate from the alert processor; at most one such entry per
// key may sit in a non-terminal status at any time.
type QueueEntry struct {
	ID                  string          `json:"id" db:"id"`
	TemplateID          string          `json:"template_id" db:"template_id"`
	RecipientType       RecipientType   `json:"recipient_type" db:"recipient_type"`
	RecipientIdentifier string          `json:"recipient_identifier" db:"recipient_identifier"`
	Priority            Priority        `json:"priority" db:"priority"`
	Status              QueueStatus     `json:"status" db:"status"`
	ScheduledAt         time.Time       `json:"scheduled_at" db:"scheduled_at"`
	Attempts            int             `json:"attempts" db:"attempts"`
	MaxAttempts         int             `json:"max_attempts" db:"max_attempts"`
	ErrorMessage        *string         `json:"error_message,omitempty" db:"error_message"`
	DedupKey            *string         `json:"dedup_key,omitempty" db:"dedup_key"`
	Metadata            json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}
