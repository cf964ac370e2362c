package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/fitdesk/fitdesk-api/internal/models"
)

type LogRepository interface {
	// Append writes one delivery attempt outcome. The log is insert-only.
	Append(ctx context.Context, params AppendLogParams) (models.DeliveryLogEntry, error)
	ListByDateRange(ctx context.Context, from, to time.Time, limit int) ([]models.DeliveryLogEntry, error)
}

type AppendLogParams struct {
	QueueEntryID        string
	TemplateName        string
	RecipientType       models.RecipientType
	RecipientIdentifier string
	DeliveryMethod      models.ChannelType
	Status              models.DeliveryStatus
	TriggerEvent        models.TriggerEvent
}

type logRepository struct {
	db *sql.DB
}

func NewLogRepository(db *sql.DB) LogRepository {
	return &logRepository{db: db}
}

const logColumns = `id, queue_entry_id, template_name, recipient_type, recipient_identifier, delivery_method, status, trigger_event, sent_at`

func (r *logRepository) Append(ctx context.Context, params AppendLogParams) (models.DeliveryLogEntry, error) {
	query := `
		INSERT INTO delivery_log
			(queue_entry_id, template_name, recipient_type, recipient_identifier, delivery_method, status, trigger_event)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + logColumns
	row := r.db.QueryRowContext(ctx, query,
		params.QueueEntryID,
		params.TemplateName,
		params.RecipientType,
		params.RecipientIdentifier,
		params.DeliveryMethod,
		params.Status,
		params.TriggerEvent,
	)
	return scanLogEntry(row)
}

func (r *logRepository) ListByDateRange(ctx context.Context, from, to time.Time, limit int) ([]models.DeliveryLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `
		SELECT ` + logColumns + `
		FROM delivery_log
		WHERE sent_at >= $1 AND sent_at < $2
		ORDER BY sent_at DESC
		LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.DeliveryLogEntry, 0, limit)
	for rows.Next() {
		entry, err := scanLogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func scanLogEntry(scanner interface {
	Scan(dest ...interface{}) error
}) (models.DeliveryLogEntry, error) {
	var entry models.DeliveryLogEntry
	err := scanner.Scan(
		&entry.ID,
		&entry.QueueEntryID,
		&entry.TemplateName,
		&entry.RecipientType,
		&entry.RecipientIdentifier,
		&entry.DeliveryMethod,
		&entry.Status,
		&entry.TriggerEvent,
		&entry.SentAt,
	)
	return entry, err
}
