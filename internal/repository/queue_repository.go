package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fitdesk/fitdesk-api/internal/models"
	pkgerrors "github.com/pkg/errors"
)

type QueueRepository interface {
	// Enqueue inserts a pending entry. When params.DedupKey is set and a
	// non-terminal entry already holds the same key, the existing entry is
	// returned unchanged and created is false.
	Enqueue(ctx context.Context, params EnqueueParams) (entry models.QueueEntry, created bool, err error)

	// ClaimBatch atomically flips up to limit due pending entries to
	// processing and returns them ordered by (priority weight desc,
	// scheduled_at asc). Concurrent callers never receive overlapping
	// entries.
	ClaimBatch(ctx context.Context, limit int) ([]models.QueueEntry, error)

	MarkSent(ctx context.Context, id string) error

	// MarkFailed increments attempts. Below max_attempts the entry goes
	// back to pending with an exponentially backed-off scheduled_at;
	// at the cap it becomes failed.
	MarkFailed(ctx context.Context, id, errorMessage string) (models.QueueEntry, error)

	// MarkFailedTerminal fails the entry immediately, bypassing retries.
	// Used for configuration errors that no amount of retrying will fix.
	MarkFailedTerminal(ctx context.Context, id, errorMessage string) error

	Cancel(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (models.QueueEntry, error)
	List(ctx context.Context, filter QueueFilter) ([]models.QueueEntry, error)
	PendingCount(ctx context.Context) (int64, error)
}

type EnqueueParams struct {
	TemplateID          string
	RecipientType       models.RecipientType
	RecipientIdentifier string
	Priority            models.Priority
	ScheduledAt         time.Time
	MaxAttempts         int
	DedupKey            *string
	Metadata            json.RawMessage
}

type QueueFilter struct {
	Status   models.QueueStatus
	Priority models.Priority
	Limit    int
}

// Backoff parameterizes the retry delay policy applied by MarkFailed:
// base * 2^(attempts-1), capped. The arithmetic itself lives in the
// MarkFailed statement so the schedule is computed exactly once, at
// transition time, against the row's own attempt count.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

type queueRepository struct {
	db      *sql.DB
	backoff Backoff
}

func NewQueueRepository(db *sql.DB, backoff Backoff) QueueRepository {
	return &queueRepository{db: db, backoff: backoff}
}

const queueColumns = `id, template_id, recipient_type, recipient_identifier, priority, status, scheduled_at, attempts, max_attempts, error_message, dedup_key, metadata, created_at, updated_at`

func (r *queueRepository) Enqueue(ctx context.Context, params EnqueueParams) (models.QueueEntry, bool, error) {
	insert := `
		INSERT INTO notification_queue
			(template_id, recipient_type, recipient_identifier, priority, status, scheduled_at, max_attempts, dedup_key, metadata)
		VALUES ($1, $2, $3, $4, 'pending', $5, $6, $7, $8)
		ON CONFLICT (dedup_key) WHERE status IN ('pending', 'processing') DO NOTHING
		RETURNING ` + queueColumns

	var metadata interface{}
	if len(params.Metadata) > 0 {
		metadata = []byte(params.Metadata)
	}

	// The partial unique index makes the insert race-safe; losing the race
	// surfaces as a conflict with no returned row. The conflicting entry may
	// reach a terminal status between our insert and the lookup, in which
	// case the insert is retried once.
	for attempt := 0; attempt < 2; attempt++ {
		row := r.db.QueryRowContext(ctx, insert,
			params.TemplateID,
			params.RecipientType,
			params.RecipientIdentifier,
			params.Priority,
			params.ScheduledAt,
			params.MaxAttempts,
			params.DedupKey,
			metadata,
		)
		entry, err := scanQueueEntry(row)
		if err == nil {
			return entry, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return models.QueueEntry{}, false, pkgerrors.Wrap(err, "enqueue")
		}

		existing := `
			SELECT ` + queueColumns + `
			FROM notification_queue
			WHERE dedup_key = $1 AND status IN ('pending', 'processing')
			LIMIT 1`
		entry, err = scanQueueEntry(r.db.QueryRowContext(ctx, existing, params.DedupKey))
		if err == nil {
			return entry, false, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return models.QueueEntry{}, false, pkgerrors.Wrap(err, "enqueue dedup lookup")
		}
	}
	return models.QueueEntry{}, false, errors.New("enqueue: dedup race not settled")
}

func (r *queueRepository) ClaimBatch(ctx context.Context, limit int) ([]models.QueueEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := `
		WITH claimable AS (
			SELECT id
			FROM notification_queue
			WHERE status = 'pending' AND scheduled_at <= NOW()
			ORDER BY
				CASE priority
					WHEN 'critical' THEN 4
					WHEN 'high' THEN 3
					WHEN 'medium' THEN 2
					ELSE 1
				END DESC,
				scheduled_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE notification_queue q
		SET status = 'processing', updated_at = NOW()
		FROM claimable c
		WHERE q.id = c.id
		RETURNING ` + prefixedQueueColumns("q")

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "claim batch")
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// UPDATE ... RETURNING does not preserve the CTE's ordering.
	sort.SliceStable(entries, func(i, j int) bool {
		wi, wj := entries[i].Priority.Weight(), entries[j].Priority.Weight()
		if wi != wj {
			return wi > wj
		}
		return entries[i].ScheduledAt.Before(entries[j].ScheduledAt)
	})
	return entries, nil
}

func (r *queueRepository) MarkSent(ctx context.Context, id string) error {
	query := `
		UPDATE notification_queue
		SET status = 'sent', error_message = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`
	return r.execTransition(ctx, query, id)
}

func (r *queueRepository) MarkFailed(ctx context.Context, id, errorMessage string) (models.QueueEntry, error) {
	// attempts in the CASE arms refers to the pre-update value, so the
	// delay for failure n is base * 2^(n-1) capped.
	query := `
		UPDATE notification_queue
		SET attempts = attempts + 1,
		    error_message = $2,
		    status = CASE WHEN attempts + 1 >= max_attempts THEN 'failed' ELSE 'pending' END,
		    scheduled_at = CASE WHEN attempts + 1 >= max_attempts THEN scheduled_at
		                        ELSE NOW() + LEAST($3::float8, $4::float8 * power(2, attempts)) * interval '1 second' END,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
		RETURNING ` + queueColumns

	row := r.db.QueryRowContext(ctx, query, id, errorMessage, r.backoff.Cap.Seconds(), r.backoff.Base.Seconds())
	entry, err := scanQueueEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.QueueEntry{}, ErrInvalidState
		}
		return models.QueueEntry{}, pkgerrors.Wrap(err, "mark failed")
	}
	return entry, nil
}

func (r *queueRepository) MarkFailedTerminal(ctx context.Context, id, errorMessage string) error {
	query := `
		UPDATE notification_queue
		SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`
	res, err := r.db.ExecContext(ctx, query, id, errorMessage)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInvalidState
	}
	return nil
}

func (r *queueRepository) Cancel(ctx context.Context, id string) error {
	query := `
		UPDATE notification_queue
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`
	if err := r.execTransition(ctx, query, id); err != nil {
		if errors.Is(err, ErrInvalidState) {
			// Distinguish a missing entry from one past cancellation.
			if _, getErr := r.GetByID(ctx, id); errors.Is(getErr, ErrNotFound) {
				return ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (r *queueRepository) execTransition(ctx context.Context, query, id string) error {
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInvalidState
	}
	return nil
}

func (r *queueRepository) GetByID(ctx context.Context, id string) (models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM notification_queue WHERE id = $1`
	entry, err := scanQueueEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.QueueEntry{}, ErrNotFound
		}
		return models.QueueEntry{}, err
	}
	return entry, nil
}

func (r *queueRepository) List(ctx context.Context, filter QueueFilter) ([]models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM notification_queue WHERE 1=1`
	args := []interface{}{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		query += fmt.Sprintf(` AND priority = $%d`, len(args))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.QueueEntry, 0, limit)
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
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

func (r *queueRepository) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notification_queue WHERE status = 'pending'`).Scan(&count)
	return count, err
}

func scanQueueEntry(scanner interface {
	Scan(dest ...interface{}) error
}) (models.QueueEntry, error) {
	var (
		entry    models.QueueEntry
		errMsg   sql.NullString
		dedupKey sql.NullString
		metadata []byte
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.TemplateID,
		&entry.RecipientType,
		&entry.RecipientIdentifier,
		&entry.Priority,
		&entry.Status,
		&entry.ScheduledAt,
		&entry.Attempts,
		&entry.MaxAttempts,
		&errMsg,
		&dedupKey,
		&metadata,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	); err != nil {
		return models.QueueEntry{}, err
	}
	if errMsg.Valid {
		entry.ErrorMessage = &errMsg.String
	}
	if dedupKey.Valid {
		entry.DedupKey = &dedupKey.String
	}
	if len(metadata) > 0 {
		entry.Metadata = metadata
	}
	return entry, nil
}

func prefixedQueueColumns(alias string) string {
	return alias + `.id, ` + alias + `.template_id, ` + alias + `.recipient_type, ` + alias + `.recipient_identifier, ` +
		alias + `.priority, ` + alias + `.status, ` + alias + `.scheduled_at, ` + alias + `.attempts, ` +
		alias + `.max_attempts, ` + alias + `.error_message, ` + alias + `.dedup_key, ` + alias + `.metadata, ` +
		alias + `.created_at, ` + alias + `.updated_at`
}
