package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fitdesk/fitdesk-api/internal/models"
	"github.com/lib/pq"
)

type TemplateRepository interface {
	Create(ctx context.Context, params TemplateParams) (models.Template, error)
	Update(ctx context.Context, id string, params TemplateParams) (models.Template, error)
	GetByID(ctx context.Context, id string) (models.Template, error)
	// ListActive returns active templates, optionally narrowed to one
	// trigger event.
	ListActive(ctx context.Context, trigger models.TriggerEvent) ([]models.Template, error)
	List(ctx context.Context) ([]models.Template, error)
	Deactivate(ctx context.Context, id string) error

	// Delete physically removes a template no queue entry or delivery log
	// row references; referenced templates return ErrTemplateInUse and can
	// only be deactivated.
	Delete(ctx context.Context, id string) error
}

type TemplateParams struct {
	Name            string
	Type            models.ChannelType
	TriggerEvent    models.TriggerEvent
	SubjectTemplate string
	BodyTemplate    string
	Priority        models.Priority
	IsActive        bool
}

type templateRepository struct {
	db *sql.DB
}

func NewTemplateRepository(db *sql.DB) TemplateRepository {
	return &templateRepository{db: db}
}

const templateColumns = `id, name, type, trigger_event, subject_template, body_template, priority, is_active, created_at, updated_at`

func (r *templateRepository) Create(ctx context.Context, params TemplateParams) (models.Template, error) {
	query := `
		INSERT INTO notification_templates (name, type, trigger_event, subject_template, body_template, priority, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + templateColumns
	row := r.db.QueryRowContext(ctx, query,
		params.Name,
		params.Type,
		params.TriggerEvent,
		params.SubjectTemplate,
		params.BodyTemplate,
		params.Priority,
		params.IsActive,
	)
	tpl, err := scanTemplate(row)
	if err != nil {
		return models.Template{}, mapTemplateError(err)
	}
	return tpl, nil
}

func (r *templateRepository) Update(ctx context.Context, id string, params TemplateParams) (models.Template, error) {
	query := `
		UPDATE notification_templates
		SET name = $2,
		    type = $3,
		    trigger_event = $4,
		    subject_template = $5,
		    body_template = $6,
		    priority = $7,
		    is_active = $8,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + templateColumns
	row := r.db.QueryRowContext(ctx, query,
		id,
		params.Name,
		params.Type,
		params.TriggerEvent,
		params.SubjectTemplate,
		params.BodyTemplate,
		params.Priority,
		params.IsActive,
	)
	tpl, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Template{}, ErrNotFound
		}
		return models.Template{}, mapTemplateError(err)
	}
	return tpl, nil
}

func (r *templateRepository) GetByID(ctx context.Context, id string) (models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM notification_templates WHERE id = $1`
	tpl, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Template{}, ErrNotFound
		}
		return models.Template{}, err
	}
	return tpl, nil
}

func (r *templateRepository) ListActive(ctx context.Context, trigger models.TriggerEvent) ([]models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM notification_templates WHERE is_active = TRUE`
	args := []interface{}{}
	if trigger != "" {
		query += ` AND trigger_event = $1`
		args = append(args, trigger)
	}
	query += ` ORDER BY name`
	return r.queryTemplates(ctx, query, args...)
}

func (r *templateRepository) List(ctx context.Context) ([]models.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM notification_templates ORDER BY name`
	return r.queryTemplates(ctx, query)
}

func (r *templateRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE notification_templates SET is_active = FALSE, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate template: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *templateRepository) Delete(ctx context.Context, id string) error {
	query := `
		DELETE FROM notification_templates t
		WHERE t.id = $1
		  AND NOT EXISTS (SELECT 1 FROM notification_queue q WHERE q.template_id = t.id)
		  AND NOT EXISTS (SELECT 1 FROM delivery_log l WHERE l.template_name = t.name)`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		// The queue foreign key catches an enqueue racing the delete.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrTemplateInUse
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if affected == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return ErrTemplateInUse
	}
	return nil
}

func (r *templateRepository) queryTemplates(ctx context.Context, query string, args ...interface{}) ([]models.Template, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []models.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return templates, nil
}

func scanTemplate(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Template, error) {
	var tpl models.Template
	err := scanner.Scan(
		&tpl.ID,
		&tpl.Name,
		&tpl.Type,
		&tpl.TriggerEvent,
		&tpl.SubjectTemplate,
		&tpl.BodyTemplate,
		&tpl.Priority,
		&tpl.IsActive,
		&tpl.CreatedAt,
		&tpl.UpdatedAt,
	)
	return tpl, err
}

// mapTemplateError translates the unique-name constraint violation into
// ErrDuplicateName.
func mapTemplateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicateName
	}
	return err
}
