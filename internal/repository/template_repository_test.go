package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fitdesk/fitdesk-api/internal/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTemplateRepo(t *testing.T) (TemplateRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTemplateRepository(db), mock
}

func templateRows(templates ...models.Template) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "name", "type", "trigger_event", "subject_template", "body_template",
		"priority", "is_active", "created_at", "updated_at",
	})
	for _, tpl := range templates {
		rows.AddRow(
			tpl.ID, tpl.Name, tpl.Type, tpl.TriggerEvent, tpl.SubjectTemplate,
			tpl.BodyTemplate, tpl.Priority, tpl.IsActive, tpl.CreatedAt, tpl.UpdatedAt,
		)
	}
	return rows
}

func testTemplate(id, name string) models.Template {
	return models.Template{
		ID:              id,
		Name:            name,
		Type:            models.ChannelEmail,
		TriggerEvent:    models.TriggerSLABreach,
		SubjectTemplate: "SLA breached on ticket {{ticket_id}}",
		BodyTemplate:    "Hi {{name}}, ticket {{ticket_id}} for {{equipment_name}} is overdue.",
		Priority:        models.PriorityHigh,
		IsActive:        true,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
}

func TestTemplateCreate(t *testing.T) {
	repo, mock := newTemplateRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO notification_templates")).
		WithArgs("sla-breach-email", models.ChannelEmail, models.TriggerSLABreach,
			"SLA breached on ticket {{ticket_id}}",
			"Hi {{name}}, ticket {{ticket_id}} for {{equipment_name}} is overdue.",
			models.PriorityHigh, true).
		WillReturnRows(templateRows(testTemplate("tpl-1", "sla-breach-email")))

	tpl, err := repo.Create(context.Background(), TemplateParams{
		Name:            "sla-breach-email",
		Type:            models.ChannelEmail,
		TriggerEvent:    models.TriggerSLABreach,
		SubjectTemplate: "SLA breached on ticket {{ticket_id}}",
		BodyTemplate:    "Hi {{name}}, ticket {{ticket_id}} for {{equipment_name}} is overdue.",
		Priority:        models.PriorityHigh,
		IsActive:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, "tpl-1", tpl.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateCreate_DuplicateName(t *testing.T) {
	repo, mock := newTemplateRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO notification_templates")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "notification_templates_name_key"})

	_, err := repo.Create(context.Background(), TemplateParams{Name: "sla-breach-email"})
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestTemplateUpdate_NotFound(t *testing.T) {
	repo, mock := newTemplateRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE notification_templates")).
		WillReturnRows(templateRows())

	_, err := repo.Update(context.Background(), "tpl-404", TemplateParams{Name: "renamed"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTemplateGetByID_NotFound(t *testing.T) {
	repo, mock := newTemplateRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM notification_templates WHERE id")).
		WithArgs("tpl-404").
		WillReturnRows(templateRows())

	_, err := repo.GetByID(context.Background(), "tpl-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTemplateListActive_FiltersByTrigger(t *testing.T) {
	repo, mock := newTemplateRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE is_active = TRUE AND trigger_event = $1")).
		WithArgs(models.TriggerLowStock).
		WillReturnRows(templateRows(testTemplate("tpl-2", "low-stock-email")))

	templates, err := repo.ListActive(context.Background(), models.TriggerLowStock)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "low-stock-email", templates[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateDelete_Unreferenced(t *testing.T) {
	repo, mock := newTemplateRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notification_templates")).
		WithArgs("tpl-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), "tpl-1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateDelete_ReferencedIsConflict(t *testing.T) {
	repo, mock := newTemplateRepo(t)

	// Zero rows deleted but the template exists: a queue or log row holds
	// a reference.
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notification_templates")).
		WithArgs("tpl-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM notification_templates WHERE id")).
		WithArgs("tpl-1").
		WillReturnRows(templateRows(testTemplate("tpl-1", "sla-breach-email")))

	err := repo.Delete(context.Background(), "tpl-1")
	assert.ErrorIs(t, err, ErrTemplateInUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateDelete_NotFound(t *testing.T) {
	repo, mock := newTemplateRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notification_templates")).
		WithArgs("tpl-404").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM notification_templates WHERE id")).
		WithArgs("tpl-404").
		WillReturnRows(templateRows())

	err := repo.Delete(context.Background(), "tpl-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTemplateDelete_ForeignKeyRaceIsConflict(t *testing.T) {
	repo, mock := newTemplateRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM notification_templates")).
		WithArgs("tpl-1").
		WillReturnError(&pq.Error{Code: "23503", Constraint: "notification_queue_template_id_fkey"})

	err := repo.Delete(context.Background(), "tpl-1")
	assert.ErrorIs(t, err, ErrTemplateInUse)
}

func TestTemplateDeactivate_NotFound(t *testing.T) {
	repo, mock := newTemplateRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notification_templates SET is_active = FALSE")).
		WithArgs("tpl-404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Deactivate(context.Background(), "tpl-404")
	assert.ErrorIs(t, err, ErrNotFound)
}
