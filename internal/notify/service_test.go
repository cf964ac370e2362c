package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fitdesk/fitdesk-api/internal/models"
	"github.com/fitdesk/fitdesk-api/internal/repository"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTemplateRepo struct {
	templates map[string]models.Template
}

func (f *fakeTemplateRepo) Create(ctx context.Context, params repository.TemplateParams) (models.Template, error) {
	return models.Template{}, nil
}

func (f *fakeTemplateRepo) Update(ctx context.Context, id string, params repository.TemplateParams) (models.Template, error) {
	return models.Template{}, nil
}

func (f *fakeTemplateRepo) GetByID(ctx context.Context, id string) (models.Template, error) {
	tpl, ok := f.templates[id]
	if !ok {
		return models.Template{}, repository.ErrNotFound
	}
	return tpl, nil
}

func (f *fakeTemplateRepo) ListActive(ctx context.Context, trigger models.TriggerEvent) ([]models.Template, error) {
	var out []models.Template
	for _, tpl := range f.templates {
		if tpl.IsActive && (trigger == "" || tpl.TriggerEvent == trigger) {
			out = append(out, tpl)
		}
	}
	return out, nil
}

func (f *fakeTemplateRepo) List(ctx context.Context) ([]models.Template, error) { return nil, nil }
func (f *fakeTemplateRepo) Deactivate(ctx context.Context, id string) error     { return nil }
func (f *fakeTemplateRepo) Delete(ctx context.Context, id string) error         { return nil }

// fakeQueueRepo keeps entries in memory and honors dedup keys the way the
// partial unique index does: one non-terminal entry per key.
type fakeQueueRepo struct {
	entries []models.QueueEntry
	nextID  int
}

func (f *fakeQueueRepo) Enqueue(ctx context.Context, params repository.EnqueueParams) (models.QueueEntry, bool, error) {
	if params.DedupKey != nil {
		for _, e := range f.entries {
			if e.DedupKey != nil && *e.DedupKey == *params.DedupKey && !e.Status.Terminal() {
				return e, false, nil
			}
		}
	}
	f.nextID++
	entry := models.QueueEntry{
		ID:                  fmt.Sprintf("entry-%d", f.nextID),
		TemplateID:          params.TemplateID,
		RecipientType:       params.RecipientType,
		RecipientIdentifier: params.RecipientIdentifier,
		Priority:            params.Priority,
		Status:              models.StatusPending,
		ScheduledAt:         params.ScheduledAt,
		MaxAttempts:         params.MaxAttempts,
		DedupKey:            params.DedupKey,
		Metadata:            params.Metadata,
	}
	f.entries = append(f.entries, entry)
	return entry, true, nil
}

func (f *fakeQueueRepo) ClaimBatch(ctx context.Context, limit int) ([]models.QueueEntry, error) {
	return nil, nil
}
func (f *fakeQueueRepo) MarkSent(ctx context.Context, id string) error { return nil }
func (f *fakeQueueRepo) MarkFailed(ctx context.Context, id, errorMessage string) (models.QueueEntry, error) {
	return models.QueueEntry{}, nil
}
func (f *fakeQueueRepo) MarkFailedTerminal(ctx context.Context, id, errorMessage string) error {
	return nil
}
func (f *fakeQueueRepo) Cancel(ctx context.Context, id string) error { return nil }
func (f *fakeQueueRepo) GetByID(ctx context.Context, id string) (models.QueueEntry, error) {
	return models.QueueEntry{}, repository.ErrNotFound
}
func (f *fakeQueueRepo) List(ctx context.Context, filter repository.QueueFilter) ([]models.QueueEntry, error) {
	return f.entries, nil
}
func (f *fakeQueueRepo) PendingCount(ctx context.Context) (int64, error) {
	return int64(len(f.entries)), nil
}

func newTestService(templates ...models.Template) (Service, *fakeQueueRepo) {
	tplRepo := &fakeTemplateRepo{templates: map[string]models.Template{}}
	for _, tpl := range templates {
		tplRepo.templates[tpl.ID] = tpl
	}
	queue := &fakeQueueRepo{}
	return NewService(queue, tplRepo, 3, zerolog.Nop()), queue
}

func activeTemplate(id string, trigger models.TriggerEvent) models.Template {
	return models.Template{
		ID:           id,
		Name:         id,
		Type:         models.ChannelEmail,
		TriggerEvent: trigger,
		Priority:     models.PriorityMedium,
		IsActive:     true,
	}
}

func TestEnqueue_Defaults(t *testing.T) {
	svc, queue := newTestService(activeTemplate("tpl-1", models.TriggerSLABreach))

	entry, created, err := svc.Enqueue(context.Background(), EnqueueRequest{
		TemplateID:          "tpl-1",
		RecipientType:       models.RecipientEmail,
		RecipientIdentifier: "ops@fitdesk.io",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.PriorityMedium, entry.Priority, "priority falls back to the template default")
	assert.Equal(t, 3, entry.MaxAttempts)
	assert.WithinDuration(t, time.Now(), entry.ScheduledAt, time.Second)
	require.Len(t, queue.entries, 1)
}

func TestEnqueue_TemplateNotFound(t *testing.T) {
	svc, _ := newTestService()

	_, _, err := svc.Enqueue(context.Background(), EnqueueRequest{
		TemplateID:          "missing",
		RecipientType:       models.RecipientEmail,
		RecipientIdentifier: "ops@fitdesk.io",
	})
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestEnqueue_InactiveTemplateRejected(t *testing.T) {
	tpl := activeTemplate("tpl-1", models.TriggerSLABreach)
	tpl.IsActive = false
	svc, queue := newTestService(tpl)

	_, _, err := svc.Enqueue(context.Background(), EnqueueRequest{
		TemplateID:          "tpl-1",
		RecipientType:       models.RecipientEmail,
		RecipientIdentifier: "ops@fitdesk.io",
	})
	assert.ErrorIs(t, err, ErrTemplateInactive)
	assert.Empty(t, queue.entries, "nothing enqueued on rejection")
}

func TestEnqueue_ValidationErrors(t *testing.T) {
	svc, _ := newTestService(activeTemplate("tpl-1", models.TriggerSLABreach))

	tests := []struct {
		name string
		req  EnqueueRequest
	}{
		{
			name: "missing template id",
			req:  EnqueueRequest{RecipientType: models.RecipientEmail, RecipientIdentifier: "x@y.z"},
		},
		{
			name: "missing recipient",
			req:  EnqueueRequest{TemplateID: "tpl-1", RecipientType: models.RecipientEmail},
		},
		{
			name: "bad recipient type",
			req:  EnqueueRequest{TemplateID: "tpl-1", RecipientType: "robot", RecipientIdentifier: "x@y.z"},
		},
		{
			name: "bad priority",
			req:  EnqueueRequest{TemplateID: "tpl-1", RecipientType: models.RecipientEmail, RecipientIdentifier: "x@y.z", Priority: "urgent"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Enqueue(context.Background(), tc.req)
			assert.True(t, IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestEnqueue_DedupReturnsExisting(t *testing.T) {
	svc, queue := newTestService(activeTemplate("tpl-1", models.TriggerSLABreach))
	key := "sla:ticket:42"

	first, created, err := svc.Enqueue(context.Background(), EnqueueRequest{
		TemplateID:          "tpl-1",
		RecipientType:       models.RecipientEmail,
		RecipientIdentifier: "ops@fitdesk.io",
		DedupKey:            &key,
	})
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.Enqueue(context.Background(), EnqueueRequest{
		TemplateID:          "tpl-1",
		RecipientType:       models.RecipientEmail,
		RecipientIdentifier: "ops@fitdesk.io",
		DedupKey:            &key,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, queue.entries, 1)
}

func TestEnqueueForTrigger_NoActiveTemplate(t *testing.T) {
	tpl := activeTemplate("tpl-1", models.TriggerLowStock)
	tpl.IsActive = false
	svc, _ := newTestService(tpl)

	_, _, err := svc.EnqueueForTrigger(context.Background(), TriggerRequest{
		Trigger:             models.TriggerLowStock,
		RecipientType:       models.RecipientEmail,
		RecipientIdentifier: "ops@fitdesk.io",
	})
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestNotifyTicketAssigned_CarriesMetadata(t *testing.T) {
	svc, queue := newTestService(activeTemplate("tpl-1", models.TriggerTicketAssigned))

	err := svc.NotifyTicketAssigned(context.Background(), 42, "Belt slipping", "Treadmill T-800",
		"tech@fitdesk.io", time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, queue.entries, 1)
	entry := queue.entries[0]
	assert.Equal(t, "tech@fitdesk.io", entry.RecipientIdentifier)
	assert.JSONEq(t, `{
		"ticket_id": "42",
		"ticket_title": "Belt slipping",
		"equipment_name": "Treadmill T-800",
		"due_date": "2026-09-01"
	}`, string(entry.Metadata))
}
