package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fitdesk/fitdesk-api/internal/models"
	"github.com/fitdesk/fitdesk-api/internal/notify"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService records trigger requests and reproduces the queue's dedup
// behavior: one live entry per key until Resolve removes it.
type fakeService struct {
	requests []notify.TriggerRequest
	live     map[string]models.QueueEntry
	err      error
}

func newFakeService() *fakeService {
	return &fakeService{live: map[string]models.QueueEntry{}}
}

func (f *fakeService) Enqueue(ctx context.Context, req notify.EnqueueRequest) (models.QueueEntry, bool, error) {
	return models.QueueEntry{}, false, errors.New("not used")
}

func (f *fakeService) EnqueueForTrigger(ctx context.Context, req notify.TriggerRequest) (models.QueueEntry, bool, error) {
	if f.err != nil {
		return models.QueueEntry{}, false, f.err
	}
	f.requests = append(f.requests, req)
	key := *req.DedupKey
	if existing, ok := f.live[key]; ok {
		return existing, false, nil
	}
	entry := models.QueueEntry{ID: "entry-" + key, Status: models.StatusPending, DedupKey: req.DedupKey}
	f.live[key] = entry
	return entry, true, nil
}

// Resolve simulates the entry reaching a terminal status.
func (f *fakeService) Resolve(key string) { delete(f.live, key) }

func (f *fakeService) NotifyTicketAssigned(ctx context.Context, ticketID int64, ticketTitle, equipmentName, assigneeEmail string, dueDate time.Time) error {
	return nil
}

func (f *fakeService) NotifyTicketResolved(ctx context.Context, ticketID int64, ticketTitle, equipmentName, memberEmail string) error {
	return nil
}

type fakeDomain struct {
	breaches    []models.SLABreach
	breachesErr error
	lowStock    []models.LowStockItem
	due         []models.MaintenanceDue
}

func (f *fakeDomain) GetSLABreaches(ctx context.Context) ([]models.SLABreach, error) {
	return f.breaches, f.breachesErr
}

func (f *fakeDomain) GetLowStockItems(ctx context.Context) ([]models.LowStockItem, error) {
	return f.lowStock, nil
}

func (f *fakeDomain) GetMaintenanceDue(ctx context.Context) ([]models.MaintenanceDue, error) {
	return f.due, nil
}

func (f *fakeDomain) ResolveRecipientContext(ctx context.Context, recipientType models.RecipientType, identifier string) (map[string]string, error) {
	return map[string]string{"email": identifier}, nil
}

func breach(ticketID int64) models.SLABreach {
	return models.SLABreach{
		TicketID:      ticketID,
		Title:         "Belt slipping",
		EquipmentName: "Treadmill T-800",
		Status:        "open",
		DueDate:       time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		AssigneeEmail: "tech@fitdesk.io",
	}
}

func TestProcessAlerts_SLABreachDedupAcrossScans(t *testing.T) {
	domain := &fakeDomain{breaches: []models.SLABreach{breach(42)}}
	svc := newFakeService()
	p := NewProcessor(DefaultRules(domain), svc, zerolog.Nop())

	result := p.ProcessAlerts(context.Background())
	assert.Equal(t, 1, result.AlertsTriggered)
	assert.Zero(t, result.Deduplicated)
	assert.Empty(t, result.Errors)

	require.Len(t, svc.requests, 1)
	req := svc.requests[0]
	assert.Equal(t, models.TriggerSLABreach, req.Trigger)
	assert.Equal(t, "tech@fitdesk.io", req.RecipientIdentifier)
	require.NotNil(t, req.DedupKey)
	assert.Equal(t, "sla:ticket:42", *req.DedupKey)
	assert.Equal(t, "42", req.Metadata["ticket_id"])

	// Still breaching on the next scan: no second alert.
	result = p.ProcessAlerts(context.Background())
	assert.Zero(t, result.AlertsTriggered)
	assert.Equal(t, 1, result.Deduplicated)
}

func TestProcessAlerts_ReAlertsAfterResolution(t *testing.T) {
	domain := &fakeDomain{breaches: []models.SLABreach{breach(42)}}
	svc := newFakeService()
	p := NewProcessor(DefaultRules(domain), svc, zerolog.Nop())

	result := p.ProcessAlerts(context.Background())
	require.Equal(t, 1, result.AlertsTriggered)

	// Entry reaches a terminal status; the still-true condition alerts again.
	svc.Resolve("sla:ticket:42")
	result = p.ProcessAlerts(context.Background())
	assert.Equal(t, 1, result.AlertsTriggered)
}

func TestProcessAlerts_DistinctKeysPerEntity(t *testing.T) {
	domain := &fakeDomain{
		breaches: []models.SLABreach{breach(42), breach(43)},
		lowStock: []models.LowStockItem{{
			ItemID:       7,
			Name:         "Cable",
			CurrentStock: 1,
			MinimumStock: 5,
			ManagerEmail: "inventory@fitdesk.io",
		}},
		due: []models.MaintenanceDue{{
			EquipmentID:    3,
			Name:           "Rowing machine",
			Location:       "Floor 2",
			NextServiceAt:  time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC),
			CaretakerEmail: "facilities@fitdesk.io",
		}},
	}
	svc := newFakeService()
	p := NewProcessor(DefaultRules(domain), svc, zerolog.Nop())

	result := p.ProcessAlerts(context.Background())
	assert.Equal(t, 4, result.AlertsTriggered)

	var keys []string
	for _, req := range svc.requests {
		keys = append(keys, *req.DedupKey)
	}
	assert.ElementsMatch(t, []string{
		"sla:ticket:42",
		"sla:ticket:43",
		"stock:item:7",
		"maintenance:equipment:3",
	}, keys)
}

func TestProcessAlerts_RuleFailureDoesNotAbortOthers(t *testing.T) {
	domain := &fakeDomain{
		breachesErr: errors.New("tickets table unavailable"),
		lowStock: []models.LowStockItem{{
			ItemID:       7,
			Name:         "Cable",
			CurrentStock: 1,
			MinimumStock: 5,
			ManagerEmail: "inventory@fitdesk.io",
		}},
	}
	svc := newFakeService()
	p := NewProcessor(DefaultRules(domain), svc, zerolog.Nop())

	result := p.ProcessAlerts(context.Background())
	assert.Equal(t, 1, result.AlertsTriggered, "low stock rule still runs")
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "sla_breach")
}

func TestProcessAlerts_EnqueueErrorRecordedPerCandidate(t *testing.T) {
	domain := &fakeDomain{breaches: []models.SLABreach{breach(42)}}
	svc := newFakeService()
	svc.err = errors.New("queue unavailable")
	p := NewProcessor(DefaultRules(domain), svc, zerolog.Nop())

	result := p.ProcessAlerts(context.Background())
	assert.Zero(t, result.AlertsTriggered)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "sla:ticket:42")
}

func TestProcessAlerts_NoConditions(t *testing.T) {
	p := NewProcessor(DefaultRules(&fakeDomain{}), newFakeService(), zerolog.Nop())

	result := p.ProcessAlerts(context.Background())
	assert.Zero(t, result.AlertsTriggered)
	assert.Zero(t, result.Deduplicated)
	assert.Empty(t, result.Errors)
}
