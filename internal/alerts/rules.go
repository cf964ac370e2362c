package alerts

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fitdesk/fitdesk-api/internal/models"
	"github.com/fitdesk/fitdesk-api/internal/repository"
)

// Candidate is one entity matching a rule's condition, ready to enqueue.
type Candidate struct {
	RecipientType       models.RecipientType
	RecipientIdentifier string
	DedupKey            string
	Metadata            map[string]string
}

// Rule is a named condition over domain state. Evaluate returns a candidate
// per matching entity; the dedup key must be deterministic and stable across
// scans for the same condition instance, so repeated scans of a still-true
// condition collapse onto the existing queue entry.
type Rule struct {
	ID       string
	Trigger  models.TriggerEvent
	Evaluate func(ctx context.Context) ([]Candidate, error)
}

// DefaultRules returns the rule set the scheduler evaluates each scan.
func DefaultRules(domain repository.MaintenanceRepository) []Rule {
	return []Rule{
		NewSLABreachRule(domain),
		NewLowStockRule(domain),
		NewMaintenanceDueRule(domain),
	}
}

// NewSLABreachRule alerts the assignee of every open ticket past its due
// date.
func NewSLABreachRule(domain repository.MaintenanceRepository) Rule {
	return Rule{
		ID:      "sla_breach",
		Trigger: models.TriggerSLABreach,
		Evaluate: func(ctx context.Context) ([]Candidate, error) {
			breaches, err := domain.GetSLABreaches(ctx)
			if err != nil {
				return nil, err
			}
			candidates := make([]Candidate, 0, len(breaches))
			for _, b := range breaches {
				candidates = append(candidates, Candidate{
					RecipientType:       models.RecipientEmail,
					RecipientIdentifier: b.AssigneeEmail,
					DedupKey:            fmt.Sprintf("sla:ticket:%d", b.TicketID),
					Metadata: map[string]string{
						"ticket_id":      strconv.FormatInt(b.TicketID, 10),
						"ticket_title":   b.Title,
						"equipment_name": b.EquipmentName,
						"due_date":       b.DueDate.Format("2006-01-02"),
					},
				})
			}
			return candidates, nil
		},
	}
}

// NewLowStockRule alerts the inventory manager for every item at or below
// its reorder floor.
func NewLowStockRule(domain repository.MaintenanceRepository) Rule {
	return Rule{
		ID:      "low_stock",
		Trigger: models.TriggerLowStock,
		Evaluate: func(ctx context.Context) ([]Candidate, error) {
			items, err := domain.GetLowStockItems(ctx)
			if err != nil {
				return nil, err
			}
			candidates := make([]Candidate, 0, len(items))
			for _, item := range items {
				candidates = append(candidates, Candidate{
					RecipientType:       models.RecipientEmail,
					RecipientIdentifier: item.ManagerEmail,
					DedupKey:            fmt.Sprintf("stock:item:%d", item.ItemID),
					Metadata: map[string]string{
						"item_name":     item.Name,
						"current_stock": strconv.Itoa(item.CurrentStock),
						"minimum_stock": strconv.Itoa(item.MinimumStock),
					},
				})
			}
			return candidates, nil
		},
	}
}

// NewMaintenanceDueRule alerts the caretaker of equipment whose scheduled
// service date has arrived without an open ticket covering it.
func NewMaintenanceDueRule(domain repository.MaintenanceRepository) Rule {
	return Rule{
		ID:      "maintenance_due",
		Trigger: models.TriggerMaintenanceDue,
		Evaluate: func(ctx context.Context) ([]Candidate, error) {
			due, err := domain.GetMaintenanceDue(ctx)
			if err != nil {
				return nil, err
			}
			candidates := make([]Candidate, 0, len(due))
			for _, d := range due {
				candidates = append(candidates, Candidate{
					RecipientType:       models.RecipientEmail,
					RecipientIdentifier: d.CaretakerEmail,
					DedupKey:            fmt.Sprintf("maintenance:equipment:%d", d.EquipmentID),
					Metadata: map[string]string{
						"equipment_name":  d.Name,
						"location":        d.Location,
						"next_service_at": d.NextServiceAt.Format("2006-01-02"),
					},
				})
			}
			return candidates, nil
		},
	}
}
