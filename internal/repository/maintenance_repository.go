package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fitdesk/fitdesk-api/internal/models"
)

// MaintenanceRepository is the read-only view over the ERP's domain tables
// consumed by the alert processor and the recipient resolver. Writes to
// tickets, inventory and equipment happen elsewhere in the application.
type MaintenanceRepository interface {
	GetSLABreaches(ctx context.Context) ([]models.SLABreach, error)
	GetLowStockItems(ctx context.Context) ([]models.LowStockItem, error)
	GetMaintenanceDue(ctx context.Context) ([]models.MaintenanceDue, error)

	// ResolveRecipientContext maps a recipient reference to the placeholder
	// values available when rendering a template for them.
	ResolveRecipientContext(ctx context.Context, recipientType models.RecipientType, identifier string) (map[string]string, error)
}

type maintenanceRepository struct {
	db *sql.DB
}

func NewMaintenanceRepository(db *sql.DB) MaintenanceRepository {
	return &maintenanceRepository{db: db}
}

func (r *maintenanceRepository) GetSLABreaches(ctx context.Context) ([]models.SLABreach, error) {
	const query = `
		SELECT t.id, t.title, e.name, t.status, t.due_date, t.assignee_email
		FROM tickets t
		JOIN equipment e ON e.id = t.equipment_id
		WHERE t.due_date < NOW()
		  AND t.status NOT IN ('resolved', 'closed', 'cancelled')
		ORDER BY t.due_date ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sla breaches: %w", err)
	}
	defer rows.Close()

	var breaches []models.SLABreach
	for rows.Next() {
		var b models.SLABreach
		if err := rows.Scan(&b.TicketID, &b.Title, &b.EquipmentName, &b.Status, &b.DueDate, &b.AssigneeEmail); err != nil {
			return nil, err
		}
		breaches = append(breaches, b)
	}
	return breaches, rows.Err()
}

func (r *maintenanceRepository) GetLowStockItems(ctx context.Context) ([]models.LowStockItem, error) {
	const query = `
		SELECT id, name, current_stock, minimum_stock, manager_email
		FROM inventory_items
		WHERE current_stock <= minimum_stock
		ORDER BY current_stock ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query low stock items: %w", err)
	}
	defer rows.Close()

	var items []models.LowStockItem
	for rows.Next() {
		var item models.LowStockItem
		if err := rows.Scan(&item.ItemID, &item.Name, &item.CurrentStock, &item.MinimumStock, &item.ManagerEmail); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *maintenanceRepository) GetMaintenanceDue(ctx context.Context) ([]models.MaintenanceDue, error) {
	const query = `
		SELECT e.id, e.name, e.location, e.next_service_at, e.caretaker_email
		FROM equipment e
		WHERE e.next_service_at <= NOW()
		  AND NOT EXISTS (
			SELECT 1 FROM tickets t
			WHERE t.equipment_id = e.id
			  AND t.status NOT IN ('resolved', 'closed', 'cancelled')
		  )
		ORDER BY e.next_service_at ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query maintenance due: %w", err)
	}
	defer rows.Close()

	var due []models.MaintenanceDue
	for rows.Next() {
		var d models.MaintenanceDue
		if err := rows.Scan(&d.EquipmentID, &d.Name, &d.Location, &d.NextServiceAt, &d.CaretakerEmail); err != nil {
			return nil, err
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

func (r *maintenanceRepository) ResolveRecipientContext(ctx context.Context, recipientType models.RecipientType, identifier string) (map[string]string, error) {
	switch recipientType {
	case models.RecipientEmail:
		// Raw address, nothing to look up.
		return map[string]string{"email": identifier}, nil
	case models.RecipientMember:
		const query = `SELECT name, email, phone FROM members WHERE email = $1 OR id::text = $1`
		var name, email, phone string
		if err := r.db.QueryRowContext(ctx, query, identifier).Scan(&name, &email, &phone); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return map[string]string{"name": name, "email": email, "phone": phone}, nil
	case models.RecipientTechnician:
		const query = `SELECT name, email, phone FROM technicians WHERE email = $1 OR id::text = $1`
		var name, email, phone string
		if err := r.db.QueryRowContext(ctx, query, identifier).Scan(&name, &email, &phone); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return map[string]string{"name": name, "email": email, "phone": phone}, nil
	default:
		return nil, fmt.Errorf("unknown recipient type %q", recipientType)
	}
}
