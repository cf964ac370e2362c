package models

import "time"

// Read models over the ERP's domain tables. The alert processor only ever
// reads these; ticket and inventory lifecycles belong to the surrounding
// application.

// SLABreach is an open maintenance ticket whose due date has passed.
type SLABreach struct {
	TicketID      int64     `json:"ticket_id" db:"ticket_id"`
	Title         string    `json:"title" db:"title"`
	EquipmentName string    `json:"equipment_name" db:"equipment_name"`
	Status        string    `json:"status" db:"status"`
	DueDate       time.Time `json:"due_date" db:"due_date"`
	AssigneeEmail string    `json:"assignee_email" db:"assignee_email"`
}

// LowStockItem is a spare-part inventory item at or below its reorder floor.
type LowStockItem struct {
	ItemID       int64  `json:"item_id" db:"item_id"`
	Name         string `json:"name" db:"name"`
	CurrentStock int    `json:"current_stock" db:"current_stock"`
	MinimumStock int    `json:"minimum_stock" db:"minimum_stock"`
	ManagerEmail string `json:"manager_email" db:"manager_email"`
}

// MaintenanceDue is a piece of equipment whose next scheduled service date
// has arrived without an open ticket covering it.
type MaintenanceDue struct {
	EquipmentID    int64     `json:"equipment_id" db:"equipment_id"`
	Name           string    `json:"name" db:"name"`
	Location       string    `json:"location" db:"location"`
	NextServiceAt  time.Time `json:"next_service_at" db:"next_service_at"`
	CaretakerEmail string    `json:"caretaker_email" db:"caretaker_email"`
}
