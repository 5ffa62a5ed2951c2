package history

import "time"

// EventType categorises lifecycle events recorded per unit.
type EventType string

const (
	EventProductionIntake EventType = "PRODUCTION_INTAKE"
	EventStatusChange     EventType = "STATUS_CHANGE"
	EventLocationMove     EventType = "LOCATION_MOVE"
	EventSerialAssigned   EventType = "SERIAL_ASSIGNED"
	EventOwnershipChange  EventType = "OWNERSHIP_CHANGE"
	EventIssueOpened      EventType = "ISSUE_OPENED"
	EventServiceOperation EventType = "SERVICE_OPERATION"
	EventShipment         EventType = "SHIPMENT"
	EventAdminDelete      EventType = "ADMIN_DELETE"
)

// Entry is an immutable audit record of one lifecycle event for a unit. The
// ledger is append-only: no operation updates or deletes entries.
type Entry struct {
	ID          int64     `json:"id"`
	UnitID      int64     `json:"unit_id"`
	EventType   EventType `json:"event_type"`
	Description string    `json:"description"`
	PerformerID int64     `json:"performer_id"`
	LocationID  *int64    `json:"location_id,omitempty"`
	IssueID     *int64    `json:"issue_id,omitempty"`
	ShipmentID  *int64    `json:"shipment_id,omitempty"`
	ServiceOpID *int64    `json:"service_op_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Refs carries optional links from an entry to related records.
type Refs struct {
	LocationID  *int64
	IssueID     *int64
	ShipmentID  *int64
	ServiceOpID *int64
}
