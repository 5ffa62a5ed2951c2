package notify

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of lifecycle or inventory event.
type EventType string

const (
	EventStatusChanged  EventType = "unit.status_changed"
	EventUnitsMoved     EventType = "inventory.units_moved"
	EventEmptyLocations EventType = "inventory.empty_locations"
	EventIssueOpened    EventType = "issue.opened"
	EventShipmentUpdate EventType = "shipment.status_changed"
)

// Event is the structured payload handed to the notification collaborator
// after a successful commit. Delivery is best-effort and never awaited.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       EventType `json:"type"`
	UnitID     int64     `json:"unit_id,omitempty"`
	LocationID int64     `json:"location_id,omitempty"`
	OldStatus  string    `json:"old_status,omitempty"`
	NewStatus  string    `json:"new_status,omitempty"`
	Performer  int64     `json:"performer"`
	Message    string    `json:"message,omitempty"`
	At         time.Time `json:"at"`
}

// NewEvent stamps identity and time onto an event.
func NewEvent(t EventType) Event {
	return Event{ID: uuid.New(), Type: t, At: time.Now()}
}
