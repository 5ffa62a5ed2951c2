package warehouse

import (
	"time"

	"github.com/google/uuid"
)

// CapacityStatus flags location utilization. Enforcement is advisory: moves
// warn, they do not hard-fail.
type CapacityStatus string

const (
	CapacityOK      CapacityStatus = "OK"
	CapacityWarning CapacityStatus = "WARNING"
	CapacityFull    CapacityStatus = "FULL"
)

const (
	warningThreshold = 75.0
	fullThreshold    = 90.0
)

// capacityStatusFor derives the advisory flag from a utilization percentage.
func capacityStatusFor(utilization float64) CapacityStatus {
	switch {
	case utilization >= fullThreshold:
		return CapacityFull
	case utilization >= warningThreshold:
		return CapacityWarning
	default:
		return CapacityOK
	}
}

// CapacityReport is the pure-read answer to a capacity check.
type CapacityReport struct {
	LocationID      int64          `json:"location_id"`
	LocationName    string         `json:"location_name"`
	Current         int            `json:"current"`
	Capacity        *int           `json:"capacity,omitempty"`
	Available       *int           `json:"available,omitempty"`
	UtilizationRate float64        `json:"utilization_rate"`
	Status          CapacityStatus `json:"status"`
}

// MoveRequest relocates units to one target location.
type MoveRequest struct {
	UnitIDs          []int64 `json:"unit_ids" validate:"required"`
	TargetLocationID int64   `json:"target_location_id" validate:"required,gt=0"`
	Reason           string  `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// MoveFailure pairs a unit id with the failure it hit during a bulk move.
type MoveFailure struct {
	UnitID int64  `json:"unit_id"`
	Error  string `json:"error"`
}

// MoveResult is the fail-soft aggregate of a bulk move.
type MoveResult struct {
	Moved              []int64       `json:"moved"`
	Failed             []MoveFailure `json:"failed"`
	TotalMoved         int           `json:"total_moved"`
	TotalFailed        int           `json:"total_failed"`
	TargetLocationName string        `json:"target_location_name"`
	Timestamp          time.Time     `json:"timestamp"`
	CapacityWarning    string        `json:"capacity_warning,omitempty"`
}

// CountItemInput is one line of a counting session.
type CountItemInput struct {
	UnitID   int64  `json:"unit_id" validate:"required,gt=0"`
	Expected int    `json:"expected" validate:"gte=0"`
	Actual   int    `json:"actual" validate:"gte=0"`
	Notes    string `json:"notes,omitempty"`
}

// CountRequest starts a counting session for one location.
type CountRequest struct {
	LocationID int64            `json:"location_id" validate:"required,gt=0"`
	Items      []CountItemInput `json:"items" validate:"required,min=1,dive"`
}

// CountItem is a persisted line with its computed variance.
type CountItem struct {
	UnitID   int64  `json:"unit_id"`
	Expected int    `json:"expected"`
	Actual   int    `json:"actual"`
	Variance int    `json:"variance"`
	Notes    string `json:"notes,omitempty"`
}

// CountRecord is an immutable reconciliation session. It never corrects unit
// state: counts are observational, reconciliation is a human follow-up.
type CountRecord struct {
	ID          int64       `json:"id"`
	SessionID   uuid.UUID   `json:"session_id"`
	LocationID  int64       `json:"location_id"`
	CounterID   int64       `json:"counter_id"`
	Items       []CountItem `json:"items"`
	CompletedAt time.Time   `json:"completed_at"`
}

// AlertSeverity grades a stock alert.
type AlertSeverity string

const (
	SeverityInfo    AlertSeverity = "info"
	SeverityWarning AlertSeverity = "warning"
	SeverityError   AlertSeverity = "error"
)

// AlertType categorises stock alerts.
type AlertType string

const (
	AlertEmptyLocation    AlertType = "EMPTY_LOCATION"
	AlertReadyForShipment AlertType = "READY_FOR_SHIPMENT"
	AlertDefectiveStock   AlertType = "DEFECTIVE_STOCK"
)

// Alert is one categorized stock observation with a suggested action.
type Alert struct {
	Type            AlertType     `json:"type"`
	Message         string        `json:"message"`
	Severity        AlertSeverity `json:"severity"`
	LocationID      int64         `json:"location_id,omitempty"`
	LocationName    string        `json:"location_name,omitempty"`
	AffectedCount   int           `json:"affected_count"`
	SuggestedAction string        `json:"suggested_action"`
}

// StatusGroup is an aggregate of units in one status at one location.
type StatusGroup struct {
	LocationID   int64
	LocationName string
	Status       string
	Count        int
}

// LocationRef is the slice of location state the coordinator needs.
type LocationRef struct {
	ID           int64
	Name         string
	Capacity     *int
	CurrentCount int
}
