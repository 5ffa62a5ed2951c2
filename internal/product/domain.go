package product

import "time"

// Status is the lifecycle stage of a unit. The set is closed; transitions are
// validated against the graph below unless freeform mode is enabled.
type Status string

const (
	StatusFirstProduction         Status = "FIRST_PRODUCTION"
	StatusFirstProductionIssue    Status = "FIRST_PRODUCTION_ISSUE"
	StatusFirstProductionScrapped Status = "FIRST_PRODUCTION_SCRAPPED"
	StatusReadyForShipment        Status = "READY_FOR_SHIPMENT"
	StatusShipped                 Status = "SHIPPED"
	StatusDelivered               Status = "DELIVERED"
	StatusIssueCreated            Status = "ISSUE_CREATED"
	StatusReceived                Status = "RECEIVED"
	StatusPreTestCompleted        Status = "PRE_TEST_COMPLETED"
	StatusUnderRepair             Status = "UNDER_REPAIR"
	StatusRepaired                Status = "REPAIRED"
	StatusServiceScrapped         Status = "SERVICE_SCRAPPED"
)

// transitions is the lifecycle graph: production intake through shipment,
// delivery, the repair cycle, and the two scrap terminals.
var transitions = map[Status][]Status{
	StatusFirstProduction:      {StatusFirstProductionIssue, StatusFirstProductionScrapped, StatusReadyForShipment},
	StatusFirstProductionIssue: {StatusFirstProductionScrapped, StatusReadyForShipment},
	StatusReadyForShipment:     {StatusShipped},
	StatusShipped:              {StatusDelivered},
	StatusDelivered:            {StatusIssueCreated, StatusReceived},
	StatusIssueCreated:         {StatusReceived},
	StatusReceived:             {StatusPreTestCompleted},
	StatusPreTestCompleted:     {StatusUnderRepair},
	StatusUnderRepair:          {StatusRepaired, StatusServiceScrapped},
	StatusRepaired:             {StatusReadyForShipment},
}

// IsValid checks membership in the closed status set.
func (s Status) IsValid() bool {
	switch s {
	case StatusFirstProduction, StatusFirstProductionIssue, StatusFirstProductionScrapped,
		StatusReadyForShipment, StatusShipped, StatusDelivered, StatusIssueCreated,
		StatusReceived, StatusPreTestCompleted, StatusUnderRepair, StatusRepaired,
		StatusServiceScrapped:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition leaves the status.
func (s Status) IsTerminal() bool {
	return s == StatusFirstProductionScrapped || s == StatusServiceScrapped
}

// InStock reports whether the status implies the unit sits in a warehouse
// location.
func (s Status) InStock() bool {
	switch s {
	case StatusFirstProduction, StatusFirstProductionIssue, StatusReadyForShipment,
		StatusReceived, StatusPreTestCompleted, StatusUnderRepair, StatusRepaired:
		return true
	default:
		return false
	}
}

// CanTransition checks the lifecycle graph.
func (from Status) CanTransition(to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// WarrantyStatus is derived from warranty start + period versus now; it is a
// snapshot, never a stored truth.
type WarrantyStatus string

const (
	WarrantyNone       WarrantyStatus = "NONE"
	WarrantyInWarranty WarrantyStatus = "IN_WARRANTY"
	WarrantyExpired    WarrantyStatus = "EXPIRED"
)

// Unit is a single physical manufactured product instance.
type Unit struct {
	ID                 int64      `json:"id"`
	ModelID            int64      `json:"model_id"`
	Status             Status     `json:"status"`
	SerialNumber       *string    `json:"serial_number,omitempty"`
	LocationID         *int64     `json:"location_id,omitempty"`
	OwnerID            *int64     `json:"owner_id,omitempty"`
	WarrantyStart      *time.Time `json:"warranty_start,omitempty"`
	WarrantyMonths     *int       `json:"warranty_months,omitempty"`
	ProductionDate     time.Time  `json:"production_date"`
	SoldAt             *time.Time `json:"sold_at,omitempty"`
	HardwareVerifiedBy *int64     `json:"hardware_verified_by,omitempty"`
	HardwareVerifiedAt *time.Time `json:"hardware_verified_at,omitempty"`
	CreatedBy          int64      `json:"created_by"`
	UpdatedBy          int64      `json:"updated_by"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`

	// WarrantyStatus is computed at read time, see WarrantyStatusAt.
	WarrantyStatus WarrantyStatus `json:"warranty_status"`
}

// WarrantyStatusAt derives the warranty state at the given instant.
func (u Unit) WarrantyStatusAt(now time.Time) WarrantyStatus {
	if u.WarrantyStart == nil || u.WarrantyMonths == nil {
		return WarrantyNone
	}
	if now.Before(u.WarrantyStart.AddDate(0, *u.WarrantyMonths, 0)) {
		return WarrantyInWarranty
	}
	return WarrantyExpired
}

// TransitionExtra carries the optional fields a transition may set. Nil fields
// are left unchanged (partial update semantics).
type TransitionExtra struct {
	SerialNumber       *string    `json:"serial_number,omitempty"`
	HardwareVerifiedBy *int64     `json:"hardware_verified_by,omitempty"`
	HardwareVerifiedAt *time.Time `json:"hardware_verified_at,omitempty"`
	WarrantyStart      *time.Time `json:"warranty_start,omitempty"`
	WarrantyMonths     *int       `json:"warranty_months,omitempty" validate:"omitempty,gte=0,lte=120"`
	LocationID         *int64     `json:"location_id,omitempty"`
	OwnerID            *int64     `json:"owner_id,omitempty"`
	SoldAt             *time.Time `json:"sold_at,omitempty"`
	Note               string     `json:"note,omitempty"`
}

// IntakeRequest creates a batch of units at first production.
type IntakeRequest struct {
	ModelID        int64     `json:"model_id" validate:"required,gt=0"`
	Quantity       int       `json:"quantity" validate:"required,gt=0,lte=10000"`
	ProductionDate time.Time `json:"production_date" validate:"required"`
	LocationID     *int64    `json:"location_id,omitempty" validate:"omitempty,gt=0"`
}

// BulkIntakeRequest supports heterogeneous batches in one call.
type BulkIntakeRequest struct {
	ModelID int64         `json:"model_id" validate:"required,gt=0"`
	Batches []IntakeBatch `json:"batches" validate:"required,min=1,dive"`
}

// IntakeBatch is one homogeneous slice of a bulk intake.
type IntakeBatch struct {
	Quantity       int       `json:"quantity" validate:"required,gt=0,lte=10000"`
	ProductionDate time.Time `json:"production_date" validate:"required"`
	LocationID     *int64    `json:"location_id,omitempty" validate:"omitempty,gt=0"`
}

// TransitionRequest changes one unit's status.
type TransitionRequest struct {
	NewStatus Status          `json:"new_status" validate:"required"`
	Extra     TransitionExtra `json:"extra"`
}

// BulkTransitionRequest applies one transition across many units. When
// SerialPrefix is set, serials are assigned as prefix + zero-padded index in
// array order.
type BulkTransitionRequest struct {
	UnitIDs      []int64         `json:"unit_ids" validate:"required,min=1"`
	NewStatus    Status          `json:"new_status" validate:"required"`
	SerialPrefix string          `json:"serial_prefix,omitempty" validate:"omitempty,max=40"`
	Extra        TransitionExtra `json:"extra"`
}

// UnitError pairs a unit id with the failure it hit inside a batch.
type UnitError struct {
	UnitID int64  `json:"unit_id"`
	Error  string `json:"error"`
}

// BulkTransitionResult carries fail-soft batch outcome: parallel success and
// failure lists, never a thrown error for per-unit problems.
type BulkTransitionResult struct {
	Updated []Unit      `json:"updated"`
	Failed  []UnitError `json:"failed"`
}

// ListFilter narrows unit listings.
type ListFilter struct {
	Status     *Status
	ModelID    *int64
	LocationID *int64
	OwnerID    *int64
	Serial     string
	Page       int
	PerPage    int
}
