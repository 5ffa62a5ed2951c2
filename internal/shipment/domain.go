package shipment

import "time"

// Status tracks a shipment from assembly to handover.
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusDispatched Status = "DISPATCHED"
	StatusDelivered  Status = "DELIVERED"
)

// Shipment groups units bound for one customer.
type Shipment struct {
	ID             int64      `json:"id"`
	Code           string     `json:"code"`
	Carrier        string     `json:"carrier,omitempty"`
	TrackingNumber string     `json:"tracking_number,omitempty"`
	Status         Status     `json:"status"`
	CustomerID     int64      `json:"customer_id"`
	UnitIDs        []int64    `json:"unit_ids"`
	CreatedBy      int64      `json:"created_by"`
	DispatchedAt   *time.Time `json:"dispatched_at,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CreateRequest assembles a draft shipment.
type CreateRequest struct {
	CustomerID     int64   `json:"customer_id" validate:"required,gt=0"`
	UnitIDs        []int64 `json:"unit_ids" validate:"required,min=1"`
	Carrier        string  `json:"carrier,omitempty" validate:"omitempty,max=100"`
	TrackingNumber string  `json:"tracking_number,omitempty" validate:"omitempty,max=100"`
}

// UnitFailure pairs a unit id with the error that kept it out of a batch.
type UnitFailure struct {
	UnitID int64  `json:"unit_id"`
	Error  string `json:"error"`
}

// BatchResult is the fail-soft outcome of a dispatch or delivery.
type BatchResult struct {
	Shipment  Shipment      `json:"shipment"`
	Succeeded []int64       `json:"succeeded"`
	Failed    []UnitFailure `json:"failed"`
}
