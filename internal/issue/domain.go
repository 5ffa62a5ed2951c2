package issue

import "time"

// Status tracks an issue from report to closure.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusInService Status = "IN_SERVICE"
	StatusResolved  Status = "RESOLVED"
	StatusClosed    Status = "CLOSED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInService, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Issue is a reported fault on one unit.
type Issue struct {
	ID          int64      `json:"id"`
	UnitID      int64      `json:"unit_id"`
	CustomerID  *int64     `json:"customer_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	OpenedBy    int64      `json:"opened_by"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateRequest opens an issue against a unit.
type CreateRequest struct {
	UnitID      int64  `json:"unit_id" validate:"required,gt=0"`
	CustomerID  *int64 `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// UpdateRequest edits the descriptive fields of an open issue.
type UpdateRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// ListFilter narrows issue listings.
type ListFilter struct {
	Status  *Status
	UnitID  *int64
	Page    int
	PerPage int
}
