package location

import "time"

// Type categorises a storage location.
type Type string

const (
	TypeWarehouse   Type = "WAREHOUSE"
	TypeShelf       Type = "SHELF"
	TypeServiceArea Type = "SERVICE_AREA"
	TypeOther       Type = "OTHER"
)

// IsValid checks if the location type is known.
func (t Type) IsValid() bool {
	switch t {
	case TypeWarehouse, TypeShelf, TypeServiceArea, TypeOther:
		return true
	default:
		return false
	}
}

// Location is a physical storage place with optional capacity. CurrentCount is
// a derived value: it is always recomputed from the units table rather than
// maintained incrementally, so concurrent movers cannot drift it permanently.
type Location struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Type         Type      `json:"type"`
	Address      string    `json:"address"`
	Notes        string    `json:"notes"`
	Capacity     *int      `json:"capacity,omitempty"`
	CurrentCount int       `json:"current_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateLocationRequest is the payload for creating a location.
type CreateLocationRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Type     Type   `json:"type" validate:"required"`
	Address  string `json:"address"`
	Notes    string `json:"notes"`
	Capacity *int   `json:"capacity,omitempty" validate:"omitempty,gt=0"`
}

// UpdateLocationRequest is the payload for updating a location. Nil fields are
// left unchanged; Capacity set to a pointer-to-zero clears the ceiling.
type UpdateLocationRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Type     *Type   `json:"type,omitempty"`
	Address  *string `json:"address,omitempty"`
	Notes    *string `json:"notes,omitempty"`
	Capacity *int    `json:"capacity,omitempty" validate:"omitempty,gte=0"`
}
