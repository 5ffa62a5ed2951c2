package catalog

import "time"

// Model is a manufacturable product model. Units reference a model at intake
// and the model's default warranty period applies at point of sale unless the
// transition overrides it.
type Model struct {
	ID             int64     `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	WarrantyMonths int       `json:"warranty_months"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreateModelRequest is the payload for creating a model.
type CreateModelRequest struct {
	Code           string `json:"code" validate:"required,max=50"`
	Name           string `json:"name" validate:"required,max=200"`
	Description    string `json:"description"`
	WarrantyMonths int    `json:"warranty_months" validate:"gte=0,lte=120"`
}

// UpdateModelRequest is the payload for updating a model. Nil fields are left
// unchanged.
type UpdateModelRequest struct {
	Name           *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Description    *string `json:"description,omitempty"`
	WarrantyMonths *int    `json:"warranty_months,omitempty" validate:"omitempty,gte=0,lte=120"`
}
