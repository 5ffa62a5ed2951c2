package serviceop

import "time"

// OpType identifies a step in the repair pipeline.
type OpType string

const (
	OpReceive        OpType = "RECEIVE"
	OpPreTest        OpType = "PRE_TEST"
	OpRepairStart    OpType = "REPAIR_START"
	OpRepairComplete OpType = "REPAIR_COMPLETE"
	OpScrap          OpType = "SCRAP"
)

// Operation is one recorded step performed on an issue's unit.
type Operation struct {
	ID          int64     `json:"id"`
	IssueID     int64     `json:"issue_id"`
	UnitID      int64     `json:"unit_id"`
	Type        OpType    `json:"type"`
	Notes       string    `json:"notes,omitempty"`
	PerformedBy int64     `json:"performed_by"`
	PerformedAt time.Time `json:"performed_at"`
}

// OpRequest carries the optional free-text findings or notes for a step.
type OpRequest struct {
	Notes string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}
