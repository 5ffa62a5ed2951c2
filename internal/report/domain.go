package report

import "time"

// StatusCount is one bar in the by-status breakdown.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// LocationUtilization is the occupancy summary for one location.
type LocationUtilization struct {
	LocationID      int64   `json:"location_id"`
	Name            string  `json:"name"`
	Current         int     `json:"current"`
	Capacity        *int    `json:"capacity,omitempty"`
	UtilizationRate float64 `json:"utilization_rate"`
}

// Overview is the dashboard aggregate. TotalUnitsLabel carries the
// locale-formatted total for direct display.
type Overview struct {
	GeneratedAt     time.Time             `json:"generated_at"`
	TotalUnits      int                   `json:"total_units"`
	TotalUnitsLabel string                `json:"total_units_label"`
	UnitsByStatus   []StatusCount         `json:"units_by_status"`
	InWarranty      int                   `json:"in_warranty"`
	WarrantyExpired int                   `json:"warranty_expired"`
	OpenIssues      int                   `json:"open_issues"`
	Locations       []LocationUtilization `json:"locations"`
}
