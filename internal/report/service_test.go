package report

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	byStatus   []StatusCount
	inWarranty int
	expired    int
	openIssues int
	locations  []LocationUtilization
	scans      int
}

func (r *memoryRepo) UnitsByStatus(ctx context.Context) ([]StatusCount, error) {
	r.scans++
	return r.byStatus, nil
}

func (r *memoryRepo) WarrantyCounts(ctx context.Context) (int, int, error) {
	return r.inWarranty, r.expired, nil
}

func (r *memoryRepo) OpenIssues(ctx context.Context) (int, error) {
	return r.openIssues, nil
}

func (r *memoryRepo) LocationUtilization(ctx context.Context) ([]LocationUtilization, error) {
	return r.locations, nil
}

func TestOverviewAggregates(t *testing.T) {
	capacity := 10
	repo := &memoryRepo{
		byStatus: []StatusCount{
			{Status: "READY_FOR_SHIPMENT", Count: 1200},
			{Status: "DELIVERED", Count: 345},
		},
		inWarranty: 300,
		expired:    45,
		openIssues: 7,
		locations: []LocationUtilization{
			{LocationID: 1, Name: "A", Current: 9, Capacity: &capacity, UtilizationRate: 90},
		},
	}
	svc := NewService(repo, slog.Default())

	overview, err := svc.Overview(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1545, overview.TotalUnits)
	require.Equal(t, "1,545 units", overview.TotalUnitsLabel)
	require.Equal(t, 300, overview.InWarranty)
	require.Equal(t, 45, overview.WarrantyExpired)
	require.Equal(t, 7, overview.OpenIssues)
	require.Len(t, overview.Locations, 1)
	require.False(t, overview.GeneratedAt.IsZero())
}
