package product

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTransitionGraph(t *testing.T) {
	allowed := []struct {
		from, to Status
	}{
		{StatusFirstProduction, StatusFirstProductionIssue},
		{StatusFirstProduction, StatusFirstProductionScrapped},
		{StatusFirstProduction, StatusReadyForShipment},
		{StatusFirstProductionIssue, StatusReadyForShipment},
		{StatusReadyForShipment, StatusShipped},
		{StatusShipped, StatusDelivered},
		{StatusDelivered, StatusIssueCreated},
		{StatusDelivered, StatusReceived},
		{StatusIssueCreated, StatusReceived},
		{StatusReceived, StatusPreTestCompleted},
		{StatusPreTestCompleted, StatusUnderRepair},
		{StatusUnderRepair, StatusRepaired},
		{StatusUnderRepair, StatusServiceScrapped},
		{StatusRepaired, StatusReadyForShipment},
	}
	for _, tc := range allowed {
		require.True(t, tc.from.CanTransition(tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct {
		from, to Status
	}{
		{StatusDelivered, StatusFirstProduction},
		{StatusFirstProductionScrapped, StatusReadyForShipment},
		{StatusServiceScrapped, StatusUnderRepair},
		{StatusShipped, StatusReadyForShipment},
		{StatusFirstProduction, StatusDelivered},
	}
	for _, tc := range denied {
		require.False(t, tc.from.CanTransition(tc.to), "%s -> %s should be rejected", tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	require.True(t, StatusFirstProductionScrapped.IsTerminal())
	require.True(t, StatusServiceScrapped.IsTerminal())
	require.False(t, StatusDelivered.IsTerminal())
	require.False(t, StatusFirstProduction.IsTerminal())
}

func TestWarrantyStatusAt(t *testing.T) {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	months := 12
	u := Unit{WarrantyStart: &start, WarrantyMonths: &months}

	require.Equal(t, WarrantyInWarranty, u.WarrantyStatusAt(start.AddDate(0, 11, 29)))
	require.Equal(t, WarrantyExpired, u.WarrantyStatusAt(start.AddDate(0, 12, 0)))
	require.Equal(t, WarrantyExpired, u.WarrantyStatusAt(start.AddDate(2, 0, 0)))

	require.Equal(t, WarrantyNone, Unit{}.WarrantyStatusAt(time.Now()))
	require.Equal(t, WarrantyNone, Unit{WarrantyStart: &start}.WarrantyStatusAt(time.Now()))
}

func TestStatusValidity(t *testing.T) {
	require.True(t, StatusUnderRepair.IsValid())
	require.False(t, Status("SOMETHING_ELSE").IsValid())
}
