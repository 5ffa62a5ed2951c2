package warehouse

import (
	"context"
	"log/slog"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fixflow-erp/fixflow/internal/history"
	"github.com/fixflow-erp/fixflow/internal/notify"
	"github.com/fixflow-erp/fixflow/internal/product"
	"github.com/fixflow-erp/fixflow/internal/shared"
)

type fakeUnit struct {
	locationID *int64
	status     string
}

type memoryRepo struct {
	units     map[int64]*fakeUnit
	locations map[int64]*LocationRef
	countRecs []CountRecord
	nextCount int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		units:     make(map[int64]*fakeUnit),
		locations: make(map[int64]*LocationRef),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) GetUnitForUpdate(ctx context.Context, id int64) (unitRef, error) {
	u, ok := r.units[id]
	if !ok {
		return unitRef{}, ErrNotFound
	}
	return unitRef{ID: id, LocationID: u.locationID}, nil
}

func (r *memoryRepo) SetUnitLocation(ctx context.Context, unitID, locationID, actorID int64) error {
	u, ok := r.units[unitID]
	if !ok {
		return ErrNotFound
	}
	loc := locationID
	u.locationID = &loc
	return nil
}

func (r *memoryRepo) RecountLocation(ctx context.Context, locationID int64) (int, error) {
	loc, ok := r.locations[locationID]
	if !ok {
		return 0, ErrNotFound
	}
	count := 0
	for _, u := range r.units {
		if u.locationID != nil && *u.locationID == locationID {
			count++
		}
	}
	loc.CurrentCount = count
	return count, nil
}

func (r *memoryRepo) Querier() history.Querier { return nil }

func (r *memoryRepo) GetLocationRef(ctx context.Context, id int64) (LocationRef, error) {
	loc, ok := r.locations[id]
	if !ok {
		return LocationRef{}, ErrNotFound
	}
	return *loc, nil
}

func (r *memoryRepo) ListLocationRefs(ctx context.Context) ([]LocationRef, error) {
	ids := make([]int64, 0, len(r.locations))
	for id := range r.locations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]LocationRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.locations[id])
	}
	return out, nil
}

func (r *memoryRepo) InsertCount(ctx context.Context, rec *CountRecord) error {
	r.nextCount++
	rec.ID = r.nextCount
	r.countRecs = append(r.countRecs, *rec)
	return nil
}

func (r *memoryRepo) ListCounts(ctx context.Context, locationID int64, limit int) ([]CountRecord, error) {
	var out []CountRecord
	for i := len(r.countRecs) - 1; i >= 0 && len(out) < limit; i-- {
		if r.countRecs[i].LocationID == locationID {
			out = append(out, r.countRecs[i])
		}
	}
	return out, nil
}

func (r *memoryRepo) EmptyLocations(ctx context.Context) ([]LocationRef, error) {
	refs, _ := r.ListLocationRefs(ctx)
	var out []LocationRef
	for _, ref := range refs {
		occupied := false
		for _, u := range r.units {
			if u.locationID != nil && *u.locationID == ref.ID {
				occupied = true
				break
			}
		}
		if !occupied {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (r *memoryRepo) UnitsGroupedByStatus(ctx context.Context, statuses []string) ([]StatusGroup, error) {
	type key struct {
		loc    int64
		status string
	}
	counts := map[key]int{}
	for _, u := range r.units {
		for _, s := range statuses {
			if u.status == s {
				var loc int64
				if u.locationID != nil {
					loc = *u.locationID
				}
				counts[key{loc, s}]++
			}
		}
	}
	var groups []StatusGroup
	for k, c := range counts {
		name := ""
		if ref, ok := r.locations[k.loc]; ok {
			name = ref.Name
		}
		groups = append(groups, StatusGroup{LocationID: k.loc, LocationName: name, Status: k.status, Count: c})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Count > groups[j].Count })
	return groups, nil
}

type memoryLedger struct {
	entries []history.Entry
	nextID  int64
}

func (l *memoryLedger) Append(ctx context.Context, _ history.Querier, e history.Entry) (history.Entry, error) {
	l.nextID++
	e.ID = l.nextID
	l.entries = append(l.entries, e)
	return e, nil
}

type captureEmitter struct {
	events []notify.Event
}

func (c *captureEmitter) Emit(e notify.Event) { c.events = append(c.events, e) }

func intPtr(v int) *int     { return &v }
func locPtr(v int64) *int64 { return &v }

func fixture(t *testing.T) (*Service, *memoryRepo, *memoryLedger, *captureEmitter) {
	t.Helper()
	repo := newMemoryRepo()
	ledger := &memoryLedger{}
	emitter := &captureEmitter{}
	svc := NewService(repo, ledger, nil, nil, emitter, nil, slog.Default())
	return svc, repo, ledger, emitter
}

var actor = shared.Actor{UserID: 7, Role: "staff"}

func TestBulkMoveRelocatesAndRecounts(t *testing.T) {
	svc, repo, ledger, emitter := fixture(t)
	repo.locations[1] = &LocationRef{ID: 1, Name: "Shelf A", CurrentCount: 3}
	repo.locations[2] = &LocationRef{ID: 2, Name: "Shelf B"}
	repo.units[10] = &fakeUnit{locationID: locPtr(1)}
	repo.units[11] = &fakeUnit{locationID: locPtr(1)}
	repo.units[12] = &fakeUnit{locationID: locPtr(1)}

	result, err := svc.BulkMove(context.Background(), MoveRequest{
		UnitIDs:          []int64{10, 99, 12},
		TargetLocationID: 2,
		Reason:           "restock",
	}, actor)
	require.NoError(t, err)

	require.Equal(t, 2, result.TotalMoved)
	require.Equal(t, 1, result.TotalFailed)
	require.ElementsMatch(t, []int64{10, 12}, result.Moved)
	require.Equal(t, int64(99), result.Failed[0].UnitID)
	require.Equal(t, "Shelf B", result.TargetLocationName)

	require.Equal(t, 1, repo.locations[1].CurrentCount)
	require.Equal(t, 2, repo.locations[2].CurrentCount)

	require.Len(t, ledger.entries, 2)
	for _, e := range ledger.entries {
		require.Equal(t, history.EventLocationMove, e.EventType)
		require.Equal(t, int64(2), *e.LocationID)
		require.Contains(t, e.Description, "Shelf B")
		require.Contains(t, e.Description, "restock")
	}

	require.Len(t, emitter.events, 1)
	require.Equal(t, notify.EventUnitsMoved, emitter.events[0].Type)
	require.Equal(t, int64(2), emitter.events[0].LocationID)
}

func TestBulkMoveEmptyUnitList(t *testing.T) {
	svc, repo, ledger, emitter := fixture(t)
	repo.locations[2] = &LocationRef{ID: 2, Name: "Shelf B"}

	result, err := svc.BulkMove(context.Background(), MoveRequest{TargetLocationID: 2}, actor)
	require.NoError(t, err)
	require.Equal(t, 0, result.TotalMoved)
	require.Equal(t, 0, result.TotalFailed)
	require.Equal(t, "Shelf B", result.TargetLocationName)
	require.Empty(t, ledger.entries)
	require.Empty(t, emitter.events)
}

func TestBulkMoveUnknownTarget(t *testing.T) {
	svc, _, _, _ := fixture(t)
	_, err := svc.BulkMove(context.Background(), MoveRequest{
		UnitIDs:          []int64{10},
		TargetLocationID: 404,
	}, actor)
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}

func TestBulkMoveCapacityWarning(t *testing.T) {
	svc, repo, _, _ := fixture(t)
	repo.locations[1] = &LocationRef{ID: 1, Name: "Shelf A"}
	repo.locations[2] = &LocationRef{ID: 2, Name: "Shelf B", Capacity: intPtr(10)}
	for i := int64(0); i < 9; i++ {
		repo.units[100+i] = &fakeUnit{locationID: locPtr(1)}
	}

	result, err := svc.BulkMove(context.Background(), MoveRequest{
		UnitIDs:          []int64{100, 101, 102, 103, 104, 105, 106, 107, 108},
		TargetLocationID: 2,
	}, actor)
	require.NoError(t, err)
	require.Equal(t, 9, result.TotalMoved)
	require.NotEmpty(t, result.CapacityWarning)
	require.Contains(t, result.CapacityWarning, "FULL")
}

func TestCapacityThresholds(t *testing.T) {
	svc, repo, _, _ := fixture(t)
	repo.locations[1] = &LocationRef{ID: 1, Name: "A", Capacity: intPtr(10), CurrentCount: 9}
	repo.locations[2] = &LocationRef{ID: 2, Name: "B", Capacity: intPtr(10), CurrentCount: 8}
	repo.locations[3] = &LocationRef{ID: 3, Name: "C", Capacity: intPtr(10), CurrentCount: 5}
	repo.locations[4] = &LocationRef{ID: 4, Name: "D", CurrentCount: 50}

	report, err := svc.CheckCapacity(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, CapacityFull, report.Status)
	require.InDelta(t, 90.0, report.UtilizationRate, 0.001)
	require.Equal(t, 1, *report.Available)

	report, err = svc.CheckCapacity(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, CapacityWarning, report.Status)

	report, err = svc.CheckCapacity(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, CapacityOK, report.Status)

	// Without a configured capacity there is nothing to enforce.
	report, err = svc.CheckCapacity(context.Background(), 4)
	require.NoError(t, err)
	require.Equal(t, CapacityOK, report.Status)
	require.Nil(t, report.Available)
	require.Zero(t, report.UtilizationRate)
}

func TestCheckCapacityDoesNotMutate(t *testing.T) {
	svc, repo, _, _ := fixture(t)
	repo.locations[1] = &LocationRef{ID: 1, Name: "A", Capacity: intPtr(10), CurrentCount: 4}

	_, err := svc.CheckCapacity(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 4, repo.locations[1].CurrentCount)
}

func TestRecountIsIdempotent(t *testing.T) {
	svc, repo, _, _ := fixture(t)
	repo.locations[1] = &LocationRef{ID: 1, Name: "A"}
	repo.locations[2] = &LocationRef{ID: 2, Name: "B"}
	repo.units[10] = &fakeUnit{locationID: locPtr(1)}

	for i := 0; i < 2; i++ {
		_, err := svc.BulkMove(context.Background(), MoveRequest{
			UnitIDs:          []int64{10},
			TargetLocationID: 2,
		}, actor)
		require.NoError(t, err)
		require.Equal(t, 0, repo.locations[1].CurrentCount)
		require.Equal(t, 1, repo.locations[2].CurrentCount)
	}
}

func TestInventoryCountComputesVariance(t *testing.T) {
	svc, repo, _, _ := fixture(t)
	repo.locations[1] = &LocationRef{ID: 1, Name: "A", CurrentCount: 5}
	for i := int64(0); i < 5; i++ {
		repo.units[10+i] = &fakeUnit{locationID: locPtr(1)}
	}

	rec, err := svc.PerformInventoryCount(context.Background(), CountRequest{
		LocationID: 1,
		Items: []CountItemInput{
			{UnitID: 10, Expected: 5, Actual: 4, Notes: "one missing"},
		},
	}, actor)
	require.NoError(t, err)
	require.Equal(t, -1, rec.Items[0].Variance)
	require.Equal(t, actor.UserID, rec.CounterID)
	require.NotEmpty(t, rec.SessionID)

	// Counting never corrects state: units and occupancy stay untouched.
	require.Len(t, repo.units, 5)
	require.Equal(t, 5, repo.locations[1].CurrentCount)

	recs, err := svc.GetCountHistory(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, rec.SessionID, recs[0].SessionID)
}

func TestInventoryCountUnknownLocation(t *testing.T) {
	svc, _, _, _ := fixture(t)
	_, err := svc.PerformInventoryCount(context.Background(), CountRequest{
		LocationID: 404,
		Items:      []CountItemInput{{UnitID: 1, Expected: 1, Actual: 1}},
	}, actor)
	require.Error(t, err)
}

func TestStockAlerts(t *testing.T) {
	svc, repo, _, emitter := fixture(t)
	repo.locations[1] = &LocationRef{ID: 1, Name: "Empty Shelf"}
	repo.locations[2] = &LocationRef{ID: 2, Name: "Staging"}
	repo.units[10] = &fakeUnit{locationID: locPtr(2), status: string(product.StatusReadyForShipment)}
	repo.units[11] = &fakeUnit{locationID: locPtr(2), status: string(product.StatusReadyForShipment)}
	repo.units[12] = &fakeUnit{locationID: locPtr(2), status: string(product.StatusUnderRepair)}

	alerts, err := svc.StockAlerts(context.Background(), actor)
	require.NoError(t, err)

	byType := map[AlertType][]Alert{}
	for _, a := range alerts {
		byType[a.Type] = append(byType[a.Type], a)
	}

	require.Len(t, byType[AlertEmptyLocation], 1)
	require.Equal(t, "Empty Shelf", byType[AlertEmptyLocation][0].LocationName)

	require.Len(t, byType[AlertReadyForShipment], 1)
	require.Equal(t, 2, byType[AlertReadyForShipment][0].AffectedCount)

	require.Len(t, byType[AlertDefectiveStock], 1)
	require.Equal(t, SeverityWarning, byType[AlertDefectiveStock][0].Severity)

	require.Len(t, emitter.events, 1)
	require.Equal(t, notify.EventEmptyLocations, emitter.events[0].Type)
}

func TestStockAlertsEscalatesLargeBacklog(t *testing.T) {
	svc, repo, _, _ := fixture(t)
	repo.locations[1] = &LocationRef{ID: 1, Name: "Service"}
	for i := int64(0); i < 10; i++ {
		repo.units[100+i] = &fakeUnit{locationID: locPtr(1), status: string(product.StatusUnderRepair)}
	}

	alerts, err := svc.StockAlerts(context.Background(), actor)
	require.NoError(t, err)

	found := false
	for _, a := range alerts {
		if a.Type == AlertDefectiveStock {
			found = true
			require.Equal(t, SeverityError, a.Severity)
			require.Equal(t, 10, a.AffectedCount)
		}
	}
	require.True(t, found)
}
