package shipment

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fixflow-erp/fixflow/internal/catalog"
	"github.com/fixflow-erp/fixflow/internal/history"
	"github.com/fixflow-erp/fixflow/internal/notify"
	"github.com/fixflow-erp/fixflow/internal/platform/httpx"
	"github.com/fixflow-erp/fixflow/internal/product"
	"github.com/fixflow-erp/fixflow/internal/shared"
)

type memoryRepo struct {
	shipments map[int64]Shipment
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{shipments: make(map[int64]Shipment)}
}

func (r *memoryRepo) Create(ctx context.Context, sh Shipment) (Shipment, error) {
	r.nextID++
	sh.ID = r.nextID
	r.shipments[sh.ID] = sh
	return sh, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Shipment, error) {
	sh, ok := r.shipments[id]
	if !ok {
		return Shipment{}, ErrNotFound
	}
	return sh, nil
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, sh Shipment) (Shipment, error) {
	if _, ok := r.shipments[sh.ID]; !ok {
		return Shipment{}, ErrNotFound
	}
	r.shipments[sh.ID] = sh
	return sh, nil
}

func (r *memoryRepo) List(ctx context.Context, status *Status, limit, offset int) ([]Shipment, int, error) {
	var out []Shipment
	for _, sh := range r.shipments {
		if status != nil && sh.Status != *status {
			continue
		}
		out = append(out, sh)
	}
	return out, len(out), nil
}

type fakeLifecycle struct {
	units map[int64]product.Unit
}

func (f *fakeLifecycle) Get(ctx context.Context, id int64) (product.Unit, error) {
	u, ok := f.units[id]
	if !ok {
		return product.Unit{}, httpx.ErrNotFound
	}
	return u, nil
}

func (f *fakeLifecycle) TransitionStatus(ctx context.Context, unitID int64, newStatus product.Status, extra product.TransitionExtra, actor shared.Actor) (product.Unit, error) {
	u, ok := f.units[unitID]
	if !ok {
		return product.Unit{}, httpx.ErrNotFound
	}
	if !u.Status.CanTransition(newStatus) {
		return product.Unit{}, product.ErrInvalidTransition
	}
	u.Status = newStatus
	if extra.OwnerID != nil {
		u.OwnerID = extra.OwnerID
		u.LocationID = nil
	}
	if extra.SoldAt != nil {
		u.SoldAt = extra.SoldAt
	}
	if extra.WarrantyStart != nil {
		u.WarrantyStart = extra.WarrantyStart
		u.WarrantyMonths = extra.WarrantyMonths
	}
	f.units[unitID] = u
	return u, nil
}

type fakeCatalog struct {
	models map[int64]catalog.Model
	errs   map[int64]error
}

func (f *fakeCatalog) Get(ctx context.Context, id int64) (catalog.Model, error) {
	if err := f.errs[id]; err != nil {
		return catalog.Model{}, err
	}
	m, ok := f.models[id]
	if !ok {
		return catalog.Model{}, httpx.ErrNotFound
	}
	return m, nil
}

type fakeRefs struct {
	ids map[int64]struct{}
}

func (f *fakeRefs) Exists(ctx context.Context, id int64) (bool, error) {
	_, ok := f.ids[id]
	return ok, nil
}

type memoryLedger struct {
	entries []history.Entry
}

func (l *memoryLedger) Append(ctx context.Context, _ history.Querier, e history.Entry) (history.Entry, error) {
	e.ID = int64(len(l.entries) + 1)
	l.entries = append(l.entries, e)
	return e, nil
}

type captureEmitter struct {
	events []notify.Event
}

func (c *captureEmitter) Emit(e notify.Event) { c.events = append(c.events, e) }

var actor = shared.Actor{UserID: 5, Role: "staff"}

func locPtr(v int64) *int64 { return &v }

func fixture(t *testing.T) (*Service, *memoryRepo, *fakeLifecycle, *memoryLedger, *captureEmitter) {
	t.Helper()
	repo := newMemoryRepo()
	lifecycle := &fakeLifecycle{units: map[int64]product.Unit{
		10: {ID: 10, ModelID: 1, Status: product.StatusReadyForShipment, LocationID: locPtr(2)},
		11: {ID: 11, ModelID: 1, Status: product.StatusReadyForShipment, LocationID: locPtr(2)},
	}}
	models := &fakeCatalog{models: map[int64]catalog.Model{
		1: {ID: 1, Code: "RX-100", WarrantyMonths: 12},
	}}
	customers := &fakeRefs{ids: map[int64]struct{}{100: {}}}
	ledger := &memoryLedger{}
	emitter := &captureEmitter{}
	svc := NewService(repo, lifecycle, models, customers, ledger, nil, emitter, slog.Default())
	return svc, repo, lifecycle, ledger, emitter
}

func TestCreateDraftRequiresReadyUnits(t *testing.T) {
	svc, _, lifecycle, _, _ := fixture(t)

	sh, err := svc.Create(context.Background(), CreateRequest{
		CustomerID: 100,
		UnitIDs:    []int64{10, 11},
		Carrier:    "DHL",
	}, actor)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, sh.Status)
	require.NotEmpty(t, sh.Code)
	require.Len(t, sh.UnitIDs, 2)

	lifecycle.units[12] = product.Unit{ID: 12, ModelID: 1, Status: product.StatusFirstProduction}
	_, err = svc.Create(context.Background(), CreateRequest{
		CustomerID: 100,
		UnitIDs:    []int64{12},
	}, actor)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateUnknownCustomer(t *testing.T) {
	svc, _, _, _, _ := fixture(t)
	_, err := svc.Create(context.Background(), CreateRequest{CustomerID: 999, UnitIDs: []int64{10}}, actor)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDispatchMovesUnitsToShipped(t *testing.T) {
	svc, _, lifecycle, ledger, emitter := fixture(t)
	sh, err := svc.Create(context.Background(), CreateRequest{CustomerID: 100, UnitIDs: []int64{10, 11}}, actor)
	require.NoError(t, err)

	result, err := svc.Dispatch(context.Background(), sh.ID, actor)
	require.NoError(t, err)
	require.Len(t, result.Succeeded, 2)
	require.Empty(t, result.Failed)
	require.Equal(t, StatusDispatched, result.Shipment.Status)
	require.NotNil(t, result.Shipment.DispatchedAt)

	require.Equal(t, product.StatusShipped, lifecycle.units[10].Status)
	require.Equal(t, product.StatusShipped, lifecycle.units[11].Status)

	require.Len(t, ledger.entries, 2)
	require.Equal(t, history.EventShipment, ledger.entries[0].EventType)
	require.Equal(t, sh.ID, *ledger.entries[0].ShipmentID)

	require.Len(t, emitter.events, 1)
	require.Equal(t, notify.EventShipmentUpdate, emitter.events[0].Type)
}

func TestDispatchIsFailSoft(t *testing.T) {
	svc, repo, lifecycle, _, _ := fixture(t)
	sh, err := svc.Create(context.Background(), CreateRequest{CustomerID: 100, UnitIDs: []int64{10, 11}}, actor)
	require.NoError(t, err)

	// One unit vanished between draft and dispatch.
	delete(lifecycle.units, 11)

	result, err := svc.Dispatch(context.Background(), sh.ID, actor)
	require.NoError(t, err)
	require.Equal(t, []int64{10}, result.Succeeded)
	require.Len(t, result.Failed, 1)
	require.Equal(t, int64(11), result.Failed[0].UnitID)
	require.Equal(t, StatusDispatched, repo.shipments[sh.ID].Status)
}

func TestDispatchRequiresDraft(t *testing.T) {
	svc, _, _, _, _ := fixture(t)
	sh, err := svc.Create(context.Background(), CreateRequest{CustomerID: 100, UnitIDs: []int64{10}}, actor)
	require.NoError(t, err)

	_, err = svc.Dispatch(context.Background(), sh.ID, actor)
	require.NoError(t, err)
	_, err = svc.Dispatch(context.Background(), sh.ID, actor)
	require.ErrorIs(t, err, httpx.ErrConflict)
}

func TestDeliverTransfersOwnershipAndWarranty(t *testing.T) {
	svc, _, lifecycle, _, _ := fixture(t)
	sh, err := svc.Create(context.Background(), CreateRequest{CustomerID: 100, UnitIDs: []int64{10, 11}}, actor)
	require.NoError(t, err)
	_, err = svc.Dispatch(context.Background(), sh.ID, actor)
	require.NoError(t, err)

	result, err := svc.Deliver(context.Background(), sh.ID, actor)
	require.NoError(t, err)
	require.Len(t, result.Succeeded, 2)
	require.Equal(t, StatusDelivered, result.Shipment.Status)

	for _, id := range []int64{10, 11} {
		u := lifecycle.units[id]
		require.Equal(t, product.StatusDelivered, u.Status)
		require.Equal(t, int64(100), *u.OwnerID)
		require.Nil(t, u.LocationID)
		require.NotNil(t, u.SoldAt)
		require.NotNil(t, u.WarrantyStart)
		require.Equal(t, 12, *u.WarrantyMonths)
	}
}

func TestDeliverFailsUnitWhenCatalogLookupFails(t *testing.T) {
	repo := newMemoryRepo()
	lifecycle := &fakeLifecycle{units: map[int64]product.Unit{
		10: {ID: 10, ModelID: 1, Status: product.StatusReadyForShipment, LocationID: locPtr(2)},
		11: {ID: 11, ModelID: 2, Status: product.StatusReadyForShipment, LocationID: locPtr(2)},
	}}
	models := &fakeCatalog{
		models: map[int64]catalog.Model{
			1: {ID: 1, Code: "RX-100", WarrantyMonths: 12},
			2: {ID: 2, Code: "RX-200", WarrantyMonths: 24},
		},
		errs: map[int64]error{2: errors.New("catalog timeout")},
	}
	customers := &fakeRefs{ids: map[int64]struct{}{100: {}}}
	svc := NewService(repo, lifecycle, models, customers, &memoryLedger{}, nil, &captureEmitter{}, slog.Default())

	sh, err := svc.Create(context.Background(), CreateRequest{CustomerID: 100, UnitIDs: []int64{10, 11}}, actor)
	require.NoError(t, err)
	_, err = svc.Dispatch(context.Background(), sh.ID, actor)
	require.NoError(t, err)

	result, err := svc.Deliver(context.Background(), sh.ID, actor)
	require.NoError(t, err)
	require.Equal(t, []int64{10}, result.Succeeded)
	require.Len(t, result.Failed, 1)
	require.Equal(t, int64(11), result.Failed[0].UnitID)

	// The unit with no warranty terms stays SHIPPED, unsold.
	u := lifecycle.units[11]
	require.Equal(t, product.StatusShipped, u.Status)
	require.Nil(t, u.OwnerID)
	require.Nil(t, u.SoldAt)
	require.Nil(t, u.WarrantyMonths)
	require.Equal(t, product.StatusDelivered, lifecycle.units[10].Status)
}

func TestDeliverRequiresDispatched(t *testing.T) {
	svc, _, _, _, _ := fixture(t)
	sh, err := svc.Create(context.Background(), CreateRequest{CustomerID: 100, UnitIDs: []int64{10}}, actor)
	require.NoError(t, err)

	_, err = svc.Deliver(context.Background(), sh.ID, actor)
	require.ErrorIs(t, err, httpx.ErrConflict)
}
