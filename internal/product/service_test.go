package product

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fixflow-erp/fixflow/internal/history"
	"github.com/fixflow-erp/fixflow/internal/notify"
	"github.com/fixflow-erp/fixflow/internal/platform/httpx"
	"github.com/fixflow-erp/fixflow/internal/shared"
)

type memoryRepo struct {
	units  map[int64]Unit
	counts map[int64]int
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{units: make(map[int64]Unit), counts: make(map[int64]int)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Unit, error) {
	u, ok := r.units[id]
	if !ok {
		return Unit{}, ErrNotFound
	}
	return u, nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter, limit, offset int) ([]Unit, int, error) {
	var out []Unit
	for _, u := range r.units {
		if filter.Status != nil && u.Status != *filter.Status {
			continue
		}
		out = append(out, u)
	}
	return out, len(out), nil
}

func (r *memoryRepo) GetUnitForUpdate(ctx context.Context, id int64) (Unit, error) {
	return r.Get(ctx, id)
}

func (r *memoryRepo) InsertUnits(ctx context.Context, units []Unit) ([]Unit, error) {
	out := make([]Unit, 0, len(units))
	for _, u := range units {
		r.nextID++
		u.ID = r.nextID
		r.units[u.ID] = u
		out = append(out, u)
	}
	return out, nil
}

func (r *memoryRepo) UpdateUnit(ctx context.Context, u Unit) error {
	if _, ok := r.units[u.ID]; !ok {
		return ErrNotFound
	}
	r.units[u.ID] = u
	return nil
}

func (r *memoryRepo) SerialExists(ctx context.Context, serial string, excludeID int64) (bool, error) {
	for _, u := range r.units {
		if u.ID != excludeID && u.SerialNumber != nil && *u.SerialNumber == serial {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryRepo) RecountLocation(ctx context.Context, locationID int64) (int, error) {
	count := 0
	for _, u := range r.units {
		if u.LocationID != nil && *u.LocationID == locationID {
			count++
		}
	}
	r.counts[locationID] = count
	return count, nil
}

func (r *memoryRepo) DeleteUnit(ctx context.Context, id int64) error {
	if _, ok := r.units[id]; !ok {
		return ErrNotFound
	}
	delete(r.units, id)
	return nil
}

func (r *memoryRepo) Querier() history.Querier { return nil }

type memoryLedger struct {
	entries []history.Entry
	nextID  int64
}

func (l *memoryLedger) Append(ctx context.Context, _ history.Querier, e history.Entry) (history.Entry, error) {
	l.nextID++
	e.ID = l.nextID
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	l.entries = append(l.entries, e)
	return e, nil
}

func (l *memoryLedger) AppendMany(ctx context.Context, q history.Querier, entries []history.Entry) error {
	for _, e := range entries {
		if _, err := l.Append(ctx, q, e); err != nil {
			return err
		}
	}
	return nil
}

func (l *memoryLedger) ListFor(ctx context.Context, unitID int64) ([]history.Entry, error) {
	var out []history.Entry
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].UnitID == unitID {
			out = append(out, l.entries[i])
		}
	}
	return out, nil
}

type fakeRefs struct {
	ids map[int64]bool
}

func (f fakeRefs) Exists(ctx context.Context, id int64) (bool, error) {
	return f.ids[id], nil
}

type captureEmitter struct {
	events []notify.Event
}

func (c *captureEmitter) Emit(e notify.Event) {
	c.events = append(c.events, e)
}

type fixture struct {
	repo    *memoryRepo
	ledger  *memoryLedger
	emitter *captureEmitter
	svc     *Service
}

func newFixture(t *testing.T, cfg ServiceConfig) *fixture {
	t.Helper()
	repo := newMemoryRepo()
	ledger := &memoryLedger{}
	emitter := &captureEmitter{}
	models := fakeRefs{ids: map[int64]bool{1: true}}
	locations := fakeRefs{ids: map[int64]bool{10: true, 11: true}}
	customers := fakeRefs{ids: map[int64]bool{100: true}}
	svc := NewService(repo, ledger, models, locations, customers, nil, emitter, nil, nil, nil, cfg)
	return &fixture{repo: repo, ledger: ledger, emitter: emitter, svc: svc}
}

var actor = shared.Actor{UserID: 7, Role: "staff"}

func (f *fixture) intake(t *testing.T, quantity int, locationID *int64) []Unit {
	t.Helper()
	units, err := f.svc.Intake(context.Background(), IntakeRequest{
		ModelID:        1,
		Quantity:       quantity,
		ProductionDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		LocationID:     locationID,
	}, actor)
	require.NoError(t, err)
	return units
}

func ptr[T any](v T) *T { return &v }

func TestIntakeCreatesUnitsWithHistory(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()

	units := f.intake(t, 3, ptr(int64(10)))
	require.Len(t, units, 3)
	for _, u := range units {
		require.Equal(t, StatusFirstProduction, u.Status)
		require.Nil(t, u.SerialNumber)
		require.NotNil(t, u.LocationID)
		require.Equal(t, int64(10), *u.LocationID)
	}
	require.Equal(t, 3, f.repo.counts[10])

	entries, err := f.svc.GetHistory(ctx, units[0].ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, history.EventProductionIntake, entries[0].EventType)
}

func TestIntakeRejectsBadInput(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()

	_, err := f.svc.Intake(ctx, IntakeRequest{ModelID: 1, Quantity: 0, ProductionDate: time.Now()}, actor)
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = f.svc.Intake(ctx, IntakeRequest{ModelID: 99, Quantity: 1, ProductionDate: time.Now()}, actor)
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = f.svc.Intake(ctx, IntakeRequest{ModelID: 1, Quantity: 1, ProductionDate: time.Now(), LocationID: ptr(int64(999))}, actor)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestBulkIntakeHeterogeneousBatches(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	units, err := f.svc.BulkIntake(context.Background(), BulkIntakeRequest{
		ModelID: 1,
		Batches: []IntakeBatch{
			{Quantity: 2, ProductionDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), LocationID: ptr(int64(10))},
			{Quantity: 1, ProductionDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), LocationID: ptr(int64(11))},
		},
	}, "", actor)
	require.NoError(t, err)
	require.Len(t, units, 3)
	require.Equal(t, 2, f.repo.counts[10])
	require.Equal(t, 1, f.repo.counts[11])
	require.Len(t, f.ledger.entries, 3)
}

func TestSerialNumberUniqueness(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	units := f.intake(t, 2, nil)

	_, err := f.svc.TransitionStatus(ctx, units[0].ID, StatusReadyForShipment, TransitionExtra{SerialNumber: ptr("SN-001")}, actor)
	require.NoError(t, err)

	_, err = f.svc.TransitionStatus(ctx, units[1].ID, StatusReadyForShipment, TransitionExtra{SerialNumber: ptr("SN-001")}, actor)
	require.ErrorIs(t, err, ErrSerialTaken)

	// the losing unit must be untouched
	u2, err := f.svc.Get(ctx, units[1].ID)
	require.NoError(t, err)
	require.Equal(t, StatusFirstProduction, u2.Status)
	require.Nil(t, u2.SerialNumber)
}

func TestTransitionPartialUpdate(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	units := f.intake(t, 1, nil)
	id := units[0].ID

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	u, err := f.svc.TransitionStatus(ctx, id, StatusReadyForShipment, TransitionExtra{
		SerialNumber:   ptr("SN-777"),
		WarrantyStart:  &start,
		WarrantyMonths: ptr(24),
	}, actor)
	require.NoError(t, err)
	require.Equal(t, "SN-777", *u.SerialNumber)
	require.Equal(t, 24, *u.WarrantyMonths)

	// transition with empty extra leaves every field in place
	u, err = f.svc.TransitionStatus(ctx, id, StatusShipped, TransitionExtra{}, actor)
	require.NoError(t, err)
	require.Equal(t, StatusShipped, u.Status)
	require.Equal(t, "SN-777", *u.SerialNumber)
	require.True(t, start.Equal(*u.WarrantyStart))
	require.Equal(t, 24, *u.WarrantyMonths)
}

func TestWarrantySetRequiresBothFields(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	units := f.intake(t, 1, nil)

	_, err := f.svc.TransitionStatus(context.Background(), units[0].ID, StatusReadyForShipment, TransitionExtra{
		WarrantyStart: ptr(time.Now()),
	}, actor)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestInvalidTransitionRejected(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	units := f.intake(t, 1, nil)
	id := units[0].ID

	_, err := f.svc.TransitionStatus(ctx, id, StatusDelivered, TransitionExtra{}, actor)
	require.ErrorIs(t, err, ErrInvalidTransition)

	u, err := f.svc.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusFirstProduction, u.Status)
}

func TestFreeformModeAllowsAnyTransition(t *testing.T) {
	f := newFixture(t, ServiceConfig{AllowFreeformTransitions: true})
	units := f.intake(t, 1, nil)

	u, err := f.svc.TransitionStatus(context.Background(), units[0].ID, StatusDelivered, TransitionExtra{}, actor)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, u.Status)
}

func TestOwnershipTransferClearsLocation(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	units := f.intake(t, 1, ptr(int64(10)))
	id := units[0].ID

	_, err := f.svc.TransitionStatus(ctx, id, StatusReadyForShipment, TransitionExtra{SerialNumber: ptr("SN-100")}, actor)
	require.NoError(t, err)
	_, err = f.svc.TransitionStatus(ctx, id, StatusShipped, TransitionExtra{}, actor)
	require.NoError(t, err)

	sold := time.Now()
	u, err := f.svc.TransitionStatus(ctx, id, StatusDelivered, TransitionExtra{
		OwnerID: ptr(int64(100)),
		SoldAt:  &sold,
	}, actor)
	require.NoError(t, err)
	require.Nil(t, u.LocationID)
	require.Equal(t, int64(100), *u.OwnerID)
	require.Equal(t, 0, f.repo.counts[10])
}

func TestBulkTransitionSerialPrefixAndFailSoft(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	units := f.intake(t, 3, nil)

	ids := []int64{units[0].ID, 9999, units[2].ID}
	result, err := f.svc.BulkTransitionStatus(context.Background(), BulkTransitionRequest{
		UnitIDs:      ids,
		NewStatus:    StatusReadyForShipment,
		SerialPrefix: "BX-",
	}, actor)
	require.NoError(t, err)
	require.Len(t, result.Updated, 2)
	require.Len(t, result.Failed, 1)
	require.Equal(t, int64(9999), result.Failed[0].UnitID)
	require.Equal(t, "BX-0001", *result.Updated[0].SerialNumber)
	require.Equal(t, "BX-0003", *result.Updated[1].SerialNumber)
}

func TestHistoryIsAppendOnly(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	units := f.intake(t, 1, nil)
	id := units[0].ID

	lengths := []int{}
	record := func() {
		entries, err := f.svc.GetHistory(ctx, id)
		require.NoError(t, err)
		lengths = append(lengths, len(entries))
	}
	record()
	_, err := f.svc.TransitionStatus(ctx, id, StatusReadyForShipment, TransitionExtra{}, actor)
	require.NoError(t, err)
	record()
	_, err = f.svc.TransitionStatus(ctx, id, StatusShipped, TransitionExtra{}, actor)
	require.NoError(t, err)
	record()

	for i := 1; i < len(lengths); i++ {
		require.Greater(t, lengths[i], lengths[i-1])
	}
}

func TestTransitionEmitsNotification(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	units := f.intake(t, 1, nil)
	require.Empty(t, f.emitter.events, "intake is an internal event")

	_, err := f.svc.TransitionStatus(context.Background(), units[0].ID, StatusReadyForShipment, TransitionExtra{}, actor)
	require.NoError(t, err)
	require.Len(t, f.emitter.events, 1)
	evt := f.emitter.events[0]
	require.Equal(t, notify.EventStatusChanged, evt.Type)
	require.Equal(t, string(StatusFirstProduction), evt.OldStatus)
	require.Equal(t, string(StatusReadyForShipment), evt.NewStatus)
}

func TestHardDeleteRequiresAdmin(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	units := f.intake(t, 1, ptr(int64(10)))
	id := units[0].ID

	err := f.svc.HardDelete(ctx, id, actor)
	require.ErrorIs(t, err, httpx.ErrForbidden)

	err = f.svc.HardDelete(ctx, id, shared.Actor{UserID: 1, Role: "admin"})
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 0, f.repo.counts[10])
}

func TestTransitionUnknownUnit(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	_, err := f.svc.TransitionStatus(context.Background(), 42, StatusReadyForShipment, TransitionExtra{}, actor)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReassigningDifferentSerialConflicts(t *testing.T) {
	f := newFixture(t, ServiceConfig{})
	ctx := context.Background()
	units := f.intake(t, 1, nil)
	id := units[0].ID

	_, err := f.svc.TransitionStatus(ctx, id, StatusReadyForShipment, TransitionExtra{SerialNumber: ptr("SN-A")}, actor)
	require.NoError(t, err)

	_, err = f.svc.TransitionStatus(ctx, id, StatusShipped, TransitionExtra{SerialNumber: ptr("SN-B")}, actor)
	require.ErrorIs(t, err, httpx.ErrConflict)

	// re-sending the same serial is a no-op, not a conflict
	u, err := f.svc.TransitionStatus(ctx, id, StatusShipped, TransitionExtra{SerialNumber: ptr("SN-A")}, actor)
	require.NoError(t, err)
	require.Equal(t, "SN-A", *u.SerialNumber)
}

var errLedgerDown = errors.New("ledger down")

type failingLedger struct{ memoryLedger }

func (f *failingLedger) Append(ctx context.Context, q history.Querier, e history.Entry) (history.Entry, error) {
	return history.Entry{}, errLedgerDown
}

func TestTransitionFailsWhenHistoryCannotBeWritten(t *testing.T) {
	repo := newMemoryRepo()
	ledger := &memoryLedger{}
	svc := NewService(repo, ledger, fakeRefs{ids: map[int64]bool{1: true}}, fakeRefs{ids: map[int64]bool{}}, fakeRefs{ids: map[int64]bool{}},
		nil, nil, nil, nil, nil, ServiceConfig{})
	units, err := svc.Intake(context.Background(), IntakeRequest{ModelID: 1, Quantity: 1, ProductionDate: time.Now()}, actor)
	require.NoError(t, err)

	svc.ledger = &failingLedger{}
	_, err = svc.TransitionStatus(context.Background(), units[0].ID, StatusReadyForShipment, TransitionExtra{}, actor)
	require.ErrorIs(t, err, errLedgerDown)
}
