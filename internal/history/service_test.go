package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fixflow-erp/fixflow/internal/platform/httpx"
)

type memoryRepo struct {
	entries []Entry
	nextID  int64
}

func (m *memoryRepo) Append(_ context.Context, _ Querier, e Entry) (Entry, error) {
	m.nextID++
	e.ID = m.nextID
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	m.entries = append(m.entries, e)
	return e, nil
}

func (m *memoryRepo) AppendMany(ctx context.Context, q Querier, entries []Entry) error {
	for _, e := range entries {
		if _, err := m.Append(ctx, q, e); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryRepo) ListFor(_ context.Context, unitID int64) ([]Entry, error) {
	var out []Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].UnitID == unitID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

func TestAppendAssignsIDAndKeepsOrder(t *testing.T) {
	repo := &memoryRepo{}
	ledger := NewLedger(repo)
	ctx := context.Background()

	first, err := ledger.Append(ctx, nil, Entry{UnitID: 1, EventType: EventStatusChange, Description: "to READY_FOR_SHIPMENT"})
	require.NoError(t, err)
	second, err := ledger.Append(ctx, nil, Entry{UnitID: 1, EventType: EventLocationMove, Description: "moved to Shelf A1"})
	require.NoError(t, err)
	require.Greater(t, second.ID, first.ID)

	entries, err := ledger.ListFor(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first.
	require.Equal(t, EventLocationMove, entries[0].EventType)
}

func TestAppendRejectsIncompleteEntries(t *testing.T) {
	ledger := NewLedger(&memoryRepo{})
	ctx := context.Background()

	_, err := ledger.Append(ctx, nil, Entry{EventType: EventStatusChange})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = ledger.Append(ctx, nil, Entry{UnitID: 3})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestAppendManyValidatesBeforeWriting(t *testing.T) {
	repo := &memoryRepo{}
	ledger := NewLedger(repo)

	err := ledger.AppendMany(context.Background(), nil, []Entry{
		{UnitID: 1, EventType: EventStatusChange},
		{UnitID: 0, EventType: EventStatusChange},
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Empty(t, repo.entries)
}

func TestListForRejectsInvalidUnit(t *testing.T) {
	ledger := NewLedger(&memoryRepo{})

	_, err := ledger.ListFor(context.Background(), 0)
	require.ErrorIs(t, err, httpx.ErrValidation)
}
