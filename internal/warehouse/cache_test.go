package warehouse

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func cacheFixture(t *testing.T) (*Service, *memoryRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)

	repo := newMemoryRepo()
	svc := NewService(repo, &memoryLedger{}, cache, nil, nil, nil, slog.Default())
	return svc, repo
}

func TestGetAllCapacitiesServesCachedSnapshot(t *testing.T) {
	svc, repo := cacheFixture(t)
	repo.locations[1] = &LocationRef{ID: 1, Name: "A", Capacity: intPtr(10), CurrentCount: 5}

	reports, err := svc.GetAllCapacities(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, 5, reports[0].Current)

	// A direct write bypassing the move path stays invisible until the TTL
	// or a bump expires the snapshot.
	repo.locations[1].CurrentCount = 9

	reports, err = svc.GetAllCapacities(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, reports[0].Current)
}

func TestBulkMoveBumpsCapacityCache(t *testing.T) {
	svc, repo := cacheFixture(t)
	repo.locations[1] = &LocationRef{ID: 1, Name: "A"}
	repo.locations[2] = &LocationRef{ID: 2, Name: "B"}
	repo.units[10] = &fakeUnit{locationID: locPtr(1)}

	reports, err := svc.GetAllCapacities(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, reports[1].Current)

	_, err = svc.BulkMove(context.Background(), MoveRequest{
		UnitIDs:          []int64{10},
		TargetLocationID: 2,
	}, actor)
	require.NoError(t, err)

	reports, err = svc.GetAllCapacities(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, reports[1].Current)
}
