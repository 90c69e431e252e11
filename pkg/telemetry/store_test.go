package telemetry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anna-project/annad/pkg/database"
	"github.com/anna-project/annad/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	dbPath := filepath.Join(t.TempDir(), "telemetry.db")
	client, err := database.NewClient(ctx, database.Config{Path: dbPath, MaxOpenConns: 1})
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	return New(client, DefaultRingCapacity)
}

func snapshotAt(ts int64) models.Snapshot {
	return models.Snapshot{
		TS:      ts,
		HostID:  "host-1",
		Kernel:  "6.9.0",
		Distro:  "Arch Linux",
		UptimeS: 3600,
		CPU: models.CPUMetrics{
			LoadAvg1: 1.0,
			Cores:    []models.CPUCore{{Index: 0, UtilPct: 10, TempC: 45}},
		},
		Mem: models.MemMetrics{TotalMB: 16000, UsedMB: 4000},
	}
}

func TestStore_StoreAndGetLatestSnapshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok := store.GetLatestSnapshot()
	assert.False(t, ok, "empty ring has no latest snapshot")

	require.NoError(t, store.StoreSnapshot(ctx, snapshotAt(100)))
	require.NoError(t, store.StoreSnapshot(ctx, snapshotAt(200)))

	latest, ok := store.GetLatestSnapshot()
	require.True(t, ok)
	assert.Equal(t, int64(200), latest.TS)
}

func TestStore_RingEvictsBeyondCapacity(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "telemetry.db")
	client, err := database.NewClient(ctx, database.Config{Path: dbPath, MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := New(client, 2)

	require.NoError(t, store.StoreSnapshot(ctx, snapshotAt(1)))
	require.NoError(t, store.StoreSnapshot(ctx, snapshotAt(2)))
	require.NoError(t, store.StoreSnapshot(ctx, snapshotAt(3)))

	recent := store.GetRecentSnapshots(10)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(2), recent[0].TS)
	assert.Equal(t, int64(3), recent[1].TS)
}

func TestStore_QueryHistoryReadsThroughBeyondRing(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "telemetry.db")
	client, err := database.NewClient(ctx, database.Config{Path: dbPath, MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := New(client, 1)

	base := nowUnix() - 60
	require.NoError(t, store.StoreSnapshot(ctx, snapshotAt(base+1)))
	require.NoError(t, store.StoreSnapshot(ctx, snapshotAt(base+2)))

	history, err := store.QueryHistory(ctx, 1440)
	require.NoError(t, err)
	assert.Len(t, history, 2, "SQLite history is not bounded by ring capacity")
}

func TestStore_QueryHistoryReconstructsChildTables(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	snap := snapshotAt(nowUnix() - 60)
	snap.Disks = []models.DiskMetrics{{Mount: "/", FSType: "ext4", CapacityMB: 100000, UsedPct: 42}}
	snap.Net = []models.NetMetrics{{Interface: "eth0", LinkUp: true, RXRateKB: 12}}
	snap.Power = models.PowerMetrics{Percent: 80, OnAC: true}
	snap.GPUs = []models.GPUMetrics{{Device: "gpu0", UtilPct: 5}}
	snap.Processes = []models.ProcessMetrics{{PID: 1, Name: "init", State: "running"}}
	snap.Units = []models.SystemdUnitState{{Name: "sshd.service", Active: "active", Sub: "running"}}
	require.NoError(t, store.StoreSnapshot(ctx, snap))

	history, err := store.QueryHistory(ctx, 1440)
	require.NoError(t, err)
	require.Len(t, history, 1)

	got := history[0]
	require.Len(t, got.CPU.Cores, 1)
	assert.Equal(t, snap.CPU.Cores[0].UtilPct, got.CPU.Cores[0].UtilPct)
	assert.Equal(t, snap.Mem.TotalMB, got.Mem.TotalMB)
	require.Len(t, got.Disks, 1)
	assert.Equal(t, "/", got.Disks[0].Mount)
	require.Len(t, got.Net, 1)
	assert.Equal(t, "eth0", got.Net[0].Interface)
	assert.Equal(t, 80.0, got.Power.Percent)
	require.Len(t, got.GPUs, 1)
	assert.Equal(t, "gpu0", got.GPUs[0].Device)
	require.Len(t, got.Processes, 1)
	assert.Equal(t, "init", got.Processes[0].Name)
	require.Len(t, got.Units, 1)
	assert.Equal(t, "sshd.service", got.Units[0].Name)
}

func TestStore_QueryTrend_Direction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := nowUnix() - 60
	for i, util := range []float64{10, 30} {
		snap := snapshotAt(base + int64(i+1))
		snap.CPU.LoadAvg1 = util
		require.NoError(t, store.StoreSnapshot(ctx, snap))
	}

	trend, err := store.QueryTrend(ctx, "cpu_load_avg_1", 1440)
	require.NoError(t, err)
	assert.Equal(t, 2, trend.Samples)
	assert.Equal(t, TrendRising, trend.Direction)
	assert.Equal(t, 20.0, trend.Mean)
	assert.Equal(t, 30.0, trend.P99)
}

func TestStore_QueryTrend_SortsByValueNotArrivalOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Stored in descending chronological order (three successive ts carry
	// values 30,20,10). Unsorted, the SQL query's ts-ascending rows hand
	// percentile/direction the series [30,20,10]; p99's idx=2 would then
	// read 10 (the newest, smallest value) and direction would read
	// Falling. Sorted ascending by value ([10,20,30]) p99 reads 30 and
	// direction reads Rising, matching the ground-truth original.
	base := nowUnix() - 60
	for i, util := range []float64{30, 20, 10} {
		snap := snapshotAt(base + int64(i+1))
		snap.CPU.LoadAvg1 = util
		require.NoError(t, store.StoreSnapshot(ctx, snap))
	}

	trend, err := store.QueryTrend(ctx, "cpu_load_avg_1", 1440)
	require.NoError(t, err)
	assert.Equal(t, 30.0, trend.P99, "p99 over value-sorted {10,20,30} is the largest value")
	assert.Equal(t, TrendRising, trend.Direction,
		"direction compares first-half vs second-half mean of the value-sorted series, per the ground-truth original")
}

func TestStore_QueryTrend_UnknownMetric(t *testing.T) {
	store := newTestStore(t)
	_, err := store.QueryTrend(context.Background(), "not_a_metric", 60)
	assert.Error(t, err)
}

func TestPercentile_ClampsToLastIndex(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	assert.Equal(t, 4.0, percentile(values, 100))
	assert.Equal(t, 1.0, percentile(values, 0))
}

func TestDirection_StableWithinThreshold(t *testing.T) {
	assert.Equal(t, TrendStable, direction([]float64{50, 51, 52, 53}))
	assert.Equal(t, TrendFallng, direction([]float64{50, 50, 10, 10}))
}

func TestStore_PersonaScores(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.StorePersonaScores(ctx, 100, map[string]int{"guardian": 80, "mentor": 60}))
	require.NoError(t, store.StorePersonaScores(ctx, 200, map[string]int{"guardian": 90}))

	scores, err := store.QueryLatestPersonaScores(ctx)
	require.NoError(t, err)
	assert.Equal(t, 90, scores["guardian"], "most recent ts wins")
	assert.Equal(t, 60, scores["mentor"])
}

func TestStore_LogAlert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.LogAlert(ctx, 100, "warning", "disk", "root filesystem above 90%"))
}
