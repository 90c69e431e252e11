// Package telemetry implements the Telemetry Store (§4.3): a ring buffer
// of recent Snapshots backed by a transactional SQLite history, plus
// trend queries and persona scores.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/anna-project/annad/pkg/database"
	"github.com/anna-project/annad/pkg/models"
)

func nowUnix() int64 { return time.Now().Unix() }

// DefaultRingCapacity is the default number of in-memory snapshots kept,
// per §4.3.
const DefaultRingCapacity = 60

// Store is the Telemetry Store. One writer goroutine's worth of
// serialization is provided by storeMu — callers must not hold it across
// probe I/O (§5): collect results first, then call StoreSnapshot.
type Store struct {
	client   *database.Client
	capacity int

	ringMu sync.RWMutex
	ring   []models.Snapshot // ascending by ts, bounded at capacity

	storeMu sync.Mutex // serializes writes to SQLite, §5
}

// New constructs a Store over an already-migrated database client.
func New(client *database.Client, capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &Store{client: client, capacity: capacity}
}

// StoreSnapshot appends s to the ring (evicting the oldest beyond
// capacity) and persists it atomically: the parent snapshot row plus every
// child-table row for ts commit together, or none do.
func (s *Store) StoreSnapshot(ctx context.Context, snap models.Snapshot) error {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	if err := s.persist(ctx, snap); err != nil {
		return fmt.Errorf("telemetry: persist snapshot: %w", err)
	}

	s.ringMu.Lock()
	s.ring = append(s.ring, snap)
	if len(s.ring) > s.capacity {
		s.ring = s.ring[len(s.ring)-s.capacity:]
	}
	s.ringMu.Unlock()

	return nil
}

func (s *Store) persist(ctx context.Context, snap models.Snapshot) error {
	tx, err := s.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshot (ts, host_id, kernel, distro, uptime_s, load_avg_1, load_avg_5, load_avg_15)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.TS, snap.HostID, snap.Kernel, snap.Distro, snap.UptimeS,
		snap.CPU.LoadAvg1, snap.CPU.LoadAvg5, snap.CPU.LoadAvg15); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	for _, core := range snap.CPU.Cores {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO cpu (ts, core_idx, util_pct, temp_c) VALUES (?, ?, ?, ?)`,
			snap.TS, core.Index, core.UtilPct, core.TempC); err != nil {
			return fmt.Errorf("insert cpu: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO mem (ts, total_mb, used_mb, free_mb, cached_mb, swap_mb) VALUES (?, ?, ?, ?, ?, ?)`,
		snap.TS, snap.Mem.TotalMB, snap.Mem.UsedMB, snap.Mem.FreeMB, snap.Mem.CachedMB, snap.Mem.SwapMB); err != nil {
		return fmt.Errorf("insert mem: %w", err)
	}

	for _, d := range snap.Disks {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO disk (ts, mount, fs_type, capacity_mb, used_pct, inode_pct, read_rate_kb, write_rate_kb)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.TS, d.Mount, d.FSType, d.CapacityMB, d.UsedPct, d.InodePct, d.ReadRateKB, d.WriteRateKB); err != nil {
			return fmt.Errorf("insert disk: %w", err)
		}
	}

	for _, n := range snap.Net {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO net (ts, interface, link_up, rx_rate_kb, tx_rate_kb, address_redacted, rssi_redacted, vpn)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.TS, n.Interface, n.LinkUp, n.RXRateKB, n.TXRateKB, n.AddressRedacted, n.RSSIRedacted, n.VPN); err != nil {
			return fmt.Errorf("insert net: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO power (ts, percent, on_ac, time_to_empty_m, time_to_full_m, watts) VALUES (?, ?, ?, ?, ?, ?)`,
		snap.TS, snap.Power.Percent, snap.Power.OnAC, snap.Power.TimeToEmptyM, snap.Power.TimeToFullM, snap.Power.Watts); err != nil {
		return fmt.Errorf("insert power: %w", err)
	}

	for _, g := range snap.GPUs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO gpu (ts, device, util_pct, temp_c, mem_used_mb, mem_total_mb) VALUES (?, ?, ?, ?, ?, ?)`,
			snap.TS, g.Device, g.UtilPct, g.TempC, g.MemUsedMB, g.MemTotalMB); err != nil {
			return fmt.Errorf("insert gpu: %w", err)
		}
	}

	for _, p := range snap.Processes {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO process (ts, pid, name, util_pct, mem_mb, state) VALUES (?, ?, ?, ?, ?, ?)`,
			snap.TS, p.PID, p.Name, p.UtilPct, p.MemMB, p.State); err != nil {
			return fmt.Errorf("insert process: %w", err)
		}
	}

	for _, u := range snap.Units {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO systemd_unit (ts, name, active, sub) VALUES (?, ?, ?, ?)`,
			snap.TS, u.Name, u.Active, u.Sub); err != nil {
			return fmt.Errorf("insert systemd_unit: %w", err)
		}
	}

	return tx.Commit()
}

// GetLatestSnapshot returns the snapshot with maximal ts from the ring, or
// false if the ring is empty (§8 invariant 3).
func (s *Store) GetLatestSnapshot() (models.Snapshot, bool) {
	s.ringMu.RLock()
	defer s.ringMu.RUnlock()
	if len(s.ring) == 0 {
		return models.Snapshot{}, false
	}
	return s.ring[len(s.ring)-1], true
}

// GetRecentSnapshots returns up to n snapshots from the ring, most recent last.
func (s *Store) GetRecentSnapshots(n int) []models.Snapshot {
	s.ringMu.RLock()
	defer s.ringMu.RUnlock()
	if n <= 0 || n > len(s.ring) {
		n = len(s.ring)
	}
	out := make([]models.Snapshot, n)
	copy(out, s.ring[len(s.ring)-n:])
	return out
}

// LogAlert appends an alert row.
func (s *Store) LogAlert(ctx context.Context, ts int64, level, component, message string) error {
	_, err := s.client.DB().ExecContext(ctx,
		`INSERT INTO alerts (ts, level, component, message) VALUES (?, ?, ?, ?)`,
		ts, level, component, message)
	if err != nil {
		return fmt.Errorf("telemetry: log alert: %w", err)
	}
	return nil
}

// StorePersonaScores persists one row per (ts, persona).
func (s *Store) StorePersonaScores(ctx context.Context, ts int64, scores map[string]int) error {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	tx, err := s.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for persona, score := range scores {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO persona_scores (ts, persona, score) VALUES (?, ?, ?)`,
			ts, persona, score); err != nil {
			return fmt.Errorf("telemetry: store persona score %q: %w", persona, err)
		}
	}
	return tx.Commit()
}

// QueryLatestPersonaScores returns the most recent score for each persona.
func (s *Store) QueryLatestPersonaScores(ctx context.Context) (map[string]int, error) {
	rows, err := s.client.DB().QueryContext(ctx,
		`SELECT persona, score FROM persona_scores ps
		 WHERE ts = (SELECT MAX(ts) FROM persona_scores ps2 WHERE ps2.persona = ps.persona)`)
	if err != nil {
		return nil, fmt.Errorf("telemetry: query persona scores: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var persona string
		var score int
		if err := rows.Scan(&persona, &score); err != nil {
			return nil, err
		}
		out[persona] = score
	}
	return out, rows.Err()
}

// QueryHistory returns every persisted snapshot whose ts falls within the
// last windowMinutes, oldest first, reconstructed from the snapshot row
// plus every child table (cpu/mem/disk/net/power/gpu/process/
// systemd_unit) it was stored across in persist. Unlike GetRecentSnapshots
// this reads through to SQLite and is not bounded by the ring capacity.
func (s *Store) QueryHistory(ctx context.Context, windowMinutes int) ([]models.Snapshot, error) {
	cutoff := nowUnix() - int64(windowMinutes)*60

	rows, err := s.client.DB().QueryContext(ctx,
		`SELECT ts, host_id, kernel, distro, uptime_s, load_avg_1, load_avg_5, load_avg_15
		 FROM snapshot WHERE ts >= ? ORDER BY ts ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("telemetry: query history: %w", err)
	}

	var out []models.Snapshot
	byTS := make(map[int64]*models.Snapshot)
	for rows.Next() {
		var snap models.Snapshot
		if err := rows.Scan(&snap.TS, &snap.HostID, &snap.Kernel, &snap.Distro, &snap.UptimeS,
			&snap.CPU.LoadAvg1, &snap.CPU.LoadAvg5, &snap.CPU.LoadAvg15); err != nil {
			rows.Close()
			return nil, fmt.Errorf("telemetry: scan history row: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	for i := range out {
		byTS[out[i].TS] = &out[i]
	}

	if err := s.fillHistoryChildren(ctx, cutoff, byTS); err != nil {
		return nil, err
	}
	return out, nil
}

// fillHistoryChildren attaches every child-table row for ts >= cutoff onto
// the matching *models.Snapshot in byTS. Rows for a ts not in byTS (should
// not happen: every child row is written in the same transaction as its
// parent snapshot row) are skipped.
func (s *Store) fillHistoryChildren(ctx context.Context, cutoff int64, byTS map[int64]*models.Snapshot) error {
	cpuRows, err := s.client.DB().QueryContext(ctx,
		`SELECT ts, core_idx, util_pct, temp_c FROM cpu WHERE ts >= ? ORDER BY ts ASC, core_idx ASC`, cutoff)
	if err != nil {
		return fmt.Errorf("telemetry: query history cpu: %w", err)
	}
	for cpuRows.Next() {
		var ts int64
		var core models.CPUCore
		if err := cpuRows.Scan(&ts, &core.Index, &core.UtilPct, &core.TempC); err != nil {
			cpuRows.Close()
			return fmt.Errorf("telemetry: scan history cpu: %w", err)
		}
		if snap, ok := byTS[ts]; ok {
			snap.CPU.Cores = append(snap.CPU.Cores, core)
		}
	}
	if err := cpuRows.Err(); err != nil {
		cpuRows.Close()
		return err
	}
	cpuRows.Close()

	memRows, err := s.client.DB().QueryContext(ctx,
		`SELECT ts, total_mb, used_mb, free_mb, cached_mb, swap_mb FROM mem WHERE ts >= ?`, cutoff)
	if err != nil {
		return fmt.Errorf("telemetry: query history mem: %w", err)
	}
	for memRows.Next() {
		var ts int64
		var mem models.MemMetrics
		if err := memRows.Scan(&ts, &mem.TotalMB, &mem.UsedMB, &mem.FreeMB, &mem.CachedMB, &mem.SwapMB); err != nil {
			memRows.Close()
			return fmt.Errorf("telemetry: scan history mem: %w", err)
		}
		if snap, ok := byTS[ts]; ok {
			snap.Mem = mem
		}
	}
	if err := memRows.Err(); err != nil {
		memRows.Close()
		return err
	}
	memRows.Close()

	diskRows, err := s.client.DB().QueryContext(ctx,
		`SELECT ts, mount, fs_type, capacity_mb, used_pct, inode_pct, read_rate_kb, write_rate_kb
		 FROM disk WHERE ts >= ? ORDER BY ts ASC`, cutoff)
	if err != nil {
		return fmt.Errorf("telemetry: query history disk: %w", err)
	}
	for diskRows.Next() {
		var ts int64
		var d models.DiskMetrics
		if err := diskRows.Scan(&ts, &d.Mount, &d.FSType, &d.CapacityMB, &d.UsedPct, &d.InodePct,
			&d.ReadRateKB, &d.WriteRateKB); err != nil {
			diskRows.Close()
			return fmt.Errorf("telemetry: scan history disk: %w", err)
		}
		if snap, ok := byTS[ts]; ok {
			snap.Disks = append(snap.Disks, d)
		}
	}
	if err := diskRows.Err(); err != nil {
		diskRows.Close()
		return err
	}
	diskRows.Close()

	netRows, err := s.client.DB().QueryContext(ctx,
		`SELECT ts, interface, link_up, rx_rate_kb, tx_rate_kb, address_redacted, rssi_redacted, vpn
		 FROM net WHERE ts >= ? ORDER BY ts ASC`, cutoff)
	if err != nil {
		return fmt.Errorf("telemetry: query history net: %w", err)
	}
	for netRows.Next() {
		var ts int64
		var n models.NetMetrics
		if err := netRows.Scan(&ts, &n.Interface, &n.LinkUp, &n.RXRateKB, &n.TXRateKB,
			&n.AddressRedacted, &n.RSSIRedacted, &n.VPN); err != nil {
			netRows.Close()
			return fmt.Errorf("telemetry: scan history net: %w", err)
		}
		if snap, ok := byTS[ts]; ok {
			snap.Net = append(snap.Net, n)
		}
	}
	if err := netRows.Err(); err != nil {
		netRows.Close()
		return err
	}
	netRows.Close()

	powerRows, err := s.client.DB().QueryContext(ctx,
		`SELECT ts, percent, on_ac, time_to_empty_m, time_to_full_m, watts FROM power WHERE ts >= ?`, cutoff)
	if err != nil {
		return fmt.Errorf("telemetry: query history power: %w", err)
	}
	for powerRows.Next() {
		var ts int64
		var p models.PowerMetrics
		if err := powerRows.Scan(&ts, &p.Percent, &p.OnAC, &p.TimeToEmptyM, &p.TimeToFullM, &p.Watts); err != nil {
			powerRows.Close()
			return fmt.Errorf("telemetry: scan history power: %w", err)
		}
		if snap, ok := byTS[ts]; ok {
			snap.Power = p
		}
	}
	if err := powerRows.Err(); err != nil {
		powerRows.Close()
		return err
	}
	powerRows.Close()

	gpuRows, err := s.client.DB().QueryContext(ctx,
		`SELECT ts, device, util_pct, temp_c, mem_used_mb, mem_total_mb FROM gpu WHERE ts >= ? ORDER BY ts ASC`, cutoff)
	if err != nil {
		return fmt.Errorf("telemetry: query history gpu: %w", err)
	}
	for gpuRows.Next() {
		var ts int64
		var g models.GPUMetrics
		if err := gpuRows.Scan(&ts, &g.Device, &g.UtilPct, &g.TempC, &g.MemUsedMB, &g.MemTotalMB); err != nil {
			gpuRows.Close()
			return fmt.Errorf("telemetry: scan history gpu: %w", err)
		}
		if snap, ok := byTS[ts]; ok {
			snap.GPUs = append(snap.GPUs, g)
		}
	}
	if err := gpuRows.Err(); err != nil {
		gpuRows.Close()
		return err
	}
	gpuRows.Close()

	processRows, err := s.client.DB().QueryContext(ctx,
		`SELECT ts, pid, name, util_pct, mem_mb, state FROM process WHERE ts >= ? ORDER BY ts ASC`, cutoff)
	if err != nil {
		return fmt.Errorf("telemetry: query history process: %w", err)
	}
	for processRows.Next() {
		var ts int64
		var p models.ProcessMetrics
		if err := processRows.Scan(&ts, &p.PID, &p.Name, &p.UtilPct, &p.MemMB, &p.State); err != nil {
			processRows.Close()
			return fmt.Errorf("telemetry: scan history process: %w", err)
		}
		if snap, ok := byTS[ts]; ok {
			snap.Processes = append(snap.Processes, p)
		}
	}
	if err := processRows.Err(); err != nil {
		processRows.Close()
		return err
	}
	processRows.Close()

	unitRows, err := s.client.DB().QueryContext(ctx,
		`SELECT ts, name, active, sub FROM systemd_unit WHERE ts >= ? ORDER BY ts ASC`, cutoff)
	if err != nil {
		return fmt.Errorf("telemetry: query history systemd_unit: %w", err)
	}
	for unitRows.Next() {
		var ts int64
		var u models.SystemdUnitState
		if err := unitRows.Scan(&ts, &u.Name, &u.Active, &u.Sub); err != nil {
			unitRows.Close()
			return fmt.Errorf("telemetry: scan history systemd_unit: %w", err)
		}
		if snap, ok := byTS[ts]; ok {
			snap.Units = append(snap.Units, u)
		}
	}
	if err := unitRows.Err(); err != nil {
		unitRows.Close()
		return err
	}
	unitRows.Close()

	return nil
}

// TrendDirection classifies a metric series per §4.3's first-half vs
// second-half mean comparison with a 5.0 absolute threshold.
type TrendDirection string

const (
	TrendStable TrendDirection = "Stable"
	TrendRising TrendDirection = "Rising"
	TrendFallng TrendDirection = "Falling"
)

// TrendResult reports mean, percentile, and direction statistics for one
// metric column over a window.
type TrendResult struct {
	Metric    string         `json:"metric"`
	Samples   int            `json:"samples"`
	Mean      float64        `json:"mean"`
	P50       float64        `json:"p50"`
	P95       float64        `json:"p95"`
	P99       float64        `json:"p99"`
	Direction TrendDirection `json:"direction"`
}

// trendColumns maps the metric names exposed over RPC to their backing
// table and column, per §4.3.
var trendColumns = map[string]struct{ table, column string }{
	"cpu_load_avg_1": {"snapshot", "load_avg_1"},
	"mem_used_mb":    {"mem", "used_mb"},
}

// QueryTrend computes mean, percentile, and direction statistics for metric
// over the last windowMinutes. Values are sorted ascending before any of
// mean/percentile/direction are computed, matching the ground-truth
// original. The direction is Stable unless the second-half mean (over that
// sorted series) differs from the first-half mean by more than 5.0
// absolute units, in which case it is Rising or Falling accordingly.
func (s *Store) QueryTrend(ctx context.Context, metric string, windowMinutes int) (*TrendResult, error) {
	col, ok := trendColumns[metric]
	if !ok {
		return nil, fmt.Errorf("telemetry: unknown trend metric %q", metric)
	}

	cutoff := nowUnix() - int64(windowMinutes)*60
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE ts >= ? ORDER BY ts ASC`, col.column, col.table)
	rows, err := s.client.DB().QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("telemetry: query trend: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("telemetry: scan trend row: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Float64s(values)

	return &TrendResult{
		Metric:    metric,
		Samples:   len(values),
		Mean:      mean(values),
		P50:       percentile(values, 50),
		P95:       percentile(values, 95),
		P99:       percentile(values, 99),
		Direction: direction(values),
	}, nil
}

// percentile implements the index-based formula idx = floor(p/100 * n),
// clamped to n-1, against values sorted ascending by value (§4.3; ground
// truth original_source/src/annad/src/rpc_v10.rs sorts before indexing).
func percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	idx := int(math.Floor(p / 100 * float64(n)))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return values[idx]
}

func direction(values []float64) TrendDirection {
	n := len(values)
	if n < 2 {
		return TrendStable
	}
	mid := n / 2
	firstMean := mean(values[:mid])
	secondMean := mean(values[mid:])
	delta := secondMean - firstMean
	switch {
	case delta > 5.0:
		return TrendRising
	case delta < -5.0:
		return TrendFallng
	default:
		return TrendStable
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Close releases the underlying client.
func (s *Store) Close() error {
	slog.Info("telemetry store closing")
	return s.client.Close()
}

// retainedTables lists every table keyed by ts that PruneOlderThan sweeps.
var retainedTables = []string{
	"snapshot", "cpu", "mem", "disk", "net", "power", "gpu", "process",
	"systemd_unit", "alerts", "persona_scores",
}

// PruneOlderThan deletes every row with ts before cutoff across all
// snapshot-keyed tables in one transaction, enforcing the retention
// window the Cleanup Service runs on a timer (§4.3, RetentionConfig).
func (s *Store) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	tx, err := s.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("telemetry: begin prune transaction: %w", err)
	}
	defer tx.Rollback()

	var total int64
	for _, table := range retainedTables {
		res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE ts < ?", table), cutoff.Unix())
		if err != nil {
			return 0, fmt.Errorf("telemetry: prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("telemetry: commit prune: %w", err)
	}
	return total, nil
}
