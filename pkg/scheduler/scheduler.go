// Package scheduler drives periodic probe collection, fact invalidation,
// and scheduled tasks (§4.4). Grounded on the teacher's WorkerPool
// Start/Stop/graceful-shutdown shape (pkg/queue.WorkerPool), generalized
// from a session-worker pool into a single ticking background loop.
package scheduler

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/anna-project/annad/pkg/config"
	"github.com/anna-project/annad/pkg/facts"
	"github.com/anna-project/annad/pkg/models"
	"github.com/anna-project/annad/pkg/probe"
	"github.com/anna-project/annad/pkg/telemetry"
)

// DefaultProbeTimeout bounds a single probe run during a tick.
const DefaultProbeTimeout = 10 * time.Second

// TaskRunner executes one scheduled task by name.
type TaskRunner func(ctx context.Context, task config.ScheduledTask)

// Scheduler ticks the probe registry, feeding the Learned-Facts Store and
// the Telemetry Store, and fires scheduled tasks whose wall-clock has
// arrived.
type Scheduler struct {
	cfg       *config.SchedulerConfig
	facts     *facts.Store
	telemetry *telemetry.Store
	probes    *probe.Registry
	runTask   TaskRunner
	logger    *slog.Logger

	now           func() time.Time
	jitter        func(maxMinutes int) time.Duration
	lastTaskFired map[string]time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// New constructs a Scheduler. runTask may be nil if the caller never
// configures scheduled tasks.
func New(cfg *config.SchedulerConfig, factsStore *facts.Store, telemetryStore *telemetry.Store, probes *probe.Registry, runTask TaskRunner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:           cfg,
		facts:         factsStore,
		telemetry:     telemetryStore,
		probes:        probes,
		runTask:       runTask,
		logger:        logger,
		now:           time.Now,
		jitter:        defaultJitter,
		lastTaskFired: make(map[string]time.Time),
		stopCh:        make(chan struct{}),
	}
}

func defaultJitter(maxMinutes int) time.Duration {
	if maxMinutes <= 0 {
		return 0
	}
	return time.Duration(rand.Intn(maxMinutes*2+1)-maxMinutes) * time.Minute
}

// Start launches the background ticking loop. Safe to call once; repeat
// calls are no-ops.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Info("scheduler started", "fact_interval_hours", s.cfg.FactIntervalHours, "jitter_minutes", s.cfg.JitterMinutes)

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop signals the loop to exit and waits for it to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	interval := time.Duration(s.cfg.FactIntervalHours) * time.Hour
	if interval <= 0 {
		interval = 4 * time.Hour
	}
	interval += s.jitter(s.cfg.JitterMinutes)

	s.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one scheduler cycle, in declaration order (§4.4):
//  1. LearnedFacts.check_and_invalidate (boot+package drift detection)
//  2. run due probes in STATIC → SLOW → VOLATILE order, feeding stores
//  3. fire any scheduled task whose wall-clock has arrived
func (s *Scheduler) tick(ctx context.Context) {
	if s.inQuietHoursSkip() {
		s.logger.Debug("scheduler tick skipped: quiet hours")
		return
	}

	if s.facts != nil {
		if _, err := s.facts.CheckAndInvalidate(facts.StatPackageLogMtime); err != nil {
			s.logger.Error("check_and_invalidate failed", "error", err)
		}
	}

	s.runProbes(ctx)
	s.runScheduledTasks(ctx)
}

// inQuietHoursSkip reports whether the current wall-clock falls inside a
// quiet-hours window configured to skip collection entirely.
func (s *Scheduler) inQuietHoursSkip() bool {
	qh := s.cfg.QuietHours
	if qh == nil || !qh.SkipEntirely {
		return false
	}
	return withinWindow(s.now(), qh.Start, qh.End)
}

func withinWindow(t time.Time, start, end string) bool {
	startMin, ok1 := parseHHMM(start)
	endMin, ok2 := parseHHMM(end)
	if !ok1 || !ok2 {
		return false
	}
	nowMin := t.Hour()*60 + t.Minute()
	if startMin <= endMin {
		return nowMin >= startMin && nowMin < endMin
	}
	// Window wraps midnight.
	return nowMin >= startMin || nowMin < endMin
}

func parseHHMM(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, false
	}
	return h*60 + m, true
}

// runProbes runs every registered probe in STATIC→SLOW→VOLATILE,
// dependency-respecting order (§4.4), feeding results into the Telemetry
// Store and, for probes whose category maps to a Learned Fact, the
// Learned-Facts Store.
func (s *Scheduler) runProbes(ctx context.Context) {
	if s.probes == nil {
		return
	}

	results := make(map[string]probe.Result)
	for _, p := range s.probes.Ordered() {
		result := s.probes.Run(ctx, p.Name, DefaultProbeTimeout)
		s.logger.Debug("probe run", "name", p.Name, "status", result.Status, "latency_ms", result.LatencyMS)
		results[p.Name] = result

		if result.Status != probe.StatusOk || s.facts == nil || p.Category == "" {
			continue
		}
		for _, value := range result.Fields {
			if value == "" {
				continue
			}
			_ = s.facts.Learn(models.LearnedFact{
				Category:   p.Category,
				Value:      value,
				Evidence:   result.RawOutput,
				ProbeName:  p.Name,
				Confidence: 1.0,
				LearnedAt:  s.now(),
				BootID:     s.facts.CurrentBootID(),
			})
			break // one representative field per probe run; parsers that need
			// multiple fields persisted separately should Learn them directly.
		}
	}

	if s.telemetry != nil {
		snap := assembleSnapshot(s.now(), results)
		if err := s.telemetry.StoreSnapshot(ctx, snap); err != nil {
			s.logger.Error("store snapshot failed", "error", err)
		}
	}
}

// assembleSnapshot builds a Snapshot from one tick's probe results. Probes
// that did not run or did not succeed leave their corresponding fields at
// their zero value.
func assembleSnapshot(now time.Time, results map[string]probe.Result) models.Snapshot {
	snap := models.Snapshot{TS: now.Unix()}

	if r, ok := results["cpu_loadavg"]; ok && r.Status == probe.StatusOk {
		snap.CPU.LoadAvg1 = atof(r.Fields["load_avg_1"])
		snap.CPU.LoadAvg5 = atof(r.Fields["load_avg_5"])
		snap.CPU.LoadAvg15 = atof(r.Fields["load_avg_15"])
	}
	if r, ok := results["meminfo"]; ok && r.Status == probe.StatusOk {
		snap.Mem.TotalMB = atoi64(r.Fields["total_mb"])
		snap.Mem.UsedMB = atoi64(r.Fields["used_mb"])
		snap.Mem.FreeMB = atoi64(r.Fields["free_mb"])
		snap.Mem.CachedMB = atoi64(r.Fields["cached_mb"])
		snap.Mem.SwapMB = atoi64(r.Fields["swap_mb"])
	}
	if r, ok := results["disk_usage_root"]; ok && r.Status == probe.StatusOk {
		snap.Disks = append(snap.Disks, models.DiskMetrics{
			Mount:      "/",
			CapacityMB: atoi64(r.Fields["capacity_mb"]),
			UsedPct:    atof(r.Fields["used_pct"]),
		})
	}
	if r, ok := results["battery_level"]; ok && r.Status == probe.StatusOk {
		snap.Power.Percent = atof(r.Fields["percent"])
		snap.Power.OnAC = r.Fields["on_ac"] == "true"
	}
	if r, ok := results["gpu_nvidia"]; ok && r.Status == probe.StatusOk {
		snap.GPUs = append(snap.GPUs, models.GPUMetrics{
			Device:     r.Fields["device"],
			UtilPct:    atof(r.Fields["util_pct"]),
			TempC:      atof(r.Fields["temp_c"]),
			MemUsedMB:  atoi64(r.Fields["mem_used_mb"]),
			MemTotalMB: atoi64(r.Fields["mem_total_mb"]),
		})
	}
	if r, ok := results["kernel_version"]; ok && r.Status == probe.StatusOk {
		snap.Kernel = r.Fields["version"]
	}
	if r, ok := results["uptime"]; ok && r.Status == probe.StatusOk {
		snap.UptimeS = atoi64(r.Fields["uptime_s"])
	}

	return snap
}

func atof(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func atoi64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

// runScheduledTasks fires any task whose cadence/time has arrived and that
// has not already fired in its current period.
func (s *Scheduler) runScheduledTasks(ctx context.Context) {
	if s.runTask == nil {
		return
	}

	now := s.now()
	tasks := make([]config.ScheduledTask, len(s.cfg.ScheduledTasks))
	copy(tasks, s.cfg.ScheduledTasks)
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Name < tasks[j].Name })

	for _, task := range tasks {
		if !task.Enabled || !s.taskDue(task, now) {
			continue
		}
		s.mu.Lock()
		s.lastTaskFired[task.Name] = now
		s.mu.Unlock()
		s.runTask(ctx, task)
	}
}

func (s *Scheduler) taskDue(task config.ScheduledTask, now time.Time) bool {
	taskMin, ok := parseHHMM(task.Time)
	if !ok {
		return false
	}
	nowMin := now.Hour()*60 + now.Minute()
	if nowMin != taskMin {
		return false
	}

	s.mu.Lock()
	last, fired := s.lastTaskFired[task.Name]
	s.mu.Unlock()
	if !fired {
		return true
	}

	switch task.Schedule {
	case config.CadenceDaily:
		return now.YearDay() != last.YearDay() || now.Year() != last.Year()
	case config.CadenceWeekly:
		_, nowWeek := now.ISOWeek()
		_, lastWeek := last.ISOWeek()
		return nowWeek != lastWeek || now.Year() != last.Year()
	case config.CadenceMonthly:
		return now.Month() != last.Month() || now.Year() != last.Year()
	default:
		return false
	}
}
