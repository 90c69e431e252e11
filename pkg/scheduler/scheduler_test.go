package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anna-project/annad/pkg/config"
	"github.com/anna-project/annad/pkg/facts"
	"github.com/anna-project/annad/pkg/models"
	"github.com/anna-project/annad/pkg/probe"
)

func newTestFacts(t *testing.T) *facts.Store {
	t.Helper()
	store, err := facts.New(filepath.Join(t.TempDir(), "facts.json"), func() string { return "boot-1" })
	require.NoError(t, err)
	return store
}

func TestScheduler_TickLearnsFactsFromSucceedingProbes(t *testing.T) {
	registry := probe.NewRegistry()
	registry.Register(probe.Probe{
		Name:      "cpu_model",
		Stability: models.StabilityStatic,
		Category:  "cpu-model",
		Collect:   func(ctx context.Context) (string, error) { return "model name : AMD Ryzen 9", nil },
		Parse:     func(raw string) map[string]string { return map[string]string{"model": "AMD Ryzen 9"} },
	})

	factsStore := newTestFacts(t)
	sched := New(&config.SchedulerConfig{FactIntervalHours: 4}, factsStore, nil, registry, nil, nil)
	sched.tick(context.Background())

	fact, ok := factsStore.GetFresh("cpu-model")
	require.True(t, ok)
	assert.Equal(t, "AMD Ryzen 9", fact.Value)
}

func TestScheduler_OrderedRunsStaticBeforeVolatile(t *testing.T) {
	registry := probe.NewRegistry()
	var order []string
	registry.Register(probe.Probe{
		Name:      "volatile-probe",
		Stability: models.StabilityVolatile,
		Collect:   func(ctx context.Context) (string, error) { order = append(order, "volatile-probe"); return "", nil },
	})
	registry.Register(probe.Probe{
		Name:      "static-probe",
		Stability: models.StabilityStatic,
		Collect:   func(ctx context.Context) (string, error) { order = append(order, "static-probe"); return "", nil },
	})

	sched := New(&config.SchedulerConfig{FactIntervalHours: 4}, nil, nil, registry, nil, nil)
	sched.tick(context.Background())

	require.Len(t, order, 2)
	assert.Equal(t, "static-probe", order[0])
	assert.Equal(t, "volatile-probe", order[1])
}

func TestScheduler_QuietHoursSkipEntirelySuppressesTick(t *testing.T) {
	registry := probe.NewRegistry()
	ran := false
	registry.Register(probe.Probe{
		Name:      "p",
		Stability: models.StabilityVolatile,
		Collect:   func(ctx context.Context) (string, error) { ran = true; return "", nil },
	})

	sched := New(&config.SchedulerConfig{
		FactIntervalHours: 4,
		QuietHours:        &config.QuietHours{Start: "00:00", End: "23:59", SkipEntirely: true},
	}, nil, nil, registry, nil, nil)
	sched.now = func() time.Time { return time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC) }

	sched.tick(context.Background())
	assert.False(t, ran, "probes must not run during a skip-entirely quiet hours window")
}

func TestScheduler_ScheduledTaskFiresAtItsTime(t *testing.T) {
	var fired []string
	runTask := func(ctx context.Context, task config.ScheduledTask) { fired = append(fired, task.Name) }

	sched := New(&config.SchedulerConfig{
		FactIntervalHours: 4,
		ScheduledTasks: []config.ScheduledTask{
			{Name: "nightly-scan", Schedule: config.CadenceDaily, Time: "03:00", Enabled: true},
		},
	}, nil, nil, probe.NewRegistry(), runTask, nil)
	sched.now = func() time.Time { return time.Date(2026, 7, 31, 3, 0, 0, 0, time.UTC) }

	sched.tick(context.Background())
	require.Len(t, fired, 1)
	assert.Equal(t, "nightly-scan", fired[0])
}

func TestScheduler_ScheduledTaskDoesNotRefireSameDay(t *testing.T) {
	callCount := 0
	runTask := func(ctx context.Context, task config.ScheduledTask) { callCount++ }

	sched := New(&config.SchedulerConfig{
		FactIntervalHours: 4,
		ScheduledTasks: []config.ScheduledTask{
			{Name: "nightly-scan", Schedule: config.CadenceDaily, Time: "03:00", Enabled: true},
		},
	}, nil, nil, probe.NewRegistry(), runTask, nil)
	fixed := time.Date(2026, 7, 31, 3, 0, 0, 0, time.UTC)
	sched.now = func() time.Time { return fixed }

	sched.tick(context.Background())
	sched.tick(context.Background())
	assert.Equal(t, 1, callCount)
}

func TestScheduler_DisabledTaskNeverFires(t *testing.T) {
	callCount := 0
	runTask := func(ctx context.Context, task config.ScheduledTask) { callCount++ }

	sched := New(&config.SchedulerConfig{
		FactIntervalHours: 4,
		ScheduledTasks: []config.ScheduledTask{
			{Name: "disabled-task", Schedule: config.CadenceDaily, Time: "03:00", Enabled: false},
		},
	}, nil, nil, probe.NewRegistry(), runTask, nil)
	sched.now = func() time.Time { return time.Date(2026, 7, 31, 3, 0, 0, 0, time.UTC) }

	sched.tick(context.Background())
	assert.Equal(t, 0, callCount)
}

func TestScheduler_StartStopIsIdempotentAndClean(t *testing.T) {
	sched := New(&config.SchedulerConfig{FactIntervalHours: 4}, nil, nil, probe.NewRegistry(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.Start(ctx)
	sched.Start(ctx) // no-op
	sched.Stop()
}
