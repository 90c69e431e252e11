package rpc

import (
	"sync/atomic"

	"github.com/anna-project/annad/pkg/config"
)

// ConfigHolder lets the daemon's runtime config be read lock-free from
// many connection goroutines while the set_scheduler_config /
// set_sentinel_state / set_conscience_state RPC methods swap in a new,
// fully-resolved Config atomically (see config.Config's doc comment).
type ConfigHolder struct {
	ptr atomic.Pointer[config.Config]
}

// NewConfigHolder seeds the holder with the daemon's initial Config.
func NewConfigHolder(initial *config.Config) *ConfigHolder {
	h := &ConfigHolder{}
	h.ptr.Store(initial)
	return h
}

// Get returns the current Config. Safe for concurrent use.
func (h *ConfigHolder) Get() *config.Config {
	return h.ptr.Load()
}

// SetScheduler swaps in a copy of the current Config with Scheduler
// replaced, and returns the new Config.
func (h *ConfigHolder) SetScheduler(sched config.SchedulerConfig) *config.Config {
	current := *h.Get()
	current.Scheduler = sched
	h.ptr.Store(&current)
	return &current
}

// SetAutonomy swaps in a copy of the current Config with Autonomy (the
// "sentinel state": how much Anna may act without asking) replaced.
func (h *ConfigHolder) SetAutonomy(level config.AutonomyLevel) *config.Config {
	current := *h.Get()
	current.Autonomy = level
	h.ptr.Store(&current)
	return &current
}

// SetSafety swaps in a copy of the current Config with Safety (the
// "conscience state": the guard rails the Validator enforces) replaced.
func (h *ConfigHolder) SetSafety(safety config.SafetyConfig) *config.Config {
	current := *h.Get()
	current.Safety = safety
	h.ptr.Store(&current)
	return &current
}
