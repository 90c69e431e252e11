// Package probe implements the Probe Registry (§4.1): a named table of
// side-effect-free observation probes, each run with a caller-provided
// timeout.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/anna-project/annad/pkg/models"
)

// Status is the outcome tag of Run, the probe's sum type per §9's
// discriminated-union guidance.
type Status string

const (
	StatusOk       Status = "Ok"
	StatusTimedOut Status = "TimedOut"
	StatusFailed   Status = "Failed"
	StatusNotFound Status = "NotFound"
)

// Result is the outcome of running one probe.
type Result struct {
	Status    Status
	Fields    map[string]string
	RawOutput string
	LatencyMS int64
	ExitCode  int
	Stderr    string
}

// Probe is a named, side-effect-free observation. Parse converts raw
// command/file output into typed fields.
type Probe struct {
	Name           string
	Stability      models.StabilityClass
	Category       models.FactCategory
	DependsOn      []string // names of probes that must run first in a tick (§4.4)
	Collect        func(ctx context.Context) (rawOutput string, err error)
	Parse          func(rawOutput string) map[string]string
}

// Registry is the probe table. It has no concurrency semantics of its own
// (§4.1) — callers serialize or parallelize runs as they choose.
type Registry struct {
	probes map[string]Probe
	order  []string // registration order, for dependency-respecting iteration
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{probes: make(map[string]Probe)}
}

// Register adds p to the registry, keyed by p.Name.
func (r *Registry) Register(p Probe) {
	if _, exists := r.probes[p.Name]; !exists {
		r.order = append(r.order, p.Name)
	}
	r.probes[p.Name] = p
}

// Names returns every registered probe name in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Get returns the probe by name, or false if unregistered.
func (r *Registry) Get(name string) (Probe, bool) {
	p, ok := r.probes[name]
	return p, ok
}

// Ordered returns every registered probe sorted STATIC before SLOW before
// VOLATILE, with declared dependencies after their prerequisites (§4.4).
func (r *Registry) Ordered() []Probe {
	rank := map[models.StabilityClass]int{
		models.StabilityStatic:   0,
		models.StabilitySlow:     1,
		models.StabilityVolatile: 2,
	}

	names := r.Names()
	depth := make(map[string]int, len(names))
	var resolveDepth func(name string, seen map[string]bool) int
	resolveDepth = func(name string, seen map[string]bool) int {
		if d, ok := depth[name]; ok {
			return d
		}
		if seen[name] {
			return 0 // cyclic dependency declared; treat as no further depth
		}
		seen[name] = true
		p, ok := r.probes[name]
		if !ok {
			return 0
		}
		max := 0
		for _, dep := range p.DependsOn {
			if d := resolveDepth(dep, seen); d+1 > max {
				max = d + 1
			}
		}
		depth[name] = max
		return max
	}
	for _, name := range names {
		resolveDepth(name, map[string]bool{})
	}

	sorted := make([]Probe, len(names))
	copy(sorted, func() []Probe {
		out := make([]Probe, 0, len(names))
		for _, name := range names {
			out = append(out, r.probes[name])
		}
		return out
	}())

	// Stable sort by (stability rank, dependency depth, registration order).
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0; j-- {
			a, b := sorted[j-1], sorted[j]
			aKey := rank[a.Stability]*1000 + depth[a.Name]
			bKey := rank[b.Stability]*1000 + depth[b.Name]
			if aKey <= bKey {
				break
			}
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return sorted
}

// Run executes the named probe with the given timeout.
func (r *Registry) Run(ctx context.Context, name string, timeout time.Duration) Result {
	p, ok := r.probes[name]
	if !ok {
		return Result{Status: StatusNotFound}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	type collected struct {
		raw string
		err error
	}
	done := make(chan collected, 1)
	go func() {
		raw, err := p.Collect(runCtx)
		done <- collected{raw, err}
	}()

	select {
	case <-runCtx.Done():
		return Result{Status: StatusTimedOut, LatencyMS: time.Since(start).Milliseconds()}
	case c := <-done:
		latency := time.Since(start).Milliseconds()
		if c.err != nil {
			return Result{
				Status:    StatusFailed,
				RawOutput: c.raw,
				Stderr:    c.err.Error(),
				LatencyMS: latency,
			}
		}
		var fields map[string]string
		if p.Parse != nil {
			fields = p.Parse(c.raw)
		}
		return Result{
			Status:    StatusOk,
			Fields:    fields,
			RawOutput: c.raw,
			LatencyMS: latency,
		}
	}
}

// ErrUnknownProbe is returned by callers that need a typed sentinel for a
// name lookup miss (Run itself reports this via Result.Status == NotFound).
var ErrUnknownProbe = fmt.Errorf("probe: unknown probe name")
