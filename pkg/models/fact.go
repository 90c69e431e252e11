package models

import "time"

// FactCategory tags the kind of interpreted value a Learned Fact holds,
// e.g. "cpu-model", "kernel-version", "installed-package:vim".
type FactCategory string

// stabilityByPrefix classifies a category by its well-known prefix. Exact
// matches are checked first (see StabilityClassOf), this is the fallback
// for parameterized categories like "installed-package:<name>".
var stabilityByPrefix = []struct {
	prefix string
	class  StabilityClass
}{
	{"installed-package:", StabilitySlow},
	{"service-state:", StabilitySlow},
}

var stabilityByCategory = map[FactCategory]StabilityClass{
	"cpu-model":        StabilityStatic,
	"cpu-core-count":   StabilityStatic,
	"gpu-model":        StabilityStatic,
	"total-memory":     StabilityStatic,
	"kernel-version":   StabilitySlow,
	"distro-version":   StabilitySlow,
	"desktop-environment": StabilitySlow,
	"window-manager":   StabilitySlow,
	"display-server":   StabilitySlow,
	"disk-usage-root":  StabilityVolatile,
	"battery-level":    StabilityVolatile,
	"network-state":    StabilityVolatile,
}

// StabilityClassOf resolves the Stability Class for a category, falling
// back to VOLATILE for unrecognized categories (safest default: a wrong
// guess here expires quickly instead of staying stale for 30 days).
func StabilityClassOf(cat FactCategory) StabilityClass {
	if class, ok := stabilityByCategory[cat]; ok {
		return class
	}
	s := string(cat)
	for _, rule := range stabilityByPrefix {
		if len(s) >= len(rule.prefix) && s[:len(rule.prefix)] == rule.prefix {
			return rule.class
		}
	}
	return StabilityVolatile
}

// LearnedFact is an interpreted value derived from one or more probes.
type LearnedFact struct {
	Category    FactCategory `json:"category"`
	Value       string       `json:"value"`
	Evidence    string       `json:"evidence"`
	ProbeName   string       `json:"probe_name"`
	Confidence  float64      `json:"confidence"` // [0,1]
	LearnedAt   time.Time    `json:"learned_at"`
	UsageCount  int          `json:"usage_count"`
	BootID      string       `json:"boot_id"`
}

// Key is the store's lookup key: one live fact per category.
func (f *LearnedFact) Key() FactCategory { return f.Category }

// StabilityClass returns the fact's class, derived from its category.
func (f *LearnedFact) StabilityClass() StabilityClass { return StabilityClassOf(f.Category) }

// IsFresh reports whether the fact is still within its class's max age,
// and — for STATIC facts — whether it was learned on the current boot.
// Mirrors §3.1's invariant and §8's universal invariant 4.
func (f *LearnedFact) IsFresh(now time.Time, currentBootID string) bool {
	class := f.StabilityClass()
	if now.Sub(f.LearnedAt) >= class.MaxAge() {
		return false
	}
	if class == StabilityStatic && f.BootID != currentBootID {
		return false
	}
	return true
}

// FactStoreDocument is the root JSON document persisted by the
// Learned-Facts Store (§6.1).
type FactStoreDocument struct {
	Facts               map[FactCategory]*LearnedFact `json:"facts"`
	QueriesAnswered     int64     `json:"queries_answered"`
	CacheHits           int64     `json:"cache_hits"`
	CacheMisses         int64     `json:"cache_misses"`
	LastPacmanOperation time.Time `json:"last_pacman_operation"`
}
