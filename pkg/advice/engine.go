// Package advice implements the Recommendation Engine (§4.10): a catalog
// of pure rule functions grouped by category, evaluated against the
// current set of Learned Facts and post-processed into a sorted,
// deduplicated Advice list.
package advice

import (
	"github.com/anna-project/annad/pkg/config"
	"github.com/anna-project/annad/pkg/models"
)

// SystemFacts is the read-only view of Learned Facts a rule consults.
// Built fresh per evaluation from the Learned-Facts Store's live facts.
type SystemFacts struct {
	Facts map[models.FactCategory]models.LearnedFact
}

// Get returns the fact's value and whether it was learned, for rules that
// only need the raw string form.
func (f SystemFacts) Get(category models.FactCategory) (string, bool) {
	fact, ok := f.Facts[category]
	if !ok {
		return "", false
	}
	return fact.Value, true
}

// Rule is a pure function producing zero or more Advice from SystemFacts.
type Rule func(SystemFacts) []models.Advice

// Group is a named collection of rules gated by a single module scope.
type Group struct {
	Name   string
	Module config.ModuleScope
	Rules  []Rule
}

// Engine evaluates enabled rule groups and post-processes the result.
type Engine struct {
	groups []Group
}

// New constructs an Engine over groups, in evaluation order.
func New(groups ...Group) *Engine {
	return &Engine{groups: groups}
}

// DefaultEngine returns the Engine over the built-in rule catalog (§4.10).
func DefaultEngine() *Engine {
	return New(
		Group{Name: "System Maintenance", Module: config.ModuleSystemMaintenance, Rules: []Rule{
			ruleStalePackageCache,
			ruleFailedSystemdUnits,
			ruleOrphanedPackages,
		}},
		Group{Name: "Security & Privacy", Module: config.ModuleSecurityPrivacy, Rules: []Rule{
			ruleUnattendedUpgradesDisabled,
			ruleFirewallInactive,
		}},
		Group{Name: "Performance & Optimization", Module: config.ModulePerformance, Rules: []Rule{
			ruleSwapThrashing,
			ruleDiskNearFull,
		}},
		Group{Name: "Network Configuration", Module: config.ModuleNetworkConfig, Rules: []Rule{
			ruleVPNAlwaysOnMissing,
		}},
	)
}

// Evaluate runs every rule in every module-enabled group, then dedups by
// id, resolves satisfy-subsumption, and sorts (§4.10 post-processing
// steps 1-3).
func (e *Engine) Evaluate(cfg *config.Config, facts SystemFacts) []models.Advice {
	var all []models.Advice
	for _, group := range e.groups {
		if cfg != nil && !cfg.HasModule(group.Module) {
			continue
		}
		for _, rule := range group.Rules {
			all = append(all, rule(facts)...)
		}
	}

	deduped := dedupByID(all)
	subsumed := applySatisfies(deduped)
	models.SortAdvice(subsumed)
	return subsumed
}

// dedupByID keeps only the first occurrence of each advice id (§4.10 step 1).
func dedupByID(advice []models.Advice) []models.Advice {
	seen := make(map[string]bool, len(advice))
	out := make([]models.Advice, 0, len(advice))
	for _, a := range advice {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	return out
}

// applySatisfies removes any advice named in another advice's Satisfies
// list (§4.10 step 2: the satisfying advice subsumes the satisfied one).
func applySatisfies(advice []models.Advice) []models.Advice {
	satisfied := make(map[string]bool)
	for _, a := range advice {
		for _, id := range a.Satisfies {
			satisfied[id] = true
		}
	}

	out := make([]models.Advice, 0, len(advice))
	for _, a := range advice {
		if satisfied[a.ID] {
			continue
		}
		out = append(out, a)
	}
	return out
}
