package recipe

import (
	"log/slog"

	"github.com/anna-project/annad/pkg/models"
)

// FallbackFunc generates an Action Plan via the LLM when no recipe matches.
type FallbackFunc func(userInput string, telemetry Telemetry) (models.ActionPlan, error)

// Registry dispatches a user request to the first matching recipe in
// registration order, falling back to an LLM-generated plan when none
// match (§4.7 dispatch order).
type Registry struct {
	recipes  []Recipe
	fallback FallbackFunc
	logger   *slog.Logger
}

// NewRegistry constructs an empty registry. Use Register to add recipes in
// the order they should be tried.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register appends r to the dispatch order.
func (reg *Registry) Register(r Recipe) {
	reg.recipes = append(reg.recipes, r)
}

// SetFallback installs the LLM-based plan generator used when no recipe matches.
func (reg *Registry) SetFallback(fn FallbackFunc) {
	reg.fallback = fn
}

// Match returns the first recipe (in registration order) whose
// MatchesRequest returns true, or nil if none match.
func (reg *Registry) Match(userInput string) Recipe {
	if isInformational(userInput) {
		return nil
	}
	for _, r := range reg.recipes {
		if r.MatchesRequest(userInput) {
			return r
		}
	}
	return nil
}

// BuildPlan dispatches userInput to the first matching recipe, falling back
// to the LLM generator when none match. Returns the recipe name used, or
// "" if the fallback ran.
func (reg *Registry) BuildPlan(userInput string, telemetry Telemetry) (models.ActionPlan, string, error) {
	if r := reg.Match(userInput); r != nil {
		reg.logger.Debug("recipe matched", "recipe", r.Name(), "input", userInput)
		return r.BuildPlan(userInput, telemetry), r.Name(), nil
	}

	reg.logger.Debug("no recipe matched, falling back to LLM", "input", userInput)
	if reg.fallback == nil {
		return models.ActionPlan{}, "", errNoFallback
	}
	plan, err := reg.fallback(userInput, telemetry)
	return plan, "", err
}

// DefaultRegistry builds a registry with the built-in python, vim, and
// nvidia recipes registered in that order.
func DefaultRegistry(logger *slog.Logger) *Registry {
	reg := NewRegistry(logger)
	reg.Register(NewPythonRecipe())
	reg.Register(NewVimRecipe())
	reg.Register(NewNvidiaRecipe())
	return reg
}
