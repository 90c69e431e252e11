// Package recipe implements the Recipe Matcher & Recipe Contract (§4.7):
// deterministic builders for common system-administration requests, with
// an LLM fallback when no recipe matches.
package recipe

import (
	"strings"

	"github.com/anna-project/annad/pkg/models"
)

// informationalPhrases exclude requests that merely ask about a topic
// rather than asking to act on it, per §4.7.
var informationalPhrases = []string{"what is", "tell me about", "explain"}

// Operation is a recipe-specific action enumeration (§4.7).
type Operation string

const (
	OpInstall      Operation = "Install"
	OpCheckStatus  Operation = "CheckStatus"
	OpUpgrade      Operation = "Upgrade"
	OpCreateVenv   Operation = "CreateVenv"
	OpInstallTools Operation = "InstallTools"
	OpConfigure    Operation = "Configure"
)

// Telemetry is the facts a recipe may consult while building its plan
// (internet connectivity, detected desktop environment, GPU vendor, ...).
// Recipes never execute commands themselves; they only read this map.
type Telemetry map[string]string

// Recipe is a deterministic plan builder.
type Recipe interface {
	// Name identifies the recipe for logging and plan.RecipeName.
	Name() string
	// MatchesRequest reports whether this recipe should handle user_input.
	MatchesRequest(userInput string) bool
	// DetectOperation maps user_input to this recipe's operation enum.
	DetectOperation(userInput string) Operation
	// BuildPlan constructs a valid Action Plan for the detected operation.
	BuildPlan(userInput string, telemetry Telemetry) models.ActionPlan
}

// isInformational reports whether userInput is a question about a topic
// rather than a request to act, excluded from every recipe's match per §4.7.
func isInformational(userInput string) bool {
	lower := strings.ToLower(userInput)
	for _, phrase := range informationalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func containsAny(lower string, tokens ...string) bool {
	for _, tok := range tokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}
