// Package validate implements the Action-Plan Validator (§4.6): a pure
// function over an Action Plan and a Safety Context that decides whether a
// plan is safe to execute.
package validate

import (
	"fmt"
	"strings"

	"github.com/anna-project/annad/pkg/config"
	"github.com/anna-project/annad/pkg/models"
)

// Violation describes one rule failure. A plan is invalid iff Violations is
// non-empty.
type Violation struct {
	Rule    string `json:"rule"`
	StepID  string `json:"step_id,omitempty"`
	Detail  string `json:"detail"`
}

// Result is the Validator's verdict.
type Result struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations,omitempty"`
}

// Validate checks plan against ctx's Safety Context, applying the four
// rules of §4.6 in order. All four are checked regardless of earlier
// failures so the caller sees every violation at once.
func Validate(plan models.ActionPlan, ctx config.SafetyConfig) Result {
	var violations []Violation

	backedUpTargets := make(map[string]bool)

	for _, step := range plan.Steps {
		if v := checkForbiddenPaths(step, ctx); v != nil {
			violations = append(violations, *v)
		}
		if v := checkHighRiskConfirmation(step); v != nil {
			violations = append(violations, *v)
		}
		if v := checkBackupPredecessor(step, backedUpTargets); v != nil {
			violations = append(violations, *v)
		}
		if v := checkPackageOpsAllowed(step, ctx); v != nil {
			violations = append(violations, *v)
		}

		if step.Backup != "" && step.Target != "" {
			backedUpTargets[step.Target] = true
		}
	}

	return Result{Valid: len(violations) == 0, Violations: violations}
}

// checkForbiddenPaths is rule 1: a step's command targets a Forbidden Path.
func checkForbiddenPaths(step models.ActionStep, ctx config.SafetyConfig) *Violation {
	forbidden := ctx.ForbiddenPaths
	for _, cmd := range step.Commands {
		for _, path := range forbidden {
			if strings.Contains(cmd, path) {
				return &Violation{
					Rule:   "ForbiddenPath",
					StepID: step.ID,
					Detail: fmt.Sprintf("step %q targets forbidden path %q", step.ID, path),
				}
			}
		}
	}
	if step.Target != "" {
		for _, path := range forbidden {
			if step.Target == path || strings.HasPrefix(step.Target, path+"/") {
				return &Violation{
					Rule:   "ForbiddenPath",
					StepID: step.ID,
					Detail: fmt.Sprintf("step %q targets forbidden path %q", step.ID, step.Target),
				}
			}
		}
	}
	return nil
}

// checkHighRiskConfirmation is rule 2: a High-risk step must require
// confirmation.
func checkHighRiskConfirmation(step models.ActionStep) *Violation {
	if step.Risk == models.RiskHigh && !step.RequiresConfirmation {
		return &Violation{
			Rule:   "HighRiskRequiresConfirmation",
			StepID: step.ID,
			Detail: fmt.Sprintf("step %q is High risk but does not require confirmation", step.ID),
		}
	}
	return nil
}

// checkBackupPredecessor is rule 3: a mutating step needs either its own
// backup directive or a preceding backup of the same target.
func checkBackupPredecessor(step models.ActionStep, backedUpTargets map[string]bool) *Violation {
	if !step.Mutates() {
		return nil
	}
	if step.Backup != "" {
		return nil
	}
	if backedUpTargets[step.Target] {
		return nil
	}
	return &Violation{
		Rule:   "MissingBackup",
		StepID: step.ID,
		Detail: fmt.Sprintf("step %q mutates %q without a backup or preceding backup", step.ID, step.Target),
	}
}

// checkPackageOpsAllowed is rule 4: package operations are blocked when the
// caller's policy disallows them.
func checkPackageOpsAllowed(step models.ActionStep, ctx config.SafetyConfig) *Violation {
	if step.IsPackageOp && !ctx.AllowPackageOps {
		return &Violation{
			Rule:   "PackageOperationsDisallowed",
			StepID: step.ID,
			Detail: fmt.Sprintf("step %q performs a package operation but policy disallows it", step.ID),
		}
	}
	return nil
}
