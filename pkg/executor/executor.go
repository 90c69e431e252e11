// Package executor runs a validated Action Plan (§4.8): validate, confirm,
// backup, run, and roll back on failure, appending to the Rollback Ledger
// as each step completes.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/anna-project/annad/pkg/config"
	"github.com/anna-project/annad/pkg/models"
	"github.com/anna-project/annad/pkg/rollback"
	"github.com/anna-project/annad/pkg/validate"
)

// DefaultStepTimeout bounds a single command's run, per the "Dynamic
// command shells" design note: commands are executed as argv tuples
// ({"sh", "-c", command}) rather than free-form shell invocation, even
// though the plan's display form remains a shell string.
const DefaultStepTimeout = 30 * time.Second

// ConfirmFunc is the caller's confirmation channel for steps that require
// it. Returns true to proceed.
type ConfirmFunc func(ctx context.Context, step models.ActionStep) (bool, error)

// StepResult records the outcome of executing one step.
type StepResult struct {
	StepID   string
	Ran      bool
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

// Outcome is the end-to-end result of Run.
type Outcome struct {
	Validation      validate.Result
	Confirmed       bool
	Steps           []StepResult
	RolledBack      bool
	RollbackResults []StepResult
}

// Executor runs Action Plans against the OS, recording rollback history.
type Executor struct {
	ledger  *rollback.Ledger
	confirm ConfirmFunc
	logger  *slog.Logger
	timeout time.Duration

	// run executes one argv invocation; overridable in tests.
	run func(ctx context.Context, argv []string) (stdout, stderr string, exitCode int, err error)
}

// New constructs an Executor. confirm may be nil if the caller never
// produces plans with requires_confirmation steps (Run then refuses them).
func New(ledger *rollback.Ledger, confirm ConfirmFunc, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		ledger:  ledger,
		confirm: confirm,
		logger:  logger,
		timeout: DefaultStepTimeout,
		run:     runShell,
	}
}

func runShell(ctx context.Context, argv []string) (stdout, stderr string, exitCode int, err error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	exitCode = 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return outBuf.String(), errBuf.String(), -1, runErr
		}
	}
	return outBuf.String(), errBuf.String(), exitCode, nil
}

// Run executes plan against advice.ID as the Rollback Ledger key.
// Protocol, in declaration order (§4.8):
//  1. Refuse if the Validator rejects the plan.
//  2. Defer to confirm for steps requiring confirmation; abort on denial.
//  3. Run backup to completion if set; abort and roll back prior steps on failure.
//  4. Run the step's commands; on failure, abort and roll back prior steps.
//  5. Append a Rollback Record per step.
func (e *Executor) Run(ctx context.Context, plan models.ActionPlan, adviceID string, safety config.SafetyConfig) (Outcome, error) {
	validation := validate.Validate(plan, safety)
	outcome := Outcome{Validation: validation}
	if !validation.Valid {
		return outcome, fmt.Errorf("executor: plan rejected by validator: %d violation(s)", len(validation.Violations))
	}

	var executedSteps []models.ActionStep

	for _, step := range plan.Steps {
		if step.RequiresConfirmation {
			if e.confirm == nil {
				return outcome, fmt.Errorf("executor: step %q requires confirmation but no confirm channel configured", step.ID)
			}
			ok, err := e.confirm(ctx, step)
			if err != nil {
				return outcome, fmt.Errorf("executor: confirmation for step %q failed: %w", step.ID, err)
			}
			if !ok {
				outcome.Confirmed = false
				return outcome, fmt.Errorf("executor: step %q denied by caller", step.ID)
			}
		}
		outcome.Confirmed = true

		if step.Backup != "" {
			result := e.runCommand(ctx, step.ID+":backup", step.Backup)
			outcome.Steps = append(outcome.Steps, result)
			if result.Err != nil || result.ExitCode != 0 {
				e.rollbackExecuted(ctx, &outcome, plan, executedSteps)
				return outcome, fmt.Errorf("executor: backup for step %q failed: %w", step.ID, result.Err)
			}
		}

		failed := false
		for _, command := range step.Commands {
			result := e.runCommand(ctx, step.ID, command)
			outcome.Steps = append(outcome.Steps, result)
			if result.Err != nil || result.ExitCode != 0 {
				failed = true
				break
			}
		}
		if failed {
			e.rollbackExecuted(ctx, &outcome, plan, executedSteps)
			return outcome, fmt.Errorf("executor: step %q failed", step.ID)
		}

		executedSteps = append(executedSteps, step)

		if e.ledger != nil {
			reverse := plan.Rollback[step.RollbackID]
			reason := ""
			if reverse == "" {
				reason = "recipe declares no reverse command for this step"
			}
			if _, err := e.ledger.Append(adviceID, step.Description, firstOrEmpty(step.Commands), reverse, reason); err != nil {
				e.logger.Error("failed to append rollback record", "step", step.ID, "error", err)
			}
		}
	}

	return outcome, nil
}

// rollbackExecuted runs rollbacks for every previously successful step in
// reverse order (§4.8 step 3/4, §8 invariant 5).
func (e *Executor) rollbackExecuted(ctx context.Context, outcome *Outcome, plan models.ActionPlan, executed []models.ActionStep) {
	outcome.RolledBack = true
	for i := len(executed) - 1; i >= 0; i-- {
		step := executed[i]
		reverse := plan.Rollback[step.RollbackID]
		if reverse == "" {
			continue
		}
		result := e.runCommand(ctx, step.ID+":rollback", reverse)
		outcome.RollbackResults = append(outcome.RollbackResults, result)
	}
}

func (e *Executor) runCommand(ctx context.Context, stepID, command string) StepResult {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	stdout, stderr, exitCode, err := e.run(runCtx, []string{"sh", "-c", command})
	return StepResult{
		StepID:   stepID,
		Ran:      true,
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		Err:      err,
	}
}

func firstOrEmpty(commands []string) string {
	if len(commands) == 0 {
		return ""
	}
	return commands[0]
}
