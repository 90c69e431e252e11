package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anna-project/annad/pkg/config"
	"github.com/anna-project/annad/pkg/models"
	"github.com/anna-project/annad/pkg/rollback"
)

func newTestExecutor(t *testing.T, confirm ConfirmFunc) (*Executor, *rollback.Ledger) {
	t.Helper()
	ledger, err := rollback.New(filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, err)
	exec := New(ledger, confirm, nil)
	return exec, ledger
}

func alwaysApprove(ctx context.Context, step models.ActionStep) (bool, error) { return true, nil }

func TestExecutor_RunsStepsAndAppendsLedgerRecords(t *testing.T) {
	exec, ledger := newTestExecutor(t, alwaysApprove)
	exec.run = func(ctx context.Context, argv []string) (string, string, int, error) {
		return "", "", 0, nil
	}

	plan := models.ActionPlan{
		Steps: []models.ActionStep{
			{ID: "step-1", Risk: models.RiskLow, Commands: []string{"true"}, RollbackID: "undo-1"},
		},
		Rollback: map[string]string{"undo-1": "false"},
	}

	outcome, err := exec.Run(context.Background(), plan, "advice-1", *config.DefaultSafetyConfig())
	require.NoError(t, err)
	assert.True(t, outcome.Validation.Valid)
	assert.False(t, outcome.RolledBack)

	records := ledger.ListRollbackable()
	require.Len(t, records, 1)
	assert.Equal(t, "advice-1", records[0].AdviceID)
}

func TestExecutor_RefusesInvalidPlan(t *testing.T) {
	exec, _ := newTestExecutor(t, alwaysApprove)

	plan := models.ActionPlan{
		Steps: []models.ActionStep{
			{ID: "bad", Risk: models.RiskLow, Target: "/etc/fstab", Commands: []string{"echo x >> /etc/fstab"}},
		},
	}

	outcome, err := exec.Run(context.Background(), plan, "advice-2", *config.DefaultSafetyConfig())
	require.Error(t, err)
	assert.False(t, outcome.Validation.Valid)
}

func TestExecutor_DeniedConfirmationAborts(t *testing.T) {
	deny := func(ctx context.Context, step models.ActionStep) (bool, error) { return false, nil }
	exec, _ := newTestExecutor(t, deny)
	exec.run = func(ctx context.Context, argv []string) (string, string, int, error) { return "", "", 0, nil }

	plan := models.ActionPlan{
		Steps: []models.ActionStep{
			{ID: "risky", Risk: models.RiskHigh, RequiresConfirmation: true, Commands: []string{"true"}},
		},
	}

	_, err := exec.Run(context.Background(), plan, "advice-3", *config.DefaultSafetyConfig())
	assert.Error(t, err)
}

func TestExecutor_RollsBackOnStepFailureInReverseOrder(t *testing.T) {
	exec, _ := newTestExecutor(t, alwaysApprove)

	var rolledBackCommands []string
	callCount := 0
	exec.run = func(ctx context.Context, argv []string) (string, string, int, error) {
		callCount++
		cmd := argv[2]
		switch cmd {
		case "fail-step-3":
			return "", "boom", 1, nil
		case "undo-1", "undo-2":
			rolledBackCommands = append(rolledBackCommands, cmd)
			return "", "", 0, nil
		default:
			return "", "", 0, nil
		}
	}

	plan := models.ActionPlan{
		Steps: []models.ActionStep{
			{ID: "step-1", Risk: models.RiskLow, Commands: []string{"ok-step-1"}, RollbackID: "undo-1"},
			{ID: "step-2", Risk: models.RiskLow, Commands: []string{"ok-step-2"}, RollbackID: "undo-2"},
			{ID: "step-3", Risk: models.RiskLow, Commands: []string{"fail-step-3"}, RollbackID: "undo-3"},
		},
		Rollback: map[string]string{"undo-1": "undo-1", "undo-2": "undo-2", "undo-3": "undo-3"},
	}

	outcome, err := exec.Run(context.Background(), plan, "advice-4", *config.DefaultSafetyConfig())
	require.Error(t, err)
	assert.True(t, outcome.RolledBack)
	assert.Equal(t, []string{"undo-2", "undo-1"}, rolledBackCommands, "steps 1 and 2 succeeded, so their reverses run newest first")
}

func TestExecutor_BackupFailureAbortsBeforeCommands(t *testing.T) {
	exec, _ := newTestExecutor(t, alwaysApprove)

	ranMainCommand := false
	exec.run = func(ctx context.Context, argv []string) (string, string, int, error) {
		cmd := argv[2]
		if cmd == "backup-fails" {
			return "", "", 1, fmt.Errorf("backup failed")
		}
		ranMainCommand = true
		return "", "", 0, nil
	}

	plan := models.ActionPlan{
		Steps: []models.ActionStep{
			{ID: "step-1", Risk: models.RiskLow, Target: "/home/x", Backup: "backup-fails", Commands: []string{"main-command"}},
		},
	}

	_, err := exec.Run(context.Background(), plan, "advice-5", *config.DefaultSafetyConfig())
	assert.Error(t, err)
	assert.False(t, ranMainCommand, "step commands must not run when backup fails")
}
