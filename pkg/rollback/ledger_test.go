package rollback

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rollback_ledger.json")
	ledger, err := New(path)
	require.NoError(t, err)
	return ledger
}

func TestLedger_AppendAndListRollbackable(t *testing.T) {
	ledger := newTestLedger(t)

	_, err := ledger.Append("vim-config", "configure vim", "echo x >> ~/.vimrc", "mv ~/.vimrc.bak ~/.vimrc", "")
	require.NoError(t, err)
	_, err = ledger.Append("cleanup-cache", "clear cache", "rm -rf ~/.cache/foo", "", "cache contents cannot be restored")
	require.NoError(t, err)

	rollbackable := ledger.ListRollbackable()
	require.Len(t, rollbackable, 1)
	assert.Equal(t, "vim-config", rollbackable[0].AdviceID)
}

func TestLedger_RollbackActionRunsReverseCommand(t *testing.T) {
	ledger := newTestLedger(t)
	_, err := ledger.Append("vim-config", "configure vim", "echo x >> ~/.vimrc", "mv ~/.vimrc.bak ~/.vimrc", "")
	require.NoError(t, err)

	var executed string
	record, err := ledger.RollbackAction("vim-config", false, func(cmd string) error {
		executed = cmd
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "mv ~/.vimrc.bak ~/.vimrc", executed)
	assert.Equal(t, "vim-config", record.AdviceID)
}

func TestLedger_RollbackActionDryRunDoesNotExecute(t *testing.T) {
	ledger := newTestLedger(t)
	_, err := ledger.Append("vim-config", "configure vim", "echo x", "mv a b", "")
	require.NoError(t, err)

	called := false
	_, err = ledger.RollbackAction("vim-config", true, func(cmd string) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestLedger_RollbackActionNotFound(t *testing.T) {
	ledger := newTestLedger(t)
	_, err := ledger.RollbackAction("missing", false, func(string) error { return nil })
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLedger_RollbackLastRunsInReverseOrder(t *testing.T) {
	ledger := newTestLedger(t)
	_, err := ledger.Append("step-1", "step 1", "cmd1", "rev1", "")
	require.NoError(t, err)
	_, err = ledger.Append("step-2", "step 2", "cmd2", "rev2", "")
	require.NoError(t, err)
	_, err = ledger.Append("step-3", "step 3", "cmd3", "rev3", "")
	require.NoError(t, err)

	var executedInOrder []string
	_, err = ledger.RollbackLast(2, false, func(cmd string) error {
		executedInOrder = append(executedInOrder, cmd)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"rev3", "rev2"}, executedInOrder)
}

func TestLedger_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollback_ledger.json")
	ledger, err := New(path)
	require.NoError(t, err)
	_, err = ledger.Append("step-1", "step 1", "cmd1", "rev1", "")
	require.NoError(t, err)

	reopened, err := New(path)
	require.NoError(t, err)
	assert.Len(t, reopened.ListRollbackable(), 1)
}
