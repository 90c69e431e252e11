package update

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withRunFunc(t *testing.T, fn func(ctx context.Context, name string, args ...string) (string, error)) {
	t.Helper()
	original := runFunc
	runFunc = fn
	t.Cleanup(func() { runFunc = original })
}

func TestCheck_NoUpdateWhenPacmanExitsCleanWithNoOutput(t *testing.T) {
	withRunFunc(t, func(ctx context.Context, name string, args ...string) (string, error) {
		return "", errors.New("exit status 1")
	})

	info, err := Check(context.Background())
	require.NoError(t, err)
	assert.False(t, info.Available)
}

func TestCheck_ParsesAvailableVersionLine(t *testing.T) {
	withRunFunc(t, func(ctx context.Context, name string, args ...string) (string, error) {
		return "annad 1.2.0-1 -> 1.3.0-1\n", nil
	})

	info, err := Check(context.Background())
	require.NoError(t, err)
	assert.True(t, info.Available)
	assert.Equal(t, "1.3.0-1", info.AvailableVersion)
}

func TestPerform_ReturnsCombinedOutputOnSuccess(t *testing.T) {
	withRunFunc(t, func(ctx context.Context, name string, args ...string) (string, error) {
		return "installing annad...\n", nil
	})

	out, err := Perform(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "installing annad")
}

func TestPerform_WrapsExecError(t *testing.T) {
	withRunFunc(t, func(ctx context.Context, name string, args ...string) (string, error) {
		return "", errors.New("exec: \"pacman\": executable file not found in $PATH")
	})

	_, err := Perform(context.Background())
	require.Error(t, err)
}
