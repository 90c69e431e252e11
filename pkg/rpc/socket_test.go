package rpc

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSocketPath_PrefersExplicitArgument(t *testing.T) {
	t.Setenv("ANNAD_SOCKET", "/run/env.sock")
	assert.Equal(t, "/explicit.sock", ResolveSocketPath("/explicit.sock"))
}

func TestResolveSocketPath_FallsBackToEnvVar(t *testing.T) {
	t.Setenv("ANNAD_SOCKET", "/run/env.sock")
	assert.Equal(t, "/run/env.sock", ResolveSocketPath(""))
}

func TestResolveSocketPath_FallsBackToDefault(t *testing.T) {
	t.Setenv("ANNAD_SOCKET", "")
	assert.Equal(t, DefaultSocketPaths[0], ResolveSocketPath(""))
}

func TestListen_BindsFreshSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anna.sock")
	ln, err := Listen(path)
	require.NoError(t, err)
	defer ln.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(socketFilePerm), info.Mode().Perm())
}

func TestListen_RemovesStaleSocketAndRebinds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anna.sock")

	// Create a socket inode with nothing listening on it (stale).
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	ln.Close() // closes the listener but the inode may remain depending on OS

	ln2, err := Listen(path)
	require.NoError(t, err)
	defer ln2.Close()
}

func TestListen_RefusesWhenSocketIsLive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anna.sock")
	ln, err := Listen(path)
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	_, err = Listen(path)
	assert.Error(t, err)
}
