package rpc

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// DefaultSocketPaths is the discovery order's fixed fallback set, tried
// after an explicit argument and ANNAD_SOCKET (§4.11).
var DefaultSocketPaths = []string{"/run/anna/anna.sock", "/run/anna.sock"}

// ResolveSocketPath implements §4.11's discovery order: explicit argument,
// then ANNAD_SOCKET, then the first fixed fallback path that exists, else
// the first fallback path.
func ResolveSocketPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("ANNAD_SOCKET"); env != "" {
		return env
	}
	for _, p := range DefaultSocketPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return DefaultSocketPaths[0]
}

// socketDirPerm/socketFilePerm mirror §4.11's directory/socket permission
// requirements.
const (
	socketDirPerm  = 0o750
	socketFilePerm = 0o660
)

// Listen binds a Unix socket at path, handling a stale socket left behind
// by a crashed daemon: if the path exists, probe it; if nothing answers,
// remove and rebind; if something does, refuse to start.
func Listen(path string) (net.Listener, error) {
	if err := os.MkdirAll(parentDir(path), socketDirPerm); err != nil {
		return nil, fmt.Errorf("rpc: create socket directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if isSocketLive(path) {
			return nil, fmt.Errorf("rpc: socket %s is already in use by a running daemon", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("rpc: remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("rpc: listen on %s: %w", path, err)
	}
	if err := os.Chmod(path, socketFilePerm); err != nil {
		ln.Close()
		return nil, fmt.Errorf("rpc: chmod socket: %w", err)
	}
	return ln, nil
}

// isSocketLive dials path briefly to check whether a process is still
// listening; on any dial failure (including ECONNREFUSED for an orphaned
// inode) it reports false so the caller removes and rebinds.
func isSocketLive(path string) bool {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return !errors.Is(err, syscall.ECONNREFUSED) && !errors.Is(err, syscall.ENOENT) && !os.IsNotExist(err)
	}
	conn.Close()
	return true
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			if i == 0 {
				return "/"
			}
			return path[:i]
		}
	}
	return "."
}
