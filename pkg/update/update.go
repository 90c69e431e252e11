// Package update implements the daemon's self-update surface: checking
// whether a newer annad package is available from pacman, and applying it.
// Grounded on pkg/probe/procfs.go's exec-and-parse idiom for shelling out
// to system tools.
package update

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/anna-project/annad/pkg/version"
)

// PackageName is the pacman package this daemon ships as.
const PackageName = "annad"

// DefaultCheckTimeout bounds one pacman -Qu invocation.
const DefaultCheckTimeout = 10 * time.Second

// DefaultPerformTimeout bounds one pacman -S invocation.
const DefaultPerformTimeout = 5 * time.Minute

// Info reports whether a newer package is available.
type Info struct {
	CurrentVersion   string `json:"current_version"`
	AvailableVersion string `json:"available_version,omitempty"`
	Available        bool   `json:"available"`
}

// runFunc is the exec seam tests override; production uses execCombined.
var runFunc = execCombined

// Check runs `pacman -Qu` for PackageName and reports whether an update is
// queued. A non-matching (clean) exit from pacman -Qu means no update is
// available, not a failure — pacman exits 1 when the filtered set is empty.
func Check(ctx context.Context) (Info, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultCheckTimeout)
	defer cancel()

	out, err := runFunc(ctx, "pacman", "-Qu", PackageName)
	info := Info{CurrentVersion: version.GitCommit}
	if err != nil {
		if out == "" {
			// pacman -Qu exits non-zero when the filtered package set is
			// empty; empty output alongside the error means "no update",
			// not a failed check.
			return info, nil
		}
		return info, fmt.Errorf("update: check: %w", err)
	}

	line := strings.TrimSpace(out)
	if line == "" {
		return info, nil
	}
	// pacman -Qu prints "<pkg> <old> -> <new>".
	fields := strings.Fields(line)
	if len(fields) >= 4 {
		info.Available = true
		info.AvailableVersion = fields[3]
	}
	return info, nil
}

// Perform installs the queued update non-interactively.
func Perform(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultPerformTimeout)
	defer cancel()

	out, err := runFunc(ctx, "pacman", "-S", "--noconfirm", PackageName)
	if err != nil {
		return out, fmt.Errorf("update: perform: %w", err)
	}
	return out, nil
}

func execCombined(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.String(), err
}
