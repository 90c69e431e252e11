package facts

import (
	"os"
	"strings"
)

// bootIDPath is the kernel-generated random boot id Linux regenerates on
// every boot, used to detect that a STATIC fact (cached as valid for the
// running kernel instance) now belongs to a previous boot.
const bootIDPath = "/proc/sys/kernel/random/boot_id"

// ReadBootID is the default bootID resolver passed to New: it reads the
// kernel's boot id file. Returns "" if unreadable (e.g. non-Linux test
// environments), which simply makes every STATIC fact look boot-mismatched
// until one is freshly learned.
func ReadBootID() string {
	raw, err := os.ReadFile(bootIDPath)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
