package facts

import (
	"os"
	"time"
)

// PacmanLogPath is the default Arch pacman log location the drift check
// watches (§4.2).
const PacmanLogPath = "/var/log/pacman.log"

// StatPackageLogMtime is the default PackageLogMtime: stat's the pacman
// log and returns its modification time.
func StatPackageLogMtime() (time.Time, error) {
	info, err := os.Stat(PacmanLogPath)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
