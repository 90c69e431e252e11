// Package version reports annad's build identity: the daemon stamps
// Full() into the health RPC response and into its own startup log line,
// so an operator comparing annactl output across two hosts can tell
// whether they're running the same build.
//
// The commit hash comes from runtime/debug.BuildInfo, which Go 1.18+
// embeds automatically from VCS metadata - no -ldflags wiring needed.
// `go test` and non-git builds fall back to GitCommit == "dev".
package version

import "runtime/debug"

// AppName names the daemon in version strings and RPC handshakes.
const AppName = "annad"

// GitCommit is the short (8-char) git commit hash, or "dev" if build info
// carries no vcs.revision setting.
var GitCommit = initGitCommit()

func initGitCommit() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			if len(s.Value) > 8 {
				return s.Value[:8]
			}
			return s.Value
		}
	}
	return "dev"
}

// Full returns "annad/<commit>" for use in user-agent strings, logging, etc.
func Full() string {
	return AppName + "/" + GitCommit
}
