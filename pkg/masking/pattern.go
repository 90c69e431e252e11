package masking

import "regexp"

// CompiledPattern holds a pre-compiled regex pattern with its replacement,
// following the teacher's "compile once, apply many" discipline.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// builtinPatterns are the patterns the Service compiles eagerly at
// construction. Snapshot invariants (§3.1) require network addresses and
// RSSI to be redacted before a NetMetrics reading leaves the Probe
// Registry boundary.
var builtinPatterns = []CompiledPattern{
	{
		Name:        "ipv4_address",
		Regex:       regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
		Replacement: "[REDACTED_IPV4]",
		Description: "IPv4 addresses",
	},
	{
		Name:        "mac_address",
		Regex:       regexp.MustCompile(`\b(?:[0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}\b`),
		Replacement: "[REDACTED_MAC]",
		Description: "MAC / BSSID addresses",
	},
	{
		Name:        "ipv6_address",
		Regex:       regexp.MustCompile(`\b(?:[0-9A-Fa-f]{0,4}:){2,7}[0-9A-Fa-f]{0,4}\b`),
		Replacement: "[REDACTED_IPV6]",
		Description: "IPv6 addresses",
	},
	{
		Name:        "rssi_dbm",
		Regex:       regexp.MustCompile(`-?\d{1,3}\s?dBm`),
		Replacement: "[REDACTED_RSSI]",
		Description: "Wi-Fi signal strength readings",
	},
}

func compileBuiltinPatterns() []*CompiledPattern {
	out := make([]*CompiledPattern, len(builtinPatterns))
	for i := range builtinPatterns {
		p := builtinPatterns[i]
		out[i] = &p
	}
	return out
}
