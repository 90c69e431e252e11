package masking

import "log/slog"

// Service redacts network addresses and signal-strength values out of
// probe evidence before it reaches a Snapshot, a Learned Fact, or a Debug
// Event payload. Created once at daemon startup (singleton); stateless
// aside from its compiled patterns, safe for concurrent use.
type Service struct {
	patterns []*CompiledPattern
}

// NewService compiles the built-in redaction patterns eagerly.
func NewService() *Service {
	s := &Service{patterns: compileBuiltinPatterns()}
	slog.Info("masking service initialized", "patterns", len(s.patterns))
	return s
}

// Redact applies every compiled pattern to raw and returns the masked
// result. Safe to call on already-masked content (idempotent).
func (s *Service) Redact(raw string) string {
	if raw == "" {
		return raw
	}
	masked := raw
	for _, p := range s.patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	return masked
}

// RedactAddress is a convenience wrapper used by net probes to produce the
// NetMetrics.AddressRedacted field from a raw interface address.
func (s *Service) RedactAddress(raw string) string {
	if raw == "" {
		return ""
	}
	return s.Redact(raw)
}

// RedactRSSI is a convenience wrapper that produces the masked form of a
// raw RSSI reading for NetMetrics.RSSIRedacted. No built-in probe collects
// RSSI, so nothing in pkg/probe calls it.
func (s *Service) RedactRSSI(raw string) string {
	if raw == "" {
		return ""
	}
	return s.Redact(raw)
}
