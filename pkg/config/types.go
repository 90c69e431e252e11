// Package config loads and validates Anna's on-disk configuration: the
// master anna.yaml, priorities.yaml, and the bundled profile templates.
package config

import "time"

// AutonomyLevel controls how much Anna is allowed to do without asking.
type AutonomyLevel string

const (
	AutonomyObserveOnly AutonomyLevel = "observe_only"
	AutonomyAskFirst    AutonomyLevel = "ask_first"
	AutonomyAutoLowRisk AutonomyLevel = "auto_low_risk"
	AutonomyFull        AutonomyLevel = "full"
)

// IsValid reports whether a is one of the known autonomy levels.
func (a AutonomyLevel) IsValid() bool {
	switch a {
	case AutonomyObserveOnly, AutonomyAskFirst, AutonomyAutoLowRisk, AutonomyFull:
		return true
	}
	return false
}

// StabilityPreference biases recipe and recommendation choices toward
// tested packages (stable) or newest available (bleeding).
type StabilityPreference string

const (
	StabilityConservative StabilityPreference = "conservative"
	StabilityBalanced     StabilityPreference = "balanced"
	StabilityBleedingEdge StabilityPreference = "bleeding_edge"
)

// IsValid reports whether s is a known stability preference.
func (s StabilityPreference) IsValid() bool {
	switch s {
	case StabilityConservative, StabilityBalanced, StabilityBleedingEdge:
		return true
	}
	return false
}

// PrivacyMode controls how much telemetry leaves the Learned-Facts Store
// boundary (the daemon never phones home regardless; this gates how much
// raw evidence is retained vs. redacted at collection time).
type PrivacyMode string

const (
	PrivacyStrict  PrivacyMode = "strict"
	PrivacyBalance PrivacyMode = "balanced"
	PrivacyOpen    PrivacyMode = "open"
)

// IsValid reports whether p is a known privacy mode.
func (p PrivacyMode) IsValid() bool {
	switch p {
	case PrivacyStrict, PrivacyBalance, PrivacyOpen:
		return true
	}
	return false
}

// PriorityScale is the 1-5 enumerated scale used in priorities.yaml.
type PriorityScale int

// IsValid reports whether the scale value is in the documented 1..5 range.
func (p PriorityScale) IsValid() bool {
	return p >= 1 && p <= 5
}

// ModuleScope gates which rule groups and recipe families are active.
type ModuleScope string

const (
	ModuleSystemMaintenance  ModuleScope = "system_maintenance"
	ModuleSecurityPrivacy    ModuleScope = "security_privacy"
	ModulePerformance        ModuleScope = "performance_optimization"
	ModuleNetworkConfig      ModuleScope = "network_configuration"
	ModuleDesktopEnvironment ModuleScope = "desktop_environment"
	ModuleGaming             ModuleScope = "gaming"
)

// DesktopPrefs carries desktop-environment hints used by recipes that
// configure GNOME/KDE-flavored settings.
type DesktopPrefs struct {
	Environment string `yaml:"environment,omitempty"`
	DarkMode    *bool  `yaml:"dark_mode,omitempty"`
}

// SafetyConfig mirrors the Safety Context consumed by the Action-Plan
// Validator (§4.6).
type SafetyConfig struct {
	AllowSystemChanges    bool     `yaml:"allow_system_changes"`
	AllowPackageOps       bool     `yaml:"allow_package_operations"`
	MaxRisk               string   `yaml:"max_risk"` // Low | Medium | High
	ForbiddenPaths        []string `yaml:"forbidden_paths,omitempty"`
	RequireConfirmHighRisk bool    `yaml:"require_confirm_high_risk"`
}

// SchedulerConfig mirrors §4.4.
type SchedulerConfig struct {
	FactIntervalHours int              `yaml:"fact_interval_hours"`
	JitterMinutes     int              `yaml:"jitter_minutes"`
	QuietHours        *QuietHours      `yaml:"quiet_hours,omitempty"`
	ScheduledTasks    []ScheduledTask  `yaml:"scheduled_tasks,omitempty"`
}

// QuietHours is an HH:MM start/end window.
type QuietHours struct {
	Start         string `yaml:"start"` // "HH:MM"
	End           string `yaml:"end"`   // "HH:MM"
	SkipEntirely  bool   `yaml:"skip_entirely"`
}

// ScheduleCadence is one of daily/weekly/monthly.
type ScheduleCadence string

const (
	CadenceDaily   ScheduleCadence = "daily"
	CadenceWeekly  ScheduleCadence = "weekly"
	CadenceMonthly ScheduleCadence = "monthly"
)

// ScheduledTask is a named recurring task run by the Scheduler (§4.4).
type ScheduledTask struct {
	Name     string          `yaml:"name" validate:"required"`
	Schedule ScheduleCadence  `yaml:"schedule" validate:"required"`
	Time     string          `yaml:"time" validate:"required"` // "HH:MM"
	Enabled  bool            `yaml:"enabled"`
}

// MasterYAMLConfig is the parsed form of anna.yaml.
type MasterYAMLConfig struct {
	Version              string               `yaml:"version"`
	Profile              string               `yaml:"profile"`
	Autonomy             AutonomyLevel        `yaml:"autonomy_level"`
	StabilityPreference  StabilityPreference  `yaml:"stability_preference"`
	Privacy              PrivacyMode          `yaml:"privacy_mode"`
	Desktop              *DesktopPrefs        `yaml:"desktop,omitempty"`
	Safety               *SafetyConfig        `yaml:"safety,omitempty"`
	Scheduler            *SchedulerConfig     `yaml:"scheduler,omitempty"`
	ModuleScopes         []ModuleScope        `yaml:"module_scopes,omitempty"`
}

// PrioritiesYAMLConfig is the parsed form of priorities.yaml.
type PrioritiesYAMLConfig struct {
	Performance   PriorityScale `yaml:"performance"`
	Responsiveness PriorityScale `yaml:"responsiveness"`
	Battery       PriorityScale `yaml:"battery"`
	Aesthetics    PriorityScale `yaml:"aesthetics"`
	Stability     PriorityScale `yaml:"stability"`
	HandsOff      PriorityScale `yaml:"hands_off"`
	Privacy       PriorityScale `yaml:"privacy"`
}

// ProfileTemplate is the document shape for profiles/*.yaml: a named,
// bundled starting point that seeds MasterYAMLConfig and
// PrioritiesYAMLConfig fields a user hasn't overridden.
type ProfileTemplate struct {
	Name        string               `yaml:"name" validate:"required"`
	Description string               `yaml:"description,omitempty"`
	Master      MasterYAMLConfig     `yaml:"master"`
	Priorities  PrioritiesYAMLConfig `yaml:"priorities"`
}

// BuiltinProfileNames is the bundled set named in §6.1.
var BuiltinProfileNames = []string{"minimal", "beautiful", "workstation", "gaming", "server"}

// Config is the fully resolved, validated configuration ready for use by
// the daemon. It is immutable after Initialize returns; callers that need
// to change it at runtime go through SchedulerConfig RPC setters which
// produce a new Config and swap it atomically (see pkg/rpc).
type Config struct {
	configDir string

	Version             string
	Profile             string
	Autonomy            AutonomyLevel
	StabilityPreference StabilityPreference
	Privacy             PrivacyMode
	Desktop             DesktopPrefs
	Safety              SafetyConfig
	Scheduler           SchedulerConfig
	ModuleScopes        []ModuleScope
	Priorities          PrioritiesYAMLConfig
}

// ConfigDir returns the directory this configuration was loaded from.
func (c *Config) ConfigDir() string { return c.configDir }

// HasModule reports whether the named rule/recipe module is in scope.
func (c *Config) HasModule(m ModuleScope) bool {
	if len(c.ModuleScopes) == 0 {
		return true // no explicit scoping = everything enabled
	}
	for _, scope := range c.ModuleScopes {
		if scope == m {
			return true
		}
	}
	return false
}

// Stats is a small summary surfaced on the RPC health method.
type Stats struct {
	Profile      string
	Autonomy     AutonomyLevel
	ModuleScopes int
	ScheduledTasks int
}

// Stats summarizes the resolved configuration.
func (c *Config) Stats() Stats {
	return Stats{
		Profile:        c.Profile,
		Autonomy:       c.Autonomy,
		ModuleScopes:   len(c.ModuleScopes),
		ScheduledTasks: len(c.Scheduler.ScheduledTasks),
	}
}

// DefaultSchedulerConfig mirrors the §4.4 defaults.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		FactIntervalHours: 4,
		JitterMinutes:     15,
	}
}

// DefaultSafetyConfig mirrors the §4.6 default forbidden-path set.
func DefaultSafetyConfig() *SafetyConfig {
	return &SafetyConfig{
		AllowSystemChanges: true,
		AllowPackageOps:    true,
		MaxRisk:            "Medium",
		ForbiddenPaths: []string{
			"/boot", "/boot/grub", "/etc/fstab", "/etc/crypttab",
			"/etc/mkinitcpio.conf", "/etc/default/grub", "/sys", "/proc", "/dev",
		},
		RequireConfirmHighRisk: true,
	}
}

// RetentionConfig controls pruning cadence shared by pkg/cleanup.
type RetentionConfig struct {
	LearnedFactMaxAge  time.Duration
	TelemetryMaxAge    time.Duration
	RingBufferCapacity int
	CleanupInterval    time.Duration
}

// DefaultRetentionConfig mirrors §4.2's prune_old_facts (7 days), §4.3's
// default ring buffer capacity (60 snapshots), and a 30-day SQLite history
// window past which trend queries are no longer expected to reach.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		LearnedFactMaxAge:  7 * 24 * time.Hour,
		TelemetryMaxAge:    30 * 24 * time.Hour,
		RingBufferCapacity: 60,
		CleanupInterval:    time.Hour,
	}
}
