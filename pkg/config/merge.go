package config

import (
	"fmt"

	"dario.cat/mergo"
)

const defaultProfileName = "workstation"

// resolveConfig layers a profile template under the user's anna.yaml and
// priorities.yaml, producing the final Config. User-set fields always win
// over the profile's defaults; the profile only fills in what the user left
// zero-valued.
func resolveConfig(profiles map[string]ProfileTemplate, master MasterYAMLConfig, priorities PrioritiesYAMLConfig) (*Config, error) {
	profileName := master.Profile
	if profileName == "" {
		profileName = defaultProfileName
	}

	tpl, ok := profiles[profileName]
	if !ok {
		return nil, NewValidationError("profile", profileName, "", ErrProfileNotFound)
	}

	resolvedMaster := tpl.Master
	if err := mergo.Merge(&resolvedMaster, master, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("config: merge master config over profile %q: %w", profileName, err)
	}
	resolvedMaster.Profile = profileName

	resolvedPriorities := tpl.Priorities
	if err := mergo.Merge(&resolvedPriorities, priorities, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("config: merge priorities over profile %q: %w", profileName, err)
	}

	safety := resolvedMaster.Safety
	if safety == nil {
		safety = DefaultSafetyConfig()
	}
	scheduler := resolvedMaster.Scheduler
	if scheduler == nil {
		scheduler = DefaultSchedulerConfig()
	}
	desktop := resolvedMaster.Desktop
	if desktop == nil {
		desktop = &DesktopPrefs{}
	}

	return &Config{
		Version:              resolvedMaster.Version,
		Profile:              resolvedMaster.Profile,
		Autonomy:             resolvedMaster.Autonomy,
		StabilityPreference:  resolvedMaster.StabilityPreference,
		Privacy:              resolvedMaster.Privacy,
		Desktop:              *desktop,
		Safety:               *safety,
		Scheduler:            *scheduler,
		ModuleScopes:         resolvedMaster.ModuleScopes,
		Priorities:           resolvedPriorities,
	}, nil
}
