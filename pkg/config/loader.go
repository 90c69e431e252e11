package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Initialize loads, validates, and returns ready-to-use configuration. This
// is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load anna.yaml and priorities.yaml from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Load built-in profile templates and any user-supplied ones under
//     configDir/profiles
//  5. Resolve the active profile and layer user overrides on top
//  6. Validate all configuration
//  7. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized",
		"profile", stats.Profile,
		"autonomy", stats.Autonomy,
		"module_scopes", stats.ModuleScopes,
		"scheduled_tasks", stats.ScheduledTasks)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	master, err := loader.loadMasterYAML()
	if err != nil {
		return nil, NewLoadError("anna.yaml", err)
	}

	priorities, err := loader.loadPrioritiesYAML()
	if err != nil {
		return nil, NewLoadError("priorities.yaml", err)
	}

	profiles, err := loadBuiltinProfiles()
	if err != nil {
		return nil, err
	}
	userProfiles, err := loader.loadUserProfiles()
	if err != nil {
		return nil, NewLoadError("profiles/*.yaml", err)
	}
	for name, tpl := range userProfiles {
		profiles[name] = tpl // user profiles override built-ins of the same name
	}

	cfg, err := resolveConfig(profiles, *master, *priorities)
	if err != nil {
		return nil, err
	}
	cfg.configDir = configDir
	return cfg, nil
}

func validate(cfg *Config) error {
	v := NewValidator(cfg)
	return v.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return nil
}

func (l *configLoader) loadMasterYAML() (*MasterYAMLConfig, error) {
	var cfg MasterYAMLConfig
	if err := l.loadYAML("anna.yaml", &cfg); err != nil {
		if isNotFound(err) {
			return &cfg, nil // missing anna.yaml just means "take profile defaults"
		}
		return nil, err
	}
	return &cfg, nil
}

func (l *configLoader) loadPrioritiesYAML() (*PrioritiesYAMLConfig, error) {
	var cfg PrioritiesYAMLConfig
	if err := l.loadYAML("priorities.yaml", &cfg); err != nil {
		if isNotFound(err) {
			return &cfg, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// loadUserProfiles reads configDir/profiles/*.yaml, if the directory exists.
func (l *configLoader) loadUserProfiles() (map[string]ProfileTemplate, error) {
	dir := filepath.Join(l.configDir, "profiles")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	out := make(map[string]ProfileTemplate, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		var tpl ProfileTemplate
		if err := l.loadYAML(filepath.Join("profiles", entry.Name()), &tpl); err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		if tpl.Name == "" {
			return nil, fmt.Errorf("%s: %w: name", entry.Name(), ErrMissingRequiredField)
		}
		out[tpl.Name] = tpl
	}
	return out, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrConfigNotFound)
}
