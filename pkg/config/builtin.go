package config

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.yaml
var builtinProfilesFS embed.FS

// loadBuiltinProfiles decodes the bundled profile templates shipped inside
// the binary. These are always available even with an empty config
// directory, following the teacher's pattern of shipping sane built-in
// defaults alongside a user override layer.
func loadBuiltinProfiles() (map[string]ProfileTemplate, error) {
	entries, err := builtinProfilesFS.ReadDir("profiles")
	if err != nil {
		return nil, fmt.Errorf("config: read embedded profiles: %w", err)
	}

	out := make(map[string]ProfileTemplate, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		raw, err := builtinProfilesFS.ReadFile("profiles/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("config: read embedded profile %s: %w", entry.Name(), err)
		}
		var tpl ProfileTemplate
		if err := yaml.Unmarshal(raw, &tpl); err != nil {
			return nil, fmt.Errorf("config: parse embedded profile %s: %w", entry.Name(), err)
		}
		if tpl.Name == "" {
			return nil, fmt.Errorf("config: embedded profile %s missing name", entry.Name())
		}
		out[tpl.Name] = tpl
	}
	return out, nil
}
