package helpers

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/sage-go/internal/app"
	configapp "github.com/doeshing/sage-go/internal/application/config"
	"github.com/doeshing/sage-go/internal/domain"
	configinfra "github.com/doeshing/sage-go/internal/infrastructure/config"
)

// GetConfigLoader returns the writable loader behind the container.
func GetConfigLoader(container *app.Container) (*configinfra.FileLoader, error) {
	if container == nil || container.ConfigLoader == nil {
		return nil, errors.New("configuration loader not initialized")
	}
	return container.ConfigLoader, nil
}

// SaveConfigWithValidation rejects an invalid cfg, backs up the current file
// when one exists and writes cfg in its place.
func SaveConfigWithValidation(container *app.Container, cfg domain.Config) error {
	loader, err := GetConfigLoader(container)
	if err != nil {
		return err
	}
	if err := configapp.Validate(cfg); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	_, statErr := os.Stat(loader.Path())
	switch {
	case statErr == nil:
		if _, err := loader.Backup(); err != nil {
			return fmt.Errorf("back up configuration: %w", err)
		}
	case !errors.Is(statErr, fs.ErrNotExist):
		return statErr
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("save configuration: %w", err)
	}
	return nil
}

// SplitAndTrimCSV splits comma-separated values (possibly repeated flags) and trims whitespace
func SplitAndTrimCSV(inputs ...string) []string {
	var result []string
	for _, input := range inputs {
		for _, part := range strings.Split(input, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
	}
	return result
}

// ParseAssignments turns ["claude=opus", "gemini=flash"] into a map.
// A bare value without "=" is stored under the "*" key.
func ParseAssignments(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for _, raw := range SplitAndTrimCSV(values...) {
		key, value, found := strings.Cut(raw, "=")
		if !found {
			key, value = "*", raw
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key == "" || value == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected provider=model", raw)
		}
		out[key] = value
	}
	return out, nil
}

// ParseYAMLValue parses a string value as YAML, falling back to the literal string
func ParseYAMLValue(input string) interface{} {
	var parsed interface{}
	if err := yaml.Unmarshal([]byte(input), &parsed); err != nil {
		return input
	}
	return parsed
}

// LookupPath walks a dotted key path through nested maps.
func LookupPath(data interface{}, keyPath []string) (interface{}, bool) {
	for _, key := range keyPath {
		node, ok := data.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if data, ok = node[key]; !ok {
			return nil, false
		}
	}
	return data, true
}

// AssignPath sets value at keyPath, creating intermediate maps and replacing
// scalars that sit in the way.
func AssignPath(root map[string]interface{}, keyPath []string, value interface{}) bool {
	if len(keyPath) == 0 {
		return false
	}
	current := root
	for _, key := range keyPath[:len(keyPath)-1] {
		child, ok := current[key].(map[string]interface{})
		if !ok {
			child = map[string]interface{}{}
			current[key] = child
		}
		current = child
	}
	current[keyPath[len(keyPath)-1]] = value
	return true
}
