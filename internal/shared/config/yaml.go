package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// loadYAMLFile reads a flat KEY: value document and exports each entry as an
// environment variable unless the variable is already set.
func loadYAMLFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	for key, raw := range values {
		key = strings.ToUpper(strings.TrimSpace(key))
		if key == "" || raw == nil {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		switch v := raw.(type) {
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			os.Setenv(key, strings.Join(parts, ","))
		default:
			os.Setenv(key, fmt.Sprint(v))
		}
	}
	return nil
}
