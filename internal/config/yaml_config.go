package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// YamlOnlyKeys are configuration keys that must be stored in config.yaml
// rather than the database config table. These are startup settings read
// before the database is opened.
var YamlOnlyKeys = map[string]bool{
	KeyJSON:        true,
	KeyDB:          true,
	KeyActor:       true,
	KeyLockTimeout: true,
	KeyReadOnly:    true,
}

// IsYamlOnlyKey returns true if the given key should be stored in config.yaml
// rather than the database.
func IsYamlOnlyKey(key string) bool {
	if YamlOnlyKeys[key] {
		return true
	}
	// id.* seeds the database settings at init time.
	return strings.HasPrefix(key, "id.")
}

// keyAliases maps alternative key names to their canonical yaml form.
var keyAliases = map[string]string{
	"lock_timeout":  KeyLockTimeout,
	"read-only":     KeyReadOnly,
	"database":      KeyDB,
	"id.min_length": KeyMinHashLength,
	"id.max_length": KeyMaxHashLength,
}

func normalizeYamlKey(key string) string {
	if canonical, ok := keyAliases[key]; ok {
		return canonical
	}
	return key
}

// SetYamlConfig sets a value in the project's config.yaml, updating the key in
// place (uncommenting it if needed) or appending it.
func SetYamlConfig(key, value string) error {
	key = normalizeYamlKey(key)
	if err := ValidateYamlValue(key, value); err != nil {
		return err
	}

	configPath, err := findProjectConfigYaml()
	if err != nil {
		return err
	}

	content, err := os.ReadFile(configPath) //nolint:gosec // configPath is from findProjectConfigYaml
	if err != nil {
		return fmt.Errorf("failed to read config.yaml: %w", err)
	}

	newContent, err := updateYamlKey(string(content), key, value)
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, []byte(newContent), 0600); err != nil {
		return fmt.Errorf("failed to write config.yaml: %w", err)
	}
	return nil
}

// GetYamlConfig gets a configuration value from config.yaml.
// Returns empty string if key is not found or is commented out.
func GetYamlConfig(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(normalizeYamlKey(key))
}

// ParseYamlFile decodes a config.yaml into a generic map. A file holding only
// comments decodes to an empty map.
func ParseYamlFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path) //nolint:gosec // caller-supplied config path
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

func findProjectConfigYaml() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		configPath := filepath.Join(dir, ".beads", "config.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
	}
	return "", fmt.Errorf("no .beads/config.yaml found (run 'bd init' first)")
}

// updateYamlKey updates a top-level key in yaml content, handling commented-out
// keys. Missing keys are appended. The result must still parse as yaml.
func updateYamlKey(content, key, value string) (string, error) {
	newLine := fmt.Sprintf("%s: %s", key, formatYamlValue(value))

	// "key: value" or "# key: value" with optional leading whitespace
	keyPattern := regexp.MustCompile(`^(\s*)(#\s*)?` + regexp.QuoteMeta(key) + `\s*:`)

	found := false
	var result []string

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if !found && keyPattern.MatchString(line) {
			indent := keyPattern.FindStringSubmatch(line)[1]
			result = append(result, indent+newLine)
			found = true
			continue
		}
		result = append(result, line)
	}

	if !found {
		if len(result) > 0 && result[len(result)-1] != "" {
			result = append(result, "")
		}
		result = append(result, newLine)
	}

	updated := strings.Join(result, "\n")
	var check map[string]interface{}
	if err := yaml.Unmarshal([]byte(updated), &check); err != nil {
		return "", fmt.Errorf("setting %s would produce invalid config.yaml: %w", key, err)
	}
	return updated, nil
}

// formatYamlValue formats a value appropriately for YAML.
func formatYamlValue(value string) string {
	lower := strings.ToLower(value)
	if lower == "true" || lower == "false" {
		return lower
	}
	if isNumeric(value) || isDuration(value) {
		return value
	}
	return fmt.Sprintf("%q", value)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if c == '-' && i == 0 {
			continue
		}
		if c == '.' {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isDuration(s string) bool {
	if len(s) < 2 {
		return false
	}
	suffix := s[len(s)-1]
	if suffix != 's' && suffix != 'm' && suffix != 'h' {
		return false
	}
	return isNumeric(s[:len(s)-1])
}

// ValidateYamlValue rejects values that Initialize would silently
// misread for the given key.
func ValidateYamlValue(key, value string) error {
	switch key {
	case KeyLockTimeout:
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("%s must be a positive duration like 30s, got %q", key, value)
		}
	case KeyJSON, KeyReadOnly:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("%s must be true or false, got %q", key, value)
		}
	case KeyMaxCollisionProb:
		p, err := strconv.ParseFloat(value, 64)
		if err != nil || p <= 0 || p >= 1 {
			return fmt.Errorf("%s must be a probability between 0 and 1, got %q", key, value)
		}
	case KeyMinHashLength, KeyMaxHashLength:
		n, err := strconv.Atoi(value)
		if err != nil || n < 3 || n > 8 {
			return fmt.Errorf("%s must be an integer from 3 to 8, got %q", key, value)
		}
	}
	return nil
}
