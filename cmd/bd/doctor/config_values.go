package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/fwindolf/beads-rs-sub001/internal/config"
	"github.com/fwindolf/beads-rs-sub001/internal/configfile"
	"github.com/fwindolf/beads-rs-sub001/internal/storage"
	"github.com/fwindolf/beads-rs-sub001/internal/storage/sqlite"
)

// validActorRegex validates actor names (alphanumeric with dashes, underscores, dots, and @ for emails)
var validActorRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._@-]*$`)

// validCustomNameRegex validates custom status and type names
var validCustomNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// CheckConfigValues validates config.yaml, metadata.json and the custom
// status and type lists stored in the database.
func CheckConfigValues(beadsDir string) DoctorCheck {
	var issues []string
	issues = append(issues, checkYAMLConfigValues(beadsDir)...)
	issues = append(issues, checkMetadataConfigValues(beadsDir)...)
	issues = append(issues, checkDatabaseConfigValues(beadsDir)...)

	if len(issues) == 0 {
		return ok("Config Values", "All configuration values are valid")
	}
	return DoctorCheck{
		Name:    "Config Values",
		Status:  StatusWarning,
		Message: fmt.Sprintf("Found %d configuration issue(s)", len(issues)),
		Detail:  strings.Join(issues, "\n"),
		Fix:     "Edit config files to fix invalid values. Run 'bd config list' to view current settings.",
	}
}

func checkYAMLConfigValues(beadsDir string) []string {
	configPath := filepath.Join(beadsDir, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	// Parse strictly first: viper tolerates some malformed input.
	if _, err := config.ParseYamlFile(configPath); err != nil {
		return []string{fmt.Sprintf("config.yaml: failed to parse: %v", err)}
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return []string{fmt.Sprintf("config.yaml: failed to parse: %v", err)}
	}

	var issues []string
	for _, key := range []string{
		config.KeyJSON, config.KeyReadOnly, config.KeyLockTimeout,
		config.KeyMaxCollisionProb, config.KeyMinHashLength, config.KeyMaxHashLength,
	} {
		if !v.IsSet(key) {
			continue
		}
		if err := config.ValidateYamlValue(key, v.GetString(key)); err != nil {
			issues = append(issues, err.Error())
		}
	}

	if v.IsSet(config.KeyMinHashLength) && v.IsSet(config.KeyMaxHashLength) &&
		v.GetInt(config.KeyMinHashLength) > v.GetInt(config.KeyMaxHashLength) {
		issues = append(issues, fmt.Sprintf("%s (%d) is greater than %s (%d)",
			config.KeyMinHashLength, v.GetInt(config.KeyMinHashLength),
			config.KeyMaxHashLength, v.GetInt(config.KeyMaxHashLength)))
	}

	if actor := v.GetString(config.KeyActor); actor != "" && !validActorRegex.MatchString(actor) {
		issues = append(issues, fmt.Sprintf("actor: %q is invalid (letters, digits, '.', '_', '@', '-')", actor))
	}

	if db := v.GetString(config.KeyDB); db != "" && !strings.HasSuffix(db, ".db") {
		issues = append(issues, fmt.Sprintf("db: %q does not look like a database file (expected a .db path)", db))
	}

	issues = append(issues, checkCustomNames(config.KeyCustomTypes, v.GetString(config.KeyCustomTypes))...)
	issues = append(issues, checkCustomNames(config.KeyCustomStatuses, v.GetString(config.KeyCustomStatuses))...)
	return issues
}

func checkMetadataConfigValues(beadsDir string) []string {
	cfg, err := configfile.Load(beadsDir)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", configfile.ConfigFileName, err)}
	}
	if cfg == nil {
		return nil
	}

	var issues []string
	if strings.ContainsAny(cfg.Database, "*?[") {
		issues = append(issues, fmt.Sprintf("%s database: %q contains glob characters", configfile.ConfigFileName, cfg.Database))
	}
	if cfg.JSONLExport != "" && !strings.HasSuffix(cfg.JSONLExport, ".jsonl") {
		issues = append(issues, fmt.Sprintf("%s jsonl_export: %q should end in .jsonl", configfile.ConfigFileName, cfg.JSONLExport))
	}
	return issues
}

func checkDatabaseConfigValues(beadsDir string) []string {
	var issues []string
	check := withStore(beadsDir, "Config Values", func(ctx context.Context, s storage.Storage) DoctorCheck {
		for _, key := range []string{sqlite.CustomStatusConfigKey, sqlite.CustomTypeConfigKey} {
			value, err := s.GetConfig(ctx, key)
			if err != nil {
				issues = append(issues, fmt.Sprintf("%s: %v", key, err))
				continue
			}
			issues = append(issues, checkCustomNames(key, value)...)
		}
		prefix, _ := s.GetConfig(ctx, sqlite.IssuePrefixConfigKey)
		if strings.HasSuffix(prefix, "-") {
			issues = append(issues, fmt.Sprintf("%s: %q should not end with '-'", sqlite.IssuePrefixConfigKey, prefix))
		}
		return ok("Config Values", "")
	})
	if check.Status == StatusError {
		issues = append(issues, check.Message+": "+check.Detail)
	}
	return issues
}

// checkCustomNames validates a comma-separated custom status or type list.
func checkCustomNames(key, value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var bad []string
	seen := make(map[string]bool)
	for _, name := range strings.Split(value, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if !validCustomNameRegex.MatchString(name) {
			bad = append(bad, fmt.Sprintf("%s: %q is invalid (lowercase letters, digits, '_', '-')", key, name))
		}
		if seen[name] {
			bad = append(bad, fmt.Sprintf("%s: %q is listed twice", key, name))
		}
		seen[name] = true
	}
	sort.Strings(bad)
	return bad
}
