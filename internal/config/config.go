package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fwindolf/beads-rs-sub001/internal/debug"
	"github.com/fwindolf/beads-rs-sub001/internal/git"
)

// Startup keys read from config.yaml or BD_* environment variables.
const (
	KeyJSON             = "json"
	KeyDB               = "db"
	KeyActor            = "actor"
	KeyLockTimeout      = "lock-timeout"
	KeyReadOnly         = "readonly"
	KeyCustomTypes      = "types.custom"
	KeyCustomStatuses   = "status.custom"
	KeyMaxCollisionProb = "id.max-collision-prob"
	KeyMinHashLength    = "id.min-hash-length"
	KeyMaxHashLength    = "id.max-hash-length"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton.
// Should be called once at application startup.
func Initialize() error {
	v = viper.New()

	// Only config.yaml is loaded; metadata.json is read by configfile.
	v.SetConfigType("yaml")

	// Precedence: project .beads/config.yaml > ~/.config/bd/config.yaml > ~/.beads/config.yaml
	configPath := locateConfigYaml()
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	// BD_LOCK_TIMEOUT maps to lock-timeout, BD_ID_MIN_HASH_LENGTH to id.min-hash-length.
	v.SetEnvPrefix("BD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// BEADS_ACTOR is accepted for compatibility with older setups.
	_ = v.BindEnv(KeyActor, "BD_ACTOR", "BEADS_ACTOR")

	v.SetDefault(KeyJSON, false)
	v.SetDefault(KeyDB, "")
	v.SetDefault(KeyActor, "")
	v.SetDefault(KeyLockTimeout, "30s")
	v.SetDefault(KeyReadOnly, false)
	v.SetDefault(KeyCustomTypes, "")
	v.SetDefault(KeyCustomStatuses, "")
	v.SetDefault(KeyMaxCollisionProb, 0.25)
	v.SetDefault(KeyMinHashLength, 3)
	v.SetDefault(KeyMaxHashLength, 8)

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		debug.Logf("config: loaded %s", v.ConfigFileUsed())
	} else {
		debug.Logf("config: no config.yaml found; using defaults and environment")
	}

	return nil
}

func locateConfigYaml() string {
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			p := filepath.Join(dir, ".beads", "config.yaml")
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		p := filepath.Join(configDir, "bd", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(homeDir, ".beads", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// ResetForTesting clears the config state, allowing Initialize() to be called again.
// Not thread-safe.
func ResetForTesting() {
	v = nil
}

// ConfigSource represents where a configuration value came from
type ConfigSource string

const (
	SourceDefault    ConfigSource = "default"
	SourceConfigFile ConfigSource = "config_file"
	SourceEnvVar     ConfigSource = "env_var"
	SourceFlag       ConfigSource = "flag"
)

// ConfigOverride represents a detected configuration override
type ConfigOverride struct {
	Key            string
	EffectiveValue interface{}
	OverriddenBy   ConfigSource
	OriginalSource ConfigSource
}

func envKeyFor(prefix, key string) string {
	return prefix + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
}

// GetValueSource returns the source of a configuration value.
// Priority (highest to lowest): env var > config file > default.
// Flags are not visible to viper; callers compare those themselves.
func GetValueSource(key string) ConfigSource {
	if v == nil {
		return SourceDefault
	}
	if os.Getenv(envKeyFor("BD_", key)) != "" || os.Getenv(envKeyFor("BEADS_", key)) != "" {
		return SourceEnvVar
	}
	if v.InConfig(key) {
		return SourceConfigFile
	}
	return SourceDefault
}

// CheckOverrides reports flags that were explicitly set over a config file or
// environment value. flagOverrides maps key to (flag value, flag was set).
func CheckOverrides(flagOverrides map[string]struct {
	Value  interface{}
	WasSet bool
}) []ConfigOverride {
	var overrides []ConfigOverride
	for key, flagInfo := range flagOverrides {
		if !flagInfo.WasSet {
			continue
		}
		source := GetValueSource(key)
		if source == SourceConfigFile || source == SourceEnvVar {
			overrides = append(overrides, ConfigOverride{
				Key:            key,
				EffectiveValue: flagInfo.Value,
				OverriddenBy:   SourceFlag,
				OriginalSource: source,
			})
		}
	}
	return overrides
}

// LogOverride writes a debug line describing an override.
func LogOverride(o ConfigOverride) {
	debug.Logf("config: %s overridden by %s (was from %s, now: %v)", o.Key, o.OverriddenBy, o.OriginalSource, o.EffectiveValue)
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetFloat64 retrieves a float configuration value
func GetFloat64(key string) float64 {
	if v == nil {
		return 0
	}
	return v.GetFloat64(key)
}

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set sets a configuration value (used by flag overrides).
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// AllSettings returns all configuration settings as a map
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}

// ConfigFileUsed returns the path of the loaded config.yaml, or "".
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// GetStringSlice retrieves a string slice configuration value
func GetStringSlice(key string) []string {
	if v == nil {
		return []string{}
	}
	return v.GetStringSlice(key)
}

// GetLockTimeout returns the database busy timeout, falling back to 30s on a
// malformed or non-positive value.
func GetLockTimeout() time.Duration {
	d := GetDuration(KeyLockTimeout)
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}

// IDConfig carries the id.* settings that seed the adaptive id length.
type IDConfig struct {
	MaxCollisionProb float64
	MinHashLength    int
	MaxHashLength    int
}

// GetIDConfig returns the id.* settings. bd init copies them into the database config table.
func GetIDConfig() IDConfig {
	cfg := IDConfig{
		MaxCollisionProb: GetFloat64(KeyMaxCollisionProb),
		MinHashLength:    GetInt(KeyMinHashLength),
		MaxHashLength:    GetInt(KeyMaxHashLength),
	}
	if cfg.MaxCollisionProb <= 0 || cfg.MaxCollisionProb >= 1 {
		cfg.MaxCollisionProb = 0.25
	}
	if cfg.MinHashLength < 3 || cfg.MinHashLength > 8 {
		cfg.MinHashLength = 3
	}
	if cfg.MaxHashLength < cfg.MinHashLength || cfg.MaxHashLength > 8 {
		cfg.MaxHashLength = 8
	}
	return cfg
}

// GetActor resolves who is performing a mutation.
// Priority chain:
//  1. flagValue (--actor)
//  2. BD_ACTOR / BEADS_ACTOR / config.yaml actor
//  3. git config user.name
//  4. USER
func GetActor(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if actor := GetString(KeyActor); actor != "" {
		return actor
	}
	if gitUser := git.UserName(); gitUser != "" {
		return gitUser
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}

// GetCustomTypesFromYAML retrieves custom issue types from config.yaml.
// The store falls back to these when the database has no types.custom row
// (e.g. during import into a freshly initialised database).
// Returns nil if none are configured.
func GetCustomTypesFromYAML() []string {
	if v == nil {
		return nil
	}
	return splitList(v.GetString(KeyCustomTypes))
}

// GetCustomStatusesFromYAML is the status.custom counterpart of GetCustomTypesFromYAML.
func GetCustomStatusesFromYAML() []string {
	if v == nil {
		return nil
	}
	return splitList(v.GetString(KeyCustomStatuses))
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
