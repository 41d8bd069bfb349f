package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// envSnapshot saves and clears BD_/BEADS_ environment variables, restoring
// them when the test finishes.
func envSnapshot(t *testing.T) {
	t.Helper()
	saved := make(map[string]string)
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "BD_") || strings.HasPrefix(env, "BEADS_") {
			key := strings.SplitN(env, "=", 2)[0]
			saved[key] = os.Getenv(key)
			os.Unsetenv(key)
		}
	}
	t.Cleanup(func() {
		for _, env := range os.Environ() {
			if strings.HasPrefix(env, "BD_") || strings.HasPrefix(env, "BEADS_") {
				os.Unsetenv(strings.SplitN(env, "=", 2)[0])
			}
		}
		for key, val := range saved {
			os.Setenv(key, val)
		}
	})
}

// writeProjectConfig creates dir/.beads/config.yaml and chdirs into dir.
func writeProjectConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	beadsDir := filepath.Join(tmpDir, ".beads")
	if err := os.MkdirAll(beadsDir, 0750); err != nil {
		t.Fatalf("failed to create .beads directory: %v", err)
	}
	configPath := filepath.Join(beadsDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Chdir(tmpDir)
	return configPath
}

func TestInitialize(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if v == nil {
		t.Fatal("viper instance is nil after Initialize()")
	}
}

func TestDefaults(t *testing.T) {
	envSnapshot(t)
	t.Chdir(t.TempDir())

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	tests := []struct {
		key      string
		expected interface{}
		getter   func(string) interface{}
	}{
		{KeyJSON, false, func(k string) interface{} { return GetBool(k) }},
		{KeyReadOnly, false, func(k string) interface{} { return GetBool(k) }},
		{KeyDB, "", func(k string) interface{} { return GetString(k) }},
		{KeyActor, "", func(k string) interface{} { return GetString(k) }},
		{KeyLockTimeout, 30 * time.Second, func(k string) interface{} { return GetDuration(k) }},
		{KeyMaxCollisionProb, 0.25, func(k string) interface{} { return GetFloat64(k) }},
		{KeyMinHashLength, 3, func(k string) interface{} { return GetInt(k) }},
		{KeyMaxHashLength, 8, func(k string) interface{} { return GetInt(k) }},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := tt.getter(tt.key); got != tt.expected {
				t.Errorf("%s = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestEnvironmentBinding(t *testing.T) {
	envSnapshot(t)

	tests := []struct {
		envVar   string
		key      string
		value    string
		expected interface{}
		getter   func(string) interface{}
	}{
		{"BD_JSON", KeyJSON, "true", true, func(k string) interface{} { return GetBool(k) }},
		{"BD_ACTOR", KeyActor, "testuser", "testuser", func(k string) interface{} { return GetString(k) }},
		{"BEADS_ACTOR", KeyActor, "legacy", "legacy", func(k string) interface{} { return GetString(k) }},
		{"BD_DB", KeyDB, "/tmp/test.db", "/tmp/test.db", func(k string) interface{} { return GetString(k) }},
		{"BD_LOCK_TIMEOUT", KeyLockTimeout, "5s", 5 * time.Second, func(k string) interface{} { return GetDuration(k) }},
		{"BD_ID_MIN_HASH_LENGTH", KeyMinHashLength, "5", 5, func(k string) interface{} { return GetInt(k) }},
	}

	for _, tt := range tests {
		t.Run(tt.envVar, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.value)
			if err := Initialize(); err != nil {
				t.Fatalf("Initialize() returned error: %v", err)
			}
			if got := tt.getter(tt.key); got != tt.expected {
				t.Errorf("%s with %s=%s = %v, want %v", tt.key, tt.envVar, tt.value, got, tt.expected)
			}
		})
	}
}

func TestConfigFile(t *testing.T) {
	envSnapshot(t)

	configPath := writeProjectConfig(t, `
json: true
actor: configuser
lock-timeout: 15s
id:
  max-collision-prob: 0.1
types:
  custom: "molecule,gate"
`)

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	if got := GetBool(KeyJSON); !got {
		t.Errorf("GetBool(json) = %v, want true", got)
	}
	if got := GetString(KeyActor); got != "configuser" {
		t.Errorf("GetString(actor) = %q, want \"configuser\"", got)
	}
	if got := GetLockTimeout(); got != 15*time.Second {
		t.Errorf("GetLockTimeout() = %v, want 15s", got)
	}
	if got := GetIDConfig().MaxCollisionProb; got != 0.1 {
		t.Errorf("MaxCollisionProb = %v, want 0.1", got)
	}

	resolved, _ := filepath.EvalSymlinks(configPath)
	used, _ := filepath.EvalSymlinks(ConfigFileUsed())
	if used != resolved {
		t.Errorf("ConfigFileUsed() = %q, want %q", used, resolved)
	}
}

func TestConfigFileInSubdirectory(t *testing.T) {
	envSnapshot(t)

	writeProjectConfig(t, "actor: walker\n")
	sub := filepath.Join(".", "a", "b")
	if err := os.MkdirAll(sub, 0750); err != nil {
		t.Fatal(err)
	}
	t.Chdir(sub)

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if got := GetString(KeyActor); got != "walker" {
		t.Errorf("config.yaml should be found from a subdirectory, actor = %q", got)
	}
}

func TestConfigPrecedence(t *testing.T) {
	envSnapshot(t)

	writeProjectConfig(t, `json: false`)

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if GetBool(KeyJSON) {
		t.Errorf("GetBool(json) from config file = true, want false")
	}

	t.Setenv("BD_JSON", "true")
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if !GetBool(KeyJSON) {
		t.Errorf("env var should override config file")
	}
}

func TestMalformedConfigFile(t *testing.T) {
	envSnapshot(t)

	writeProjectConfig(t, "json: [unclosed\n")
	if err := Initialize(); err == nil {
		t.Error("expected error for malformed config.yaml")
	}
}

func TestSetAndGet(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	Set("test-key", "test-value")
	if got := GetString("test-key"); got != "test-value" {
		t.Errorf("GetString(test-key) = %q, want \"test-value\"", got)
	}
	Set("test-bool", true)
	if got := GetBool("test-bool"); !got {
		t.Errorf("GetBool(test-bool) = %v, want true", got)
	}
	Set("test-int", 42)
	if got := GetInt("test-int"); got != 42 {
		t.Errorf("GetInt(test-int) = %d, want 42", got)
	}
	if _, ok := AllSettings()["test-key"]; !ok {
		t.Error("AllSettings() should include keys set at runtime")
	}
}

func TestNilViperBehavior(t *testing.T) {
	savedV := v
	v = nil
	defer func() { v = savedV }()

	if got := GetString("any-key"); got != "" {
		t.Errorf("GetString with nil viper = %q, want \"\"", got)
	}
	if got := GetBool("any-key"); got {
		t.Errorf("GetBool with nil viper = %v, want false", got)
	}
	if got := GetInt("any-key"); got != 0 {
		t.Errorf("GetInt with nil viper = %d, want 0", got)
	}
	if got := GetDuration("any-key"); got != 0 {
		t.Errorf("GetDuration with nil viper = %v, want 0", got)
	}
	if got := GetStringSlice("any-key"); got == nil || len(got) != 0 {
		t.Errorf("GetStringSlice with nil viper = %v, want empty slice", got)
	}
	if got := AllSettings(); got == nil || len(got) != 0 {
		t.Errorf("AllSettings with nil viper = %v, want empty map", got)
	}
	if got := GetLockTimeout(); got != 30*time.Second {
		t.Errorf("GetLockTimeout with nil viper = %v, want 30s", got)
	}
	if got := GetIDConfig(); got != (IDConfig{MaxCollisionProb: 0.25, MinHashLength: 3, MaxHashLength: 8}) {
		t.Errorf("GetIDConfig with nil viper = %+v, want defaults", got)
	}

	Set("any-key", "any-value")
}

func TestGetIDConfigClampsBadValues(t *testing.T) {
	envSnapshot(t)
	t.Chdir(t.TempDir())

	t.Setenv("BD_ID_MAX_COLLISION_PROB", "3")
	t.Setenv("BD_ID_MIN_HASH_LENGTH", "6")
	t.Setenv("BD_ID_MAX_HASH_LENGTH", "4")
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	got := GetIDConfig()
	want := IDConfig{MaxCollisionProb: 0.25, MinHashLength: 6, MaxHashLength: 8}
	if got != want {
		t.Errorf("GetIDConfig() = %+v, want %+v", got, want)
	}
}

func TestGetActor(t *testing.T) {
	envSnapshot(t)

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	if got := GetActor("flag-actor"); got != "flag-actor" {
		t.Errorf("GetActor(flag-actor) = %q", got)
	}

	t.Setenv("BD_ACTOR", "env-actor")
	_ = Initialize()
	if got := GetActor(""); got != "env-actor" {
		t.Errorf("GetActor(\"\") with BD_ACTOR = %q, want \"env-actor\"", got)
	}

	os.Unsetenv("BD_ACTOR")
	_ = Initialize()
	if got := GetActor(""); got == "" {
		t.Error("GetActor(\"\") without flag or env returned empty string")
	}
}

func TestGetValueSource(t *testing.T) {
	envSnapshot(t)
	t.Chdir(t.TempDir())

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if got := GetValueSource(KeyJSON); got != SourceDefault {
		t.Errorf("GetValueSource(json) = %v, want default", got)
	}

	t.Setenv("BD_JSON", "true")
	if got := GetValueSource(KeyJSON); got != SourceEnvVar {
		t.Errorf("GetValueSource(json) with BD_JSON = %v, want env_var", got)
	}

	t.Setenv("BEADS_ACTOR", "someone")
	if got := GetValueSource(KeyActor); got != SourceEnvVar {
		t.Errorf("GetValueSource(actor) with BEADS_ACTOR = %v, want env_var", got)
	}
}

func TestGetValueSourceConfigFile(t *testing.T) {
	envSnapshot(t)

	writeProjectConfig(t, "lock-timeout: 10s\n")
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if got := GetValueSource(KeyLockTimeout); got != SourceConfigFile {
		t.Errorf("GetValueSource(lock-timeout) = %v, want config_file", got)
	}
}

func TestCheckOverrides_FlagOverridesEnvVar(t *testing.T) {
	envSnapshot(t)

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	t.Setenv("BD_JSON", "true")

	overrides := CheckOverrides(map[string]struct {
		Value  interface{}
		WasSet bool
	}{
		KeyJSON:  {Value: false, WasSet: true},
		KeyActor: {Value: "x", WasSet: false},
	})

	if len(overrides) != 1 || overrides[0].Key != KeyJSON || overrides[0].OverriddenBy != SourceFlag {
		t.Errorf("expected one flag override for json, got %+v", overrides)
	}
	if overrides[0].OriginalSource != SourceEnvVar {
		t.Errorf("OriginalSource = %v, want env_var", overrides[0].OriginalSource)
	}
}

func TestGetCustomTypesFromYAML(t *testing.T) {
	envSnapshot(t)

	writeProjectConfig(t, `
types:
  custom: "molecule, gate,,convoy"
status:
  custom: "review,qa"
`)

	ResetForTesting()
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	got := GetCustomTypesFromYAML()
	expected := []string{"molecule", "gate", "convoy"}
	if len(got) != len(expected) {
		t.Fatalf("GetCustomTypesFromYAML() = %v, want %v", got, expected)
	}
	for i, typ := range expected {
		if got[i] != typ {
			t.Errorf("GetCustomTypesFromYAML()[%d] = %q, want %q", i, got[i], typ)
		}
	}

	if statuses := GetCustomStatusesFromYAML(); len(statuses) != 2 || statuses[0] != "review" {
		t.Errorf("GetCustomStatusesFromYAML() = %v", statuses)
	}
}

func TestGetCustomTypesFromYAML_NotSet(t *testing.T) {
	envSnapshot(t)

	writeProjectConfig(t, "actor: \"test\"\n")

	ResetForTesting()
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if got := GetCustomTypesFromYAML(); got != nil {
		t.Errorf("GetCustomTypesFromYAML() = %v, want nil when types.custom not set", got)
	}
}

func TestGetCustomTypesFromYAML_NilViper(t *testing.T) {
	savedV := v
	v = nil
	defer func() { v = savedV }()

	if got := GetCustomTypesFromYAML(); got != nil {
		t.Errorf("GetCustomTypesFromYAML() with nil viper = %v, want nil", got)
	}
	if got := GetCustomStatusesFromYAML(); got != nil {
		t.Errorf("GetCustomStatusesFromYAML() with nil viper = %v, want nil", got)
	}
}
