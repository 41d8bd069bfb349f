// Package configfile reads and writes .beads/metadata.json, which names the
// database and JSONL files of a workspace.
package configfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	ConfigFileName = "metadata.json"
	BeadsDirName   = ".beads"
	LockFileName   = "jsonl.lock"
)

// BackendSQLite is the only supported backend.
const BackendSQLite = "sqlite"

// ErrNoBeadsDir is returned by FindBeadsDir when no .beads directory exists
// between the start directory and the filesystem root.
var ErrNoBeadsDir = errors.New("no .beads directory found (run 'bd init' first)")

type Config struct {
	Database    string `json:"database"`
	JSONLExport string `json:"jsonl_export,omitempty"`
	Backend     string `json:"backend,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Database:    "beads.db",
		JSONLExport: "issues.jsonl",
		Backend:     BackendSQLite,
	}
}

func ConfigPath(beadsDir string) string {
	return filepath.Join(beadsDir, ConfigFileName)
}

// Load reads metadata.json from beadsDir. A missing file yields (nil, nil).
// A legacy config.json is migrated to metadata.json on first read.
func Load(beadsDir string) (*Config, error) {
	configPath := ConfigPath(beadsDir)

	data, err := os.ReadFile(configPath) // #nosec G304 - controlled path
	if os.IsNotExist(err) {
		legacyPath := filepath.Join(beadsDir, "config.json")
		data, err = os.ReadFile(legacyPath) // #nosec G304 - controlled path
		if os.IsNotExist(err) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading legacy config: %w", err)
		}

		var cfg Config
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing legacy config: %w", err)
		}
		if err := cfg.Save(beadsDir); err != nil {
			return nil, fmt.Errorf("migrating config to metadata.json: %w", err)
		}
		_ = os.Remove(legacyPath)
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Save(beadsDir string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(ConfigPath(beadsDir), append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate rejects backends this build cannot open.
func (c *Config) Validate() error {
	switch strings.TrimSpace(strings.ToLower(c.Backend)) {
	case "", BackendSQLite:
		return nil
	default:
		return fmt.Errorf("unsupported storage backend %q in %s (supported: %s)", c.Backend, ConfigFileName, BackendSQLite)
	}
}

// DatabasePath resolves the SQLite file. Relative names are taken from beadsDir.
func (c *Config) DatabasePath(beadsDir string) string {
	db := strings.TrimSpace(c.Database)
	if db == "" {
		db = "beads.db"
	}
	if filepath.IsAbs(db) {
		return db
	}
	return filepath.Join(beadsDir, db)
}

func (c *Config) JSONLPath(beadsDir string) string {
	if c.JSONLExport == "" {
		return filepath.Join(beadsDir, "issues.jsonl")
	}
	if filepath.IsAbs(c.JSONLExport) {
		return c.JSONLExport
	}
	return filepath.Join(beadsDir, c.JSONLExport)
}

// LockPath is the file guarding JSONL import and export.
func LockPath(beadsDir string) string {
	return filepath.Join(beadsDir, LockFileName)
}

// FindBeadsDir walks up from start looking for a .beads directory.
func FindBeadsDir(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for dir := abs; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, BeadsDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		if dir == filepath.Dir(dir) {
			return "", ErrNoBeadsDir
		}
	}
}
