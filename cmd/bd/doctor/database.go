package doctor

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fwindolf/beads-rs-sub001/internal/configfile"
	"github.com/fwindolf/beads-rs-sub001/internal/export"
	"github.com/fwindolf/beads-rs-sub001/internal/storage"
	storagefactory "github.com/fwindolf/beads-rs-sub001/internal/storage/factory"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// CurrentSchemaVersion is the schema version this build writes.
const CurrentSchemaVersion = "1"

// sqlBacked is implemented by stores that expose their *sql.DB.
type sqlBacked interface {
	UnderlyingDB() *sql.DB
}

// databasePath resolves the database file named by metadata.json.
func databasePath(beadsDir string) (string, error) {
	cfg, err := configfile.Load(beadsDir)
	if err != nil {
		return "", err
	}
	if cfg == nil {
		cfg = configfile.DefaultConfig()
	}
	return cfg.DatabasePath(beadsDir), nil
}

func jsonlPath(beadsDir string) string {
	cfg, err := configfile.Load(beadsDir)
	if err != nil || cfg == nil {
		cfg = configfile.DefaultConfig()
	}
	return cfg.JSONLPath(beadsDir)
}

// openReadOnly opens the workspace database. A nil store with a nil error
// means there is no database yet.
func openReadOnly(ctx context.Context, beadsDir string) (storage.Storage, error) {
	dbPath, err := databasePath(beadsDir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, nil
	}
	return storagefactory.NewFromConfigWithOptions(ctx, beadsDir, storagefactory.Options{ReadOnly: true})
}

// withStore runs fn against a read-only store, turning a missing or
// unopenable database into a check result.
func withStore(beadsDir, name string, fn func(ctx context.Context, s storage.Storage) DoctorCheck) DoctorCheck {
	ctx := context.Background()
	s, err := openReadOnly(ctx, beadsDir)
	if err != nil {
		return DoctorCheck{
			Name:    name,
			Status:  StatusError,
			Message: "Unable to open database",
			Detail:  err.Error(),
		}
	}
	if s == nil {
		return ok(name, "N/A (no database)")
	}
	defer func() { _ = s.Close() }()
	return fn(ctx, s)
}

// CheckInstallation verifies the .beads directory and its metadata.json.
func CheckInstallation(beadsDir string) DoctorCheck {
	info, err := os.Stat(beadsDir)
	if err != nil || !info.IsDir() {
		return DoctorCheck{
			Name:    "Installation",
			Status:  StatusError,
			Message: "No .beads/ directory found",
			Fix:     "Run 'bd init' to initialize beads",
		}
	}
	cfg, err := configfile.Load(beadsDir)
	if err != nil {
		return DoctorCheck{
			Name:    "Installation",
			Status:  StatusError,
			Message: "Invalid " + configfile.ConfigFileName,
			Detail:  err.Error(),
			Fix:     "Fix or remove " + configfile.ConfigPath(beadsDir),
		}
	}
	if cfg == nil {
		return DoctorCheck{
			Name:    "Installation",
			Status:  StatusWarning,
			Message: configfile.ConfigFileName + " missing, using defaults",
			Fix:     "Run 'bd init --force' to rewrite workspace metadata",
		}
	}
	return ok("Installation", ".beads/ directory found")
}

// CheckDatabaseVersion compares the recorded schema version with this build's.
func CheckDatabaseVersion(beadsDir string) DoctorCheck {
	dbPath, err := databasePath(beadsDir)
	if err == nil {
		if _, statErr := os.Stat(dbPath); os.IsNotExist(statErr) {
			return DoctorCheck{
				Name:    "Database",
				Status:  StatusError,
				Message: "No database found",
				Fix:     "Run 'bd init' to create a database, or 'bd init --from-jsonl' to rebuild from JSONL",
			}
		}
	}
	return withStore(beadsDir, "Database", func(ctx context.Context, s storage.Storage) DoctorCheck {
		version, err := s.GetMetadata(ctx, "schema_version")
		if err != nil {
			return DoctorCheck{Name: "Database", Status: StatusError, Message: "Unable to read schema version", Detail: err.Error()}
		}
		if version == "" {
			return DoctorCheck{
				Name:    "Database",
				Status:  StatusWarning,
				Message: "Schema version not recorded",
				Fix:     "Open the database once without --readonly to record it",
			}
		}
		if version != CurrentSchemaVersion {
			return DoctorCheck{
				Name:    "Database",
				Status:  StatusWarning,
				Message: fmt.Sprintf("schema version %s (expected %s)", version, CurrentSchemaVersion),
			}
		}
		return ok("Database", "schema version "+version)
	})
}

// CheckDatabaseIntegrity runs SQLite's PRAGMA integrity_check
func CheckDatabaseIntegrity(beadsDir string) DoctorCheck {
	return withStore(beadsDir, "Database Integrity", func(ctx context.Context, s storage.Storage) DoctorCheck {
		backed, isSQL := s.(sqlBacked)
		if !isSQL {
			if _, err := s.GetStatistics(ctx); err != nil {
				return DoctorCheck{Name: "Database Integrity", Status: StatusError, Message: "Basic query failed", Detail: err.Error()}
			}
			return ok("Database Integrity", "Basic query check passed")
		}

		rows, err := backed.UnderlyingDB().QueryContext(ctx, "PRAGMA integrity_check")
		if err != nil {
			return DoctorCheck{Name: "Database Integrity", Status: StatusError, Message: "Failed to run integrity check", Detail: err.Error()}
		}
		defer func() { _ = rows.Close() }()

		var results []string
		for rows.Next() {
			var line string
			if err := rows.Scan(&line); err == nil {
				results = append(results, line)
			}
		}
		if len(results) == 1 && results[0] == "ok" {
			return ok("Database Integrity", "No corruption detected")
		}
		return DoctorCheck{
			Name:    "Database Integrity",
			Status:  StatusError,
			Message: "Database corruption detected",
			Detail:  strings.Join(results, "; "),
			Fix:     "Move the database aside and run 'bd init --from-jsonl' to rebuild it from JSONL",
		}
	})
}

// CheckDatabaseJSONLSync compares the exported issue count and the file hash
// recorded at the last export against the JSONL file on disk.
func CheckDatabaseJSONLSync(beadsDir string) DoctorCheck {
	const name = "DB-JSONL Sync"
	path := jsonlPath(beadsDir)
	jsonlCount, err := export.CountIssuesInJSONL(path)
	if os.IsNotExist(err) {
		return ok(name, "N/A (no JSONL export yet)")
	}
	if err != nil {
		return DoctorCheck{
			Name:    name,
			Status:  StatusError,
			Message: "JSONL file is unreadable",
			Detail:  err.Error(),
			Fix:     "Run 'bd export --force' to rewrite it from the database",
		}
	}

	return withStore(beadsDir, name, func(ctx context.Context, s storage.Storage) DoctorCheck {
		issues, err := export.CollectIssues(ctx, s, types.IssueFilter{}, false)
		if err != nil {
			return DoctorCheck{Name: name, Status: StatusWarning, Message: "Unable to count issues", Detail: err.Error()}
		}
		if len(issues) != jsonlCount {
			return DoctorCheck{
				Name:    name,
				Status:  StatusWarning,
				Message: fmt.Sprintf("Count mismatch: database has %d issues, JSONL has %d", len(issues), jsonlCount),
				Fix:     "Run 'bd export' to refresh the JSONL, or 'bd import' to load newer JSONL changes",
			}
		}

		recorded, err := s.GetMetadata(ctx, export.MetaJSONLFileHash)
		if err != nil || recorded == "" {
			return ok(name, fmt.Sprintf("%d issues in both", jsonlCount))
		}
		actual, err := fileHash(path)
		if err != nil {
			return DoctorCheck{Name: name, Status: StatusWarning, Message: "Unable to hash JSONL", Detail: err.Error()}
		}
		if actual != recorded {
			return DoctorCheck{
				Name:    name,
				Status:  StatusWarning,
				Message: "JSONL changed since the last export",
				Fix:     "Run 'bd import' to load the changes",
			}
		}
		return ok(name, fmt.Sprintf("%d issues in both", jsonlCount))
	})
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - workspace JSONL path
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
