package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fwindolf/beads-rs-sub001/internal/config"
	"github.com/fwindolf/beads-rs-sub001/internal/configfile"
	"github.com/fwindolf/beads-rs-sub001/internal/git"
	"github.com/fwindolf/beads-rs-sub001/internal/importer"
	"github.com/fwindolf/beads-rs-sub001/internal/storage/factory"
	"github.com/fwindolf/beads-rs-sub001/internal/storage/sqlite"
	"github.com/fwindolf/beads-rs-sub001/internal/ui"
	"github.com/fwindolf/beads-rs-sub001/internal/validation"
)

const configYamlTemplate = `# bd configuration
#
# Startup settings are read before the database is opened. Every key can
# also be set through a BD_* environment variable (BD_LOCK_TIMEOUT, ...).
# Settings stored in the database are managed with 'bd config set'.

# Output JSON by default
# json: false

# Database path override
# db: ""

# Actor recorded in the audit trail
# actor: ""

# How long to wait for a locked database
# lock-timeout: 30s

# Open the database read-only
# readonly: false

# Hash id tuning, copied into the database by 'bd init'
# id.max-collision-prob: 0.25
# id.min-hash-length: 3
# id.max-hash-length: 8

# Extra issue types and statuses (comma separated)
# types.custom: ""
# status.custom: ""
`

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: GroupSetup,
	Short:   "Initialize bd in the current directory",
	Long: `Initialize bd in the current directory by creating a .beads/ directory
with metadata.json, a config.yaml template and the database.

With --from-jsonl the existing .beads/issues.jsonl is imported into the new
database.`,
	Annotations: map[string]string{annotationNoStore: "true"},
	Run: func(cmd *cobra.Command, _ []string) {
		prefix, _ := cmd.Flags().GetString("prefix")
		force, _ := cmd.Flags().GetBool("force")
		fromJSONL, _ := cmd.Flags().GetBool("from-jsonl")

		dir := os.Getenv("BEADS_DIR")
		if dir == "" {
			cwd, err := os.Getwd()
			if err != nil {
				FatalError("%v", err)
			}
			dir = filepath.Join(cwd, configfile.BeadsDirName)
		}

		prefix, err := normalizePrefix(prefix, workspaceName(dir))
		if err != nil {
			FatalError("%v", err)
		}

		result, err := initWorkspace(rootCtx, dir, prefix, force)
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}

		if fromJSONL {
			if _, statErr := os.Stat(result.JSONLPath); statErr == nil {
				s, err := factory.New(rootCtx, result.DatabasePath)
				if err != nil {
					FatalError("%v", err)
				}
				var res *importer.Result
				err = withJSONLLock(dir, func() error {
					var importErr error
					res, importErr = importer.ImportFile(rootCtx, s, result.JSONLPath, importer.Options{RenameOnImport: true})
					return importErr
				})
				_ = s.Close()
				if err != nil {
					FatalError("importing %s: %v", result.JSONLPath, err)
				}
				result.Imported = res.Created + res.Updated
			}
		}

		if jsonOutput {
			outputJSON(result)
			return
		}
		if quietFlag {
			return
		}
		fmt.Printf("\n%s bd initialized successfully!\n\n", ui.RenderPass("✓"))
		fmt.Printf("  Database: %s\n", ui.RenderAccent(result.DatabasePath))
		fmt.Printf("  Issue prefix: %s\n", ui.RenderAccent(result.Prefix))
		fmt.Printf("  Issues will be named: %s\n", ui.RenderAccent(result.Prefix+"-<hash> (e.g., "+result.Prefix+"-a3f2)"))
		if result.Imported > 0 {
			fmt.Printf("  Imported %s from %s\n", pluralize(result.Imported, "issue"), result.JSONLPath)
		}
		fmt.Printf("\nRun %s to get started.\n\n", ui.RenderAccent(`bd create "My first issue"`))
	},
}

// initResult is printed by bd init.
type initResult struct {
	BeadsDir     string `json:"beads_dir"`
	DatabasePath string `json:"database"`
	JSONLPath    string `json:"jsonl"`
	Prefix       string `json:"prefix"`
	Imported     int    `json:"imported,omitempty"`
}

// normalizePrefix trims a trailing hyphen and falls back to the workspace
// directory name.
func normalizePrefix(prefix, workspace string) (string, error) {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "-")
	if prefix == "" {
		prefix = strings.ToLower(filepath.Base(workspace))
		prefix = strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
				return r
			}
			return -1
		}, prefix)
		prefix = strings.Trim(prefix, "-")
	}
	if prefix == "" {
		return "", fmt.Errorf("cannot derive an issue prefix; pass --prefix")
	}
	if _, err := validation.ValidateIDFormat(prefix + "-a1b"); err != nil {
		return "", fmt.Errorf("invalid prefix %q: %w", prefix, err)
	}
	return prefix, nil
}

// workspaceName picks the directory whose name seeds the default prefix:
// the enclosing git repository when dir lives inside one.
func workspaceName(dir string) string {
	if root, err := git.RepoRoot(); err == nil {
		if rel, err := filepath.Rel(root, dir); err == nil && !strings.HasPrefix(rel, "..") {
			return root
		}
	}
	return filepath.Dir(dir)
}

// initWorkspace creates dir with metadata.json and config.yaml, then opens
// the database and records the issue prefix and id settings.
func initWorkspace(ctx context.Context, dir, prefix string, force bool) (*initResult, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	cfg, err := configfile.Load(dir)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = configfile.DefaultConfig()
		if err := cfg.Save(dir); err != nil {
			return nil, err
		}
	}
	dbFile := cfg.DatabasePath(dir)
	if _, err := os.Stat(dbFile); err == nil && !force {
		return nil, fmt.Errorf("%s already exists (use --force to re-initialize)", dbFile)
	}

	configYaml := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configYaml); os.IsNotExist(err) {
		if err := os.WriteFile(configYaml, []byte(configYamlTemplate), 0600); err != nil {
			return nil, fmt.Errorf("writing config.yaml: %w", err)
		}
	}

	s, err := factory.New(ctx, dbFile)
	if err != nil {
		return nil, err
	}
	defer func() { _ = s.Close() }()

	idCfg := config.GetIDConfig()
	settings := []struct{ key, value string }{
		{sqlite.IssuePrefixConfigKey, prefix},
		{sqlite.MaxCollisionProbKey, strconv.FormatFloat(idCfg.MaxCollisionProb, 'f', -1, 64)},
		{sqlite.MinHashLengthKey, strconv.Itoa(idCfg.MinHashLength)},
		{sqlite.MaxHashLengthKey, strconv.Itoa(idCfg.MaxHashLength)},
	}
	if customTypes := config.GetCustomTypesFromYAML(); len(customTypes) > 0 {
		settings = append(settings, struct{ key, value string }{sqlite.CustomTypeConfigKey, strings.Join(customTypes, ",")})
	}
	if statuses := config.GetCustomStatusesFromYAML(); len(statuses) > 0 {
		settings = append(settings, struct{ key, value string }{sqlite.CustomStatusConfigKey, strings.Join(statuses, ",")})
	}
	for _, kv := range settings {
		if err := s.SetConfig(ctx, kv.key, kv.value); err != nil {
			return nil, fmt.Errorf("setting %s: %w", kv.key, err)
		}
	}

	return &initResult{
		BeadsDir:     dir,
		DatabasePath: dbFile,
		JSONLPath:    cfg.JSONLPath(dir),
		Prefix:       prefix,
	}, nil
}

func init() {
	initCmd.Flags().StringP("prefix", "p", "", "Issue prefix (default: repository or directory name)")
	initCmd.Flags().Bool("force", false, "Re-initialize even if a database already exists")
	initCmd.Flags().Bool("from-jsonl", false, "Import .beads/issues.jsonl into the new database")
	rootCmd.AddCommand(initCmd)
}
