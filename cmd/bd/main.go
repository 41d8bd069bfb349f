package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fwindolf/beads-rs-sub001/internal/config"
	"github.com/fwindolf/beads-rs-sub001/internal/configfile"
	"github.com/fwindolf/beads-rs-sub001/internal/debug"
	"github.com/fwindolf/beads-rs-sub001/internal/storage"
	"github.com/fwindolf/beads-rs-sub001/internal/storage/factory"
)

// Command group IDs for help organization
const (
	GroupIssues      = "issues"
	GroupDeps        = "deps"
	GroupViews       = "views"
	GroupSetup       = "setup"
	GroupMaintenance = "maintenance"
)

// annotationNoStore marks commands that run without an open database.
const annotationNoStore = "bd/no-store"

var (
	// Flags
	dbPath      string
	actor       string
	jsonOutput  bool
	readonly    bool
	lockTimeout time.Duration
	verboseFlag bool
	quietFlag   bool

	// Per-invocation state
	store      storage.Storage
	beadsDir   string
	jsonlPath  string
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "bd",
	Short: "bd - dependency-aware issue tracker",
	Long: `Issues chained together like beads.

bd keeps a local graph of issues and the dependencies between them, and
answers which work is ready, which is blocked and what changed.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

		if err := config.Initialize(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
		}
		applyConfigDefaults(cmd)

		debug.SetVerbose(verboseFlag)
		debug.SetQuiet(quietFlag)
		actor = config.GetActor(actor)

		if !needsStore(cmd) {
			return
		}
		if err := openStore(rootCtx); err != nil {
			if errors.Is(err, configfile.ErrNoBeadsDir) || errors.Is(err, os.ErrNotExist) {
				FatalErrorWithHint(err.Error(), "run 'bd init' to create a database")
			}
			FatalErrorRespectJSON("%v", err)
		}
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		closeStore()
	},
}

// needsStore reports whether cmd runs against an open database. The
// annotation on any ancestor applies to its subcommands.
func needsStore(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return false
		}
		if c.Annotations[annotationNoStore] == "true" {
			return false
		}
	}
	return true
}

// applyConfigDefaults fills flags the user did not pass from config.yaml and
// BD_* environment variables.
func applyConfigDefaults(cmd *cobra.Command) {
	flags := cmd.Flags()
	if !flags.Changed("json") {
		jsonOutput = config.GetBool(config.KeyJSON)
	}
	if !flags.Changed("readonly") {
		readonly = config.GetBool(config.KeyReadOnly)
	}
	if !flags.Changed("lock-timeout") {
		lockTimeout = config.GetLockTimeout()
	}
	if !flags.Changed("db") && dbPath == "" {
		dbPath = config.GetString(config.KeyDB)
	}
}

// resolveBeadsDir finds the workspace: BEADS_DIR, then the directory holding
// --db, then a .beads directory above the working directory.
func resolveBeadsDir() (string, error) {
	if dir := os.Getenv("BEADS_DIR"); dir != "" {
		return filepath.Abs(dir)
	}
	if dbPath != "" {
		return filepath.Dir(dbPath), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return configfile.FindBeadsDir(cwd)
}

func openStore(ctx context.Context) error {
	dir, err := resolveBeadsDir()
	if err != nil {
		return err
	}
	beadsDir = dir

	cfg, err := configfile.Load(beadsDir)
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg = configfile.DefaultConfig()
	}
	if dbPath == "" {
		dbPath = cfg.DatabasePath(beadsDir)
	}
	jsonlPath = cfg.JSONLPath(beadsDir)

	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("no database at %s: %w", dbPath, err)
	}

	s, err := factory.NewWithOptions(ctx, cfg.Backend, dbPath, factory.Options{
		ReadOnly:    readonly,
		LockTimeout: lockTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening %s: %w", dbPath, err)
	}
	store = s
	debug.Logf("opened %s (readonly=%v, actor=%s)", dbPath, readonly, actor)
	return nil
}

func closeStore() {
	if store != nil {
		if err := store.Close(); err != nil {
			debug.Logf("closing store: %v", err)
		}
		store = nil
	}
	if rootCancel != nil {
		rootCancel()
		rootCancel = nil
	}
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupIssues, Title: "Working With Issues:"},
		&cobra.Group{ID: GroupDeps, Title: "Dependencies:"},
		&cobra.Group{ID: GroupViews, Title: "Views & Reports:"},
		&cobra.Group{ID: GroupSetup, Title: "Setup & Configuration:"},
		&cobra.Group{ID: GroupMaintenance, Title: "Maintenance:"},
	)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dbPath, "db", "", "Database path (default: auto-discover .beads/*.db)")
	pf.StringVar(&actor, "actor", "", "Actor name for the audit trail (default: $BD_ACTOR, git user.name, $USER)")
	pf.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	pf.BoolVar(&readonly, "readonly", false, "Open the database read-only")
	pf.DurationVar(&lockTimeout, "lock-timeout", 30*time.Second, "How long to wait for a locked database")
	pf.BoolVarP(&verboseFlag, "verbose", "v", false, "Enable diagnostic output")
	pf.BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		closeStore()
		os.Exit(1)
	}
}
