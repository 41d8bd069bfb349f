package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fwindolf/beads-rs-sub001/cmd/bd/doctor"
	"github.com/fwindolf/beads-rs-sub001/internal/configfile"
	"github.com/fwindolf/beads-rs-sub001/internal/ui"
)

type doctorResult struct {
	Path      string               `json:"path"`
	Checks    []doctor.DoctorCheck `json:"checks"`
	OverallOK bool                 `json:"overall_ok"`
	Timestamp string               `json:"timestamp,omitempty"`
}

var (
	doctorFix    bool
	doctorOutput string
)

var doctorCmd = &cobra.Command{
	Use:         "doctor [path]",
	GroupID:     GroupMaintenance,
	Short:       "Check workspace health",
	Annotations: map[string]string{annotationNoStore: "true"},
	Long: `Sanity check the beads workspace for the current directory or specified path.

This command checks:
  - .beads/ directory and metadata.json
  - Database schema version and SQLite integrity
  - Issue ID format and prefix
  - Database-JSONL sync (issue count and export hash)
  - config.yaml, metadata.json and custom status/type values
  - Circular and orphaned dependencies
  - Children blocking on their own parent
  - Stale in-progress work and epics ready to close

Examples:
  bd doctor              # Check current workspace
  bd doctor /path/to/repo
  bd doctor --json       # Machine-readable output
  bd doctor --fix        # Remove orphaned dependencies
  bd doctor --output diagnostics.json`,
	Args: cobra.MaximumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		dir, err := doctorBeadsDir(args)
		if err != nil {
			FatalError("%v", err)
		}

		result := runDiagnostics(dir)
		if doctorFix {
			applyFixes(dir, result)
			result = runDiagnostics(dir)
		}

		if doctorOutput != "" || jsonOutput {
			result.Timestamp = time.Now().UTC().Format(time.RFC3339)
		}
		if doctorOutput != "" {
			if err := exportDiagnostics(result, doctorOutput); err != nil {
				FatalError("failed to export diagnostics: %v", err)
			}
			fmt.Printf("✓ Diagnostics exported to %s\n", doctorOutput)
		}

		if jsonOutput {
			outputJSON(result)
		} else if doctorOutput == "" {
			printDiagnostics(result)
		}

		if !result.OverallOK {
			closeStore()
			os.Exit(1)
		}
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Automatically fix issues where possible")
	doctorCmd.Flags().StringVarP(&doctorOutput, "output", "o", "", "Export diagnostics to a JSON file")
	rootCmd.AddCommand(doctorCmd)
}

// doctorBeadsDir picks the .beads directory to diagnose. An explicit path may
// name the workspace root or the .beads directory itself.
func doctorBeadsDir(args []string) (string, error) {
	if len(args) == 1 {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to resolve path: %w", err)
		}
		if filepath.Base(abs) == configfile.BeadsDirName {
			return abs, nil
		}
		return filepath.Join(abs, configfile.BeadsDirName), nil
	}
	if dir, err := resolveBeadsDir(); err == nil {
		return dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configfile.BeadsDirName), nil
}

func runDiagnostics(dir string) doctorResult {
	result := doctorResult{Path: dir, OverallOK: true}
	add := func(check doctor.DoctorCheck, category string, failOn ...string) {
		check.Category = category
		result.Checks = append(result.Checks, check)
		if slices.Contains(failOn, check.Status) {
			result.OverallOK = false
		}
	}

	install := doctor.CheckInstallation(dir)
	add(install, doctor.CategoryCore, doctor.StatusError)
	if install.Status == doctor.StatusError {
		return result
	}

	add(doctor.CheckDatabaseVersion(dir), doctor.CategoryCore, doctor.StatusError)
	add(doctor.CheckDatabaseIntegrity(dir), doctor.CategoryCore, doctor.StatusError)
	add(doctor.CheckIDFormat(dir), doctor.CategoryCore, doctor.StatusError)

	add(doctor.CheckDatabaseJSONLSync(dir), doctor.CategoryData, doctor.StatusError)
	add(doctor.CheckConfigValues(dir), doctor.CategoryData, doctor.StatusError)
	add(doctor.CheckDependencyCycles(dir), doctor.CategoryData, doctor.StatusError)
	add(doctor.CheckOrphanedDependencies(dir), doctor.CategoryData, doctor.StatusError, doctor.StatusWarning)
	add(doctor.CheckChildParentDependencies(dir), doctor.CategoryData)

	// Maintenance hints never fail the run.
	add(doctor.CheckStaleInProgress(dir), doctor.CategoryMaintenance)
	add(doctor.CheckEpicsEligibleForClosure(dir), doctor.CategoryMaintenance)
	return result
}

func applyFixes(dir string, result doctorResult) {
	for _, check := range result.Checks {
		if check.Name != "Orphaned Dependencies" || check.Status == doctor.StatusOK {
			continue
		}
		removed, err := doctor.FixOrphanedDependencies(rootCtx, dir, actor)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s Failed to remove orphaned dependencies: %v\n", ui.RenderFail("✗"), err)
			continue
		}
		if !jsonOutput {
			fmt.Printf("%s Removed %d orphaned dependency reference(s)\n", ui.RenderPass("✓"), removed)
		}
	}
}

// exportDiagnostics writes the doctor result to a JSON file
func exportDiagnostics(result doctorResult, outputPath string) error {
	f, err := os.Create(outputPath) // #nosec G304 - user-provided output path
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = f.Close() }()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

func checkIcon(status string) string {
	switch status {
	case doctor.StatusOK:
		return ui.RenderPassIcon()
	case doctor.StatusWarning:
		return ui.RenderWarnIcon()
	default:
		return ui.RenderFailIcon()
	}
}

func printDiagnostics(result doctorResult) {
	fmt.Printf("\nbd doctor %s\n\n", ui.RenderMuted(result.Path))

	byCategory := make(map[string][]doctor.DoctorCheck)
	for _, check := range result.Checks {
		byCategory[check.Category] = append(byCategory[check.Category], check)
	}

	var passCount, warnCount, failCount int
	var problems []doctor.DoctorCheck
	for _, category := range doctor.CategoryOrder {
		checks := byCategory[category]
		if len(checks) == 0 {
			continue
		}
		fmt.Println(ui.RenderCategory(category))
		for _, check := range checks {
			switch check.Status {
			case doctor.StatusOK:
				passCount++
			case doctor.StatusWarning:
				warnCount++
				problems = append(problems, check)
			default:
				failCount++
				problems = append(problems, check)
			}
			fmt.Printf("  %s  %s", checkIcon(check.Status), check.Name)
			if check.Message != "" {
				fmt.Print(ui.RenderMuted(" " + check.Message))
			}
			fmt.Println()
			if check.Detail != "" {
				for _, line := range strings.Split(check.Detail, "\n") {
					fmt.Printf("     %s%s\n", ui.MutedStyle.Render(ui.TreeLast), ui.RenderMuted(line))
				}
			}
		}
		fmt.Println()
	}

	fmt.Println(ui.RenderSeparator())
	fmt.Printf("%s %d passed  %s %d warnings  %s %d failed\n",
		ui.RenderPassIcon(), passCount, ui.RenderWarnIcon(), warnCount, ui.RenderFailIcon(), failCount)

	if len(problems) == 0 {
		fmt.Printf("\n%s\n", ui.RenderPass("✓ All checks passed"))
		return
	}

	fmt.Println()
	fmt.Println(ui.RenderWarn(ui.IconWarn + "  WARNINGS"))
	// Errors first, original order within a severity.
	slices.SortStableFunc(problems, func(a, b doctor.DoctorCheck) int {
		ae, be := a.Status == doctor.StatusError, b.Status == doctor.StatusError
		switch {
		case ae && !be:
			return -1
		case !ae && be:
			return 1
		}
		return 0
	})
	for i, check := range problems {
		line := fmt.Sprintf("%s: %s", check.Name, check.Message)
		if check.Status == doctor.StatusError {
			fmt.Printf("  %s  %s %s\n", ui.RenderFailIcon(), ui.RenderFail(fmt.Sprintf("%d.", i+1)), ui.RenderFail(line))
		} else {
			fmt.Printf("  %s  %s %s\n", ui.RenderWarnIcon(), ui.RenderWarn(fmt.Sprintf("%d.", i+1)), line)
		}
		if check.Fix != "" {
			fmt.Printf("        %s%s\n", ui.MutedStyle.Render(ui.TreeLast), check.Fix)
		}
	}
}
