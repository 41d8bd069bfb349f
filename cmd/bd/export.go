package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fwindolf/beads-rs-sub001/internal/export"
	"github.com/fwindolf/beads-rs-sub001/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: GroupSetup,
	Short:   "Export issues to JSONL",
	Long: `Export issues as JSONL, one issue per line sorted by ID, with labels,
dependencies and comments embedded.

Without --output the workspace JSONL file (.beads/issues.jsonl) is rewritten
atomically. Use "-o -" to write to stdout.

Ephemeral issues are left out unless --include-ephemeral is given. Exporting
an empty database over a JSONL file that still holds issues is refused
unless --force is given.

Examples:
  bd export                       # Refresh .beads/issues.jsonl
  bd export -o - --status open    # Open issues to stdout
  bd export -o backup.jsonl --label release`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		output, _ := cmd.Flags().GetString("output")
		force, _ := cmd.Flags().GetBool("force")
		includeEphemeral, _ := cmd.Flags().GetBool("include-ephemeral")

		filter, err := buildIssueFilter(cmd, time.Now())
		if err != nil {
			FatalError("%v", err)
		}
		// Exports include closed issues unless --status narrows them.
		filter.ExcludeStatus = nil

		if output == "-" {
			issues, err := export.CollectIssues(rootCtx, store, filter, includeEphemeral)
			if err != nil {
				FatalErrorRespectJSON("%v", err)
			}
			if err := export.WriteJSONL(os.Stdout, issues); err != nil {
				FatalError("%v", err)
			}
			return
		}
		if output == "" {
			output = jsonlPath
		}

		var result *export.Result
		err = withJSONLLock(beadsDir, func() error {
			var err error
			result, err = export.ExportToFile(rootCtx, store, output, export.Options{
				Filter:           filter,
				IncludeEphemeral: includeEphemeral,
				Force:            force,
			})
			return err
		})
		if err != nil {
			if errors.Is(err, export.ErrEmptyOverNonEmpty) {
				FatalErrorWithHint(err.Error(), "run 'bd import' to load the JSONL, or pass --force to overwrite it")
			}
			FatalErrorRespectJSON("%v", err)
		}

		if jsonOutput {
			outputJSON(result)
			return
		}
		fmt.Fprintf(os.Stderr, "%s Exported %s to %s\n", ui.RenderPass("✓"), pluralize(result.Exported, "issue"), result.Path)
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringP("output", "o", "", "Output file, or - for stdout (default: workspace JSONL)")
	f.Bool("force", false, "Export even if the database is empty")
	f.Bool("include-ephemeral", false, "Include ephemeral issues")
	f.StringP("status", "s", "", "Filter by status")
	f.StringP("type", "t", "", "Filter by type")
	f.StringP("priority", "p", "", "Filter by priority (0-4 or P0-P4)")
	f.StringP("assignee", "a", "", "Filter by assignee")
	f.StringSliceP("label", "l", nil, "Filter by labels (AND: must have ALL)")
	f.StringSlice("label-any", nil, "Filter by labels (OR: must have AT LEAST ONE)")
	f.String("id-prefix", "", "Only issues whose ID starts with this prefix")
	f.String("created-after", "", "Created after (YYYY-MM-DD, RFC3339 or duration like -7d)")
	f.String("created-before", "", "Created before")
	f.String("updated-after", "", "Updated after")
	f.String("updated-before", "", "Updated before")
	rootCmd.AddCommand(exportCmd)
}
