package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/fwindolf/beads-rs-sub001/internal/importer"
	"github.com/fwindolf/beads-rs-sub001/internal/ui"
)

var importCmd = &cobra.Command{
	Use:     "import",
	GroupID: GroupSetup,
	Short:   "Import issues from JSONL",
	Long: `Reconcile a JSONL file into the database.

Incoming issues are matched by external_ref, then by content, then by ID.
Matches are updated only when the incoming copy is newer. Labels and
comments are merged; nothing is deleted.

Issues whose prefix differs from issue_prefix are rejected unless
--rename-on-import (rewrite them to the local prefix) or
--skip-prefix-validation (keep them as-is) is given.

Examples:
  bd import                         # Load .beads/issues.jsonl
  bd import -i other.jsonl --dry-run
  bd import -i upstream.jsonl --rename-on-import`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		input, _ := cmd.Flags().GetString("input")
		if input == "" {
			input = jsonlPath
		}
		var opts importer.Options
		opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
		opts.SkipUpdate, _ = cmd.Flags().GetBool("skip-update")
		opts.Strict, _ = cmd.Flags().GetBool("strict")
		opts.RenameOnImport, _ = cmd.Flags().GetBool("rename-on-import")
		opts.SkipPrefixValidation, _ = cmd.Flags().GetBool("skip-prefix-validation")
		opts.ClearDuplicateExternalRefs, _ = cmd.Flags().GetBool("clear-duplicate-external-refs")

		var result *importer.Result
		err := withJSONLLock(beadsDir, func() error {
			var err error
			if input == "-" {
				issues, err := importer.ParseJSONL(os.Stdin)
				if err != nil {
					return err
				}
				result, err = importer.ImportIssues(rootCtx, store, issues, opts)
				return err
			}
			result, err = importer.ImportFile(rootCtx, store, input, opts)
			return err
		})
		if err != nil {
			if result != nil && result.PrefixMismatch {
				printPrefixMismatch(result)
				FatalErrorWithHint(err.Error(), "use --rename-on-import or --skip-prefix-validation")
			}
			FatalErrorRespectJSON("import failed: %v", err)
		}

		if jsonOutput {
			outputJSON(result)
			return
		}
		verb := "Imported"
		if opts.DryRun {
			verb = "Would import"
		}
		fmt.Fprintf(os.Stderr, "%s %s from %s: %d created, %d updated, %d unchanged, %d skipped\n",
			ui.RenderPass("✓"), verb, input, result.Created, result.Updated, result.Unchanged, result.Skipped)
		if n := len(result.SkippedDependencies); n > 0 {
			fmt.Fprintf(os.Stderr, "%s Skipped %d dependencies: %s\n",
				ui.RenderWarn("⚠"), n, joinIDs(result.SkippedDependencies))
		}
		if len(result.IDMapping) > 0 {
			fmt.Fprintf(os.Stderr, "%s Remapped %s:\n", ui.RenderAccent("↻"), pluralize(len(result.IDMapping), "ID"))
			from := make([]string, 0, len(result.IDMapping))
			for id := range result.IDMapping {
				from = append(from, id)
			}
			sort.Strings(from)
			for _, id := range from {
				fmt.Fprintf(os.Stderr, "  %s → %s\n", id, result.IDMapping[id])
			}
		}
	},
}

func printPrefixMismatch(result *importer.Result) {
	fmt.Fprintf(os.Stderr, "Database prefix: %s\n", result.ExpectedPrefix)
	fmt.Fprintln(os.Stderr, "Found issues with other prefixes:")
	for _, prefix := range importer.GetPrefixList(result.MismatchPrefixes) {
		fmt.Fprintf(os.Stderr, "  %s\n", prefix)
	}
}

func init() {
	f := importCmd.Flags()
	f.StringP("input", "i", "", "JSONL file to import, or - for stdin (default: workspace JSONL)")
	f.Bool("dry-run", false, "Report what would change without writing")
	f.Bool("skip-update", false, "Only create new issues; never update existing ones")
	f.Bool("strict", false, "Fail on dependency or label errors instead of skipping")
	f.Bool("rename-on-import", false, "Rewrite foreign prefixes to the database prefix")
	f.Bool("skip-prefix-validation", false, "Accept foreign prefixes as-is")
	f.Bool("clear-duplicate-external-refs", false, "Clear duplicate external_ref values instead of failing")
	rootCmd.AddCommand(importCmd)
}
