package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fwindolf/beads-rs-sub001/internal/types"
	"github.com/fwindolf/beads-rs-sub001/internal/ui"
	"github.com/fwindolf/beads-rs-sub001/internal/validation"
)

var readyCmd = &cobra.Command{
	Use:     "ready",
	GroupID: GroupViews,
	Short:   "Show open issues with no unresolved blockers",
	Long: `Show ready work: open issues with no unresolved blocks, waits-for or
conditional-blocks dependency.

Sort policies:
  hybrid    recent issues (48h) by priority, older ones by age (default)
  priority  strictly by priority
  oldest    by creation time`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		filter, err := buildWorkFilter(cmd)
		if err != nil {
			FatalError("%v", err)
		}
		issues, err := store.GetReadyWork(rootCtx, filter)
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		if jsonOutput {
			if issues == nil {
				issues = []*types.Issue{}
			}
			outputJSON(issues)
			return
		}
		if len(issues) == 0 {
			fmt.Printf("%s No ready work found\n", ui.RenderWarn("✨"))
			return
		}
		fmt.Printf("%s Ready work (%s, no blockers):\n\n", ui.RenderAccent("📋"), pluralize(len(issues), "issue"))
		printIssueList(issues)
	},
}

var blockedCmd = &cobra.Command{
	Use:     "blocked",
	GroupID: GroupViews,
	Short:   "Show issues waiting on unresolved blockers",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		filter, err := buildWorkFilter(cmd)
		if err != nil {
			FatalError("%v", err)
		}
		blocked, err := store.GetBlockedIssues(rootCtx, filter)
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		if jsonOutput {
			if blocked == nil {
				blocked = []*types.BlockedIssue{}
			}
			outputJSON(blocked)
			return
		}
		if len(blocked) == 0 {
			fmt.Printf("%s No blocked issues\n", ui.RenderPass("✓"))
			return
		}
		fmt.Printf("%s Blocked issues (%d):\n\n", ui.RenderFail("🚫"), len(blocked))
		width := ui.TerminalWidth(0)
		for _, b := range blocked {
			fmt.Println(formatIssueCompact(&b.Issue, width))
			fmt.Printf("    blocked by %s: %s\n", pluralize(b.BlockedByCount, "issue"), joinIDs(b.BlockedBy))
		}
	},
}

// buildWorkFilter translates the shared ready/blocked flags.
func buildWorkFilter(cmd *cobra.Command) (types.WorkFilter, error) {
	flags := cmd.Flags()
	var filter types.WorkFilter

	if s, ok := stringFlagIfChanged(cmd, "type"); ok {
		customTypes, _ := customTypesAndStatuses()
		t, err := validation.ParseIssueType(s, customTypes)
		if err != nil {
			return filter, err
		}
		filter.Type = t
	}
	if s, ok := stringFlagIfChanged(cmd, "priority"); ok {
		p, err := validation.ValidatePriority(s)
		if err != nil {
			return filter, err
		}
		filter.Priority = &p
	}
	if s, ok := stringFlagIfChanged(cmd, "assignee"); ok {
		filter.Assignee = &s
	}
	if s, ok := stringFlagIfChanged(cmd, "parent"); ok {
		filter.ParentID = &s
	}
	filter.Unassigned, _ = flags.GetBool("unassigned")
	filter.Labels, _ = flags.GetStringSlice("label")
	filter.LabelsAny, _ = flags.GetStringSlice("label-any")
	filter.LabelGlob, _ = flags.GetString("label-glob")
	filter.LabelRegex, _ = flags.GetString("label-regex")
	filter.Limit, _ = flags.GetInt("limit")
	filter.IncludeDeferred, _ = flags.GetBool("include-deferred")
	filter.IncludeEphemeral, _ = flags.GetBool("include-ephemeral")
	filter.IncludeSubSteps, _ = flags.GetBool("include-sub-steps")

	sortStr, _ := flags.GetString("sort")
	filter.SortPolicy = types.SortPolicy(sortStr)
	if !filter.SortPolicy.IsValid() {
		return filter, fmt.Errorf("invalid --sort %q (hybrid, priority, oldest)", sortStr)
	}
	return filter, nil
}

func addWorkFilterFlags(cmd *cobra.Command, defaultLimit int) {
	f := cmd.Flags()
	f.StringP("type", "t", "", "Filter by type")
	f.StringP("priority", "p", "", "Filter by priority (0-4 or P0-P4)")
	f.StringP("assignee", "a", "", "Filter by assignee")
	f.BoolP("unassigned", "u", false, "Only unassigned issues")
	f.StringSliceP("label", "l", nil, "Issues having ALL these labels")
	f.StringSlice("label-any", nil, "Issues having ANY of these labels")
	f.String("label-glob", "", "Issues with a label matching this glob")
	f.String("label-regex", "", "Issues with a label matching this regular expression")
	f.String("parent", "", "Only descendants of this epic or molecule")
	f.IntP("limit", "n", defaultLimit, "Maximum number of issues (0 = no limit)")
	f.String("sort", string(types.SortPolicyHybrid), "Sort policy: hybrid, priority, oldest")
	f.Bool("include-deferred", false, "Include issues deferred into the future")
	f.Bool("include-ephemeral", false, "Include ephemeral issues")
	f.Bool("include-sub-steps", false, "Include children of molecules")
}

func init() {
	addWorkFilterFlags(readyCmd, 10)
	addWorkFilterFlags(blockedCmd, 0)
	rootCmd.AddCommand(readyCmd, blockedCmd)
}
