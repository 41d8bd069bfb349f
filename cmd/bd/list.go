package main

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/fwindolf/beads-rs-sub001/internal/types"
	"github.com/fwindolf/beads-rs-sub001/internal/validation"
)

var listCmd = &cobra.Command{
	Use:     "list [query]",
	GroupID: GroupIssues,
	Aliases: []string{"search"},
	Short:   "List issues",
	Long: `List issues matching the given filters. An optional query matches
title, description, notes and id.

Closed issues are hidden unless --all or --status is given.

Examples:
  bd list --status open --type bug
  bd list --label backend,urgent
  bd list --label-glob 'area:*' --sort updated
  bd list login --all`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		query := ""
		if len(args) > 0 {
			query = args[0]
		}
		filter, err := buildIssueFilter(cmd, time.Now())
		if err != nil {
			FatalError("%v", err)
		}
		issues, err := store.SearchIssues(rootCtx, query, filter)
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		sortBy, _ := cmd.Flags().GetString("sort")
		reverse, _ := cmd.Flags().GetBool("reverse")
		if err := sortIssues(issues, sortBy, reverse); err != nil {
			FatalError("%v", err)
		}

		if jsonOutput {
			if issues == nil {
				issues = []*types.Issue{}
			}
			outputJSON(issues)
			return
		}
		if len(issues) == 0 {
			fmt.Println("No issues found.")
			return
		}
		printIssueList(issues)
		fmt.Printf("\n%s\n", pluralize(len(issues), "issue"))
	},
}

// buildIssueFilter translates list's flags into an IssueFilter.
func buildIssueFilter(cmd *cobra.Command, now time.Time) (types.IssueFilter, error) {
	flags := cmd.Flags()
	var filter types.IssueFilter

	customTypes, customStatuses := customTypesAndStatuses()
	if s, ok := stringFlagIfChanged(cmd, "status"); ok {
		status, err := validation.ParseStatus(s, customStatuses)
		if err != nil {
			return filter, err
		}
		filter.Status = &status
	} else if all, _ := flags.GetBool("all"); !all {
		filter.ExcludeStatus = []types.Status{types.StatusClosed}
	}
	if s, ok := stringFlagIfChanged(cmd, "type"); ok {
		issueType, err := validation.ParseIssueType(s, customTypes)
		if err != nil {
			return filter, err
		}
		filter.IssueType = &issueType
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
	filter.NoAssignee, _ = flags.GetBool("no-assignee")
	filter.Labels, _ = flags.GetStringSlice("label")
	filter.LabelsAny, _ = flags.GetStringSlice("label-any")
	filter.LabelGlob, _ = flags.GetString("label-glob")
	filter.LabelRegex, _ = flags.GetString("label-regex")
	filter.TitleContains, _ = flags.GetString("title-contains")
	filter.DescriptionContains, _ = flags.GetString("desc-contains")
	filter.NotesContains, _ = flags.GetString("notes-contains")
	filter.IDPrefix, _ = flags.GetString("id-prefix")
	filter.IDs, _ = flags.GetStringSlice("id")
	filter.Limit, _ = flags.GetInt("limit")
	if s, ok := stringFlagIfChanged(cmd, "parent"); ok {
		filter.ParentID = &s
	}
	if flags.Changed("pinned") {
		v, _ := flags.GetBool("pinned")
		filter.Pinned = &v
	}
	if flags.Changed("ephemeral") {
		v, _ := flags.GetBool("ephemeral")
		filter.Ephemeral = &v
	}

	timeFlags := []struct {
		name string
		dst  **time.Time
	}{
		{"created-after", &filter.CreatedAfter},
		{"created-before", &filter.CreatedBefore},
		{"updated-after", &filter.UpdatedAfter},
		{"updated-before", &filter.UpdatedBefore},
		{"closed-after", &filter.ClosedAfter},
		{"closed-before", &filter.ClosedBefore},
	}
	for _, tf := range timeFlags {
		s, _ := flags.GetString(tf.name)
		t, err := parseTimeFlag(s, now)
		if err != nil {
			return filter, fmt.Errorf("--%s: %w", tf.name, err)
		}
		*tf.dst = t
	}
	return filter, nil
}

// sortIssues reorders issues in place. An empty sortBy keeps store order
// (priority, then creation time).
func sortIssues(issues []*types.Issue, sortBy string, reverse bool) error {
	var less func(a, b *types.Issue) int
	switch sortBy {
	case "":
		if reverse {
			slices.Reverse(issues)
		}
		return nil
	case "priority":
		less = func(a, b *types.Issue) int {
			return cmp.Or(cmp.Compare(a.Priority, b.Priority), a.CreatedAt.Compare(b.CreatedAt))
		}
	case "created":
		less = func(a, b *types.Issue) int { return b.CreatedAt.Compare(a.CreatedAt) }
	case "updated":
		less = func(a, b *types.Issue) int { return b.UpdatedAt.Compare(a.UpdatedAt) }
	case "id":
		less = func(a, b *types.Issue) int { return cmp.Compare(a.ID, b.ID) }
	case "title":
		less = func(a, b *types.Issue) int { return cmp.Compare(a.Title, b.Title) }
	case "status":
		less = func(a, b *types.Issue) int { return cmp.Compare(a.Status, b.Status) }
	default:
		return fmt.Errorf("invalid --sort %q (priority, created, updated, id, title, status)", sortBy)
	}
	slices.SortStableFunc(issues, func(a, b *types.Issue) int {
		if reverse {
			return less(b, a)
		}
		return less(a, b)
	})
	return nil
}

func init() {
	f := listCmd.Flags()
	f.StringP("status", "s", "", "Filter by status")
	f.StringP("type", "t", "", "Filter by type")
	f.StringP("priority", "p", "", "Filter by priority (0-4 or P0-P4)")
	f.StringP("assignee", "a", "", "Filter by assignee")
	f.Bool("no-assignee", false, "Only unassigned issues")
	f.StringSliceP("label", "l", nil, "Issues having ALL these labels")
	f.StringSlice("label-any", nil, "Issues having ANY of these labels")
	f.String("label-glob", "", "Issues with a label matching this glob (e.g. 'area:*')")
	f.String("label-regex", "", "Issues with a label matching this regular expression")
	f.String("title-contains", "", "Title substring")
	f.String("desc-contains", "", "Description substring")
	f.String("notes-contains", "", "Notes substring")
	f.String("id-prefix", "", "Only ids starting with this prefix")
	f.StringSlice("id", nil, "Only these ids")
	f.String("parent", "", "Only direct children of this issue")
	f.Bool("pinned", false, "Filter by pinned flag")
	f.Bool("ephemeral", false, "Filter by ephemeral flag")
	f.String("created-after", "", "Created after (RFC3339, YYYY-MM-DD or duration like -48h)")
	f.String("created-before", "", "Created before")
	f.String("updated-after", "", "Updated after")
	f.String("updated-before", "", "Updated before")
	f.String("closed-after", "", "Closed after")
	f.String("closed-before", "", "Closed before")
	f.Bool("all", false, "Include closed issues")
	f.IntP("limit", "n", 0, "Maximum number of issues (0 = no limit)")
	f.String("sort", "", "Sort by priority, created, updated, id, title or status")
	f.BoolP("reverse", "r", false, "Reverse sort order")
	rootCmd.AddCommand(listCmd)
}
