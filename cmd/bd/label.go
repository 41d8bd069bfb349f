package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/fwindolf/beads-rs-sub001/internal/types"
	"github.com/fwindolf/beads-rs-sub001/internal/ui"
)

var labelCmd = &cobra.Command{
	Use:     "label",
	GroupID: GroupIssues,
	Short:   "Manage issue labels",
}

// applyLabel adds or removes label on every id, stopping at the first error.
func applyLabel(ids []string, label string, add bool) error {
	for _, id := range ids {
		var err error
		if add {
			err = store.AddLabel(rootCtx, id, label, actor)
		} else {
			err = store.RemoveLabel(rootCtx, id, label, actor)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
	}
	return nil
}

var labelAddCmd = &cobra.Command{
	Use:   "add <id> [id...] <label>",
	Short: "Add a label to one or more issues",
	Args:  cobra.MinimumNArgs(2),
	Run: func(_ *cobra.Command, args []string) {
		ids, label := args[:len(args)-1], args[len(args)-1]
		if err := applyLabel(ids, label, true); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		if jsonOutput {
			outputJSON(map[string]interface{}{"status": "added", "label": label, "issues": ids})
			return
		}
		fmt.Printf("%s Added label %q to %s\n", ui.RenderPass("✓"), label, joinIDs(ids))
	},
}

var labelRemoveCmd = &cobra.Command{
	Use:     "remove <id> [id...] <label>",
	Aliases: []string{"rm"},
	Short:   "Remove a label from one or more issues",
	Args:    cobra.MinimumNArgs(2),
	Run: func(_ *cobra.Command, args []string) {
		ids, label := args[:len(args)-1], args[len(args)-1]
		if err := applyLabel(ids, label, false); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		if jsonOutput {
			outputJSON(map[string]interface{}{"status": "removed", "label": label, "issues": ids})
			return
		}
		fmt.Printf("%s Removed label %q from %s\n", ui.RenderPass("✓"), label, joinIDs(ids))
	},
}

var labelListCmd = &cobra.Command{
	Use:   "list [id]",
	Short: "List labels of an issue, or every label in use with counts",
	Args:  cobra.MaximumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		if len(args) == 1 {
			labels, err := store.GetLabels(rootCtx, args[0])
			if err != nil {
				FatalErrorRespectJSON("%v", err)
			}
			if jsonOutput {
				if labels == nil {
					labels = []string{}
				}
				outputJSON(labels)
				return
			}
			for _, l := range labels {
				fmt.Println(l)
			}
			return
		}

		counts, err := labelCounts()
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		if jsonOutput {
			outputJSON(counts)
			return
		}
		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%-30s %d\n", name, counts[name])
		}
	},
}

// labelCounts returns how many issues carry each label.
func labelCounts() (map[string]int, error) {
	issues, err := store.SearchIssues(rootCtx, "", types.IssueFilter{})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(issues))
	for _, issue := range issues {
		ids = append(ids, issue.ID)
	}
	byIssue, err := store.GetLabelsForIssues(rootCtx, ids)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, labels := range byIssue {
		for _, l := range labels {
			counts[l]++
		}
	}
	return counts, nil
}

func init() {
	labelCmd.AddCommand(labelAddCmd, labelRemoveCmd, labelListCmd)
	rootCmd.AddCommand(labelCmd)
}
