package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fwindolf/beads-rs-sub001/internal/types"
	"github.com/fwindolf/beads-rs-sub001/internal/ui"
)

var closeCmd = &cobra.Command{
	Use:     "close <id> [id...]",
	GroupID: GroupIssues,
	Short:   "Close one or more issues",
	Long: `Close issues with an optional reason. Issues that become ready because
of the close are listed afterwards.

A close reason containing a failure keyword (failed, rejected, wontfix, ...)
releases conditional-blocks dependents.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reason, _ := cmd.Flags().GetString("reason")
		session, _ := cmd.Flags().GetString("session")
		if session == "" {
			session = os.Getenv("BD_SESSION")
		}
		if session == "" {
			session = uuid.NewString()
		}

		type closeResult struct {
			Issue     *types.Issue   `json:"issue"`
			Unblocked []*types.Issue `json:"unblocked,omitempty"`
		}
		var results []closeResult
		for _, id := range args {
			if err := store.CloseIssue(rootCtx, id, reason, actor, session); err != nil {
				FatalErrorRespectJSON("closing %s: %v", id, err)
			}
			unblocked, err := store.GetNewlyUnblockedByClose(rootCtx, id)
			if err != nil {
				FatalErrorRespectJSON("%v", err)
			}
			if jsonOutput {
				issue, err := store.GetIssue(rootCtx, id)
				if err != nil {
					FatalErrorRespectJSON("%v", err)
				}
				results = append(results, closeResult{Issue: issue, Unblocked: unblocked})
				continue
			}
			msg := fmt.Sprintf("%s Closed %s", ui.RenderPass("✓"), ui.RenderID(id))
			if reason != "" {
				msg += ": " + reason
			}
			fmt.Println(msg)
			for _, u := range unblocked {
				fmt.Printf("  %s now ready: %s %s\n", ui.RenderAccent("→"), ui.RenderID(u.ID), u.Title)
			}
		}
		if jsonOutput {
			outputJSON(results)
		}
	},
}

var reopenCmd = &cobra.Command{
	Use:     "reopen <id> [id...]",
	GroupID: GroupIssues,
	Short:   "Reopen closed issues",
	Args:    cobra.MinimumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		updates := map[string]interface{}{"status": types.StatusOpen}
		for _, id := range args {
			if err := store.UpdateIssue(rootCtx, id, updates, actor); err != nil {
				FatalErrorRespectJSON("reopening %s: %v", id, err)
			}
			if !jsonOutput {
				fmt.Printf("%s Reopened %s\n", ui.RenderPass("↻"), ui.RenderID(id))
			}
		}
		if jsonOutput {
			issues, err := store.GetIssuesByIDs(rootCtx, args)
			if err != nil {
				FatalErrorRespectJSON("%v", err)
			}
			outputJSON(issues)
		}
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id> [id...]",
	GroupID: GroupIssues,
	Short:   "Delete issues with their dependencies, labels, comments and events",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			for _, id := range args {
				dependents, err := store.GetDependents(rootCtx, id)
				if err != nil {
					FatalErrorRespectJSON("%s: %v", id, err)
				}
				if len(dependents) > 0 {
					ids := make([]string, 0, len(dependents))
					for _, d := range dependents {
						ids = append(ids, d.ID)
					}
					FatalErrorWithHint(
						fmt.Sprintf("%s has %s: %s", id, pluralize(len(ids), "dependent"), joinIDs(ids)),
						"use --force to delete anyway")
				}
			}
		}
		for _, id := range args {
			if err := store.DeleteIssue(rootCtx, id); err != nil {
				FatalErrorRespectJSON("deleting %s: %v", id, err)
			}
		}
		if jsonOutput {
			outputJSON(map[string]interface{}{"deleted": args})
			return
		}
		fmt.Printf("%s Deleted %s\n", ui.RenderPass("✓"), joinIDs(args))
	},
}

var duplicateCmd = &cobra.Command{
	Use:     "duplicate <id> --of <canonical>",
	GroupID: GroupIssues,
	Short:   "Mark an issue as a duplicate of another and close it",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		canonical, _ := cmd.Flags().GetString("of")
		if canonical == "" {
			FatalError("--of is required")
		}
		if err := store.MarkDuplicate(rootCtx, args[0], canonical, actor); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"duplicate": args[0], "canonical": canonical})
			return
		}
		fmt.Printf("%s %s marked as duplicate of %s\n", ui.RenderPass("✓"), ui.RenderID(args[0]), ui.RenderID(canonical))
	},
}

var supersedeCmd = &cobra.Command{
	Use:     "supersede <old> --with <new>",
	GroupID: GroupIssues,
	Short:   "Mark an issue as superseded by another and close it",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		replacement, _ := cmd.Flags().GetString("with")
		if replacement == "" {
			FatalError("--with is required")
		}
		if err := store.Supersede(rootCtx, args[0], replacement, actor); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"superseded": args[0], "replacement": replacement})
			return
		}
		fmt.Printf("%s %s superseded by %s\n", ui.RenderPass("✓"), ui.RenderID(args[0]), ui.RenderID(replacement))
	},
}

func init() {
	closeCmd.Flags().StringP("reason", "r", "", "Reason for closing")
	closeCmd.Flags().String("session", "", "Session id recorded on the issue (default: $BD_SESSION or a new UUID)")
	deleteCmd.Flags().BoolP("force", "f", false, "Delete even if other issues depend on it")
	duplicateCmd.Flags().String("of", "", "Canonical issue id")
	supersedeCmd.Flags().String("with", "", "Replacement issue id")
	rootCmd.AddCommand(closeCmd, reopenCmd, deleteCmd, duplicateCmd, supersedeCmd)
}
