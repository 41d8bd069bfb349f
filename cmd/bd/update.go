package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fwindolf/beads-rs-sub001/internal/validation"
	"github.com/fwindolf/beads-rs-sub001/internal/ui"
)

// updateStringFlags maps string flags one-to-one onto update keys.
var updateStringFlags = map[string]string{
	"title":        "title",
	"description":  "description",
	"design":       "design",
	"acceptance":   "acceptance_criteria",
	"notes":        "notes",
	"spec-id":      "spec_id",
	"assignee":     "assignee",
	"owner":        "owner",
	"external-ref": "external_ref",
}

var updateCmd = &cobra.Command{
	Use:     "update <id> [id...]",
	GroupID: GroupIssues,
	Short:   "Update one or more issues",
	Long: `Update fields of one or more issues. Only flags that are passed are
changed; pass an empty string to clear a text field.

Examples:
  bd update bd-a3f2 --status in_progress --assignee alice
  bd update bd-a3f2 bd-b7c1 --priority 0`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		updates, err := buildUpdates(cmd, time.Now())
		if err != nil {
			FatalError("%v", err)
		}
		if len(updates) == 0 {
			FatalError("no updates specified")
		}

		var updated []interface{}
		for _, id := range args {
			if err := store.UpdateIssue(rootCtx, id, updates, actor); err != nil {
				FatalErrorRespectJSON("updating %s: %v", id, err)
			}
			if jsonOutput {
				issue, err := store.GetIssue(rootCtx, id)
				if err != nil {
					FatalErrorRespectJSON("%v", err)
				}
				updated = append(updated, issue)
				continue
			}
			fmt.Printf("%s Updated issue: %s\n", ui.RenderPass("✓"), ui.RenderID(id))
		}
		if jsonOutput {
			outputJSON(updated)
		}
	},
}

// buildUpdates collects the changed flags of update into a field map.
func buildUpdates(cmd *cobra.Command, now time.Time) (map[string]interface{}, error) {
	flags := cmd.Flags()
	updates := make(map[string]interface{})

	for flag, key := range updateStringFlags {
		if v, ok := stringFlagIfChanged(cmd, flag); ok {
			updates[key] = v
		}
	}

	customTypes, customStatuses := customTypesAndStatuses()
	if s, ok := stringFlagIfChanged(cmd, "status"); ok {
		status, err := validation.ParseStatus(s, customStatuses)
		if err != nil {
			return nil, err
		}
		updates["status"] = status
	}
	if s, ok := stringFlagIfChanged(cmd, "type"); ok {
		issueType, err := validation.ParseIssueType(s, customTypes)
		if err != nil {
			return nil, err
		}
		updates["issue_type"] = issueType
	}
	if s, ok := stringFlagIfChanged(cmd, "priority"); ok {
		p, err := validation.ValidatePriority(s)
		if err != nil {
			return nil, err
		}
		updates["priority"] = p
	}
	if flags.Changed("estimate") {
		v, _ := flags.GetInt("estimate")
		updates["estimated_minutes"] = v
	}
	for flag, key := range map[string]string{"due": "due_at", "defer": "defer_until"} {
		if s, ok := stringFlagIfChanged(cmd, flag); ok {
			t, err := parseTimeFlag(s, now)
			if err != nil {
				return nil, fmt.Errorf("--%s: %w", flag, err)
			}
			updates[key] = t
		}
	}
	if s, ok := stringFlagIfChanged(cmd, "metadata"); ok {
		switch {
		case s == "":
			updates["metadata"] = nil
		case !json.Valid([]byte(s)):
			return nil, fmt.Errorf("--metadata must be valid JSON")
		default:
			updates["metadata"] = json.RawMessage(s)
		}
	}
	for _, name := range []string{"pinned", "ephemeral"} {
		if flags.Changed(name) {
			v, _ := flags.GetBool(name)
			updates[name] = v
		}
	}
	return updates, nil
}

var claimCmd = &cobra.Command{
	Use:     "claim <id>",
	GroupID: GroupIssues,
	Short:   "Assign an issue to yourself and mark it in progress",
	Args:    cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		id := args[0]
		if err := store.ClaimIssue(rootCtx, id, actor); err != nil {
			FatalErrorRespectJSON("claiming %s: %v", id, err)
		}
		if jsonOutput {
			issue, err := store.GetIssue(rootCtx, id)
			if err != nil {
				FatalErrorRespectJSON("%v", err)
			}
			outputJSON(issue)
			return
		}
		fmt.Printf("%s Claimed %s as %s\n", ui.RenderPass("✓"), ui.RenderID(id), actor)
	},
}

func init() {
	f := updateCmd.Flags()
	f.String("title", "", "New title")
	f.StringP("description", "d", "", "New description")
	f.String("design", "", "Design notes")
	f.String("acceptance", "", "Acceptance criteria")
	f.String("notes", "", "Additional notes")
	f.String("spec-id", "", "Pointer to a design or spec document")
	f.StringP("status", "s", "", "New status")
	f.StringP("type", "t", "", "New type")
	f.StringP("priority", "p", "", "New priority (0-4 or P0-P4)")
	f.StringP("assignee", "a", "", "New assignee")
	f.String("owner", "", "New owner")
	f.String("external-ref", "", "External reference")
	f.Int("estimate", 0, "Estimated minutes")
	f.String("due", "", "Due time (empty clears)")
	f.String("defer", "", "Defer until (empty clears)")
	f.String("metadata", "", "Opaque JSON metadata (empty clears)")
	f.Bool("pinned", false, "Pinned flag")
	f.Bool("ephemeral", false, "Ephemeral flag")
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(claimCmd)
}
