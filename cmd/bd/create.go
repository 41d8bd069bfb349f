package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fwindolf/beads-rs-sub001/internal/storage"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
	"github.com/fwindolf/beads-rs-sub001/internal/ui"
	"github.com/fwindolf/beads-rs-sub001/internal/validation"
)

var createCmd = &cobra.Command{
	Use:     "create [title]",
	GroupID: GroupIssues,
	Aliases: []string{"new"},
	Short:   "Create a new issue",
	Long: `Create a new issue. The id is a content hash under the workspace prefix
unless --id is given.

Examples:
  bd create "Fix login redirect" -t bug -p 1
  bd create "Write docs" --deps blocks:bd-a3f2 --label docs
  bd create "Sub task" --parent bd-e1pc`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		title, _ := cmd.Flags().GetString("title")
		if len(args) > 0 {
			if title != "" && title != args[0] {
				FatalError("cannot specify different titles as both positional argument and --title flag\n  Positional: %q\n  --title:    %q", args[0], title)
			}
			title = args[0]
		}
		if strings.TrimSpace(title) == "" {
			FatalError("title required")
		}

		issue, err := issueFromCreateFlags(cmd, title, time.Now())
		if err != nil {
			FatalError("%v", err)
		}

		depSpecs, _ := cmd.Flags().GetStringSlice("deps")
		parent, _ := cmd.Flags().GetString("parent")
		deps := make([]*types.Dependency, 0, len(depSpecs)+1)
		for _, spec := range depSpecs {
			depType, target, err := parseDepSpec(spec)
			if err != nil {
				FatalError("%v", err)
			}
			deps = append(deps, &types.Dependency{DependsOnID: target, Type: depType})
		}
		if parent != "" {
			deps = append(deps, &types.Dependency{DependsOnID: parent, Type: types.DepParentChild})
		}

		customTypes, _ := customTypesAndStatuses()
		if _, err := validation.ParseIssueType(string(issue.IssueType), customTypes); err != nil {
			FatalError("%v", err)
		}

		err = store.RunInTransaction(rootCtx, func(tx storage.Transaction) error {
			if err := tx.CreateIssue(rootCtx, issue, actor); err != nil {
				return err
			}
			for _, dep := range deps {
				dep.IssueID = issue.ID
				if err := tx.AddDependency(rootCtx, dep, actor); err != nil {
					return fmt.Errorf("adding %s dependency on %s: %w", dep.Type, dep.DependsOnID, err)
				}
			}
			return nil
		})
		if err != nil {
			FatalErrorRespectJSON("creating issue: %v", err)
		}

		if jsonOutput {
			outputJSON(issue)
			return
		}
		fmt.Printf("%s Created issue: %s\n", ui.RenderPass("✓"), ui.RenderID(issue.ID))
		fmt.Printf("  Title: %s\n", issue.Title)
		fmt.Printf("  Priority: %s\n", ui.RenderPriority(issue.Priority))
		fmt.Printf("  Status: %s\n", ui.RenderStatus(string(issue.Status)))
		for _, dep := range deps {
			fmt.Printf("  %s %s\n", dep.Type, dep.DependsOnID)
		}
	},
}

// issueFromCreateFlags builds the issue described by create's flags.
func issueFromCreateFlags(cmd *cobra.Command, title string, now time.Time) (*types.Issue, error) {
	flags := cmd.Flags()
	description, _ := flags.GetString("description")
	design, _ := flags.GetString("design")
	acceptance, _ := flags.GetString("acceptance")
	notes, _ := flags.GetString("notes")
	specID, _ := flags.GetString("spec-id")
	issueType, _ := flags.GetString("type")
	priorityStr, _ := flags.GetString("priority")
	assignee, _ := flags.GetString("assignee")
	owner, _ := flags.GetString("owner")
	labels, _ := flags.GetStringSlice("label")
	explicitID, _ := flags.GetString("id")
	externalRef, _ := flags.GetString("external-ref")
	estimate, _ := flags.GetInt("estimate")
	dueStr, _ := flags.GetString("due")
	deferStr, _ := flags.GetString("defer")
	metadata, _ := flags.GetString("metadata")
	ephemeral, _ := flags.GetBool("ephemeral")

	priority, err := validation.ValidatePriority(priorityStr)
	if err != nil {
		return nil, err
	}
	if explicitID != "" {
		if _, err := validation.ValidateIDFormat(explicitID); err != nil {
			return nil, err
		}
	}

	issue := &types.Issue{
		ID:                 explicitID,
		Title:              title,
		Description:        description,
		Design:             design,
		AcceptanceCriteria: acceptance,
		Notes:              notes,
		SpecID:             specID,
		Status:             types.StatusOpen,
		Priority:           priority,
		IssueType:          types.IssueType(issueType).Normalize(),
		Assignee:           assignee,
		Owner:              owner,
		Labels:             labels,
		Ephemeral:          ephemeral,
	}
	if externalRef != "" {
		issue.ExternalRef = &externalRef
	}
	if flags.Changed("estimate") {
		issue.EstimatedMinutes = &estimate
	}
	if issue.DueAt, err = parseTimeFlag(dueStr, now); err != nil {
		return nil, err
	}
	if issue.DeferUntil, err = parseTimeFlag(deferStr, now); err != nil {
		return nil, err
	}
	if metadata != "" {
		if !json.Valid([]byte(metadata)) {
			return nil, fmt.Errorf("--metadata must be valid JSON")
		}
		issue.Metadata = json.RawMessage(metadata)
	}
	return issue, nil
}

func init() {
	f := createCmd.Flags()
	f.String("title", "", "Issue title (alternative to positional argument)")
	f.StringP("description", "d", "", "Issue description")
	f.String("design", "", "Design notes")
	f.String("acceptance", "", "Acceptance criteria")
	f.String("notes", "", "Additional notes")
	f.String("spec-id", "", "Pointer to a design or spec document")
	f.StringP("type", "t", string(types.TypeTask), "Issue type (bug|feature|task|epic|chore or a custom type)")
	f.StringP("priority", "p", "2", "Priority (0-4 or P0-P4, 0 is highest)")
	f.StringP("assignee", "a", "", "Assignee")
	f.String("owner", "", "Owner")
	f.StringSliceP("label", "l", nil, "Labels (comma-separated or repeated)")
	f.String("id", "", "Explicit issue id (must use the workspace prefix)")
	f.String("external-ref", "", "External reference (e.g. gh-9, jira-ABC)")
	f.Int("estimate", 0, "Estimated minutes")
	f.String("due", "", "Due time (RFC3339, YYYY-MM-DD or duration like 48h)")
	f.String("defer", "", "Hide from ready work until this time")
	f.String("metadata", "", "Opaque JSON metadata")
	f.Bool("ephemeral", false, "Local-only issue, excluded from export and ready work")
	f.StringSlice("deps", nil, "Dependencies as type:id (e.g. blocks:bd-a3f2, discovered-from:bd-9x)")
	f.String("parent", "", "Parent issue id (adds a parent-child dependency)")
	rootCmd.AddCommand(createCmd)
}
