package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fwindolf/beads-rs-sub001/internal/storage"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
	"github.com/fwindolf/beads-rs-sub001/internal/ui"
)

// issueDetails is the --json payload of bd show.
type issueDetails struct {
	*types.Issue
	Dependencies []*types.IssueWithDependencyMetadata `json:"dependencies,omitempty"`
	Dependents   []*types.IssueWithDependencyMetadata `json:"dependents,omitempty"`
	Comments     []*types.Comment                     `json:"comments,omitempty"`
	BlockedBy    []string                             `json:"blocked_by,omitempty"`
}

func loadIssueDetails(ctx context.Context, s storage.Storage, id string) (*issueDetails, error) {
	issue, err := s.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	details := &issueDetails{Issue: issue}
	if details.Dependencies, err = s.GetDependenciesWithMetadata(ctx, id); err != nil {
		return nil, err
	}
	if details.Dependents, err = s.GetDependentsWithMetadata(ctx, id); err != nil {
		return nil, err
	}
	if details.Comments, err = s.GetComments(ctx, id); err != nil {
		return nil, err
	}
	if _, details.BlockedBy, err = s.IsBlocked(ctx, id); err != nil {
		return nil, err
	}
	return details, nil
}

var showCmd = &cobra.Command{
	Use:     "show <id> [id...]",
	GroupID: GroupIssues,
	Short:   "Show issue details",
	Args:    cobra.MinimumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		all := make([]*issueDetails, 0, len(args))
		for _, id := range args {
			details, err := loadIssueDetails(rootCtx, store, id)
			if err != nil {
				FatalErrorRespectJSON("%s: %v", id, err)
			}
			all = append(all, details)
		}

		if jsonOutput {
			outputJSON(all)
			return
		}
		for i, d := range all {
			if i > 0 {
				fmt.Println()
			}
			fmt.Print(formatIssueDetails(d))
		}
	},
}

func formatIssueDetails(d *issueDetails) string {
	var b strings.Builder
	issue := d.Issue

	fmt.Fprintf(&b, "%s %s: %s\n", ui.RenderStatusIcon(string(issue.Status)), ui.RenderID(issue.ID), ui.RenderBold(issue.Title))
	fmt.Fprintf(&b, "Status: %s  Priority: %s  Type: %s\n",
		ui.RenderStatus(string(issue.Status)), ui.RenderPriority(issue.Priority), ui.RenderType(string(issue.IssueType)))
	if issue.Assignee != "" {
		fmt.Fprintf(&b, "Assignee: %s\n", issue.Assignee)
	}
	if issue.Owner != "" {
		fmt.Fprintf(&b, "Owner: %s\n", issue.Owner)
	}
	if issue.EstimatedMinutes != nil {
		fmt.Fprintf(&b, "Estimate: %d minutes\n", *issue.EstimatedMinutes)
	}
	if issue.ExternalRef != nil {
		fmt.Fprintf(&b, "External: %s\n", *issue.ExternalRef)
	}
	fmt.Fprintf(&b, "Created: %s", issue.CreatedAt.Local().Format("2006-01-02 15:04"))
	if issue.CreatedBy != "" {
		fmt.Fprintf(&b, " by %s", issue.CreatedBy)
	}
	fmt.Fprintf(&b, "\nUpdated: %s\n", issue.UpdatedAt.Local().Format("2006-01-02 15:04"))
	if issue.ClosedAt != nil {
		fmt.Fprintf(&b, "Closed: %s", issue.ClosedAt.Local().Format("2006-01-02 15:04"))
		if issue.CloseReason != "" {
			fmt.Fprintf(&b, " (%s)", issue.CloseReason)
		}
		b.WriteString("\n")
	}
	if issue.DueAt != nil {
		fmt.Fprintf(&b, "Due: %s\n", issue.DueAt.Local().Format(time.RFC3339))
	}
	if issue.DeferUntil != nil {
		fmt.Fprintf(&b, "Deferred until: %s\n", issue.DeferUntil.Local().Format(time.RFC3339))
	}
	if len(issue.Labels) > 0 {
		fmt.Fprintf(&b, "Labels: %s\n", strings.Join(issue.Labels, ", "))
	}

	for _, section := range []struct{ title, body string }{
		{"Description", issue.Description},
		{"Design", issue.Design},
		{"Acceptance Criteria", issue.AcceptanceCriteria},
		{"Notes", issue.Notes},
	} {
		if section.body != "" {
			fmt.Fprintf(&b, "\n%s:\n%s\n", ui.RenderAccent(section.title), section.body)
		}
	}

	if len(d.BlockedBy) > 0 {
		fmt.Fprintf(&b, "\n%s blocked by: %s\n", ui.RenderFail("●"), joinIDs(d.BlockedBy))
	}
	if len(d.Dependencies) > 0 {
		fmt.Fprintf(&b, "\n%s\n", ui.RenderAccent("Depends on:"))
		for _, dep := range d.Dependencies {
			fmt.Fprintf(&b, "  → %s %s: %s [%s]\n", ui.StatusIcon(string(dep.Status)), dep.ID, dep.Title, dep.DependencyType)
		}
	}
	if len(d.Dependents) > 0 {
		fmt.Fprintf(&b, "\n%s\n", ui.RenderAccent("Dependents:"))
		for _, dep := range d.Dependents {
			fmt.Fprintf(&b, "  ← %s %s: %s [%s]\n", ui.StatusIcon(string(dep.Status)), dep.ID, dep.Title, dep.DependencyType)
		}
	}
	if len(d.Comments) > 0 {
		fmt.Fprintf(&b, "\n%s\n", ui.RenderAccent("Comments:"))
		for _, c := range d.Comments {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", c.CreatedAt.Local().Format("2006-01-02 15:04"), c.Author, c.Text)
		}
	}
	return b.String()
}

func init() {
	rootCmd.AddCommand(showCmd)
}
