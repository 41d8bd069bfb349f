package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fwindolf/beads-rs-sub001/internal/types"
	"github.com/fwindolf/beads-rs-sub001/internal/ui"
)

var commentCmd = &cobra.Command{
	Use:     "comment",
	Aliases: []string{"comments"},
	GroupID: GroupIssues,
	Short:   "Add or list issue comments",
}

var commentAddCmd = &cobra.Command{
	Use:   "add <id> [text]",
	Short: "Add a comment (text from argument or --file)",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		file, _ := cmd.Flags().GetString("file")
		text := ""
		switch {
		case file != "":
			data, err := os.ReadFile(file) // #nosec G304 - user-supplied comment file
			if err != nil {
				FatalError("reading %s: %v", file, err)
			}
			text = string(data)
		case len(args) == 2:
			text = args[1]
		}
		if strings.TrimSpace(text) == "" {
			FatalError("comment text required")
		}
		comment, err := store.AddComment(rootCtx, args[0], actor, text)
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		if jsonOutput {
			outputJSON(comment)
			return
		}
		fmt.Printf("%s Comment added to %s\n", ui.RenderPass("✓"), ui.RenderID(args[0]))
	},
}

var commentListCmd = &cobra.Command{
	Use:   "list <id>",
	Short: "List comments on an issue",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		comments, err := store.GetComments(rootCtx, args[0])
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		if jsonOutput {
			if comments == nil {
				comments = []*types.Comment{}
			}
			outputJSON(comments)
			return
		}
		if len(comments) == 0 {
			fmt.Printf("No comments on %s\n", args[0])
			return
		}
		for _, c := range comments {
			fmt.Printf("%s %s\n%s\n\n",
				ui.RenderAccent(c.Author), ui.RenderMuted(c.CreatedAt.Local().Format("2006-01-02 15:04")), c.Text)
		}
	},
}

var eventsCmd = &cobra.Command{
	Use:     "events <id>",
	GroupID: GroupViews,
	Short:   "Show the audit trail of an issue",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		events, err := store.GetEvents(rootCtx, args[0], limit)
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		if jsonOutput {
			if events == nil {
				events = []*types.Event{}
			}
			outputJSON(events)
			return
		}
		for _, e := range events {
			fmt.Println(formatEvent(e))
		}
	},
}

// formatEvent renders "time actor event_type [comment]".
func formatEvent(e *types.Event) string {
	line := fmt.Sprintf("%s %s %s %s",
		ui.RenderMuted(e.CreatedAt.Local().Format("2006-01-02 15:04:05")),
		eventSymbol(e.EventType),
		ui.RenderAccent(e.Actor),
		e.EventType)
	switch {
	case e.Comment != nil && *e.Comment != "":
		line += ": " + truncateString(*e.Comment, 80)
	case e.NewValue != nil && e.EventType != types.EventUpdated:
		line += ": " + truncateString(*e.NewValue, 80)
	}
	return line
}

func init() {
	commentAddCmd.Flags().StringP("file", "f", "", "Read comment text from file")
	commentCmd.AddCommand(commentAddCmd, commentListCmd)
	eventsCmd.Flags().IntP("limit", "n", 0, "Maximum number of events (0 = all)")
	rootCmd.AddCommand(commentCmd, eventsCmd)
}
