package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fwindolf/beads-rs-sub001/internal/ui"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	Aliases: []string{"status"},
	GroupID: GroupViews,
	Short:   "Show issue counts by state",
	Args:    cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		stats, err := store.GetStatistics(rootCtx)
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		if jsonOutput {
			outputJSON(stats)
			return
		}

		row := func(label string, n int, render func(string) string) {
			fmt.Printf("  %-28s %s\n", label+":", render(fmt.Sprintf("%d", n)))
		}
		plain := func(s string) string { return s }

		fmt.Printf("\n%s Issue Database Status\n\n", ui.RenderAccent("📊"))
		row("Total Issues", stats.TotalIssues, ui.RenderBold)
		row("Open", stats.OpenIssues, plain)
		row("In Progress", stats.InProgressIssues, ui.RenderWarn)
		row("Blocked", stats.BlockedIssues, ui.RenderFail)
		row("Deferred", stats.DeferredIssues, ui.RenderMuted)
		row("Pinned", stats.PinnedIssues, plain)
		row("Closed", stats.ClosedIssues, ui.RenderPass)
		fmt.Println()
		row("Ready to Work", stats.ReadyIssues, ui.RenderPass)
		row("Epics Eligible for Closure", stats.EpicsEligibleForClosure, plain)
		if stats.AverageLeadTime > 0 {
			fmt.Printf("  %-28s %.1f hours\n", "Average Lead Time:", stats.AverageLeadTime)
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
