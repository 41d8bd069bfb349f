package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fwindolf/beads-rs-sub001/internal/types"
	"github.com/fwindolf/beads-rs-sub001/internal/ui"
)

var epicCmd = &cobra.Command{
	Use:     "epic",
	GroupID: GroupViews,
	Short:   "Epic management",
}

var epicEligibleCmd = &cobra.Command{
	Use:   "eligible",
	Short: "List open epics whose children are all closed",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		closeThem, _ := cmd.Flags().GetBool("close")
		epics, err := store.GetEpicsEligibleForClosure(rootCtx)
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}

		if closeThem {
			var closed []string
			for _, e := range epics {
				if !e.EligibleForClose {
					continue
				}
				if err := store.CloseIssue(rootCtx, e.Epic.ID, "all children closed", actor, ""); err != nil {
					FatalErrorRespectJSON("closing %s: %v", e.Epic.ID, err)
				}
				closed = append(closed, e.Epic.ID)
			}
			if jsonOutput {
				outputJSON(map[string]interface{}{"closed": closed, "count": len(closed)})
				return
			}
			fmt.Printf("%s Closed %s\n", ui.RenderPass("✓"), pluralize(len(closed), "epic"))
			for _, id := range closed {
				fmt.Printf("  %s\n", ui.RenderID(id))
			}
			return
		}

		if jsonOutput {
			if epics == nil {
				epics = []*types.EpicStatus{}
			}
			outputJSON(epics)
			return
		}
		if len(epics) == 0 {
			fmt.Println("No epics eligible for closure.")
			return
		}
		for _, e := range epics {
			fmt.Printf("%s %s %s (%d/%d children closed)\n",
				ui.RenderPass("✓"), ui.RenderID(e.Epic.ID), e.Epic.Title, e.ClosedChildren, e.TotalChildren)
		}
	},
}

func init() {
	epicEligibleCmd.Flags().Bool("close", false, "Close every eligible epic")
	epicCmd.AddCommand(epicEligibleCmd)
	rootCmd.AddCommand(epicCmd)
}
