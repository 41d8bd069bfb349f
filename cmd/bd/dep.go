package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fwindolf/beads-rs-sub001/internal/types"
	"github.com/fwindolf/beads-rs-sub001/internal/ui"
	"github.com/fwindolf/beads-rs-sub001/internal/validation"
)

var depCmd = &cobra.Command{
	Use:     "dep",
	GroupID: GroupDeps,
	Short:   "Manage dependencies",
	Long: `Manage dependencies between issues.

"bd dep add A B" records that A depends on B: with the default blocks type,
A is not ready until B is closed.`,
}

var depAddCmd = &cobra.Command{
	Use:   "add <issue> <depends-on>",
	Short: "Add a dependency",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		typeStr, _ := cmd.Flags().GetString("type")
		depType, known, err := validation.ParseDependencyType(typeStr)
		if err != nil {
			FatalError("%v", err)
		}
		if !known {
			fmt.Fprintf(os.Stderr, "%s %q is not a well-known dependency type\n", ui.RenderWarn("Warning:"), typeStr)
		}
		dep := &types.Dependency{IssueID: args[0], DependsOnID: args[1], Type: depType}
		if err := store.AddDependency(rootCtx, dep, actor); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"status": "added", "issue_id": args[0], "depends_on_id": args[1], "type": string(depType)})
			return
		}
		fmt.Printf("%s Added dependency: %s depends on %s (%s)\n", ui.RenderPass("✓"), ui.RenderID(args[0]), ui.RenderID(args[1]), depType)
	},
}

var depRemoveCmd = &cobra.Command{
	Use:     "remove <issue> <depends-on>",
	Aliases: []string{"rm"},
	Short:   "Remove a dependency",
	Args:    cobra.ExactArgs(2),
	Run: func(_ *cobra.Command, args []string) {
		if err := store.RemoveDependency(rootCtx, args[0], args[1], actor); err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		if jsonOutput {
			outputJSON(map[string]string{"status": "removed", "issue_id": args[0], "depends_on_id": args[1]})
			return
		}
		fmt.Printf("%s Removed dependency: %s no longer depends on %s\n", ui.RenderPass("✓"), ui.RenderID(args[0]), ui.RenderID(args[1]))
	},
}

var depListCmd = &cobra.Command{
	Use:   "list <issue>",
	Short: "List dependencies (or dependents with --reverse)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reverse, _ := cmd.Flags().GetBool("reverse")
		var (
			linked []*types.IssueWithDependencyMetadata
			err    error
		)
		if reverse {
			linked, err = store.GetDependentsWithMetadata(rootCtx, args[0])
		} else {
			linked, err = store.GetDependenciesWithMetadata(rootCtx, args[0])
		}
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		if jsonOutput {
			if linked == nil {
				linked = []*types.IssueWithDependencyMetadata{}
			}
			outputJSON(linked)
			return
		}
		if len(linked) == 0 {
			fmt.Println("No dependencies.")
			return
		}
		arrow := "→"
		if reverse {
			arrow = "←"
		}
		for _, l := range linked {
			fmt.Printf("%s %s %s [%s] %s\n", arrow, ui.RenderStatusIcon(string(l.Status)), ui.RenderID(l.ID), l.DependencyType, l.Title)
		}
	},
}

var depTreeCmd = &cobra.Command{
	Use:   "tree <issue>",
	Short: "Show the dependency tree rooted at an issue",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		maxDepth, _ := cmd.Flags().GetInt("max-depth")
		allPaths, _ := cmd.Flags().GetBool("all-paths")
		reverse, _ := cmd.Flags().GetBool("reverse")
		nodes, err := store.GetDependencyTree(rootCtx, args[0], maxDepth, allPaths, reverse)
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		if jsonOutput {
			outputJSON(nodes)
			return
		}
		fmt.Print(renderTree(nodes))
	},
}

// renderTree indents each node by depth. Nodes are in traversal order.
func renderTree(nodes []*types.TreeNode) string {
	var b strings.Builder
	for _, n := range nodes {
		indent := strings.Repeat("  ", n.Depth)
		connector := ""
		if n.Depth > 0 {
			connector = ui.TreeMid
		}
		line := fmt.Sprintf("%s%s%s %s %s [%s]", indent, connector, ui.RenderStatusIcon(string(n.Status)), ui.RenderID(n.ID), n.Title, ui.RenderPriority(n.Priority))
		if n.Truncated {
			line += " " + ui.RenderMuted("…")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

var depCyclesCmd = &cobra.Command{
	Use:   "cycles",
	Short: "Detect dependency cycles",
	Args:  cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		cycles, err := store.DetectCycles(rootCtx)
		if err != nil {
			FatalErrorRespectJSON("%v", err)
		}
		if jsonOutput {
			if cycles == nil {
				cycles = [][]*types.Issue{}
			}
			outputJSON(cycles)
			return
		}
		if len(cycles) == 0 {
			fmt.Printf("%s No dependency cycles detected\n", ui.RenderPass("✓"))
			return
		}
		fmt.Printf("%s Found %s:\n", ui.RenderFail("✗"), pluralize(len(cycles), "cycle"))
		for i, cycle := range cycles {
			ids := make([]string, 0, len(cycle)+1)
			for _, issue := range cycle {
				ids = append(ids, issue.ID)
			}
			if len(cycle) > 0 {
				ids = append(ids, cycle[0].ID)
			}
			fmt.Printf("  %d. %s\n", i+1, strings.Join(ids, " → "))
		}
	},
}

func init() {
	depAddCmd.Flags().StringP("type", "t", string(types.DepBlocks), "Dependency type (blocks, parent-child, related, discovered-from, ...)")
	depListCmd.Flags().BoolP("reverse", "r", false, "List dependents instead")
	depTreeCmd.Flags().Int("max-depth", 50, "Maximum tree depth")
	depTreeCmd.Flags().Bool("all-paths", false, "Show every path instead of first discovery")
	depTreeCmd.Flags().BoolP("reverse", "r", false, "Walk dependents instead of dependencies")
	depCmd.AddCommand(depAddCmd, depRemoveCmd, depListCmd, depTreeCmd, depCyclesCmd)
	rootCmd.AddCommand(depCmd)
}
