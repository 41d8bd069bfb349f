package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// coreWorkTypes are the built-in types that bd validates without configuration.
var coreWorkTypes = []struct {
	Type        types.IssueType
	Description string
}{
	{types.TypeTask, "General work item (default)"},
	{types.TypeBug, "Bug report or defect"},
	{types.TypeFeature, "New feature or enhancement"},
	{types.TypeChore, "Maintenance or housekeeping"},
	{types.TypeEpic, "Large body of work spanning multiple issues"},
	{types.TypeMolecule, "Workflow container; children are sub-steps hidden from ready work"},
	{types.TypeGate, "Wait point resolved by an external event; never ready work"},
}

var coreStatuses = []struct {
	Status      types.Status
	Description string
}{
	{types.StatusOpen, "Not started (default)"},
	{types.StatusInProgress, "Claimed and being worked on"},
	{types.StatusBlocked, "Waiting on something outside the dependency graph"},
	{types.StatusDeferred, "Postponed; hidden from ready work"},
	{types.StatusPinned, "Kept open as a reference point"},
	{types.StatusHooked, "Attached to an agent's hook"},
	{types.StatusClosed, "Done"},
}

type typeInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var typesCmd = &cobra.Command{
	Use:     "types",
	GroupID: GroupViews,
	Short:   "List valid issue types and statuses",
	Long: `List the issue types accepted by bd create --type and the statuses
accepted by bd update --status.

Additional values are configured with types.custom and status.custom.

Examples:
  bd types              # List all types with descriptions
  bd types --json       # Output as JSON`,
	Args: cobra.NoArgs,
	Run: func(_ *cobra.Command, _ []string) {
		customTypes, customStatuses := customTypesAndStatuses()

		if jsonOutput {
			result := struct {
				CoreTypes      []typeInfo `json:"core_types"`
				CustomTypes    []string   `json:"custom_types,omitempty"`
				CoreStatuses   []typeInfo `json:"core_statuses"`
				CustomStatuses []string   `json:"custom_statuses,omitempty"`
			}{CustomTypes: customTypes, CustomStatuses: customStatuses}
			for _, t := range coreWorkTypes {
				result.CoreTypes = append(result.CoreTypes, typeInfo{Name: string(t.Type), Description: t.Description})
			}
			for _, s := range coreStatuses {
				result.CoreStatuses = append(result.CoreStatuses, typeInfo{Name: string(s.Status), Description: s.Description})
			}
			outputJSON(result)
			return
		}

		fmt.Println("Core work types (built-in):")
		for _, t := range coreWorkTypes {
			fmt.Printf("  %-14s %s\n", t.Type, t.Description)
		}
		if len(customTypes) > 0 {
			fmt.Println("\nConfigured custom types:")
			for _, t := range customTypes {
				fmt.Printf("  %s\n", t)
			}
		} else {
			fmt.Println("\nNo custom types configured.")
			fmt.Println("Configure with: bd config set types.custom \"type1,type2,...\"")
		}

		fmt.Println("\nStatuses:")
		for _, s := range coreStatuses {
			fmt.Printf("  %-14s %s\n", s.Status, s.Description)
		}
		for _, s := range customStatuses {
			fmt.Printf("  %-14s (custom)\n", s)
		}
	},
}

func init() {
	rootCmd.AddCommand(typesCmd)
}
