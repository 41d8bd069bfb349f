package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fwindolf/beads-rs-sub001/internal/types"
	"github.com/fwindolf/beads-rs-sub001/internal/validation"
)

// parseDepSpec parses "type:id" or a bare id (meaning blocks).
func parseDepSpec(spec string) (types.DependencyType, string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", "", fmt.Errorf("empty dependency")
	}
	depType, id := types.DepBlocks, spec
	if before, after, found := strings.Cut(spec, ":"); found {
		parsed, known, err := validation.ParseDependencyType(before)
		if err != nil {
			return "", "", err
		}
		if !known {
			fmt.Fprintf(os.Stderr, "Warning: %q is not a well-known dependency type\n", before)
		}
		depType, id = parsed, strings.TrimSpace(after)
	}
	if _, err := validation.ValidateIDFormat(id); err != nil || id == "" {
		return "", "", fmt.Errorf("invalid dependency %q: expected [type:]issue-id", spec)
	}
	return depType, id, nil
}

// parseTimeFlag accepts RFC3339, a plain date, or a duration from now
// ("48h", "+30m").
func parseTimeFlag(value string, now time.Time) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", value, time.Local); err == nil {
		return &t, nil
	}
	if d, err := time.ParseDuration(strings.TrimPrefix(value, "+")); err == nil {
		t := now.Add(d)
		return &t, nil
	}
	return nil, fmt.Errorf("invalid time %q (use RFC3339, YYYY-MM-DD or a duration like 48h)", value)
}

// stringFlagIfChanged returns the flag value and whether the user set it.
func stringFlagIfChanged(cmd *cobra.Command, name string) (string, bool) {
	if !cmd.Flags().Changed(name) {
		return "", false
	}
	v, _ := cmd.Flags().GetString(name)
	return v, true
}

// customTypesAndStatuses reads the configured custom enumerations.
func customTypesAndStatuses() (customTypes, customStatuses []string) {
	if store == nil {
		return nil, nil
	}
	customTypes, _ = store.GetCustomTypes(rootCtx)
	customStatuses, _ = store.GetCustomStatuses(rootCtx)
	return customTypes, customStatuses
}
