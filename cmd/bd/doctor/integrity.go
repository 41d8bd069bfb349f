package doctor

import (
	"context"
	"fmt"
	"strings"

	"github.com/fwindolf/beads-rs-sub001/internal/storage"
	"github.com/fwindolf/beads-rs-sub001/internal/storage/sqlite"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
	"github.com/fwindolf/beads-rs-sub001/internal/validation"
)

// CheckIDFormat checks that every issue id is prefix-base36 and uses the
// configured prefix (or one of the allowed prefixes).
func CheckIDFormat(beadsDir string) DoctorCheck {
	return withStore(beadsDir, "Issue IDs", func(ctx context.Context, s storage.Storage) DoctorCheck {
		prefix, err := s.GetConfig(ctx, sqlite.IssuePrefixConfigKey)
		if err != nil {
			return DoctorCheck{Name: "Issue IDs", Status: StatusError, Message: "Unable to read issue_prefix", Detail: err.Error()}
		}
		if prefix == "" {
			return DoctorCheck{
				Name:    "Issue IDs",
				Status:  StatusError,
				Message: "issue_prefix is not set",
				Fix:     "Run 'bd config set issue_prefix <prefix>'",
			}
		}
		allowed, _ := s.GetConfig(ctx, sqlite.AllowedPrefixesConfigKey)

		issues, err := s.SearchIssues(ctx, "", types.IssueFilter{})
		if err != nil {
			return DoctorCheck{Name: "Issue IDs", Status: StatusError, Message: "Unable to query issues", Detail: err.Error()}
		}
		if len(issues) == 0 {
			return ok("Issue IDs", fmt.Sprintf("No issues yet (prefix %s-)", prefix))
		}

		var malformed, foreign []string
		for _, issue := range issues {
			if _, err := validation.ValidateIDFormat(issue.ID); err != nil {
				malformed = append(malformed, issue.ID)
				continue
			}
			if err := validation.ValidateIDPrefixAllowed(issue.ID, prefix, allowed, false); err != nil {
				foreign = append(foreign, issue.ID)
			}
		}

		switch {
		case len(malformed) > 0:
			return DoctorCheck{
				Name:    "Issue IDs",
				Status:  StatusWarning,
				Message: fmt.Sprintf("%d malformed issue ID(s)", len(malformed)),
				Detail:  joinDetail(malformed),
			}
		case len(foreign) > 0:
			return DoctorCheck{
				Name:    "Issue IDs",
				Status:  StatusWarning,
				Message: fmt.Sprintf("%d issue(s) outside prefix %s-", len(foreign), prefix),
				Detail:  joinDetail(foreign),
				Fix:     "Add the prefixes to allowed_prefixes, or re-import with --rename-on-import",
			}
		}
		return ok("Issue IDs", fmt.Sprintf("hash-based, prefix %s- ✓", prefix))
	})
}

// CheckDependencyCycles checks for circular dependencies in the issue graph
func CheckDependencyCycles(beadsDir string) DoctorCheck {
	return withStore(beadsDir, "Dependency Cycles", func(ctx context.Context, s storage.Storage) DoctorCheck {
		cycles, err := s.DetectCycles(ctx)
		if err != nil {
			return DoctorCheck{
				Name:    "Dependency Cycles",
				Status:  StatusWarning,
				Message: "Unable to check for cycles",
				Detail:  err.Error(),
			}
		}
		if len(cycles) == 0 {
			return ok("Dependency Cycles", "No circular dependencies detected")
		}

		first := make([]string, 0, len(cycles[0])+1)
		for _, issue := range cycles[0] {
			first = append(first, issue.ID)
		}
		if len(cycles[0]) > 0 {
			first = append(first, cycles[0][0].ID)
		}
		return DoctorCheck{
			Name:    "Dependency Cycles",
			Status:  StatusError,
			Message: fmt.Sprintf("Found %d circular dependency cycle(s)", len(cycles)),
			Detail:  "First cycle: " + strings.Join(first, " → "),
			Fix:     "Run 'bd dep cycles' to see full cycle paths, then 'bd dep remove' to break cycles",
		}
	})
}
