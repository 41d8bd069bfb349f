package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/fwindolf/beads-rs-sub001/internal/storage"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// StaleInProgressDays is how long an in_progress issue may go without an
// update before it is reported.
const StaleInProgressDays = 14

// CheckStaleInProgress reports claimed work that has not moved recently.
func CheckStaleInProgress(beadsDir string) DoctorCheck {
	return checkStaleInProgressAt(beadsDir, time.Now())
}

func checkStaleInProgressAt(beadsDir string, now time.Time) DoctorCheck {
	return withStore(beadsDir, "Stale In-Progress", func(ctx context.Context, s storage.Storage) DoctorCheck {
		cutoff := now.AddDate(0, 0, -StaleInProgressDays)
		status := types.StatusInProgress
		issues, err := s.SearchIssues(ctx, "", types.IssueFilter{Status: &status, UpdatedBefore: &cutoff})
		if err != nil {
			return ok("Stale In-Progress", "N/A (query failed)")
		}
		if len(issues) == 0 {
			return ok("Stale In-Progress", "No stale in-progress issues")
		}
		ids := make([]string, len(issues))
		for i, issue := range issues {
			ids[i] = issue.ID
		}
		return DoctorCheck{
			Name:    "Stale In-Progress",
			Status:  StatusWarning,
			Message: fmt.Sprintf("%d in-progress issue(s) untouched for %d days", len(issues), StaleInProgressDays),
			Detail:  joinDetail(ids),
			Fix:     "Close them, or move them back with 'bd update <id> --status open'",
		}
	})
}

// CheckEpicsEligibleForClosure reports open epics whose children are all closed.
func CheckEpicsEligibleForClosure(beadsDir string) DoctorCheck {
	return withStore(beadsDir, "Epic Completeness", func(ctx context.Context, s storage.Storage) DoctorCheck {
		epics, err := s.GetEpicsEligibleForClosure(ctx)
		if err != nil {
			return ok("Epic Completeness", "N/A (query failed)")
		}
		var ids []string
		for _, e := range epics {
			if e.EligibleForClose {
				ids = append(ids, e.Epic.ID)
			}
		}
		if len(ids) == 0 {
			return ok("Epic Completeness", "No completed epics left open")
		}
		return DoctorCheck{
			Name:    "Epic Completeness",
			Status:  StatusWarning,
			Message: fmt.Sprintf("%d epic(s) have all children closed", len(ids)),
			Detail:  joinDetail(ids),
			Fix:     "Run 'bd epic eligible --close' to close them",
		}
	})
}
