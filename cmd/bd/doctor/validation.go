package doctor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fwindolf/beads-rs-sub001/internal/storage"
	storagefactory "github.com/fwindolf/beads-rs-sub001/internal/storage/factory"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// orphanedDependencies returns edges whose target issue does not exist,
// ordered by source then target.
func orphanedDependencies(ctx context.Context, s storage.Storage) ([]*types.Dependency, error) {
	all, err := s.GetAllDependencyRecords(ctx)
	if err != nil {
		return nil, err
	}
	var targets []string
	for _, deps := range all {
		for _, d := range deps {
			targets = append(targets, d.DependsOnID)
		}
	}
	existing, err := s.GetIssuesByIDs(ctx, targets)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(existing))
	for _, issue := range existing {
		known[issue.ID] = true
	}

	var orphans []*types.Dependency
	for _, deps := range all {
		for _, d := range deps {
			if !known[d.DependsOnID] {
				orphans = append(orphans, d)
			}
		}
	}
	sort.Slice(orphans, func(i, j int) bool {
		if orphans[i].IssueID != orphans[j].IssueID {
			return orphans[i].IssueID < orphans[j].IssueID
		}
		return orphans[i].DependsOnID < orphans[j].DependsOnID
	})
	return orphans, nil
}

// CheckOrphanedDependencies detects dependencies pointing to non-existent issues.
func CheckOrphanedDependencies(beadsDir string) DoctorCheck {
	return withStore(beadsDir, "Orphaned Dependencies", func(ctx context.Context, s storage.Storage) DoctorCheck {
		orphans, err := orphanedDependencies(ctx, s)
		if err != nil {
			return ok("Orphaned Dependencies", "N/A (query failed)")
		}
		if len(orphans) == 0 {
			return ok("Orphaned Dependencies", "No orphaned dependencies")
		}
		refs := make([]string, len(orphans))
		for i, d := range orphans {
			refs[i] = d.IssueID + "→" + d.DependsOnID
		}
		return DoctorCheck{
			Name:    "Orphaned Dependencies",
			Status:  StatusWarning,
			Message: fmt.Sprintf("%d orphaned dependency reference(s)", len(orphans)),
			Detail:  joinDetail(refs),
			Fix:     "Run 'bd doctor --fix' to remove orphaned dependencies",
		}
	})
}

// FixOrphanedDependencies removes every edge whose target is missing and
// returns how many were removed.
func FixOrphanedDependencies(ctx context.Context, beadsDir, actor string) (int, error) {
	s, err := storagefactory.NewFromConfig(ctx, beadsDir)
	if err != nil {
		return 0, err
	}
	defer func() { _ = s.Close() }()

	orphans, err := orphanedDependencies(ctx, s)
	if err != nil {
		return 0, err
	}
	for _, d := range orphans {
		if err := s.RemoveDependency(ctx, d.IssueID, d.DependsOnID, actor); err != nil {
			return 0, fmt.Errorf("removing %s→%s: %w", d.IssueID, d.DependsOnID, err)
		}
	}
	return len(orphans), nil
}

// CheckChildParentDependencies detects children that also block on their own
// parent. The parent cannot close before its children, so the pair deadlocks.
func CheckChildParentDependencies(beadsDir string) DoctorCheck {
	return withStore(beadsDir, "Child-Parent Dependencies", func(ctx context.Context, s storage.Storage) DoctorCheck {
		all, err := s.GetAllDependencyRecords(ctx)
		if err != nil {
			return ok("Child-Parent Dependencies", "N/A (query failed)")
		}

		var bad []string
		for issueID, deps := range all {
			parents := make(map[string]bool)
			for _, d := range deps {
				if d.Type == types.DepParentChild {
					parents[d.DependsOnID] = true
				}
			}
			for _, d := range deps {
				if !d.Type.IsBlocking() {
					continue
				}
				if parents[d.DependsOnID] || strings.HasPrefix(issueID, d.DependsOnID+".") {
					bad = append(bad, issueID+"→"+d.DependsOnID)
				}
			}
		}
		if len(bad) == 0 {
			return ok("Child-Parent Dependencies", "No child→parent dependencies")
		}
		sort.Strings(bad)
		return DoctorCheck{
			Name:    "Child-Parent Dependencies",
			Status:  StatusWarning,
			Message: fmt.Sprintf("%d child→parent blocking dependency detected (may cause deadlock)", len(bad)),
			Detail:  joinDetail(bad),
			Fix:     "Run 'bd dep remove <child> <parent>' if the edge is unintentional",
		}
	})
}
