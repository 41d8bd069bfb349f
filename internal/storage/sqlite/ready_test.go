package sqlite

import (
	"testing"
	"time"

	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

func TestGetReadyWork(t *testing.T) {
	// issue1: open, no dependencies → READY
	// issue2: open, depends on issue1 (open) → BLOCKED
	// issue3: open, no dependencies → READY
	// issue4: closed → NOT READY
	// issue5: open, depends on issue4 (closed) → READY
	env := newTestEnv(t)

	issue1 := env.CreateIssueWith("Ready 1", types.StatusOpen, 1, types.TypeTask)
	issue2 := env.CreateIssueWith("Blocked", types.StatusOpen, 1, types.TypeTask)
	issue3 := env.CreateIssueWith("Ready 2", types.StatusOpen, 2, types.TypeTask)
	issue4 := env.CreateIssueWith("Closed", types.StatusOpen, 1, types.TypeTask)
	env.Close(issue4, "Done")
	issue5 := env.CreateIssueWith("Ready 3", types.StatusOpen, 0, types.TypeTask)

	env.AddDep(issue2, issue1)
	env.AddDep(issue5, issue4)

	ready := env.GetReadyWork(types.WorkFilter{})
	if len(ready) != 3 {
		t.Fatalf("expected 3 ready issues, got %d", len(ready))
	}

	env.AssertReady(issue1)
	env.AssertReady(issue3)
	env.AssertReady(issue5)
	env.AssertBlocked(issue2)
	env.AssertNotReady(issue4)
}

func TestGetReadyWorkInProgressNotReady(t *testing.T) {
	env := newTestEnv(t)
	issue := env.CreateIssueWith("Busy", types.StatusInProgress, 1, types.TypeTask)
	env.AssertNotReady(issue)
}

func TestGetReadyWorkPriorityOrder(t *testing.T) {
	env := newTestEnv(t)

	env.CreateIssueWith("Medium", types.StatusOpen, 2, types.TypeTask)
	env.CreateIssueWith("Highest", types.StatusOpen, 0, types.TypeTask)
	env.CreateIssueWith("High", types.StatusOpen, 1, types.TypeTask)

	for _, policy := range []types.SortPolicy{types.SortPolicyPriority, types.SortPolicyHybrid} {
		ready := env.GetReadyWork(types.WorkFilter{SortPolicy: policy})
		if len(ready) != 3 {
			t.Fatalf("%s: expected 3 ready issues, got %d", policy, len(ready))
		}
		for i, want := range []int{0, 1, 2} {
			if ready[i].Priority != want {
				t.Errorf("%s: position %d: expected P%d, got P%d", policy, i, want, ready[i].Priority)
			}
		}
	}
}

func TestGetReadyWorkHybridPutsOldIssuesLast(t *testing.T) {
	env := newTestEnv(t)

	old := &types.Issue{Title: "Old P0", Priority: 0, CreatedAt: time.Now().Add(-7 * 24 * time.Hour)}
	if err := env.Store.CreateIssue(env.ctx, old, "test-user"); err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}
	recent := env.CreateIssueWith("Recent P3", types.StatusOpen, 3, types.TypeTask)

	ready := env.GetReadyWork(types.WorkFilter{SortPolicy: types.SortPolicyHybrid})
	if len(ready) != 2 || ready[0].ID != recent.ID || ready[1].ID != old.ID {
		t.Errorf("expected recent issue before old one, got %v", ready)
	}

	oldest := env.GetReadyWork(types.WorkFilter{SortPolicy: types.SortPolicyOldest})
	if oldest[0].ID != old.ID {
		t.Errorf("expected oldest-first to start with %s, got %s", old.ID, oldest[0].ID)
	}
}

func TestGetReadyWorkFilters(t *testing.T) {
	env := newTestEnv(t)

	p0 := env.CreateIssueWith("P0 bug", types.StatusOpen, 0, types.TypeBug)
	env.CreateIssueWith("P1 task", types.StatusOpen, 1, types.TypeTask)
	assigned := env.CreateIssueWith("Assigned", types.StatusOpen, 2, types.TypeTask)
	if err := env.Store.UpdateIssue(env.ctx, assigned.ID, map[string]interface{}{"assignee": "alice"}, "test-user"); err != nil {
		t.Fatalf("UpdateIssue failed: %v", err)
	}
	if err := env.Store.AddLabel(env.ctx, p0.ID, "area:api", "test-user"); err != nil {
		t.Fatalf("AddLabel failed: %v", err)
	}

	tests := []struct {
		name   string
		filter types.WorkFilter
		want   int
	}{
		{"priority", types.WorkFilter{Priority: intPtr(0)}, 1},
		{"type", types.WorkFilter{Type: types.TypeBug}, 1},
		{"assignee", types.WorkFilter{Assignee: strPtr("alice")}, 1},
		{"unassigned", types.WorkFilter{Unassigned: true}, 2},
		{"label", types.WorkFilter{LabelFilter: types.LabelFilter{Labels: []string{"area:api"}}}, 1},
		{"label glob", types.WorkFilter{LabelFilter: types.LabelFilter{LabelGlob: "area:*"}}, 1},
		{"label regex no match", types.WorkFilter{LabelFilter: types.LabelFilter{LabelRegex: "^zzz"}}, 0},
		{"limit", types.WorkFilter{Limit: 2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(env.GetReadyWork(tt.filter)); got != tt.want {
				t.Errorf("expected %d ready issues, got %d", tt.want, got)
			}
		})
	}
}

func TestGetReadyWorkExcludesStructuralIssues(t *testing.T) {
	env := newTestEnv(t)

	gate := env.CreateIssueWith("Wait for CI", types.StatusOpen, 1, types.TypeGate)
	template := &types.Issue{Title: "Template", IsTemplate: true}
	if err := env.Store.CreateIssue(env.ctx, template, "test-user"); err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}
	future := time.Now().Add(24 * time.Hour)
	deferred := &types.Issue{Title: "Later", DeferUntil: &future}
	if err := env.Store.CreateIssue(env.ctx, deferred, "test-user"); err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}
	ephemeral := &types.Issue{Title: "Scratch", Ephemeral: true}
	if err := env.Store.CreateIssue(env.ctx, ephemeral, "test-user"); err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}
	molecule := env.CreateIssueWith("Workflow", types.StatusOpen, 2, types.TypeMolecule)
	step := env.CreateIssue("Step 1")
	env.AddDepType(step, molecule, types.DepParentChild)

	env.AssertNotReady(gate)
	env.AssertNotReady(template)
	env.AssertNotReady(deferred)
	env.AssertNotReady(ephemeral)
	env.AssertNotReady(step)
	env.AssertReady(molecule)

	all := env.GetReadyWork(types.WorkFilter{IncludeDeferred: true, IncludeEphemeral: true, IncludeSubSteps: true})
	ids := map[string]bool{}
	for _, issue := range all {
		ids[issue.ID] = true
	}
	for _, issue := range []*types.Issue{deferred, ephemeral, step} {
		if !ids[issue.ID] {
			t.Errorf("expected %s (%s) with include flags set", issue.ID, issue.Title)
		}
	}
	if ids[gate.ID] || ids[template.ID] {
		t.Error("gates and templates are never ready work")
	}
}

func TestGetReadyWorkParentFilter(t *testing.T) {
	env := newTestEnv(t)

	epic := env.CreateIssueWith("Epic", types.StatusOpen, 1, types.TypeEpic)
	child := env.CreateIssue("Child")
	grandchild := env.CreateIssue("Grandchild")
	env.CreateIssue("Unrelated")
	env.AddDepType(child, epic, types.DepParentChild)
	env.AddDepType(grandchild, child, types.DepParentChild)

	ready := env.GetReadyWork(types.WorkFilter{ParentID: &epic.ID})
	if len(ready) != 2 {
		t.Fatalf("expected child and grandchild, got %d issues", len(ready))
	}
}

func TestConditionalBlocks(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		reason string
		ready  bool
	}{
		{"Completed successfully", false},
		{"wontfix", true},
		{"Build FAILED on main", true},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			primary := env.CreateIssue("Primary " + tt.reason)
			fallback := env.CreateIssue("Fallback " + tt.reason)
			env.AddDepType(fallback, primary, types.DepConditionalBlocks)

			env.AssertBlocked(fallback)
			env.Close(primary, tt.reason)

			if tt.ready {
				env.AssertReady(fallback)
			} else {
				env.AssertNotReady(fallback)
			}
		})
	}
}

func TestWaitsForBlocks(t *testing.T) {
	env := newTestEnv(t)
	a := env.CreateIssue("Waiter")
	b := env.CreateIssue("Awaited")
	env.AddDepType(a, b, types.DepWaitsFor)

	env.AssertBlocked(a)
	env.Close(b, "Done")
	env.AssertReady(a)
}

func TestParentChildDoesNotBlock(t *testing.T) {
	env := newTestEnv(t)
	epic := env.CreateIssueWith("Epic", types.StatusOpen, 1, types.TypeEpic)
	task := env.CreateIssue("Task")
	env.AddDepType(task, epic, types.DepParentChild)

	// parent-child is structural only.
	env.AssertReady(task)
}

func TestGetBlockedIssues(t *testing.T) {
	env := newTestEnv(t)
	blocker1 := env.CreateIssueWith("Blocker 1", types.StatusOpen, 0, types.TypeTask)
	blocker2 := env.CreateIssueWith("Blocker 2", types.StatusOpen, 1, types.TypeTask)
	blocked := env.CreateIssueWith("Blocked", types.StatusInProgress, 1, types.TypeTask)
	env.AddDep(blocked, blocker1)
	env.AddDep(blocked, blocker2)

	list, err := env.Store.GetBlockedIssues(env.ctx, types.WorkFilter{})
	if err != nil {
		t.Fatalf("GetBlockedIssues failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 blocked issue, got %d", len(list))
	}
	if list[0].ID != blocked.ID || list[0].BlockedByCount != 2 {
		t.Errorf("unexpected blocked issue: %s with %d blockers", list[0].ID, list[0].BlockedByCount)
	}
	if list[0].BlockedBy[0] != blocker1.ID {
		t.Errorf("expected highest-priority blocker first, got %v", list[0].BlockedBy)
	}

	isBlocked, by, err := env.Store.IsBlocked(env.ctx, blocked.ID)
	if err != nil {
		t.Fatalf("IsBlocked failed: %v", err)
	}
	if !isBlocked || len(by) != 2 {
		t.Errorf("expected 2 blockers, got %v", by)
	}
}

func TestGetNewlyUnblockedByClose(t *testing.T) {
	env := newTestEnv(t)
	blocker := env.CreateIssue("Blocker")
	other := env.CreateIssue("Other blocker")
	freed := env.CreateIssue("Freed")
	stillBlocked := env.CreateIssue("Still blocked")
	env.AddDep(freed, blocker)
	env.AddDep(stillBlocked, blocker)
	env.AddDep(stillBlocked, other)

	env.Close(blocker, "Done")

	unblocked, err := env.Store.GetNewlyUnblockedByClose(env.ctx, blocker.ID)
	if err != nil {
		t.Fatalf("GetNewlyUnblockedByClose failed: %v", err)
	}
	if len(unblocked) != 1 || unblocked[0].ID != freed.ID {
		t.Errorf("expected only %s to be unblocked, got %v", freed.ID, unblocked)
	}
}

func TestGetEpicsEligibleForClosure(t *testing.T) {
	env := newTestEnv(t)
	done := env.CreateIssueWith("Done epic", types.StatusOpen, 1, types.TypeEpic)
	busy := env.CreateIssueWith("Busy epic", types.StatusOpen, 1, types.TypeEpic)
	env.CreateIssueWith("Empty epic", types.StatusOpen, 1, types.TypeEpic)

	c1 := env.CreateIssue("Child 1")
	c2 := env.CreateIssue("Child 2")
	c3 := env.CreateIssue("Child 3")
	env.AddDepType(c1, done, types.DepParentChild)
	env.AddDepType(c2, done, types.DepParentChild)
	env.AddDepType(c3, busy, types.DepParentChild)
	env.Close(c1, "Done")
	env.Close(c2, "Done")

	epics, err := env.Store.GetEpicsEligibleForClosure(env.ctx)
	if err != nil {
		t.Fatalf("GetEpicsEligibleForClosure failed: %v", err)
	}
	if len(epics) != 1 {
		t.Fatalf("expected 1 eligible epic, got %d", len(epics))
	}
	if epics[0].Epic.ID != done.ID || epics[0].TotalChildren != 2 || epics[0].ClosedChildren != 2 {
		t.Errorf("unexpected epic status: %+v", epics[0])
	}
}

func TestGetStatistics(t *testing.T) {
	env := newTestEnv(t)
	a := env.CreateIssue("A")
	b := env.CreateIssue("B")
	c := env.CreateIssueWith("C", types.StatusInProgress, 1, types.TypeTask)
	env.AddDep(b, a)
	env.Close(c, "Done")

	stats, err := env.Store.GetStatistics(env.ctx)
	if err != nil {
		t.Fatalf("GetStatistics failed: %v", err)
	}
	if stats.TotalIssues != 3 || stats.OpenIssues != 2 || stats.ClosedIssues != 1 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.BlockedIssues != 1 || stats.ReadyIssues != 1 {
		t.Errorf("expected 1 blocked and 1 ready, got %d and %d", stats.BlockedIssues, stats.ReadyIssues)
	}
	if stats.AverageLeadTime < 0 {
		t.Errorf("lead time cannot be negative: %f", stats.AverageLeadTime)
	}
}
