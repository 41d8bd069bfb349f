package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// setupTestDB opens a fresh database with issue_prefix "bd".
func setupTestDB(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "beads.db")
	ctx := context.Background()

	store, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	// Without issue_prefix every create fails with ErrNotInitialized.
	if err := store.SetConfig(ctx, IssuePrefixConfigKey, "bd"); err != nil {
		_ = store.Close()
		t.Fatalf("failed to set issue_prefix: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// testEnv bundles a store with helpers that fail the test on error.
type testEnv struct {
	t     *testing.T
	ctx   context.Context
	Store *SQLiteStorage
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, cleanup := setupTestDB(t)
	t.Cleanup(cleanup)
	return &testEnv{t: t, ctx: context.Background(), Store: store}
}

func (e *testEnv) CreateIssue(title string) *types.Issue {
	e.t.Helper()
	return e.CreateIssueWith(title, types.StatusOpen, 2, types.TypeTask)
}

func (e *testEnv) CreateIssueWith(title string, status types.Status, priority int, issueType types.IssueType) *types.Issue {
	e.t.Helper()
	issue := &types.Issue{
		Title:     title,
		Status:    status,
		Priority:  priority,
		IssueType: issueType,
	}
	if err := e.Store.CreateIssue(e.ctx, issue, "test-user"); err != nil {
		e.t.Fatalf("CreateIssue(%q) failed: %v", title, err)
	}
	return issue
}

func (e *testEnv) AddDep(issue, dependsOn *types.Issue) {
	e.t.Helper()
	e.AddDepType(issue, dependsOn, types.DepBlocks)
}

func (e *testEnv) AddDepType(issue, dependsOn *types.Issue, depType types.DependencyType) {
	e.t.Helper()
	dep := &types.Dependency{IssueID: issue.ID, DependsOnID: dependsOn.ID, Type: depType}
	if err := e.Store.AddDependency(e.ctx, dep, "test-user"); err != nil {
		e.t.Fatalf("AddDependency(%s -> %s, %s) failed: %v", issue.ID, dependsOn.ID, depType, err)
	}
}

func (e *testEnv) Close(issue *types.Issue, reason string) {
	e.t.Helper()
	if err := e.Store.CloseIssue(e.ctx, issue.ID, reason, "test-user", ""); err != nil {
		e.t.Fatalf("CloseIssue(%s) failed: %v", issue.ID, err)
	}
}

func (e *testEnv) Get(id string) *types.Issue {
	e.t.Helper()
	issue, err := e.Store.GetIssue(e.ctx, id)
	if err != nil {
		e.t.Fatalf("GetIssue(%s) failed: %v", id, err)
	}
	return issue
}

func (e *testEnv) Events(id string) []*types.Event {
	e.t.Helper()
	events, err := e.Store.GetEvents(e.ctx, id, 0)
	if err != nil {
		e.t.Fatalf("GetEvents(%s) failed: %v", id, err)
	}
	return events
}

func (e *testEnv) GetReadyWork(filter types.WorkFilter) []*types.Issue {
	e.t.Helper()
	ready, err := e.Store.GetReadyWork(e.ctx, filter)
	if err != nil {
		e.t.Fatalf("GetReadyWork failed: %v", err)
	}
	return ready
}

func (e *testEnv) readyIDs() map[string]bool {
	e.t.Helper()
	ids := make(map[string]bool)
	for _, issue := range e.GetReadyWork(types.WorkFilter{}) {
		ids[issue.ID] = true
	}
	return ids
}

func (e *testEnv) AssertReady(issue *types.Issue) {
	e.t.Helper()
	if !e.readyIDs()[issue.ID] {
		e.t.Errorf("expected %s (%s) to be ready", issue.ID, issue.Title)
	}
}

func (e *testEnv) AssertNotReady(issue *types.Issue) {
	e.t.Helper()
	if e.readyIDs()[issue.ID] {
		e.t.Errorf("expected %s (%s) not to be ready", issue.ID, issue.Title)
	}
}

func (e *testEnv) AssertBlocked(issue *types.Issue) {
	e.t.Helper()
	blocked, _, err := e.Store.IsBlocked(e.ctx, issue.ID)
	if err != nil {
		e.t.Fatalf("IsBlocked(%s) failed: %v", issue.ID, err)
	}
	if !blocked {
		e.t.Errorf("expected %s (%s) to be blocked", issue.ID, issue.Title)
	}
	e.AssertNotReady(issue)
}

func eventTypes(events []*types.Event) []types.EventType {
	out := make([]types.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.EventType
	}
	return out
}

func intPtr(n int) *int { return &n }
