package doctor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fwindolf/beads-rs-sub001/internal/configfile"
	"github.com/fwindolf/beads-rs-sub001/internal/storage/sqlite"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// newWorkspace creates a .beads directory with metadata.json and an
// initialised database using prefix "test". The store is closed by cleanup;
// tests close it early before running checks.
func newWorkspace(t *testing.T) (string, *sqlite.SQLiteStorage) {
	t.Helper()
	beadsDir := filepath.Join(t.TempDir(), ".beads")
	if err := os.MkdirAll(beadsDir, 0755); err != nil {
		t.Fatal(err)
	}
	cfg := configfile.DefaultConfig()
	if err := cfg.Save(beadsDir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	ctx := context.Background()
	store, err := sqlite.New(ctx, cfg.DatabasePath(beadsDir))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.SetConfig(ctx, sqlite.IssuePrefixConfigKey, "test"); err != nil {
		t.Fatalf("Failed to set issue_prefix: %v", err)
	}
	return beadsDir, store
}

func createIssue(t *testing.T, store *sqlite.SQLiteStorage, id, title string, issueType types.IssueType) *types.Issue {
	t.Helper()
	issue := &types.Issue{ID: id, Title: title, Status: types.StatusOpen, Priority: 2, IssueType: issueType}
	if err := store.CreateIssue(context.Background(), issue, "test"); err != nil {
		t.Fatalf("CreateIssue(%s) failed: %v", id, err)
	}
	return issue
}

func addDep(t *testing.T, store *sqlite.SQLiteStorage, from, to string, depType types.DependencyType) {
	t.Helper()
	dep := &types.Dependency{IssueID: from, DependsOnID: to, Type: depType}
	if err := store.AddDependency(context.Background(), dep, "test"); err != nil {
		t.Fatalf("AddDependency(%s→%s) failed: %v", from, to, err)
	}
}
