package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/fwindolf/beads-rs-sub001/internal/storage/sqlite"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestWriteJSONLGolden(t *testing.T) {
	closedAt := ts("2025-01-04T12:00:00Z")
	ref := "gh-12"
	issues := []*types.Issue{
		{
			ID:          "bd-a1",
			Title:       "Parser crashes on empty input",
			Description: "Steps in notes",
			Status:      types.StatusOpen,
			Priority:    1,
			IssueType:   types.TypeBug,
			CreatedAt:   ts("2025-01-02T03:04:05Z"),
			CreatedBy:   "alice",
			UpdatedAt:   ts("2025-01-02T03:04:05Z"),
			Labels:      []string{"area:parser", "urgent"},
			Dependencies: []*types.Dependency{{
				IssueID:     "bd-a1",
				DependsOnID: "bd-b2",
				Type:        types.DepBlocks,
				CreatedAt:   ts("2025-01-02T03:05:00Z"),
				CreatedBy:   "alice",
			}},
			Comments: []*types.Comment{{
				ID:        1,
				IssueID:   "bd-a1",
				Author:    "bob",
				Text:      "Repro: <empty>",
				CreatedAt: ts("2025-01-03T00:00:00Z"),
			}},
		},
		{
			ID:          "bd-b2",
			Title:       "Define grammar",
			Status:      types.StatusClosed,
			Priority:    0,
			IssueType:   types.TypeTask,
			Assignee:    "carol",
			CreatedAt:   ts("2025-01-01T00:00:00Z"),
			UpdatedAt:   closedAt,
			ClosedAt:    &closedAt,
			CloseReason: "done",
			ExternalRef: &ref,
			Metadata:    json.RawMessage(`{"points":3}`),
		},
	}

	var buf bytes.Buffer
	if err := WriteJSONL(&buf, issues); err != nil {
		t.Fatalf("WriteJSONL failed: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "issues", buf.Bytes())
}

func newStore(t *testing.T) *sqlite.SQLiteStorage {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "beads.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.SetConfig(ctx, sqlite.IssuePrefixConfigKey, "bd"); err != nil {
		t.Fatalf("failed to set prefix: %v", err)
	}
	return store
}

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()

	var out []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("invalid JSONL line %q: %v", scanner.Text(), err)
		}
		out = append(out, m)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	return out
}

func TestExportToFile(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	blocker := &types.Issue{ID: "bd-zz", Title: "Blocker", Priority: 1, IssueType: types.TypeTask}
	blocked := &types.Issue{ID: "bd-aa", Title: "Blocked", Priority: 2, IssueType: types.TypeFeature, Labels: []string{"ui"}}
	scratch := &types.Issue{ID: "bd-mm", Title: "Scratch", Ephemeral: true}
	if err := store.CreateIssues(ctx, []*types.Issue{blocker, blocked, scratch}, "alice"); err != nil {
		t.Fatalf("CreateIssues failed: %v", err)
	}
	if err := store.AddDependency(ctx, &types.Dependency{IssueID: "bd-aa", DependsOnID: "bd-zz", Type: types.DepBlocks}, "alice"); err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}
	if _, err := store.AddComment(ctx, "bd-zz", "bob", "on it"); err != nil {
		t.Fatalf("AddComment failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out", "issues.jsonl")
	result, err := ExportToFile(ctx, store, path, Options{})
	if err != nil {
		t.Fatalf("ExportToFile failed: %v", err)
	}
	if result.Exported != 2 {
		t.Errorf("expected 2 exported, got %d", result.Exported)
	}
	if len(result.Hash) != 64 {
		t.Errorf("expected a hex SHA-256, got %q", result.Hash)
	}

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["id"] != "bd-aa" || lines[1]["id"] != "bd-zz" {
		t.Errorf("output must be sorted by id, got %v then %v", lines[0]["id"], lines[1]["id"])
	}
	if !reflect.DeepEqual(lines[0]["labels"], []interface{}{"ui"}) {
		t.Errorf("unexpected labels %v", lines[0]["labels"])
	}
	deps, ok := lines[0]["dependencies"].([]interface{})
	if !ok || len(deps) != 1 {
		t.Fatalf("dependencies should be embedded, got %v", lines[0]["dependencies"])
	}
	if target := deps[0].(map[string]interface{})["depends_on_id"]; target != "bd-zz" {
		t.Errorf("expected edge to bd-zz, got %v", target)
	}
	comments, ok := lines[1]["comments"].([]interface{})
	if !ok || len(comments) == 0 {
		t.Fatalf("comments should be embedded, got %v", lines[1]["comments"])
	}
	if text := comments[0].(map[string]interface{})["text"]; text != "on it" {
		t.Errorf("unexpected comment text %v", text)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected mode 0600, got %o", perm)
	}

	exportTime, err := store.GetMetadata(ctx, MetaLastExportTime)
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if _, err := time.Parse(time.RFC3339Nano, exportTime); err != nil {
		t.Errorf("last export time %q is not RFC3339: %v", exportTime, err)
	}
	hash, err := store.GetMetadata(ctx, MetaJSONLFileHash)
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if hash != result.Hash {
		t.Errorf("stored hash %q differs from result %q", hash, result.Hash)
	}

	count, err := CountIssuesInJSONL(path)
	if err != nil {
		t.Fatalf("CountIssuesInJSONL failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 issues in file, got %d", count)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("temp file should not be left behind, found %d entries", len(entries))
	}
}

func TestExportIncludeEphemeral(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	if err := store.CreateIssue(ctx, &types.Issue{ID: "bd-e1", Title: "Scratch", Ephemeral: true}, "alice"); err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}

	issues, err := CollectIssues(ctx, store, types.IssueFilter{}, true)
	if err != nil {
		t.Fatalf("CollectIssues failed: %v", err)
	}
	if len(issues) != 1 {
		t.Errorf("expected the ephemeral issue when included, got %d", len(issues))
	}

	issues, err = CollectIssues(ctx, store, types.IssueFilter{}, false)
	if err != nil {
		t.Fatalf("CollectIssues failed: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("expected ephemeral issues excluded, got %d", len(issues))
	}
}

func TestExportRefusesEmptyOverNonEmpty(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	path := filepath.Join(t.TempDir(), "issues.jsonl")
	if err := os.WriteFile(path, []byte(`{"id":"bd-1","title":"Keep me"}`+"\n"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := ExportToFile(ctx, store, path, Options{}); !errors.Is(err, ErrEmptyOverNonEmpty) {
		t.Fatalf("expected ErrEmptyOverNonEmpty, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "Keep me") {
		t.Error("refused export must leave the file alone")
	}

	result, err := ExportToFile(ctx, store, path, Options{Force: true})
	if err != nil {
		t.Fatalf("forced export failed: %v", err)
	}
	if result.Exported != 0 {
		t.Errorf("expected 0 exported, got %d", result.Exported)
	}
}

func TestCountIssuesInJSONLRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"id\":\"bd-1\"}\nnot json\n"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	count, err := CountIssuesInJSONL(path)
	if err == nil {
		t.Error("expected an error for a malformed line")
	}
	if count != 1 {
		t.Errorf("expected 1 issue counted before the bad line, got %d", count)
	}
}
