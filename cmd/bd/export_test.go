package main

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fwindolf/beads-rs-sub001/internal/export"
	"github.com/fwindolf/beads-rs-sub001/internal/importer"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

func TestExportImportRoundTrip(t *testing.T) {
	dir := newCLIWorkspace(t, "test")

	var a, b types.Issue
	runBDJSON(t, &a, "create", "Alpha", "-l", "x")
	runBDJSON(t, &b, "create", "Beta", "--deps", "blocks:"+a.ID)
	runBD(t, "comment", "add", a.ID, "first note")
	runBD(t, "create", "Scratch", "--ephemeral")
	runBD(t, "close", b.ID)

	var res export.Result
	runBDJSON(t, &res, "export")
	if res.Exported != 2 {
		t.Fatalf("exported = %d, want 2 (ephemeral excluded, closed included)", res.Exported)
	}
	if res.Path != filepath.Join(dir, ".beads", "issues.jsonl") {
		t.Errorf("export path = %s", res.Path)
	}

	stdout := runBD(t, "export", "-o", "-", "--status", "closed")
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one closed issue on stdout, got %d lines", len(lines))
	}
	var closed types.Issue
	if err := json.Unmarshal([]byte(lines[0]), &closed); err != nil {
		t.Fatal(err)
	}
	if closed.ID != b.ID || len(closed.Dependencies) != 1 {
		t.Errorf("unexpected exported issue %+v", closed)
	}

	backup := filepath.Join(t.TempDir(), "backup.jsonl")
	runBD(t, "export", "-o", backup)

	// A second workspace with the same prefix imports the backup verbatim.
	other := t.TempDir()
	t.Chdir(other)
	t.Setenv("BEADS_DIR", filepath.Join(other, ".beads"))
	runBD(t, "init", "--prefix", "test", "--quiet")

	var dry importer.Result
	runBDJSON(t, &dry, "import", "-i", backup, "--dry-run")
	if dry.Created != 2 {
		t.Errorf("dry run created = %d, want 2", dry.Created)
	}
	var empty []*types.Issue
	runBDJSON(t, &empty, "list", "--all")
	if len(empty) != 0 {
		t.Fatalf("dry run wrote %d issues", len(empty))
	}

	var imported importer.Result
	runBDJSON(t, &imported, "import", "-i", backup)
	if imported.Created != 2 {
		t.Fatalf("created = %d, want 2", imported.Created)
	}

	var shown []*issueDetails
	runBDJSON(t, &shown, "show", a.ID)
	if len(shown) != 1 || len(shown[0].Comments) != 1 || shown[0].Comments[0].Text != "first note" {
		t.Errorf("comments not imported: %+v", shown)
	}
	if len(shown[0].Labels) != 1 || shown[0].Labels[0] != "x" {
		t.Errorf("labels not imported: %v", shown[0].Labels)
	}

	var again importer.Result
	runBDJSON(t, &again, "import", "-i", backup)
	if again.Created != 0 || again.Updated != 0 {
		t.Errorf("re-import should be a no-op, got %+v", again)
	}
}

func TestExportWritesSortedJSONL(t *testing.T) {
	dir := newCLIWorkspace(t, "test")
	for _, title := range []string{"one", "two", "three"} {
		runBD(t, "create", title, "--quiet")
	}
	runBD(t, "export", "--quiet")

	f, err := os.Open(filepath.Join(dir, ".beads", "issues.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var issue types.Issue
		if err := json.Unmarshal(scanner.Bytes(), &issue); err != nil {
			t.Fatalf("invalid JSONL line %q: %v", scanner.Text(), err)
		}
		ids = append(ids, issue.ID)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(ids))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1] > ids[i] {
			t.Errorf("JSONL not sorted by id: %v", ids)
		}
	}
}
