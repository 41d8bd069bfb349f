package main

import (
	"strings"
	"testing"

	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

func TestDepCommands(t *testing.T) {
	newCLIWorkspace(t, "test")

	var epic, task, other types.Issue
	runBDJSON(t, &epic, "create", "Epic", "-t", "epic")
	runBDJSON(t, &task, "create", "Task", "--parent", epic.ID)
	runBDJSON(t, &other, "create", "Other")

	var added map[string]string
	runBDJSON(t, &added, "dep", "add", task.ID, other.ID)
	if added["type"] != string(types.DepBlocks) {
		t.Errorf("default dependency type = %q, want blocks", added["type"])
	}

	var deps []*types.IssueWithDependencyMetadata
	runBDJSON(t, &deps, "dep", "list", task.ID)
	if len(deps) != 2 {
		t.Fatalf("expected 2 dependencies, got %d", len(deps))
	}
	byID := map[string]types.DependencyType{}
	for _, d := range deps {
		byID[d.ID] = d.DependencyType
	}
	if byID[epic.ID] != types.DepParentChild || byID[other.ID] != types.DepBlocks {
		t.Errorf("unexpected dependency types %v", byID)
	}

	var dependents []*types.IssueWithDependencyMetadata
	runBDJSON(t, &dependents, "dep", "list", other.ID, "--reverse")
	if len(dependents) != 1 || dependents[0].ID != task.ID {
		t.Errorf("dependents of %s = %+v", other.ID, dependents)
	}

	var tree []*types.TreeNode
	runBDJSON(t, &tree, "dep", "tree", task.ID)
	if len(tree) != 3 || tree[0].ID != task.ID || tree[0].Depth != 0 {
		t.Fatalf("unexpected tree %+v", tree)
	}

	var cycles [][]*types.Issue
	runBDJSON(t, &cycles, "dep", "cycles")
	if len(cycles) != 0 {
		t.Errorf("expected no cycles, got %d", len(cycles))
	}

	runBD(t, "dep", "remove", task.ID, other.ID, "--quiet")
	runBDJSON(t, &deps, "dep", "list", task.ID)
	if len(deps) != 1 || deps[0].ID != epic.ID {
		t.Errorf("after remove: %+v", deps)
	}
	// Removing an edge that no longer exists is a no-op.
	runBD(t, "dep", "remove", task.ID, other.ID)
}

func TestRenderTree(t *testing.T) {
	nodes := []*types.TreeNode{
		{Issue: types.Issue{ID: "t-root", Title: "Root", Status: types.StatusOpen, Priority: 1}},
		{Issue: types.Issue{ID: "t-leaf", Title: "Leaf", Status: types.StatusClosed, Priority: 2}, Depth: 1, ParentID: "t-root", Truncated: true},
	}
	lines := strings.Split(strings.TrimRight(renderTree(nodes), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[0], "t-root") || strings.HasPrefix(lines[0], " ") {
		t.Errorf("root line should be unindented: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "  ├─ ") || !strings.Contains(lines[1], "t-leaf") || !strings.Contains(lines[1], "…") {
		t.Errorf("leaf line should be indented with a connector and truncation mark: %q", lines[1])
	}
}
