package main

import (
	"strings"
	"testing"

	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

func TestFormatIssueCompact(t *testing.T) {
	issue := &types.Issue{
		ID:        "t-a1b",
		Title:     "Fix the flaky login redirect test",
		Status:    types.StatusOpen,
		Priority:  1,
		IssueType: types.TypeBug,
		Assignee:  "alice",
		Labels:    []string{"auth"},
	}

	line := formatIssueCompact(issue, 0)
	for _, want := range []string{"t-a1b", "P1", "bug", "@alice", "[auth]", "Fix the flaky login redirect test"} {
		if !strings.Contains(line, want) {
			t.Errorf("formatIssueCompact() = %q, missing %q", line, want)
		}
	}

	narrow := formatIssueCompact(issue, 50)
	if strings.Contains(narrow, "redirect test") {
		t.Errorf("expected title truncated to terminal width, got %q", narrow)
	}

	issue.Status = types.StatusClosed
	if closed := formatIssueCompact(issue, 0); !strings.Contains(closed, "✓") {
		t.Errorf("closed issue should use the closed icon: %q", closed)
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a longer sentence", 10, "a longe..."},
		{"héllo wörld", 8, "héllo..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestPluralize(t *testing.T) {
	if got := pluralize(1, "issue"); got != "1 issue" {
		t.Errorf("pluralize(1) = %q", got)
	}
	if got := pluralize(3, "issue"); got != "3 issues" {
		t.Errorf("pluralize(3) = %q", got)
	}
}
