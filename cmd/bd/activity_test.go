package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

func strPtr(s string) *string { return &s }

func TestEventMessage(t *testing.T) {
	tests := []struct {
		name  string
		event types.Event
		want  string
	}{
		{"status", types.Event{EventType: types.EventStatusChanged, OldValue: strPtr("open"), NewValue: strPtr("in_progress")}, "open → in_progress"},
		{"closed with reason", types.Event{EventType: types.EventClosed, Comment: strPtr("shipped")}, "closed: shipped"},
		{"closed", types.Event{EventType: types.EventClosed}, "closed"},
		{"dep added", types.Event{EventType: types.EventDependencyAdded, NewValue: strPtr("t-1 blocks t-2")}, "dependency added t-1 blocks t-2"},
		{"label removed", types.Event{EventType: types.EventLabelRemoved, OldValue: strPtr("ui")}, "label removed ui"},
		{"comment", types.Event{EventType: types.EventCommented, Comment: strPtr("looks good")}, "comment: looks good"},
		{"created", types.Event{EventType: types.EventCreated}, "created"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eventMessage(&tt.event); got != tt.want {
				t.Errorf("eventMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilterEvents(t *testing.T) {
	now := time.Now()
	events := []*types.Event{
		{ID: 1, IssueID: "t-abc", EventType: types.EventCreated, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: 2, IssueID: "t-abc", EventType: types.EventClosed, CreatedAt: now.Add(-time.Minute)},
		{ID: 3, IssueID: "t-xyz", EventType: types.EventCreated, CreatedAt: now},
	}
	t.Cleanup(func() { activityIssue, activityType = "", "" })

	activityIssue, activityType = "t-a", ""
	if got := filterEvents(events, time.Time{}); len(got) != 2 {
		t.Errorf("issue filter: got %d events, want 2", len(got))
	}

	activityIssue, activityType = "", "created"
	if got := filterEvents(events, now.Add(-time.Hour)); len(got) != 1 || got[0].ID != 3 {
		t.Errorf("type+since filter: got %+v", got)
	}
}

func TestActivityAndEventsCommands(t *testing.T) {
	newCLIWorkspace(t, "test")

	var issue types.Issue
	runBDJSON(t, &issue, "create", "Tracked")
	runBD(t, "update", issue.ID, "--status", "in_progress")
	runBD(t, "close", issue.ID, "--reason", "done")

	var events []*types.Event
	runBDJSON(t, &events, "events", issue.ID)
	seen := map[types.EventType]bool{}
	for _, e := range events {
		seen[e.EventType] = true
	}
	for _, want := range []types.EventType{types.EventCreated, types.EventStatusChanged, types.EventClosed} {
		if !seen[want] {
			t.Errorf("missing %s event in %d events", want, len(events))
		}
	}

	var feed []*types.Event
	runBDJSON(t, &feed, "activity", "--type", "closed")
	if len(feed) != 1 || feed[0].IssueID != issue.ID {
		t.Errorf("activity --type closed = %+v", feed)
	}

	out := runBD(t, "activity", "--limit", "1")
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 1 || !strings.Contains(lines[0], issue.ID) {
		t.Errorf("activity --limit 1 printed %q", out)
	}
}

func TestDBWatcherPolling(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "beads.db")
	if err := os.WriteFile(dbFile, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	w := newDBWatcher(dbFile, 10*time.Millisecond, true)
	if !w.IsPolling() {
		t.Fatal("expected forced polling")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer func() { _ = w.Close() }()

	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(dbFile, future, future); err != nil {
		t.Fatal(err)
	}

	select {
	case <-w.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification from polling watcher")
	}
}
