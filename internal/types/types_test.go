package types

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func intPtr(i int) *int { return &i }

func TestIssueValidation(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		issue   Issue
		wantErr bool
		errMsg  string
	}{
		{
			name:  "valid issue",
			issue: Issue{ID: "test-1", Title: "Valid issue", Status: StatusOpen, Priority: 2, IssueType: TypeFeature},
		},
		{
			name:    "missing title",
			issue:   Issue{ID: "test-1", Status: StatusOpen, Priority: 2, IssueType: TypeFeature},
			wantErr: true,
			errMsg:  "title is required",
		},
		{
			name:    "whitespace title",
			issue:   Issue{Title: "   ", Status: StatusOpen},
			wantErr: true,
			errMsg:  "title is required",
		},
		{
			name:    "title too long",
			issue:   Issue{Title: strings.Repeat("x", 501), Status: StatusOpen},
			wantErr: true,
			errMsg:  "title must be 500 characters or less",
		},
		{
			name:  "priority outside 0-4 is accepted",
			issue: Issue{Title: "Test", Status: StatusOpen, Priority: 9},
		},
		{
			name:  "custom status and type are accepted",
			issue: Issue{Title: "Test", Status: "review", IssueType: "incident"},
		},
		{
			name:    "negative estimate",
			issue:   Issue{Title: "Test", Status: StatusOpen, EstimatedMinutes: intPtr(-5)},
			wantErr: true,
			errMsg:  "estimated_minutes cannot be negative",
		},
		{
			name:    "closed without closed_at",
			issue:   Issue{Title: "Test", Status: StatusClosed},
			wantErr: true,
			errMsg:  "closed issues must have closed_at",
		},
		{
			name:    "open with closed_at",
			issue:   Issue{Title: "Test", Status: StatusOpen, ClosedAt: &now},
			wantErr: true,
			errMsg:  "non-closed issues cannot have closed_at",
		},
		{
			name:  "closed with closed_at",
			issue: Issue{Title: "Test", Status: StatusClosed, ClosedAt: &now},
		},
		{
			name:    "open with close_reason",
			issue:   Issue{Title: "Test", Status: StatusOpen, CloseReason: "done"},
			wantErr: true,
			errMsg:  "non-closed issues cannot have close_reason",
		},
		{
			name:  "closed with close_reason",
			issue: Issue{Title: "Test", Status: StatusClosed, ClosedAt: &now, CloseReason: "done"},
		},
		{
			name:    "invalid metadata",
			issue:   Issue{Title: "Test", Status: StatusOpen, Metadata: json.RawMessage(`{"a":`)},
			wantErr: true,
			errMsg:  "metadata must be valid JSON",
		},
		{
			name:    "invalid agent state",
			issue:   Issue{Title: "Test", Status: StatusOpen, AgentState: "sleepy"},
			wantErr: true,
			errMsg:  "invalid agent state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.issue.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %q, want substring %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestUnknownValues(t *testing.T) {
	issue := Issue{Title: "x", Status: "review", IssueType: "incident"}
	if got := issue.UnknownValues(nil, nil); len(got) != 2 {
		t.Fatalf("UnknownValues() = %v, want 2 warnings", got)
	}
	if got := issue.UnknownValues([]string{"review"}, []string{"incident"}); len(got) != 0 {
		t.Errorf("UnknownValues() with custom config = %v, want none", got)
	}
}

func TestStatusIsValidWithCustom(t *testing.T) {
	tests := []struct {
		status Status
		custom []string
		want   bool
	}{
		{StatusOpen, nil, true},
		{StatusClosed, nil, true},
		{StatusHooked, nil, true},
		{"review", nil, false},
		{"review", []string{"triage", "review"}, true},
		{"", nil, false},
	}
	for _, tt := range tests {
		if got := tt.status.IsValidWithCustom(tt.custom); got != tt.want {
			t.Errorf("Status(%q).IsValidWithCustom(%v) = %v, want %v", tt.status, tt.custom, got, tt.want)
		}
	}
}

func TestIssueTypeNormalize(t *testing.T) {
	if got := IssueType("Enhancement").Normalize(); got != TypeFeature {
		t.Errorf("Normalize(Enhancement) = %q, want feature", got)
	}
	if got := IssueType("bug").Normalize(); got != TypeBug {
		t.Errorf("Normalize(bug) = %q, want bug", got)
	}
}

func TestDependencyTypeClasses(t *testing.T) {
	tests := []struct {
		dep          DependencyType
		blocking     bool
		cycleChecked bool
		symmetric    bool
	}{
		{DepBlocks, true, true, false},
		{DepConditionalBlocks, true, true, false},
		{DepWaitsFor, true, true, false},
		{DepParentChild, false, true, false},
		{DepRelated, false, false, true},
		{DepDiscoveredFrom, false, false, false},
		{DepDuplicates, false, false, false},
		{DepSupersedes, false, false, false},
		{DependencyType("custom-edge"), false, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.dep), func(t *testing.T) {
			if got := tt.dep.IsBlocking(); got != tt.blocking {
				t.Errorf("IsBlocking() = %v, want %v", got, tt.blocking)
			}
			if got := tt.dep.IsCycleChecked(); got != tt.cycleChecked {
				t.Errorf("IsCycleChecked() = %v, want %v", got, tt.cycleChecked)
			}
			if got := tt.dep.IsSymmetric(); got != tt.symmetric {
				t.Errorf("IsSymmetric() = %v, want %v", got, tt.symmetric)
			}
		})
	}
}

func TestDependencyTypeIsValid(t *testing.T) {
	if DependencyType("").IsValid() {
		t.Error("empty dependency type should be invalid")
	}
	if DependencyType(strings.Repeat("a", 51)).IsValid() {
		t.Error("51-char dependency type should be invalid")
	}
	if !DependencyType("custom-edge").IsValid() {
		t.Error("custom dependency type should be valid")
	}
}

func TestIsFailureClose(t *testing.T) {
	tests := []struct {
		name        string
		closeReason string
		isFailure   bool
	}{
		{"failed", "Task failed due to flaky infra", true},
		{"rejected", "PR was rejected by reviewer", true},
		{"wontfix", "Closed as wontfix", true},
		{"won't fix", "Won't fix - by design", true},
		{"cancelled", "Work cancelled", true},
		{"canceled", "Work canceled", true},
		{"abandoned", "Abandoned feature", true},
		{"blocked", "Blocked by external dependency", true},
		{"error", "Encountered error during execution", true},
		{"timeout", "Test timeout exceeded", true},
		{"aborted", "Build aborted", true},
		{"upper case", "FAILED", true},

		{"completed", "Completed successfully", false},
		{"merged", "Merged to main", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFailureClose(tt.closeReason); got != tt.isFailure {
				t.Errorf("IsFailureClose(%q) = %v, want %v", tt.closeReason, got, tt.isFailure)
			}
		})
	}
}

func TestComputeContentHash(t *testing.T) {
	issue1 := Issue{
		ID:               "test-1",
		Title:            "Title A",
		Description:      "Description",
		Status:           StatusOpen,
		Priority:         2,
		IssueType:        TypeFeature,
		EstimatedMinutes: intPtr(60),
	}

	closedAt := time.Now()
	issue2 := issue1
	issue2.ID = "test-2"
	issue2.CreatedAt = time.Now()
	issue2.UpdatedAt = time.Now().Add(time.Hour)
	issue2.CompactionLevel = 2
	issue2.CompactedAt = &closedAt

	hash1 := issue1.ComputeContentHash()
	if hash2 := issue2.ComputeContentHash(); hash1 != hash2 {
		t.Errorf("expected same hash for identical content, got %s and %s", hash1, hash2)
	}
	if len(hash1) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(hash1))
	}

	issue3 := issue1
	issue3.Title = "Title B"
	if issue3.ComputeContentHash() == hash1 {
		t.Error("expected different hash for different title")
	}

	externalRef := "EXT-123"
	issue4 := issue1
	issue4.ExternalRef = &externalRef
	if issue4.ComputeContentHash() == hash1 {
		t.Error("expected different hash when external ref is present")
	}

	issue5 := issue1
	issue5.Pinned = true
	if issue5.ComputeContentHash() == hash1 {
		t.Error("expected different hash when pinned flag changes")
	}

	issue6 := issue1
	issue6.Waiters = []string{"ops@example.com"}
	if issue6.ComputeContentHash() == hash1 {
		t.Error("expected different hash when gate waiters change")
	}
}

func TestComputeContentHashSeparatesFields(t *testing.T) {
	a := Issue{Title: "ab", Description: "c"}
	b := Issue{Title: "a", Description: "bc"}
	if a.ComputeContentHash() == b.ComputeContentHash() {
		t.Error("field boundaries must affect the hash")
	}
}

func TestSetDefaults(t *testing.T) {
	issue := Issue{Title: "x"}
	issue.SetDefaults()
	if issue.Status != StatusOpen {
		t.Errorf("Status = %q, want open", issue.Status)
	}
	if issue.IssueType != TypeTask {
		t.Errorf("IssueType = %q, want task", issue.IssueType)
	}
	if issue.Priority != 0 {
		t.Errorf("Priority = %d, want untouched 0", issue.Priority)
	}
}

func TestLabelFilterIsEmpty(t *testing.T) {
	if !(LabelFilter{}).IsEmpty() {
		t.Error("zero LabelFilter should be empty")
	}
	if (LabelFilter{LabelGlob: "area:*"}).IsEmpty() {
		t.Error("glob filter should not be empty")
	}
}

func TestSortPolicyIsValid(t *testing.T) {
	for _, p := range []SortPolicy{"", SortPolicyHybrid, SortPolicyPriority, SortPolicyOldest} {
		if !p.IsValid() {
			t.Errorf("SortPolicy(%q).IsValid() = false", p)
		}
	}
	if SortPolicy("random").IsValid() {
		t.Error("unknown sort policy should be invalid")
	}
}
