// Package types defines core data structures for the bd issue graph store.
package types

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"hash"
	"strings"
	"time"
)

// MaxTitleLength is the longest title accepted by Validate.
const MaxTitleLength = 500

// Issue represents a trackable work item.
type Issue struct {
	// ===== Core Identification =====
	ID          string `json:"id"`
	ContentHash string `json:"-"` // SHA256 of substantive content, recomputed on every write

	// ===== Issue Content =====
	Title              string `json:"title"`
	Description        string `json:"description,omitempty"`
	Design             string `json:"design,omitempty"`
	AcceptanceCriteria string `json:"acceptance_criteria,omitempty"`
	Notes              string `json:"notes,omitempty"`
	SpecID             string `json:"spec_id,omitempty"` // Optional pointer to a design/spec document

	// ===== Status & Workflow =====
	Status    Status    `json:"status,omitempty"`
	Priority  int       `json:"priority"` // No omitempty: 0 is valid (P0/critical)
	IssueType IssueType `json:"issue_type,omitempty"`

	// ===== Assignment =====
	Assignee         string `json:"assignee,omitempty"`
	Owner            string `json:"owner,omitempty"`
	EstimatedMinutes *int   `json:"estimated_minutes,omitempty"`

	// ===== Timestamps =====
	CreatedAt       time.Time  `json:"created_at"`
	CreatedBy       string     `json:"created_by,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	CloseReason     string     `json:"close_reason,omitempty"`
	ClosedBySession string     `json:"closed_by_session,omitempty"`

	// ===== Time-Based Scheduling =====
	DueAt      *time.Time `json:"due_at,omitempty"`
	DeferUntil *time.Time `json:"defer_until,omitempty"` // Hidden from ready work until this time

	// ===== External Integration =====
	ExternalRef  *string `json:"external_ref,omitempty"` // e.g., "gh-9", "jira-ABC"
	SourceSystem string  `json:"source_system,omitempty"`

	// Metadata is an opaque JSON blob owned by callers.
	Metadata json.RawMessage `json:"metadata,omitempty"`

	// ===== Compaction Metadata (excluded from content hash) =====
	CompactionLevel int        `json:"compaction_level,omitempty"`
	CompactedAt     *time.Time `json:"compacted_at,omitempty"`
	OriginalSize    int        `json:"original_size,omitempty"`

	// ===== Relational Data (populated for export/import) =====
	Labels       []string      `json:"labels,omitempty"`
	Dependencies []*Dependency `json:"dependencies,omitempty"`
	Comments     []*Comment    `json:"comments,omitempty"`

	// ===== Flags =====
	Ephemeral  bool `json:"ephemeral,omitempty"`   // Local-only work, hidden from ready work by default
	Pinned     bool `json:"pinned,omitempty"`      // Persistent context marker
	IsTemplate bool `json:"is_template,omitempty"` // Read-only template, never ready work

	// ===== Gate Fields (async coordination) =====
	AwaitType string        `json:"await_type,omitempty"` // gh:run, gh:pr, timer, human
	AwaitID   string        `json:"await_id,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty"`
	Waiters   []string      `json:"waiters,omitempty"`

	// ===== Agent Fields =====
	RoleType   string     `json:"role_type,omitempty"`
	AgentState AgentState `json:"agent_state,omitempty"`
	Rig        string     `json:"rig,omitempty"`

	// ===== Event Fields (operational state changes recorded as issues) =====
	EventKind string `json:"event_kind,omitempty"` // Namespaced kind: patrol.muted, agent.started
	Actor     string `json:"actor,omitempty"`
	Target    string `json:"target,omitempty"`
	Payload   string `json:"payload,omitempty"`
}

// ComputeContentHash creates a deterministic hash of the issue's content.
// ID, timestamps and compaction bookkeeping are excluded so that copies of the
// same work item created independently hash identically.
func (i *Issue) ComputeContentHash() string {
	h := sha256.New()
	w := hashFieldWriter{h}

	w.str(i.Title)
	w.str(i.Description)
	w.str(i.Design)
	w.str(i.AcceptanceCriteria)
	w.str(i.Notes)
	w.str(i.SpecID)
	w.str(string(i.Status))
	w.int(i.Priority)
	w.str(string(i.IssueType))
	w.str(i.Assignee)
	w.str(i.Owner)
	w.str(i.CreatedBy)

	w.strPtr(i.ExternalRef)
	w.str(i.SourceSystem)
	w.flag(i.Pinned, "pinned")
	w.str(string(i.Metadata))
	w.flag(i.IsTemplate, "template")
	w.flag(i.Ephemeral, "ephemeral")

	w.str(i.AwaitType)
	w.str(i.AwaitID)
	w.duration(i.Timeout)
	for _, waiter := range i.Waiters {
		w.str(waiter)
	}

	w.str(i.RoleType)
	w.str(string(i.AgentState))
	w.str(i.Rig)

	w.str(i.EventKind)
	w.str(i.Actor)
	w.str(i.Target)
	w.str(i.Payload)

	return fmt.Sprintf("%x", h.Sum(nil))
}

// hashFieldWriter writes each value followed by a zero separator byte.
type hashFieldWriter struct {
	h hash.Hash
}

func (w hashFieldWriter) str(s string) {
	w.h.Write([]byte(s))
	w.h.Write([]byte{0})
}

func (w hashFieldWriter) int(n int) {
	w.str(fmt.Sprintf("%d", n))
}

func (w hashFieldWriter) strPtr(p *string) {
	if p != nil {
		w.h.Write([]byte(*p))
	}
	w.h.Write([]byte{0})
}

func (w hashFieldWriter) duration(d time.Duration) {
	w.str(fmt.Sprintf("%d", d))
}

func (w hashFieldWriter) flag(b bool, label string) {
	if b {
		w.h.Write([]byte(label))
	}
	w.h.Write([]byte{0})
}

// IsClosed reports whether the issue is in the closed state.
func (i *Issue) IsClosed() bool {
	return i.Status == StatusClosed
}

// Validate checks structural invariants of the issue. Status and type values are
// open enumerations and are not checked here; see UnknownValues.
func (i *Issue) Validate() error {
	if strings.TrimSpace(i.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if len(i.Title) > MaxTitleLength {
		return fmt.Errorf("title must be %d characters or less (got %d)", MaxTitleLength, len(i.Title))
	}
	if i.EstimatedMinutes != nil && *i.EstimatedMinutes < 0 {
		return fmt.Errorf("estimated_minutes cannot be negative")
	}
	if i.Status == StatusClosed && i.ClosedAt == nil {
		return fmt.Errorf("closed issues must have closed_at timestamp")
	}
	if i.Status != StatusClosed && i.ClosedAt != nil {
		return fmt.Errorf("non-closed issues cannot have closed_at timestamp")
	}
	if i.Status != StatusClosed && i.CloseReason != "" {
		return fmt.Errorf("non-closed issues cannot have close_reason")
	}
	if len(i.Metadata) > 0 && !json.Valid(i.Metadata) {
		return fmt.Errorf("metadata must be valid JSON")
	}
	if !i.AgentState.IsValid() {
		return fmt.Errorf("invalid agent state: %s", i.AgentState)
	}
	return nil
}

// UnknownValues returns human-readable warnings for status and type values that
// are neither built in nor configured as custom values.
func (i *Issue) UnknownValues(customStatuses, customTypes []string) []string {
	var warnings []string
	if !i.Status.IsValidWithCustom(customStatuses) {
		warnings = append(warnings, fmt.Sprintf("unknown status %q", i.Status))
	}
	if !i.IssueType.IsValidWithCustom(customTypes) {
		warnings = append(warnings, fmt.Sprintf("unknown issue type %q", i.IssueType))
	}
	return warnings
}

// SetDefaults applies default values for fields omitted in input.
func (i *Issue) SetDefaults() {
	if i.Status == "" {
		i.Status = StatusOpen
	}
	if i.IssueType == "" {
		i.IssueType = TypeTask
	}
}

// Status represents the current state of an issue
type Status string

// Issue status constants
const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusDeferred   Status = "deferred"
	StatusClosed     Status = "closed"
	StatusPinned     Status = "pinned"
	StatusHooked     Status = "hooked"
)

// IsValid checks if the status value is a built-in status
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusBlocked, StatusDeferred, StatusClosed, StatusPinned, StatusHooked:
		return true
	}
	return false
}

// IsValidWithCustom checks if the status is built in or listed in status.custom.
func (s Status) IsValidWithCustom(customStatuses []string) bool {
	if s.IsValid() {
		return true
	}
	for _, custom := range customStatuses {
		if string(s) == custom {
			return true
		}
	}
	return false
}

// IssueType categorizes the kind of work
type IssueType string

// Built-in issue types. Any other string is accepted and treated as custom.
const (
	TypeBug      IssueType = "bug"
	TypeFeature  IssueType = "feature"
	TypeTask     IssueType = "task"
	TypeEpic     IssueType = "epic"
	TypeChore    IssueType = "chore"
	TypeGate     IssueType = "gate"     // Structural: async wait point, never ready work
	TypeMolecule IssueType = "molecule" // Workflow container; its children are sub-steps
)

// IsValid checks if the issue type is built in.
func (t IssueType) IsValid() bool {
	switch t {
	case TypeBug, TypeFeature, TypeTask, TypeEpic, TypeChore, TypeGate, TypeMolecule:
		return true
	}
	return false
}

// IsValidWithCustom checks if the issue type is built in or listed in types.custom.
func (t IssueType) IsValidWithCustom(customTypes []string) bool {
	if t.IsValid() {
		return true
	}
	for _, custom := range customTypes {
		if string(t) == custom {
			return true
		}
	}
	return false
}

// Normalize maps issue type aliases to their canonical form.
func (t IssueType) Normalize() IssueType {
	switch strings.ToLower(string(t)) {
	case "enhancement", "feat":
		return TypeFeature
	default:
		return t
	}
}

// AgentState is the lifecycle state of an agent issue.
type AgentState string

const (
	StateIdle    AgentState = "idle"
	StateRunning AgentState = "running"
	StateStuck   AgentState = "stuck"
	StateDone    AgentState = "done"
	StateStopped AgentState = "stopped"
)

// IsValid reports whether s is a known agent state. Empty is valid for non-agent issues.
func (s AgentState) IsValid() bool {
	switch s {
	case StateIdle, StateRunning, StateStuck, StateDone, StateStopped, "":
		return true
	}
	return false
}

// Dependency represents a relationship between issues.
// IssueID depends on DependsOnID.
type Dependency struct {
	IssueID     string         `json:"issue_id"`
	DependsOnID string         `json:"depends_on_id"`
	Type        DependencyType `json:"type"`
	CreatedAt   time.Time      `json:"created_at"`
	CreatedBy   string         `json:"created_by,omitempty"`
	// Metadata carries type-specific edge data as JSON.
	Metadata string `json:"metadata,omitempty"`
	// ThreadID groups conversation edges.
	ThreadID string `json:"thread_id,omitempty"`
}

// DependencyCounts holds counts for dependencies and dependents
type DependencyCounts struct {
	DependencyCount int `json:"dependency_count"`
	DependentCount  int `json:"dependent_count"`
}

// IssueWithDependencyMetadata extends Issue with the type of the edge that reached it
type IssueWithDependencyMetadata struct {
	Issue
	DependencyType DependencyType `json:"dependency_type"`
}

// DependencyType categorizes the relationship
type DependencyType string

const (
	DepBlocks            DependencyType = "blocks"
	DepParentChild       DependencyType = "parent-child"
	DepConditionalBlocks DependencyType = "conditional-blocks" // B runs only if A fails
	DepWaitsFor          DependencyType = "waits-for"

	DepRelated        DependencyType = "related" // Symmetric "see also"
	DepDiscoveredFrom DependencyType = "discovered-from"
	DepDuplicates     DependencyType = "duplicates"
	DepSupersedes     DependencyType = "supersedes"
	DepAttests        DependencyType = "attests"
	DepRepliesTo      DependencyType = "replies-to"
)

// IsValid checks if the dependency type value is usable.
// Any non-empty string up to 50 characters is accepted.
func (d DependencyType) IsValid() bool {
	return len(d) > 0 && len(d) <= 50
}

// IsWellKnown reports whether d is one of the built-in dependency types.
func (d DependencyType) IsWellKnown() bool {
	switch d {
	case DepBlocks, DepParentChild, DepConditionalBlocks, DepWaitsFor, DepRelated,
		DepDiscoveredFrom, DepDuplicates, DepSupersedes, DepAttests, DepRepliesTo:
		return true
	}
	return false
}

// IsBlocking reports whether edges of this type gate ready work.
func (d DependencyType) IsBlocking() bool {
	return d == DepBlocks || d == DepConditionalBlocks || d == DepWaitsFor
}

// IsCycleChecked reports whether edges of this type must stay acyclic.
func (d DependencyType) IsCycleChecked() bool {
	return d.IsBlocking() || d == DepParentChild
}

// IsSymmetric reports whether the edge is stored in both directions.
func (d DependencyType) IsSymmetric() bool {
	return d == DepRelated
}

// BlockingTypes lists the dependency types that gate ready work.
var BlockingTypes = []DependencyType{DepBlocks, DepConditionalBlocks, DepWaitsFor}

// CycleCheckedTypes lists the dependency types covered by the acyclicity invariant.
var CycleCheckedTypes = []DependencyType{DepBlocks, DepConditionalBlocks, DepWaitsFor, DepParentChild}

// FailureCloseKeywords are close-reason substrings that mark a failed close.
// A conditional-blocks edge resolves only when its target closed with one of these.
var FailureCloseKeywords = []string{
	"failed",
	"rejected",
	"wontfix",
	"won't fix",
	"canceled",
	"cancelled", //nolint:misspell // British spelling intentionally included
	"abandoned",
	"blocked",
	"error",
	"timeout",
	"aborted",
}

// IsFailureClose reports whether a close reason indicates failure (case-insensitive).
func IsFailureClose(closeReason string) bool {
	if closeReason == "" {
		return false
	}
	lower := strings.ToLower(closeReason)
	for _, keyword := range FailureCloseKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// Label represents a tag on an issue
type Label struct {
	IssueID string `json:"issue_id"`
	Label   string `json:"label"`
}

// Comment represents a comment on an issue
type Comment struct {
	ID        int64     `json:"id"`
	IssueID   string    `json:"issue_id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Event represents an audit trail entry
type Event struct {
	ID        int64     `json:"id"`
	IssueID   string    `json:"issue_id"`
	EventType EventType `json:"event_type"`
	Actor     string    `json:"actor"`
	OldValue  *string   `json:"old_value,omitempty"`
	NewValue  *string   `json:"new_value,omitempty"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventType categorizes audit trail events
type EventType string

const (
	EventCreated           EventType = "created"
	EventUpdated           EventType = "updated"
	EventStatusChanged     EventType = "status_changed"
	EventCommented         EventType = "commented"
	EventClosed            EventType = "closed"
	EventReopened          EventType = "reopened"
	EventClaimed           EventType = "claimed"
	EventDependencyAdded   EventType = "dependency_added"
	EventDependencyRemoved EventType = "dependency_removed"
	EventLabelAdded        EventType = "label_added"
	EventLabelRemoved      EventType = "label_removed"
)

// BlockedIssue extends Issue with blocking information
type BlockedIssue struct {
	Issue
	BlockedByCount int      `json:"blocked_by_count"`
	BlockedBy      []string `json:"blocked_by"`
}

// TreeNode represents a node in a dependency tree
type TreeNode struct {
	Issue
	Depth     int    `json:"depth"`
	ParentID  string `json:"parent_id"`
	Truncated bool   `json:"truncated"`
}

// EpicStatus represents an epic with its completion status
type EpicStatus struct {
	Epic             *Issue `json:"epic"`
	TotalChildren    int    `json:"total_children"`
	ClosedChildren   int    `json:"closed_children"`
	EligibleForClose bool   `json:"eligible_for_close"`
}

// Statistics provides aggregate metrics
type Statistics struct {
	TotalIssues             int     `json:"total_issues"`
	OpenIssues              int     `json:"open_issues"`
	InProgressIssues        int     `json:"in_progress_issues"`
	ClosedIssues            int     `json:"closed_issues"`
	BlockedIssues           int     `json:"blocked_issues"`
	DeferredIssues          int     `json:"deferred_issues"`
	ReadyIssues             int     `json:"ready_issues"`
	PinnedIssues            int     `json:"pinned_issues"`
	EpicsEligibleForClosure int     `json:"epics_eligible_for_closure"`
	AverageLeadTime         float64 `json:"average_lead_time_hours"`
}
