package types

import "time"

// LabelFilter selects issues by label membership. All non-empty modes are ANDed.
type LabelFilter struct {
	Labels     []string // AND semantics: issue must have ALL these labels
	LabelsAny  []string // OR semantics: issue must have AT LEAST ONE of these labels
	LabelGlob  string   // SQLite GLOB pattern, e.g. "area:*"
	LabelRegex string   // Go regexp matched against each label
}

// IsEmpty reports whether no label predicate is active.
func (f LabelFilter) IsEmpty() bool {
	return len(f.Labels) == 0 && len(f.LabelsAny) == 0 && f.LabelGlob == "" && f.LabelRegex == ""
}

// IssueFilter is used to filter issue queries. Every set field is ANDed.
type IssueFilter struct {
	Status      *Status
	Priority    *int
	PriorityMin *int
	PriorityMax *int
	IssueType   *IssueType
	Assignee    *string
	NoAssignee  bool

	LabelFilter

	// Field-specific substring filters (the text query passed to SearchIssues
	// matches title, description, notes and id together)
	TitleContains       string
	DescriptionContains string
	NotesContains       string

	IDs      []string // Filter by specific issue IDs
	IDPrefix string   // Filter by ID prefix (e.g., "bd-" to match "bd-abc123")

	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	UpdatedAfter  *time.Time
	UpdatedBefore *time.Time
	ClosedAfter   *time.Time
	ClosedBefore  *time.Time
	DueAfter      *time.Time
	DueBefore     *time.Time
	DeferAfter    *time.Time
	DeferBefore   *time.Time

	// Tri-state flags: nil = any
	IsTemplate *bool
	Ephemeral  *bool
	Pinned     *bool

	// ParentID restricts results to direct children via parent-child edges.
	ParentID *string

	ExcludeStatus []Status
	ExcludeTypes  []IssueType

	Limit int
}

// SortPolicy determines how ready work is ordered
type SortPolicy string

const (
	// SortPolicyHybrid orders issues created within 48 hours by priority and older ones by age.
	SortPolicyHybrid SortPolicy = "hybrid"

	// SortPolicyPriority sorts by priority first, then creation date.
	SortPolicyPriority SortPolicy = "priority"

	// SortPolicyOldest sorts by creation date, oldest first.
	SortPolicyOldest SortPolicy = "oldest"
)

// IsValid checks if the sort policy value is valid
func (s SortPolicy) IsValid() bool {
	switch s {
	case SortPolicyHybrid, SortPolicyPriority, SortPolicyOldest, "":
		return true
	}
	return false
}

// WorkFilter is used to filter ready work queries
type WorkFilter struct {
	Type       IssueType
	Priority   *int
	Assignee   *string
	Unassigned bool

	LabelFilter

	Limit      int
	SortPolicy SortPolicy

	// ParentID restricts results to all descendants of an epic or molecule.
	ParentID *string

	IncludeDeferred  bool // Include issues whose defer_until is still in the future
	IncludeEphemeral bool
	IncludeSubSteps  bool // Include children of molecule issues
}
