package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// dbTimeLayout is fixed width so that stored timestamps compare correctly as text.
const dbTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// issueColumnNames lists the issues table columns in scan order.
var issueColumnNames = []string{
	"id", "content_hash", "title", "description", "design", "acceptance_criteria", "notes", "spec_id",
	"status", "priority", "issue_type", "assignee", "owner", "estimated_minutes",
	"created_at", "created_by", "updated_at", "closed_at", "close_reason", "closed_by_session",
	"due_at", "defer_until", "external_ref", "source_system", "metadata",
	"compaction_level", "compacted_at", "original_size", "ephemeral", "pinned", "is_template",
	"await_type", "await_id", "timeout_ns", "waiters", "role_type", "agent_state", "rig",
	"event_kind", "actor", "target", "payload",
}

// issueColumns is the unqualified select list for the issues table.
var issueColumns = strings.Join(issueColumnNames, ", ")

// issueColumnsAs qualifies every issue column with a table alias.
func issueColumnsAs(alias string) string {
	cols := make([]string, len(issueColumnNames))
	for i, c := range issueColumnNames {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func dbTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func dbTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return dbTime(*t)
}

// sqlTime scans DATETIME columns. The driver hands back time.Time for values it
// recognises and the raw text otherwise.
type sqlTime struct {
	Time  time.Time
	Valid bool
}

func (t *sqlTime) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
	case time.Time:
		t.Time, t.Valid = v, true
	case string:
		t.Time = parseTimeString(v)
		t.Valid = !t.Time.IsZero()
	case []byte:
		t.Time = parseTimeString(string(v))
		t.Valid = !t.Time.IsZero()
	case int64:
		t.Time, t.Valid = time.Unix(v, 0).UTC(), true
	default:
		return fmt.Errorf("cannot scan %T into timestamp", value)
	}
	return nil
}

func (t sqlTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// parseTimeString parses a stored timestamp. Unparseable input yields the zero time.
func parseTimeString(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{dbTimeLayout, time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// parseJSONStringArray parses a JSON string array from a TEXT column.
func parseJSONStringArray(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	if err := json.Unmarshal([]byte(s), &result); err != nil {
		return nil
	}
	return result
}

// formatJSONStringArray formats a string slice as JSON for storage.
// Empty slices are stored as the empty string.
func formatJSONStringArray(arr []string) string {
	if len(arr) == 0 {
		return ""
	}
	data, err := json.Marshal(arr)
	if err != nil {
		return ""
	}
	return string(data)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanIssue reads one row laid out as issueColumns followed by extra.
func scanIssue(row scanner, extra ...interface{}) (*types.Issue, error) {
	var (
		issue                          types.Issue
		estimated                      sql.NullInt64
		createdAt, updatedAt, closedAt sqlTime
		dueAt, deferUntil, compactedAt sqlTime
		externalRef, metadata          sql.NullString
		timeoutNS                      int64
		waiters                        string
		status, issueType, agentState  string
	)

	dest := []interface{}{
		&issue.ID, &issue.ContentHash, &issue.Title, &issue.Description, &issue.Design,
		&issue.AcceptanceCriteria, &issue.Notes, &issue.SpecID,
		&status, &issue.Priority, &issueType, &issue.Assignee, &issue.Owner, &estimated,
		&createdAt, &issue.CreatedBy, &updatedAt, &closedAt, &issue.CloseReason, &issue.ClosedBySession,
		&dueAt, &deferUntil, &externalRef, &issue.SourceSystem, &metadata,
		&issue.CompactionLevel, &compactedAt, &issue.OriginalSize, &issue.Ephemeral, &issue.Pinned, &issue.IsTemplate,
		&issue.AwaitType, &issue.AwaitID, &timeoutNS, &waiters, &issue.RoleType, &agentState, &issue.Rig,
		&issue.EventKind, &issue.Actor, &issue.Target, &issue.Payload,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	issue.Status = types.Status(status)
	issue.IssueType = types.IssueType(issueType)
	issue.AgentState = types.AgentState(agentState)
	if estimated.Valid {
		mins := int(estimated.Int64)
		issue.EstimatedMinutes = &mins
	}
	issue.CreatedAt = createdAt.Time
	issue.UpdatedAt = updatedAt.Time
	issue.ClosedAt = closedAt.ptr()
	issue.DueAt = dueAt.ptr()
	issue.DeferUntil = deferUntil.ptr()
	issue.CompactedAt = compactedAt.ptr()
	if externalRef.Valid {
		ref := externalRef.String
		issue.ExternalRef = &ref
	}
	if metadata.Valid && metadata.String != "" {
		issue.Metadata = json.RawMessage(metadata.String)
	}
	issue.Timeout = time.Duration(timeoutNS)
	issue.Waiters = parseJSONStringArray(waiters)

	return &issue, nil
}

// scanIssues drains rows. The caller still closes rows.
func scanIssues(rows *sql.Rows) ([]*types.Issue, error) {
	var issues []*types.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, wrapDBError("scan issue", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate issues", err)
	}
	return issues, nil
}

// issueRowValues returns the bind values for an insert in issueColumnNames order.
func issueRowValues(issue *types.Issue) []interface{} {
	var estimated interface{}
	if issue.EstimatedMinutes != nil {
		estimated = *issue.EstimatedMinutes
	}
	var externalRef interface{}
	if issue.ExternalRef != nil {
		externalRef = *issue.ExternalRef
	}
	var metadata interface{}
	if len(issue.Metadata) > 0 {
		metadata = string(issue.Metadata)
	}
	return []interface{}{
		issue.ID, issue.ContentHash, issue.Title, issue.Description, issue.Design,
		issue.AcceptanceCriteria, issue.Notes, issue.SpecID,
		string(issue.Status), issue.Priority, string(issue.IssueType), issue.Assignee, issue.Owner, estimated,
		dbTime(issue.CreatedAt), issue.CreatedBy, dbTime(issue.UpdatedAt), dbTimePtr(issue.ClosedAt),
		issue.CloseReason, issue.ClosedBySession,
		dbTimePtr(issue.DueAt), dbTimePtr(issue.DeferUntil), externalRef, issue.SourceSystem, metadata,
		issue.CompactionLevel, dbTimePtr(issue.CompactedAt), issue.OriginalSize, issue.Ephemeral, issue.Pinned, issue.IsTemplate,
		issue.AwaitType, issue.AwaitID, int64(issue.Timeout), formatJSONStringArray(issue.Waiters),
		issue.RoleType, string(issue.AgentState), issue.Rig,
		issue.EventKind, issue.Actor, issue.Target, issue.Payload,
	}
}

// buildPlaceholders returns "?, ?, ..." with count entries.
func buildPlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", count), ", ")
}

// buildSQLInClause returns a placeholder list and its args for an IN clause.
func buildSQLInClause(ids []string) (string, []interface{}) {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return buildPlaceholders(len(ids)), args
}
