package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// recordEvent appends one audit row. Events are never updated; they go away
// only with their issue.
func recordEvent(ctx context.Context, exec dbExecutor, issueID string, eventType types.EventType, actor string, oldValue, newValue, comment *string) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO events (issue_id, event_type, actor, old_value, new_value, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, issueID, string(eventType), actor, nullableString(oldValue), nullableString(newValue), nullableString(comment), dbTime(time.Now()))
	if err != nil {
		return wrapDBError(fmt.Sprintf("record %s event", eventType), err)
	}
	return nil
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func strPtr(s string) *string {
	return &s
}

// jsonValue marshals v for an event column, falling back to fallback on error.
func jsonValue(v interface{}, fallback string) *string {
	data, err := json.Marshal(v)
	if err != nil {
		return &fallback
	}
	s := string(data)
	return &s
}

const eventColumns = `id, issue_id, event_type, actor, old_value, new_value, comment, created_at`

func scanEvents(rows *sql.Rows) ([]*types.Event, error) {
	var events []*types.Event
	for rows.Next() {
		var (
			ev                          types.Event
			eventType                   string
			oldValue, newValue, comment sql.NullString
			createdAt                   sqlTime
		)
		if err := rows.Scan(&ev.ID, &ev.IssueID, &eventType, &ev.Actor, &oldValue, &newValue, &comment, &createdAt); err != nil {
			return nil, wrapDBError("scan event", err)
		}
		ev.EventType = types.EventType(eventType)
		if oldValue.Valid {
			ev.OldValue = strPtr(oldValue.String)
		}
		if newValue.Valid {
			ev.NewValue = strPtr(newValue.String)
		}
		if comment.Valid {
			ev.Comment = strPtr(comment.String)
		}
		ev.CreatedAt = createdAt.Time
		events = append(events, &ev)
	}
	return events, wrapDBError("iterate events", rows.Err())
}

// GetEvents returns an issue's audit trail in insertion order. A positive
// limit keeps only the most recent entries.
func (s *SQLiteStorage) GetEvents(ctx context.Context, issueID string, limit int) ([]*types.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE issue_id = ? ORDER BY id ASC`
	args := []interface{}{issueID}
	if limit > 0 {
		query = `SELECT * FROM (SELECT ` + eventColumns + ` FROM events WHERE issue_id = ? ORDER BY id DESC LIMIT ?) ORDER BY id ASC`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("get events", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

// GetEventsSince returns events across all issues with id greater than afterID,
// oldest first. It backs the activity follower.
func (s *SQLiteStorage) GetEventsSince(ctx context.Context, afterID int64, limit int) ([]*types.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id > ? ORDER BY id ASC`
	args := []interface{}{afterID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("get events since", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}
