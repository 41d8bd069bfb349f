package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/fwindolf/beads-rs-sub001/internal/storage"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

func addComment(ctx context.Context, exec dbExecutor, issueID, author, text string) (*types.Comment, error) {
	now := time.Now().UTC()
	comment, err := insertComment(ctx, exec, issueID, author, text, now)
	if err != nil {
		return nil, err
	}
	if _, err := exec.ExecContext(ctx, `UPDATE issues SET updated_at = ? WHERE id = ?`, dbTime(now), issueID); err != nil {
		return nil, wrapDBError("touch issue", err)
	}
	return comment, nil
}

// insertComment stores a comment with the given timestamp and records a
// "commented" event. The issue's updated_at is left alone.
func insertComment(ctx context.Context, exec dbExecutor, issueID, author, text string, createdAt time.Time) (*types.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, storage.NewValidation("text", "comment text is required")
	}
	if err := requireIssue(ctx, exec, issueID); err != nil {
		return nil, err
	}

	createdAt = createdAt.UTC()
	res, err := exec.ExecContext(ctx, `
		INSERT INTO comments (issue_id, author, text, created_at)
		VALUES (?, ?, ?, ?)
	`, issueID, author, text, dbTime(createdAt))
	if err != nil {
		return nil, wrapDBError("add comment", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapDBError("comment id", err)
	}

	if err := recordEvent(ctx, exec, issueID, types.EventCommented, author, nil, nil, &text); err != nil {
		return nil, err
	}
	return &types.Comment{ID: id, IssueID: issueID, Author: author, Text: text, CreatedAt: createdAt}, nil
}

func getComments(ctx context.Context, exec dbExecutor, issueID string) ([]*types.Comment, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT id, issue_id, author, text, created_at
		FROM comments WHERE issue_id = ?
		ORDER BY id ASC
	`, issueID)
	if err != nil {
		return nil, wrapDBError("get comments", err)
	}
	defer func() { _ = rows.Close() }()

	var comments []*types.Comment
	for rows.Next() {
		var c types.Comment
		var createdAt sqlTime
		if err := rows.Scan(&c.ID, &c.IssueID, &c.Author, &c.Text, &createdAt); err != nil {
			return nil, wrapDBError("scan comment", err)
		}
		c.CreatedAt = createdAt.Time
		comments = append(comments, &c)
	}
	return comments, wrapDBError("iterate comments", rows.Err())
}

// AddComment attaches a comment to an issue and records a "commented" event.
func (s *SQLiteStorage) AddComment(ctx context.Context, issueID, author, text string) (*types.Comment, error) {
	var comment *types.Comment
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		comment, err = addComment(ctx, tx, issueID, author, text)
		return err
	})
	return comment, err
}

// ImportComment stores a comment with its original timestamp, as read from a
// JSONL export. A zero createdAt means now.
func (s *SQLiteStorage) ImportComment(ctx context.Context, issueID, author, text string, createdAt time.Time) (*types.Comment, error) {
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var comment *types.Comment
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		comment, err = insertComment(ctx, tx, issueID, author, text, createdAt)
		return err
	})
	return comment, err
}

// GetComments returns an issue's comments oldest first.
func (s *SQLiteStorage) GetComments(ctx context.Context, issueID string) ([]*types.Comment, error) {
	return getComments(ctx, s.db, issueID)
}
