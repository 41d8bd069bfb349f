package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/fwindolf/beads-rs-sub001/internal/storage"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// normalizeLabel trims and NFC-normalizes a label so that visually identical
// labels share one row.
func normalizeLabel(label string) (string, error) {
	label = norm.NFC.String(strings.TrimSpace(label))
	if label == "" {
		return "", storage.NewValidation("label", "label cannot be empty")
	}
	return label, nil
}

// insertLabel adds a label row and reports whether it was new.
func insertLabel(ctx context.Context, exec dbExecutor, issueID, label string) (bool, error) {
	label, err := normalizeLabel(label)
	if err != nil {
		return false, err
	}
	res, err := exec.ExecContext(ctx, `INSERT OR IGNORE INTO labels (issue_id, label) VALUES (?, ?)`, issueID, label)
	if err != nil {
		return false, wrapDBError("add label", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapDBError("add label", err)
	}
	return n > 0, nil
}

// executeLabelOperation runs a label mutation and records eventType only when
// a row actually changed.
func executeLabelOperation(ctx context.Context, exec dbExecutor, issueID, label, actor string, add bool) error {
	if err := requireIssue(ctx, exec, issueID); err != nil {
		return err
	}
	label, err := normalizeLabel(label)
	if err != nil {
		return err
	}

	var changed bool
	var eventType types.EventType
	var comment string
	if add {
		changed, err = insertLabel(ctx, exec, issueID, label)
		eventType, comment = types.EventLabelAdded, fmt.Sprintf("Added label: %s", label)
	} else {
		var res sql.Result
		res, err = exec.ExecContext(ctx, `DELETE FROM labels WHERE issue_id = ? AND label = ?`, issueID, label)
		if err == nil {
			var n int64
			n, err = res.RowsAffected()
			changed = n > 0
		}
		err = wrapDBError("remove label", err)
		eventType, comment = types.EventLabelRemoved, fmt.Sprintf("Removed label: %s", label)
	}
	if err != nil || !changed {
		return err
	}
	return recordEvent(ctx, exec, issueID, eventType, actor, nil, nil, &comment)
}

func getLabels(ctx context.Context, exec dbExecutor, issueID string) ([]string, error) {
	rows, err := exec.QueryContext(ctx, `SELECT label FROM labels WHERE issue_id = ? ORDER BY label`, issueID)
	if err != nil {
		return nil, wrapDBError("get labels", err)
	}
	defer func() { _ = rows.Close() }()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, wrapDBError("scan label", err)
		}
		labels = append(labels, label)
	}
	return labels, wrapDBError("iterate labels", rows.Err())
}

func getLabelsForIssues(ctx context.Context, exec dbExecutor, issueIDs []string) (map[string][]string, error) {
	result := make(map[string][]string)
	if len(issueIDs) == 0 {
		return result, nil
	}
	placeholders, args := buildSQLInClause(issueIDs)
	// #nosec G201 - placeholders only
	rows, err := exec.QueryContext(ctx, `
		SELECT issue_id, label FROM labels
		WHERE issue_id IN (`+placeholders+`)
		ORDER BY issue_id, label
	`, args...)
	if err != nil {
		return nil, wrapDBError("get labels for issues", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var issueID, label string
		if err := rows.Scan(&issueID, &label); err != nil {
			return nil, wrapDBError("scan label", err)
		}
		result[issueID] = append(result[issueID], label)
	}
	return result, wrapDBError("iterate labels", rows.Err())
}

// AddLabel adds a label to an issue. Adding a label the issue already has is a no-op.
func (s *SQLiteStorage) AddLabel(ctx context.Context, issueID, label, actor string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return executeLabelOperation(ctx, tx, issueID, label, actor, true)
	})
}

// RemoveLabel removes a label from an issue
func (s *SQLiteStorage) RemoveLabel(ctx context.Context, issueID, label, actor string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return executeLabelOperation(ctx, tx, issueID, label, actor, false)
	})
}

// GetLabels returns all labels for an issue
func (s *SQLiteStorage) GetLabels(ctx context.Context, issueID string) ([]string, error) {
	return getLabels(ctx, s.db, issueID)
}

// GetLabelsForIssues fetches labels for multiple issues in a single query.
func (s *SQLiteStorage) GetLabelsForIssues(ctx context.Context, issueIDs []string) (map[string][]string, error) {
	return getLabelsForIssues(ctx, s.db, issueIDs)
}

// GetIssuesByLabel returns issues carrying label, ordered like search results.
func (s *SQLiteStorage) GetIssuesByLabel(ctx context.Context, label string) ([]*types.Issue, error) {
	label, err := normalizeLabel(label)
	if err != nil {
		return nil, err
	}
	return searchIssues(ctx, s.db, "", types.IssueFilter{LabelFilter: types.LabelFilter{Labels: []string{label}}})
}
