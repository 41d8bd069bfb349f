package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// hybridWindow is how recent an issue must be for hybrid sort to rank it by priority.
const hybridWindow = 48 * time.Hour

// unresolvedBlockerCondition matches blocking edges (aliased d, target
// aliased b) that still hold. A target that does not exist never matches, so
// dangling edges count as resolved. conditional-blocks resolves only when its
// target closed with a failure reason.
func unresolvedBlockerCondition() (string, []interface{}) {
	likes := make([]string, len(types.FailureCloseKeywords))
	args := make([]interface{}, len(types.FailureCloseKeywords))
	for i, kw := range types.FailureCloseKeywords {
		likes[i] = "LOWER(b.close_reason) LIKE ?"
		args[i] = "%" + kw + "%"
	}
	failed := "(" + strings.Join(likes, " OR ") + ")"
	cond := `d.type IN (` + blockingTypesSQL + `) AND NOT (
		b.status = 'closed' AND (d.type != 'conditional-blocks' OR ` + failed + `)
	)`
	return cond, args
}

// hasUnresolvedBlockers is an EXISTS predicate over issues aliased i.
func hasUnresolvedBlockers() (string, []interface{}) {
	cond, args := unresolvedBlockerCondition()
	return `EXISTS (
		SELECT 1 FROM dependencies d
		JOIN issues b ON b.id = d.depends_on_id
		WHERE d.issue_id = i.id AND ` + cond + `
	)`, args
}

const descendantsClause = `i.id IN (
	WITH RECURSIVE descendants(id) AS (
		SELECT issue_id FROM dependencies
		WHERE type = 'parent-child' AND depends_on_id = ?
		UNION
		SELECT d.issue_id FROM dependencies d
		JOIN descendants x ON d.depends_on_id = x.id
		WHERE d.type = 'parent-child'
	)
	SELECT id FROM descendants
)`

// addWorkFilter appends the caller-selectable predicates shared by ready and
// blocked queries.
func addWorkFilter(ctx context.Context, exec dbExecutor, w *whereBuilder, filter types.WorkFilter) error {
	if filter.Type != "" {
		w.add("i.issue_type = ?", string(filter.Type))
	}
	if filter.Priority != nil {
		w.add("i.priority = ?", *filter.Priority)
	}
	if filter.Unassigned {
		w.add("i.assignee = ''")
	} else if filter.Assignee != nil {
		w.add("i.assignee = ?", *filter.Assignee)
	}
	if filter.ParentID != nil {
		w.add(descendantsClause, *filter.ParentID)
	}
	return addLabelFilter(ctx, exec, w, "i", filter.LabelFilter)
}

// buildOrderByClause generates the ORDER BY clause based on sort policy.
// Hybrid needs the cutoff bound twice.
func buildOrderByClause(policy types.SortPolicy, now time.Time) (string, []interface{}) {
	switch policy {
	case types.SortPolicyPriority:
		return `ORDER BY i.priority ASC, i.created_at ASC, i.id ASC`, nil
	case types.SortPolicyOldest:
		return `ORDER BY i.created_at ASC, i.id ASC`, nil
	default:
		cutoff := dbTime(now.Add(-hybridWindow))
		return `ORDER BY
			CASE WHEN i.created_at >= ? THEN 0 ELSE 1 END ASC,
			CASE WHEN i.created_at >= ? THEN i.priority ELSE NULL END ASC,
			i.created_at ASC,
			i.id ASC`, []interface{}{cutoff, cutoff}
	}
}

func getReadyWork(ctx context.Context, exec dbExecutor, filter types.WorkFilter) ([]*types.Issue, error) {
	now := time.Now()
	w := &whereBuilder{}
	w.add("i.status = 'open'")
	w.add("i.is_template = 0")
	w.add("i.issue_type != 'gate'")
	blocked, blockedArgs := hasUnresolvedBlockers()
	w.add("NOT "+blocked, blockedArgs...)

	if !filter.IncludeDeferred {
		w.add("(i.defer_until IS NULL OR i.defer_until <= ?)", dbTime(now))
	}
	if !filter.IncludeEphemeral {
		w.add("i.ephemeral = 0")
	}
	if !filter.IncludeSubSteps {
		w.add(`NOT EXISTS (
			SELECT 1 FROM dependencies pc
			JOIN issues m ON m.id = pc.depends_on_id
			WHERE pc.issue_id = i.id AND pc.type = 'parent-child' AND m.issue_type = 'molecule'
		)`)
	}
	if err := addWorkFilter(ctx, exec, w, filter); err != nil {
		return nil, err
	}

	orderBy, orderArgs := buildOrderByClause(filter.SortPolicy, now)
	args := append(w.args, orderArgs...)
	// #nosec G201 - clauses are built from constants with ? placeholders
	query := `SELECT ` + issueColumnsAs("i") + ` FROM issues i WHERE ` + w.sql() + ` ` + orderBy
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("get ready work", err)
	}
	issues, err := scanIssues(rows)
	_ = rows.Close()
	if err != nil {
		return nil, err
	}
	return attachLabels(ctx, exec, issues)
}

// blockersOf returns the unresolved blockers of each issue in ids.
func blockersOf(ctx context.Context, exec dbExecutor, ids []string) (map[string][]string, error) {
	result := make(map[string][]string)
	if len(ids) == 0 {
		return result, nil
	}
	cond, condArgs := unresolvedBlockerCondition()
	placeholders, idArgs := buildSQLInClause(ids)
	// #nosec G201 - clauses are built from constants with ? placeholders
	rows, err := exec.QueryContext(ctx, `
		SELECT d.issue_id, d.depends_on_id
		FROM dependencies d
		JOIN issues b ON b.id = d.depends_on_id
		WHERE d.issue_id IN (`+placeholders+`) AND `+cond+`
		ORDER BY d.issue_id, b.priority ASC, d.depends_on_id
	`, append(idArgs, condArgs...)...)
	if err != nil {
		return nil, wrapDBError("get blockers", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var issueID, blockerID string
		if err := rows.Scan(&issueID, &blockerID); err != nil {
			return nil, wrapDBError("scan blocker", err)
		}
		if list := result[issueID]; len(list) == 0 || list[len(list)-1] != blockerID {
			result[issueID] = append(list, blockerID)
		}
	}
	return result, wrapDBError("iterate blockers", rows.Err())
}

func getBlockedIssues(ctx context.Context, exec dbExecutor, filter types.WorkFilter) ([]*types.BlockedIssue, error) {
	w := &whereBuilder{}
	w.add("i.status IN ('open', 'in_progress', 'blocked')")
	blocked, blockedArgs := hasUnresolvedBlockers()
	w.add(blocked, blockedArgs...)
	if err := addWorkFilter(ctx, exec, w, filter); err != nil {
		return nil, err
	}

	args := w.args
	// #nosec G201 - clauses are built from constants with ? placeholders
	query := `SELECT ` + issueColumnsAs("i") + ` FROM issues i WHERE ` + w.sql() + ` ORDER BY i.priority ASC, i.created_at ASC, i.id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("get blocked issues", err)
	}
	issues, err := scanIssues(rows)
	_ = rows.Close()
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(issues))
	for i, issue := range issues {
		ids[i] = issue.ID
	}
	blockers, err := blockersOf(ctx, exec, ids)
	if err != nil {
		return nil, err
	}

	result := make([]*types.BlockedIssue, 0, len(issues))
	for _, issue := range issues {
		by := blockers[issue.ID]
		result = append(result, &types.BlockedIssue{Issue: *issue, BlockedBy: by, BlockedByCount: len(by)})
	}
	return result, nil
}

// GetReadyWork returns open, non-template, non-gate issues with no unresolved
// blocking dependency.
func (s *SQLiteStorage) GetReadyWork(ctx context.Context, filter types.WorkFilter) ([]*types.Issue, error) {
	return getReadyWork(ctx, s.db, filter)
}

// GetBlockedIssues returns active issues with at least one unresolved blocker,
// each paired with its blocker IDs.
func (s *SQLiteStorage) GetBlockedIssues(ctx context.Context, filter types.WorkFilter) ([]*types.BlockedIssue, error) {
	return getBlockedIssues(ctx, s.db, filter)
}

// IsBlocked reports whether issueID has unresolved blockers and lists them.
func (s *SQLiteStorage) IsBlocked(ctx context.Context, issueID string) (bool, []string, error) {
	if err := requireIssue(ctx, s.db, issueID); err != nil {
		return false, nil, err
	}
	blockers, err := blockersOf(ctx, s.db, []string{issueID})
	if err != nil {
		return false, nil, err
	}
	by := blockers[issueID]
	return len(by) > 0, by, nil
}

// GetNewlyUnblockedByClose returns dependents of closedIssueID that are now
// ready work. Call it after the close commits.
func (s *SQLiteStorage) GetNewlyUnblockedByClose(ctx context.Context, closedIssueID string) ([]*types.Issue, error) {
	// #nosec G201 - type list is built from constants
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT issue_id FROM dependencies
		WHERE depends_on_id = ? AND type IN (`+blockingTypesSQL+`)
		ORDER BY issue_id
	`, closedIssueID)
	if err != nil {
		return nil, wrapDBError("get dependents of closed issue", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, wrapDBError("scan dependent", err)
		}
		ids = append(ids, id)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, wrapDBError("iterate dependents", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	ready, err := getReadyWork(ctx, s.db, types.WorkFilter{
		SortPolicy:       types.SortPolicyPriority,
		IncludeEphemeral: true,
		IncludeSubSteps:  true,
	})
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []*types.Issue
	for _, issue := range ready {
		if wanted[issue.ID] {
			out = append(out, issue)
		}
	}
	return out, nil
}
