package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/fwindolf/beads-rs-sub001/internal/debug"
	"github.com/fwindolf/beads-rs-sub001/internal/storage"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// defaultTreeDepth is used when GetDependencyTree gets a negative depth.
const defaultTreeDepth = 50

// typeList renders dependency types as a quoted SQL list. Values are package
// constants, never caller input.
func typeList(deps []types.DependencyType) string {
	quoted := make([]string, len(deps))
	for i, d := range deps {
		quoted[i] = "'" + string(d) + "'"
	}
	return strings.Join(quoted, ", ")
}

var (
	blockingTypesSQL     = typeList(types.BlockingTypes)
	cycleCheckedTypesSQL = typeList(types.CycleCheckedTypes)
)

// wouldCreateCycle reports whether dependsOnID already reaches issueID along
// cycle-checked edges. UNION deduplicates visited nodes, so the walk ends on
// its own however long the chain is.
func wouldCreateCycle(ctx context.Context, exec dbExecutor, issueID, dependsOnID string) (bool, error) {
	var exists bool
	// #nosec G201 - type list is built from constants
	err := exec.QueryRowContext(ctx, `
		WITH RECURSIVE paths(node) AS (
			SELECT ?
			UNION
			SELECT d.depends_on_id
			FROM dependencies d
			JOIN paths p ON d.issue_id = p.node
			WHERE d.type IN (`+cycleCheckedTypesSQL+`)
		)
		SELECT EXISTS(SELECT 1 FROM paths WHERE node = ?)
	`, dependsOnID, issueID).Scan(&exists)
	if err != nil {
		return false, wrapDBError("check for cycles", err)
	}
	return exists, nil
}

func edgeExists(ctx context.Context, exec dbExecutor, issueID, dependsOnID string, depType types.DependencyType) (bool, error) {
	var exists bool
	err := exec.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM dependencies WHERE issue_id = ? AND depends_on_id = ? AND type = ?)
	`, issueID, dependsOnID, string(depType)).Scan(&exists)
	if err != nil {
		return false, wrapDBError("check dependency", err)
	}
	return exists, nil
}

func insertEdge(ctx context.Context, exec dbExecutor, dep *types.Dependency) error {
	_, err := exec.ExecContext(ctx, `
		INSERT OR IGNORE INTO dependencies (issue_id, depends_on_id, type, created_at, created_by, metadata, thread_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, dep.IssueID, dep.DependsOnID, string(dep.Type), dbTime(dep.CreatedAt), dep.CreatedBy, dep.Metadata, dep.ThreadID)
	return wrapDBError("add dependency", err)
}

// addDependency validates both endpoints, rejects cycles and inserts the edge
// with its audit event. An identical existing edge is a silent no-op.
func addDependency(ctx context.Context, exec dbExecutor, dep *types.Dependency, actor string) error {
	if dep == nil {
		return storage.NewValidation("dependency", "nil dependency")
	}
	if !dep.Type.IsValid() {
		return storage.NewValidation("type", fmt.Sprintf("invalid dependency type %q (must be non-empty, max 50 chars)", dep.Type))
	}
	if dep.IssueID == dep.DependsOnID {
		return storage.NewValidation("depends_on_id", "issue cannot depend on itself")
	}

	source, err := getIssue(ctx, exec, dep.IssueID)
	if err != nil {
		return err
	}
	target, err := getIssue(ctx, exec, dep.DependsOnID)
	if err != nil {
		return err
	}

	// Child depends on parent; an epic depending on a plain child is backwards.
	if dep.Type == types.DepParentChild && source.IssueType == types.TypeEpic && target.IssueType != types.TypeEpic {
		return storage.NewValidation("type", fmt.Sprintf(
			"parent (%s) cannot depend on child (%s); use: bd dep add %s %s --type parent-child",
			dep.IssueID, dep.DependsOnID, dep.DependsOnID, dep.IssueID))
	}

	exists, err := edgeExists(ctx, exec, dep.IssueID, dep.DependsOnID, dep.Type)
	if err != nil || exists {
		return err
	}

	if dep.Type.IsCycleChecked() {
		cycle, err := wouldCreateCycle(ctx, exec, dep.IssueID, dep.DependsOnID)
		if err != nil {
			return err
		}
		if cycle {
			return &storage.CycleError{IssueID: dep.IssueID, DependsOnID: dep.DependsOnID, Type: string(dep.Type)}
		}
	}

	if dep.CreatedAt.IsZero() {
		dep.CreatedAt = time.Now().UTC()
	}
	if dep.CreatedBy == "" {
		dep.CreatedBy = actor
	}
	if err := insertEdge(ctx, exec, dep); err != nil {
		return err
	}
	if dep.Type.IsSymmetric() {
		reverse := *dep
		reverse.IssueID, reverse.DependsOnID = dep.DependsOnID, dep.IssueID
		if err := insertEdge(ctx, exec, &reverse); err != nil {
			return err
		}
	}

	comment := fmt.Sprintf("Added dependency: %s %s %s", dep.IssueID, dep.Type, dep.DependsOnID)
	return recordEvent(ctx, exec, dep.IssueID, types.EventDependencyAdded, actor, nil, jsonValue(dep, `{}`), &comment)
}

// removeDependency deletes every edge from issueID to dependsOnID, plus the
// mirrored row of a symmetric edge. Removing nothing is not an error.
func removeDependency(ctx context.Context, exec dbExecutor, issueID, dependsOnID, actor string) error {
	res, err := exec.ExecContext(ctx, `
		DELETE FROM dependencies
		WHERE (issue_id = ? AND depends_on_id = ?)
		   OR (issue_id = ? AND depends_on_id = ? AND type = ?)
	`, issueID, dependsOnID, dependsOnID, issueID, string(types.DepRelated))
	if err != nil {
		return wrapDBError("remove dependency", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBError("remove dependency", err)
	}
	if n == 0 {
		debug.Logf("sqlite: no dependency from %s to %s to remove", issueID, dependsOnID)
		return nil
	}

	if err := requireIssue(ctx, exec, issueID); err != nil {
		// Only the mirrored related row existed; attribute the event to the other side.
		if !storage.IsNotFound(err) {
			return err
		}
		issueID = dependsOnID
	}
	comment := fmt.Sprintf("Removed dependency on %s", dependsOnID)
	return recordEvent(ctx, exec, issueID, types.EventDependencyRemoved, actor, nil, nil, &comment)
}

const dependencyColumns = `issue_id, depends_on_id, type, created_at, created_by, metadata, thread_id`

func scanDependencies(rows *sql.Rows) ([]*types.Dependency, error) {
	var deps []*types.Dependency
	for rows.Next() {
		var dep types.Dependency
		var depType string
		var createdAt sqlTime
		if err := rows.Scan(&dep.IssueID, &dep.DependsOnID, &depType, &createdAt, &dep.CreatedBy, &dep.Metadata, &dep.ThreadID); err != nil {
			return nil, wrapDBError("scan dependency", err)
		}
		dep.Type = types.DependencyType(depType)
		dep.CreatedAt = createdAt.Time
		deps = append(deps, &dep)
	}
	return deps, wrapDBError("iterate dependencies", rows.Err())
}

func getDependencyRecords(ctx context.Context, exec dbExecutor, issueID string) ([]*types.Dependency, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT `+dependencyColumns+`
		FROM dependencies
		WHERE issue_id = ?
		ORDER BY created_at ASC, depends_on_id ASC, type ASC
	`, issueID)
	if err != nil {
		return nil, wrapDBError("get dependency records", err)
	}
	defer func() { _ = rows.Close() }()
	return scanDependencies(rows)
}

// getLinkedIssues returns the one-hop neighbours of issueID together with the
// edge type. reverse selects dependents instead of dependencies.
func getLinkedIssues(ctx context.Context, exec dbExecutor, issueID string, reverse bool) ([]*types.IssueWithDependencyMetadata, error) {
	join, where := "i.id = d.depends_on_id", "d.issue_id = ?"
	if reverse {
		join, where = "i.id = d.issue_id", "d.depends_on_id = ?"
	}
	// #nosec G201 - join and where are constants
	rows, err := exec.QueryContext(ctx, `
		SELECT `+issueColumnsAs("i")+`, d.type
		FROM issues i
		JOIN dependencies d ON `+join+`
		WHERE `+where+`
		ORDER BY i.priority ASC, i.id ASC, d.type ASC
	`, issueID)
	if err != nil {
		return nil, wrapDBError("get linked issues", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*types.IssueWithDependencyMetadata
	for rows.Next() {
		var depType string
		issue, err := scanIssue(rows, &depType)
		if err != nil {
			return nil, wrapDBError("scan linked issue", err)
		}
		result = append(result, &types.IssueWithDependencyMetadata{Issue: *issue, DependencyType: types.DependencyType(depType)})
	}
	return result, wrapDBError("iterate linked issues", rows.Err())
}

// uniqueIssues flattens linked issues, keeping the first occurrence of each ID.
func uniqueIssues(linked []*types.IssueWithDependencyMetadata) []*types.Issue {
	seen := make(map[string]bool, len(linked))
	var out []*types.Issue
	for _, l := range linked {
		if seen[l.ID] {
			continue
		}
		seen[l.ID] = true
		issue := l.Issue
		out = append(out, &issue)
	}
	return out
}

// AddDependency adds a dependency between issues with cycle prevention
func (s *SQLiteStorage) AddDependency(ctx context.Context, dep *types.Dependency, actor string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return addDependency(ctx, tx, dep, actor)
	})
}

// RemoveDependency removes the edges from issueID to dependsOnID.
func (s *SQLiteStorage) RemoveDependency(ctx context.Context, issueID, dependsOnID string, actor string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return removeDependency(ctx, tx, issueID, dependsOnID, actor)
	})
}

// GetDependenciesWithMetadata returns issues that this issue depends on, with the edge type.
func (s *SQLiteStorage) GetDependenciesWithMetadata(ctx context.Context, issueID string) ([]*types.IssueWithDependencyMetadata, error) {
	return getLinkedIssues(ctx, s.db, issueID, false)
}

// GetDependentsWithMetadata returns issues that depend on this issue, with the edge type.
func (s *SQLiteStorage) GetDependentsWithMetadata(ctx context.Context, issueID string) ([]*types.IssueWithDependencyMetadata, error) {
	return getLinkedIssues(ctx, s.db, issueID, true)
}

// GetDependencies returns issues that this issue depends on
func (s *SQLiteStorage) GetDependencies(ctx context.Context, issueID string) ([]*types.Issue, error) {
	linked, err := getLinkedIssues(ctx, s.db, issueID, false)
	if err != nil {
		return nil, err
	}
	return uniqueIssues(linked), nil
}

// GetDependents returns issues that depend on this issue
func (s *SQLiteStorage) GetDependents(ctx context.Context, issueID string) ([]*types.Issue, error) {
	linked, err := getLinkedIssues(ctx, s.db, issueID, true)
	if err != nil {
		return nil, err
	}
	return uniqueIssues(linked), nil
}

// GetDependencyRecords returns raw dependency records for an issue
func (s *SQLiteStorage) GetDependencyRecords(ctx context.Context, issueID string) ([]*types.Dependency, error) {
	return getDependencyRecords(ctx, s.db, issueID)
}

// GetAllDependencyRecords returns all dependency records grouped by issue ID.
func (s *SQLiteStorage) GetAllDependencyRecords(ctx context.Context) (map[string][]*types.Dependency, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+dependencyColumns+`
		FROM dependencies
		ORDER BY issue_id, created_at ASC, depends_on_id ASC, type ASC
	`)
	if err != nil {
		return nil, wrapDBError("get all dependency records", err)
	}
	defer func() { _ = rows.Close() }()

	deps, err := scanDependencies(rows)
	if err != nil {
		return nil, err
	}
	depsMap := make(map[string][]*types.Dependency)
	for _, dep := range deps {
		depsMap[dep.IssueID] = append(depsMap[dep.IssueID], dep)
	}
	return depsMap, nil
}

// GetDependencyCounts returns dependency and dependent counts for each issue
// in one query. Issues without edges get zero counts.
func (s *SQLiteStorage) GetDependencyCounts(ctx context.Context, issueIDs []string) (map[string]*types.DependencyCounts, error) {
	result := make(map[string]*types.DependencyCounts, len(issueIDs))
	if len(issueIDs) == 0 {
		return result, nil
	}

	inClause, idArgs := buildSQLInClause(issueIDs)
	args := append(append([]interface{}{}, idArgs...), idArgs...)
	// #nosec G201 - placeholders only
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			issue_id,
			SUM(CASE WHEN kind = 'dependency' THEN n ELSE 0 END),
			SUM(CASE WHEN kind = 'dependent' THEN n ELSE 0 END)
		FROM (
			SELECT issue_id, 'dependency' AS kind, COUNT(*) AS n
			FROM dependencies WHERE issue_id IN (`+inClause+`)
			GROUP BY issue_id
			UNION ALL
			SELECT depends_on_id AS issue_id, 'dependent' AS kind, COUNT(*) AS n
			FROM dependencies WHERE depends_on_id IN (`+inClause+`)
			GROUP BY depends_on_id
		)
		GROUP BY issue_id
	`, args...)
	if err != nil {
		return nil, wrapDBError("get dependency counts", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var issueID string
		var counts types.DependencyCounts
		if err := rows.Scan(&issueID, &counts.DependencyCount, &counts.DependentCount); err != nil {
			return nil, wrapDBError("scan dependency counts", err)
		}
		result[issueID] = &counts
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate dependency counts", err)
	}

	for _, id := range issueIDs {
		if _, ok := result[id]; !ok {
			result[id] = &types.DependencyCounts{}
		}
	}
	return result, nil
}
