package sqlite

import (
	"context"

	"github.com/fwindolf/beads-rs-sub001/internal/storage"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// neighborIDs returns the distinct one-hop neighbours of id in traversal order.
func neighborIDs(ctx context.Context, exec dbExecutor, id string, reverse bool) ([]string, error) {
	query := `SELECT DISTINCT depends_on_id FROM dependencies WHERE issue_id = ? ORDER BY depends_on_id`
	if reverse {
		query = `SELECT DISTINCT issue_id FROM dependencies WHERE depends_on_id = ? ORDER BY issue_id`
	}
	rows, err := exec.QueryContext(ctx, query, id)
	if err != nil {
		return nil, wrapDBError("get neighbors", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, wrapDBError("scan neighbor", err)
		}
		ids = append(ids, n)
	}
	return ids, wrapDBError("iterate neighbors", rows.Err())
}

// treeWalker caches issue lookups for one traversal. Edges to issues that do
// not exist are skipped.
type treeWalker struct {
	ctx      context.Context
	exec     dbExecutor
	reverse  bool
	maxDepth int
	issues   map[string]*types.Issue
}

func (w *treeWalker) issue(id string) (*types.Issue, error) {
	if issue, ok := w.issues[id]; ok {
		return issue, nil
	}
	issue, err := getIssue(w.ctx, w.exec, id)
	if storage.IsNotFound(err) {
		issue, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	w.issues[id] = issue
	return issue, nil
}

func (w *treeWalker) node(issue *types.Issue, depth int, parentID string) *types.TreeNode {
	return &types.TreeNode{Issue: *issue, Depth: depth, ParentID: parentID}
}

// bfs visits each reachable issue once at its shallowest depth.
func (w *treeWalker) bfs(root *types.Issue) ([]*types.TreeNode, error) {
	rootNode := w.node(root, 0, "")
	nodes := []*types.TreeNode{rootNode}
	seen := map[string]bool{root.ID: true}
	queue := []*types.TreeNode{rootNode}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		neighbors, err := neighborIDs(w.ctx, w.exec, cur.ID, w.reverse)
		if err != nil {
			return nil, err
		}
		if cur.Depth >= w.maxDepth {
			cur.Truncated = len(neighbors) > 0
			continue
		}
		for _, id := range neighbors {
			if seen[id] {
				continue
			}
			seen[id] = true
			issue, err := w.issue(id)
			if err != nil {
				return nil, err
			}
			if issue == nil {
				continue
			}
			child := w.node(issue, cur.Depth+1, cur.ID)
			nodes = append(nodes, child)
			queue = append(queue, child)
		}
	}
	return nodes, nil
}

// dfs emits one node per distinct simple path from the root. onPath guards
// against looping on cyclic non-blocking edges.
func (w *treeWalker) dfs(cur *types.TreeNode, onPath map[string]bool, nodes *[]*types.TreeNode) error {
	neighbors, err := neighborIDs(w.ctx, w.exec, cur.ID, w.reverse)
	if err != nil {
		return err
	}
	if cur.Depth >= w.maxDepth {
		cur.Truncated = len(neighbors) > 0
		return nil
	}
	for _, id := range neighbors {
		if onPath[id] {
			continue
		}
		issue, err := w.issue(id)
		if err != nil {
			return err
		}
		if issue == nil {
			continue
		}
		child := w.node(issue, cur.Depth+1, cur.ID)
		*nodes = append(*nodes, child)
		onPath[id] = true
		if err := w.dfs(child, onPath, nodes); err != nil {
			return err
		}
		delete(onPath, id)
	}
	return nil
}

// GetDependencyTree walks dependency edges from issueID (or dependents when
// reverse is set) up to maxDepth hops. The root is returned at depth 0, so a
// maxDepth of 0 yields the root alone; a negative maxDepth means the default.
// Without showAllPaths every issue appears once at its shallowest depth;
// with it, every simple path is enumerated.
func (s *SQLiteStorage) GetDependencyTree(ctx context.Context, issueID string, maxDepth int, showAllPaths bool, reverse bool) ([]*types.TreeNode, error) {
	if maxDepth < 0 {
		maxDepth = defaultTreeDepth
	}
	root, err := getIssue(ctx, s.db, issueID)
	if err != nil {
		return nil, err
	}
	w := &treeWalker{
		ctx:      ctx,
		exec:     s.db,
		reverse:  reverse,
		maxDepth: maxDepth,
		issues:   map[string]*types.Issue{root.ID: root},
	}
	if !showAllPaths {
		return w.bfs(root)
	}

	rootNode := w.node(root, 0, "")
	nodes := []*types.TreeNode{rootNode}
	if err := w.dfs(rootNode, map[string]bool{root.ID: true}, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}
