package sqlite

import (
	"context"
	"sort"
	"strings"

	"github.com/fwindolf/beads-rs-sub001/internal/storage"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// loadDependencyGraph loads the cycle-checked edges as an adjacency list.
func loadDependencyGraph(ctx context.Context, exec dbExecutor) (map[string][]string, error) {
	// #nosec G201 - type list is built from constants
	rows, err := exec.QueryContext(ctx, `
		SELECT issue_id, depends_on_id
		FROM dependencies
		WHERE type IN (`+cycleCheckedTypesSQL+`)
		ORDER BY issue_id, depends_on_id
	`)
	if err != nil {
		return nil, wrapDBError("load dependency graph", err)
	}
	defer func() { _ = rows.Close() }()

	deps := make(map[string][]string)
	for rows.Next() {
		var from, to string
		if err := rows.Scan(&from, &to); err != nil {
			return nil, wrapDBError("scan dependency edge", err)
		}
		deps[from] = append(deps[from], to)
	}
	return deps, wrapDBError("iterate dependency graph", rows.Err())
}

// findCycles runs a DFS over graph and returns each distinct cycle once,
// rotated to start at its smallest ID.
func findCycles(graph map[string][]string) [][]string {
	nodes := make([]string, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var found [][]string

	var dfs func(node string, path []string)
	dfs = func(node string, path []string) {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, next := range graph[node] {
			if !visited[next] {
				dfs(next, path)
				continue
			}
			if !onStack[next] {
				continue
			}
			for i, n := range path {
				if n == next {
					cycle := make([]string, len(path)-i)
					copy(cycle, path[i:])
					found = append(found, cycle)
					break
				}
			}
		}
		onStack[node] = false
	}

	for _, n := range nodes {
		if !visited[n] {
			dfs(n, nil)
		}
	}

	seen := make(map[string]bool)
	var unique [][]string
	for _, cycle := range found {
		normalized := normalizeCycle(cycle)
		key := strings.Join(normalized, "→")
		if !seen[key] {
			seen[key] = true
			unique = append(unique, normalized)
		}
	}
	return unique
}

// normalizeCycle rotates a cycle to start with the lexicographically smallest ID.
func normalizeCycle(cycle []string) []string {
	if len(cycle) == 0 {
		return cycle
	}
	minIdx := 0
	for i, id := range cycle {
		if id < cycle[minIdx] {
			minIdx = i
		}
	}
	result := make([]string, len(cycle))
	for i := range cycle {
		result[i] = cycle[(minIdx+i)%len(cycle)]
	}
	return result
}

// DetectCycles finds cycles among cycle-checked edges. AddDependency keeps the
// graph acyclic, so a non-empty result means rows were written around it
// (for example by an older import).
func (s *SQLiteStorage) DetectCycles(ctx context.Context) ([][]*types.Issue, error) {
	graph, err := loadDependencyGraph(ctx, s.db)
	if err != nil {
		return nil, err
	}

	var cycles [][]*types.Issue
	for _, path := range findCycles(graph) {
		var issues []*types.Issue
		for _, id := range path {
			issue, err := getIssue(ctx, s.db, id)
			if storage.IsNotFound(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			issues = append(issues, issue)
		}
		if len(issues) > 0 {
			cycles = append(cycles, issues)
		}
	}
	return cycles, nil
}
