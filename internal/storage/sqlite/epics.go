package sqlite

import (
	"context"

	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// GetEpicsEligibleForClosure returns every open epic with at least one
// parent-child child, flagging those whose children are all closed. Only
// eligible epics are returned.
func (s *SQLiteStorage) GetEpicsEligibleForClosure(ctx context.Context) ([]*types.EpicStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+issueColumnsAs("e")+`,
		       COUNT(c.id) AS total_children,
		       SUM(CASE WHEN c.status = 'closed' THEN 1 ELSE 0 END) AS closed_children
		FROM issues e
		JOIN dependencies d ON d.depends_on_id = e.id AND d.type = 'parent-child'
		JOIN issues c ON c.id = d.issue_id
		WHERE e.issue_type = 'epic' AND e.status != 'closed'
		GROUP BY e.id
		HAVING COUNT(c.id) > 0 AND COUNT(c.id) = SUM(CASE WHEN c.status = 'closed' THEN 1 ELSE 0 END)
		ORDER BY e.priority ASC, e.id ASC
	`)
	if err != nil {
		return nil, wrapDBError("get epics eligible for closure", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*types.EpicStatus
	for rows.Next() {
		var total, closed int
		epic, err := scanIssue(rows, &total, &closed)
		if err != nil {
			return nil, wrapDBError("scan epic", err)
		}
		result = append(result, &types.EpicStatus{
			Epic:             epic,
			TotalChildren:    total,
			ClosedChildren:   closed,
			EligibleForClose: true,
		})
	}
	return result, wrapDBError("iterate epics", rows.Err())
}
