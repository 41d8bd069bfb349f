package sqlite

import (
	"context"
	"database/sql"

	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// GetStatistics returns aggregate counts over the whole database.
func (s *SQLiteStorage) GetStatistics(ctx context.Context) (*types.Statistics, error) {
	var stats types.Statistics
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'open' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'in_progress' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'closed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'deferred' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN pinned = 1 THEN 1 ELSE 0 END), 0)
		FROM issues
	`).Scan(&stats.TotalIssues, &stats.OpenIssues, &stats.InProgressIssues,
		&stats.ClosedIssues, &stats.DeferredIssues, &stats.PinnedIssues)
	if err != nil {
		return nil, wrapDBError("count issues", err)
	}

	blocked, err := getBlockedIssues(ctx, s.db, types.WorkFilter{})
	if err != nil {
		return nil, err
	}
	stats.BlockedIssues = len(blocked)

	ready, err := getReadyWork(ctx, s.db, types.WorkFilter{})
	if err != nil {
		return nil, err
	}
	stats.ReadyIssues = len(ready)

	epics, err := s.GetEpicsEligibleForClosure(ctx)
	if err != nil {
		return nil, err
	}
	stats.EpicsEligibleForClosure = len(epics)

	// julianday parses the stored ISO timestamps directly.
	var avgHours sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `
		SELECT AVG((julianday(closed_at) - julianday(created_at)) * 24)
		FROM issues
		WHERE status = 'closed' AND closed_at IS NOT NULL
	`).Scan(&avgHours)
	if err != nil {
		return nil, wrapDBError("average lead time", err)
	}
	if avgHours.Valid {
		stats.AverageLeadTime = avgHours.Float64
	}

	return &stats, nil
}
