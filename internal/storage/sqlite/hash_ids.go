package sqlite

import (
	"context"
	"fmt"

	"github.com/fwindolf/beads-rs-sub001/internal/debug"
	"github.com/fwindolf/beads-rs-sub001/internal/storage"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// noncesPerLength bounds collision retries before moving to a longer ID.
const noncesPerLength = 10

// countIssuesWithPrefix returns the population used for adaptive ID length.
func countIssuesWithPrefix(ctx context.Context, exec dbExecutor, prefix string) (int, error) {
	var n int
	err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM issues WHERE substr(id, 1, ?) = ?`,
		len(prefix)+1, prefix+"-").Scan(&n)
	if err != nil {
		return 0, wrapDBError("count issues for prefix", err)
	}
	return n, nil
}

func idExists(ctx context.Context, exec dbExecutor, id string) (bool, error) {
	var exists bool
	err := exec.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM issues WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, wrapDBError("check id collision", err)
	}
	return exists, nil
}

// generateIssueID picks a fresh hash ID for issue. Lengths from the adaptive
// base up to the configured maximum are tried, each with noncesPerLength
// nonces. Rows inserted earlier in the same transaction count as taken.
func generateIssueID(ctx context.Context, exec dbExecutor, gen hashIDFunc, prefix string, issue *types.Issue, actor string) (string, error) {
	cfg, err := adaptiveConfig(ctx, exec)
	if err != nil {
		return "", err
	}
	population, err := countIssuesWithPrefix(ctx, exec, prefix)
	if err != nil {
		return "", err
	}
	baseLength := cfg.Length(population)

	for length := baseLength; length <= cfg.MaxLength; length++ {
		for nonce := 0; nonce < noncesPerLength; nonce++ {
			candidate := gen(prefix, issue.Title, issue.Description, actor, issue.CreatedAt, length, nonce)
			exists, err := idExists(ctx, exec, candidate)
			if err != nil {
				return "", err
			}
			if !exists {
				return candidate, nil
			}
			debug.Logf("sqlite: id collision on %s (length %d, nonce %d)", candidate, length, nonce)
		}
	}

	err = fmt.Errorf("%w: tried lengths %d-%d with %d nonces each",
		storage.ErrIDExhausted, baseLength, cfg.MaxLength, noncesPerLength)
	return "", &storage.DBError{Kind: storage.KindInternal, Op: "generate issue id", Err: err}
}
