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

var (
	insertIssueSQL = `INSERT INTO issues (` + issueColumns + `) VALUES (` + buildPlaceholders(len(issueColumnNames)) + `)`
	updateIssueSQL = `UPDATE issues SET ` + assignmentList(issueColumnNames[1:]) + ` WHERE id = ?`
)

func assignmentList(cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c + " = ?"
	}
	return strings.Join(parts, ", ")
}

// requireIssue fails with a not-found error unless id exists.
func requireIssue(ctx context.Context, exec dbExecutor, id string) error {
	exists, err := idExists(ctx, exec, id)
	if err != nil {
		return err
	}
	if !exists {
		return storage.NewNotFound("issue", id)
	}
	return nil
}

// issuePrefix returns the configured issue_prefix or ErrNotInitialized.
func issuePrefix(ctx context.Context, exec dbExecutor) (string, error) {
	prefix, err := getKeyValue(ctx, exec, "config", IssuePrefixConfigKey)
	if err != nil {
		return "", err
	}
	if prefix == "" {
		return "", fmt.Errorf("%w: issue_prefix config is missing (run 'bd init --prefix <prefix>')", storage.ErrNotInitialized)
	}
	return strings.TrimSuffix(prefix, "-"), nil
}

// validateIDPrefix checks an explicit ID against the configured prefix and
// any allowed_prefixes.
func validateIDPrefix(id, prefix string, allowed []string) error {
	if strings.HasPrefix(id, prefix+"-") {
		return nil
	}
	for _, p := range allowed {
		if strings.HasPrefix(id, strings.TrimSuffix(p, "-")+"-") {
			return nil
		}
	}
	return &storage.PrefixMismatchError{ID: id, Expected: prefix}
}

// warnUnknownValues logs status and type values outside the known and custom sets.
func warnUnknownValues(ctx context.Context, exec dbExecutor, issue *types.Issue) error {
	if issue.Status.IsValid() && issue.IssueType.IsValid() {
		return nil
	}
	statuses, err := customStatuses(ctx, exec)
	if err != nil {
		return err
	}
	typeList, err := customTypes(ctx, exec)
	if err != nil {
		return err
	}
	for _, w := range issue.UnknownValues(statuses, typeList) {
		debug.Logf("sqlite: issue %s: %s", issue.ID, w)
	}
	return nil
}

// createIssues validates, assigns IDs to and inserts every issue using exec.
// The caller supplies the transaction; a failure leaves nothing behind once it
// rolls back.
func createIssues(ctx context.Context, exec dbExecutor, gen hashIDFunc, issues []*types.Issue, actor string, opts storage.CreateOptions) error {
	if len(issues) == 0 {
		return nil
	}
	prefix, err := issuePrefix(ctx, exec)
	if err != nil {
		return err
	}
	allowedValue, err := getKeyValue(ctx, exec, "config", AllowedPrefixesConfigKey)
	if err != nil {
		return err
	}
	allowed := parseCommaSeparatedList(allowedValue)

	for _, issue := range issues {
		if issue == nil {
			return storage.NewValidation("issue", "nil issue")
		}
		now := time.Now().UTC()
		if issue.CreatedAt.IsZero() {
			issue.CreatedAt = now
		}
		if issue.UpdatedAt.IsZero() {
			issue.UpdatedAt = issue.CreatedAt
		}
		if issue.CreatedBy == "" {
			issue.CreatedBy = actor
		}
		issue.SetDefaults()
		issue.IssueType = issue.IssueType.Normalize()
		if issue.Status == types.StatusClosed && issue.ClosedAt == nil {
			closedAt := issue.UpdatedAt
			issue.ClosedAt = &closedAt
		}
		if err := issue.Validate(); err != nil {
			return storage.NewValidation("issue", err.Error())
		}

		if issue.ID == "" {
			id, err := generateIssueID(ctx, exec, gen, prefix, issue, actor)
			if err != nil {
				return err
			}
			issue.ID = id
		} else {
			if !opts.SkipPrefixValidation {
				if err := validateIDPrefix(issue.ID, prefix, allowed); err != nil {
					return err
				}
			}
			exists, err := idExists(ctx, exec, issue.ID)
			if err != nil {
				return err
			}
			if exists {
				return storage.NewValidation("id", fmt.Sprintf("issue %s already exists", issue.ID))
			}
		}

		if err := warnUnknownValues(ctx, exec, issue); err != nil {
			return err
		}
		issue.ContentHash = issue.ComputeContentHash()

		if _, err := exec.ExecContext(ctx, insertIssueSQL, issueRowValues(issue)...); err != nil {
			if isUniqueViolation(err) {
				return storage.NewValidation("id", fmt.Sprintf("issue %s already exists", issue.ID))
			}
			return wrapDBError("insert issue", err)
		}
		for _, label := range issue.Labels {
			if _, err := insertLabel(ctx, exec, issue.ID, label); err != nil {
				return err
			}
		}
		if err := recordEvent(ctx, exec, issue.ID, types.EventCreated, actor, nil, jsonValue(issue, `{}`), nil); err != nil {
			return err
		}
	}
	return nil
}

func getIssue(ctx context.Context, exec dbExecutor, id string) (*types.Issue, error) {
	row := exec.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)
	issue, err := scanIssue(row)
	if err == sql.ErrNoRows {
		return nil, storage.NewNotFound("issue", id)
	}
	if err != nil {
		return nil, wrapDBError("get issue", err)
	}
	labels, err := getLabels(ctx, exec, id)
	if err != nil {
		return nil, err
	}
	issue.Labels = labels
	return issue, nil
}

func getIssueByExternalRef(ctx context.Context, exec dbExecutor, externalRef string) (*types.Issue, error) {
	var id string
	err := exec.QueryRowContext(ctx, `SELECT id FROM issues WHERE external_ref = ? ORDER BY id LIMIT 1`, externalRef).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, storage.NewNotFound("issue", externalRef)
	}
	if err != nil {
		return nil, wrapDBError("get issue by external ref", err)
	}
	return getIssue(ctx, exec, id)
}

func getIssuesByIDs(ctx context.Context, exec dbExecutor, ids []string) ([]*types.Issue, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders, args := buildSQLInClause(ids)
	// #nosec G201 - placeholders only
	rows, err := exec.QueryContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, wrapDBError("get issues by ids", err)
	}
	issues, err := scanIssues(rows)
	_ = rows.Close()
	if err != nil {
		return nil, err
	}
	return attachLabels(ctx, exec, issues)
}

// attachLabels fills Labels on every issue with one query.
func attachLabels(ctx context.Context, exec dbExecutor, issues []*types.Issue) ([]*types.Issue, error) {
	if len(issues) == 0 {
		return issues, nil
	}
	ids := make([]string, len(issues))
	for i, issue := range issues {
		ids[i] = issue.ID
	}
	labelMap, err := getLabelsForIssues(ctx, exec, ids)
	if err != nil {
		return nil, err
	}
	for _, issue := range issues {
		issue.Labels = labelMap[issue.ID]
	}
	return issues, nil
}

// determineEventType picks the single event recorded for an update.
func determineEventType(oldIssue, newIssue *types.Issue) types.EventType {
	if oldIssue.Status == newIssue.Status {
		return types.EventUpdated
	}
	if newIssue.Status == types.StatusClosed {
		return types.EventClosed
	}
	if oldIssue.Status == types.StatusClosed {
		return types.EventReopened
	}
	return types.EventStatusChanged
}

// manageClosedAt keeps closed_at and close_reason consistent with status.
func manageClosedAt(oldIssue, newIssue *types.Issue, updates map[string]interface{}, now time.Time) {
	switch {
	case newIssue.Status == types.StatusClosed && oldIssue.Status != types.StatusClosed:
		if _, explicit := updates["closed_at"]; !explicit || newIssue.ClosedAt == nil {
			newIssue.ClosedAt = &now
		}
	case newIssue.Status != types.StatusClosed && oldIssue.Status == types.StatusClosed:
		newIssue.ClosedAt = nil
		newIssue.CloseReason = ""
		newIssue.ClosedBySession = ""
	}
}

// updateIssue applies a partial update and writes exactly one event.
func updateIssue(ctx context.Context, exec dbExecutor, id string, updates map[string]interface{}, actor string) error {
	oldIssue, err := getIssue(ctx, exec, id)
	if err != nil {
		return err
	}

	newIssue := *oldIssue
	for key, value := range updates {
		if !allowedUpdateFields[key] {
			return storage.NewValidation(key, "field cannot be updated")
		}
		if err := applyUpdate(&newIssue, key, value); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	manageClosedAt(oldIssue, &newIssue, updates, now)
	newIssue.UpdatedAt = now
	if err := newIssue.Validate(); err != nil {
		return storage.NewValidation("issue", err.Error())
	}
	if err := warnUnknownValues(ctx, exec, &newIssue); err != nil {
		return err
	}
	newIssue.ContentHash = newIssue.ComputeContentHash()

	if err := writeIssueRow(ctx, exec, &newIssue); err != nil {
		return err
	}

	eventType := determineEventType(oldIssue, &newIssue)
	oldValue := jsonValue(oldIssue, fmt.Sprintf(`{"id":%q}`, id))
	newValue := jsonValue(updates, `{}`)
	return recordEvent(ctx, exec, id, eventType, actor, oldValue, newValue, nil)
}

// writeIssueRow overwrites every column except id from issue.
func writeIssueRow(ctx context.Context, exec dbExecutor, issue *types.Issue) error {
	values := issueRowValues(issue)
	args := append(values[1:len(values):len(values)], issue.ID)
	res, err := exec.ExecContext(ctx, updateIssueSQL, args...)
	if err != nil {
		return wrapDBError("update issue", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.NewNotFound("issue", issue.ID)
	}
	return nil
}

func closeIssue(ctx context.Context, exec dbExecutor, id, reason, actor, session string) error {
	oldIssue, err := getIssue(ctx, exec, id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	closed := *oldIssue
	closed.Status = types.StatusClosed
	closed.ClosedAt = &now
	closed.CloseReason = reason
	closed.ClosedBySession = session
	closed.UpdatedAt = now
	closed.ContentHash = closed.ComputeContentHash()

	if err := writeIssueRow(ctx, exec, &closed); err != nil {
		return err
	}
	oldValue := jsonValue(map[string]string{"status": string(oldIssue.Status)}, `{}`)
	return recordEvent(ctx, exec, id, types.EventClosed, actor, oldValue, nil, &reason)
}

func claimIssue(ctx context.Context, exec dbExecutor, id, actor string) error {
	issue, err := getIssue(ctx, exec, id)
	if err != nil {
		return err
	}
	if issue.Assignee != "" && issue.Assignee != actor {
		return &storage.AlreadyClaimedError{ID: id, Assignee: issue.Assignee}
	}
	if issue.IsClosed() {
		return storage.NewValidation("status", fmt.Sprintf("issue %s is closed", id))
	}

	claimed := *issue
	claimed.Assignee = actor
	claimed.Status = types.StatusInProgress
	claimed.UpdatedAt = time.Now().UTC()
	claimed.ContentHash = claimed.ComputeContentHash()
	if err := writeIssueRow(ctx, exec, &claimed); err != nil {
		return err
	}

	oldValue := jsonValue(map[string]string{"assignee": issue.Assignee, "status": string(issue.Status)}, `{}`)
	newValue := jsonValue(map[string]string{"assignee": actor, "status": string(types.StatusInProgress)}, `{}`)
	return recordEvent(ctx, exec, id, types.EventClaimed, actor, oldValue, newValue, nil)
}

// deleteIssue removes an issue and every row that references it, in
// dependency order. No event is written: the issue's trail goes with it.
func deleteIssue(ctx context.Context, exec dbExecutor, id string) error {
	if err := requireIssue(ctx, exec, id); err != nil {
		return err
	}
	steps := []struct {
		op    string
		query string
		args  []interface{}
	}{
		{"delete labels", `DELETE FROM labels WHERE issue_id = ?`, []interface{}{id}},
		{"delete comments", `DELETE FROM comments WHERE issue_id = ?`, []interface{}{id}},
		{"delete events", `DELETE FROM events WHERE issue_id = ?`, []interface{}{id}},
		{"delete dependencies", `DELETE FROM dependencies WHERE issue_id = ? OR depends_on_id = ?`, []interface{}{id, id}},
		{"delete issue", `DELETE FROM issues WHERE id = ?`, []interface{}{id}},
	}
	for _, step := range steps {
		if _, err := exec.ExecContext(ctx, step.query, step.args...); err != nil {
			return wrapDBError(step.op, err)
		}
	}
	debug.Logf("sqlite: deleted issue %s", id)
	return nil
}

// CreateIssue creates a new issue, assigning a hash ID when none is set.
func (s *SQLiteStorage) CreateIssue(ctx context.Context, issue *types.Issue, actor string) error {
	return s.CreateIssuesWithOptions(ctx, []*types.Issue{issue}, actor, storage.CreateOptions{})
}

// CreateIssues creates issues atomically: all are inserted or none.
func (s *SQLiteStorage) CreateIssues(ctx context.Context, issues []*types.Issue, actor string) error {
	return s.CreateIssuesWithOptions(ctx, issues, actor, storage.CreateOptions{})
}

// CreateIssuesWithOptions is CreateIssues with loader options.
func (s *SQLiteStorage) CreateIssuesWithOptions(ctx context.Context, issues []*types.Issue, actor string, opts storage.CreateOptions) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return createIssues(ctx, tx, s.generateHashID, issues, actor, opts)
	})
}

// GetIssue retrieves an issue by ID, failing with a not-found error when absent.
func (s *SQLiteStorage) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	return getIssue(ctx, s.db, id)
}

// GetIssueByExternalRef retrieves the issue linked to an external tracker reference.
func (s *SQLiteStorage) GetIssueByExternalRef(ctx context.Context, externalRef string) (*types.Issue, error) {
	return getIssueByExternalRef(ctx, s.db, externalRef)
}

// GetIssuesByIDs returns the issues found among ids. Missing IDs are omitted.
func (s *SQLiteStorage) GetIssuesByIDs(ctx context.Context, ids []string) ([]*types.Issue, error) {
	return getIssuesByIDs(ctx, s.db, ids)
}

// UpdateIssue updates fields on an issue
func (s *SQLiteStorage) UpdateIssue(ctx context.Context, id string, updates map[string]interface{}, actor string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return updateIssue(ctx, tx, id, updates, actor)
	})
}

// CloseIssue closes an issue with a reason. session identifies the work
// session that closed it and may be empty.
func (s *SQLiteStorage) CloseIssue(ctx context.Context, id string, reason string, actor string, session string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return closeIssue(ctx, tx, id, reason, actor, session)
	})
}

// ClaimIssue assigns the issue to actor and moves it to in_progress. It fails
// with AlreadyClaimedError when someone else holds it.
func (s *SQLiteStorage) ClaimIssue(ctx context.Context, id string, actor string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return claimIssue(ctx, tx, id, actor)
	})
}

// DeleteIssue permanently removes an issue with its labels, comments, events
// and dependencies in both directions.
func (s *SQLiteStorage) DeleteIssue(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return deleteIssue(ctx, tx, id)
	})
}
