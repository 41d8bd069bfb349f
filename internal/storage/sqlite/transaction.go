package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fwindolf/beads-rs-sub001/internal/storage"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// Verify sqliteTxStorage implements storage.Transaction at compile time
var _ storage.Transaction = (*sqliteTxStorage)(nil)

// sqliteTxStorage implements storage.Transaction over an open *sql.Tx. Reads
// go through the same transaction, so they see its uncommitted writes.
type sqliteTxStorage struct {
	tx     *sql.Tx
	parent *SQLiteStorage
}

// RunInTransaction executes fn within one BEGIN IMMEDIATE transaction on the
// writer connection.
//
// If fn returns nil the transaction commits. If fn returns an error the
// transaction is rolled back and that error is returned unchanged. If fn
// panics the transaction is rolled back and the panic is re-raised.
func (s *SQLiteStorage) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&sqliteTxStorage{tx: tx, parent: s})
	})
}

// CreateIssue creates a new issue within the transaction.
func (t *sqliteTxStorage) CreateIssue(ctx context.Context, issue *types.Issue, actor string) error {
	return createIssues(ctx, t.tx, t.parent.generateHashID, []*types.Issue{issue}, actor, storage.CreateOptions{})
}

// CreateIssues creates several issues within the transaction.
func (t *sqliteTxStorage) CreateIssues(ctx context.Context, issues []*types.Issue, actor string) error {
	return createIssues(ctx, t.tx, t.parent.generateHashID, issues, actor, storage.CreateOptions{})
}

// CreateIssuesWithOptions creates several issues within the transaction using
// the bulk-loader options.
func (t *sqliteTxStorage) CreateIssuesWithOptions(ctx context.Context, issues []*types.Issue, actor string, opts storage.CreateOptions) error {
	return createIssues(ctx, t.tx, t.parent.generateHashID, issues, actor, opts)
}

// GetIssue reads an issue, including writes made earlier in the transaction.
func (t *sqliteTxStorage) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	return getIssue(ctx, t.tx, id)
}

// UpdateIssue updates fields on an issue within the transaction.
func (t *sqliteTxStorage) UpdateIssue(ctx context.Context, id string, updates map[string]interface{}, actor string) error {
	return updateIssue(ctx, t.tx, id, updates, actor)
}

// CloseIssue closes an issue within the transaction.
func (t *sqliteTxStorage) CloseIssue(ctx context.Context, id string, reason string, actor string, session string) error {
	return closeIssue(ctx, t.tx, id, reason, actor, session)
}

// DeleteIssue deletes an issue and everything that references it within the transaction.
func (t *sqliteTxStorage) DeleteIssue(ctx context.Context, id string) error {
	return deleteIssue(ctx, t.tx, id)
}

// SearchIssues searches within the transaction.
func (t *sqliteTxStorage) SearchIssues(ctx context.Context, query string, filter types.IssueFilter) ([]*types.Issue, error) {
	return searchIssues(ctx, t.tx, query, filter)
}

// AddDependency adds a dependency within the transaction, with cycle prevention.
func (t *sqliteTxStorage) AddDependency(ctx context.Context, dep *types.Dependency, actor string) error {
	return addDependency(ctx, t.tx, dep, actor)
}

// RemoveDependency removes a dependency within the transaction.
func (t *sqliteTxStorage) RemoveDependency(ctx context.Context, issueID, dependsOnID string, actor string) error {
	return removeDependency(ctx, t.tx, issueID, dependsOnID, actor)
}

// GetDependencyRecords returns raw dependency records within the transaction.
func (t *sqliteTxStorage) GetDependencyRecords(ctx context.Context, issueID string) ([]*types.Dependency, error) {
	return getDependencyRecords(ctx, t.tx, issueID)
}

// AddLabel adds a label within the transaction.
func (t *sqliteTxStorage) AddLabel(ctx context.Context, issueID, label, actor string) error {
	return executeLabelOperation(ctx, t.tx, issueID, label, actor, true)
}

// RemoveLabel removes a label within the transaction.
func (t *sqliteTxStorage) RemoveLabel(ctx context.Context, issueID, label, actor string) error {
	return executeLabelOperation(ctx, t.tx, issueID, label, actor, false)
}

// GetLabels returns an issue's labels within the transaction.
func (t *sqliteTxStorage) GetLabels(ctx context.Context, issueID string) ([]string, error) {
	return getLabels(ctx, t.tx, issueID)
}

// AddComment adds a comment within the transaction.
func (t *sqliteTxStorage) AddComment(ctx context.Context, issueID, author, text string) (*types.Comment, error) {
	return addComment(ctx, t.tx, issueID, author, text)
}

// ImportComment adds a comment with its original timestamp within the transaction.
func (t *sqliteTxStorage) ImportComment(ctx context.Context, issueID, author, text string, createdAt time.Time) (*types.Comment, error) {
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return insertComment(ctx, t.tx, issueID, author, text, createdAt)
}

// GetComments lists an issue's comments within the transaction.
func (t *sqliteTxStorage) GetComments(ctx context.Context, issueID string) ([]*types.Comment, error) {
	return getComments(ctx, t.tx, issueID)
}

// SetConfig sets a configuration value within the transaction.
func (t *sqliteTxStorage) SetConfig(ctx context.Context, key, value string) error {
	return setKeyValue(ctx, t.tx, "config", key, value)
}

// GetConfig gets a configuration value within the transaction.
func (t *sqliteTxStorage) GetConfig(ctx context.Context, key string) (string, error) {
	return getKeyValue(ctx, t.tx, "config", key)
}

// SetMetadata sets a metadata value within the transaction.
func (t *sqliteTxStorage) SetMetadata(ctx context.Context, key, value string) error {
	return setKeyValue(ctx, t.tx, "metadata", key, value)
}

// GetMetadata gets a metadata value within the transaction.
func (t *sqliteTxStorage) GetMetadata(ctx context.Context, key string) (string, error) {
	return getKeyValue(ctx, t.tx, "metadata", key)
}

// linkAndClose adds a typed edge from oldID to targetID and closes oldID in
// one transaction.
func (s *SQLiteStorage) linkAndClose(ctx context.Context, oldID, targetID string, depType types.DependencyType, reason, actor string) error {
	return s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		dep := &types.Dependency{IssueID: oldID, DependsOnID: targetID, Type: depType}
		if err := tx.AddDependency(ctx, dep, actor); err != nil {
			return err
		}
		return tx.CloseIssue(ctx, oldID, reason, actor, "")
	})
}

// MarkDuplicate records that duplicateID duplicates canonicalID and closes it.
func (s *SQLiteStorage) MarkDuplicate(ctx context.Context, duplicateID, canonicalID string, actor string) error {
	return s.linkAndClose(ctx, duplicateID, canonicalID, types.DepDuplicates,
		fmt.Sprintf("Duplicate of %s", canonicalID), actor)
}

// Supersede records that newID replaces oldID and closes oldID.
func (s *SQLiteStorage) Supersede(ctx context.Context, oldID, newID string, actor string) error {
	return s.linkAndClose(ctx, oldID, newID, types.DepSupersedes,
		fmt.Sprintf("Superseded by %s", newID), actor)
}
