package importer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fwindolf/beads-rs-sub001/internal/debug"
	"github.com/fwindolf/beads-rs-sub001/internal/storage"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
	"github.com/fwindolf/beads-rs-sub001/internal/validation"
)

// Actor recorded on audit events written by an import.
const Actor = "import"

// Options contains import configuration
type Options struct {
	DryRun                     bool // Preview changes without applying them
	SkipUpdate                 bool // Skip updating existing issues (create-only mode)
	Strict                     bool // Fail on any error (dependencies, labels, etc.)
	RenameOnImport             bool // Rename imported issues to match database prefix
	SkipPrefixValidation       bool // Accept foreign prefixes as-is
	ClearDuplicateExternalRefs bool // Clear duplicate external_ref values instead of erroring
}

// Result contains statistics about the import operation
type Result struct {
	Created             int               `json:"created"`
	Updated             int               `json:"updated"`
	Unchanged           int               `json:"unchanged"`
	Skipped             int               `json:"skipped"`
	IDMapping           map[string]string `json:"id_mapping,omitempty"` // incoming id -> id in the database
	PrefixMismatch      bool              `json:"prefix_mismatch,omitempty"`
	ExpectedPrefix      string            `json:"expected_prefix,omitempty"`
	MismatchPrefixes    map[string]int    `json:"mismatch_prefixes,omitempty"`
	SkippedDependencies []string          `json:"skipped_dependencies,omitempty"` // edges that would dangle or cycle
}

// ImportIssues reconciles parsed JSONL issues into store.
//
// Incoming issues are matched against the database by external_ref, then by
// content hash, then by id. Matches are updated only when the incoming copy
// has a newer updated_at; everything else is created in a single batch.
// Dependencies, labels and comments follow once all issues exist. All writes
// happen in one transaction, so a failure part way leaves the database as it
// was.
//
// The caller reads the JSONL and reports the result.
func ImportIssues(ctx context.Context, store storage.Storage, issues []*types.Issue, opts Options) (*Result, error) {
	result := &Result{
		IDMapping:        make(map[string]string),
		MismatchPrefixes: make(map[string]int),
	}

	// Always recompute; hashes in JSONL may be stale or absent.
	for _, issue := range issues {
		issue.SetDefaults()
		if !issue.IsClosed() {
			// Close fields only describe a closed issue.
			issue.CloseReason = ""
			issue.ClosedBySession = ""
		}
		issue.ContentHash = issue.ComputeContentHash()
	}

	issues, err := handlePrefixMismatch(ctx, store, issues, opts, result)
	if err != nil {
		return result, err
	}

	if err := validateNoDuplicateExternalRefs(issues, opts.ClearDuplicateExternalRefs, result); err != nil {
		return result, err
	}

	if opts.DryRun {
		_, err := planFromStore(ctx, store, issues, opts, result)
		return result, err
	}

	err = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := upsertIssues(ctx, tx, issues, opts, result); err != nil {
			return err
		}
		if err := importDependencies(ctx, tx, issues, opts, result); err != nil {
			return err
		}
		if err := importLabels(ctx, tx, issues, opts, result); err != nil {
			return err
		}
		return importComments(ctx, tx, issues, opts, result)
	})
	if err != nil {
		return result, err
	}
	return result, nil
}

// targetID resolves an incoming id to the id it was reconciled with.
func (r *Result) targetID(id string) string {
	if mapped, ok := r.IDMapping[id]; ok {
		return mapped
	}
	return id
}

// handlePrefixMismatch checks incoming ids against issue_prefix and
// allowed_prefixes, renaming them when RenameOnImport is set.
func handlePrefixMismatch(ctx context.Context, store storage.Storage, issues []*types.Issue, opts Options, result *Result) ([]*types.Issue, error) {
	configuredPrefix, err := store.GetConfig(ctx, "issue_prefix")
	if err != nil {
		return nil, fmt.Errorf("failed to get configured prefix: %w", err)
	}
	configuredPrefix = strings.TrimSuffix(strings.TrimSpace(configuredPrefix), "-")
	if configuredPrefix == "" {
		if opts.RenameOnImport {
			return nil, fmt.Errorf("cannot rename: %w", storage.ErrNotInitialized)
		}
		return issues, nil
	}
	result.ExpectedPrefix = configuredPrefix

	allowedPrefixesConfig, err := store.GetConfig(ctx, "allowed_prefixes")
	if err != nil {
		return nil, fmt.Errorf("failed to get allowed prefixes: %w", err)
	}
	allowed := buildAllowedPrefixSet(configuredPrefix, allowedPrefixesConfig)

	for _, issue := range issues {
		if hasAllowedPrefix(issue.ID, allowed) {
			continue
		}
		result.PrefixMismatch = true
		result.MismatchPrefixes[validation.ExtractIssuePrefix(issue.ID)]++
	}
	if !result.PrefixMismatch {
		return issues, nil
	}

	if opts.RenameOnImport {
		if opts.DryRun {
			return issues, nil
		}
		mapping, err := RenameImportedIssuePrefixes(issues, configuredPrefix, allowed)
		if err != nil {
			return nil, fmt.Errorf("failed to rename prefixes: %w", err)
		}
		for oldID, newID := range mapping {
			debug.Logf("import: renamed %s -> %s", oldID, newID)
		}
		result.PrefixMismatch = false
		result.MismatchPrefixes = make(map[string]int)
		return issues, nil
	}

	if !opts.DryRun && !opts.SkipPrefixValidation {
		return nil, fmt.Errorf("%w: database uses '%s-' but found issues with prefixes: %v (use --rename-on-import to automatically fix)",
			storage.ErrPrefixMismatch, configuredPrefix, GetPrefixList(result.MismatchPrefixes))
	}
	return issues, nil
}

func hasAllowedPrefix(id string, allowed map[string]bool) bool {
	for prefix := range allowed {
		if strings.HasPrefix(id, prefix+"-") {
			return true
		}
	}
	return false
}

// buildAllowedPrefixSet returns the configured prefix plus allowed_prefixes
// (comma-separated, with or without trailing "-").
func buildAllowedPrefixSet(primaryPrefix string, allowedPrefixesConfig string) map[string]bool {
	allowed := map[string]bool{primaryPrefix: true}
	for _, prefix := range strings.Split(allowedPrefixesConfig, ",") {
		prefix = strings.TrimSuffix(strings.TrimSpace(prefix), "-")
		if prefix != "" {
			allowed[prefix] = true
		}
	}
	return allowed
}

// upsertPlan is the outcome of matching a batch against the database.
type upsertPlan struct {
	creates []*types.Issue
	updates []pendingUpdate
}

type pendingUpdate struct {
	id      string
	updates map[string]interface{}
}

// issueSearcher is the read side shared by Storage and Transaction.
type issueSearcher interface {
	SearchIssues(ctx context.Context, query string, filter types.IssueFilter) ([]*types.Issue, error)
}

// planFromStore matches incoming issues against the database and fills in the
// create and update counts.
func planFromStore(ctx context.Context, db issueSearcher, issues []*types.Issue, opts Options, result *Result) (*upsertPlan, error) {
	dbIssues, err := db.SearchIssues(ctx, "", types.IssueFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to get DB issues: %w", err)
	}
	plan := planUpserts(dbIssues, issues, opts, result)
	result.Created = len(plan.creates)
	result.Updated = len(plan.updates)
	return plan, nil
}

// upsertIssues applies the planned creates and updates within tx.
func upsertIssues(ctx context.Context, tx storage.Transaction, issues []*types.Issue, opts Options, result *Result) error {
	plan, err := planFromStore(ctx, tx, issues, opts, result)
	if err != nil {
		return err
	}

	for _, u := range plan.updates {
		if err := tx.UpdateIssue(ctx, u.id, u.updates, Actor); err != nil {
			return fmt.Errorf("error updating issue %s: %w", u.id, err)
		}
	}

	if len(plan.creates) > 0 {
		sort.SliceStable(plan.creates, func(i, j int) bool {
			return plan.creates[i].ID < plan.creates[j].ID
		})
		createOpts := storage.CreateOptions{SkipPrefixValidation: opts.SkipPrefixValidation}
		if err := tx.CreateIssuesWithOptions(ctx, plan.creates, Actor, createOpts); err != nil {
			return fmt.Errorf("error creating issues: %w", err)
		}
	}
	return nil
}

// planUpserts decides, without touching the store, what happens to each
// incoming issue.
func planUpserts(dbIssues, issues []*types.Issue, opts Options, result *Result) *upsertPlan {
	dbByHash := make(map[string]*types.Issue, len(dbIssues))
	dbByID := make(map[string]*types.Issue, len(dbIssues))
	dbByExternalRef := make(map[string]*types.Issue)
	for _, issue := range dbIssues {
		hash := issue.ComputeContentHash()
		if _, taken := dbByHash[hash]; !taken {
			dbByHash[hash] = issue
		}
		dbByID[issue.ID] = issue
		if issue.ExternalRef != nil && *issue.ExternalRef != "" {
			dbByExternalRef[*issue.ExternalRef] = issue
		}
	}

	plan := &upsertPlan{}
	seenHashes := make(map[string]string)
	seenIDs := make(map[string]bool)

	for _, incoming := range issues {
		// Duplicates within the batch, by content and then by id
		if firstID, dup := seenHashes[incoming.ContentHash]; dup {
			if firstID != "" && incoming.ID != "" && firstID != incoming.ID {
				result.IDMapping[incoming.ID] = result.targetID(firstID)
			}
			result.Skipped++
			continue
		}
		seenHashes[incoming.ContentHash] = incoming.ID
		if incoming.ID != "" {
			if seenIDs[incoming.ID] {
				result.Skipped++
				continue
			}
			seenIDs[incoming.ID] = true
		}

		// Phase 0: external_ref, for re-syncing from external trackers
		if incoming.ExternalRef != nil && *incoming.ExternalRef != "" {
			if existing, found := dbByExternalRef[*incoming.ExternalRef]; found {
				if existing.ID != incoming.ID {
					result.IDMapping[incoming.ID] = existing.ID
				}
				planUpdate(plan, existing, incoming, opts, result)
				continue
			}
		}

		// Phase 1: identical content already stored
		if existing, found := dbByHash[incoming.ContentHash]; found {
			if existing.ID != incoming.ID {
				debug.Logf("import: %s has the same content as %s, keeping %s", incoming.ID, existing.ID, existing.ID)
				result.IDMapping[incoming.ID] = existing.ID
				result.Skipped++
				continue
			}
			if closedAtChanged(existing, incoming) {
				planUpdate(plan, existing, incoming, opts, result)
				continue
			}
			result.Unchanged++
			continue
		}

		// Phase 2: same id, different content
		if existing, found := dbByID[incoming.ID]; found {
			planUpdate(plan, existing, incoming, opts, result)
			continue
		}

		plan.creates = append(plan.creates, incoming)
	}
	return plan
}

// planUpdate queues an update of existing from incoming when incoming is newer.
func planUpdate(plan *upsertPlan, existing, incoming *types.Issue, opts Options, result *Result) {
	if opts.SkipUpdate {
		result.Skipped++
		return
	}
	if !incoming.UpdatedAt.After(existing.UpdatedAt) {
		result.Unchanged++
		return
	}
	if !IssueDataChanged(existing, incoming) {
		result.Unchanged++
		return
	}
	plan.updates = append(plan.updates, pendingUpdate{id: existing.ID, updates: buildUpdates(incoming)})
}

// buildUpdates maps an incoming issue onto the fields UpdateIssue accepts.
func buildUpdates(incoming *types.Issue) map[string]interface{} {
	updates := map[string]interface{}{
		"title":               incoming.Title,
		"description":         incoming.Description,
		"design":              incoming.Design,
		"acceptance_criteria": incoming.AcceptanceCriteria,
		"notes":               incoming.Notes,
		"spec_id":             incoming.SpecID,
		"status":              incoming.Status,
		"priority":            incoming.Priority,
		"issue_type":          incoming.IssueType,
		"assignee":            incoming.Assignee,
		"owner":               incoming.Owner,
		"estimated_minutes":   incoming.EstimatedMinutes,
		"external_ref":        incoming.ExternalRef,
		"source_system":       incoming.SourceSystem,
		"due_at":              incoming.DueAt,
		"defer_until":         incoming.DeferUntil,
		"metadata":            incoming.Metadata,
		"close_reason":        incoming.CloseReason,
		"closed_at":           incoming.ClosedAt,
	}
	// omitempty drops false, so an absent flag must not clear a local one
	if incoming.Pinned {
		updates["pinned"] = true
	}
	if incoming.IsTemplate {
		updates["is_template"] = true
	}
	return updates
}

// IssueDataChanged reports whether applying incoming would change existing.
func IssueDataChanged(existing, incoming *types.Issue) bool {
	if existing.ComputeContentHash() != incoming.ComputeContentHash() {
		return true
	}
	return closedAtChanged(existing, incoming) || existing.CloseReason != incoming.CloseReason
}

func closedAtChanged(existing, incoming *types.Issue) bool {
	switch {
	case existing.ClosedAt == nil && incoming.ClosedAt == nil:
		return false
	case existing.ClosedAt == nil || incoming.ClosedAt == nil:
		return true
	default:
		return !existing.ClosedAt.Equal(*incoming.ClosedAt)
	}
}

// importDependencies adds edges that are not yet present. Edges whose
// endpoint is missing or that would close a cycle are skipped and reported.
func importDependencies(ctx context.Context, tx storage.Transaction, issues []*types.Issue, opts Options, result *Result) error {
	for _, issue := range issues {
		if len(issue.Dependencies) == 0 {
			continue
		}
		issueID := result.targetID(issue.ID)

		existingDeps, err := tx.GetDependencyRecords(ctx, issueID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return fmt.Errorf("error checking dependencies for %s: %w", issueID, err)
		}
		existingSet := make(map[string]bool, len(existingDeps))
		for _, existing := range existingDeps {
			existingSet[existing.DependsOnID+"|"+string(existing.Type)] = true
		}

		for _, dep := range issue.Dependencies {
			edge := &types.Dependency{
				IssueID:     issueID,
				DependsOnID: result.targetID(dep.DependsOnID),
				Type:        dep.Type,
				CreatedAt:   dep.CreatedAt,
				CreatedBy:   dep.CreatedBy,
				Metadata:    dep.Metadata,
				ThreadID:    dep.ThreadID,
			}
			if edge.Type == "" {
				edge.Type = types.DepBlocks
			}
			key := edge.DependsOnID + "|" + string(edge.Type)
			if existingSet[key] {
				continue
			}

			if err := tx.AddDependency(ctx, edge, Actor); err != nil {
				depDesc := fmt.Sprintf("%s → %s (%s)", edge.IssueID, edge.DependsOnID, edge.Type)
				if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrCycle) {
					debug.Logf("import: skipping dependency %s: %v", depDesc, err)
					result.SkippedDependencies = append(result.SkippedDependencies, depDesc)
					continue
				}
				if opts.Strict {
					return fmt.Errorf("error adding dependency %s: %w", depDesc, err)
				}
				debug.Logf("import: failed to add dependency %s: %v", depDesc, err)
				continue
			}
			existingSet[key] = true
		}
	}
	return nil
}

// importLabels adds labels missing from the database. Labels are never removed.
func importLabels(ctx context.Context, tx storage.Transaction, issues []*types.Issue, opts Options, result *Result) error {
	for _, issue := range issues {
		if len(issue.Labels) == 0 {
			continue
		}
		issueID := result.targetID(issue.ID)

		currentLabels, err := tx.GetLabels(ctx, issueID)
		if err != nil {
			return fmt.Errorf("error getting labels for %s: %w", issueID, err)
		}
		current := make(map[string]bool, len(currentLabels))
		for _, label := range currentLabels {
			current[label] = true
		}

		for _, label := range issue.Labels {
			if current[label] {
				continue
			}
			if err := tx.AddLabel(ctx, issueID, label, Actor); err != nil {
				if opts.Strict {
					return fmt.Errorf("error adding label %s to %s: %w", label, issueID, err)
				}
				debug.Logf("import: failed to add label %s to %s: %v", label, issueID, err)
				continue
			}
			current[label] = true
		}
	}
	return nil
}

// importComments adds comments not already present, compared by author and
// trimmed text, keeping their original timestamps.
func importComments(ctx context.Context, tx storage.Transaction, issues []*types.Issue, opts Options, result *Result) error {
	for _, issue := range issues {
		if len(issue.Comments) == 0 {
			continue
		}
		issueID := result.targetID(issue.ID)

		currentComments, err := tx.GetComments(ctx, issueID)
		if err != nil {
			return fmt.Errorf("error getting comments for %s: %w", issueID, err)
		}
		existing := make(map[string]bool, len(currentComments))
		for _, c := range currentComments {
			existing[commentKey(c)] = true
		}

		for _, comment := range issue.Comments {
			key := commentKey(comment)
			if existing[key] {
				continue
			}
			if _, err := tx.ImportComment(ctx, issueID, comment.Author, comment.Text, comment.CreatedAt); err != nil {
				if opts.Strict {
					return fmt.Errorf("error adding comment to %s: %w", issueID, err)
				}
				debug.Logf("import: failed to add comment to %s: %v", issueID, err)
				continue
			}
			existing[key] = true
		}
	}
	return nil
}

func commentKey(c *types.Comment) string {
	return c.Author + ":" + strings.TrimSpace(c.Text)
}

// GetPrefixList formats mismatch counts as sorted "prefix- (n issues)" entries.
func GetPrefixList(prefixes map[string]int) []string {
	keys := make([]string, 0, len(prefixes))
	for k := range prefixes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(keys))
	for _, prefix := range keys {
		result = append(result, fmt.Sprintf("%s- (%d issues)", prefix, prefixes[prefix]))
	}
	return result
}

func validateNoDuplicateExternalRefs(issues []*types.Issue, clearDuplicates bool, result *Result) error {
	seen := make(map[string][]string)
	for _, issue := range issues {
		if issue.ExternalRef != nil && *issue.ExternalRef != "" {
			seen[*issue.ExternalRef] = append(seen[*issue.ExternalRef], issue.ID)
		}
	}

	var duplicates []string
	duplicateIssueIDs := make(map[string]bool)
	for ref, issueIDs := range seen {
		if len(issueIDs) < 2 {
			continue
		}
		duplicates = append(duplicates, fmt.Sprintf("external_ref '%s' appears in issues: %v", ref, issueIDs))
		// Keep the first occurrence
		for _, id := range issueIDs[1:] {
			duplicateIssueIDs[id] = true
		}
	}
	if len(duplicates) == 0 {
		return nil
	}

	if clearDuplicates {
		for _, issue := range issues {
			if duplicateIssueIDs[issue.ID] {
				debug.Logf("import: clearing duplicate external_ref %s on %s", *issue.ExternalRef, issue.ID)
				issue.ExternalRef = nil
				issue.ContentHash = issue.ComputeContentHash()
			}
		}
		return nil
	}

	sort.Strings(duplicates)
	return fmt.Errorf("%w: batch import contains duplicate external_ref values:\n%s\n\nUse --clear-duplicate-external-refs to automatically clear duplicates",
		storage.ErrValidation, strings.Join(duplicates, "\n"))
}
