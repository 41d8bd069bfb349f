package sqlite

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fwindolf/beads-rs-sub001/internal/storage"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// whereBuilder accumulates ANDed predicates and their bind args.
type whereBuilder struct {
	clauses []string
	args    []interface{}
}

func (w *whereBuilder) add(clause string, args ...interface{}) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *whereBuilder) addTime(column, op string, t *time.Time) {
	if t != nil {
		w.add(fmt.Sprintf("%s %s ?", column, op), dbTime(*t))
	}
}

func (w *whereBuilder) addFlag(column string, v *bool) {
	if v != nil {
		w.add(column+" = ?", *v)
	}
}

func (w *whereBuilder) sql() string {
	if len(w.clauses) == 0 {
		return "1 = 1"
	}
	return strings.Join(w.clauses, " AND ")
}

// addLabelFilter appends the label predicates for issues aliased as alias.
// Regex filters are resolved against the stored label set first, since SQLite
// has no regexp operator by default.
func addLabelFilter(ctx context.Context, exec dbExecutor, w *whereBuilder, alias string, f types.LabelFilter) error {
	all, err := normalizeLabels(f.Labels)
	if err != nil {
		return err
	}
	anyOf, err := normalizeLabels(f.LabelsAny)
	if err != nil {
		return err
	}
	for _, label := range all {
		w.add(fmt.Sprintf(`EXISTS (SELECT 1 FROM labels WHERE issue_id = %s.id AND label = ?)`, alias), label)
	}
	if len(anyOf) > 0 {
		placeholders, args := buildSQLInClause(anyOf)
		w.add(fmt.Sprintf(`EXISTS (SELECT 1 FROM labels WHERE issue_id = %s.id AND label IN (%s))`, alias, placeholders), args...)
	}
	if f.LabelGlob != "" {
		w.add(fmt.Sprintf(`EXISTS (SELECT 1 FROM labels WHERE issue_id = %s.id AND label GLOB ?)`, alias), f.LabelGlob)
	}
	if f.LabelRegex != "" {
		re, err := regexp.Compile(f.LabelRegex)
		if err != nil {
			return storage.NewValidation("label_regex", err.Error())
		}
		matching, err := matchingLabels(ctx, exec, re)
		if err != nil {
			return err
		}
		if len(matching) == 0 {
			w.add("0 = 1")
			return nil
		}
		placeholders, args := buildSQLInClause(matching)
		w.add(fmt.Sprintf(`EXISTS (SELECT 1 FROM labels WHERE issue_id = %s.id AND label IN (%s))`, alias, placeholders), args...)
	}
	return nil
}

// normalizeLabels applies normalizeLabel to every filter label so filters
// match the stored form.
func normalizeLabels(labels []string) ([]string, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	out := make([]string, len(labels))
	for i, label := range labels {
		n, err := normalizeLabel(label)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func matchingLabels(ctx context.Context, exec dbExecutor, re *regexp.Regexp) ([]string, error) {
	rows, err := exec.QueryContext(ctx, `SELECT DISTINCT label FROM labels ORDER BY label`)
	if err != nil {
		return nil, wrapDBError("list labels", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, wrapDBError("scan label", err)
		}
		if re.MatchString(label) {
			out = append(out, label)
		}
	}
	return out, wrapDBError("iterate labels", rows.Err())
}

// likeEscaper escapes LIKE wildcards; every pattern is used with ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a substring pattern matching s literally.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// searchIssues runs a conjunctive search. query matches title, description,
// notes or id as a substring.
func searchIssues(ctx context.Context, exec dbExecutor, query string, filter types.IssueFilter) ([]*types.Issue, error) {
	w := &whereBuilder{}

	if q := strings.TrimSpace(query); q != "" {
		p := likePattern(q)
		w.add(`(i.title LIKE ? ESCAPE '\' OR i.description LIKE ? ESCAPE '\' OR i.notes LIKE ? ESCAPE '\' OR i.id LIKE ? ESCAPE '\')`, p, p, p, p)
	}
	if filter.TitleContains != "" {
		w.add(`i.title LIKE ? ESCAPE '\'`, likePattern(filter.TitleContains))
	}
	if filter.DescriptionContains != "" {
		w.add(`i.description LIKE ? ESCAPE '\'`, likePattern(filter.DescriptionContains))
	}
	if filter.NotesContains != "" {
		w.add(`i.notes LIKE ? ESCAPE '\'`, likePattern(filter.NotesContains))
	}

	if filter.Status != nil {
		w.add("i.status = ?", string(*filter.Status))
	}
	if filter.Priority != nil {
		w.add("i.priority = ?", *filter.Priority)
	}
	if filter.PriorityMin != nil {
		w.add("i.priority >= ?", *filter.PriorityMin)
	}
	if filter.PriorityMax != nil {
		w.add("i.priority <= ?", *filter.PriorityMax)
	}
	if filter.IssueType != nil {
		w.add("i.issue_type = ?", string(*filter.IssueType))
	}
	if filter.NoAssignee {
		w.add("i.assignee = ''")
	} else if filter.Assignee != nil {
		w.add("i.assignee = ?", *filter.Assignee)
	}

	if err := addLabelFilter(ctx, exec, w, "i", filter.LabelFilter); err != nil {
		return nil, err
	}

	if len(filter.IDs) > 0 {
		placeholders, args := buildSQLInClause(filter.IDs)
		w.add("i.id IN ("+placeholders+")", args...)
	}
	if filter.IDPrefix != "" {
		// substr counts characters, not bytes.
		w.add("substr(i.id, 1, ?) = ?", utf8.RuneCountInString(filter.IDPrefix), filter.IDPrefix)
	}

	w.addTime("i.created_at", ">", filter.CreatedAfter)
	w.addTime("i.created_at", "<", filter.CreatedBefore)
	w.addTime("i.updated_at", ">", filter.UpdatedAfter)
	w.addTime("i.updated_at", "<", filter.UpdatedBefore)
	w.addTime("i.closed_at", ">", filter.ClosedAfter)
	w.addTime("i.closed_at", "<", filter.ClosedBefore)
	w.addTime("i.due_at", ">", filter.DueAfter)
	w.addTime("i.due_at", "<", filter.DueBefore)
	w.addTime("i.defer_until", ">", filter.DeferAfter)
	w.addTime("i.defer_until", "<", filter.DeferBefore)

	w.addFlag("i.is_template", filter.IsTemplate)
	w.addFlag("i.ephemeral", filter.Ephemeral)
	w.addFlag("i.pinned", filter.Pinned)

	if filter.ParentID != nil {
		w.add(`i.id IN (SELECT issue_id FROM dependencies WHERE type = 'parent-child' AND depends_on_id = ?)`, *filter.ParentID)
	}
	if len(filter.ExcludeStatus) > 0 {
		args := make([]interface{}, len(filter.ExcludeStatus))
		for i, s := range filter.ExcludeStatus {
			args[i] = string(s)
		}
		w.add("i.status NOT IN ("+buildPlaceholders(len(args))+")", args...)
	}
	if len(filter.ExcludeTypes) > 0 {
		args := make([]interface{}, len(filter.ExcludeTypes))
		for i, t := range filter.ExcludeTypes {
			args[i] = string(t)
		}
		w.add("i.issue_type NOT IN ("+buildPlaceholders(len(args))+")", args...)
	}

	// #nosec G201 - clauses are built from constants with ? placeholders
	sqlQuery := `SELECT ` + issueColumnsAs("i") + ` FROM issues i WHERE ` + w.sql() +
		` ORDER BY i.priority ASC, i.created_at ASC, i.id ASC`
	args := w.args
	if filter.Limit > 0 {
		sqlQuery += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := exec.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, wrapDBError("search issues", err)
	}
	issues, err := scanIssues(rows)
	_ = rows.Close()
	if err != nil {
		return nil, err
	}
	return attachLabels(ctx, exec, issues)
}

// SearchIssues finds issues matching query and every predicate set in filter.
func (s *SQLiteStorage) SearchIssues(ctx context.Context, query string, filter types.IssueFilter) ([]*types.Issue, error) {
	return searchIssues(ctx, s.db, query, filter)
}
