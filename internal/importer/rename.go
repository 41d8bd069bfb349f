package importer

import (
	"fmt"
	"regexp"

	"github.com/fwindolf/beads-rs-sub001/internal/types"
	"github.com/fwindolf/beads-rs-sub001/internal/validation"
)

// RenameImportedIssuePrefixes rewrites every issue whose prefix is not in
// allowed to newPrefix, keeping the hash suffix. Dependencies, comments and
// textual references inside the batch are rewritten to match. It returns the
// old -> new id mapping.
func RenameImportedIssuePrefixes(issues []*types.Issue, newPrefix string, allowed map[string]bool) (map[string]string, error) {
	mapping := make(map[string]string)
	taken := make(map[string]bool, len(issues))
	for _, issue := range issues {
		taken[issue.ID] = true
	}

	for _, issue := range issues {
		if issue.ID == "" || hasAllowedPrefix(issue.ID, allowed) {
			continue
		}
		oldPrefix := validation.ExtractIssuePrefix(issue.ID)
		if oldPrefix == "" {
			return nil, fmt.Errorf("cannot rename %q: no prefix", issue.ID)
		}
		newID := newPrefix + "-" + issue.ID[len(oldPrefix)+1:]
		if _, err := validation.ValidateIDFormat(newID); err != nil {
			return nil, fmt.Errorf("cannot rename %s: %w", issue.ID, err)
		}
		if taken[newID] {
			return nil, fmt.Errorf("cannot rename %s: %s already present in the import", issue.ID, newID)
		}
		taken[newID] = true
		mapping[issue.ID] = newID
	}
	if len(mapping) == 0 {
		return mapping, nil
	}

	patterns := make(map[string]*regexp.Regexp, len(mapping))
	for oldID := range mapping {
		patterns[oldID] = regexp.MustCompile(`\b` + regexp.QuoteMeta(oldID) + `\b`)
	}
	rewrite := func(text string) string {
		if text == "" {
			return text
		}
		for oldID, re := range patterns {
			text = re.ReplaceAllLiteralString(text, mapping[oldID])
		}
		return text
	}
	renamed := func(id string) string {
		if newID, ok := mapping[id]; ok {
			return newID
		}
		return id
	}

	for _, issue := range issues {
		issue.ID = renamed(issue.ID)
		issue.Title = rewrite(issue.Title)
		issue.Description = rewrite(issue.Description)
		issue.Design = rewrite(issue.Design)
		issue.AcceptanceCriteria = rewrite(issue.AcceptanceCriteria)
		issue.Notes = rewrite(issue.Notes)
		for _, dep := range issue.Dependencies {
			dep.IssueID = renamed(dep.IssueID)
			dep.DependsOnID = renamed(dep.DependsOnID)
		}
		for _, comment := range issue.Comments {
			comment.IssueID = issue.ID
			comment.Text = rewrite(comment.Text)
		}
		issue.ContentHash = issue.ComputeContentHash()
	}
	return mapping, nil
}
