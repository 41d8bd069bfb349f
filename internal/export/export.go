// Package export writes the issue graph as JSONL, one issue per line sorted by
// id, with labels, dependencies and comments embedded.
package export

import (
	"bufio"
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fwindolf/beads-rs-sub001/internal/debug"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// Metadata keys recorded after a successful file export.
const (
	MetaLastExportTime = "last_export_time"
	MetaJSONLFileHash  = "jsonl_file_hash"
)

// ErrEmptyOverNonEmpty is returned when an empty database would overwrite a
// JSONL file that still holds issues.
var ErrEmptyOverNonEmpty = errors.New("refusing to export empty database over non-empty JSONL file")

// Source is the read side of a store needed to assemble an export.
type Source interface {
	SearchIssues(ctx context.Context, query string, filter types.IssueFilter) ([]*types.Issue, error)
	GetAllDependencyRecords(ctx context.Context) (map[string][]*types.Dependency, error)
	GetLabelsForIssues(ctx context.Context, issueIDs []string) (map[string][]string, error)
	GetComments(ctx context.Context, issueID string) ([]*types.Comment, error)
}

// Sink is a Source that can also record export bookkeeping.
type Sink interface {
	Source
	SetMetadata(ctx context.Context, key, value string) error
}

// Options controls ExportToFile.
type Options struct {
	Filter types.IssueFilter
	// IncludeEphemeral keeps local-only issues in the output.
	IncludeEphemeral bool
	// Force skips the empty-over-non-empty safety check.
	Force bool
}

// Result summarises a file export.
type Result struct {
	Path     string `json:"output_file"`
	Exported int    `json:"exported"`
	Hash     string `json:"jsonl_file_hash"`
}

// CollectIssues loads matching issues with their relational data, sorted by id.
func CollectIssues(ctx context.Context, src Source, filter types.IssueFilter, includeEphemeral bool) ([]*types.Issue, error) {
	issues, err := src.SearchIssues(ctx, "", filter)
	if err != nil {
		return nil, fmt.Errorf("loading issues: %w", err)
	}

	if !includeEphemeral {
		kept := issues[:0]
		for _, issue := range issues {
			if !issue.Ephemeral {
				kept = append(kept, issue)
			}
		}
		issues = kept
	}

	slices.SortFunc(issues, func(a, b *types.Issue) int {
		return cmp.Compare(a.ID, b.ID)
	})

	allDeps, err := src.GetAllDependencyRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading dependencies: %w", err)
	}

	ids := make([]string, len(issues))
	for i, issue := range issues {
		ids[i] = issue.ID
	}
	labels, err := src.GetLabelsForIssues(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading labels: %w", err)
	}

	for _, issue := range issues {
		issue.Dependencies = allDeps[issue.ID]
		issue.Labels = labels[issue.ID]
		comments, err := src.GetComments(ctx, issue.ID)
		if err != nil {
			return nil, fmt.Errorf("loading comments for %s: %w", issue.ID, err)
		}
		issue.Comments = comments
	}
	return issues, nil
}

// WriteJSONL encodes each issue on its own line in the given order.
func WriteJSONL(w io.Writer, issues []*types.Issue) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, issue := range issues {
		if err := enc.Encode(issue); err != nil {
			return fmt.Errorf("encoding issue %s: %w", issue.ID, err)
		}
	}
	return bw.Flush()
}

// ExportToFile writes the store's issues to path through a temp file and an
// atomic rename, then records the export time and file hash as metadata.
func ExportToFile(ctx context.Context, store Sink, path string, opts Options) (*Result, error) {
	issues, err := CollectIssues(ctx, store, opts.Filter, opts.IncludeEphemeral)
	if err != nil {
		return nil, err
	}

	if len(issues) == 0 && !opts.Force {
		existing, err := CountIssuesInJSONL(path)
		if err != nil && !os.IsNotExist(err) {
			debug.Logf("export: cannot read existing %s: %v", path, err)
		}
		if existing > 0 {
			return nil, fmt.Errorf("%w (%s holds %d issues)", ErrEmptyOverNonEmpty, path, existing)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return nil, fmt.Errorf("creating temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	hasher := sha256.New()
	if err := WriteJSONL(io.MultiWriter(tmp, hasher), issues); err != nil {
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing temporary file: %w", err)
	}
	tmp = nil

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("replacing %s: %w", path, err)
	}
	// Skip chmod for symlinks; it would change the target's mode.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink == 0 {
		if err := os.Chmod(path, 0600); err != nil {
			debug.Logf("export: failed to set permissions on %s: %v", path, err)
		}
	}

	result := &Result{
		Path:     path,
		Exported: len(issues),
		Hash:     hex.EncodeToString(hasher.Sum(nil)),
	}

	if err := store.SetMetadata(ctx, MetaLastExportTime, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return nil, fmt.Errorf("recording export time: %w", err)
	}
	if err := store.SetMetadata(ctx, MetaJSONLFileHash, result.Hash); err != nil {
		return nil, fmt.Errorf("recording export hash: %w", err)
	}
	debug.Logf("export: wrote %d issues to %s", result.Exported, path)
	return result, nil
}

// CountIssuesInJSONL counts the non-blank lines of a JSONL file, checking that
// each decodes as an object.
func CountIssuesInJSONL(path string) (int, error) {
	f, err := os.Open(path) // #nosec G304 - caller-controlled export path
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	count := 0
	dec := json.NewDecoder(f)
	for {
		var raw map[string]json.RawMessage
		if err := dec.Decode(&raw); err == io.EOF {
			break
		} else if err != nil {
			return count, fmt.Errorf("%s: invalid JSON after %d issues: %w", path, count, err)
		}
		count++
	}
	return count, nil
}
