package importer

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fwindolf/beads-rs-sub001/internal/storage"
	"github.com/fwindolf/beads-rs-sub001/internal/types"
)

// Metadata keys recorded after a successful file import.
const (
	MetaLastImportHash = "last_import_hash"
	MetaLastImportTime = "last_import_time"
)

// maxLineSize bounds a single JSONL record.
const maxLineSize = 64 * 1024 * 1024

// ParseJSONL decodes one issue per non-blank line.
func ParseJSONL(r io.Reader) ([]*types.Issue, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var issues []*types.Issue
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var issue types.Issue
		if err := json.Unmarshal(line, &issue); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		issue.SetDefaults()
		issues = append(issues, &issue)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading JSONL: %w", err)
	}
	return issues, nil
}

// ImportFile parses path and imports it. Unless this is a dry run, the file's
// SHA-256 and the import time are recorded as metadata.
func ImportFile(ctx context.Context, store storage.Storage, path string, opts Options) (*Result, error) {
	data, err := os.ReadFile(path) // #nosec G304 - caller-controlled import path
	if err != nil {
		return nil, err
	}
	issues, err := ParseJSONL(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	result, err := ImportIssues(ctx, store, issues, opts)
	if err != nil {
		return result, err
	}
	if opts.DryRun {
		return result, nil
	}

	sum := sha256.Sum256(data)
	if err := store.SetMetadata(ctx, MetaLastImportHash, hex.EncodeToString(sum[:])); err != nil {
		return result, fmt.Errorf("recording import hash: %w", err)
	}
	if err := store.SetMetadata(ctx, MetaLastImportTime, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return result, fmt.Errorf("recording import time: %w", err)
	}
	return result, nil
}
