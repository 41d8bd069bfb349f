// Package factory opens the storage backend named by a workspace's metadata.json.
package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/fwindolf/beads-rs-sub001/internal/configfile"
	"github.com/fwindolf/beads-rs-sub001/internal/storage"
	"github.com/fwindolf/beads-rs-sub001/internal/storage/sqlite"
)

// Options configures how the storage backend is opened
type Options struct {
	ReadOnly    bool
	LockTimeout time.Duration
}

// New opens a SQLite store at path.
func New(ctx context.Context, path string) (storage.Storage, error) {
	return NewWithOptions(ctx, configfile.BackendSQLite, path, Options{})
}

// NewWithOptions opens the named backend with the specified options.
func NewWithOptions(ctx context.Context, backend, path string, opts Options) (storage.Storage, error) {
	switch backend {
	case configfile.BackendSQLite, "":
		if opts.ReadOnly {
			if opts.LockTimeout > 0 {
				return sqlite.NewReadOnlyWithTimeout(ctx, path, opts.LockTimeout)
			}
			return sqlite.NewReadOnly(ctx, path)
		}
		if opts.LockTimeout > 0 {
			return sqlite.NewWithTimeout(ctx, path, opts.LockTimeout)
		}
		return sqlite.New(ctx, path)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: %s)", backend, configfile.BackendSQLite)
	}
}

// NewFromConfig opens the store described by beadsDir/metadata.json, falling
// back to the defaults when the file is absent.
func NewFromConfig(ctx context.Context, beadsDir string) (storage.Storage, error) {
	return NewFromConfigWithOptions(ctx, beadsDir, Options{})
}

// NewFromConfigWithOptions is NewFromConfig with explicit options.
func NewFromConfigWithOptions(ctx context.Context, beadsDir string, opts Options) (storage.Storage, error) {
	cfg, err := configfile.Load(beadsDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg == nil {
		cfg = configfile.DefaultConfig()
	}
	return NewWithOptions(ctx, cfg.Backend, cfg.DatabasePath(beadsDir), opts)
}
