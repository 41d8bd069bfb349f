// Package sqlite implements the storage interface using SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	// Import SQLite driver (ncruces: pure Go via WASM, no CGO)
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/fwindolf/beads-rs-sub001/internal/debug"
	"github.com/fwindolf/beads-rs-sub001/internal/idgen"
	"github.com/fwindolf/beads-rs-sub001/internal/storage"
)

// DefaultLockTimeout is how long a connection waits on a locked database file.
const DefaultLockTimeout = 30 * time.Second

// hashIDFunc matches idgen.GenerateHashID; tests swap it to force collisions.
type hashIDFunc func(prefix, title, description, creator string, timestamp time.Time, length, nonce int) string

// SQLiteStorage implements the Storage interface using SQLite.
//
// A writable store owns exactly one database connection. All mutating
// operations hold mu for their whole transaction, so writes are serialized
// within the process; the database file lock serializes them across processes.
type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	readOnly bool
	mu       sync.Mutex
	closed   atomic.Bool

	generateHashID hashIDFunc
}

var _ storage.Storage = (*SQLiteStorage)(nil)

// dbExecutor is satisfied by *sql.DB and *sql.Tx so query helpers can run
// inside or outside a transaction.
type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// New opens (creating if needed) a writable database at path.
func New(ctx context.Context, path string) (*SQLiteStorage, error) {
	return NewWithTimeout(ctx, path, DefaultLockTimeout)
}

// NewWithTimeout opens a writable database with a custom busy timeout.
func NewWithTimeout(ctx context.Context, path string, lockTimeout time.Duration) (*SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", buildDSN(path, false, lockTimeout))
	if err != nil {
		return nil, wrapDBError("open database", err)
	}
	// One shared connection: the writer is the only connection this store uses.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, wrapDBError("ping database", err)
	}

	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	debug.Logf("sqlite: opened %s (lock timeout %s)", path, lockTimeout)
	return &SQLiteStorage{
		db:             db,
		dbPath:         path,
		generateHashID: idgen.GenerateHashID,
	}, nil
}

// NewReadOnly opens an independent read-only handle on an existing database.
// Readers on this handle never block the writer.
func NewReadOnly(ctx context.Context, path string) (*SQLiteStorage, error) {
	return NewReadOnlyWithTimeout(ctx, path, DefaultLockTimeout)
}

// NewReadOnlyWithTimeout opens a read-only handle with a custom busy timeout.
func NewReadOnlyWithTimeout(ctx context.Context, path string, lockTimeout time.Duration) (*SQLiteStorage, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &storage.DBError{Kind: storage.KindConnection, Op: "open read-only database", Err: err}
	}

	db, err := sql.Open("sqlite3", buildDSN(path, true, lockTimeout))
	if err != nil {
		return nil, wrapDBError("open read-only database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, wrapDBError("ping read-only database", err)
	}

	var name string
	err = db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'issues'`).Scan(&name)
	if err != nil {
		_ = db.Close()
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", path, storage.ErrNotInitialized)
		}
		return nil, wrapDBError("check schema", err)
	}

	return &SQLiteStorage{
		db:             db,
		dbPath:         path,
		readOnly:       true,
		generateHashID: idgen.GenerateHashID,
	}, nil
}

func buildDSN(path string, readOnly bool, lockTimeout time.Duration) string {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", path, lockTimeout.Milliseconds())
	if readOnly {
		return dsn + "&mode=ro"
	}
	return dsn + "&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// Close closes the database connection. Closing twice is a no-op.
func (s *SQLiteStorage) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// IsReadOnly reports whether the store was opened with NewReadOnly.
func (s *SQLiteStorage) IsReadOnly() bool {
	return s.readOnly
}

// UnderlyingDB exposes the connection for integrity checks.
func (s *SQLiteStorage) UnderlyingDB() *sql.DB {
	return s.db
}

// withTx runs fn inside a BEGIN IMMEDIATE transaction while holding the writer
// lock. fn's error is returned unchanged; the transaction is rolled back on
// error or panic.
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.readOnly {
		return storage.ErrReadOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapTxError("begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapTxError("commit transaction", err)
	}
	committed = true
	return nil
}
