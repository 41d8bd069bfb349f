package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/ncruces/go-sqlite3"

	"github.com/fwindolf/beads-rs-sub001/internal/storage"
)

// wrapDBError classifies a driver error into a storage.DBError. Errors that
// are already classified, and nil, pass through unchanged.
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isClassified(err) {
		return err
	}
	return &storage.DBError{Kind: classify(err, storage.KindQuery), Op: op, Err: err}
}

// wrapTxError is wrapDBError for BEGIN/COMMIT failures, which default to the
// retryable transaction kind.
func wrapTxError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isClassified(err) {
		return err
	}
	return &storage.DBError{Kind: classify(err, storage.KindTransaction), Op: op, Err: err}
}

func isClassified(err error) bool {
	var dbErr *storage.DBError
	return errors.As(err, &dbErr) ||
		errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, storage.ErrValidation) ||
		errors.Is(err, storage.ErrCycle) ||
		errors.Is(err, storage.ErrPrefixMismatch) ||
		errors.Is(err, storage.ErrAlreadyClaimed) ||
		errors.Is(err, storage.ErrNotInitialized) ||
		errors.Is(err, storage.ErrReadOnly)
}

func classify(err error, fallback storage.ErrorKind) storage.ErrorKind {
	var serr *sqlite3.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.BUSY, sqlite3.LOCKED:
			return storage.KindDatabaseLocked
		case sqlite3.CANTOPEN, sqlite3.NOTADB, sqlite3.IOERR:
			return storage.KindConnection
		case sqlite3.CONSTRAINT, sqlite3.MISMATCH, sqlite3.RANGE:
			return storage.KindQuery
		}
	}
	switch {
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		return storage.KindConnection
	case errors.Is(err, sql.ErrTxDone):
		return storage.KindTransaction
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return storage.KindInternal
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy") {
		return storage.KindDatabaseLocked
	}
	return fallback
}

// isUniqueViolation reports whether err is a UNIQUE/PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
