package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per error kind surfaced by storage backends.
// Structured error types below match them through errors.Is.
var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyClaimed = errors.New("already claimed")
	ErrNotInitialized = errors.New("database not initialized")
	ErrPrefixMismatch = errors.New("prefix mismatch")
	ErrValidation     = errors.New("validation failed")
	ErrCycle          = errors.New("dependency cycle detected")
	ErrDatabaseLocked = errors.New("database is locked")
	ErrConnection     = errors.New("database connection error")
	ErrTransaction    = errors.New("transaction error")
	ErrMigration      = errors.New("migration error")
	ErrQuery          = errors.New("query error")
	ErrSerialization  = errors.New("serialization error")
	ErrInternal       = errors.New("internal error")

	ErrReadOnly    = errors.New("storage is read-only")
	ErrIDExhausted = errors.New("unable to generate unique issue ID")
)

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string // "issue", "dependency", "config"
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NewNotFound builds a NotFoundError.
func NewNotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ValidationError reports input rejected before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidation builds a ValidationError.
func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// PrefixMismatchError reports an explicit ID that does not carry the database prefix.
type PrefixMismatchError struct {
	ID       string
	Expected string
}

func (e *PrefixMismatchError) Error() string {
	return fmt.Sprintf("issue ID '%s' does not match configured prefix '%s'", e.ID, e.Expected)
}

func (e *PrefixMismatchError) Is(target error) bool { return target == ErrPrefixMismatch }

// CycleError reports a dependency that would close a cycle.
type CycleError struct {
	IssueID     string
	DependsOnID string
	Type        string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cannot add %s dependency: would create a cycle (%s → %s → ... → %s)",
		e.Type, e.IssueID, e.DependsOnID, e.IssueID)
}

func (e *CycleError) Is(target error) bool { return target == ErrCycle }

// AlreadyClaimedError reports a claim on an issue assigned to someone else.
type AlreadyClaimedError struct {
	ID       string
	Assignee string
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("issue %s already claimed by %s", e.ID, e.Assignee)
}

func (e *AlreadyClaimedError) Is(target error) bool { return target == ErrAlreadyClaimed }

// ErrorKind classifies database-level failures.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindDatabaseLocked
	KindConnection
	KindTransaction
	KindMigration
	KindQuery
	KindSerialization
)

var kindSentinels = map[ErrorKind]error{
	KindInternal:       ErrInternal,
	KindDatabaseLocked: ErrDatabaseLocked,
	KindConnection:     ErrConnection,
	KindTransaction:    ErrTransaction,
	KindMigration:      ErrMigration,
	KindQuery:          ErrQuery,
	KindSerialization:  ErrSerialization,
}

func (k ErrorKind) String() string {
	return kindSentinels[k].Error()
}

// DBError wraps a backend failure with its kind and the operation that hit it.
type DBError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *DBError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *DBError) Unwrap() error { return e.Err }

func (e *DBError) Is(target error) bool { return target == kindSentinels[e.Kind] }

// IsRetryable reports whether err is transient: a locked database, a
// connection failure or a failed transaction. The caller decides whether and
// how to retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDatabaseLocked) ||
		errors.Is(err, ErrConnection) ||
		errors.Is(err, ErrTransaction)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
