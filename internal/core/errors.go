package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound indicates a missing record.
type ErrNotFound struct {
	Kind Kind
	ID   string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind.Label(), e.ID)
}

// ValidationError reports a missing required field or reference.
type ValidationError struct {
	Kind    Kind
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s: missing %s", e.Kind.Label(), e.Field)
}

// GuardError is returned when a deletion guard blocks a mutation. The report
// carries every referencing record so callers can present remediation.
type GuardError struct {
	Report GuardReport
}

func (e GuardError) Error() string {
	return e.Report.Message()
}

// StoreErrorKind classifies backing-store failures.
type StoreErrorKind string

// Backing-store failure categories.
const (
	StoreErrorPermission  StoreErrorKind = "permission"
	StoreErrorUnavailable StoreErrorKind = "unavailable"
	StoreErrorGeneric     StoreErrorKind = "generic"
)

// StoreError wraps a failure reported by the backing store.
type StoreError struct {
	Kind StoreErrorKind
	Op   string
	Err  error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e StoreError) Unwrap() error { return e.Err }

// ClassifyStoreError maps err onto a StoreError unless it already is a domain
// level failure (not found, validation, guard or rule violation).
func ClassifyStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		nf ErrNotFound
		ve ValidationError
		ge GuardError
		rv RuleViolationError
		se StoreError
	)
	if errors.As(err, &nf) || errors.As(err, &ve) || errors.As(err, &ge) || errors.As(err, &rv) || errors.As(err, &se) {
		return err
	}
	return StoreError{Kind: storeErrorKind(err), Op: op, Err: err}
}

func storeErrorKind(err error) StoreErrorKind {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission"), strings.Contains(msg, "insufficient"), strings.Contains(msg, "denied"):
		return StoreErrorPermission
	case strings.Contains(msg, "connection"), strings.Contains(msg, "unavailable"), strings.Contains(msg, "timeout"):
		return StoreErrorUnavailable
	default:
		return StoreErrorGeneric
	}
}

// PermissionRemediation is shown when the initial load fails because the
// backing store rejected the credentials in use.
const PermissionRemediation = `The application could not load data because the database rejected the request.

To fix this, grant the configured credentials read and write access:

1. Check the storage driver and connection settings (CONNECTCORE_STORAGE_DRIVER, CONNECTCORE_POSTGRES_DSN or CONNECTCORE_SQLITE_PATH).
2. For Postgres, grant SELECT, INSERT and UPDATE on the state table to the connecting role.
3. For SQLite, make sure the database file and its directory are writable by the current user.
4. Restart the application.`

// LoadError reports a failed initial workspace load.
type LoadError struct {
	Permission bool
	Err        error
}

// NewLoadError categorises an initial load failure.
func NewLoadError(err error) LoadError {
	msg := strings.ToLower(err.Error())
	return LoadError{
		Permission: strings.Contains(msg, "permission") || strings.Contains(msg, "missing or insufficient permissions"),
		Err:        err,
	}
}

// Title returns the headline for the failure.
func (e LoadError) Title() string {
	if e.Permission {
		return "Database Access Denied"
	}
	return "Initialization Error"
}

// Detail returns the user-facing explanation, with remediation steps for
// permission failures.
func (e LoadError) Detail() string {
	if e.Permission {
		return PermissionRemediation
	}
	return fmt.Sprintf("An unexpected error occurred while loading data: %v", e.Err)
}

func (e LoadError) Error() string {
	return fmt.Sprintf("%s: %v", strings.ToLower(e.Title()), e.Err)
}

func (e LoadError) Unwrap() error { return e.Err }
