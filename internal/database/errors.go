package database

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

var (
	// ErrExecFailed marks every statement that failed on the driver, network or server.
	ErrExecFailed = errors.New("database: statement execution failed")
	// ErrNoRows is returned by SelectOne when the query matched nothing.
	ErrNoRows = errors.New("database: no rows in result set")
	// ErrMissingConfig is returned by NewManager when a connection setting is empty.
	ErrMissingConfig = errors.New("database: missing required configuration")
	// ErrClosed is returned after End.
	ErrClosed = errors.New("database: connection manager is closed")
)

// fatalClassPrefix is the first SQLSTATE character of the server-side error classes
// (53 insufficient resources, 57 operator intervention, 58 system error)
// that indicate the pool itself is unhealthy.
const fatalClassPrefix = "5"

// ExecError wraps a driver error with the verb that produced it.
// It matches both ErrExecFailed and the underlying driver error.
type ExecError struct {
	Op  string
	Err error
}

func (e *ExecError) Error() string {
	return "database: " + e.Op + " failed: " + e.Err.Error()
}

func (e *ExecError) Unwrap() []error {
	return []error{ErrExecFailed, e.Err}
}

// statementScoped lists class 5x SQLSTATEs that concern a single statement
// rather than the pool: query_canceled (raised whenever a request context is
// cancelled mid-statement), class 54 program limits and class 55 object state
// errors such as lock_not_available.
func statementScoped(code pq.ErrorCode) bool {
	c := string(code)
	return c == "57014" || strings.HasPrefix(c, "54") || strings.HasPrefix(c, "55")
}

// IsFatalClass reports whether err is a PostgreSQL error whose SQLSTATE belongs to a
// server-side class that warrants recreating the pool.
func IsFatalClass(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return strings.HasPrefix(string(pqErr.Code), fatalClassPrefix) && !statementScoped(pqErr.Code)
}

// IsUniqueViolation reports whether err is a unique_violation (23505) on constraint.
// An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || strings.Contains(pqErr.Constraint, constraint)
}

// IsForeignKeyViolation reports whether err is a foreign_key_violation (23503).
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}
