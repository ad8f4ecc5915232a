package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"syscall"

	"github.com/go-sql-driver/mysql"

	"db-sync-tool/internal/security"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// ErrorTypeConfiguration represents missing or contradictory
	// configuration, including an unresolvable sync mode
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeParse represents credential extraction failures
	ErrorTypeParse ErrorType = "parse"
	// ErrorTypeConnection represents SSH and network connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeIdentifier represents table or database name validation errors
	ErrorTypeIdentifier ErrorType = "identifier"
	// ErrorTypeDatabase represents dump/import/truncate command failures
	// and dump verification mismatches
	ErrorTypeDatabase ErrorType = "database"
	// ErrorTypeTransfer represents dump file transfer failures
	ErrorTypeTransfer ErrorType = "transfer"
	// ErrorTypeInterruption represents user interruption
	ErrorTypeInterruption ErrorType = "interruption"
	// ErrorTypeUnknown represents unknown errors
	ErrorTypeUnknown ErrorType = "unknown"
)

// Process exit codes communicated to callers.
const (
	ExitSuccess       = 0
	ExitGeneral       = 1
	ExitConfiguration = 2
	ExitConnection    = 3
	ExitDatabase      = 4
)

// SyncError represents an application-specific error with context
type SyncError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface. Credential material is redacted
// before the message is rendered.
func (e *SyncError) Error() string {
	msg := security.RedactCommand(e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %s)", e.Type, msg, security.RedactCommand(e.Cause.Error()))
	}
	return fmt.Sprintf("%s: %s", e.Type, msg)
}

// Unwrap returns the underlying error
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *SyncError) WithContext(key string, value interface{}) *SyncError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new sync error
func New(errorType ErrorType, message string, cause error) *SyncError {
	return &SyncError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Newf creates a new sync error with a formatted message
func Newf(errorType ErrorType, format string, args ...interface{}) *SyncError {
	return New(errorType, fmt.Sprintf(format, args...), nil)
}

// TypeOf returns the error type of an error
func TypeOf(err error) ErrorType {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Type
	}
	var identErr *security.InvalidIdentifierError
	if errors.As(err, &identErr) {
		return ErrorTypeIdentifier
	}
	return ErrorTypeUnknown
}

// ExitCode maps an error to the process exit code taxonomy:
// 0 success, 1 general, 2 configuration, 3 connection, 4 database.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch TypeOf(err) {
	case ErrorTypeConfiguration, ErrorTypeParse, ErrorTypeIdentifier:
		return ExitConfiguration
	case ErrorTypeConnection, ErrorTypeTransfer:
		return ExitConnection
	case ErrorTypeDatabase:
		return ExitDatabase
	default:
		return ExitGeneral
	}
}

// Classify analyzes an error and returns a SyncError with appropriate
// classification. Errors that are already a SyncError pass through.
func Classify(err error) *SyncError {
	if err == nil {
		return nil
	}

	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr
	}

	var identErr *security.InvalidIdentifierError
	if errors.As(err, &identErr) {
		return New(ErrorTypeIdentifier, identErr.Error(), err)
	}

	if mysqlErr := classifyMySQLError(err); mysqlErr != nil {
		return mysqlErr
	}
	if netErr := classifyNetworkError(err); netErr != nil {
		return netErr
	}
	if ctxErr := classifyContextError(err); ctxErr != nil {
		return ctxErr
	}
	if fsErr := classifyFileSystemError(err); fsErr != nil {
		return fsErr
	}

	return New(ErrorTypeUnknown, "an unexpected error occurred", err)
}

// mysqlDiagnostic matches the error line the mysql and mysqldump
// clients print on stderr, e.g.
// ERROR 1045 (28000): Access denied for user 'app'@'db-host'
var mysqlDiagnostic = regexp.MustCompile(`ERROR (\d+) \(([0-9A-Z]{5})\): (.+)`)

// ClassifyDatabase wraps a failed mysql or mysqldump invocation. A
// client diagnostic embedded in the error text is promoted to a driver
// error so access-denied and unreachable-server cases keep their
// error-number classification; anything else is a plain database error.
func ClassifyDatabase(message string, err error) *SyncError {
	if driverErr := parseMySQLDiagnostic(err); driverErr != nil {
		classified := classifyMySQLError(driverErr)
		classified.Message = message + ": " + classified.Message
		return classified
	}
	return New(ErrorTypeDatabase, message, err)
}

// parseMySQLDiagnostic extracts a driver error from the stderr text a
// runner folds into its command-failed error.
func parseMySQLDiagnostic(err error) *mysql.MySQLError {
	if err == nil {
		return nil
	}
	m := mysqlDiagnostic.FindStringSubmatch(err.Error())
	if m == nil {
		return nil
	}
	number, convErr := strconv.ParseUint(m[1], 10, 16)
	if convErr != nil {
		return nil
	}
	driverErr := &mysql.MySQLError{Number: uint16(number), Message: m[3]}
	copy(driverErr.SQLState[:], m[2])
	return driverErr
}

// classifyMySQLError classifies MySQL-specific errors
func classifyMySQLError(err error) *SyncError {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return nil
	}

	switch mysqlErr.Number {
	case 1045: // Access denied
		return New(ErrorTypeDatabase,
			"database access denied - check username and password", err).
			WithContext("mysql_error_code", mysqlErr.Number)
	case 1049: // Unknown database
		return New(ErrorTypeDatabase, "database does not exist", err).
			WithContext("mysql_error_code", mysqlErr.Number)
	case 1146: // Table doesn't exist
		return New(ErrorTypeDatabase, "table does not exist", err).
			WithContext("mysql_error_code", mysqlErr.Number)
	case 2003: // Can't connect to MySQL server
		return New(ErrorTypeConnection,
			"cannot connect to MySQL server - server may be down or unreachable", err).
			WithContext("mysql_error_code", mysqlErr.Number)
	case 2006: // MySQL server has gone away
		return New(ErrorTypeConnection, "MySQL server connection lost", err).
			WithContext("mysql_error_code", mysqlErr.Number)
	default:
		return New(ErrorTypeDatabase,
			fmt.Sprintf("MySQL error: %s", mysqlErr.Message), err).
			WithContext("mysql_error_code", mysqlErr.Number)
	}
}

// classifyNetworkError classifies network-related errors
func classifyNetworkError(err error) *SyncError {
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return New(ErrorTypeConnection, "network operation timed out", err)
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "dial":
			return New(ErrorTypeConnection, "failed to establish network connection", err)
		case "read", "write":
			return New(ErrorTypeConnection, "network I/O error", err)
		}
	}

	return nil
}

// classifyContextError classifies context-related errors
func classifyContextError(err error) *SyncError {
	if errors.Is(err, context.DeadlineExceeded) {
		return New(ErrorTypeConnection, "operation timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return New(ErrorTypeInterruption, "operation was canceled", err)
	}
	return nil
}

// classifyFileSystemError classifies file system errors
func classifyFileSystemError(err error) *SyncError {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		switch pathErr.Err {
		case syscall.ENOENT:
			return New(ErrorTypeConfiguration,
				fmt.Sprintf("file or directory not found: %s", pathErr.Path), err)
		case syscall.EACCES:
			return New(ErrorTypeConfiguration,
				fmt.Sprintf("permission denied: %s", pathErr.Path), err)
		case syscall.ENOSPC:
			return New(ErrorTypeDatabase, "no space left on device", err)
		}
	}
	return nil
}

// Wrap wraps an existing error with additional context, preserving its type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return New(syncErr.Type, message, err)
	}

	classified := Classify(err)
	classified.Message = message
	return classified
}

// Is reports whether err carries the given error type.
func Is(err error, errorType ErrorType) bool {
	return TypeOf(err) == errorType
}
