package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// Configuration errors - unknown cohort/interval/unit, incompatible options
	ErrorTypeConfig ErrorType = iota
	// Source errors - repository unreadable or not a repository
	ErrorTypeSource
	// Record errors - a single malformed commit record
	ErrorTypeRecord
	// Store errors - database unavailable or corrupt
	ErrorTypeStore
	// Internal errors - unexpected internal state
	ErrorTypeInternal
)

// Severity represents how critical an error is
type Severity int

const (
	// SeverityLow - skipped item, run continues
	SeverityLow Severity = iota
	// SeverityMedium - skipped input, reported at end of run
	SeverityMedium
	// SeverityCritical - aborts the run
	SeverityCritical
)

// Error represents a structured error with context
type Error struct {
	Type     ErrorType
	Severity Severity
	Message  string
	Cause    error
	Context  map[string]interface{}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is matches any *Error of the same type, so errors.Is(err, &Error{Type: ErrorTypeSource}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsFatal returns true if this error should stop execution
func (e *Error) IsFatal() bool {
	return e.Severity == SeverityCritical
}

// DetailedString returns a detailed error message with context
func (e *Error) DetailedString() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] [%s] %s\n",
		severityString(e.Severity),
		typeString(e.Type),
		e.Message))

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("Caused by: %v\n", e.Cause))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString("Context:\n")
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, e.Context[k]))
		}
	}

	return sb.String()
}

func typeString(t ErrorType) string {
	switch t {
	case ErrorTypeConfig:
		return "CONFIG"
	case ErrorTypeSource:
		return "SOURCE"
	case ErrorTypeRecord:
		return "RECORD"
	case ErrorTypeStore:
		return "STORE"
	case ErrorTypeInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

func severityString(s Severity) string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// New creates a new error with the given type, severity, and message
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{
		Type:     errType,
		Severity: severity,
		Message:  message,
		Context:  make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Type:     errType,
		Severity: severity,
		Message:  message,
		Cause:    err,
		Context:  make(map[string]interface{}),
	}
}

// ConfigError creates a configuration error
func ConfigError(message string) *Error {
	return New(ErrorTypeConfig, SeverityCritical, message)
}

// ConfigErrorf creates a configuration error with formatting
func ConfigErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeConfig, SeverityCritical, fmt.Sprintf(format, args...))
}

// SourceError wraps a failure to read a repository. The repository is skipped.
func SourceError(err error, repo string) *Error {
	return Wrap(err, ErrorTypeSource, SeverityMedium, fmt.Sprintf("repository %s", repo)).
		WithContext("repo", repo)
}

// RecordErrorf creates a malformed-record error. The record is skipped.
func RecordErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeRecord, SeverityLow, fmt.Sprintf(format, args...))
}

// StoreError wraps a database error
func StoreError(err error, message string) *Error {
	return Wrap(err, ErrorTypeStore, SeverityCritical, message)
}

// StoreErrorf wraps a database error with formatting
func StoreErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeStore, SeverityCritical, fmt.Sprintf(format, args...))
}

// InternalErrorf creates an internal error with formatting
func InternalErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeInternal, SeverityCritical, fmt.Sprintf(format, args...))
}

// IsFatal reports whether err, or any *Error in its chain, must stop execution.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.IsFatal()
	}
	return false
}

// IsType reports whether err carries an *Error of the given type anywhere in its chain.
func IsType(err error, errType ErrorType) bool {
	return errors.Is(err, &Error{Type: errType})
}

// GetType returns the type of an error
func GetType(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// Details returns the detailed form of the first *Error in the chain, or the plain
// message for other errors
func Details(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.DetailedString()
	}
	return err.Error() + "\n"
}

// ExitCode maps an error to a process exit status: 0 for nil, 2 for configuration
// errors, 3 for skipped repositories, 4 for store errors and 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch GetType(err) {
	case ErrorTypeConfig:
		return 2
	case ErrorTypeSource:
		return 3
	case ErrorTypeStore:
		return 4
	default:
		return 1
	}
}
