package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// Configuration errors - missing or invalid configuration
	ErrorTypeConfig ErrorType = iota
	// Validation errors - invalid input data
	ErrorTypeValidation
	// Database errors - connection setup or query failures outside a write
	ErrorTypeDatabase
	// Provider unreachable, timed out, or transport failure after retries
	ErrorTypeProviderUnavailable
	// Provider answered with a non-success status
	ErrorTypeProviderRejected
	// Raw record could not be mapped to a paper
	ErrorTypeNormalization
	// Graph write transaction failed
	ErrorTypeStoreWrite
	// Analytics engine missing, failed, or had nothing to rank
	ErrorTypeAnalyticsUnavailable
	// FileSystem errors - file I/O failures
	ErrorTypeFileSystem
	// Internal errors - unexpected internal state
	ErrorTypeInternal
)

// Severity represents how critical an error is
type Severity int

const (
	// SeverityLow - can continue with degraded functionality
	SeverityLow Severity = iota
	// SeverityMedium - should be addressed but not fatal
	SeverityMedium
	// SeverityHigh - significant issue, may impact functionality
	SeverityHigh
	// SeverityCritical - must be addressed, stops execution
	SeverityCritical
)

// Sentinels for errors.Is matching. Matching is by ErrorType only.
var (
	ErrProviderUnavailable  = &Error{Type: ErrorTypeProviderUnavailable, Message: "provider unavailable"}
	ErrProviderRejected     = &Error{Type: ErrorTypeProviderRejected, Message: "provider rejected request"}
	ErrNormalization        = &Error{Type: ErrorTypeNormalization, Message: "normalization failure"}
	ErrStoreWrite           = &Error{Type: ErrorTypeStoreWrite, Message: "store write failure"}
	ErrAnalyticsUnavailable = &Error{Type: ErrorTypeAnalyticsUnavailable, Message: "analytics unavailable"}
	ErrValidation           = &Error{Type: ErrorTypeValidation, Message: "validation failure"}
	ErrConfig               = &Error{Type: ErrorTypeConfig, Message: "configuration error"}
	ErrDatabase             = &Error{Type: ErrorTypeDatabase, Message: "database error"}
)

const statusCodeKey = "status_code"

// Error represents a structured error with context
type Error struct {
	Type       ErrorType
	Severity   Severity
	Message    string
	Cause      error
	Context    map[string]interface{}
	StackTrace string
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

// Is checks if this error matches the target error type
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
		e.Type.String(),
		e.Message))

	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("Caused by: %v\n", e.Cause))
	}

	if len(e.Context) > 0 {
		sb.WriteString("Context:\n")
		for k, v := range e.Context {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, v))
		}
	}

	if e.StackTrace != "" {
		sb.WriteString(fmt.Sprintf("Stack trace:\n%s\n", e.StackTrace))
	}

	return sb.String()
}

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeConfig:
		return "CONFIG"
	case ErrorTypeValidation:
		return "VALIDATION"
	case ErrorTypeDatabase:
		return "DATABASE"
	case ErrorTypeProviderUnavailable:
		return "PROVIDER_UNAVAILABLE"
	case ErrorTypeProviderRejected:
		return "PROVIDER_REJECTED"
	case ErrorTypeNormalization:
		return "NORMALIZATION"
	case ErrorTypeStoreWrite:
		return "STORE_WRITE"
	case ErrorTypeAnalyticsUnavailable:
		return "ANALYTICS_UNAVAILABLE"
	case ErrorTypeFileSystem:
		return "FILESYSTEM"
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
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// captureStackTrace captures the current stack trace
func captureStackTrace(skip int) string {
	var sb strings.Builder
	for i := skip; i < skip+10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			break
		}
		sb.WriteString(fmt.Sprintf("  %s:%d %s\n", file, line, fn.Name()))
	}
	return sb.String()
}

// New creates a new error with the given type, severity, and message
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(3),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Cause:      err,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(3),
	}
}

// ConfigErrorf creates a configuration error with formatting
func ConfigErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeConfig, SeverityCritical, fmt.Sprintf(format, args...))
}

// ValidationErrorf creates a validation error with formatting
func ValidationErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeValidation, SeverityHigh, fmt.Sprintf(format, args...))
}

// DatabaseError wraps a database error
func DatabaseError(err error, message string) *Error {
	return Wrap(err, ErrorTypeDatabase, SeverityCritical, message)
}

// DatabaseErrorf wraps a database error with formatting
func DatabaseErrorf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, ErrorTypeDatabase, SeverityCritical, fmt.Sprintf(format, args...))
}

// ProviderUnavailable wraps a transport-level provider failure
func ProviderUnavailable(err error, message string) *Error {
	return Wrap(err, ErrorTypeProviderUnavailable, SeverityHigh, message)
}

// ProviderRejected records a non-success provider response
func ProviderRejected(statusCode int, message string) *Error {
	return New(ErrorTypeProviderRejected, SeverityMedium, message).
		WithContext(statusCodeKey, statusCode)
}

// NormalizationFailure creates a normalization error for a single record
func NormalizationFailure(message string) *Error {
	return New(ErrorTypeNormalization, SeverityLow, message)
}

// StoreWriteFailure wraps a failed graph write
func StoreWriteFailure(err error, message string) *Error {
	return Wrap(err, ErrorTypeStoreWrite, SeverityMedium, message)
}

// AnalyticsUnavailable wraps an analytics engine failure. err may be nil.
func AnalyticsUnavailable(err error, message string) *Error {
	if err == nil {
		return New(ErrorTypeAnalyticsUnavailable, SeverityHigh, message)
	}
	return Wrap(err, ErrorTypeAnalyticsUnavailable, SeverityHigh, message)
}

// FileSystemError wraps a filesystem error
func FileSystemError(err error, message string) *Error {
	return Wrap(err, ErrorTypeFileSystem, SeverityHigh, message)
}

// InternalErrorf creates an internal error with formatting
func InternalErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeInternal, SeverityCritical, fmt.Sprintf(format, args...))
}

// StatusCode returns the provider HTTP status attached to err, or 0.
func StatusCode(err error) int {
	var e *Error
	if !stderrors.As(err, &e) {
		return 0
	}
	if code, ok := e.Context[statusCodeKey].(int); ok {
		return code
	}
	return 0
}

// IsFatal checks if an error is fatal (should stop execution)
func IsFatal(err error) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.IsFatal()
	}
	return false
}

// GetType returns the type of an error
func GetType(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}
