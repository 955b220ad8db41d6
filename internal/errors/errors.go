// Package errors provides structured error types for Waypoint. All errors
// include a category, code, message, and retryable flag for consistent
// handling across components and status mapping at the HTTP layer.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryStore      ErrorCategory = "STORE"
	ErrCategoryTable      ErrorCategory = "TABLE"
	ErrCategoryTracker    ErrorCategory = "TRACKER"
	ErrCategoryExport     ErrorCategory = "EXPORT"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeBadContinuation = "BAD_CONTINUATION"

	// Store codes
	CodeReadFailed  = "READ_FAILED"
	CodeWriteFailed = "WRITE_FAILED"

	// Table codes
	CodeTableNotFound = "TABLE_NOT_FOUND"
	CodeIndexNotFound = "INDEX_NOT_FOUND"
	CodeItemNotFound  = "ITEM_NOT_FOUND"

	// Tracker codes
	CodePositionUnavailable = "POSITION_UNAVAILABLE"

	// Export codes
	CodeSnapshotFailed   = "SNAPSHOT_FAILED"
	CodeUploadFailed     = "UPLOAD_FAILED"
	CodeChecksumMismatch = "CHECKSUM_MISMATCH"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// WaypointError is the structured error type used throughout the system.
type WaypointError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *WaypointError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *WaypointError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *WaypointError) Is(target error) bool {
	var t *WaypointError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new WaypointError.
func New(category ErrorCategory, code, message string) *WaypointError {
	return &WaypointError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new WaypointError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *WaypointError {
	return &WaypointError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var we *WaypointError
	if errors.As(err, &we) {
		return we.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a WaypointError.
func GetCategory(err error) ErrorCategory {
	var we *WaypointError
	if errors.As(err, &we) {
		return we.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a WaypointError.
func GetCode(err error) string {
	var we *WaypointError
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Primitive I/O and
// upload failures may succeed on retry; everything else is deterministic.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStore && code == CodeReadFailed:
		return true
	case category == ErrCategoryStore && code == CodeWriteFailed:
		return true
	case category == ErrCategoryTracker && code == CodePositionUnavailable:
		return true
	case category == ErrCategoryExport && code == CodeUploadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *WaypointError {
	return New(ErrCategoryValidation, code, message)
}

func NewStoreError(code, message string, cause error) *WaypointError {
	return Wrap(ErrCategoryStore, code, message, cause)
}

func NewTableError(code, message string, cause error) *WaypointError {
	return Wrap(ErrCategoryTable, code, message, cause)
}

func NewExportError(code, message string, cause error) *WaypointError {
	return Wrap(ErrCategoryExport, code, message, cause)
}

func NewInternalError(message string, cause error) *WaypointError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
