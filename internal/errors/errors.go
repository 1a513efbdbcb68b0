// Package errors provides standardized domain errors with codes for the MeshVault pipeline.
//
// Usage:
//
//	// In the extractor - return typed errors
//	if !backend.Supports(ext) {
//	    return errors.FormatUnsupported("no backend for " + ext)
//	}
//
//	// In callers - check with errors.Is
//	if errors.Is(err, errors.ErrParseFailed) {
//	    // catalog with degraded metadata instead of dropping the file
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the pipeline.
const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeAlreadyExists     Code = "ALREADY_EXISTS"
	CodeValidation        Code = "VALIDATION"
	CodeConflict          Code = "CONFLICT"
	CodeInternal          Code = "INTERNAL"
	CodeIO                Code = "IO_ERROR"
	CodeFormatUnsupported Code = "FORMAT_UNSUPPORTED"
	CodeParseFailed       Code = "PARSE_FAILED"
	CodeRenderFailed      Code = "RENDER_FAILED"
	CodeHashFailed        Code = "HASH_ERROR"
	CodeScanInProgress    Code = "SCAN_IN_PROGRESS"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
// The route layer is external to this module but maps codes directly.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeConflict:
		return http.StatusConflict
	case CodeValidation, CodeFormatUnsupported:
		return http.StatusBadRequest
	case CodeScanInProgress:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "not found"}
	ErrAlreadyExists     = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrValidation        = &Error{Code: CodeValidation, Message: "validation error"}
	ErrConflict          = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal          = &Error{Code: CodeInternal, Message: "internal error"}
	ErrIO                = &Error{Code: CodeIO, Message: "io error"}
	ErrFormatUnsupported = &Error{Code: CodeFormatUnsupported, Message: "format unsupported"}
	ErrParseFailed       = &Error{Code: CodeParseFailed, Message: "parse failed"}
	ErrRenderFailed      = &Error{Code: CodeRenderFailed, Message: "render failed"}
	ErrHashFailed        = &Error{Code: CodeHashFailed, Message: "hash failed"}
	ErrScanInProgress    = &Error{Code: CodeScanInProgress, Message: "scan already in progress"}
)

// Constructor functions for creating errors with custom messages.

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// AlreadyExists creates an already exists error.
func AlreadyExists(msg string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a conflict error.
func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// IO creates an io error for an unreadable file. The scan skips the file
// and leaves prior catalog state intact.
func IO(msg string) *Error {
	return &Error{Code: CodeIO, Message: msg}
}

// IOf creates an io error with formatted message.
func IOf(format string, args ...any) *Error {
	return &Error{Code: CodeIO, Message: fmt.Sprintf(format, args...)}
}

// FormatUnsupported creates a format unsupported error. Files hitting this
// are still cataloged with size/hash only.
func FormatUnsupported(msg string) *Error {
	return &Error{Code: CodeFormatUnsupported, Message: msg}
}

// ParseFailed creates a parse failed error. Files hitting this are still
// cataloged, flagged metadata-incomplete.
func ParseFailed(msg string) *Error {
	return &Error{Code: CodeParseFailed, Message: msg}
}

// ParseFailedf creates a parse failed error with formatted message.
func ParseFailedf(format string, args ...any) *Error {
	return &Error{Code: CodeParseFailed, Message: fmt.Sprintf(format, args...)}
}

// RenderFailed creates a render failed error. The thumbnail pipeline falls
// back to the placeholder image instead of surfacing this to a scan.
func RenderFailed(msg string) *Error {
	return &Error{Code: CodeRenderFailed, Message: msg}
}

// RenderFailedf creates a render failed error with formatted message.
func RenderFailedf(format string, args ...any) *Error {
	return &Error{Code: CodeRenderFailed, Message: fmt.Sprintf(format, args...)}
}

// HashFailed creates a hash error. The file is skipped this pass and
// retried on the next scan.
func HashFailed(msg string) *Error {
	return &Error{Code: CodeHashFailed, Message: msg}
}

// ScanInProgress creates an informational no-op error returned when a scan
// trigger is coalesced into an already-running scan.
func ScanInProgress(msg string) *Error {
	return &Error{Code: CodeScanInProgress, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
