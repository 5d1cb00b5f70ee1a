// Package errors provides structured error types for depreview.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the HTTP server
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes fall into a few families:
//   - UNKNOWN_FORMAT, INVALID_*: the submitted manifest or token could not be
//     understood. These are expected, user-facing conditions.
//   - NOT_FOUND, PACKAGE_NOT_FOUND: a list or package does not exist.
//   - NETWORK_*: registry communication failures.
//   - INTERNAL_*: unexpected internal errors.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidLockFile, "package %d has no name", i)
//	if errors.Is(err, errors.ErrCodeInvalidLockFile) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "failed to fetch %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Manifest ingestion errors
	ErrCodeUnknownFormat      Code = "UNKNOWN_FORMAT"
	ErrCodeInvalidLockFile    Code = "INVALID_LOCK_FILE"
	ErrCodeInvalidProjectFile Code = "INVALID_PROJECT_FILE"
	ErrCodeInvalidVersionSpec Code = "INVALID_VERSION_SPEC"
	ErrCodeInvalidEncoding    Code = "INVALID_ENCODING"
	ErrCodeInvalidModFile     Code = "INVALID_MOD_FILE"

	// Input validation errors
	ErrCodeInvalidID       Code = "INVALID_ID"
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidRegistry Code = "INVALID_REGISTRY"
	ErrCodeInvalidPackage  Code = "INVALID_PACKAGE"
	ErrCodeInvalidConfig   Code = "INVALID_CONFIG"

	// Resource not found errors
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodePackageNotFound Code = "PACKAGE_NOT_FOUND"

	// Network errors
	ErrCodeNetwork     Code = "NETWORK_ERROR"
	ErrCodeRateLimited Code = "RATE_LIMITED"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsUserError reports whether err carries a code describing bad input rather
// than an internal or upstream failure.
func IsUserError(err error) bool {
	switch GetCode(err) {
	case ErrCodeUnknownFormat, ErrCodeInvalidLockFile, ErrCodeInvalidProjectFile,
		ErrCodeInvalidVersionSpec, ErrCodeInvalidEncoding, ErrCodeInvalidModFile,
		ErrCodeInvalidInput, ErrCodeInvalidRegistry, ErrCodeInvalidPackage:
		return true
	}
	return false
}
