// Package errors defines the closed, wire-stable error taxonomy shared by the
// dispatcher and every adapter. Downstream middleware keys on the code strings,
// so they must never change.
package errors

import (
	"errors"
	"fmt"
)

// Code identifies a dispatch failure class.
type Code string

const (
	CodeClientNotProvided        Code = "CLIENT_NOT_PROVIDED"
	CodeProviderNotFound         Code = "PROVIDER_NOT_FOUND"
	CodeCommandNotFound          Code = "COMMAND_NOT_FOUND"
	CodeInvalidCommandParameters Code = "INVALID_COMMAND_PARAMETERS"
	CodeAdapterHandleReturnedNil Code = "ADAPTER_HANDLE_RETURNED_NULL" // reserved, informational
	CodeContentTypeNotSupported  Code = "CONTENT_TYPE_NOT_SUPPORTED"
	CodeInvalidContent           Code = "INVALID_CONTENT"
)

// Error is a structured dispatch error carrying a stable code, a human-readable
// message, and optional metadata for error-handling middleware.
type Error struct {
	Code    Code
	Message string
	Meta    map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a taxonomy error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a taxonomy error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a taxonomy error around a cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Err: cause}
}

// With attaches a metadata entry and returns the error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Meta == nil {
		e.Meta = make(map[string]any)
	}
	e.Meta[key] = value
	return e
}

// CodeOf extracts the taxonomy code from an error chain.
func CodeOf(err error) (Code, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

// HasCode reports whether the error chain carries the given code.
func HasCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
