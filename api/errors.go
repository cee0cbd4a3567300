// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-sfu.

package api

import "fmt"

// Common errors used across the library.
var (
	ErrInvalidArgument     = fmt.Errorf("invalid argument")
	ErrNotSupported        = fmt.Errorf("operation not supported")
	ErrNotFound            = fmt.Errorf("resource not found")
	ErrAlreadyExists       = fmt.Errorf("resource already exists")
	ErrMeasurementMismatch = fmt.Errorf("load measurement kind mismatch")
)

// Buffer misuse conditions. The allocator only ever logs these; they are exported
// so log consumers and tests can match on them.
var (
	ErrDoubleReturn    = fmt.Errorf("buffer returned twice")
	ErrUnknownReturn   = fmt.Errorf("buffer was not handed out by this pool")
	ErrOversizedReturn = fmt.Errorf("returned buffer exceeds largest size band")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeNotSupported
	ErrCodeAlreadyExists
	ErrCodeNotFound
	ErrCodeInternal
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Unwrap exposes the sentinel the error was built from, if any.
func (e *Error) Unwrap() error { return e.cause }

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WrapError creates a structured error carrying cause for errors.Is matching.
func WrapError(code ErrorCode, cause error, message string) *Error {
	e := NewError(code, message)
	e.cause = cause
	return e
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
