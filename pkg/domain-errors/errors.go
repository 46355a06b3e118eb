// Package domainerrors carries coded errors across service boundaries.
//
// Services create errors with a Code so transports can translate them without
// string matching:
//
//	return dErrors.New(dErrors.CodeValidation, "origin is required")
//	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save marker")
//
// Callers branch with HasCode or GetCode. Verification failures are never
// modelled as errors; they are returned as result values.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error category.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeInvalidRequest     Code = "invalid_request"
	CodeInvariantViolation Code = "invariant_violation"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeRateLimited        Code = "rate_limit_exceeded"
	CodeInternal           Code = "internal_error"

	// Protocol-specific codes.
	CodeInvalidExitMarker Code = "invalid_exit_marker"
	CodeParseFailure      Code = "parse_failure"
	CodeUnknownPolicy     Code = "unknown_policy"
	CodeUnknownTool       Code = "unknown_tool"
)

// Error is a coded error. The wrapped cause is kept for logging and errors.Is
// but never rendered to clients for internal codes.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err yields nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// GetCode returns the outermost code in the chain, or CodeInternal for
// uncoded errors.
func GetCode(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether any error in the chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is errors.Is, re-exported so callers need a single import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// ClientMessage is the description safe to return to callers.
func ClientMessage(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Code != CodeInternal {
		return de.Message
	}
	return ""
}
