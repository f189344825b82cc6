package hl7

import (
	"errors"
	"fmt"
)

// Code is the numeric code carried by fatal go-hl7 errors.
type Code int

// Fatal error codes. They are raised immediately and are never retried.
const (
	CodeMissingInput      Code = 1001
	CodeUnknownEscape     Code = 1002
	CodeInvalidDelimiters Code = 1003
	CodeInvalidHeader     Code = 1004
	CodeValidation        Code = 1005
	CodeChannelClosed     Code = 2001
	CodeConnectionTimeout Code = 2002
	CodeFileRead          Code = 3001
)

// Error is a fatal error with a numeric code.
//
// Two *Error values match with errors.Is when their codes are equal, so callers can test
// a detailed error against the package sentinels:
//
//	if errors.Is(err, hl7.ErrMissingInput) { ... }
type Error struct {
	Code Code
	Msg  string
	Err  error
}

// NewError creates a new *Error with the given code and message.
func NewError(code Code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hl7 error %d: %s: %v", e.Code, e.Msg, e.Err)
	}

	return fmt.Sprintf("hl7 error %d: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return t.Code == e.Code
}

// Wrap returns a copy of e with cause attached and an optional detail appended to the message.
func (e *Error) Wrap(cause error, detail string) *Error {
	msg := e.Msg
	if detail != "" {
		msg = msg + ": " + detail
	}

	return &Error{Code: e.Code, Msg: msg, Err: cause}
}

// IsFatal reports whether err carries a go-hl7 error code.
func IsFatal(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

var (
	// ErrMissingInput indicates that escape or unescape received no value at all.
	ErrMissingInput = NewError(CodeMissingInput, "missing input value")

	// ErrUnknownEscape indicates a reserved character without an escape code mapping.
	ErrUnknownEscape = NewError(CodeUnknownEscape, "unrecognized escape sequence")

	// ErrInvalidDelimiters indicates a delimiter set that is not 6 distinct characters.
	ErrInvalidDelimiters = NewError(CodeInvalidDelimiters, "invalid delimiter set")

	// ErrInvalidHeader indicates that an MSH segment could not be parsed.
	ErrInvalidHeader = NewError(CodeInvalidHeader, "invalid message header")

	// ErrValidation indicates that a header validator rejected a message.
	ErrValidation = NewError(CodeValidation, "header validation failed")

	// ErrFileRead indicates that a batch file could not be read.
	ErrFileRead = NewError(CodeFileRead, "failed to read batch file")
)
