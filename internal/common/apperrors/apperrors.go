// Package apperrors provides the application's error handling system. Errors
// form chains: a package declares a small set of sentinel errors, and call
// sites derive from them with New/Msg/Err so callers can match the sentinel
// with errors.Is while still seeing the specific failure. Errors carry an
// HTTP status code so the transport layer can map them without a lookup
// table.
package apperrors

import (
	"errors"
	"strings"
)

// Error is the interface implemented by all application errors. It extends
// the standard error interface with chaining and status-code management.
// Methods return Error to support chaining.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error                  // derives a new error using current as template
	Msg(msg string) Error                  // new error with message, wraps original
	MsgErr(msg string, err ...error) Error // new error with message, wraps extra errors
	Err(err ...error) Error                // attaches additional errors
	SetStatusCode(int) Error               // sets the HTTP status code
	StatusCode() int                       // returns the HTTP status code
	ErrorAll() string                      // full message including wrapped errors
	UnwrapAll() []error                    // all wrapped errors
}

type appError struct {
	msg           string
	base          error
	wrappedErrors []error
	statuscode    int
}

// New creates a root-level error with the given message.
func New(msg string) Error {
	return &appError{msg: msg}
}

func (e *appError) Error() string {
	return e.msg
}

// ErrorAll returns the message followed by all wrapped error messages.
func (e *appError) ErrorAll() string {
	var b strings.Builder
	b.WriteString(e.msg)
	for _, err := range e.wrappedErrors {
		if err == e.base {
			continue
		}
		b.WriteString(": ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the base error for compatibility with errors.Is / errors.As.
func (e *appError) Unwrap() error {
	return e.base
}

// UnwrapAll returns all wrapped errors in the order they were added.
func (e *appError) UnwrapAll() []error {
	return e.wrappedErrors
}

// New derives a fresh error using the current error as its base. The derived
// error inherits the status code and matches the base with errors.Is.
func (e *appError) New(msg string) Error {
	return &appError{
		msg:        msg,
		base:       e,
		statuscode: e.statuscode,
	}
}

// Msg creates a new error with a new message that wraps the original.
func (e *appError) Msg(msg string) Error {
	return &appError{
		msg:           msg,
		base:          e,
		wrappedErrors: append([]error{e}, e.wrappedErrors...),
		statuscode:    e.statuscode,
	}
}

// MsgErr creates a new error with a message and wraps additional errors.
func (e *appError) MsgErr(msg string, errs ...error) Error {
	return &appError{
		msg:           msg,
		base:          e,
		wrappedErrors: append([]error{e}, errs...),
		statuscode:    e.statuscode,
	}
}

// Err attaches additional errors while keeping the original message.
func (e *appError) Err(errs ...error) Error {
	return &appError{
		msg:           e.msg,
		base:          e,
		wrappedErrors: append([]error{e}, errs...),
		statuscode:    e.statuscode,
	}
}

// SetStatusCode returns a shallow copy with an updated status code.
func (e *appError) SetStatusCode(code int) Error {
	cp := *e
	cp.statuscode = code
	return &cp
}

// StatusCode returns the HTTP status code. Zero means unset.
func (e *appError) StatusCode() int {
	return e.statuscode
}

// Is checks the base error and all wrapped errors against the target.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(e.base, target) {
		return true
	}
	for _, err := range e.wrappedErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
