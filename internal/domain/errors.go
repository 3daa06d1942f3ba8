package domain

import (
	"errors"
	"fmt"
)

// Code identifies the category of a domain error.
type Code string

const (
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeAuthorization   Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeParse           Code = "PARSE_ERROR"
	CodeTransient       Code = "TRANSIENT_INFRA_ERROR"
	CodeInternal        Code = "INTERNAL_ERROR"
)

// Error is the base domain error. Two *Error values match under errors.Is when
// their codes match and the target carries no message, so the sentinels below
// can be used as category checks.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports category equality against a sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Code == e.Code
}

// Category sentinels for errors.Is.
var (
	ErrValidation      = &Error{Code: CodeValidation}
	ErrUnauthenticated = &Error{Code: CodeUnauthenticated}
	ErrAuthorization   = &Error{Code: CodeAuthorization}
	ErrNotFound        = &Error{Code: CodeNotFound}
	ErrTransient       = &Error{Code: CodeTransient}
)

// NewValidationError reports malformed input. Nothing was written.
func NewValidationError(format string, args ...interface{}) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NewUnauthenticatedError reports a request without a session.
func NewUnauthenticatedError(message string) *Error {
	return &Error{Code: CodeUnauthenticated, Message: message}
}

// NewAuthorizationError reports a caller that lacks the required role.
func NewAuthorizationError(format string, args ...interface{}) *Error {
	return &Error{Code: CodeAuthorization, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError reports an unknown referenced entity.
func NewNotFoundError(format string, args ...interface{}) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewTransientError wraps an infrastructure failure that may succeed on retry.
func NewTransientError(err error, format string, args ...interface{}) *Error {
	return &Error{Code: CodeTransient, Message: fmt.Sprintf(format, args...), Err: err}
}

// ParseError means the document as a whole is unusable. The job fails without retry.
type ParseError struct {
	Message string
	Offset  int64
	Err     error
}

func (e *ParseError) Error() string {
	msg := e.Message
	if e.Offset > 0 {
		msg = fmt.Sprintf("%s (offset %d)", msg, e.Offset)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// ItemError is a failure scoped to one element of a batch. It never aborts the batch.
type ItemError struct {
	Index   int    `json:"-"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d: %s", e.Index, e.Message)
}

func (e *ItemError) Unwrap() error { return e.Err }

// Transient reports whether retrying the job could fix this item.
func (e *ItemError) Transient() bool {
	return e.Code == CodeTransient
}

// NewItemError classifies err for the item at index. Validation and not-found
// failures keep their code; anything else is treated as transient.
func NewItemError(index int, err error) *ItemError {
	var itemErr *ItemError
	if errors.As(err, &itemErr) {
		cp := *itemErr
		cp.Index = index
		return &cp
	}
	code := CodeTransient
	var de *Error
	if errors.As(err, &de) && (de.Code == CodeValidation || de.Code == CodeNotFound) {
		code = de.Code
	}
	return &ItemError{Index: index, Code: code, Message: err.Error(), Err: err}
}

// CodeOf returns the category code of err, or CodeInternal when err is not a domain error.
func CodeOf(err error) Code {
	var pe *ParseError
	if errors.As(err, &pe) {
		return CodeParse
	}
	var ie *ItemError
	if errors.As(err, &ie) {
		return ie.Code
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
