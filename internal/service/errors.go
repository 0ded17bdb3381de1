package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure; handlers map it onto an HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	}
	return "internal"
}

// FieldError names the input field a validation message is about.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the only error type services return to handlers. Message is safe
// to show to clients; Err carries the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

func validationErr(msg string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func authErr(msg string) *Error { return &Error{Kind: KindAuth, Message: msg} }

func forbiddenErr(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

func notFoundErr(what string) *Error { return &Error{Kind: KindNotFound, Message: what + " not found"} }

func conflictErr(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

func internalErr(op string, err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: fmt.Errorf("%s: %w", op, err)}
}

// fieldErrors collects validation failures for one input.
type fieldErrors []FieldError

func (f *fieldErrors) add(field, msg string) {
	*f = append(*f, FieldError{Field: field, Message: msg})
}

// err returns nil when nothing was collected. The first message doubles as
// the error message.
func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return validationErr(f[0].Message, f...)
}
