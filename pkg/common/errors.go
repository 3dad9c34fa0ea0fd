package common

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind is the stable machine readable part of every error surfaced to clients.
type ErrorKind string

const (
	KindUnauthorized             ErrorKind = "unauthorized"
	KindForbidden                ErrorKind = "forbidden"
	KindNotFound                 ErrorKind = "not_found"
	KindInvalidPayload           ErrorKind = "invalid_payload"
	KindOutOfRange               ErrorKind = "out_of_range"
	KindPolicyInvariantViolation ErrorKind = "policy_invariant_violation"
	KindRateLimited              ErrorKind = "rate_limited"
	KindTransient                ErrorKind = "transient"
	KindInternal                 ErrorKind = "internal"
)

type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
	Details any       `json:"details,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether the caller may retry the same request unchanged.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient || e.Kind == KindRateLimited
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// WrapTransient hides the storage error behind a generic message; the cause stays
// reachable through errors.Unwrap for server side logging.
func WrapTransient(err error, operation string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	msg := fmt.Sprintf("%s failed, retry later", operation)
	if errors.Is(err, context.DeadlineExceeded) {
		msg = fmt.Sprintf("%s timed out, retry later", operation)
	}
	return &Error{Kind: KindTransient, Message: msg, cause: err}
}

func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransient
	}
	return KindInternal
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// AsError converts any error into the client facing form. Unknown errors lose their
// message so driver internals never leave the process.
func AsError(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindTransient, Message: "request timed out, retry later", cause: err}
	}
	return &Error{Kind: KindInternal, Message: "internal error", cause: err}
}
