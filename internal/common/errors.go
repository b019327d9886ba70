// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Every failure surfaced by the gateway or a workflow wraps
// exactly one of these.
var (
	// ErrDeclined means the user refused a wallet action or no wallet is present.
	ErrDeclined = errors.New("declined")
	// ErrValidation means a local precondition failed before any remote call.
	ErrValidation = errors.New("validation failed")
	// ErrRemoteRejected means the service of record refused the request.
	ErrRemoteRejected = errors.New("rejected by service")
	// ErrTransport means the remote could not be reached or answered garbage.
	ErrTransport = errors.New("transport failure")
	// ErrReconciliationNeeded means a payment succeeded but the follow-up call did not.
	ErrReconciliationNeeded = errors.New("reconciliation needed")
	// ErrFeatureUnavailable means an optional AI agent could not be reached in time.
	ErrFeatureUnavailable = errors.New("feature unavailable")

	ErrNotFound      = errors.New("not found")
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Error is the normalized failure type. Kind is one of the sentinel
// errors above, Message is the text shown to the user, and Err is the
// underlying cause if any.
type Error struct {
	Kind    error
	Err     error
	Op      string
	Message string
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Validation builds a local precondition failure.
func Validation(op, msg string) error {
	return &Error{Kind: ErrValidation, Op: op, Message: msg}
}

// Rejected builds a failure reported by the service of record. The
// service's message is preserved verbatim.
func Rejected(op, msg string) error {
	return &Error{Kind: ErrRemoteRejected, Op: op, Message: msg}
}

// Transport wraps a network or decode failure.
func Transport(op string, err error) error {
	return &Error{Kind: ErrTransport, Op: op, Err: err}
}

// Declined builds a wallet refusal.
func Declined(op, msg string) error {
	return &Error{Kind: ErrDeclined, Op: op, Message: msg}
}

// Reconciliation builds a partial-failure error for a payment whose
// follow-up call failed.
func Reconciliation(op, msg string, err error) error {
	return &Error{Kind: ErrReconciliationNeeded, Op: op, Message: msg, Err: err}
}

// Unavailable wraps an optional feature failure.
func Unavailable(op string, err error) error {
	return &Error{Kind: ErrFeatureUnavailable, Op: op, Err: err}
}

// KindOf returns the error kind of err, or nil when err is not normalized.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.UserMessage
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry. Only
// transport failures qualify; a rejection from the service is final.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrRemoteRejected) || errors.Is(err, ErrValidation) {
		return false
	}
	return errors.Is(err, ErrTransport) || errors.Is(err, context.DeadlineExceeded)
}
