// Package apperrors defines the typed failure taxonomy shared across the
// pipeline. Every failure is scoped to one request; nothing here is fatal to
// the process.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindSchemaUnavailable        Kind = "schema_unavailable"
	KindTranslationFailed        Kind = "translation_failed"
	KindModelUnavailable         Kind = "model_unavailable"
	KindModelResponseUnparseable Kind = "model_response_unparseable"
	KindConnectionError          Kind = "connection_error"
	KindExecutionError           Kind = "execution_error"
	KindRowLimitExceeded         Kind = "row_limit_exceeded"
	KindTimeout                  Kind = "timeout"
)

// Error is a classified pipeline failure. Component carries the name of the
// originating component so failures are never surfaced as generic messages.
type Error struct {
	Kind      Kind
	Component string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Component != "" {
		msg = e.Component + ": " + msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.Cause }

// IsRetryable implements the retry package's RetryableError interface.
// Timeouts and connection failures are transient; the rest are not.
func (e *Error) IsRetryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindConnectionError
}

// New creates a classified error.
func New(kind Kind, component, message string) *Error {
	return &Error{Kind: kind, Component: component, Message: message}
}

// Wrap creates a classified error around a cause.
func Wrap(kind Kind, component, message string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Message: message, Cause: cause}
}

// KindOf extracts the Kind from any error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsTimeout reports whether err is a timeout, distinguished from hard
// failures so callers can offer a retry affordance.
func IsTimeout(err error) bool {
	return Is(err, KindTimeout)
}
