// Package failure defines the error taxonomy of a test run. Step and API
// failures carry a Kind so callers can tell a missing element from a broken
// network without string matching.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	SelectorTimeout            Kind = "SelectorTimeout"
	ElementNotFound            Kind = "ElementNotFound"
	AssertionMismatch          Kind = "AssertionMismatch"
	NavigationTimeout          Kind = "NavigationTimeout"
	NetworkUnreachable         Kind = "NetworkUnreachable"
	RequestConstructionFailure Kind = "RequestConstructionFailure"
	HealingDeclined            Kind = "HealingDeclined"
	HealingReattemptFailure    Kind = "HealingReattemptFailure"
	InteractionFailed          Kind = "InteractionFailed"
	SessionUnavailable         Kind = "SessionUnavailable"
	InvalidTestCase            Kind = "InvalidTestCase"
	Unknown                    Kind = "Unknown"
)

// Error is a classified failure. Error() returns only the human readable
// message; the cause stays reachable through Unwrap.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Fatal reports whether the failure aborts the whole run instead of a single
// test. Session and navigation problems leave nothing to test against.
func Fatal(err error) bool {
	switch KindOf(err) {
	case NavigationTimeout, SessionUnavailable:
		return true
	}
	return false
}
