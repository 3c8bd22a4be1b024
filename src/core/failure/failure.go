// Package failure defines the error taxonomy shared by the job coordinator and the
// distribution dispatcher. Every failure carries a Kind that callers can match with
// errors.Is against the Err* sentinels.
package failure

import (
	"errors"
	"fmt"
)

// Kind names a class of failure reported to the caller
type Kind string

const (
	Validation        Kind = "ValidationError"
	Submission        Kind = "SubmissionError"
	Polling           Kind = "PollingError"
	Generation        Kind = "GenerationError"
	Precondition      Kind = "PreconditionError"
	PosterGeneration  Kind = "PosterGenerationError"
	EmailDispatch     Kind = "EmailDispatchError"
	SocialPublish     Kind = "SocialPublishError"
	MessagingDispatch Kind = "MessagingDispatchError"
)

var (
	ErrValidation        = &Error{Kind: Validation}
	ErrSubmission        = &Error{Kind: Submission}
	ErrPolling           = &Error{Kind: Polling}
	ErrGeneration        = &Error{Kind: Generation}
	ErrPrecondition      = &Error{Kind: Precondition}
	ErrPosterGeneration  = &Error{Kind: PosterGeneration}
	ErrEmailDispatch     = &Error{Kind: EmailDispatch}
	ErrSocialPublish     = &Error{Kind: SocialPublish}
	ErrMessagingDispatch = &Error{Kind: MessagingDispatch}
)

// Error is a classified failure wrapping its cause
type Error struct {
	Kind Kind
	Err  error
}

// New wraps err with the given kind
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Newf builds a failure of the given kind from a formatted message
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrPolling) works
// regardless of the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Reason returns the human-readable cause without the kind prefix
func (e *Error) Reason() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

// KindOf extracts the failure kind from an error chain
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}
