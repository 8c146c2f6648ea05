package analysis

import "fmt"

// Reason names a terminal failure of an analysis run.
type Reason string

const (
	// ReasonSourceUnavailable means the want list could not be fetched.
	ReasonSourceUnavailable Reason = "source_unavailable"

	// ReasonSourceNotFound means the user or list does not exist.
	ReasonSourceNotFound Reason = "source_not_found"

	// ReasonSourceForbidden means the list is private.
	ReasonSourceForbidden Reason = "source_forbidden"

	// ReasonEmptySource means the want list has no items.
	ReasonEmptySource Reason = "empty_source"

	// ReasonNoMatch means no seller matched any item.
	ReasonNoMatch Reason = "no_match"

	// ReasonInvalidRequest means the request failed validation.
	ReasonInvalidRequest Reason = "invalid_request"

	// ReasonCancelled means the caller went away before the want list arrived.
	ReasonCancelled Reason = "cancelled"
)

// Error is a terminal run failure. Two Errors match under errors.Is when
// their reasons match; ErrSourceUnavailable also matches the more specific
// source reasons.
type Error struct {
	Reason  Reason
	Message string
	Err     error

	// Fields holds per-field messages for invalid requests.
	Fields map[string]string
}

// Sentinels for errors.Is.
var (
	ErrSourceUnavailable = &Error{Reason: ReasonSourceUnavailable}
	ErrSourceNotFound    = &Error{Reason: ReasonSourceNotFound}
	ErrSourceForbidden   = &Error{Reason: ReasonSourceForbidden}
	ErrEmptySource       = &Error{Reason: ReasonEmptySource}
	ErrNoMatch           = &Error{Reason: ReasonNoMatch}
	ErrInvalidRequest    = &Error{Reason: ReasonInvalidRequest}
	ErrCancelled         = &Error{Reason: ReasonCancelled}
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("analysis %s: %s: %v", e.Reason, msg, e.Err)
	}
	return fmt.Sprintf("analysis %s: %s", e.Reason, msg)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches by reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Reason == e.Reason {
		return true
	}
	return t.Reason == ReasonSourceUnavailable && e.sourceFailure()
}

func (e *Error) sourceFailure() bool {
	switch e.Reason {
	case ReasonSourceUnavailable, ReasonSourceNotFound, ReasonSourceForbidden:
		return true
	default:
		return false
	}
}
