package search

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies search failures.
type ErrorKind string

const (
	// ErrorKindResponse is a failure deferred from response handling.
	ErrorKindResponse ErrorKind = "response"
	// ErrorKindOutcome means no known page state appeared after submitting.
	ErrorKindOutcome ErrorKind = "outcome"
	// ErrorKindNavigation means the page never became usable.
	ErrorKindNavigation ErrorKind = "navigation"
	// ErrorKindSubmit means every submit strategy failed.
	ErrorKindSubmit ErrorKind = "submit"
)

// ErrBudgetReached is the cause attached to a run aborted on the global scrape cap.
var ErrBudgetReached = errors.New("maximum crawled places reached")

// Error is a failed search.
type Error struct {
	Kind        ErrorKind
	Search      string
	Message     string
	SnapshotRef string
	Status      int
	Err         error
	Time        time.Time
}

func newError(kind ErrorKind, search, message string, err error) *Error {
	return &Error{Kind: kind, Search: search, Message: message, Err: err, Time: time.Now()}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Kind, e.Search, e.Message)
	if e.SnapshotRef != "" {
		msg += fmt.Sprintf(" (response body stored at %s)", e.SnapshotRef)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" - %v", e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether reloading the page and running the search again may succeed.
func (e *Error) IsRetryable() bool {
	switch e.Kind {
	case ErrorKindResponse, ErrorKindOutcome, ErrorKindNavigation:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err is a retryable search failure.
func IsRetryable(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.IsRetryable()
	}
	return false
}
