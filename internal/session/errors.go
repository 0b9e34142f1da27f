package session

import (
	"errors"
	"fmt"
)

// ErrNotFound marks an expected absence reported by the backend.
var ErrNotFound = errors.New("not found")

// ErrProblemGone indicates the problem no longer resolves.
var ErrProblemGone = errors.New("problem not found")

// ErrUnsupportedLanguage indicates the language is outside the supported set.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// ErrDispatchInFlight indicates a test or submit is already running.
var ErrDispatchInFlight = errors.New("a run is already in progress")

// ErrSessionClosed indicates the controller has been closed.
var ErrSessionClosed = errors.New("session closed")

// ErrNoProblem indicates the session has no problem loaded.
var ErrNoProblem = errors.New("no problem loaded")

// ErrNavigationUnavailable indicates there is no problem in the requested direction.
var ErrNavigationUnavailable = errors.New("no problem in that direction")

// ContestsRedirect is where clamped actions send the competitor.
const ContestsRedirect = "/contests"

// TransientError wraps a network or server failure that a later attempt may not repeat.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// ClampError is returned when an action is refused locally because the contest
// is inactive or gone. The backend is never contacted.
type ClampError struct {
	Action   string
	Reason   LockReason
	Redirect string
}

func (e *ClampError) Error() string {
	reason := string(e.Reason)
	if reason == "" {
		reason = "unavailable"
	}
	return fmt.Sprintf("%s refused: contest %s", e.Action, reason)
}

// IsNotFound reports whether err signals an expected absence, either through
// ErrNotFound or through a NotFound() method on a wrapped error.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var nf interface{ NotFound() bool }
	if errors.As(err, &nf) {
		return nf.NotFound()
	}
	return false
}

// IsClamp reports whether err is a clamp refusal.
func IsClamp(err error) bool {
	var clamp *ClampError
	return errors.As(err, &clamp)
}

func transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}
