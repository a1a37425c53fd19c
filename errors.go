package studytutor

import (
	"errors"
	"fmt"
)

var (
	// ErrQuizNotFound indicates the quiz id is well-formed but unknown.
	ErrQuizNotFound = errors.New("quiz not found")

	// ErrSessionNotFound indicates no state exists for a (user, session) key.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoActiveQuiz indicates an evaluation was requested with no quiz in
	// progress for the session.
	ErrNoActiveQuiz = errors.New("no active quiz")

	// ErrEmptyQuiz indicates a quiz with zero questions reached grading.
	ErrEmptyQuiz = errors.New("quiz has no questions")

	// ErrGenerationFailed indicates quiz generation exhausted its attempts.
	ErrGenerationFailed = errors.New("quiz generation failed")
)

// ValidationError marks malformed input: capability output that does not
// meet the quiz contract, or a quiz identifier that is not well-formed.
// The retry wrapper never retries it.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// CapabilityError wraps a failed reasoning capability invocation. Retryable
// marks transient failures (rate limited, server error, timeout); everything
// else propagates immediately without consuming retry attempts.
type CapabilityError struct {
	Capability string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *CapabilityError) Error() string {
	kind := "permanent"
	if e.Retryable {
		kind = "transient"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("capability %s: %s failure (status %d): %v", e.Capability, kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("capability %s: %s failure: %v", e.Capability, kind, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient capability failure.
func IsRetryable(err error) bool {
	var capErr *CapabilityError
	return errors.As(err, &capErr) && capErr.Retryable
}
