package automation

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrUnknownRunType = errors.New("unknown run type")
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrNotApplicable marks an action that cannot apply to its target,
	// e.g. inviting a profile that is already connected.
	ErrNotApplicable = errors.New("action not applicable")
	// ErrConcurrentSession is returned when a second run tries to execute
	// against a browser config that already has one running.
	ErrConcurrentSession = errors.New("browser config already has a running run")
)

// ValidationError is an application-level rejection of a run. It is never
// retried and never affects session health.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := e.Reason
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("validation failed: %s: %v", msg, e.Err)
	}
	return "validation failed: " + msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NotApplicable wraps ErrNotApplicable with the observed reason.
func NotApplicable(reason string) error {
	return fmt.Errorf("%w: %s", ErrNotApplicable, reason)
}
