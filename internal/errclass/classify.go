// Package errclass turns arbitrary run failures into classified errors. It is
// pure: no logging and no I/O happen here.
package errclass

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/nbenliogludev/go-browser-run-engine/internal/automation"
	"github.com/nbenliogludev/go-browser-run-engine/internal/browser"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeNotApplicable     Code = "NOT_APPLICABLE"
	CodeConcurrentSession Code = "CONCURRENT_SESSION_USE"
	CodeExternal          Code = "EXTERNAL_ERROR"
	CodeInternal          Code = "INTERNAL_ERROR"
)

type Type string

const (
	TypeApplication Type = "APPLICATION"
	TypeExternal    Type = "EXTERNAL"
	TypeSession     Type = "SESSION"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RefInvalidSession is the stable reference for a failure that proves the
// captured login session no longer works.
const RefInvalidSession = "S001"

// ClassifiedError is the normalized record of one failure.
type ClassifiedError struct {
	Code      Code
	Type      Type
	Severity  Severity
	Reference string
	Message   string
	Details   map[string]any
}

func (c ClassifiedError) Error() string {
	if c.Reference != "" {
		return fmt.Sprintf("%s[%s]: %s", c.Code, c.Reference, c.Message)
	}
	return fmt.Sprintf("%s: %s", c.Code, c.Message)
}

// InvalidatesSession reports whether the owning browser config must be
// marked INVALID.
func (c ClassifiedError) InvalidatesSession() bool {
	return c.Reference == RefInvalidSession
}

// Retryable reports whether a scheduler may reasonably re-enqueue the run.
func (c ClassifiedError) Retryable() bool {
	return c.Type == TypeExternal
}

var redirectSignatures = []string{
	"err_too_many_redirects",
	"too many redirects",
	"redirected you too many times",
}

// Detailer is implemented by errors that carry structured context beyond
// their message.
type Detailer interface {
	Details() map[string]any
}

// Classify maps err to a ClassifiedError. The excessive-redirect rule wins
// over every rule except validation and not-applicable failures, which never
// come from the driver.
func Classify(err error) ClassifiedError {
	if err == nil {
		return ClassifiedError{Code: CodeInternal, Type: TypeApplication, Severity: SeverityHigh, Message: "unknown failure"}
	}

	details := collectDetails(err)
	msg := err.Error()

	if hasRedirectSignature(err) {
		return ClassifiedError{
			Code:      CodeExternal,
			Type:      TypeSession,
			Severity:  SeverityCritical,
			Reference: RefInvalidSession,
			Message:   msg,
			Details:   details,
		}
	}

	c := ClassifiedError{Message: msg, Details: details}
	var verr *automation.ValidationError
	switch {
	case errors.Is(err, automation.ErrConcurrentSession):
		c.Code, c.Type, c.Severity = CodeConcurrentSession, TypeApplication, SeverityMedium
	case errors.As(err, &verr):
		c.Code, c.Type, c.Severity = CodeValidation, TypeApplication, SeverityLow
		if verr.Field != "" {
			c.Details["field"] = verr.Field
		}
	case errors.Is(err, automation.ErrNotApplicable):
		c.Code, c.Type, c.Severity = CodeNotApplicable, TypeApplication, SeverityLow
	case errors.Is(err, browser.ErrElementNotFound),
		errors.Is(err, browser.ErrTimeout),
		errors.Is(err, browser.ErrNavigation),
		errors.Is(err, context.DeadlineExceeded):
		c.Code, c.Type, c.Severity = CodeExternal, TypeExternal, SeverityMedium
	case errors.Is(err, browser.ErrSessionStart):
		c.Code, c.Type, c.Severity = CodeExternal, TypeExternal, SeverityHigh
	default:
		c.Code, c.Type, c.Severity = CodeInternal, TypeApplication, SeverityHigh
	}
	return c
}

func collectDetails(err error) map[string]any {
	details := map[string]any{}
	walk(err, func(e error) {
		if d, ok := e.(Detailer); ok {
			for k, v := range d.Details() {
				if _, exists := details[k]; !exists {
					details[k] = v
				}
			}
		}
	})
	details["cause"] = err.Error()
	return details
}

// walk visits err and everything it wraps, depth first, following both
// single and joined wrapping.
func walk(err error, visit func(error)) {
	if err == nil {
		return
	}
	visit(err)
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		walk(u.Unwrap(), visit)
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			walk(e, visit)
		}
	}
}

// urlPattern matches URLs quoted inside driver messages. Paths are user
// supplied and must not count as a driver signature.
var urlPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://\S+`)

// hasRedirectSignature looks for a redirect loop in the innermost errors of
// the chain only. Those are the driver's own messages; wrapping layers add
// run types, URLs and page addresses.
func hasRedirectSignature(err error) bool {
	var verr *automation.ValidationError
	if errors.As(err, &verr) || errors.Is(err, automation.ErrNotApplicable) {
		return false
	}
	found := false
	walk(err, func(e error) {
		if found || !isLeaf(e) {
			return
		}
		found = containsSignature(urlPattern.ReplaceAllString(e.Error(), ""))
	})
	return found
}

func isLeaf(err error) bool {
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return u.Unwrap() == nil
	case interface{ Unwrap() []error }:
		return len(u.Unwrap()) == 0
	}
	return true
}

func containsSignature(s string) bool {
	s = strings.ToLower(s)
	for _, sig := range redirectSignatures {
		if strings.Contains(s, sig) {
			return true
		}
	}
	return false
}
