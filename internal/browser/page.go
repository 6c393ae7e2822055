// Package browser is the engine's port to a real browser. Actions only see
// Page and Session; the driving technology behind them (Playwright or
// chromedp) is chosen by the Factory.
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	ErrElementNotFound = errors.New("element not found")
	ErrTimeout         = errors.New("browser wait timed out")
	ErrNavigation      = errors.New("navigation failed")
	ErrSessionStart    = errors.New("browser session could not start")
)

const (
	DefaultStepTimeout       = 15 * time.Second
	DefaultNavigationTimeout = 45 * time.Second
	DefaultViewportWidth     = 1366
	DefaultViewportHeight    = 768
)

// Box is an element's bounding rectangle in CSS pixels.
type Box struct {
	X, Y, Width, Height float64
}

// Center returns the middle point of the box.
func (b Box) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Page is the narrow set of primitives action code drives. Every blocking
// call is bounded by the context deadline or the session's step timeout,
// whichever comes first.
type Page interface {
	Navigate(ctx context.Context, url string) error
	URL() string

	// Exists reports whether selector currently matches anything, without
	// waiting.
	Exists(ctx context.Context, selector string) (bool, error)
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error

	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Type(ctx context.Context, selector, text string, keyDelay time.Duration) error
	Press(ctx context.Context, selector, key string) error

	Text(ctx context.Context, selector string) (string, error)
	Texts(ctx context.Context, selector string) ([]string, error)
	Attrs(ctx context.Context, selector, attr string) ([]string, error)

	BoundingBox(ctx context.Context, selector string) (Box, error)
	MouseMove(ctx context.Context, x, y float64) error
	Wheel(ctx context.Context, dx, dy float64) error

	Screenshot(ctx context.Context) ([]byte, error)
}

// Session is one isolated browser: its own process or context, cookie jar,
// user agent and egress. It must be closed on every exit path.
type Session interface {
	Page() Page
	Close() error
}

// SessionSpec describes the login context a session is built from.
type SessionSpec struct {
	ProxyURI  string
	Cookies   []Cookie
	UserAgent string
}

// Factory creates isolated sessions.
type Factory interface {
	NewSession(ctx context.Context, spec SessionSpec) (Session, error)
}

// Options tunes the concrete factories.
type Options struct {
	Headless          bool
	StepTimeout       time.Duration
	NavigationTimeout time.Duration
	ViewportWidth     int
	ViewportHeight    int
}

func (o Options) withDefaults() Options {
	if o.StepTimeout <= 0 {
		o.StepTimeout = DefaultStepTimeout
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = DefaultNavigationTimeout
	}
	if o.ViewportWidth <= 0 {
		o.ViewportWidth = DefaultViewportWidth
	}
	if o.ViewportHeight <= 0 {
		o.ViewportHeight = DefaultViewportHeight
	}
	return o
}

// boundedTimeout returns the smaller of fallback and the time left on ctx.
func boundedTimeout(ctx context.Context, fallback time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < fallback {
			if left < 0 {
				return 0
			}
			return left
		}
	}
	return fallback
}

// NavigationError is returned when the page could not load a URL. The
// driver's own message is kept so redirect loops stay recognizable.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return "navigate " + e.URL + ": " + e.Err.Error()
}

func (e *NavigationError) Unwrap() []error { return []error{ErrNavigation, e.Err} }

func (e *NavigationError) Details() map[string]any {
	return map[string]any{"url": e.URL, "driverError": e.Err.Error()}
}
