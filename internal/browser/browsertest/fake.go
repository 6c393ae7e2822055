// Package browsertest provides an in-memory browser.Page that records every
// primitive it is asked to perform.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nbenliogludev/go-browser-run-engine/internal/browser"
)

// Page is a scripted fake. Selectors listed in Present exist and are
// visible; everything else is missing.
type Page struct {
	mu sync.Mutex

	Present  map[string]bool
	TextOf   map[string]string
	TextsOf  map[string][]string
	AttrsOf  map[string][]string
	Redirect map[string]string

	// Fail makes the named call fail, keyed like the recorded call,
	// e.g. "click button.send" or "navigate https://x".
	Fail map[string]error

	// OnClick runs after a successful click, letting tests reveal new
	// elements.
	OnClick func(p *Page, selector string)

	// Panic makes the named call panic.
	Panic string

	current string
	calls   []string
}

func NewPage() *Page {
	return &Page{
		Present:  map[string]bool{},
		TextOf:   map[string]string{},
		TextsOf:  map[string][]string{},
		AttrsOf:  map[string][]string{},
		Redirect: map[string]string{},
		Fail:     map[string]error{},
	}
}

// Show marks selectors as present.
func (p *Page) Show(selectors ...string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range selectors {
		p.Present[s] = true
	}
	return p
}

// Hide removes selectors.
func (p *Page) Hide(selectors ...string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range selectors {
		delete(p.Present, s)
	}
	return p
}

// Calls returns a copy of the recorded primitive log.
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Count returns how many recorded calls start with prefix.
func (p *Page) Count(prefix string) int {
	n := 0
	for _, c := range p.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (p *Page) record(call string) error {
	p.mu.Lock()
	p.calls = append(p.calls, call)
	err := p.Fail[call]
	panicky := p.Panic != "" && p.Panic == call
	p.mu.Unlock()
	if panicky {
		panic("browsertest: " + call)
	}
	return err
}

func (p *Page) present(selector string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Present[selector]
}

func missing(selector string) error {
	return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
}

func (p *Page) Navigate(_ context.Context, url string) error {
	if err := p.record("navigate " + url); err != nil {
		return &browser.NavigationError{URL: url, Err: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if to, ok := p.Redirect[url]; ok {
		url = to
	}
	p.current = url
	return nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Page) Exists(_ context.Context, selector string) (bool, error) {
	return p.present(selector), nil
}

func (p *Page) WaitFor(_ context.Context, selector string, _ time.Duration) error {
	if err := p.record("wait " + selector); err != nil {
		return err
	}
	if !p.present(selector) {
		return fmt.Errorf("%w: %s", browser.ErrTimeout, selector)
	}
	return nil
}

func (p *Page) Click(_ context.Context, selector string) error {
	if err := p.record("click " + selector); err != nil {
		return err
	}
	if !p.present(selector) {
		return missing(selector)
	}
	if p.OnClick != nil {
		p.OnClick(p, selector)
	}
	return nil
}

func (p *Page) Fill(_ context.Context, selector, value string) error {
	if err := p.record("fill " + selector + " " + value); err != nil {
		return err
	}
	if !p.present(selector) {
		return missing(selector)
	}
	return nil
}

func (p *Page) Type(_ context.Context, selector, text string, _ time.Duration) error {
	if err := p.record("type " + selector + " " + text); err != nil {
		return err
	}
	if !p.present(selector) {
		return missing(selector)
	}
	return nil
}

func (p *Page) Press(_ context.Context, selector, key string) error {
	if err := p.record("press " + selector + " " + key); err != nil {
		return err
	}
	if !p.present(selector) {
		return missing(selector)
	}
	return nil
}

func (p *Page) Text(_ context.Context, selector string) (string, error) {
	if !p.present(selector) {
		return "", missing(selector)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.TextOf[selector], nil
}

func (p *Page) Texts(_ context.Context, selector string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.TextsOf[selector]...), nil
}

func (p *Page) Attrs(_ context.Context, selector, attr string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.AttrsOf[selector+"@"+attr]...), nil
}

func (p *Page) BoundingBox(_ context.Context, selector string) (browser.Box, error) {
	if !p.present(selector) {
		return browser.Box{}, missing(selector)
	}
	return browser.Box{X: 100, Y: 200, Width: 80, Height: 30}, nil
}

func (p *Page) MouseMove(context.Context, float64, float64) error {
	return p.record("mouse")
}

func (p *Page) Wheel(_ context.Context, _, dy float64) error {
	return p.record("wheel")
}

func (p *Page) Screenshot(context.Context) ([]byte, error) {
	if err := p.record("screenshot"); err != nil {
		return nil, err
	}
	return []byte{0xff, 0xd8, 0xff}, nil
}

// Factory hands out sessions around a single shared Page.
type Factory struct {
	mu sync.Mutex

	Page     *Page
	StartErr error

	Specs  []browser.SessionSpec
	opened int
	closed int
}

func NewFactory(page *Page) *Factory {
	return &Factory{Page: page}
}

func (f *Factory) NewSession(_ context.Context, spec browser.SessionSpec) (browser.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Specs = append(f.Specs, spec)
	if f.StartErr != nil {
		return nil, f.StartErr
	}
	f.opened++
	return &session{f: f}, nil
}

// Open returns the number of sessions not yet closed.
func (f *Factory) Open() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened - f.closed
}

// Opened returns the number of sessions ever started.
func (f *Factory) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

type session struct {
	f    *Factory
	once sync.Once
}

func (s *session) Page() browser.Page { return s.f.Page }

func (s *session) Close() error {
	s.once.Do(func() {
		s.f.mu.Lock()
		s.f.closed++
		s.f.mu.Unlock()
	})
	return nil
}
