// Package actions implements one browser interaction per run type on top of
// the browser.Page port.
package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/nbenliogludev/go-browser-run-engine/internal/automation"
	"github.com/nbenliogludev/go-browser-run-engine/internal/browser"
	"github.com/nbenliogludev/go-browser-run-engine/internal/humanize"
	"github.com/nbenliogludev/go-browser-run-engine/internal/llm"
	"github.com/nbenliogludev/go-browser-run-engine/internal/retry"
)

const (
	DefaultWaitTimeout = 15 * time.Second
	DefaultMaxInvites  = 10
)

// Executor dispatches a typed payload to its interaction.
type Executor struct {
	sel        Selectors
	newHuman   func() *humanize.Humanizer
	policy     retry.Policy
	composer   llm.Composer
	wait       time.Duration
	maxInvites int
}

type Option func(*Executor)

func WithSelectors(s Selectors) Option { return func(e *Executor) { e.sel = s } }

// WithHumanizer sets the constructor called once per session.
func WithHumanizer(fn func() *humanize.Humanizer) Option {
	return func(e *Executor) { e.newHuman = fn }
}

func WithRetryPolicy(p retry.Policy) Option { return func(e *Executor) { e.policy = p } }

// WithComposer enables payloads that carry a prompt instead of text.
func WithComposer(c llm.Composer) Option { return func(e *Executor) { e.composer = c } }

func WithWaitTimeout(d time.Duration) Option { return func(e *Executor) { e.wait = d } }

// WithMaxInvites caps invitations sent from a result list in one run.
func WithMaxInvites(n int) Option { return func(e *Executor) { e.maxInvites = n } }

func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		sel:        DefaultSelectors(),
		newHuman:   func() *humanize.Humanizer { return humanize.New() },
		policy:     retry.DefaultPolicy,
		wait:       DefaultWaitTimeout,
		maxInvites: DefaultMaxInvites,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Perform opens a session through scope, runs the payload's interaction in
// it and releases the session before returning.
func (e *Executor) Perform(ctx context.Context, scope browser.Scope, spec browser.SessionSpec, p automation.Payload) (any, error) {
	var out any
	err := scope.Run(ctx, spec, func(ctx context.Context, page browser.Page) error {
		var err error
		out, err = e.Execute(ctx, page, p)
		return err
	})
	return out, err
}

// Execute runs the interaction for p on an already open page.
func (e *Executor) Execute(ctx context.Context, page browser.Page, p automation.Payload) (any, error) {
	j := &job{e: e, page: page, h: e.newHuman()}

	switch p := p.(type) {
	case automation.ConnectionRequestPayload:
		return j.sendInvite(ctx, p)
	case automation.SendMessagePayload:
		return j.sendMessage(ctx, p)
	case automation.ConnectionStatusPayload:
		return j.connectionStatus(ctx, p)
	case automation.RecentPostsPayload:
		return j.recentPosts(ctx, p)
	case automation.GetMessagesPayload:
		return j.messages(ctx, p)
	case automation.DownloadConnectionsPayload:
		return j.downloadConnections(ctx, p)
	case automation.FindConnectionsPayload:
		return j.findConnections(ctx, p)
	case automation.CompanyPeoplePayload:
		return j.companyPeople(ctx, p)
	default:
		return nil, &automation.ValidationError{
			Field:  "type",
			Reason: fmt.Sprintf("no interaction for %T", p),
			Err:    automation.ErrUnknownRunType,
		}
	}
}

// job is the state of one interaction on one page.
type job struct {
	e    *Executor
	page browser.Page
	h    *humanize.Humanizer
}

func (j *job) sel() *Selectors { return &j.e.sel }

// open navigates like a person would: think, go, wait for the page shell.
func (j *job) open(ctx context.Context, url string) error {
	if err := j.h.Think(ctx); err != nil {
		return err
	}
	if err := j.page.Navigate(ctx, url); err != nil {
		return err
	}
	return j.waitVisible(ctx, j.sel().Page.Ready)
}

func (j *job) waitVisible(ctx context.Context, selector string) error {
	return j.page.WaitFor(ctx, selector, j.e.wait)
}

// waitRetry waits for selector under the retry policy. List views load
// lazily and often need a second look.
func (j *job) waitRetry(ctx context.Context, selector string) error {
	return retry.Step(ctx, j.e.policy, func(ctx context.Context) error {
		return j.waitVisible(ctx, selector)
	})
}

func (j *job) exists(ctx context.Context, selector string) (bool, error) {
	if selector == "" {
		return false, nil
	}
	return j.page.Exists(ctx, selector)
}

// submit performs the final state-changing click unless dry.
func (j *job) submit(ctx context.Context, selector string, dry bool) error {
	if err := j.waitVisible(ctx, selector); err != nil {
		return err
	}
	if dry {
		return nil
	}
	if err := j.h.Click(ctx, j.page, selector); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return j.h.Hesitate(ctx)
}
