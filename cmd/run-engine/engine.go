package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nbenliogludev/go-browser-run-engine/internal/actions"
	"github.com/nbenliogludev/go-browser-run-engine/internal/artifacts"
	"github.com/nbenliogludev/go-browser-run-engine/internal/automation"
	"github.com/nbenliogludev/go-browser-run-engine/internal/browser"
	"github.com/nbenliogludev/go-browser-run-engine/internal/config"
	"github.com/nbenliogludev/go-browser-run-engine/internal/llm"
	"github.com/nbenliogludev/go-browser-run-engine/internal/metrics"
	"github.com/nbenliogludev/go-browser-run-engine/internal/retry"
	"github.com/nbenliogludev/go-browser-run-engine/internal/runner"
	"github.com/nbenliogludev/go-browser-run-engine/internal/secrets"
)

// engine is a Runner plus everything it owns.
type engine struct {
	runner  *runner.Runner
	metrics *metrics.Recorder
	closers []func() error
}

func (e *engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	return errors.Join(errs...)
}

// newEngine builds a Runner over stores. store receives failure screenshots;
// nil falls back to S3 when configured.
func (a *app) newEngine(ctx context.Context, stores runner.Stores, store artifacts.Store) (*engine, error) {
	e := &engine{metrics: metrics.NewRecorder()}

	factory, closeFactory, err := newFactory(a.cfg)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, closeFactory)

	exec, err := newExecutor(a.cfg)
	if err != nil {
		_ = e.Close()
		return nil, err
	}

	sealer, err := secrets.NewSealer(a.cfg.AgeIdentity)
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("age identity: %w", err)
	}

	opts := []runner.Option{
		runner.WithExclusiveGuard(),
		runner.WithProxyResolver(automation.StaticProxy(a.cfg.ProxyURI)),
		runner.WithCookieOpener(sealer),
		runner.WithMetrics(e.metrics),
		runner.WithTracer(a.tel.Tracer),
		runner.WithLogger(a.log.With().Str("component", "runner").Logger()),
		runner.WithRunTimeout(a.cfg.RunTimeout),
	}
	if store == nil && a.cfg.S3.Enabled() {
		s3Store, err := artifacts.NewS3Store(ctx, a.cfg.S3.Store())
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("s3 artifacts: %w", err)
		}
		store = s3Store
	}
	if store != nil {
		opts = append(opts, runner.WithArtifacts(store))
	}

	scope := browser.Scope{
		Factory:          factory,
		CaptureOnFailure: a.cfg.CaptureOnFailure,
		OnCloseError: func(err error) {
			a.log.Warn().Err(err).Msg("close browser session")
		},
	}
	e.runner = runner.New(stores, exec, scope, opts...)
	return e, nil
}

func newFactory(cfg config.Config) (browser.Factory, func() error, error) {
	opts := browser.Options{
		Headless:          cfg.Headless,
		StepTimeout:       cfg.StepTimeout,
		NavigationTimeout: cfg.NavigationTimeout,
	}
	switch cfg.BrowserDriver {
	case config.DriverChromedp:
		return browser.NewChromedpFactory(opts), func() error { return nil }, nil
	default:
		f, err := browser.NewPlaywrightFactory(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("start playwright: %w", err)
		}
		return f, f.Close, nil
	}
}

func newExecutor(cfg config.Config) (*actions.Executor, error) {
	sel, err := actions.LoadSelectors(cfg.SelectorsFile)
	if err != nil {
		return nil, err
	}
	opts := []actions.Option{
		actions.WithSelectors(sel),
		actions.WithRetryPolicy(retry.Policy{MaxAttempts: cfg.RetryAttempts, BaseDelay: cfg.RetryBaseDelay}),
		actions.WithWaitTimeout(cfg.StepTimeout),
		actions.WithMaxInvites(cfg.MaxInvites),
	}
	if cfg.OpenAIAPIKey != "" {
		client, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		if err != nil {
			return nil, err
		}
		opts = append(opts, actions.WithComposer(client))
	}
	return actions.NewExecutor(opts...), nil
}
