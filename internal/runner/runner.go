// Package runner executes one run record end to end and owns the only place
// where run outcomes are persisted and logged.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nbenliogludev/go-browser-run-engine/internal/artifacts"
	"github.com/nbenliogludev/go-browser-run-engine/internal/automation"
	"github.com/nbenliogludev/go-browser-run-engine/internal/browser"
	"github.com/nbenliogludev/go-browser-run-engine/internal/errclass"
	"github.com/nbenliogludev/go-browser-run-engine/internal/health"
	"github.com/nbenliogludev/go-browser-run-engine/internal/metrics"
)

const tracerName = "github.com/nbenliogludev/go-browser-run-engine/internal/runner"

// persistTimeout bounds the writes made after a run ends. They run detached
// from the run context, which may already be cancelled or past its deadline.
const persistTimeout = 30 * time.Second

// ErrPanic wraps a value recovered from a panicking action.
var ErrPanic = errors.New("action panicked")

// Performer runs a typed payload inside a browser session opened by scope.
type Performer interface {
	Perform(ctx context.Context, scope browser.Scope, spec browser.SessionSpec, p automation.Payload) (any, error)
}

// CookieOpener turns a stored cookie jar into plaintext.
type CookieOpener interface {
	Open(jar string) (string, error)
}

type plainCookies struct{}

func (plainCookies) Open(jar string) (string, error) { return jar, nil }

// Stores bundles the repositories a runner writes to.
type Stores struct {
	Runs    automation.RunsRepository
	Results automation.ResultsRepository
	Errors  automation.ErrorsRepository
	Configs automation.ConfigRepository
}

// Outcome is what a caller learns about a finished run. It mirrors what was
// persisted; it is never an error.
type Outcome struct {
	RunID              uuid.UUID
	Status             automation.RunStatus
	Error              *errclass.ClassifiedError
	SessionInvalidated bool
	Duration           time.Duration
}

type Runner struct {
	stores    Stores
	exec      Performer
	scope     browser.Scope
	proxies   automation.ProxyResolver
	cookies   CookieOpener
	health    *health.Tracker
	artifacts artifacts.Store
	metrics   *metrics.Recorder
	tracer    trace.Tracer
	log       zerolog.Logger
	now       func() time.Time
	timeout   time.Duration
	guard     *ConfigLocks
}

type Option func(*Runner)

// WithExclusiveGuard makes the runner fail a run with CONCURRENT_SESSION_USE
// when another run on the same browser config is already executing here.
func WithExclusiveGuard() Option {
	return func(r *Runner) { r.guard = NewConfigLocks() }
}

func WithProxyResolver(p automation.ProxyResolver) Option {
	return func(r *Runner) { r.proxies = p }
}

func WithCookieOpener(o CookieOpener) Option {
	return func(r *Runner) { r.cookies = o }
}

func WithArtifacts(s artifacts.Store) Option {
	return func(r *Runner) { r.artifacts = s }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Runner) { r.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithRunTimeout bounds a whole run, session startup included.
func WithRunTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

func New(stores Stores, exec Performer, scope browser.Scope, opts ...Option) *Runner {
	r := &Runner{
		stores:  stores,
		exec:    exec,
		scope:   scope,
		proxies: automation.StaticProxy(""),
		cookies: plainCookies{},
		health:  health.NewTracker(stores.Configs),
		tracer:  otel.Tracer(tracerName),
		log:     zerolog.Nop(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunAutomation executes run and persists its outcome. It never panics and
// never returns an error: every failure ends as a FAILED run with exactly
// one RunError, every success as a COMPLETED run with exactly one RunResult.
// A run that is not SCHEDULED is refused and left untouched.
func (r *Runner) RunAutomation(ctx context.Context, run *automation.RunRecord) (out Outcome) {
	ctx, span := r.tracer.Start(ctx, "RunAutomation", trace.WithAttributes(
		attribute.String("run.id", run.ID.String()),
		attribute.String("run.type", string(run.Type)),
		attribute.String("run.tenant", run.Tenant),
	))
	defer span.End()

	log := r.log.With().
		Str("run_id", run.ID.String()).
		Str("tenant", run.Tenant).
		Str("user_id", run.UserID).
		Str("type", string(run.Type)).
		Logger()

	if run.Status != automation.StatusScheduled {
		ce := errclass.Classify(&automation.ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("run must be %s to start, got %s", automation.StatusScheduled, run.Status),
		})
		log.Warn().Str("status", string(run.Status)).Msg("refusing to start run")
		span.SetStatus(codes.Error, ce.Message)
		return Outcome{RunID: run.ID, Status: run.Status, Error: &ce}
	}

	done := r.metrics.RunStarted()
	defer done()

	defer func() {
		if p := recover(); p != nil {
			out = r.failSafely(ctx, span, log, run, fmt.Errorf("%w: %v", ErrPanic, p))
		}
	}()

	if r.guard != nil {
		unlock, ok := r.guard.TryLock(run.BrowserConfigID)
		if !ok {
			return r.fail(ctx, span, log, run, fmt.Errorf("run %s on config %s: %w", run.ID, run.BrowserConfigID, automation.ErrConcurrentSession))
		}
		defer unlock()
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	spec, err := r.resolve(ctx, run)
	if err != nil {
		return r.fail(ctx, span, log, run, err)
	}

	if err := run.MarkRunning(r.now()); err != nil {
		return r.fail(ctx, span, log, run, err)
	}
	if err := r.stores.Runs.UpdateByID(ctx, run); err != nil {
		return r.fail(ctx, span, log, run, fmt.Errorf("persist running run: %w", err))
	}

	payload, err := automation.ParsePayload(run.Type, run.Payload)
	if err != nil {
		return r.fail(ctx, span, log, run, err)
	}

	data, err := r.exec.Perform(ctx, r.scope, spec, payload)
	if err != nil {
		return r.fail(ctx, span, log, run, err)
	}
	return r.succeed(ctx, span, log, run, data)
}

// resolve builds the session spec from the run's browser config and proxy.
func (r *Runner) resolve(ctx context.Context, run *automation.RunRecord) (browser.SessionSpec, error) {
	cfg, err := r.stores.Configs.FindByID(ctx, run.BrowserConfigID)
	if errors.Is(err, automation.ErrNotFound) {
		return browser.SessionSpec{}, &automation.ValidationError{Field: "browserConfigId", Reason: "browser config does not exist", Err: err}
	}
	if err != nil {
		return browser.SessionSpec{}, fmt.Errorf("load browser config: %w", err)
	}
	if !cfg.Usable() {
		return browser.SessionSpec{}, &automation.ValidationError{
			Field:  "browserConfig",
			Reason: fmt.Sprintf("session is %s, re-authentication required", cfg.SessionStatus),
		}
	}

	jar, err := r.cookies.Open(cfg.Cookies)
	if err != nil {
		return browser.SessionSpec{}, fmt.Errorf("open cookie jar: %w", err)
	}
	cookies, err := browser.ParseCookies(jar)
	if err != nil {
		return browser.SessionSpec{}, &automation.ValidationError{Field: "cookies", Reason: "unreadable cookie jar", Err: err}
	}

	proxy, err := r.proxies.ProxyFor(ctx, run.Tenant, run.UserID)
	if err != nil {
		return browser.SessionSpec{}, fmt.Errorf("resolve proxy: %w", err)
	}
	return browser.SessionSpec{ProxyURI: proxy, Cookies: cookies, UserAgent: cfg.UserAgent}, nil
}

func (r *Runner) succeed(ctx context.Context, span trace.Span, log zerolog.Logger, run *automation.RunRecord, data any) Outcome {
	raw, err := json.Marshal(data)
	if err != nil {
		return r.fail(ctx, span, log, run, fmt.Errorf("encode result: %w", err))
	}

	pctx, cancel := persistContext(ctx)
	defer cancel()

	now := r.now()
	result := &automation.RunResult{
		ID:         uuid.New(),
		RunID:      run.ID,
		Type:       run.Type,
		ResultData: raw,
		CreatedAt:  now,
	}
	if err := r.stores.Results.Insert(pctx, result); err != nil {
		return r.fail(ctx, span, log, run, fmt.Errorf("persist run result: %w", err))
	}

	run.Finish(automation.StatusCompleted, now)
	if err := r.stores.Runs.UpdateByID(pctx, run); err != nil {
		log.Error().Err(err).Msg("persist completed run")
	}

	r.metrics.RunFinished(string(run.Type), string(run.Status), run.RunDuration)
	span.SetStatus(codes.Ok, "")
	log.Info().Dur("duration", run.RunDuration).Msg("run completed")
	return Outcome{RunID: run.ID, Status: run.Status, Duration: run.RunDuration}
}

func (r *Runner) fail(ctx context.Context, span trace.Span, log zerolog.Logger, run *automation.RunRecord, cause error) Outcome {
	pctx, cancel := persistContext(ctx)
	defer cancel()

	ce := errclass.Classify(cause)
	if snap, ok := browser.SnapshotFrom(cause); ok && r.artifacts != nil && len(snap.Screenshot) > 0 {
		key, err := r.artifacts.Put(pctx, artifacts.ScreenshotKey(run.Tenant, run.ID, snap.TakenAt), "image/jpeg", snap.Screenshot)
		if err != nil {
			ce.Details["screenshotError"] = err.Error()
		} else {
			ce.Details["screenshot"] = key
		}
	}

	now := r.now()
	run.Finish(automation.StatusFailed, now)
	if err := r.stores.Runs.UpdateByID(pctx, run); err != nil {
		log.Error().Err(err).Msg("persist failed run")
	}

	runErr := &automation.RunError{
		ID:           uuid.New(),
		RunID:        run.ID,
		OccurredAt:   now,
		ErrorType:    string(ce.Type),
		ErrorCode:    string(ce.Code),
		ErrorMessage: ce.Message,
		ErrorDetails: ce.Details,
		Severity:     string(ce.Severity),
		Reference:    ce.Reference,
	}
	if err := r.stores.Errors.Insert(pctx, runErr); err != nil {
		log.Error().Err(err).Msg("persist run error")
	}

	invalidated, err := r.health.OnCriticalError(pctx, run.Tenant, run.UserID, ce)
	if err != nil {
		log.Error().Err(err).Msg("invalidate session")
	}
	if invalidated {
		r.metrics.SessionInvalidated()
	}

	r.metrics.RunFinished(string(run.Type), string(run.Status), run.RunDuration)
	span.RecordError(cause)
	span.SetStatus(codes.Error, string(ce.Code))

	event := log.Warn()
	if ce.Severity == errclass.SeverityHigh || ce.Severity == errclass.SeverityCritical {
		event = log.Error()
	}
	event.Err(cause).
		Str("code", string(ce.Code)).
		Str("error_type", string(ce.Type)).
		Str("severity", string(ce.Severity)).
		Str("reference", ce.Reference).
		Bool("session_invalidated", invalidated).
		Dur("duration", run.RunDuration).
		Msg("run failed")

	return Outcome{RunID: run.ID, Status: run.Status, Error: &ce, SessionInvalidated: invalidated, Duration: run.RunDuration}
}

// failSafely is fail for the panic path. A second panic while persisting
// the failure is logged and swallowed.
func (r *Runner) failSafely(ctx context.Context, span trace.Span, log zerolog.Logger, run *automation.RunRecord, cause error) (out Outcome) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("recording run failure panicked")
			out = Outcome{RunID: run.ID, Status: automation.StatusFailed}
		}
	}()
	return r.fail(ctx, span, log, run, cause)
}

func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}
