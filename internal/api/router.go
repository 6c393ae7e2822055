// Package api exposes the run engine over HTTP: session capture, run
// scheduling and run history, plus health and metrics endpoints.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nbenliogludev/go-browser-run-engine/internal/automation"
	"github.com/nbenliogludev/go-browser-run-engine/internal/bus"
	"github.com/nbenliogludev/go-browser-run-engine/internal/secrets"
)

const defaultRatePerMinute = 100

// Options wires the API's dependencies.
type Options struct {
	Runs    automation.RunsRepository
	Configs automation.ConfigRepository
	// Sealer encrypts cookie jars before they are stored. Nil stores them as sent.
	Sealer *secrets.Sealer
	// Publisher receives a bus.RunScheduled for every created run. Nil leaves
	// runs for the worker's sweep.
	Publisher bus.Publisher
	// Ready reports whether backing stores are reachable.
	Ready   func(ctx context.Context) error
	Metrics http.Handler
	// Middleware wraps the whole router, e.g. tracing.
	Middleware     func(http.Handler) http.Handler
	RatePerMinute  int
	AllowedOrigins []string
	Logger         zerolog.Logger
}

type API struct {
	opts Options
	log  zerolog.Logger
}

func New(opts Options) (*API, error) {
	if opts.Runs == nil {
		return nil, errors.New("runs repository is required")
	}
	if opts.Configs == nil {
		return nil, errors.New("config repository is required")
	}
	if opts.RatePerMinute <= 0 {
		opts.RatePerMinute = defaultRatePerMinute
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &API{opts: opts, log: opts.Logger}, nil
}

// Routes builds the chi router with every endpoint.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         int((10 * time.Minute).Seconds()),
	}))
	r.Use(httprate.Limit(a.opts.RatePerMinute, time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", a.handleReady)

	metrics := a.opts.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Method("GET", "/metrics", metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Put("/browser-configs", a.handleConfigPut)
		r.Post("/runs", a.handleRunCreate)
		r.Get("/runs/{runID}", a.handleRunGet)
		r.Get("/tenants/{tenant}/users/{userID}/runs", a.handleRunList)
	})

	if a.opts.Middleware != nil {
		return a.opts.Middleware(r)
	}
	return r
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.opts.Ready != nil {
		ctx, cancel := withTimeout(r.Context())
		defer cancel()
		if err := a.opts.Ready(ctx); err != nil {
			respondError(w, http.StatusServiceUnavailable, err)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
