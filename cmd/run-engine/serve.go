package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nbenliogludev/go-browser-run-engine/internal/api"
	"github.com/nbenliogludev/go-browser-run-engine/internal/bus"
	"github.com/nbenliogludev/go-browser-run-engine/internal/metrics"
	"github.com/nbenliogludev/go-browser-run-engine/internal/secrets"
	"github.com/nbenliogludev/go-browser-run-engine/internal/store/postgres"
)

func (a *app) serveCommand() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.RequireDB(); err != nil {
				return err
			}
			if migrate {
				if err := a.migrate(cmd); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
			}
			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply pending migrations before serving")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	store, err := postgres.Open(ctx, a.cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			a.log.Error().Err(err).Msg("close database")
		}
	}()

	sealer, err := secrets.NewSealer(a.cfg.AgeIdentity)
	if err != nil {
		return fmt.Errorf("age identity: %w", err)
	}
	if !sealer.Enabled() {
		a.log.Warn().Msg("AGE_IDENTITY not set, cookie jars are stored in plaintext")
	}

	opts := api.Options{
		Runs:           store.Runs,
		Configs:        store.Configs,
		Sealer:         sealer,
		Ready:          store.Ping,
		Metrics:        metrics.NewRecorder().Handler(),
		Middleware:     a.tel.Middleware,
		RatePerMinute:  a.cfg.HTTPRatePerMinute,
		AllowedOrigins: a.cfg.AllowedOrigins,
		Logger:         a.log.With().Str("component", "api").Logger(),
	}
	if a.cfg.NATSURL != "" {
		b, err := bus.New(a.cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer b.Close()
		if err := b.EnsureStream(); err != nil {
			return err
		}
		opts.Publisher = b
	} else {
		a.log.Warn().Msg("NATS_URL not set, created runs wait for the worker sweep")
	}

	handlers, err := api.New(opts)
	if err != nil {
		return err
	}
	return a.listen(ctx, a.cfg.HTTPAddr, handlers.Routes())
}

// listen serves h on addr until ctx is done, then shuts down gracefully.
func (a *app) listen(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("shutdown server")
	}
	return nil
}
