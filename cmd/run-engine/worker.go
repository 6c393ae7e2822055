package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/nbenliogludev/go-browser-run-engine/internal/bus"
	"github.com/nbenliogludev/go-browser-run-engine/internal/runner"
	"github.com/nbenliogludev/go-browser-run-engine/internal/store/postgres"
)

func (a *app) workerCommand() *cobra.Command {
	var opsAddr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume scheduled runs from NATS and execute them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.RequireDB(); err != nil {
				return err
			}
			if err := a.cfg.RequireNATS(); err != nil {
				return err
			}
			return a.work(cmd.Context(), opsAddr)
		},
	}

	cmd.Flags().StringVar(&opsAddr, "ops-addr", ":9090", "Address for /healthz and /metrics; empty disables them")
	return cmd
}

func (a *app) work(ctx context.Context, opsAddr string) error {
	store, err := postgres.Open(ctx, a.cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			a.log.Error().Err(err).Msg("close database")
		}
	}()

	b, err := bus.New(a.cfg.NATSURL)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer b.Close()
	if err := b.EnsureStream(); err != nil {
		return err
	}

	eng, err := a.newEngine(ctx, runner.Stores{
		Runs:    store.Runs,
		Results: store.Results,
		Errors:  store.Errors,
		Configs: store.Configs,
	}, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			a.log.Error().Err(err).Msg("close engine")
		}
	}()

	log := a.log.With().Str("component", "dispatcher").Logger()
	d := runner.NewDispatcher(eng.runner, store.Runs, store.Configs,
		runner.WithConcurrency(a.cfg.WorkerConcurrency),
		runner.WithPublisher(b),
		runner.WithDispatchLogger(log),
	)

	sub, err := b.Subscribe(ctx, bus.SubjectScheduled, a.cfg.WorkerDurable, d.Handle)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", bus.SubjectScheduled, err)
	}

	sweeper := runner.NewSweeper(store.Queries, d, a.cfg.SweepInterval, a.cfg.SweepGrace, log)
	go sweeper.Run(ctx)

	a.log.Info().
		Int("concurrency", a.cfg.WorkerConcurrency).
		Str("durable", a.cfg.WorkerDurable).
		Str("driver", a.cfg.BrowserDriver).
		Msg("worker started")

	if opsAddr != "" {
		r := chi.NewRouter()
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		r.Method("GET", "/metrics", eng.metrics.Handler())
		if err := a.listen(ctx, opsAddr, r); err != nil {
			a.log.Error().Err(err).Msg("ops server")
		}
	}
	<-ctx.Done()

	a.log.Info().Msg("worker stopping, waiting for in-flight runs")
	if err := sub.Close(); err != nil {
		a.log.Error().Err(err).Msg("close subscription")
	}
	d.Wait()
	return nil
}
