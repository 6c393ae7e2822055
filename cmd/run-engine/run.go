package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nbenliogludev/go-browser-run-engine/internal/bus"
	"github.com/nbenliogludev/go-browser-run-engine/internal/runner"
	"github.com/nbenliogludev/go-browser-run-engine/internal/store/postgres"
)

func (a *app) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run <run-id>",
		Short: "Execute one stored run now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("run id: %w", err)
			}
			if err := a.cfg.RequireDB(); err != nil {
				return err
			}
			ctx := cmd.Context()

			store, err := postgres.Open(ctx, a.cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer store.Close()

			eng, err := a.newEngine(ctx, runner.Stores{
				Runs:    store.Runs,
				Results: store.Results,
				Errors:  store.Errors,
				Configs: store.Configs,
			}, nil)
			if err != nil {
				return err
			}
			defer eng.Close()

			var opts []runner.DispatcherOption
			opts = append(opts, runner.WithDispatchLogger(a.log))
			if a.cfg.NATSURL != "" {
				b, err := bus.New(a.cfg.NATSURL)
				if err != nil {
					return fmt.Errorf("connect nats: %w", err)
				}
				defer b.Close()
				opts = append(opts, runner.WithPublisher(b))
			}

			d := runner.NewDispatcher(eng.runner, store.Runs, store.Configs, opts...)
			out, err := d.Dispatch(ctx, runID)
			if err != nil {
				return err
			}

			run, err := store.Runs.FindByID(ctx, runID)
			if err != nil {
				return err
			}
			return printReport(os.Stdout, run, out, nil)
		},
	}
}
