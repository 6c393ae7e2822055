package main

import (
	"github.com/spf13/cobra"

	"github.com/nbenliogludev/go-browser-run-engine/internal/store/postgres"
)

func (a *app) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.RequireDB(); err != nil {
				return err
			}
			return a.migrate(cmd)
		},
	}
}

func (a *app) migrate(cmd *cobra.Command) error {
	results, err := postgres.Migrate(cmd.Context(), a.cfg.DBDSN)
	if err != nil {
		return err
	}
	for _, r := range results {
		a.log.Info().
			Int64("version", r.Source.Version).
			Str("direction", r.Direction).
			Dur("took", r.Duration).
			Msg("migration applied")
	}
	if len(results) == 0 {
		a.log.Info().Msg("schema up to date")
	}
	return nil
}
