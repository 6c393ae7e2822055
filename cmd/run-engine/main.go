// Command run-engine executes browser automation runs. It serves the HTTP
// API, consumes scheduled runs from NATS and runs single automations locally.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nbenliogludev/go-browser-run-engine/internal/config"
	"github.com/nbenliogludev/go-browser-run-engine/internal/telemetry"
)

const serviceName = "run-engine"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	defer a.close()

	if err := a.rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// app carries what every subcommand shares once the root has set it up.
type app struct {
	envFiles []string
	logLevel string
	jsonLogs bool

	cfg config.Config
	log zerolog.Logger
	tel *telemetry.Telemetry
}

func (a *app) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:               serviceName,
		Short:             "Browser automation run engine",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	cmd.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", nil, "Dotenv files to load before the environment (default .env)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&a.jsonLogs, "json-logs", false, "Write logs as JSON instead of console output")

	cmd.AddCommand(a.migrateCommand())
	cmd.AddCommand(a.serveCommand())
	cmd.AddCommand(a.workerCommand())
	cmd.AddCommand(a.runCommand())
	cmd.AddCommand(a.execCommand())
	return cmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	level, err := zerolog.ParseLevel(a.logLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	if a.jsonLogs {
		out = os.Stderr
	}
	a.log = zerolog.New(out).Level(level).With().Timestamp().Str("service", serviceName).Logger()
	log.Logger = a.log

	cfg, err := config.Load(ctx, a.envFiles...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	tel, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.tel = tel
	return nil
}

func (a *app) close() {
	if a.tel == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tel.Shutdown(ctx); err != nil {
		a.log.Error().Err(err).Msg("shutdown telemetry")
	}
}
