package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nbenliogludev/go-browser-run-engine/internal/artifacts"
	"github.com/nbenliogludev/go-browser-run-engine/internal/automation"
	"github.com/nbenliogludev/go-browser-run-engine/internal/runner"
	"github.com/nbenliogludev/go-browser-run-engine/internal/store/memory"
)

// execOptions describe one local run against in-memory stores.
type execOptions struct {
	runType       string
	payload       string
	payloadFile   string
	cookiesFile   string
	userAgent     string
	tenant        string
	userID        string
	screenshotOut string
}

func (a *app) execCommand() *cobra.Command {
	var o execOptions

	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Run one automation locally without a database",
		Long: "Run one automation against in-memory stores. The cookie jar may be a\n" +
			"plain JSON export or an age-sealed one when AGE_IDENTITY is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.exec(cmd, o)
		},
	}

	types := make([]string, 0, len(automation.RunTypes))
	for _, t := range automation.RunTypes {
		types = append(types, string(t))
	}
	cmd.Flags().StringVar(&o.runType, "type", "", "Run type: "+strings.Join(types, ", "))
	cmd.Flags().StringVar(&o.payload, "payload", "{}", "Run payload as JSON")
	cmd.Flags().StringVar(&o.payloadFile, "payload-file", "", "Read the payload from a file instead")
	cmd.Flags().StringVar(&o.cookiesFile, "cookies", "", "Cookie jar file captured from a logged-in browser")
	cmd.Flags().StringVar(&o.userAgent, "user-agent", "", "User agent the session was captured with")
	cmd.Flags().StringVar(&o.tenant, "tenant", "local", "Tenant the run belongs to")
	cmd.Flags().StringVar(&o.userID, "user", "local", "User the run belongs to")
	cmd.Flags().StringVar(&o.screenshotOut, "screenshot-out", "", "Write the failure screenshot here")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func (a *app) exec(cmd *cobra.Command, o execOptions) error {
	ctx := cmd.Context()

	payload := []byte(o.payload)
	if o.payloadFile != "" {
		data, err := os.ReadFile(o.payloadFile)
		if err != nil {
			return fmt.Errorf("read payload: %w", err)
		}
		payload = data
	}
	if !json.Valid(payload) {
		return errors.New("payload is not valid JSON")
	}

	var jar string
	if o.cookiesFile != "" {
		data, err := os.ReadFile(o.cookiesFile)
		if err != nil {
			return fmt.Errorf("read cookies: %w", err)
		}
		jar = string(data)
	}

	store := memory.New()
	cfg := &automation.BrowserConfig{
		Tenant:        o.tenant,
		UserID:        o.userID,
		Cookies:       jar,
		UserAgent:     o.userAgent,
		SessionStatus: automation.SessionValid,
	}
	if err := store.Configs.Upsert(ctx, cfg); err != nil {
		return err
	}
	run := automation.NewRunRecord(cfg, automation.RunType(strings.ToUpper(o.runType)), payload, automation.TriggeredManual)
	if err := store.Runs.Create(ctx, run); err != nil {
		return err
	}

	var shots artifacts.Store
	local := artifacts.NewMemoryStore()
	if !a.cfg.S3.Enabled() {
		shots = local
	}
	eng, err := a.newEngine(ctx, runner.Stores{
		Runs:    store.Runs,
		Results: store.Results,
		Errors:  store.Errors,
		Configs: store.Configs,
	}, shots)
	if err != nil {
		return err
	}
	defer eng.Close()

	out := eng.runner.RunAutomation(ctx, run)

	stored, err := store.Runs.FindByID(ctx, run.ID)
	if err != nil {
		return err
	}
	var result json.RawMessage
	if res := store.Results.ForRun(run.ID); len(res) > 0 {
		result = res[0].ResultData
	}
	if err := printReport(cmd.OutOrStdout(), stored, out, result); err != nil {
		return err
	}

	if o.screenshotOut != "" && out.Error != nil {
		if key, ok := out.Error.Details["screenshot"].(string); ok && shots != nil {
			obj, err := local.Get(key)
			if err != nil {
				return err
			}
			if err := os.WriteFile(o.screenshotOut, obj.Data, 0o644); err != nil {
				return fmt.Errorf("write screenshot: %w", err)
			}
		}
	}
	if out.Status != automation.StatusCompleted {
		return fmt.Errorf("run %s", strings.ToLower(string(out.Status)))
	}
	return nil
}
