package main

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbenliogludev/go-browser-run-engine/internal/automation"
	"github.com/nbenliogludev/go-browser-run-engine/internal/errclass"
	"github.com/nbenliogludev/go-browser-run-engine/internal/runner"
)

func TestRootCommandTree(t *testing.T) {
	root := (&app{}).rootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"migrate", "serve", "worker", "run", "exec"})

	exec, _, err := root.Find([]string{"exec"})
	require.NoError(t, err)
	assert.NotNil(t, exec.Flags().Lookup("cookies"))
	assert.NotNil(t, exec.Flags().Lookup("screenshot-out"))
}

func TestRunCommandRejectsBadID(t *testing.T) {
	root := (&app{}).rootCommand()
	root.SetArgs([]string{"run", "not-a-uuid", "--env-file", "testdata/none.env"})
	err := root.Execute()
	assert.Error(t, err)
}

func TestReportForFailedRun(t *testing.T) {
	cfg := &automation.BrowserConfig{Tenant: "acme", UserID: "u1"}
	run := automation.NewRunRecord(cfg, automation.RunSendMessage, nil, automation.TriggeredManual)
	ce := &errclass.ClassifiedError{
		Code:      errclass.CodeExternal,
		Type:      errclass.TypeSession,
		Severity:  errclass.SeverityCritical,
		Reference: errclass.RefInvalidSession,
		Message:   "redirected to login",
		Details:   map[string]any{"screenshot": "screenshots/acme/x.jpg"},
	}
	out := runner.Outcome{
		RunID:              run.ID,
		Status:             automation.StatusFailed,
		Error:              ce,
		SessionInvalidated: true,
		Duration:           1500 * time.Millisecond,
	}

	var b strings.Builder
	require.NoError(t, printReport(&b, run, out, nil))
	report := b.String()
	assert.Contains(t, report, "FAILED")
	assert.Contains(t, report, "acme/u1")
	assert.Contains(t, report, "redirected to login")
	assert.Contains(t, report, "screenshots/acme/x.jpg")
	assert.Contains(t, report, "marked INVALID")
	assert.NotContains(t, report, "Result:")
}

func TestReportIndentsResult(t *testing.T) {
	cfg := &automation.BrowserConfig{Tenant: "acme", UserID: "u1"}
	run := automation.NewRunRecord(cfg, automation.RunCheckConnectionStatus, nil, automation.TriggeredManual)
	out := runner.Outcome{RunID: run.ID, Status: automation.StatusCompleted}

	var b strings.Builder
	require.NoError(t, printReport(&b, run, out, json.RawMessage(`{"status":"CONNECTED"}`)))
	assert.Contains(t, b.String(), "\"status\": \"CONNECTED\"")
	assert.NotContains(t, b.String(), "Error:")
}
