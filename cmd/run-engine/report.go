package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nbenliogludev/go-browser-run-engine/internal/automation"
	"github.com/nbenliogludev/go-browser-run-engine/internal/runner"
)

// printReport writes a human summary of a finished run. result is the stored
// RunResult payload, if the caller has it.
func printReport(w io.Writer, run *automation.RunRecord, out runner.Outcome, result json.RawMessage) error {
	var b strings.Builder
	b.WriteString("\n===== RUN REPORT =====\n")
	fmt.Fprintf(&b, "Run:       %s\n", run.ID)
	fmt.Fprintf(&b, "Type:      %s\n", run.Type)
	fmt.Fprintf(&b, "Owner:     %s/%s\n", run.Tenant, run.UserID)
	fmt.Fprintf(&b, "Status:    %s\n", out.Status)
	fmt.Fprintf(&b, "Duration:  %s\n", out.Duration)

	if ce := out.Error; ce != nil {
		fmt.Fprintf(&b, "Error:     %s %s (%s, %s)\n", ce.Code, ce.Message, ce.Type, ce.Severity)
		if ce.Reference != "" {
			fmt.Fprintf(&b, "Reference: %s\n", ce.Reference)
		}
		if shot, ok := ce.Details["screenshot"].(string); ok {
			fmt.Fprintf(&b, "Snapshot:  %s\n", shot)
		}
	}
	if out.SessionInvalidated {
		b.WriteString("Session:   marked INVALID, refresh the cookie jar\n")
	}
	if len(result) > 0 {
		var pretty json.RawMessage
		if err := json.Unmarshal(result, &pretty); err == nil {
			if indented, err := json.MarshalIndent(pretty, "", "  "); err == nil {
				result = indented
			}
		}
		b.WriteString("Result:\n")
		b.Write(result)
		b.WriteString("\n")
	}
	b.WriteString("======================\n")

	_, err := io.WriteString(w, b.String())
	return err
}
