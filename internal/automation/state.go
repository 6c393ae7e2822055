package automation

import (
	"fmt"
	"time"
)

type RunStatus string

const (
	StatusScheduled RunStatus = "SCHEDULED"
	StatusRunning   RunStatus = "RUNNING"
	StatusCompleted RunStatus = "COMPLETED"
	StatusFailed    RunStatus = "FAILED"
	StatusCancelled RunStatus = "CANCELLED"
	StatusRetrying  RunStatus = "RETRYING"
	StatusProcessed RunStatus = "PROCESSED"
)

// IsTerminal reports whether no further transition happens without an
// external actor re-enqueueing the run.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusProcessed:
		return true
	default:
		return false
	}
}

// transitions is the full contract. The runner drives only
// SCHEDULED->RUNNING->{COMPLETED,FAILED}; the rest belongs to schedulers
// and downstream consumers.
var transitions = map[RunStatus][]RunStatus{
	StatusScheduled: {StatusRunning, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusFailed:    {StatusRetrying},
	StatusRetrying:  {StatusScheduled, StatusRunning, StatusCancelled},
	StatusCompleted: {StatusProcessed},
}

// CanTransition reports whether from->to is a legal run transition.
func CanTransition(from, to RunStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// MarkRunning moves a SCHEDULED run to RUNNING and stamps StartedAt.
func (r *RunRecord) MarkRunning(now time.Time) error {
	if r.Status != StatusScheduled {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("run must be %s to start, got %s", StatusScheduled, r.Status)}
	}
	r.Status = StatusRunning
	r.StartedAt = &now
	return nil
}

// Finish moves a RUNNING run to a terminal status and stamps FinishedAt.
// A run that never reached RUNNING gets StartedAt = FinishedAt so the
// timestamp ordering holds for every terminal record.
func (r *RunRecord) Finish(status RunStatus, now time.Time) {
	if r.StartedAt == nil {
		started := now
		r.StartedAt = &started
	}
	if now.Before(*r.StartedAt) {
		now = *r.StartedAt
	}
	r.Status = status
	r.FinishedAt = &now
	r.RunDuration = now.Sub(*r.StartedAt)
}

// Cancel applies an external cancellation to a run that has not started.
func (r *RunRecord) Cancel(now time.Time) error {
	if r.Status != StatusScheduled && r.Status != StatusRetrying {
		return fmt.Errorf("cannot cancel run in status %s", r.Status)
	}
	r.Finish(StatusCancelled, now)
	return nil
}
