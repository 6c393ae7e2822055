package bus

import (
	"time"

	"github.com/google/uuid"
)

// RunScheduled asks a worker to execute a run that is already persisted.
type RunScheduled struct {
	RunID           uuid.UUID `json:"runId"`
	BrowserConfigID uuid.UUID `json:"browserConfigId"`
	Tenant          string    `json:"tenant"`
	UserID          string    `json:"userId"`
	Type            string    `json:"type"`
}

// RunFinished reports the outcome of a run once it is persisted.
type RunFinished struct {
	RunID          uuid.UUID     `json:"runId"`
	Tenant         string        `json:"tenant"`
	UserID         string        `json:"userId"`
	Type           string        `json:"type"`
	Status         string        `json:"status"`
	ErrorCode      string        `json:"errorCode,omitempty"`
	Reference      string        `json:"reference,omitempty"`
	SessionInvalid bool          `json:"sessionInvalid,omitempty"`
	Duration       time.Duration `json:"duration"`
	FinishedAt     time.Time     `json:"finishedAt"`
}
