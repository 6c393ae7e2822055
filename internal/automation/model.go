// Package automation holds the run engine's domain model: run records and
// their state machine, browser configs, run artifacts, typed payloads and the
// repository ports the engine persists through.
package automation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type RunType string

const (
	RunFindConnections       RunType = "FIND_CONNECTIONS"
	RunSendConnectionRequest RunType = "SEND_CONNECTION_REQUEST"
	RunSendMessage           RunType = "SEND_MESSAGE"
	RunFindCompanyPeople     RunType = "FIND_COMPANY_PEOPLE"
	RunDownloadConnections   RunType = "DOWNLOAD_CONNECTIONS"
	RunGetMessages           RunType = "GET_MESSAGES"
	RunCheckConnectionStatus RunType = "CHECK_CONNECTION_STATUS"
	RunGetRecentPosts        RunType = "GET_RECENT_POSTS"
)

// RunTypes lists every run type the engine can dispatch.
var RunTypes = []RunType{
	RunFindConnections,
	RunSendConnectionRequest,
	RunSendMessage,
	RunFindCompanyPeople,
	RunDownloadConnections,
	RunGetMessages,
	RunCheckConnectionStatus,
	RunGetRecentPosts,
}

// Known reports whether t is one of RunTypes.
func (t RunType) Known() bool {
	for _, k := range RunTypes {
		if k == t {
			return true
		}
	}
	return false
}

type TriggeredBy string

const (
	TriggeredManual    TriggeredBy = "MANUAL"
	TriggeredScheduler TriggeredBy = "SCHEDULER"
)

type SessionStatus string

const (
	SessionValid   SessionStatus = "VALID"
	SessionInvalid SessionStatus = "INVALID"
	SessionExpired SessionStatus = "EXPIRED"
)

// RunRecord is one scheduled execution of a browser-driven action.
// The scheduler owns it; the runner mutates it only while executing.
type RunRecord struct {
	ID              uuid.UUID       `json:"id"`
	BrowserConfigID uuid.UUID       `json:"browserConfigId"`
	Tenant          string          `json:"tenant"`
	UserID          string          `json:"userId"`
	Type            RunType         `json:"type"`
	Payload         json.RawMessage `json:"payload"`
	Status          RunStatus       `json:"status"`
	ScheduledAt     time.Time       `json:"scheduledAt"`
	StartedAt       *time.Time      `json:"startedAt,omitempty"`
	FinishedAt      *time.Time      `json:"finishedAt,omitempty"`
	RunDuration     time.Duration   `json:"runDuration"`
	RetryCount      int             `json:"retryCount"`
	Priority        int             `json:"priority"`
	TriggeredBy     TriggeredBy     `json:"triggeredBy"`
}

// NewRunRecord builds a SCHEDULED run for the given config owner.
func NewRunRecord(cfg *BrowserConfig, t RunType, payload json.RawMessage, by TriggeredBy) *RunRecord {
	return &RunRecord{
		ID:              uuid.New(),
		BrowserConfigID: cfg.ID,
		Tenant:          cfg.Tenant,
		UserID:          cfg.UserID,
		Type:            t,
		Payload:         payload,
		Status:          StatusScheduled,
		ScheduledAt:     time.Now().UTC(),
		TriggeredBy:     by,
	}
}

// Clone returns a deep copy, so stores never share mutable state with callers.
func (r *RunRecord) Clone() *RunRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.Payload != nil {
		out.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		out.FinishedAt = &t
	}
	return &out
}

// BrowserConfig is a per-user captured login session plus its health.
type BrowserConfig struct {
	ID            uuid.UUID     `json:"id"`
	Tenant        string        `json:"tenant"`
	UserID        string        `json:"userId"`
	Cookies       string        `json:"cookies"`
	UserAgent     string        `json:"userAgent"`
	SessionStatus SessionStatus `json:"sessionStatus"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Usable reports whether runs may be dispatched against this config.
func (c *BrowserConfig) Usable() bool {
	return c != nil && c.SessionStatus == SessionValid
}

// RunResult is the single artifact of a successful run.
type RunResult struct {
	ID         uuid.UUID       `json:"id"`
	RunID      uuid.UUID       `json:"runId"`
	Type       RunType         `json:"type"`
	ResultData json.RawMessage `json:"resultData"`
	Processed  bool            `json:"processed"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// RunError is the single artifact of a failed run.
type RunError struct {
	ID           uuid.UUID      `json:"id"`
	RunID        uuid.UUID      `json:"runId"`
	OccurredAt   time.Time      `json:"occurredAt"`
	ErrorType    string         `json:"errorType"`
	ErrorCode    string         `json:"errorCode"`
	ErrorMessage string         `json:"errorMessage"`
	ErrorDetails map[string]any `json:"errorDetails,omitempty"`
	Severity     string         `json:"severity"`
	Reference    string         `json:"reference,omitempty"`
}
