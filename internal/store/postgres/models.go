package postgres

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/nbenliogludev/go-browser-run-engine/internal/automation"
)

type configModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Tenant        string    `gorm:"type:text"`
	UserID        string    `gorm:"type:text"`
	Cookies       string    `gorm:"type:text"`
	UserAgent     string    `gorm:"type:text"`
	SessionStatus string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (configModel) TableName() string { return "browser_configs" }

func configFromDomain(c *automation.BrowserConfig) configModel {
	return configModel{
		ID:            c.ID,
		Tenant:        c.Tenant,
		UserID:        c.UserID,
		Cookies:       c.Cookies,
		UserAgent:     c.UserAgent,
		SessionStatus: string(c.SessionStatus),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func (m configModel) toDomain() *automation.BrowserConfig {
	return &automation.BrowserConfig{
		ID:            m.ID,
		Tenant:        m.Tenant,
		UserID:        m.UserID,
		Cookies:       m.Cookies,
		UserAgent:     m.UserAgent,
		SessionStatus: automation.SessionStatus(m.SessionStatus),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

type runModel struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey"`
	BrowserConfigID uuid.UUID      `gorm:"type:uuid"`
	Tenant          string         `gorm:"type:text"`
	UserID          string         `gorm:"type:text"`
	Type            string         `gorm:"type:text"`
	Payload         datatypes.JSON `gorm:"type:jsonb"`
	Status          string         `gorm:"type:text"`
	ScheduledAt     time.Time      `gorm:"type:timestamptz"`
	StartedAt       *time.Time     `gorm:"type:timestamptz"`
	FinishedAt      *time.Time     `gorm:"type:timestamptz"`
	RunDurationMS   int64
	RetryCount      int
	Priority        int
	TriggeredBy     string `gorm:"type:text"`
}

func (runModel) TableName() string { return "automation_runs" }

func runFromDomain(r *automation.RunRecord) runModel {
	payload := datatypes.JSON(r.Payload)
	if len(payload) == 0 {
		payload = datatypes.JSON("{}")
	}
	return runModel{
		ID:              r.ID,
		BrowserConfigID: r.BrowserConfigID,
		Tenant:          r.Tenant,
		UserID:          r.UserID,
		Type:            string(r.Type),
		Payload:         payload,
		Status:          string(r.Status),
		ScheduledAt:     r.ScheduledAt,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		RunDurationMS:   r.RunDuration.Milliseconds(),
		RetryCount:      r.RetryCount,
		Priority:        r.Priority,
		TriggeredBy:     string(r.TriggeredBy),
	}
}

func (m runModel) toDomain() *automation.RunRecord {
	return &automation.RunRecord{
		ID:              m.ID,
		BrowserConfigID: m.BrowserConfigID,
		Tenant:          m.Tenant,
		UserID:          m.UserID,
		Type:            automation.RunType(m.Type),
		Payload:         json.RawMessage(m.Payload),
		Status:          automation.RunStatus(m.Status),
		ScheduledAt:     m.ScheduledAt,
		StartedAt:       m.StartedAt,
		FinishedAt:      m.FinishedAt,
		RunDuration:     time.Duration(m.RunDurationMS) * time.Millisecond,
		RetryCount:      m.RetryCount,
		Priority:        m.Priority,
		TriggeredBy:     automation.TriggeredBy(m.TriggeredBy),
	}
}

type resultModel struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	RunID      uuid.UUID      `gorm:"type:uuid"`
	Type       string         `gorm:"type:text"`
	ResultData datatypes.JSON `gorm:"type:jsonb"`
	Processed  bool
	CreatedAt  time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (resultModel) TableName() string { return "run_results" }

type errorModel struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey"`
	RunID        uuid.UUID         `gorm:"type:uuid"`
	OccurredAt   time.Time         `gorm:"type:timestamptz"`
	ErrorType    string            `gorm:"type:text"`
	ErrorCode    string            `gorm:"type:text"`
	ErrorMessage string            `gorm:"type:text"`
	ErrorDetails datatypes.JSONMap `gorm:"type:jsonb"`
	Severity     string            `gorm:"type:text"`
	Reference    string            `gorm:"type:text"`
}

func (errorModel) TableName() string { return "run_errors" }
