// Package migrations holds the schema history of the run tables.
package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Tables as of version 1. Later migrations must not edit these.

type BrowserConfig struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Tenant        string    `gorm:"type:text;not null;uniqueIndex:idx_browser_configs_owner"`
	UserID        string    `gorm:"type:text;not null;uniqueIndex:idx_browser_configs_owner"`
	Cookies       string    `gorm:"type:text;not null;default:''"`
	UserAgent     string    `gorm:"type:text;not null;default:''"`
	SessionStatus string    `gorm:"type:text;not null;default:'VALID'"`
	CreatedAt     time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt     time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

type AutomationRun struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey"`
	BrowserConfigID uuid.UUID      `gorm:"type:uuid;not null;index"`
	Tenant          string         `gorm:"type:text;not null;index:idx_automation_runs_owner"`
	UserID          string         `gorm:"type:text;not null;index:idx_automation_runs_owner"`
	Type            string         `gorm:"type:text;not null"`
	Payload         datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'::jsonb"`
	Status          string         `gorm:"type:text;not null;index"`
	ScheduledAt     time.Time      `gorm:"type:timestamptz;not null;index"`
	StartedAt       *time.Time     `gorm:"type:timestamptz"`
	FinishedAt      *time.Time     `gorm:"type:timestamptz"`
	RunDurationMS   int64          `gorm:"not null;default:0"`
	RetryCount      int            `gorm:"not null;default:0"`
	Priority        int            `gorm:"not null;default:0"`
	TriggeredBy     string         `gorm:"type:text;not null"`
	BrowserConfig   BrowserConfig  `gorm:"foreignKey:BrowserConfigID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type RunResult struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	RunID      uuid.UUID      `gorm:"type:uuid;not null;index"`
	Type       string         `gorm:"type:text;not null"`
	ResultData datatypes.JSON `gorm:"type:jsonb"`
	Processed  bool           `gorm:"not null;default:false"`
	CreatedAt  time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	Run        AutomationRun  `gorm:"foreignKey:RunID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type RunError struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey"`
	RunID        uuid.UUID         `gorm:"type:uuid;not null;index"`
	OccurredAt   time.Time         `gorm:"type:timestamptz;not null"`
	ErrorType    string            `gorm:"type:text;not null"`
	ErrorCode    string            `gorm:"type:text;not null"`
	ErrorMessage string            `gorm:"type:text;not null"`
	ErrorDetails datatypes.JSONMap `gorm:"type:jsonb"`
	Severity     string            `gorm:"type:text;not null"`
	Reference    string            `gorm:"type:text;not null;default:''"`
	Run          AutomationRun     `gorm:"foreignKey:RunID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// Migrations lists every schema version in order.
func Migrations() []*goose.Migration {
	return []*goose.Migration{
		goose.NewGoMigration(1, &goose.GoFunc{RunTx: upInit}, &goose.GoFunc{RunTx: downInit}),
	}
}

func open(tx *sql.Tx) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := open(tx)
	if err != nil {
		return err
	}

	// belongs-to foreign keys are created together with their tables
	return gormDB.WithContext(ctx).AutoMigrate(
		&BrowserConfig{},
		&AutomationRun{},
		&RunResult{},
		&RunError{},
	)
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := open(tx)
	if err != nil {
		return err
	}

	return gormDB.WithContext(ctx).Migrator().DropTable(
		&RunError{},
		&RunResult{},
		&AutomationRun{},
		&BrowserConfig{},
	)
}
