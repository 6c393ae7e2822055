package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nbenliogludev/go-browser-run-engine/internal/automation"
)

type RunStore struct {
	orm     *gorm.DB
	queries *RunQueries
}

func (s *RunStore) Create(ctx context.Context, run *automation.RunRecord) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	m := runFromDomain(run)
	return s.orm.WithContext(ctx).Create(&m).Error
}

func (s *RunStore) UpdateByID(ctx context.Context, run *automation.RunRecord) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	m := runFromDomain(run)
	res := s.orm.WithContext(ctx).Model(&m).Select("*").Omit("id").Updates(&m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("run %s: %w", run.ID, automation.ErrNotFound)
	}
	return nil
}

func (s *RunStore) FindByID(ctx context.Context, id uuid.UUID) (*automation.RunRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var m runModel
	if err := s.orm.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("run %s: %w", id, automation.ErrNotFound)
		}
		return nil, err
	}
	return m.toDomain(), nil
}

func (s *RunStore) ListByUser(ctx context.Context, tenant, userID string, limit int) ([]*automation.RunRecord, error) {
	return s.queries.ListByUser(ctx, tenant, userID, limit)
}

type ResultStore struct {
	orm *gorm.DB
}

func (s *ResultStore) Insert(ctx context.Context, res *automation.RunResult) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	m := resultModel{
		ID:         res.ID,
		RunID:      res.RunID,
		Type:       string(res.Type),
		ResultData: datatypes.JSON(res.ResultData),
		Processed:  res.Processed,
		CreatedAt:  res.CreatedAt,
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return s.orm.WithContext(ctx).Create(&m).Error
}

type ErrorStore struct {
	orm *gorm.DB
}

func (s *ErrorStore) Insert(ctx context.Context, e *automation.RunError) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	m := errorModel{
		ID:           e.ID,
		RunID:        e.RunID,
		OccurredAt:   e.OccurredAt,
		ErrorType:    e.ErrorType,
		ErrorCode:    e.ErrorCode,
		ErrorMessage: e.ErrorMessage,
		ErrorDetails: datatypes.JSONMap(e.ErrorDetails),
		Severity:     e.Severity,
		Reference:    e.Reference,
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return s.orm.WithContext(ctx).Create(&m).Error
}

type ConfigStore struct {
	orm *gorm.DB
}

func (s *ConfigStore) FindByID(ctx context.Context, id uuid.UUID) (*automation.BrowserConfig, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var m configModel
	if err := s.orm.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("browser config %s: %w", id, automation.ErrNotFound)
		}
		return nil, err
	}
	return m.toDomain(), nil
}

func (s *ConfigStore) FindByUserID(ctx context.Context, tenant, userID string) (*automation.BrowserConfig, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	var m configModel
	if err := s.orm.WithContext(ctx).First(&m, "tenant = ? AND user_id = ?", tenant, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("browser config for %s/%s: %w", tenant, userID, automation.ErrNotFound)
		}
		return nil, err
	}
	return m.toDomain(), nil
}

// Upsert inserts cfg or replaces the session of the existing config for the
// same tenant and user. cfg receives the stored ID and timestamps.
func (s *ConfigStore) Upsert(ctx context.Context, cfg *automation.BrowserConfig) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	m := configFromDomain(cfg)
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now

	err := s.orm.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"cookies", "user_agent", "session_status", "updated_at"}),
	}).Create(&m).Error
	if err != nil {
		return err
	}

	var stored configModel
	if err := s.orm.WithContext(ctx).First(&stored, "tenant = ? AND user_id = ?", cfg.Tenant, cfg.UserID).Error; err != nil {
		return err
	}
	*cfg = *stored.toDomain()
	return nil
}

func (s *ConfigStore) UpdateByUserID(ctx context.Context, tenant, userID string, status automation.SessionStatus) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	res := s.orm.WithContext(ctx).Model(&configModel{}).
		Where("tenant = ? AND user_id = ?", tenant, userID).
		Updates(map[string]any{"session_status": string(status), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("browser config for %s/%s: %w", tenant, userID, automation.ErrNotFound)
	}
	return nil
}
