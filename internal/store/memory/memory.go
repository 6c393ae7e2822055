// Package memory implements the automation repositories in process memory.
// It backs the exec command and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nbenliogludev/go-browser-run-engine/internal/automation"
)

// Store bundles one of each repository.
type Store struct {
	Runs    *RunStore
	Results *ResultStore
	Errors  *ErrorStore
	Configs *ConfigStore
}

func New() *Store {
	return &Store{
		Runs:    &RunStore{runs: map[uuid.UUID]*automation.RunRecord{}},
		Results: &ResultStore{},
		Errors:  &ErrorStore{},
		Configs: &ConfigStore{byID: map[uuid.UUID]*automation.BrowserConfig{}},
	}
}

type RunStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*automation.RunRecord
}

func (s *RunStore) Create(_ context.Context, run *automation.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; ok {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	s.runs[run.ID] = run.Clone()
	return nil
}

func (s *RunStore) UpdateByID(_ context.Context, run *automation.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return fmt.Errorf("run %s: %w", run.ID, automation.ErrNotFound)
	}
	s.runs[run.ID] = run.Clone()
	return nil
}

func (s *RunStore) FindByID(_ context.Context, id uuid.UUID) (*automation.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, automation.ErrNotFound)
	}
	return run.Clone(), nil
}

func (s *RunStore) ListByUser(_ context.Context, tenant, userID string, limit int) ([]*automation.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*automation.RunRecord{}
	for _, r := range s.runs {
		if r.Tenant == tenant && r.UserID == userID {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.After(out[j].ScheduledAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type ResultStore struct {
	mu   sync.RWMutex
	rows []*automation.RunResult
}

func (s *ResultStore) Insert(_ context.Context, res *automation.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *res
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.rows = append(s.rows, &cp)
	return nil
}

// ForRun returns every result stored for runID.
func (s *ResultStore) ForRun(runID uuid.UUID) []*automation.RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*automation.RunResult
	for _, r := range s.rows {
		if r.RunID == runID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}

type ErrorStore struct {
	mu   sync.RWMutex
	rows []*automation.RunError
}

func (s *ErrorStore) Insert(_ context.Context, e *automation.RunError) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	s.rows = append(s.rows, &cp)
	return nil
}

// ForRun returns every error stored for runID.
func (s *ErrorStore) ForRun(runID uuid.UUID) []*automation.RunError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*automation.RunError
	for _, r := range s.rows {
		if r.RunID == runID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}

type ConfigStore struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*automation.BrowserConfig
}

func (s *ConfigStore) FindByID(_ context.Context, id uuid.UUID) (*automation.BrowserConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("browser config %s: %w", id, automation.ErrNotFound)
	}
	cp := *cfg
	return &cp, nil
}

func (s *ConfigStore) FindByUserID(_ context.Context, tenant, userID string) (*automation.BrowserConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cfg := s.lookup(tenant, userID); cfg != nil {
		cp := *cfg
		return &cp, nil
	}
	return nil, fmt.Errorf("browser config for %s/%s: %w", tenant, userID, automation.ErrNotFound)
}

// Upsert stores cfg, keyed by tenant and user. An existing config keeps its
// ID and creation time.
func (s *ConfigStore) Upsert(_ context.Context, cfg *automation.BrowserConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if cur := s.lookup(cfg.Tenant, cfg.UserID); cur != nil {
		cfg.ID, cfg.CreatedAt = cur.ID, cur.CreatedAt
	} else {
		if cfg.ID == uuid.Nil {
			cfg.ID = uuid.New()
		}
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now
	cp := *cfg
	s.byID[cp.ID] = &cp
	return nil
}

func (s *ConfigStore) UpdateByUserID(_ context.Context, tenant, userID string, status automation.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := s.lookup(tenant, userID)
	if cfg == nil {
		return fmt.Errorf("browser config for %s/%s: %w", tenant, userID, automation.ErrNotFound)
	}
	cfg.SessionStatus = status
	cfg.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *ConfigStore) lookup(tenant, userID string) *automation.BrowserConfig {
	for _, c := range s.byID {
		if c.Tenant == tenant && c.UserID == userID {
			return c
		}
	}
	return nil
}
