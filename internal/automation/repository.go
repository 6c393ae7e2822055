package automation

import (
	"context"

	"github.com/google/uuid"
)

// RunsRepository persists run records. The runner only calls UpdateByID;
// the rest serves schedulers and the HTTP passthrough.
type RunsRepository interface {
	Create(ctx context.Context, run *RunRecord) error
	UpdateByID(ctx context.Context, run *RunRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*RunRecord, error)
	ListByUser(ctx context.Context, tenant, userID string, limit int) ([]*RunRecord, error)
}

type ResultsRepository interface {
	Insert(ctx context.Context, result *RunResult) error
}

type ErrorsRepository interface {
	Insert(ctx context.Context, runErr *RunError) error
}

type ConfigRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*BrowserConfig, error)
	FindByUserID(ctx context.Context, tenant, userID string) (*BrowserConfig, error)
	Upsert(ctx context.Context, cfg *BrowserConfig) error
	UpdateByUserID(ctx context.Context, tenant, userID string, status SessionStatus) error
}

// ProxyResolver yields the egress a user's runs go through. Pool selection
// lives outside the engine.
type ProxyResolver interface {
	ProxyFor(ctx context.Context, tenant, userID string) (string, error)
}

// StaticProxy routes every user through the same egress; empty means direct.
type StaticProxy string

func (p StaticProxy) ProxyFor(context.Context, string, string) (string, error) {
	return string(p), nil
}
