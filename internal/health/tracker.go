// Package health propagates session-invalidating run failures to the shared
// browser config, so schedulers stop dispatching against a dead login.
package health

import (
	"context"
	"fmt"

	"github.com/nbenliogludev/go-browser-run-engine/internal/automation"
	"github.com/nbenliogludev/go-browser-run-engine/internal/errclass"
)

type Tracker struct {
	configs      automation.ConfigRepository
	onInvalidate func(tenant, userID string)
}

type Option func(*Tracker)

// OnInvalidate registers a hook called after a config was marked INVALID.
func OnInvalidate(fn func(tenant, userID string)) Option {
	return func(t *Tracker) { t.onInvalidate = fn }
}

func NewTracker(configs automation.ConfigRepository, opts ...Option) *Tracker {
	t := &Tracker{configs: configs}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnCriticalError marks the owner's browser config INVALID when ce carries
// the invalid-session reference. It reports whether it did.
func (t *Tracker) OnCriticalError(ctx context.Context, tenant, userID string, ce errclass.ClassifiedError) (bool, error) {
	if !ce.InvalidatesSession() {
		return false, nil
	}
	if err := t.configs.UpdateByUserID(ctx, tenant, userID, automation.SessionInvalid); err != nil {
		return false, fmt.Errorf("invalidate session for %s/%s: %w", tenant, userID, err)
	}
	if t.onInvalidate != nil {
		t.onInvalidate(tenant, userID)
	}
	return true, nil
}
