package runner

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ConfigLocks is a keyed mutex: at most one holder per browser config.
// Entries are dropped once nobody holds or waits for them.
type ConfigLocks struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func NewConfigLocks() *ConfigLocks {
	return &ConfigLocks{entries: map[uuid.UUID]*lockEntry{}}
}

func (l *ConfigLocks) ref(id uuid.UUID) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[id] = e
	}
	e.refs++
	return e
}

func (l *ConfigLocks) unref(id uuid.UUID, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, id)
	}
}

func (l *ConfigLocks) unlocker(id uuid.UUID, e *lockEntry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.unref(id, e)
		})
	}
}

// Lock blocks until id is free or ctx is done. The returned func releases
// the lock and is safe to call more than once.
func (l *ConfigLocks) Lock(ctx context.Context, id uuid.UUID) (func(), error) {
	e := l.ref(id)
	select {
	case e.sem <- struct{}{}:
		return l.unlocker(id, e), nil
	case <-ctx.Done():
		l.unref(id, e)
		return nil, ctx.Err()
	}
}

// TryLock takes the lock only if it is free right now.
func (l *ConfigLocks) TryLock(id uuid.UUID) (func(), bool) {
	e := l.ref(id)
	select {
	case e.sem <- struct{}{}:
		return l.unlocker(id, e), true
	default:
		l.unref(id, e)
		return nil, false
	}
}

// Held reports how many configs are currently locked or waited on.
func (l *ConfigLocks) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
