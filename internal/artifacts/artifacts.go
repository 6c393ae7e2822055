// Package artifacts stores binary evidence produced by runs, such as the
// screenshot taken when an action fails.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("artifact not found")

// Store persists one object and returns the key it can be found under.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// ScreenshotKey lays out failure screenshots by tenant and run.
func ScreenshotKey(tenant string, runID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("screenshots/%s/%s/%s.jpg", tenant, runID, at.UTC().Format("20060102T150405Z"))
}

// Object is one stored artifact.
type Object struct {
	ContentType string
	Data        []byte
}

// MemoryStore keeps artifacts in process. It backs local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string]Object{}}
}

func (m *MemoryStore) Put(_ context.Context, key, contentType string, data []byte) (string, error) {
	if key == "" {
		return "", errors.New("artifact key required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{ContentType: contentType, Data: append([]byte(nil), data...)}
	return key, nil
}

func (m *MemoryStore) Get(key string) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return Object{}, ErrNotFound
	}
	return obj, nil
}

// Keys lists what has been stored, in no particular order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}
