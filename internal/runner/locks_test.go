package runner

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigLocksExcludeSameKey(t *testing.T) {
	l := NewConfigLocks()
	a, b := uuid.New(), uuid.New()

	unlockA, ok := l.TryLock(a)
	require.True(t, ok)
	_, ok = l.TryLock(a)
	assert.False(t, ok)

	unlockB, ok := l.TryLock(b)
	require.True(t, ok)

	unlockA()
	unlockA()
	again, ok := l.TryLock(a)
	require.True(t, ok)
	again()
	unlockB()
	assert.Zero(t, l.Held())
}

func TestConfigLocksLockWaitsAndHonoursContext(t *testing.T) {
	l := NewConfigLocks()
	id := uuid.New()
	unlock, err := l.Lock(context.Background(), id)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	acquired := make(chan struct{})
	go func() {
		u, err := l.Lock(context.Background(), id)
		if err == nil {
			u()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a held lock")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-acquired
	assert.Zero(t, l.Held())
}
