package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failingTimes(n int) (func(context.Context) (string, error), *int, []error) {
	calls := 0
	errs := make([]error, n)
	for i := range errs {
		errs[i] = fmt.Errorf("attempt %d failed", i)
	}
	return func(context.Context) (string, error) {
		defer func() { calls++ }()
		if calls < n {
			return "", errs[calls]
		}
		return "ok", nil
	}, &calls, errs
}

func TestDoSucceedsAfterNMinusOneFailures(t *testing.T) {
	for _, attempts := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("attempts=%d", attempts), func(t *testing.T) {
			op, calls, _ := failingTimes(attempts - 1)

			got, err := Do(context.Background(), attempts, time.Millisecond, op)
			require.NoError(t, err)
			assert.Equal(t, "ok", got)
			assert.Equal(t, attempts, *calls)
		})
	}
}

func TestDoSurfacesLastErrorUnchanged(t *testing.T) {
	op, calls, errs := failingTimes(3)

	_, err := Do(context.Background(), 3, time.Millisecond, op)
	require.Error(t, err)
	assert.Same(t, errs[2], err, "final attempt's error must come back as-is")
	assert.Equal(t, 3, *calls)
}

func TestDoBackoffDoubles(t *testing.T) {
	var stamps []time.Time
	base := 20 * time.Millisecond
	_, err := Do(context.Background(), 3, base, func(context.Context) (int, error) {
		stamps = append(stamps, time.Now())
		return 0, errors.New("flaky")
	})
	require.Error(t, err)
	require.Len(t, stamps, 3)

	first := stamps[1].Sub(stamps[0])
	second := stamps[2].Sub(stamps[1])
	assert.GreaterOrEqual(t, first, base)
	assert.GreaterOrEqual(t, second, 2*base)
}

func TestDoStopsOnPermanent(t *testing.T) {
	sentinel := errors.New("not applicable")
	calls := 0
	_, err := Do(context.Background(), 5, time.Millisecond, func(context.Context) (int, error) {
		calls++
		return 0, Permanent(sentinel)
	})
	assert.Same(t, sentinel, err)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, 10, 50*time.Millisecond, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("flaky")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestStep(t *testing.T) {
	calls := 0
	err := Step(context.Background(), Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}, func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("first")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
