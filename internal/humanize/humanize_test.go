package humanize

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbenliogludev/go-browser-run-engine/internal/browser/browsertest"
)

func noSleep(slept *[]time.Duration) Option {
	return WithSleeper(func(ctx context.Context, d time.Duration) error {
		if slept != nil {
			*slept = append(*slept, d)
		}
		return ctx.Err()
	})
}

func TestPathEndsOnTarget(t *testing.T) {
	h := New(WithSeed(7), noSleep(nil))
	from, to := Point{X: 10, Y: 10}, Point{X: 610, Y: 410}

	path := h.Path(from, to, 20)
	require.Len(t, path, 20)
	assert.Equal(t, to, path[len(path)-1])

	// eased: first step covers far less than a linear share
	first := path[0]
	assert.Less(t, first.X-from.X, (to.X-from.X)/20)
}

func TestPathIsReproducibleWithSeed(t *testing.T) {
	a := New(WithSeed(42)).Path(Point{}, Point{X: 300, Y: 300}, 10)
	b := New(WithSeed(42)).Path(Point{}, Point{X: 300, Y: 300}, 10)
	assert.Equal(t, a, b)
}

func TestPauseStaysInRange(t *testing.T) {
	var slept []time.Duration
	h := New(WithSeed(1), noSleep(&slept))
	for i := 0; i < 50; i++ {
		require.NoError(t, h.Pause(context.Background(), 100*time.Millisecond, 200*time.Millisecond))
	}
	for _, d := range slept {
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.Less(t, d, 200*time.Millisecond)
	}
}

func TestScaleZeroDisablesPauses(t *testing.T) {
	var slept []time.Duration
	h := New(WithScale(0), noSleep(&slept))
	require.NoError(t, h.Think(context.Background()))
	assert.Equal(t, []time.Duration{0}, slept)
}

func TestClickMovesThenClicks(t *testing.T) {
	page := browsertest.NewPage().Show("button.connect")
	h := New(WithSeed(3), noSleep(nil))

	require.NoError(t, h.Click(context.Background(), page, "button.connect"))
	calls := page.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "click button.connect", calls[len(calls)-1])
	assert.Greater(t, page.Count("mouse"), 1)
}

func TestClickMissingElement(t *testing.T) {
	page := browsertest.NewPage()
	h := New(noSleep(nil))
	assert.Error(t, h.Click(context.Background(), page, "button.gone"))
	assert.Zero(t, page.Count("click"))
}

func TestTypeAndScroll(t *testing.T) {
	page := browsertest.NewPage().Show("textarea")
	h := New(WithSeed(9), noSleep(nil))

	require.NoError(t, h.Type(context.Background(), page, "textarea", "hello"))
	assert.Equal(t, 1, page.Count("type textarea hello"))

	require.NoError(t, h.Scroll(context.Background(), page, 3))
	assert.Equal(t, 3, page.Count("wheel"))
}

func TestPauseHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h := New()
	assert.ErrorIs(t, h.Pause(ctx, time.Second, 2*time.Second), context.Canceled)
}
