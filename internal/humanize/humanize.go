// Package humanize makes page interactions look like a person drove them:
// thinking pauses, curved pointer paths, uneven scrolling and per-key typing
// delays.
package humanize

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/nbenliogludev/go-browser-run-engine/internal/browser"
)

// Point is a viewport coordinate.
type Point struct{ X, Y float64 }

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Humanizer holds the pointer position for one session. It is safe for
// concurrent use but sessions should not share one.
type Humanizer struct {
	mu     sync.Mutex
	rng    *rand.Rand
	sleep  SleepFunc
	scale  float64
	cursor Point
}

type Option func(*Humanizer)

// WithSeed makes every random choice reproducible.
func WithSeed(seed uint64) Option {
	return func(h *Humanizer) { h.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithSleeper replaces the real timer, mostly for tests.
func WithSleeper(fn SleepFunc) Option {
	return func(h *Humanizer) { h.sleep = fn }
}

// WithScale multiplies every pause. Zero disables pauses entirely.
func WithScale(scale float64) Option {
	return func(h *Humanizer) { h.scale = scale }
}

func New(opts ...Option) *Humanizer {
	h := &Humanizer{
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		sleep:  sleepCtx,
		scale:  1,
		cursor: Point{X: 200, Y: 150},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Humanizer) between(lo, hi float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return lo + h.rng.Float64()*(hi-lo)
}

func (h *Humanizer) duration(lo, hi time.Duration) time.Duration {
	return time.Duration(h.between(float64(lo), float64(hi)) * h.scale)
}

// Pause waits a random time in [lo, hi).
func (h *Humanizer) Pause(ctx context.Context, lo, hi time.Duration) error {
	return h.sleep(ctx, h.duration(lo, hi))
}

// Think is the pause before a deliberate step such as opening a profile.
func (h *Humanizer) Think(ctx context.Context) error {
	return h.Pause(ctx, 800*time.Millisecond, 2200*time.Millisecond)
}

// Hesitate is the short gap between related gestures.
func (h *Humanizer) Hesitate(ctx context.Context) error {
	return h.Pause(ctx, 120*time.Millisecond, 450*time.Millisecond)
}

// KeyDelay returns the delay between two keystrokes.
func (h *Humanizer) KeyDelay() time.Duration {
	return h.duration(45*time.Millisecond, 140*time.Millisecond)
}

// Path returns the intermediate pointer positions from one point to another.
// It eases in and out, bows sideways and jitters slightly; the last point is
// exactly to.
func (h *Humanizer) Path(from, to Point, steps int) []Point {
	if steps < 2 {
		steps = 2
	}
	dx, dy := to.X-from.X, to.Y-from.Y
	dist := math.Hypot(dx, dy)
	// unit normal for the sideways bow
	nx, ny := 0.0, 0.0
	if dist > 0 {
		nx, ny = -dy/dist, dx/dist
	}
	bow := h.between(-0.15, 0.15) * dist

	out := make([]Point, 0, steps)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		e := easeInOut(t)
		arc := math.Sin(math.Pi*t) * bow
		p := Point{
			X: from.X + dx*e + nx*arc,
			Y: from.Y + dy*e + ny*arc,
		}
		if i < steps {
			p.X += h.between(-1.5, 1.5)
			p.Y += h.between(-1.5, 1.5)
		} else {
			p = to
		}
		out = append(out, p)
	}
	return out
}

func easeInOut(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	f := -2*t + 2
	return 1 - f*f*f/2
}

// MoveTo glides the pointer to (x, y).
func (h *Humanizer) MoveTo(ctx context.Context, page browser.Page, x, y float64) error {
	h.mu.Lock()
	from := h.cursor
	h.mu.Unlock()

	dist := math.Hypot(x-from.X, y-from.Y)
	steps := 8 + int(dist/60)
	if steps > 40 {
		steps = 40
	}
	for _, p := range h.Path(from, Point{X: x, Y: y}, steps) {
		if err := page.MouseMove(ctx, p.X, p.Y); err != nil {
			return err
		}
		h.mu.Lock()
		h.cursor = p
		h.mu.Unlock()
		if err := h.Pause(ctx, 4*time.Millisecond, 18*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}

// Aim picks a point inside box, away from its edges.
func (h *Humanizer) Aim(box browser.Box) Point {
	return Point{
		X: box.X + box.Width*h.between(0.3, 0.7),
		Y: box.Y + box.Height*h.between(0.3, 0.7),
	}
}

// Click moves to the element, hesitates and clicks it.
func (h *Humanizer) Click(ctx context.Context, page browser.Page, selector string) error {
	box, err := page.BoundingBox(ctx, selector)
	if err != nil {
		return err
	}
	target := h.Aim(box)
	if err := h.MoveTo(ctx, page, target.X, target.Y); err != nil {
		return err
	}
	if err := h.Hesitate(ctx); err != nil {
		return err
	}
	return page.Click(ctx, selector)
}

// Type focuses the field by clicking it and types text key by key.
func (h *Humanizer) Type(ctx context.Context, page browser.Page, selector, text string) error {
	if err := h.Click(ctx, page, selector); err != nil {
		return err
	}
	if err := h.Hesitate(ctx); err != nil {
		return err
	}
	return page.Type(ctx, selector, text, h.KeyDelay())
}

// Scroll wheels down in uneven bursts, pausing between them.
func (h *Humanizer) Scroll(ctx context.Context, page browser.Page, bursts int) error {
	for i := 0; i < bursts; i++ {
		if err := page.Wheel(ctx, 0, h.between(280, 720)); err != nil {
			return err
		}
		if err := h.Pause(ctx, 350*time.Millisecond, 1100*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}
