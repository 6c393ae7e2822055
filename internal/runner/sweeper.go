package runner

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nbenliogludev/go-browser-run-engine/internal/automation"
)

const (
	DefaultSweepInterval = time.Minute
	DefaultSweepGrace    = 2 * time.Minute
	sweepBatch           = 50
)

// DueLister finds runs that are still SCHEDULED well after they were created.
type DueLister interface {
	Due(ctx context.Context, olderThan time.Time, limit int) ([]*automation.RunRecord, error)
}

// Sweeper re-submits scheduled runs whose dispatch message was lost, e.g.
// because the publish after creating the run failed.
type Sweeper struct {
	due      DueLister
	d        *Dispatcher
	interval time.Duration
	grace    time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func NewSweeper(due DueLister, d *Dispatcher, interval, grace time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if grace <= 0 {
		grace = DefaultSweepGrace
	}
	return &Sweeper{
		due:      due,
		d:        d,
		interval: interval,
		grace:    grace,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("sweep scheduled runs")
			}
		}
	}
}

// Sweep submits one batch of overdue runs and reports how many it queued.
// Runs already queued on the dispatcher are not counted.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	runs, err := s.due.Due(ctx, s.now().Add(-s.grace), sweepBatch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, run := range runs {
		queued, err := s.d.submit(ctx, run.ID)
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		if err != nil {
			s.log.Warn().Err(err).Str("run_id", run.ID.String()).Msg("re-submit run")
			continue
		}
		if queued {
			n++
		}
	}
	if n > 0 {
		s.log.Info().Int("runs", n).Msg("re-submitted overdue runs")
	}
	return n, nil
}
