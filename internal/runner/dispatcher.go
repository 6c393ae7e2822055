package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nbenliogludev/go-browser-run-engine/internal/automation"
	"github.com/nbenliogludev/go-browser-run-engine/internal/bus"
)

const DefaultConcurrency = 4

// Executor is the part of Runner a Dispatcher drives.
type Executor interface {
	RunAutomation(ctx context.Context, run *automation.RunRecord) Outcome
}

// Dispatcher is a reference scheduler consumer. It runs scheduled runs with
// bounded parallelism, never two on the same browser config at once, and
// cancels runs whose session is no longer usable.
//
// A run takes its config lock before a parallelism slot, so runs queued
// behind a busy config never hold slots that idle configs could use.
type Dispatcher struct {
	exec    Executor
	runs    automation.RunsRepository
	configs automation.ConfigRepository
	locks   *ConfigLocks
	pub     bus.Publisher
	slots   chan struct{}
	log     zerolog.Logger
	now     func() time.Time
	wg      sync.WaitGroup

	mu      sync.Mutex
	pending map[uuid.UUID]struct{}
}

type DispatcherOption func(*Dispatcher)

func WithConcurrency(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.slots = make(chan struct{}, n)
		}
	}
}

// WithPublisher announces every finished or cancelled run.
func WithPublisher(p bus.Publisher) DispatcherOption {
	return func(d *Dispatcher) { d.pub = p }
}

func WithDispatchLogger(l zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = l }
}

func WithLocks(l *ConfigLocks) DispatcherOption {
	return func(d *Dispatcher) { d.locks = l }
}

func NewDispatcher(exec Executor, runs automation.RunsRepository, configs automation.ConfigRepository, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		exec:    exec,
		runs:    runs,
		configs: configs,
		locks:   NewConfigLocks(),
		slots:   make(chan struct{}, DefaultConcurrency),
		log:     zerolog.Nop(),
		now:     func() time.Time { return time.Now().UTC() },
		pending: map[uuid.UUID]struct{}{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle consumes one automation.runs.scheduled message. The run record is
// the source of truth, so the message is acknowledged once the run is
// accepted; runs that no longer exist are dropped.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) error {
	var msg bus.RunScheduled
	if err := json.Unmarshal(data, &msg); err != nil {
		d.log.Error().Err(err).Msg("drop malformed scheduled run message")
		return nil
	}
	err := d.Submit(ctx, msg.RunID)
	if errors.Is(err, automation.ErrNotFound) {
		d.log.Warn().Str("run_id", msg.RunID.String()).Msg("drop message for unknown run")
		return nil
	}
	return err
}

// Submit queues runID for execution in the background. A run already queued
// or executing here is ignored. When its browser config is free, Submit
// returns once a parallelism slot is taken; otherwise the run waits for the
// config without holding a slot and Submit returns at once.
func (d *Dispatcher) Submit(ctx context.Context, runID uuid.UUID) error {
	_, err := d.submit(ctx, runID)
	return err
}

// submit reports whether runID was queued.
func (d *Dispatcher) submit(ctx context.Context, runID uuid.UUID) (bool, error) {
	if !d.track(runID) {
		d.log.Debug().Str("run_id", runID.String()).Msg("run already queued")
		return false, nil
	}

	run, err := d.runs.FindByID(ctx, runID)
	if err != nil {
		d.untrack(runID)
		return false, fmt.Errorf("load run %s: %w", runID, err)
	}
	if run.Status != automation.StatusScheduled {
		d.untrack(runID)
		d.skip(run)
		return false, nil
	}

	// the run outlives the message that scheduled it
	bg := context.WithoutCancel(ctx)
	configID := run.BrowserConfigID

	if unlock, ok := d.locks.TryLock(configID); ok {
		select {
		case d.slots <- struct{}{}:
		case <-ctx.Done():
			unlock()
			d.untrack(runID)
			return false, ctx.Err()
		}
		d.spawn(runID, func() { d.executeLocked(bg, runID, unlock) })
		return true, nil
	}

	d.spawn(runID, func() {
		unlock, err := d.locks.Lock(bg, configID)
		if err != nil {
			d.log.Error().Err(err).Str("run_id", runID.String()).Msg("wait for browser config")
			return
		}
		d.slots <- struct{}{}
		d.executeLocked(bg, runID, unlock)
	})
	return true, nil
}

func (d *Dispatcher) spawn(runID uuid.UUID, fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.untrack(runID)
		fn()
	}()
}

// executeLocked runs with the config lock and a slot held, releasing both.
func (d *Dispatcher) executeLocked(ctx context.Context, runID uuid.UUID, unlock func()) {
	defer unlock()
	defer func() { <-d.slots }()
	if _, err := d.execute(ctx, runID); err != nil {
		d.log.Error().Err(err).Str("run_id", runID.String()).Msg("dispatch run")
	}
}

func (d *Dispatcher) track(runID uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pending[runID]; ok {
		return false
	}
	d.pending[runID] = struct{}{}
	return true
}

func (d *Dispatcher) untrack(runID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, runID)
}

// Dispatch executes runID synchronously, still honouring the per-config
// lock and the parallelism bound.
func (d *Dispatcher) Dispatch(ctx context.Context, runID uuid.UUID) (Outcome, error) {
	run, err := d.runs.FindByID(ctx, runID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load run %s: %w", runID, err)
	}
	if run.Status != automation.StatusScheduled {
		return d.skip(run), nil
	}

	unlock, err := d.locks.Lock(ctx, run.BrowserConfigID)
	if err != nil {
		return Outcome{}, err
	}
	defer unlock()

	select {
	case d.slots <- struct{}{}:
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
	defer func() { <-d.slots }()
	return d.execute(ctx, runID)
}

// Wait blocks until every submitted run has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// execute runs runID. The caller holds the run's config lock.
func (d *Dispatcher) execute(ctx context.Context, runID uuid.UUID) (Outcome, error) {
	// another delivery of the same run may have executed it while we waited
	run, err := d.runs.FindByID(ctx, runID)
	if err != nil {
		return Outcome{}, fmt.Errorf("reload run %s: %w", runID, err)
	}
	if run.Status != automation.StatusScheduled {
		return d.skip(run), nil
	}

	cfg, err := d.configs.FindByID(ctx, run.BrowserConfigID)
	if err != nil && !errors.Is(err, automation.ErrNotFound) {
		return Outcome{}, fmt.Errorf("load browser config %s: %w", run.BrowserConfigID, err)
	}
	if cfg != nil && !cfg.Usable() {
		return d.cancel(ctx, run, cfg.SessionStatus)
	}

	out := d.exec.RunAutomation(ctx, run)
	d.announce(ctx, run, out)
	return out, nil
}

func (d *Dispatcher) skip(run *automation.RunRecord) Outcome {
	d.log.Debug().Str("run_id", run.ID.String()).Str("status", string(run.Status)).Msg("skip run that is not scheduled")
	return Outcome{RunID: run.ID, Status: run.Status}
}

func (d *Dispatcher) cancel(ctx context.Context, run *automation.RunRecord, session automation.SessionStatus) (Outcome, error) {
	if err := run.Cancel(d.now()); err != nil {
		return Outcome{}, err
	}
	if err := d.runs.UpdateByID(ctx, run); err != nil {
		return Outcome{}, fmt.Errorf("persist cancelled run: %w", err)
	}
	d.log.Info().
		Str("run_id", run.ID.String()).
		Str("session", string(session)).
		Msg("run cancelled, browser session not usable")

	out := Outcome{RunID: run.ID, Status: run.Status}
	d.announce(ctx, run, out)
	return out, nil
}

func (d *Dispatcher) announce(ctx context.Context, run *automation.RunRecord, out Outcome) {
	if d.pub == nil {
		return
	}
	ev := bus.RunFinished{
		RunID:          run.ID,
		Tenant:         run.Tenant,
		UserID:         run.UserID,
		Type:           string(run.Type),
		Status:         string(out.Status),
		SessionInvalid: out.SessionInvalidated,
		Duration:       out.Duration,
		FinishedAt:     d.now(),
	}
	if run.FinishedAt != nil {
		ev.FinishedAt = *run.FinishedAt
	}
	if out.Error != nil {
		ev.ErrorCode = string(out.Error.Code)
		ev.Reference = out.Error.Reference
	}
	if err := d.pub.Publish(ctx, bus.SubjectFinished, ev); err != nil {
		d.log.Error().Err(err).Str("run_id", run.ID.String()).Msg("publish run finished")
	}
}
