package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// snapshotTimeout bounds screenshot capture after a failure. The run's own
// deadline may already be spent at that point.
const snapshotTimeout = 10 * time.Second

// PageSnapshot is what the page looked like when an action failed.
type PageSnapshot struct {
	URL        string
	Screenshot []byte
	TakenAt    time.Time
}

// Snapshot captures the current viewport as JPEG.
func Snapshot(ctx context.Context, page Page) (*PageSnapshot, error) {
	if page == nil {
		return nil, fmt.Errorf("page is not initialized")
	}
	buf, err := page.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return &PageSnapshot{
		URL:        page.URL(),
		Screenshot: buf,
		TakenAt:    time.Now().UTC(),
	}, nil
}

// FailureError carries an action failure together with the page snapshot
// taken right after it.
type FailureError struct {
	Err      error
	Snapshot *PageSnapshot
}

func (e *FailureError) Error() string { return e.Err.Error() }
func (e *FailureError) Unwrap() error { return e.Err }

func (e *FailureError) Details() map[string]any {
	if e.Snapshot == nil {
		return nil
	}
	return map[string]any{"pageUrl": e.Snapshot.URL}
}

// SnapshotFrom returns the snapshot attached to err, if any.
func SnapshotFrom(err error) (*PageSnapshot, bool) {
	var fe *FailureError
	if errors.As(err, &fe) && fe.Snapshot != nil {
		return fe.Snapshot, true
	}
	return nil, false
}

// Scope opens a session for the duration of one callback and always releases
// it, including when the callback panics.
type Scope struct {
	Factory Factory

	// CaptureOnFailure takes a screenshot before release when the callback
	// fails.
	CaptureOnFailure bool

	// OnCloseError receives teardown errors. Teardown never changes the
	// callback's outcome.
	OnCloseError func(error)
}

func (s Scope) Run(ctx context.Context, spec SessionSpec, fn func(ctx context.Context, page Page) error) (err error) {
	sess, err := s.Factory.NewSession(ctx, spec)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil && s.OnCloseError != nil {
			s.OnCloseError(cerr)
		}
	}()

	err = fn(ctx, sess.Page())
	if err == nil || !s.CaptureOnFailure {
		return err
	}

	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
	defer cancel()
	snap, serr := Snapshot(shotCtx, sess.Page())
	if serr != nil {
		return err
	}
	return &FailureError{Err: err, Snapshot: snap}
}
