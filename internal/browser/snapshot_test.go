package browser_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbenliogludev/go-browser-run-engine/internal/browser"
	"github.com/nbenliogludev/go-browser-run-engine/internal/browser/browsertest"
)

func TestScopeReleasesOnSuccess(t *testing.T) {
	f := browsertest.NewFactory(browsertest.NewPage())
	scope := browser.Scope{Factory: f, CaptureOnFailure: true}

	err := scope.Run(context.Background(), browser.SessionSpec{UserAgent: "ua"}, func(ctx context.Context, page browser.Page) error {
		return page.Navigate(ctx, "https://example.com")
	})
	require.NoError(t, err)
	assert.Equal(t, 0, f.Open())
	assert.Equal(t, 1, f.Opened())
	assert.Equal(t, 0, f.Page.Count("screenshot"))
	assert.Equal(t, "ua", f.Specs[0].UserAgent)
}

func TestScopeCapturesSnapshotOnFailure(t *testing.T) {
	page := browsertest.NewPage()
	f := browsertest.NewFactory(page)
	scope := browser.Scope{Factory: f, CaptureOnFailure: true}
	boom := errors.New("boom")

	err := scope.Run(context.Background(), browser.SessionSpec{}, func(ctx context.Context, p browser.Page) error {
		_ = p.Navigate(ctx, "https://example.com/in/jane")
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, f.Open())

	snap, ok := browser.SnapshotFrom(err)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/in/jane", snap.URL)
	assert.NotEmpty(t, snap.Screenshot)
}

func TestScopeKeepsErrorWhenScreenshotFails(t *testing.T) {
	page := browsertest.NewPage()
	page.Fail["screenshot"] = errors.New("target closed")
	f := browsertest.NewFactory(page)
	boom := errors.New("boom")

	err := browser.Scope{Factory: f, CaptureOnFailure: true}.Run(context.Background(), browser.SessionSpec{},
		func(context.Context, browser.Page) error { return boom })
	assert.Same(t, boom, err)
	_, ok := browser.SnapshotFrom(err)
	assert.False(t, ok)
}

func TestScopeReleasesOnPanic(t *testing.T) {
	f := browsertest.NewFactory(browsertest.NewPage())

	assert.Panics(t, func() {
		_ = browser.Scope{Factory: f}.Run(context.Background(), browser.SessionSpec{},
			func(context.Context, browser.Page) error { panic("kaboom") })
	})
	assert.Equal(t, 0, f.Open())
}

func TestScopeStartFailure(t *testing.T) {
	f := browsertest.NewFactory(browsertest.NewPage())
	f.StartErr = browser.ErrSessionStart
	called := false

	err := browser.Scope{Factory: f}.Run(context.Background(), browser.SessionSpec{},
		func(context.Context, browser.Page) error { called = true; return nil })
	assert.ErrorIs(t, err, browser.ErrSessionStart)
	assert.False(t, called)
}

func TestNavigationErrorIsNavigation(t *testing.T) {
	err := &browser.NavigationError{URL: "https://x", Err: errors.New("net::ERR_TOO_MANY_REDIRECTS")}
	assert.ErrorIs(t, err, browser.ErrNavigation)
	assert.Contains(t, err.Error(), "ERR_TOO_MANY_REDIRECTS")
	assert.Equal(t, "https://x", err.Details()["url"])
}
