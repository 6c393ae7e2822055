package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightFactory launches one Chromium per session so every run gets its
// own process, proxy and cookie jar. The Playwright driver itself is shared.
type PlaywrightFactory struct {
	mu   sync.Mutex
	pw   *playwright.Playwright
	opts Options
}

func NewPlaywrightFactory(opts Options) (*PlaywrightFactory, error) {
	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return nil, fmt.Errorf("install pw failed: %w", err)
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("start pw failed: %w", err)
	}

	return &PlaywrightFactory{pw: pw, opts: opts.withDefaults()}, nil
}

func (f *PlaywrightFactory) NewSession(ctx context.Context, spec SessionSpec) (Session, error) {
	f.mu.Lock()
	pw := f.pw
	f.mu.Unlock()
	if pw == nil {
		return nil, fmt.Errorf("%w: playwright stopped", ErrSessionStart)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(f.opts.Headless),
		Timeout:  playwright.Float(ms(f.opts.NavigationTimeout)),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
		},
	}
	if spec.ProxyURI != "" {
		proxy, err := playwrightProxy(spec.ProxyURI)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSessionStart, err)
		}
		launch.Proxy = proxy
	}

	browser, err := pw.Chromium.Launch(launch)
	if err != nil {
		return nil, fmt.Errorf("%w: launch chromium: %v", ErrSessionStart, err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: f.opts.ViewportWidth, Height: f.opts.ViewportHeight},
		Locale:   playwright.String("en-US"),
	}
	if spec.UserAgent != "" {
		contextOpts.UserAgent = playwright.String(spec.UserAgent)
	}
	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("%w: create context: %v", ErrSessionStart, err)
	}

	if len(spec.Cookies) > 0 {
		if err := bctx.AddCookies(playwrightCookies(spec.Cookies)); err != nil {
			_ = bctx.Close()
			_ = browser.Close()
			return nil, fmt.Errorf("%w: add cookies: %v", ErrSessionStart, err)
		}
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("%w: create page: %v", ErrSessionStart, err)
	}
	page.SetDefaultTimeout(ms(f.opts.StepTimeout))
	page.SetDefaultNavigationTimeout(ms(f.opts.NavigationTimeout))

	return &playwrightSession{
		browser: browser,
		context: bctx,
		page:    &playwrightPage{page: page, opts: f.opts},
	}, nil
}

// Close stops the shared Playwright driver. Sessions still open become
// unusable.
func (f *PlaywrightFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pw == nil {
		return nil
	}
	err := f.pw.Stop()
	f.pw = nil
	return err
}

type playwrightSession struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    *playwrightPage
	once    sync.Once
}

func (s *playwrightSession) Page() Page { return s.page }

func (s *playwrightSession) Close() error {
	var errs []error
	s.once.Do(func() {
		if err := s.page.page.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := s.context.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := s.browser.Close(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

type playwrightPage struct {
	page playwright.Page
	opts Options
}

func (p *playwrightPage) Navigate(ctx context.Context, target string) error {
	timeout := boundedTimeout(ctx, p.opts.NavigationTimeout)
	_, err := p.page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(ms(timeout)),
	})
	if err != nil {
		return &NavigationError{URL: target, Err: err}
	}
	return nil
}

func (p *playwrightPage) URL() string { return p.page.URL() }

func (p *playwrightPage) Exists(_ context.Context, selector string) (bool, error) {
	n, err := p.page.Locator(selector).Count()
	if err != nil {
		return false, fmt.Errorf("count %s: %w", selector, err)
	}
	return n > 0, nil
}

func (p *playwrightPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	err := p.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(ms(boundedTimeout(ctx, timeout))),
	})
	return p.wrap(selector, err)
}

func (p *playwrightPage) Click(ctx context.Context, selector string) error {
	err := p.page.Locator(selector).First().Click(playwright.LocatorClickOptions{
		Timeout: p.timeout(ctx),
	})
	return p.wrap(selector, err)
}

func (p *playwrightPage) Fill(ctx context.Context, selector, value string) error {
	err := p.page.Locator(selector).First().Fill(value, playwright.LocatorFillOptions{
		Timeout: p.timeout(ctx),
	})
	return p.wrap(selector, err)
}

func (p *playwrightPage) Type(ctx context.Context, selector, text string, keyDelay time.Duration) error {
	err := p.page.Locator(selector).First().PressSequentially(text, playwright.LocatorPressSequentiallyOptions{
		Delay:   playwright.Float(ms(keyDelay)),
		Timeout: playwright.Float(ms(boundedTimeout(ctx, p.opts.StepTimeout+time.Duration(len(text))*keyDelay))),
	})
	return p.wrap(selector, err)
}

func (p *playwrightPage) Press(ctx context.Context, selector, key string) error {
	err := p.page.Locator(selector).First().Press(key, playwright.LocatorPressOptions{
		Timeout: p.timeout(ctx),
	})
	return p.wrap(selector, err)
}

func (p *playwrightPage) Text(ctx context.Context, selector string) (string, error) {
	text, err := p.page.Locator(selector).First().InnerText(playwright.LocatorInnerTextOptions{
		Timeout: p.timeout(ctx),
	})
	return text, p.wrap(selector, err)
}

func (p *playwrightPage) Texts(_ context.Context, selector string) ([]string, error) {
	texts, err := p.page.Locator(selector).AllInnerTexts()
	return texts, p.wrap(selector, err)
}

func (p *playwrightPage) Attrs(ctx context.Context, selector, attr string) ([]string, error) {
	items, err := p.page.Locator(selector).All()
	if err != nil {
		return nil, p.wrap(selector, err)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		v, err := item.GetAttribute(attr, playwright.LocatorGetAttributeOptions{Timeout: p.timeout(ctx)})
		if err != nil {
			return nil, p.wrap(selector, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (p *playwrightPage) BoundingBox(ctx context.Context, selector string) (Box, error) {
	rect, err := p.page.Locator(selector).First().BoundingBox(playwright.LocatorBoundingBoxOptions{
		Timeout: p.timeout(ctx),
	})
	if err != nil {
		return Box{}, p.wrap(selector, err)
	}
	if rect == nil {
		return Box{}, fmt.Errorf("%w: %s is not visible", ErrElementNotFound, selector)
	}
	return Box{X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height}, nil
}

func (p *playwrightPage) MouseMove(_ context.Context, x, y float64) error {
	return p.page.Mouse().Move(x, y)
}

func (p *playwrightPage) Wheel(_ context.Context, dx, dy float64) error {
	return p.page.Mouse().Wheel(dx, dy)
}

func (p *playwrightPage) Screenshot(_ context.Context) ([]byte, error) {
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(false),
		Type:     playwright.ScreenshotTypeJpeg,
		Quality:  playwright.Int(70),
	})
}

func (p *playwrightPage) timeout(ctx context.Context) *float64 {
	return playwright.Float(ms(boundedTimeout(ctx, p.opts.StepTimeout)))
}

func (p *playwrightPage) wrap(selector string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, selector, err)
	}
	return fmt.Errorf("%s: %w", selector, err)
}

func playwrightProxy(raw string) (*playwright.Proxy, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid proxy uri %q", raw)
	}
	proxy := &playwright.Proxy{Server: u.Scheme + "://" + u.Host}
	if u.User != nil {
		proxy.Username = playwright.String(u.User.Username())
		if pass, ok := u.User.Password(); ok {
			proxy.Password = playwright.String(pass)
		}
	}
	return proxy, nil
}

func playwrightCookies(cookies []Cookie) []playwright.OptionalCookie {
	out := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		oc := playwright.OptionalCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   playwright.String(c.Domain),
			Path:     playwright.String(c.Path),
			HttpOnly: playwright.Bool(c.HTTPOnly),
			Secure:   playwright.Bool(c.Secure),
		}
		if c.Expires > 0 {
			oc.Expires = playwright.Float(c.Expires)
		}
		switch c.SameSite {
		case "Strict":
			oc.SameSite = playwright.SameSiteAttributeStrict
		case "Lax":
			oc.SameSite = playwright.SameSiteAttributeLax
		case "None":
			oc.SameSite = playwright.SameSiteAttributeNone
		}
		out = append(out, oc)
	}
	return out
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
