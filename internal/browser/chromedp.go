package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// ChromedpFactory drives a local Chrome over the DevTools protocol. Each
// session gets its own allocator, so its own process and profile.
type ChromedpFactory struct {
	opts Options
}

func NewChromedpFactory(opts Options) *ChromedpFactory {
	return &ChromedpFactory{opts: opts.withDefaults()}
}

func (f *ChromedpFactory) NewSession(ctx context.Context, spec SessionSpec) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(f.opts.ViewportWidth, f.opts.ViewportHeight),
	)
	if spec.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(spec.UserAgent))
	}

	var proxyUser *url.Userinfo
	if spec.ProxyURI != "" {
		u, err := url.Parse(spec.ProxyURI)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("%w: invalid proxy uri %q", ErrSessionStart, spec.ProxyURI)
		}
		allocOpts = append(allocOpts, chromedp.ProxyServer(u.Scheme+"://"+u.Host))
		proxyUser = u.User
	}

	// The browser outlives individual calls; per-call deadlines come from
	// the caller's context in run.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tab, cancelTab := chromedp.NewContext(allocCtx)

	sess := &chromedpSession{cancelAlloc: cancelAlloc, cancelTab: cancelTab}
	sess.page = &chromedpPage{tab: tab, opts: f.opts}

	if proxyUser != nil {
		listenProxyAuth(tab, proxyUser)
	}

	start := []chromedp.Action{}
	if proxyUser != nil {
		start = append(start, fetch.Enable().WithHandleAuthRequests(true))
	}
	if len(spec.Cookies) > 0 {
		start = append(start, network.SetCookies(cdpCookies(spec.Cookies)))
	}
	if err := sess.page.run(ctx, f.opts.NavigationTimeout, start...); err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("%w: %v", ErrSessionStart, err)
	}
	return sess, nil
}

func listenProxyAuth(tab context.Context, user *url.Userinfo) {
	pass, _ := user.Password()
	chromedp.ListenTarget(tab, func(ev any) {
		switch ev := ev.(type) {
		case *fetch.EventAuthRequired:
			go func() {
				_ = chromedp.Run(tab, fetch.ContinueWithAuth(ev.RequestID, &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: user.Username(),
					Password: pass,
				}))
			}()
		case *fetch.EventRequestPaused:
			go func() {
				_ = chromedp.Run(tab, fetch.ContinueRequest(ev.RequestID))
			}()
		}
	})
}

func cdpCookies(cookies []Cookie) []*network.CookieParam {
	out := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &exp
		}
		switch c.SameSite {
		case "Strict":
			p.SameSite = network.CookieSameSiteStrict
		case "Lax":
			p.SameSite = network.CookieSameSiteLax
		case "None":
			p.SameSite = network.CookieSameSiteNone
		}
		out = append(out, p)
	}
	return out
}

type chromedpSession struct {
	page        *chromedpPage
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	once        sync.Once
}

func (s *chromedpSession) Page() Page { return s.page }

func (s *chromedpSession) Close() error {
	var err error
	s.once.Do(func() {
		err = chromedp.Cancel(s.page.tab)
		s.cancelTab()
		s.cancelAlloc()
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type chromedpPage struct {
	tab  context.Context
	opts Options

	mu     sync.Mutex
	mouseX float64
	mouseY float64
}

// run executes actions on the tab, bounded by timeout and by the caller's
// context.
func (p *chromedpPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(p.tab, boundedTimeout(ctx, timeout))
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(tctx, actions...)
}

func (p *chromedpPage) wrap(ctx context.Context, selector string, err error) error {
	if err == nil {
		return nil
	}
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%s: %w", selector, cerr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, selector)
	}
	return fmt.Errorf("%s: %w", selector, err)
}

func (p *chromedpPage) Navigate(ctx context.Context, target string) error {
	err := p.run(ctx, p.opts.NavigationTimeout, chromedp.Navigate(target))
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		return &NavigationError{URL: target, Err: err}
	}
	return nil
}

func (p *chromedpPage) URL() string {
	var loc string
	_ = p.run(context.Background(), p.opts.StepTimeout, chromedp.Location(&loc))
	return loc
}

func (p *chromedpPage) Exists(ctx context.Context, selector string) (bool, error) {
	var found bool
	err := p.run(ctx, p.opts.StepTimeout,
		chromedp.Evaluate(fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(selector)), &found))
	return found, p.wrap(ctx, selector, err)
}

func (p *chromedpPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return p.wrap(ctx, selector, p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)))
}

func (p *chromedpPage) Click(ctx context.Context, selector string) error {
	return p.wrap(ctx, selector, p.run(ctx, p.opts.StepTimeout,
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)))
}

func (p *chromedpPage) Fill(ctx context.Context, selector, value string) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.focus();
		el.value = %s;
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})()`, jsString(selector), jsString(value))

	var ok bool
	err := p.run(ctx, p.opts.StepTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Evaluate(script, &ok))
	if err == nil && !ok {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return p.wrap(ctx, selector, err)
}

func (p *chromedpPage) Type(ctx context.Context, selector, text string, keyDelay time.Duration) error {
	if err := p.run(ctx, p.opts.StepTimeout, chromedp.Focus(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return p.wrap(ctx, selector, err)
	}
	for _, r := range text {
		if err := p.run(ctx, p.opts.StepTimeout, chromedp.KeyEvent(string(r))); err != nil {
			return p.wrap(ctx, selector, err)
		}
		if keyDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(keyDelay):
			}
		}
	}
	return nil
}

var namedKeys = map[string]string{
	"Enter":     kb.Enter,
	"Escape":    kb.Escape,
	"Tab":       kb.Tab,
	"Backspace": kb.Backspace,
}

func (p *chromedpPage) Press(ctx context.Context, selector, key string) error {
	if k, ok := namedKeys[key]; ok {
		key = k
	}
	return p.wrap(ctx, selector, p.run(ctx, p.opts.StepTimeout,
		chromedp.Focus(selector, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.KeyEvent(key)))
}

func (p *chromedpPage) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := p.run(ctx, p.opts.StepTimeout, chromedp.Text(selector, &text, chromedp.ByQuery, chromedp.NodeVisible))
	return text, p.wrap(ctx, selector, err)
}

func (p *chromedpPage) Texts(ctx context.Context, selector string) ([]string, error) {
	var texts []string
	err := p.run(ctx, p.opts.StepTimeout, chromedp.Evaluate(fmt.Sprintf(
		`Array.from(document.querySelectorAll(%s)).map(e => e.innerText || '')`, jsString(selector)), &texts))
	return texts, p.wrap(ctx, selector, err)
}

func (p *chromedpPage) Attrs(ctx context.Context, selector, attr string) ([]string, error) {
	var values []string
	err := p.run(ctx, p.opts.StepTimeout, chromedp.Evaluate(fmt.Sprintf(
		`Array.from(document.querySelectorAll(%s)).map(e => e.getAttribute(%s) || '')`,
		jsString(selector), jsString(attr)), &values))
	return values, p.wrap(ctx, selector, err)
}

func (p *chromedpPage) BoundingBox(ctx context.Context, selector string) (Box, error) {
	var rect *struct {
		X, Y, Width, Height float64
	}
	err := p.run(ctx, p.opts.StepTimeout, chromedp.Evaluate(fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return null;
		const r = el.getBoundingClientRect();
		if (r.width === 0 && r.height === 0) return null;
		return { X: r.x, Y: r.y, Width: r.width, Height: r.height };
	})()`, jsString(selector)), &rect))
	if err != nil {
		return Box{}, p.wrap(ctx, selector, err)
	}
	if rect == nil {
		return Box{}, fmt.Errorf("%w: %s is not visible", ErrElementNotFound, selector)
	}
	return Box{X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height}, nil
}

func (p *chromedpPage) MouseMove(ctx context.Context, x, y float64) error {
	err := p.run(ctx, p.opts.StepTimeout, chromedp.MouseEvent(input.MouseMoved, x, y))
	if err == nil {
		p.mu.Lock()
		p.mouseX, p.mouseY = x, y
		p.mu.Unlock()
	}
	return p.wrap(ctx, "mouse", err)
}

func (p *chromedpPage) Wheel(ctx context.Context, dx, dy float64) error {
	p.mu.Lock()
	x, y := p.mouseX, p.mouseY
	p.mu.Unlock()
	return p.wrap(ctx, "wheel", p.run(ctx, p.opts.StepTimeout,
		input.DispatchMouseEvent(input.MouseWheel, x, y).WithDeltaX(dx).WithDeltaY(dy)))
}

func (p *chromedpPage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, p.opts.StepTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = cdppage.CaptureScreenshot().
			WithFormat(cdppage.CaptureScreenshotFormatJpeg).
			WithQuality(70).
			Do(ctx)
		return err
	}))
	return buf, p.wrap(ctx, "screenshot", err)
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
