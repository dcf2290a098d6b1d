// File: internal/browser/tab.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepack/internal/config"
	"github.com/xkilldash9x/coursepack/internal/session"
)

// ErrNoSelectorMatched is returned when none of the candidate selectors in a
// chain resolved to a usable element.
var ErrNoSelectorMatched = errors.New("no selector in the chain matched")

// selectorAttemptTimeout bounds each candidate in a selector chain. Chains
// are ordered most-likely-first, so misses should fail fast.
const selectorAttemptTimeout = 3 * time.Second

// Tab is a single page in the shared browser. Tabs are not safe for
// concurrent use; each pipeline task gets its own.
type Tab struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     *config.Config
	logger  *zap.Logger
	onClose func()
	closed  bool
}

// Close tears down the tab. Safe to call once.
func (t *Tab) Close() {
	if t.closed {
		return
	}
	t.closed = true
	t.cancel()
	if t.onClose != nil {
		t.onClose()
	}
}

// run executes actions against the tab, bounded by timeout (when positive)
// and abandoned early if the caller's context is done.
func (t *Tab) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	if timeout > 0 {
		var tcancel context.CancelFunc
		runCtx, tcancel = context.WithTimeout(runCtx, timeout)
		defer tcancel()
	}

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// Navigate loads the URL, waits for the document body, and then gives the
// page a short settle window for client-side rendering.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	t.logger.Debug("Navigating.", zap.String("url", url))
	err := t.run(ctx, t.cfg.Network.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(t.cfg.Network.PostLoadWait),
	)
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// Location returns the tab's current URL.
func (t *Tab) Location(ctx context.Context) (string, error) {
	var loc string
	if err := t.run(ctx, 10*time.Second, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}
	return loc, nil
}

// Title returns the current document title.
func (t *Tab) Title(ctx context.Context) (string, error) {
	var title string
	if err := t.run(ctx, 10*time.Second, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("reading title: %w", err)
	}
	return title, nil
}

// HTML returns a snapshot of the rendered document.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	var html string
	if err := t.run(ctx, 30*time.Second, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("snapshotting document: %w", err)
	}
	return html, nil
}

// CookieValue returns the value of a cookie visible on the current page, or
// ("", false) when absent. HttpOnly cookies are visible here, unlike a
// document.cookie probe.
func (t *Tab) CookieValue(ctx context.Context, name string) (string, bool, error) {
	loc, err := t.Location(ctx)
	if err != nil {
		return "", false, err
	}

	var value string
	var found bool
	err = t.run(ctx, 10*time.Second, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().WithURLs([]string{loc}).Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			if c.Name == name {
				value, found = c.Value, true
				return nil
			}
		}
		return nil
	}))
	if err != nil {
		return "", false, fmt.Errorf("reading cookie %q: %w", name, err)
	}
	return value, found, nil
}

// HarvestCookies collects every cookie in the browser's jar, not just those
// scoped to the current page.
func (t *Tab) HarvestCookies(ctx context.Context) ([]session.Cookie, error) {
	var out []session.Cookie
	err := t.run(ctx, 10*time.Second, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		out = make([]session.Cookie, 0, len(cookies))
		for _, c := range cookies {
			out = append(out, session.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				Secure:   c.Secure,
				HTTPOnly: c.HTTPOnly,
			})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("harvesting cookies: %w", err)
	}
	return out, nil
}

// ApplyCookies injects persisted cookies into the browser before navigation.
func (t *Tab) ApplyCookies(ctx context.Context, cookies []session.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	err := t.run(ctx, 15*time.Second, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			p := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)
			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				p = p.WithExpires(&expires)
			}
			if err := p.Do(ctx); err != nil {
				return fmt.Errorf("setting cookie %q: %w", c.Name, err)
			}
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("applying cookies: %w", err)
	}
	return nil
}

// ClickFirst tries each selector in order and clicks the first one that
// resolves to a visible element, returning the selector that matched.
func (t *Tab) ClickFirst(ctx context.Context, selectors []string) (string, error) {
	for _, sel := range selectors {
		opt := queryOption(sel)
		err := t.run(ctx, selectorAttemptTimeout,
			chromedp.WaitVisible(sel, opt),
			chromedp.Click(sel, opt),
		)
		if err == nil {
			t.logger.Debug("Selector matched for click.", zap.String("selector", sel))
			return sel, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("clicking %v: %w", selectors, ErrNoSelectorMatched)
}

// FillFirst tries each selector in order and types value into the first
// visible match, returning the selector that matched.
func (t *Tab) FillFirst(ctx context.Context, selectors []string, value string) (string, error) {
	for _, sel := range selectors {
		opt := queryOption(sel)
		err := t.run(ctx, selectorAttemptTimeout,
			chromedp.WaitVisible(sel, opt),
			chromedp.Clear(sel, opt),
			chromedp.SendKeys(sel, value, opt),
		)
		if err == nil {
			t.logger.Debug("Selector matched for fill.", zap.String("selector", sel))
			return sel, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("filling %v: %w", selectors, ErrNoSelectorMatched)
}

// Evaluate runs a JavaScript expression in the page and awaits it if it
// returns a promise. The result is discarded.
func (t *Tab) Evaluate(ctx context.Context, js string, timeout time.Duration) error {
	err := t.run(ctx, timeout,
		chromedp.Evaluate(js, nil, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		return fmt.Errorf("evaluating script: %w", err)
	}
	return nil
}

// PrintToPDF renders the current page with the browser's print pipeline on
// US Letter paper with 0.4in margins.
func (t *Tab) PrintToPDF(ctx context.Context, scale float64) ([]byte, error) {
	var pdf []byte
	err := t.run(ctx, 60*time.Second, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		pdf, _, err = page.PrintToPDF().
			WithPaperWidth(8.5).
			WithPaperHeight(11).
			WithMarginTop(0.4).
			WithMarginBottom(0.4).
			WithMarginLeft(0.4).
			WithMarginRight(0.4).
			WithPrintBackground(true).
			WithScale(scale).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("printing to PDF: %w", err)
	}
	return pdf, nil
}

// FullScreenshot captures the entire page height as a PNG.
func (t *Tab) FullScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// Quality 100 selects lossless PNG output.
	if err := t.run(ctx, 60*time.Second, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

// isXPath reports whether a selector is an XPath expression rather than a
// CSS query.
func isXPath(sel string) bool {
	return strings.HasPrefix(sel, "//") || strings.HasPrefix(sel, "(")
}

// queryOption picks the chromedp query strategy for a selector: XPath
// expressions go through the DOM search API, everything else is a CSS query.
func queryOption(sel string) chromedp.QueryOption {
	if isXPath(sel) {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}
