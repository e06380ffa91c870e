package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/Venallanaj/QA-Task/internal/config"
	"github.com/Venallanaj/QA-Task/internal/human"
	"github.com/Venallanaj/QA-Task/internal/session"
)

type chromePage struct {
	ctx   context.Context
	cfg   *config.RuntimeConfig
	base  *url.URL
	net   *netTracker
	pacer *human.Pacer
}

func newChromePage(tabCtx context.Context, cfg *config.RuntimeConfig, base *url.URL) *chromePage {
	return &chromePage{
		ctx:   tabCtx,
		cfg:   cfg,
		base:  base,
		net:   newNetTracker(),
		pacer: human.New(cfg.SlowMo),
	}
}

// bind derives a context that carries the tab's DevTools session but
// follows ctx's deadline and cancellation.
func (p *chromePage) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(p.ctx)
	if dl, ok := ctx.Deadline(); ok {
		var cancelDL context.CancelFunc
		runCtx, cancelDL = context.WithDeadline(runCtx, dl)
		prev := cancel
		cancel = func() { cancelDL(); prev() }
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

type navigateResult struct {
	FrameID   string `json:"frameId"`
	LoaderID  string `json:"loaderId"`
	ErrorText string `json:"errorText"`
}

func (p *chromePage) Goto(ctx context.Context, ref string) (*Response, error) {
	target, err := ResolveURL(p.base, ref)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.NavigationTimeout)
	defer cancel()
	runCtx, done := p.bind(ctx)
	defer done()

	slog.Debug("navigate", "url", target)
	var res navigateResult
	err = chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return chromedp.FromContext(ctx).Target.Execute(ctx, "Page.navigate", map[string]any{"url": target}, &res)
	}))
	if err != nil {
		return nil, &NavigationError{URL: target, Err: err}
	}

	loader := cdp.LoaderID(res.LoaderID)
	if res.ErrorText != "" {
		if d, ok := p.net.document(loader); ok && d.status >= 400 {
			return &Response{URL: d.url, Status: d.status}, nil
		}
		return nil, &NavigationError{URL: target, Reason: res.ErrorText}
	}

	var resp *Response
	if loader == "" {
		// Fragment-only change: no document request is made.
		if err := waitReadyState(runCtx); err != nil {
			return nil, &NavigationError{URL: target, Err: err}
		}
		resp = &Response{URL: target}
	} else {
		d, err := p.waitDOMContentLoaded(runCtx, loader)
		if err != nil {
			return nil, &NavigationError{URL: target, Err: err}
		}
		resp = &Response{URL: target, Status: d.status}
		if d.url != "" {
			resp.URL = d.url
		}
	}

	if err := p.pacer.Pause(ctx); err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *chromePage) waitDOMContentLoaded(ctx context.Context, loader cdp.LoaderID) (document, error) {
	for {
		ch := p.net.changed()
		if d, ok := p.net.document(loader); ok && d.domReady {
			return d, nil
		}
		select {
		case <-ctx.Done():
			return document{}, fmt.Errorf("waiting for DOMContentLoaded: %w", ctx.Err())
		case <-ch:
		}
	}
}

// waitReadyState polls document.readyState until the DOM is parsed.
func waitReadyState(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		var state string
		err := chromedp.Run(ctx, chromedp.Evaluate("document.readyState", &state))
		if err == nil && (state == "interactive" || state == "complete") {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	runCtx, done := p.bind(ctx)
	defer done()
	var u string
	if err := chromedp.Run(runCtx, chromedp.Location(&u)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return u, nil
}

func (p *chromePage) Locate(sel Selector) Element {
	return &chromeElement{p: p, sel: sel}
}

func (p *chromePage) WaitNetworkIdle(ctx context.Context, quiet time.Duration) error {
	for {
		ch := p.net.changed()
		inflight, since := p.net.quietFor()
		if inflight == 0 && since >= quiet {
			return nil
		}
		wait := quiet
		if inflight == 0 {
			wait = quiet - since
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("network idle: %d request(s) in flight: %w", inflight, ctx.Err())
		case <-ch:
		case <-t.C:
		}
		t.Stop()
	}
}

func (p *chromePage) Screenshot(ctx context.Context, path string) error {
	runCtx, done := p.bind(ctx)
	defer done()
	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}
	return os.WriteFile(path, buf, 0644)
}

func (p *chromePage) ClearCookies(ctx context.Context) error {
	runCtx, done := p.bind(ctx)
	defer done()
	return chromedp.Run(runCtx, network.ClearBrowserCookies())
}

func (p *chromePage) StorageState(ctx context.Context) (*session.State, error) {
	runCtx, done := p.bind(ctx)
	defer done()

	urls := []string{p.base.String()}
	if cur, err := p.URL(ctx); err == nil && !strings.HasPrefix(cur, "about:") {
		urls = append(urls, cur)
	}
	return captureState(runCtx, urls)
}
