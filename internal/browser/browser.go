// Package browser drives Chrome over the DevTools protocol. Each scenario
// gets its own Page inside a fresh browser context, so cookies and storage
// never leak between scenarios that share one Chrome process.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/Venallanaj/QA-Task/internal/config"
	"github.com/Venallanaj/QA-Task/internal/session"
)

type Browser struct {
	cfg  *config.RuntimeConfig
	base *url.URL

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// Launch starts (or connects to) Chrome and waits until the DevTools
// session is usable, bounded by ChromeStartTimeout.
func Launch(ctx context.Context, cfg *config.RuntimeConfig) (*Browser, error) {
	base, err := url.Parse(cfg.NormalizedBaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	allocCtx, allocCancel, err := newAllocator(ctx, cfg)
	if err != nil {
		return nil, err
	}
	bCtx, bCancel := chromedp.NewContext(allocCtx)

	startCtx, startDone := context.WithTimeout(ctx, cfg.ChromeStartTimeout)
	defer startDone()

	errCh := make(chan error, 1)
	go func() { errCh <- chromedp.Run(bCtx) }()

	select {
	case err := <-errCh:
		if err != nil {
			bCancel()
			allocCancel()
			return nil, fmt.Errorf("%w: start chrome: %v", ErrUnavailable, err)
		}
	case <-startCtx.Done():
		bCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: chrome did not start within %s", ErrUnavailable, cfg.ChromeStartTimeout)
	}

	slog.Info("chrome ready", "headless", cfg.Headless, "remote", cfg.CdpURL != "")
	return &Browser{
		cfg:           cfg,
		base:          base,
		allocCancel:   allocCancel,
		browserCtx:    bCtx,
		browserCancel: bCancel,
	}, nil
}

// NewPage opens a tab in a new isolated browser context and seeds it with
// st when non-nil. The returned func closes the tab and disposes the
// context.
func (b *Browser) NewPage(ctx context.Context, st *session.State) (Page, func(), error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, nil, ErrClosed
	}

	tabCtx, cancel := chromedp.NewContext(b.browserCtx, chromedp.WithNewBrowserContext())
	p := newChromePage(tabCtx, b.cfg, b.base)
	chromedp.ListenTarget(tabCtx, p.net.handle)

	setup := chromedp.Tasks{
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return page.SetLifecycleEventsEnabled(true).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetDeviceMetricsOverride(int64(b.cfg.ViewportWidth), int64(b.cfg.ViewportHeight), 1, false).Do(ctx)
		}),
	}
	if b.cfg.NoAnimations {
		setup = append(setup, disableAnimations())
	}
	if st != nil {
		setup = append(setup, applyState(st))
	}

	// The first Run allocates the target; it must use the tab context itself
	// or the tab would close when a derived deadline expires.
	errCh := make(chan error, 1)
	go func() { errCh <- chromedp.Run(tabCtx) }()
	select {
	case err := <-errCh:
		if err != nil {
			cancel()
			return nil, nil, fmt.Errorf("open page: %w", err)
		}
	case <-ctx.Done():
		cancel()
		return nil, nil, ctx.Err()
	}

	runCtx, done := p.bind(ctx)
	defer done()
	if err := chromedp.Run(runCtx, setup); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("open page: %w", err)
	}

	slog.Debug("page opened", "target", chromedp.FromContext(tabCtx).Target.TargetID, "seeded", st != nil)
	return p, cancel, nil
}

func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.browserCancel()
	b.allocCancel()
	slog.Info("chrome closed")
}

// ResolveURL resolves ref against base the way a browser resolves a
// relative link, so "./#/x" keeps base's directory.
func ResolveURL(base *url.URL, ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", ref, err)
	}
	if base == nil {
		return r.String(), nil
	}
	return base.ResolveReference(r).String(), nil
}
