package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/Venallanaj/QA-Task/internal/config"
)

// allocatorOptions builds the exec allocator flags for a local Chrome.
func allocatorOptions(cfg *config.RuntimeConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,

		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-session-crashed-bubble", true),
		chromedp.Flag("hide-crash-restore-bubble", true),
		chromedp.Flag("password-store", "basic"),
		chromedp.Flag("use-mock-keychain", true),

		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	}

	if cfg.ChromeBinary != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromeBinary))
	}
	opts = append(opts, parseExtraFlags(cfg.ChromeExtraFlags)...)

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	return opts
}

// parseExtraFlags turns "--a=b --c" into chromedp flags.
func parseExtraFlags(raw string) []chromedp.ExecAllocatorOption {
	var opts []chromedp.ExecAllocatorOption
	for _, f := range strings.Fields(raw) {
		if k, v, ok := strings.Cut(f, "="); ok {
			opts = append(opts, chromedp.Flag(strings.TrimLeft(k, "-"), v))
		} else {
			opts = append(opts, chromedp.Flag(strings.TrimLeft(f, "-"), true))
		}
	}
	return opts
}

// newAllocator returns a remote allocator when a DevTools URL is configured
// (after probing it) and a local exec allocator otherwise.
func newAllocator(ctx context.Context, cfg *config.RuntimeConfig) (context.Context, context.CancelFunc, error) {
	if cfg.CdpURL != "" {
		wsURL, err := ResolveDebuggerURL(ctx, cfg.CdpURL)
		if err != nil {
			return nil, nil, err
		}
		info, err := Probe(ctx, wsURL, cfg.ChromeStartTimeout)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("connecting to remote chrome", "url", wsURL, "product", info.Product)
		allocCtx, cancel := chromedp.NewRemoteAllocator(context.Background(), wsURL)
		return allocCtx, cancel, nil
	}

	slog.Info("launching chrome",
		"headless", cfg.Headless,
		"binary", cfg.ChromeBinary,
		"viewport", fmt.Sprintf("%dx%d", cfg.ViewportWidth, cfg.ViewportHeight),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	return allocCtx, cancel, nil
}
