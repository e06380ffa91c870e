package pages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Venallanaj/QA-Task/internal/browser"
	"github.com/Venallanaj/QA-Task/internal/config"
	"github.com/Venallanaj/QA-Task/internal/expect"
	"github.com/Venallanaj/QA-Task/internal/tracing"
)

// Oracle decides whether a navigated view is usable. Verify always checks
// the blocked markers before any positive signal.
type Oracle struct {
	BlockedTimeout time.Duration
	ReadyTimeout   time.Duration
	Markers        []Marker
	Log            *slog.Logger
}

func NewOracle(cfg *config.RuntimeConfig, log *slog.Logger) *Oracle {
	if log == nil {
		log = slog.Default()
	}
	return &Oracle{
		BlockedTimeout: cfg.BlockedTimeout,
		ReadyTimeout:   cfg.ReadinessTimeout,
		Markers:        BlockedMarkers,
		Log:            log,
	}
}

// FailFastIfBlocked waits up to BlockedTimeout for every negative marker to
// have zero matches. A marker that still matches yields *BlockedError.
func (o *Oracle) FailFastIfBlocked(ctx context.Context, page browser.Page) (err error) {
	ctx, span := tracing.Start(ctx, "oracle.blocked")
	defer func() { tracing.End(span, err) }()

	for _, m := range o.Markers {
		el := page.Locate(m.Target)
		last := 0
		werr := expect.Eventually(ctx, o.BlockedTimeout, m.Name+" marker", "have count 0", func(ctx context.Context) (bool, string, error) {
			n, err := el.Count(ctx)
			if err != nil {
				return false, "", err
			}
			last = n
			return n == 0, fmt.Sprintf("count %d", n), nil
		})
		if werr == nil {
			continue
		}
		if last > 0 && expect.IsTimeout(werr) {
			u, _ := page.URL(ctx)
			return &BlockedError{Marker: m.Name, Selector: m.Target.String(), URL: u, Count: last}
		}
		return werr
	}
	return nil
}

// AssertLoaded waits for each positive signal of view in order, each with
// its own ReadyTimeout bound.
func (o *Oracle) AssertLoaded(ctx context.Context, page browser.Page, view View) (err error) {
	ctx, span := tracing.Start(ctx, "oracle.loaded", tracing.AttrStep.String(view.Name()))
	defer func() { tracing.End(span, err) }()

	for _, sig := range view.PositiveSignals() {
		if err := o.awaitSignal(ctx, page, sig); err != nil {
			return err
		}
		o.Log.Debug("signal satisfied", "view", view.Name(), "signal", sig.Name)
	}
	return nil
}

func (o *Oracle) awaitSignal(ctx context.Context, page browser.Page, sig Signal) error {
	el := page.Locate(sig.Target)
	return expect.Eventually(ctx, o.ReadyTimeout, sig.Name, sig.condition(), func(ctx context.Context) (bool, string, error) {
		if sig.Visible {
			v, err := el.Visible(ctx)
			if err != nil {
				return false, "", err
			}
			if !v {
				return false, "hidden", nil
			}
		}
		if sig.Text == nil && !sig.NonEmpty {
			if sig.Visible {
				return true, "visible", nil
			}
			n, err := el.Count(ctx)
			if err != nil {
				return false, "", err
			}
			return n > 0, fmt.Sprintf("count %d", n), nil
		}
		t, err := el.Text(ctx)
		if err != nil {
			return false, "", err
		}
		t = strings.TrimSpace(t)
		observed := fmt.Sprintf("%q", t)
		if sig.Text != nil && !sig.Text.Match(t) {
			return false, observed, nil
		}
		if sig.NonEmpty && t == "" {
			return false, observed, nil
		}
		return true, observed, nil
	})
}

// Verify runs FailFastIfBlocked and, only if it passes, AssertLoaded.
func (o *Oracle) Verify(ctx context.Context, page browser.Page, view View) error {
	if err := o.FailFastIfBlocked(ctx, page); err != nil {
		return err
	}
	return o.AssertLoaded(ctx, page, view)
}
