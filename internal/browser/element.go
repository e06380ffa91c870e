package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"github.com/Venallanaj/QA-Task/internal/assets"
)

const actionPollInterval = 100 * time.Millisecond

type chromeElement struct {
	p   *chromePage
	sel Selector
}

func (e *chromeElement) Selector() Selector { return e.sel }

// transientMarkers are evaluation failures caused by the page navigating
// underneath the call.
var transientMarkers = []string{
	"Execution context was destroyed",
	"Cannot find context with specified id",
	"Inspected target navigated or closed",
	"uniqueContextId not found",
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// eval runs the locator engine for op against the selector.
func (e *chromeElement) eval(ctx context.Context, op string, arg any, out any) error {
	argJSON, err := json.Marshal(arg)
	if err != nil {
		return fmt.Errorf("encode locator arg: %w", err)
	}
	expr := fmt.Sprintf("(%s)(%s, %q, %s)", assets.LocatorJS, e.sel.JSON(), op, argJSON)

	runCtx, done := e.p.bind(ctx)
	defer done()
	if err := chromedp.Run(runCtx, chromedp.Evaluate(expr, out)); err != nil {
		if isTransient(err) {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return fmt.Errorf("locate %s: %w", e.sel, err)
	}
	return nil
}

type point struct {
	Found   bool    `json:"found"`
	Visible bool    `json:"visible"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// actionable waits up to ActionTimeout for the first match to be visible and
// returns its scrolled-into-view center.
func (e *chromeElement) actionable(ctx context.Context, action string) (point, error) {
	timeout := e.p.cfg.ActionTimeout
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(actionPollInterval)
	defer ticker.Stop()

	var last point
	var lastErr error
	for {
		var pt point
		err := e.eval(ctx, "point", nil, &pt)
		if err == nil && pt.Visible {
			return pt, nil
		}
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			lastErr = err
		}
		if err == nil {
			last = pt
		}
		select {
		case <-ctx.Done():
			reason := "not visible"
			switch {
			case lastErr != nil:
				reason = lastErr.Error()
			case !last.Found:
				reason = ErrNotFound.Error()
			}
			return point{}, &ActionError{Action: action, Selector: e.sel.String(), Timeout: timeout, Reason: reason, Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

func (e *chromeElement) Click(ctx context.Context) error {
	pt, err := e.actionable(ctx, "click")
	if err != nil {
		return err
	}
	runCtx, done := e.p.bind(ctx)
	defer done()
	if err := e.p.pacer.Click(runCtx, pt.X, pt.Y); err != nil {
		return &ActionError{Action: "click", Selector: e.sel.String(), Reason: "dispatch failed", Err: err}
	}
	return nil
}

func (e *chromeElement) Hover(ctx context.Context) error {
	pt, err := e.actionable(ctx, "hover")
	if err != nil {
		return err
	}
	runCtx, done := e.p.bind(ctx)
	defer done()
	if err := e.p.pacer.Hover(runCtx, pt.X, pt.Y); err != nil {
		return &ActionError{Action: "hover", Selector: e.sel.String(), Reason: "dispatch failed", Err: err}
	}
	return nil
}

// Fill focuses the first match, selects its content and replaces it with
// value through a single insertText, which fires the input events frameworks
// bind to.
func (e *chromeElement) Fill(ctx context.Context, value string) error {
	if _, err := e.actionable(ctx, "fill"); err != nil {
		return err
	}
	var focused bool
	if err := e.eval(ctx, "focus", nil, &focused); err != nil {
		return err
	}
	if !focused {
		return &ActionError{Action: "fill", Selector: e.sel.String(), Reason: ErrNotFound.Error()}
	}

	runCtx, done := e.p.bind(ctx)
	defer done()
	var typing chromedp.Action = input.InsertText(value)
	if value == "" {
		typing = chromedp.KeyEvent("\b")
	}
	if err := chromedp.Run(runCtx, typing); err != nil {
		return &ActionError{Action: "fill", Selector: e.sel.String(), Reason: "insert text failed", Err: err}
	}
	return e.p.pacer.Pause(ctx)
}

type probe struct {
	Count   int    `json:"count"`
	Visible bool   `json:"visible"`
	Text    string `json:"text"`
}

func (e *chromeElement) Visible(ctx context.Context) (bool, error) {
	var pr probe
	if err := e.eval(ctx, "probe", nil, &pr); err != nil {
		return false, err
	}
	return pr.Visible, nil
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var pr probe
	if err := e.eval(ctx, "probe", nil, &pr); err != nil {
		return "", err
	}
	if pr.Count == 0 {
		return "", ErrNotFound
	}
	return pr.Text, nil
}

func (e *chromeElement) Count(ctx context.Context) (int, error) {
	var n int
	if err := e.eval(ctx, "count", nil, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func (e *chromeElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	var res struct {
		Found   bool   `json:"found"`
		Present bool   `json:"present"`
		Value   string `json:"value"`
	}
	if err := e.eval(ctx, "attr", name, &res); err != nil {
		return "", false, err
	}
	if !res.Found {
		return "", false, ErrNotFound
	}
	return res.Value, res.Present, nil
}

func (e *chromeElement) HasClass(ctx context.Context, class string) (bool, error) {
	var ok bool
	if err := e.eval(ctx, "hasClass", class, &ok); err != nil {
		return false, err
	}
	return ok, nil
}
