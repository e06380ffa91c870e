// Package expect provides bounded, polling assertions over browser elements.
// A wait either observes its condition or fails with a *TimeoutError naming
// what was awaited and the last value seen; there is no retry on top.
package expect

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Venallanaj/QA-Task/internal/browser"
)

// PollInterval is how often conditions are re-evaluated.
var PollInterval = 100 * time.Millisecond

// TimeoutError is a readiness wait that did not observe its condition.
type TimeoutError struct {
	Signal    string
	Condition string
	Timeout   time.Duration
	// Last is the last observed value, for the failure message.
	Last string
	// Err is the last non-transient read error, if any.
	Err error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s to %s", e.Timeout, e.Signal, e.Condition)
	if e.Last != "" {
		msg += fmt.Sprintf(" (last: %s)", e.Last)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// AssertionError is an immediate check that failed.
type AssertionError struct {
	Subject string
	Message string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Subject, e.Message)
}

// Check reports whether a condition holds and a short description of what
// it observed.
type Check func(ctx context.Context) (ok bool, observed string, err error)

// Eventually polls check until it holds or timeout elapses. Read errors
// count as "not yet". Cancellation of ctx by the caller is returned as is.
func Eventually(ctx context.Context, timeout time.Duration, signal, condition string, check Check) error {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	var last string
	var lastErr error
	for {
		ok, observed, err := check(wctx)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			if !errors.Is(err, browser.ErrTransient) && !errors.Is(err, browser.ErrNotFound) &&
				!errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
				lastErr = err
			}
		} else {
			last = observed
		}

		select {
		case <-wctx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &TimeoutError{Signal: signal, Condition: condition, Timeout: timeout, Last: last, Err: lastErr}
		case <-ticker.C:
		}
	}
}

func trimmedText(ctx context.Context, el browser.Element) (string, error) {
	t, err := el.Text(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(t), nil
}

func ToBeVisible(ctx context.Context, el browser.Element, timeout time.Duration) error {
	return Eventually(ctx, timeout, el.Selector().String(), "be visible", func(ctx context.Context) (bool, string, error) {
		v, err := el.Visible(ctx)
		if err != nil {
			return false, "", err
		}
		if v {
			return true, "visible", nil
		}
		return false, "hidden", nil
	})
}

func ToHaveCount(ctx context.Context, el browser.Element, want int, timeout time.Duration) error {
	return Eventually(ctx, timeout, el.Selector().String(), fmt.Sprintf("have count %d", want), func(ctx context.Context) (bool, string, error) {
		n, err := el.Count(ctx)
		if err != nil {
			return false, "", err
		}
		return n == want, fmt.Sprintf("count %d", n), nil
	})
}

// ToContainText waits for the first match's text to match p.
func ToContainText(ctx context.Context, el browser.Element, p *browser.Pattern, timeout time.Duration) error {
	return Eventually(ctx, timeout, el.Selector().String(), "contain text "+p.String(), func(ctx context.Context) (bool, string, error) {
		t, err := trimmedText(ctx, el)
		if err != nil {
			return false, "", err
		}
		return p.Match(t), fmt.Sprintf("%q", t), nil
	})
}

// ToHaveExactText waits for the trimmed text to equal want.
func ToHaveExactText(ctx context.Context, el browser.Element, want string, timeout time.Duration) error {
	return Eventually(ctx, timeout, el.Selector().String(), fmt.Sprintf("have text %q", want), func(ctx context.Context) (bool, string, error) {
		t, err := trimmedText(ctx, el)
		if err != nil {
			return false, "", err
		}
		return t == want, fmt.Sprintf("%q", t), nil
	})
}

// ToChangeFrom waits until the trimmed text differs from prev and returns
// the new value.
func ToChangeFrom(ctx context.Context, el browser.Element, prev string, timeout time.Duration) (string, error) {
	var cur string
	err := Eventually(ctx, timeout, el.Selector().String(), fmt.Sprintf("not have text %q", prev), func(ctx context.Context) (bool, string, error) {
		t, err := trimmedText(ctx, el)
		if err != nil {
			return false, "", err
		}
		cur = t
		return t != prev, fmt.Sprintf("%q", t), nil
	})
	if err != nil {
		return "", err
	}
	return cur, nil
}

// ToHaveNonEmptyText waits for non-blank text and returns it trimmed.
func ToHaveNonEmptyText(ctx context.Context, el browser.Element, timeout time.Duration) (string, error) {
	var cur string
	err := Eventually(ctx, timeout, el.Selector().String(), "have non-empty text", func(ctx context.Context) (bool, string, error) {
		t, err := trimmedText(ctx, el)
		if err != nil {
			return false, "", err
		}
		cur = t
		return t != "", fmt.Sprintf("%q", t), nil
	})
	if err != nil {
		return "", err
	}
	return cur, nil
}

// ToHaveURL waits for the page location to match re.
func ToHaveURL(ctx context.Context, page browser.Page, re *regexp.Regexp, timeout time.Duration) error {
	return Eventually(ctx, timeout, "page", "have URL matching "+re.String(), func(ctx context.Context) (bool, string, error) {
		u, err := page.URL(ctx)
		if err != nil {
			return false, "", err
		}
		return re.MatchString(u), u, nil
	})
}

// NotEmpty fails when s is blank.
func NotEmpty(subject, s string) error {
	if strings.TrimSpace(s) == "" {
		return &AssertionError{Subject: subject, Message: "expected non-empty text"}
	}
	return nil
}

// NotMatch fails when s matches any of the patterns.
func NotMatch(subject, s string, patterns ...*browser.Pattern) error {
	for _, p := range patterns {
		if p.Match(s) {
			return &AssertionError{Subject: subject, Message: fmt.Sprintf("text %q must not match %s", s, p)}
		}
	}
	return nil
}

// Greater fails unless got > min.
func Greater(subject string, got, min int) error {
	if got > min {
		return nil
	}
	return &AssertionError{Subject: subject, Message: fmt.Sprintf("expected > %d, got %d", min, got)}
}

func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
