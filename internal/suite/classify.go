package suite

import (
	"context"
	"errors"

	"github.com/Venallanaj/QA-Task/internal/browser"
	"github.com/Venallanaj/QA-Task/internal/config"
	"github.com/Venallanaj/QA-Task/internal/expect"
	"github.com/Venallanaj/QA-Task/internal/pages"
	"github.com/Venallanaj/QA-Task/internal/session"
)

// Kind is the failure category recorded in the report.
type Kind string

const (
	KindNone       Kind = ""
	KindConfig     Kind = "config"
	KindState      Kind = "session-state"
	KindHTTP       Kind = "http"
	KindBlocked    Kind = "blocked"
	KindTimeout    Kind = "timeout"
	KindAssertion  Kind = "assertion"
	KindNavigation Kind = "navigation"
	KindStep       Kind = "navigation-step"
	KindAction     Kind = "action"
	KindBrowser    Kind = "browser"
	KindCancelled  Kind = "cancelled"
	KindSkipped    Kind = "skipped"
	KindError      Kind = "error"
)

// Classify maps an error to its category. More specific categories win:
// a blocked page is never reported as a timeout.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	var (
		ce *config.Error
		ae *expect.AssertionError
		ne *browser.NavigationError
		se *pages.StepError
		xe *browser.ActionError
	)
	switch {
	case IsSkip(err):
		return KindSkipped
	case errors.As(err, &ce):
		return KindConfig
	case errors.Is(err, session.ErrNoState):
		return KindState
	case browser.IsStatusError(err):
		return KindHTTP
	case pages.IsBlocked(err):
		return KindBlocked
	case errors.As(err, &se) && !expect.IsTimeout(err):
		return KindStep
	case expect.IsTimeout(err):
		return KindTimeout
	case errors.As(err, &ae):
		return KindAssertion
	case errors.As(err, &ne):
		return KindNavigation
	case errors.As(err, &xe):
		return KindAction
	case errors.Is(err, browser.ErrUnavailable), errors.Is(err, browser.ErrClosed):
		return KindBrowser
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindError
	}
}
