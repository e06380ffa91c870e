package suite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Venallanaj/QA-Task/internal/browser"
	"github.com/Venallanaj/QA-Task/internal/config"
	"github.com/Venallanaj/QA-Task/internal/expect"
	"github.com/Venallanaj/QA-Task/internal/pages"
	"github.com/Venallanaj/QA-Task/internal/session"
)

func TestClassify(t *testing.T) {
	timeout := &expect.TimeoutError{Signal: "scheduler", Condition: "be visible", Timeout: time.Second}
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"skip", &SkipError{Reason: "no events"}, KindSkipped},
		{"config", &config.Error{Field: "baseURL", Err: config.ErrMissing}, KindConfig},
		{"no state", fmt.Errorf("%w at x", session.ErrNoState), KindState},
		{"status", &browser.StatusError{URL: "u", Status: 403}, KindHTTP},
		{"blocked", &pages.BlockedError{Marker: "forbidden"}, KindBlocked},
		{"timeout", fmt.Errorf("before each: %w", timeout), KindTimeout},
		{"step timeout", &pages.StepError{Step: "shifts-visible", Err: timeout}, KindTimeout},
		{"step action", &pages.StepError{Step: "open-shifts", Err: &browser.ActionError{Action: "click"}}, KindStep},
		{"assertion", &expect.AssertionError{Subject: "rows", Message: "expected > 0, got 0"}, KindAssertion},
		{"navigation", &browser.NavigationError{URL: "u", Reason: "net::ERR_NAME_NOT_RESOLVED"}, KindNavigation},
		{"action", &browser.ActionError{Action: "click"}, KindAction},
		{"browser", browser.ErrUnavailable, KindBrowser},
		{"cancelled", context.Canceled, KindCancelled},
		{"other", errors.New("boom"), KindError},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("%s: Classify = %q, want %q", tt.name, got, tt.want)
		}
	}
}
