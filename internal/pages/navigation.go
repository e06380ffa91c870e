package pages

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Venallanaj/QA-Task/internal/browser"
	"github.com/Venallanaj/QA-Task/internal/tracing"
)

// DateLayout is the date format the shifts deep link accepts.
const DateLayout = "2006-01-02"

const (
	shellRoute  = "./#/"
	shiftsRoute = "./#/organisation/shifts"
)

// DirectRoute returns the shifts deep link for date, defaulting to today.
func (s *ShiftsPage) DirectRoute(date string) (string, error) {
	if date == "" {
		date = s.now().Format(DateLayout)
	} else if _, err := time.Parse(DateLayout, date); err != nil {
		return "", fmt.Errorf("invalid shifts date %q: want YYYY-MM-DD", date)
	}
	return shiftsRoute + "?date=" + url.QueryEscape(date), nil
}

// GotoDirect opens the shifts view through its deep link and verifies it.
func (s *ShiftsPage) GotoDirect(ctx context.Context, date string) (err error) {
	route, err := s.DirectRoute(date)
	if err != nil {
		return err
	}
	ctx, span := tracing.Start(ctx, "navigate.direct", tracing.AttrURL.String(route))
	defer func() { tracing.End(span, err) }()

	resp, err := s.page.Goto(ctx, route)
	if err != nil {
		return err
	}
	if err := browser.CheckStatus(resp); err != nil {
		return err
	}
	return s.oracle.Verify(ctx, s.page, ShiftsView{})
}

// GotoViaMenu opens the application shell and reaches the shifts view the
// way a user would, through the navigation drawer. The coercion step
// results are returned even when navigation fails.
func (s *ShiftsPage) GotoViaMenu(ctx context.Context) (results []StepResult, err error) {
	ctx, span := tracing.Start(ctx, "navigate.menu", tracing.AttrURL.String(shellRoute))
	defer func() { tracing.End(span, err) }()

	resp, err := s.page.Goto(ctx, shellRoute)
	if err != nil {
		return nil, err
	}
	if err := browser.CheckStatus(resp); err != nil {
		return nil, err
	}
	if err := s.oracle.FailFastIfBlocked(ctx, s.page); err != nil {
		return nil, err
	}
	s.settle(ctx)

	results, err = s.sidebar.Navigate(ctx)
	if err != nil {
		return results, err
	}
	return results, s.oracle.Verify(ctx, s.page, ShiftsView{})
}

// settle waits for the shell's startup requests to drain. Long-polling
// endpoints can keep the network busy indefinitely, so a miss is logged.
func (s *ShiftsPage) settle(ctx context.Context) {
	idleCtx, cancel := context.WithTimeout(ctx, s.settleBudget())
	defer cancel()
	if err := s.page.WaitNetworkIdle(idleCtx, s.cfg.NetworkIdleQuietTime); err != nil {
		s.log.Warn("network did not go idle", "err", err)
	}
}

// settleBudget leaves at least three quarters of the scenario timeout for
// the drawer steps that follow.
func (s *ShiftsPage) settleBudget() time.Duration {
	budget := s.cfg.NavigationTimeout
	if s.cfg.TestTimeout > 0 {
		budget = min(budget, s.cfg.TestTimeout/4)
	}
	return budget
}
