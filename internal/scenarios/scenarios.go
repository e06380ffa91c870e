// Package scenarios declares the shift scheduler suite: an authenticating
// setup project and the e2e project that reuses its session.
package scenarios

import (
	"context"
	"time"

	"github.com/Venallanaj/QA-Task/internal/auth"
	"github.com/Venallanaj/QA-Task/internal/expect"
	"github.com/Venallanaj/QA-Task/internal/pages"
	"github.com/Venallanaj/QA-Task/internal/suite"
)

const (
	SetupProject = "setup"
	E2EProject   = "e2e"
)

// shiftDetailTimeout bounds the best-effort wait for a shift's details.
const shiftDetailTimeout = 10 * time.Second

// Projects returns the full suite in declaration order.
func Projects() []suite.Project {
	return []suite.Project{
		{
			Name:   SetupProject,
			Groups: []suite.Group{{Scenarios: []suite.Scenario{{Name: "authenticate", Run: authenticate}}}},
		},
		{
			Name:         E2EProject,
			Dependencies: []string{SetupProject},
			UseState:     true,
			Groups:       []suite.Group{loginGroup(), coreGroup(), menuGroup()},
		},
	}
}

func shifts(t *suite.T) *pages.ShiftsPage {
	return pages.NewShiftsPage(t.Page, t.Config, t.Log)
}

func authenticate(ctx context.Context, t *suite.T) error {
	_, err := auth.NewBootstrapper(t.Config, nil, t.Log).RunOn(ctx, t.Page)
	return err
}

func loginGroup() suite.Group {
	return suite.Group{
		Name: "Login",
		Scenarios: []suite.Scenario{
			{Name: "Login (clean session)", Run: func(ctx context.Context, t *suite.T) error {
				return auth.LoginCleanSession(ctx, t.Page, t.Config)
			}},
		},
	}
}

func coreGroup() suite.Group {
	return suite.Group{
		Name: "Capacities > Shifts (core)",
		BeforeEach: func(ctx context.Context, t *suite.T) error {
			return shifts(t).GotoDirect(ctx, "")
		},
		Scenarios: []suite.Scenario{
			{Name: "Shifts page loads and scheduler grid is visible", Run: schedulerVisible},
			{Name: "Today button sets date label", Run: clickToday},
			{Name: "Prev/Next navigation changes the date label", Run: nextAndBack},
			{Name: "Scheduler shows at least one staff row", Run: staffRows},
		},
	}
}

func menuGroup() suite.Group {
	return suite.Group{
		Name:   "Capacities > Shifts (via menu)",
		Serial: true,
		BeforeEach: func(ctx context.Context, t *suite.T) error {
			results, err := shifts(t).GotoViaMenu(ctx)
			for _, r := range results {
				t.Log.Debug("drawer step", "result", r)
			}
			return err
		},
		Scenarios: []suite.Scenario{
			{Name: "Shifts page loads", Run: func(ctx context.Context, t *suite.T) error {
				return shifts(t).AssertLoaded(ctx)
			}},
			{Name: "Today button sets date label", Run: clickToday},
			{Name: "Prev/Next navigation changes the date label", Run: nextAndBack},
			{Name: "Scheduler shows rows", Run: func(ctx context.Context, t *suite.T) error {
				_, err := shifts(t).AssertHasSomeRows(ctx)
				return err
			}},
			{Name: "Open a shift if one exists", Run: openShift},
		},
	}
}

func schedulerVisible(ctx context.Context, t *suite.T) error {
	s := shifts(t)
	if err := expect.ToBeVisible(ctx, s.Scheduler(), t.Config.ExpectTimeout); err != nil {
		return err
	}
	return expect.ToContainText(ctx, s.Title(), pages.ShiftsTitle, t.Config.ExpectTimeout)
}

func clickToday(ctx context.Context, t *suite.T) error {
	_, err := shifts(t).ClickToday(ctx)
	return err
}

func nextAndBack(ctx context.Context, t *suite.T) error {
	_, _, _, err := shifts(t).GoNextAndBack(ctx)
	return err
}

func staffRows(ctx context.Context, t *suite.T) error {
	s := shifts(t)
	if err := expect.ToBeVisible(ctx, s.StaffHeader(), t.Config.ExpectTimeout); err != nil {
		return err
	}
	n, err := s.AssertHasSomeRows(ctx)
	if err != nil {
		return err
	}
	t.Log.Info("scheduler rows", "count", n)
	return nil
}

func openShift(ctx context.Context, t *suite.T) error {
	s := shifts(t)
	out, err := s.OpenFirstShiftIfExists(ctx)
	if err != nil {
		return err
	}
	if out == pages.NoOp {
		return t.Skip("no shift events visible in the current view")
	}
	s.WaitForShiftDetail(ctx, shiftDetailTimeout)
	return nil
}
