package pages

import (
	"context"
	"errors"
	"log/slog"
	"regexp"

	"github.com/Venallanaj/QA-Task/internal/browser"
	"github.com/Venallanaj/QA-Task/internal/config"
	"github.com/Venallanaj/QA-Task/internal/expect"
	"github.com/Venallanaj/QA-Task/internal/tracing"
)

const (
	capacityGroupTestID = "NavItems.capacity-planning-group"
	shiftsNavTestID     = "NavItems.shift"
	drawerOpenClass     = "v-navigation-drawer--open"
)

var (
	drawerSel     = browser.CSS("nav.v-navigation-drawer:not(.v-navigation-drawer--right)").First()
	burgerSel     = browser.CSS(`button:has(i.mdi-menu), button[aria-label="Navigation drawer"]`).First()
	capGroupSel   = browser.TestID(capacityGroupTestID)
	capHeaderSel  = browser.CSS(`.v-list-group__header:has([data-testid="` + capacityGroupTestID + `"])`)
	shiftsNavSel  = browser.TestID(shiftsNavTestID)
	shiftsURLExpr = regexp.MustCompile(`#/organisation/shifts`)
)

// Sidebar coerces the left navigation drawer into showing the Shifts entry.
// The drawer may start closed, collapsed to icons or with the Capacities
// group folded; every coercion step checks state before acting.
type Sidebar struct {
	page browser.Page
	cfg  *config.RuntimeConfig
	log  *slog.Logger
}

func NewSidebar(page browser.Page, cfg *config.RuntimeConfig, log *slog.Logger) *Sidebar {
	if log == nil {
		log = slog.Default()
	}
	return &Sidebar{page: page, cfg: cfg, log: log}
}

func (sb *Sidebar) Drawer() browser.Element               { return sb.page.Locate(drawerSel) }
func (sb *Sidebar) BurgerButton() browser.Element         { return sb.page.Locate(burgerSel) }
func (sb *Sidebar) CapacitiesGroupTitle() browser.Element { return sb.page.Locate(capGroupSel) }
func (sb *Sidebar) CapacitiesHeader() browser.Element     { return sb.page.Locate(capHeaderSel) }
func (sb *Sidebar) ShiftsNav() browser.Element            { return sb.page.Locate(shiftsNavSel) }

type stepFunc func(ctx context.Context) (StepStatus, error)

// Reveal runs the coercion steps up to and including the Shifts entry
// becoming visible. It returns every step's result; a mandatory step that
// fails ends the sequence with *StepError.
func (sb *Sidebar) Reveal(ctx context.Context) (results []StepResult, err error) {
	ctx, span := tracing.Start(ctx, "sidebar.reveal")
	defer func() { tracing.End(span, err) }()

	steps := []struct {
		name      string
		mandatory bool
		run       stepFunc
	}{
		{"drawer-present", true, sb.drawerPresent},
		{"drawer-open", false, sb.openDrawer},
		{"drawer-hover", false, sb.hoverDrawer},
		{"capacities-visible", true, sb.capacitiesVisible},
		{"capacities-expand", false, sb.expandCapacities},
		{"shifts-visible", true, sb.shiftsVisible},
	}
	for _, st := range steps {
		res, err := sb.runStep(ctx, st.name, st.mandatory, st.run)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Navigate reveals the Shifts entry and clicks it.
func (sb *Sidebar) Navigate(ctx context.Context) ([]StepResult, error) {
	results, err := sb.Reveal(ctx)
	if err != nil {
		return results, err
	}
	res, err := sb.runStep(ctx, "open-shifts", true, func(ctx context.Context) (StepStatus, error) {
		return Applied, sb.ShiftsNav().Click(ctx)
	})
	if err != nil {
		return results, err
	}
	return append(results, res), nil
}

func (sb *Sidebar) runStep(ctx context.Context, name string, mandatory bool, run stepFunc) (StepResult, error) {
	status, err := run(ctx)
	if err != nil {
		if mandatory || errors.Is(err, context.Canceled) {
			tracing.Event(ctx, "step", tracing.AttrStep.String(name), tracing.AttrOutcome.String("failed"))
			return StepResult{Step: name}, &StepError{Step: name, Err: err}
		}
		status = Tolerated
	}
	res := StepResult{Step: name, Status: status}
	if status == Tolerated {
		res.Err = err
		sb.log.Warn("sidebar step tolerated", "result", res)
	} else {
		sb.log.Debug("sidebar step", "result", res)
	}
	tracing.Event(ctx, "step", tracing.AttrStep.String(name), tracing.AttrOutcome.String(status.String()))
	return res, nil
}

func (sb *Sidebar) drawerPresent(ctx context.Context) (StepStatus, error) {
	return AlreadySatisfied, expect.ToHaveCount(ctx, sb.Drawer(), 1, sb.cfg.ReadinessTimeout)
}

func (sb *Sidebar) openDrawer(ctx context.Context) (StepStatus, error) {
	open, err := sb.Drawer().HasClass(ctx, drawerOpenClass)
	if err == nil && open {
		return AlreadySatisfied, nil
	}
	burger := sb.BurgerButton()
	if v, err := burger.Visible(ctx); err != nil || !v {
		return NotApplicable, nil
	}
	return Applied, burger.Click(ctx)
}

// hoverDrawer expands a rail drawer that only shows labels on hover.
func (sb *Sidebar) hoverDrawer(ctx context.Context) (StepStatus, error) {
	return Applied, sb.Drawer().Hover(ctx)
}

func (sb *Sidebar) capacitiesVisible(ctx context.Context) (StepStatus, error) {
	return AlreadySatisfied, expect.ToBeVisible(ctx, sb.CapacitiesHeader(), sb.cfg.ReadinessTimeout)
}

func (sb *Sidebar) expandCapacities(ctx context.Context) (StepStatus, error) {
	header := sb.CapacitiesHeader()
	v, ok, err := header.Attribute(ctx, "aria-expanded")
	if err != nil {
		return Tolerated, err
	}
	if !ok || v != "false" {
		return AlreadySatisfied, nil
	}
	return Applied, header.Click(ctx)
}

func (sb *Sidebar) shiftsVisible(ctx context.Context) (StepStatus, error) {
	return AlreadySatisfied, expect.ToBeVisible(ctx, sb.ShiftsNav(), sb.cfg.ReadinessTimeout)
}

// OpenShiftsDirectly loads the application root and clicks through the
// Capacities group without drawer coercion. It suits layouts where the
// drawer is always expanded.
func (sb *Sidebar) OpenShiftsDirectly(ctx context.Context) (err error) {
	ctx, span := tracing.Start(ctx, "sidebar.direct")
	defer func() { tracing.End(span, err) }()

	resp, err := sb.page.Goto(ctx, "index.html#/")
	if err != nil {
		return err
	}
	if err := browser.CheckStatus(resp); err != nil {
		return err
	}
	if err := sb.CapacitiesGroupTitle().Click(ctx); err != nil {
		return &StepError{Step: "capacities-click", Err: err}
	}
	if err := sb.ShiftsNav().Click(ctx); err != nil {
		return &StepError{Step: "open-shifts", Err: err}
	}
	if err := expect.ToHaveURL(ctx, sb.page, shiftsURLExpr, sb.cfg.ExpectTimeout); err != nil {
		return err
	}
	return expect.ToBeVisible(ctx, sb.page.Locate(schedulerSel), sb.cfg.ReadinessTimeout)
}
