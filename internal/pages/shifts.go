package pages

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Venallanaj/QA-Task/internal/browser"
	"github.com/Venallanaj/QA-Task/internal/config"
	"github.com/Venallanaj/QA-Task/internal/expect"
	"github.com/Venallanaj/QA-Task/internal/tracing"
)

// ShiftsTitle matches the toolbar title of the shifts view.
var ShiftsTitle = browser.Regexp("Shifts", "i")

var (
	schedulerSel = browser.CSS("#b-schedulerpro-1")
	titleSel     = browser.CSS("header .v-toolbar__title")
	todaySel     = browser.Role("button", browser.Regexp(`^Today$`, "i"))
	pagerSel     = browser.CSS("header .v-toolbar__extension button")
	dateLabelSel = browser.CSS("header .v-toolbar__extension .title.pointer")
	rowsSel      = browser.CSS("#b-schedulerpro-1 .b-grid-row")
	eventSel     = browser.CSS("#b-schedulerpro-1 .b-sch-event-wrap").First()
	staffSel     = browser.CSS("#b-schedulerpro-1 .b-grid-header-text-content").WithText(browser.Substring("Staffs"))
	detailSel    = browser.CSS(`[role="dialog"], .v-dialog--active, aside.v-navigation-drawer--right`).
			WithText(browser.Regexp(`Shift|Schicht|Details|Start|End`, "i")).
			First()

	// Labels that mean the toolbar is showing an error instead of a date.
	blockedLabelPatterns = []*browser.Pattern{
		browser.Regexp("forbidden", "i"),
		browser.Regexp("not found", "i"),
	}
)

// ShiftsView is the scheduler screen under Capacities.
type ShiftsView struct{}

func (ShiftsView) Name() string { return "shifts" }

func (ShiftsView) PositiveSignals() []Signal {
	return []Signal{
		{Name: "scheduler", Target: schedulerSel, Visible: true},
		{Name: "toolbar title", Target: titleSel, Text: ShiftsTitle},
		{Name: "date label", Target: dateLabelSel, Visible: true, NonEmpty: true},
	}
}

// ShiftsPage drives the scheduler. Element accessors return lazy handles;
// verbs pair every action with the check that proves it took effect.
type ShiftsPage struct {
	page    browser.Page
	cfg     *config.RuntimeConfig
	oracle  *Oracle
	sidebar *Sidebar
	log     *slog.Logger
	now     func() time.Time
}

func NewShiftsPage(page browser.Page, cfg *config.RuntimeConfig, log *slog.Logger) *ShiftsPage {
	if log == nil {
		log = slog.Default()
	}
	return &ShiftsPage{
		page:    page,
		cfg:     cfg,
		oracle:  NewOracle(cfg, log),
		sidebar: NewSidebar(page, cfg, log),
		log:     log,
		now:     time.Now,
	}
}

// WithClock replaces the clock used for the default direct-route date.
func (s *ShiftsPage) WithClock(now func() time.Time) *ShiftsPage {
	s.now = now
	return s
}

func (s *ShiftsPage) Oracle() *Oracle    { return s.oracle }
func (s *ShiftsPage) Sidebar() *Sidebar  { return s.sidebar }
func (s *ShiftsPage) View() View         { return ShiftsView{} }
func (s *ShiftsPage) Page() browser.Page { return s.page }

func (s *ShiftsPage) Scheduler() browser.Element     { return s.page.Locate(schedulerSel) }
func (s *ShiftsPage) Title() browser.Element         { return s.page.Locate(titleSel) }
func (s *ShiftsPage) TodayButton() browser.Element   { return s.page.Locate(todaySel) }
func (s *ShiftsPage) PrevButton() browser.Element    { return s.page.Locate(pagerSel.Nth(1)) }
func (s *ShiftsPage) NextButton() browser.Element    { return s.page.Locate(pagerSel.Nth(2)) }
func (s *ShiftsPage) DateLabel() browser.Element     { return s.page.Locate(dateLabelSel) }
func (s *ShiftsPage) SchedulerRows() browser.Element { return s.page.Locate(rowsSel) }
func (s *ShiftsPage) ShiftEvent() browser.Element    { return s.page.Locate(eventSel) }
func (s *ShiftsPage) StaffHeader() browser.Element   { return s.page.Locate(staffSel) }
func (s *ShiftsPage) ShiftDetail() browser.Element   { return s.page.Locate(detailSel) }

func (s *ShiftsPage) Drawer() browser.Element               { return s.sidebar.Drawer() }
func (s *ShiftsPage) BurgerButton() browser.Element         { return s.sidebar.BurgerButton() }
func (s *ShiftsPage) CapacitiesGroupTitle() browser.Element { return s.sidebar.CapacitiesGroupTitle() }
func (s *ShiftsPage) CapacitiesHeader() browser.Element     { return s.sidebar.CapacitiesHeader() }
func (s *ShiftsPage) ShiftsNav() browser.Element            { return s.sidebar.ShiftsNav() }

func (s *ShiftsPage) FailFastIfBlocked(ctx context.Context) error {
	return s.oracle.FailFastIfBlocked(ctx, s.page)
}

func (s *ShiftsPage) AssertLoaded(ctx context.Context) error {
	return s.oracle.AssertLoaded(ctx, s.page, ShiftsView{})
}

// CurrentDate reads the date label once; an absent or blank label is an
// assertion failure.
func (s *ShiftsPage) CurrentDate(ctx context.Context) (DateCursor, error) {
	t, err := s.DateLabel().Text(ctx)
	if err != nil && !errors.Is(err, browser.ErrNotFound) {
		return "", err
	}
	t = strings.TrimSpace(t)
	if err := expect.NotEmpty("date label", t); err != nil {
		return "", err
	}
	return DateCursor(t), nil
}

// ClickToday jumps to the current period and checks the label shows a date
// rather than an error text.
func (s *ShiftsPage) ClickToday(ctx context.Context) (cur DateCursor, err error) {
	ctx, span := tracing.Start(ctx, "shifts.today")
	defer func() { tracing.End(span, err) }()

	today := s.TodayButton()
	if err := expect.ToBeVisible(ctx, today, s.cfg.ReadinessTimeout); err != nil {
		return "", err
	}
	if err := today.Click(ctx); err != nil {
		return "", err
	}

	label := s.DateLabel()
	if err := expect.ToBeVisible(ctx, label, s.cfg.ReadinessTimeout); err != nil {
		return "", err
	}
	text, err := expect.ToHaveNonEmptyText(ctx, label, s.cfg.ExpectTimeout)
	if err != nil {
		return "", err
	}
	if err := expect.NotMatch("date label", text, blockedLabelPatterns...); err != nil {
		return "", err
	}
	s.log.Debug("today selected", "date", text)
	return DateCursor(text), nil
}

// GoNextAndBack pages forward then back and returns the three labels seen.
// Each step only proves the label changed; back is not required to equal
// start.
func (s *ShiftsPage) GoNextAndBack(ctx context.Context) (start, moved, back DateCursor, err error) {
	ctx, span := tracing.Start(ctx, "shifts.page")
	defer func() { tracing.End(span, err) }()

	start, err = s.CurrentDate(ctx)
	if err != nil {
		return "", "", "", err
	}

	label := s.DateLabel()
	if err := s.NextButton().Click(ctx); err != nil {
		return start, "", "", err
	}
	next, err := expect.ToChangeFrom(ctx, label, string(start), s.cfg.ReadinessTimeout)
	if err != nil {
		return start, "", "", err
	}
	if err := expect.NotEmpty("date label after next", next); err != nil {
		return start, "", "", err
	}
	moved = DateCursor(next)

	if err := s.PrevButton().Click(ctx); err != nil {
		return start, moved, "", err
	}
	prev, err := expect.ToChangeFrom(ctx, label, next, s.cfg.ReadinessTimeout)
	if err != nil {
		return start, moved, "", err
	}
	back = DateCursor(prev)

	s.log.Debug("paged", "start", start, "moved", moved, "back", back)
	return start, moved, back, nil
}

// AssertHasSomeRows checks the grid rendered at least one row.
func (s *ShiftsPage) AssertHasSomeRows(ctx context.Context) (int, error) {
	n, err := s.SchedulerRows().Count(ctx)
	if err != nil {
		return 0, err
	}
	if err := expect.Greater("scheduler rows", n, 0); err != nil {
		return n, err
	}
	return n, nil
}

// OpenFirstShiftIfExists clicks the first shift event. Without events it
// returns NoOp and does nothing.
func (s *ShiftsPage) OpenFirstShiftIfExists(ctx context.Context) (Outcome, error) {
	ev := s.ShiftEvent()
	n, err := ev.Count(ctx)
	if err != nil {
		return NoOp, err
	}
	if n == 0 {
		s.log.Info("no shift events in view")
		return NoOp, nil
	}
	if err := ev.Click(ctx); err != nil {
		return NoOp, err
	}
	return Performed, nil
}

// WaitForShiftDetail gives an opened shift up to timeout to show a dialog
// or side drawer. The application renders details in several ways, so a
// miss is reported as Tolerated rather than failing.
func (s *ShiftsPage) WaitForShiftDetail(ctx context.Context, timeout time.Duration) StepResult {
	if err := expect.ToBeVisible(ctx, s.ShiftDetail(), timeout); err != nil {
		s.log.Warn("shift detail not shown", "err", err)
		return StepResult{Step: "shift-detail", Status: Tolerated, Err: err}
	}
	return StepResult{Step: "shift-detail", Status: Applied}
}
