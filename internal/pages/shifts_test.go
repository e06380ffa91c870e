package pages

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Venallanaj/QA-Task/internal/browser"
	"github.com/Venallanaj/QA-Task/internal/browser/browsertest"
	"github.com/Venallanaj/QA-Task/internal/expect"
)

func newShifts(t *testing.T) (*ShiftsPage, *browsertest.Page) {
	t.Helper()
	page := browsertest.NewPage(testBase)
	return NewShiftsPage(page, testConfig(), nil), page
}

func TestClickToday(t *testing.T) {
	s, page := newShifts(t)
	label := page.El(dateLabelSel).Show("March 2026")
	page.El(todaySel).Show("Today").OnClick = func() { label.SetText("  February 2026 ") }

	cur, err := s.ClickToday(context.Background())
	if err != nil {
		t.Fatalf("ClickToday: %v", err)
	}
	if cur != "February 2026" {
		t.Errorf("cursor = %q", cur)
	}
	if page.El(todaySel).Clicks() != 1 {
		t.Error("Today was not clicked")
	}
}

func TestClickTodayRejectsErrorLabel(t *testing.T) {
	for _, text := range []string{"Forbidden", "Page not found"} {
		s, page := newShifts(t)
		page.El(todaySel).Show("Today")
		page.El(dateLabelSel).Show(text)

		_, err := s.ClickToday(context.Background())
		var ae *expect.AssertionError
		if !errors.As(err, &ae) {
			t.Errorf("%q: expected *expect.AssertionError, got %v", text, err)
		}
	}
}

func TestClickTodayMissingButton(t *testing.T) {
	s, _ := newShifts(t)
	_, err := s.ClickToday(context.Background())
	if !expect.IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestGoNextAndBack(t *testing.T) {
	tests := []struct {
		name     string
		backText string
	}{
		{"round trip", "February 2026"},
		// The label format may differ after paging back; only change matters.
		{"different back label", "Feb 2026"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, page := newShifts(t)
			label := page.El(dateLabelSel).Show("February 2026")
			page.El(pagerSel.Nth(2)).Show("").OnClick = func() { label.SetText("March 2026") }
			page.El(pagerSel.Nth(1)).Show("").OnClick = func() { label.SetText(tt.backText) }

			start, moved, back, err := s.GoNextAndBack(context.Background())
			if err != nil {
				t.Fatalf("GoNextAndBack: %v", err)
			}
			if start != "February 2026" || moved != "March 2026" || back != DateCursor(tt.backText) {
				t.Errorf("cursors = %q, %q, %q", start, moved, back)
			}
		})
	}
}

func TestGoNextWithoutChangeTimesOut(t *testing.T) {
	s, page := newShifts(t)
	page.El(dateLabelSel).Show("February 2026")
	page.El(pagerSel.Nth(2)).Show("")
	page.El(pagerSel.Nth(1)).Show("")

	start, moved, _, err := s.GoNextAndBack(context.Background())
	var te *expect.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected *expect.TimeoutError, got %v", err)
	}
	if start != "February 2026" || moved != "" {
		t.Errorf("cursors = %q, %q", start, moved)
	}
	if page.El(pagerSel.Nth(1)).Clicks() != 0 {
		t.Error("prev clicked after next failed")
	}
}

func TestGoNextAndBackEmptyStart(t *testing.T) {
	s, page := newShifts(t)
	page.El(dateLabelSel).Show(" ")
	next := page.El(pagerSel.Nth(2)).Show("")

	_, _, _, err := s.GoNextAndBack(context.Background())
	var ae *expect.AssertionError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *expect.AssertionError, got %v", err)
	}
	if next.Clicks() != 0 {
		t.Error("next clicked with an empty start label")
	}
}

func TestAssertHasSomeRows(t *testing.T) {
	s, page := newShifts(t)

	_, err := s.AssertHasSomeRows(context.Background())
	var ae *expect.AssertionError
	if !errors.As(err, &ae) || !strings.Contains(err.Error(), "expected > 0") {
		t.Fatalf("expected count assertion, got %v", err)
	}

	page.El(rowsSel).SetCount(7)
	n, err := s.AssertHasSomeRows(context.Background())
	if err != nil || n != 7 {
		t.Fatalf("AssertHasSomeRows = %d, %v", n, err)
	}
}

func TestOpenFirstShiftIfExists(t *testing.T) {
	s, page := newShifts(t)
	ev := page.El(eventSel)

	out, err := s.OpenFirstShiftIfExists(context.Background())
	if err != nil || out != NoOp {
		t.Fatalf("empty view: %v, %v", out, err)
	}
	if ev.Clicks() != 0 {
		t.Error("clicked with no events")
	}

	ev.Show("Morning shift")
	out, err = s.OpenFirstShiftIfExists(context.Background())
	if err != nil || out != Performed {
		t.Fatalf("with events: %v, %v", out, err)
	}
	if ev.Clicks() != 1 {
		t.Errorf("clicks = %d", ev.Clicks())
	}
}

func TestOpenFirstShiftClickFails(t *testing.T) {
	s, page := newShifts(t)
	ev := page.El(eventSel).Show("Morning shift")
	ev.ClickErr = &browser.ActionError{Action: "click", Selector: eventSel.String(), Reason: "covered"}

	out, err := s.OpenFirstShiftIfExists(context.Background())
	if err == nil || out != NoOp {
		t.Fatalf("got %v, %v", out, err)
	}
}

func TestWaitForShiftDetail(t *testing.T) {
	s, page := newShifts(t)

	res := s.WaitForShiftDetail(context.Background(), 20*time.Millisecond)
	if res.Status != Tolerated || res.Err == nil {
		t.Errorf("missing detail: %+v", res)
	}

	page.El(detailSel).Show("Shift details")
	res = s.WaitForShiftDetail(context.Background(), 20*time.Millisecond)
	if res.Status != Applied {
		t.Errorf("shown detail: %+v", res)
	}
}

func TestCurrentDateMissingLabel(t *testing.T) {
	s, _ := newShifts(t)
	_, err := s.CurrentDate(context.Background())
	var ae *expect.AssertionError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *expect.AssertionError, got %v", err)
	}
}
