// Package pages holds the page objects for the scheduling application and
// the readiness oracle that decides when a view is usable.
package pages

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/Venallanaj/QA-Task/internal/browser"
)

// Signal is one observable condition that must hold once a view has
// loaded. Every condition set on a Signal must hold at the same time.
type Signal struct {
	Name    string
	Target  browser.Selector
	Visible bool
	// Text, when set, must match the trimmed text of the first match.
	Text     *browser.Pattern
	NonEmpty bool
}

func (s Signal) condition() string {
	var parts []string
	if s.Visible {
		parts = append(parts, "be visible")
	}
	if s.Text != nil {
		parts = append(parts, "contain text "+s.Text.String())
	}
	if s.NonEmpty {
		parts = append(parts, "have non-empty text")
	}
	if len(parts) == 0 {
		return "exist"
	}
	return strings.Join(parts, " and ")
}

// View is a navigable screen with a fixed set of positive readiness signals.
type View interface {
	Name() string
	PositiveSignals() []Signal
}

// Marker is a negative signal: its presence means the application refused
// or could not route the request.
type Marker struct {
	Name   string
	Target browser.Selector
}

// BlockedMarkers apply to every view.
var BlockedMarkers = []Marker{
	{Name: "not-found", Target: browser.TextMatching(browser.Regexp(`404\s*\|\s*NOT FOUND`, "i"))},
	{Name: "forbidden", Target: browser.CSS("h1").WithText(browser.Substring("Forbidden"))},
}

// DateCursor is the scheduler's visible date label. Its format belongs to
// the application; only equality is meaningful here.
type DateCursor string

func (c DateCursor) String() string { return string(c) }

// Outcome is the result of an optional interaction.
type Outcome int

const (
	// NoOp means the precondition was absent and nothing was done. Callers
	// skip dependent assertions.
	NoOp Outcome = iota
	Performed
)

func (o Outcome) String() string {
	if o == Performed {
		return "performed"
	}
	return "no-op"
}

// StepStatus classifies one drawer coercion step.
type StepStatus int

const (
	// Applied: the step acted on the page.
	Applied StepStatus = iota
	// AlreadySatisfied: the page was already in the wanted state.
	AlreadySatisfied
	// NotApplicable: the step's control was absent.
	NotApplicable
	// Tolerated: the action failed and a later step re-checks the end state.
	Tolerated
)

func (s StepStatus) String() string {
	switch s {
	case Applied:
		return "applied"
	case AlreadySatisfied:
		return "already-satisfied"
	case NotApplicable:
		return "not-applicable"
	case Tolerated:
		return "tolerated"
	default:
		return fmt.Sprintf("StepStatus(%d)", int(s))
	}
}

type StepResult struct {
	Step   string
	Status StepStatus
	// Err is set only for Tolerated steps.
	Err error
}

func (r StepResult) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("step", r.Step),
		slog.String("status", r.Status.String()),
	}
	if r.Err != nil {
		attrs = append(attrs, slog.String("err", r.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}
