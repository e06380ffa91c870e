// Package suite runs scenarios grouped into projects. Each scenario gets its
// own isolated page; projects run after the projects they depend on.
package suite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Venallanaj/QA-Task/internal/browser"
	"github.com/Venallanaj/QA-Task/internal/config"
	"github.com/Venallanaj/QA-Task/internal/session"
)

// Func is a scenario body or a group hook.
type Func func(ctx context.Context, t *T) error

type Scenario struct {
	Name string
	Run  Func
}

// Group is a set of scenarios sharing a BeforeEach hook. Scenarios of a
// Serial group run in order on one worker and a failure skips the rest.
type Group struct {
	Name       string
	Serial     bool
	BeforeEach Func
	Scenarios  []Scenario
}

// Project is a unit of dependency ordering. UseState starts every page from
// the saved session artifact.
type Project struct {
	Name         string
	Dependencies []string
	UseState     bool
	Groups       []Group
}

// T is the per-scenario handle passed to scenario bodies.
type T struct {
	Page   browser.Page
	Config *config.RuntimeConfig
	Log    *slog.Logger
	// State is the session the page was seeded with, nil for unauthenticated
	// projects.
	State *session.State

	name string
}

func (t *T) Name() string { return t.name }

// Skip ends the scenario as skipped. Use it as `return t.Skip(...)`.
func (t *T) Skip(format string, args ...any) error {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string { return "skipped: " + e.Reason }

func IsSkip(err error) bool {
	var se *SkipError
	return errors.As(err, &se)
}

// PageSource opens isolated pages. *browser.Browser implements it.
type PageSource interface {
	NewPage(ctx context.Context, st *session.State) (browser.Page, func(), error)
}
