package suite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Venallanaj/QA-Task/internal/browser"
	"github.com/Venallanaj/QA-Task/internal/config"
	"github.com/Venallanaj/QA-Task/internal/session"
	"github.com/Venallanaj/QA-Task/internal/tracing"
)

// screenshotTimeout bounds the failure screenshot, which runs after the
// scenario's own deadline may have expired.
const screenshotTimeout = 10 * time.Second

type Runner struct {
	cfg   *config.RuntimeConfig
	pages PageSource
	log   *slog.Logger
	runID string
	grep  *regexp.Regexp

	// loadState reads the session artifact; replaced in tests.
	loadState func(path string) (*session.State, error)
}

func NewRunner(cfg *config.RuntimeConfig, src PageSource, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		cfg:       cfg,
		pages:     src,
		log:       log,
		runID:     uuid.NewString(),
		loadState: session.Load,
	}
}

// WithGrep restricts the run to scenarios whose title matches re. Projects
// other runs depend on are not filtered.
func (r *Runner) WithGrep(re *regexp.Regexp) *Runner {
	r.grep = re
	return r
}

func (r *Runner) RunID() string { return r.runID }

// ArtifactDir is where screenshots of this run are stored.
func (r *Runner) ArtifactDir() string {
	return filepath.Join(r.cfg.ResultsDir, r.runID)
}

// Run executes projects in dependency order. Scenario failures are recorded
// in the report; the returned error is reserved for an unusable project
// graph.
func (r *Runner) Run(ctx context.Context, projects []Project) (*Report, error) {
	ordered, err := order(projects)
	if err != nil {
		return nil, err
	}
	needed := dependedOn(projects)

	rep := &Report{RunID: r.runID, Started: time.Now()}
	ctx, span := tracing.Start(ctx, "run", tracing.AttrRunID.String(r.runID))
	defer span.End()

	for _, p := range ordered {
		if dep := failedDependency(rep, p); dep != "" {
			r.log.Error("project aborted", "project", p.Name, "dependency", dep)
			r.skipProject(rep, p, fmt.Sprintf("dependency %q failed", dep))
			continue
		}
		for _, res := range r.runProject(ctx, p, needed[p.Name]) {
			rep.add(res)
		}
	}
	rep.Duration = time.Since(rep.Started)
	r.log.Info("run finished", "run", r.runID, "passed", rep.Passed, "failed", rep.Failed, "skipped", rep.Skipped, "duration", rep.Duration.Round(time.Millisecond))
	return rep, nil
}

func failedDependency(rep *Report, p Project) string {
	for _, d := range p.Dependencies {
		if rep.projectFailed(d) {
			return d
		}
	}
	return ""
}

func (r *Runner) skipProject(rep *Report, p Project, reason string) {
	for _, g := range p.Groups {
		for _, sc := range g.Scenarios {
			rep.add(Result{Project: p.Name, Group: g.Name, Scenario: sc.Name, Status: Skipped, Kind: KindSkipped, Error: reason, Started: time.Now()})
		}
	}
}

// unit is what one worker runs: a single scenario, or a whole serial group.
type unit struct {
	group     int
	scenarios []int
}

func (r *Runner) runProject(ctx context.Context, p Project, unfiltered bool) []Result {
	ctx, span := tracing.Start(ctx, "project", tracing.AttrProject.String(p.Name))
	defer span.End()

	var st *session.State
	if p.UseState {
		loaded, err := r.loadState(r.cfg.StateAbsPath())
		if err != nil {
			r.log.Error("session state unavailable", "project", p.Name, "err", err)
			return r.failProject(p, err)
		}
		st = loaded
	}

	var units []unit
	slots := make([][]Result, len(p.Groups))
	for gi, g := range p.Groups {
		var idx []int
		for i, sc := range g.Scenarios {
			if unfiltered || r.grep == nil || r.grep.MatchString(title(p.Name, g.Name, sc.Name)) {
				idx = append(idx, i)
			}
		}
		if len(idx) == 0 {
			continue
		}
		slots[gi] = make([]Result, len(g.Scenarios))
		if g.Serial {
			units = append(units, unit{group: gi, scenarios: idx})
			continue
		}
		for _, i := range idx {
			units = append(units, unit{group: gi, scenarios: []int{i}})
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.cfg.Workers, 1))
	for _, u := range units {
		grp := p.Groups[u.group]
		g.Go(func() error {
			for n, i := range u.scenarios {
				res := r.runScenario(gctx, p.Name, grp, grp.Scenarios[i], st)
				mu.Lock()
				slots[u.group][i] = res
				mu.Unlock()
				if res.Status == Failed && grp.Serial {
					r.skipRest(&mu, slots[u.group], p.Name, grp, u.scenarios[n+1:], res.Scenario)
					break
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	var out []Result
	for _, slot := range slots {
		for _, res := range slot {
			if res.Scenario != "" {
				out = append(out, res)
			}
		}
	}
	return out
}

func (r *Runner) skipRest(mu *sync.Mutex, slot []Result, project string, g Group, rest []int, failed string) {
	mu.Lock()
	defer mu.Unlock()
	for _, i := range rest {
		slot[i] = Result{
			Project: project, Group: g.Name, Scenario: g.Scenarios[i].Name,
			Status: Skipped, Kind: KindSkipped, Started: time.Now(),
			Error: fmt.Sprintf("serial group stopped after %q failed", failed),
		}
	}
}

func (r *Runner) failProject(p Project, err error) []Result {
	var out []Result
	for _, g := range p.Groups {
		for _, sc := range g.Scenarios {
			out = append(out, Result{Project: p.Name, Group: g.Name, Scenario: sc.Name, Status: Failed, Kind: Classify(err), Error: err.Error(), Started: time.Now()})
		}
	}
	return out
}

func (r *Runner) runScenario(ctx context.Context, project string, g Group, sc Scenario, st *session.State) (res Result) {
	res = Result{Project: project, Group: g.Name, Scenario: sc.Name, Started: time.Now()}
	log := r.log.With("scenario", res.Title())

	ctx, span := tracing.Start(ctx, "scenario",
		tracing.AttrProject.String(project),
		tracing.AttrScenario.String(res.Title()),
	)
	var err error
	defer func() {
		res.Duration = time.Since(res.Started)
		res.Kind = Classify(err)
		switch {
		case err == nil:
			res.Status = Passed
			log.Info("passed", "duration", res.Duration.Round(time.Millisecond))
		case IsSkip(err):
			res.Status = Skipped
			res.Error = strings.TrimPrefix(err.Error(), "skipped: ")
			log.Info("skipped", "reason", res.Error)
		default:
			res.Status = Failed
			res.Error = err.Error()
			log.Error("failed", "kind", res.Kind, "err", err)
		}
		span.SetAttributes(tracing.AttrOutcome.String(string(res.Status)))
		if res.Status == Skipped {
			tracing.End(span, nil)
		} else {
			tracing.End(span, err)
		}
	}()

	if err = ctx.Err(); err != nil {
		return res
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.TestTimeout)
	defer cancel()

	page, release, perr := r.pages.NewPage(ctx, st)
	if perr != nil {
		err = perr
		return res
	}
	defer release()

	t := &T{Page: page, Config: r.cfg, Log: log, State: st, name: res.Title()}
	err = r.invoke(ctx, g, sc, t)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !IsSkip(err) {
		err = fmt.Errorf("scenario exceeded %s: %w", r.cfg.TestTimeout, err)
	}
	if err != nil && !IsSkip(err) && r.cfg.ScreenshotOnFailure {
		res.Screenshot = r.screenshot(ctx, page, res.Title(), log)
	}
	return res
}

// invoke runs the group hook and the scenario body, converting a panic into
// a failure.
func (r *Runner) invoke(ctx context.Context, g Group, sc Scenario, t *T) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
	}()
	if g.BeforeEach != nil {
		if err := g.BeforeEach(ctx, t); err != nil {
			if IsSkip(err) {
				return err
			}
			return fmt.Errorf("before each: %w", err)
		}
	}
	if sc.Run == nil {
		return errors.New("scenario has no body")
	}
	return sc.Run(ctx, t)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (r *Runner) screenshot(ctx context.Context, page browser.Page, name string, log *slog.Logger) string {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), screenshotTimeout)
	defer cancel()
	file := strings.Trim(unsafeChars.ReplaceAllString(name, "-"), "-") + ".png"
	path := filepath.Join(r.ArtifactDir(), file)
	if err := page.Screenshot(ctx, path); err != nil {
		log.Warn("failure screenshot", "err", err)
		return ""
	}
	return path
}

// order returns projects so that each follows its dependencies.
func order(projects []Project) ([]Project, error) {
	byName := make(map[string]Project, len(projects))
	for _, p := range projects {
		if _, dup := byName[p.Name]; dup {
			return nil, fmt.Errorf("duplicate project %q", p.Name)
		}
		byName[p.Name] = p
	}
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int)
	var out []Project
	var visit func(p Project) error
	visit = func(p Project) error {
		switch state[p.Name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("project dependency cycle at %q", p.Name)
		}
		state[p.Name] = visiting
		for _, d := range p.Dependencies {
			dep, ok := byName[d]
			if !ok {
				return fmt.Errorf("project %q depends on unknown project %q", p.Name, d)
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[p.Name] = done
		out = append(out, p)
		return nil
	}
	for _, p := range projects {
		if err := visit(p); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func dependedOn(projects []Project) map[string]bool {
	m := make(map[string]bool)
	for _, p := range projects {
		for _, d := range p.Dependencies {
			m[d] = true
		}
	}
	return m
}

// Select returns the named projects plus everything they depend on, in
// declaration order. No names selects all projects.
func Select(projects []Project, names ...string) ([]Project, error) {
	if len(names) == 0 {
		return projects, nil
	}
	byName := make(map[string]Project, len(projects))
	for _, p := range projects {
		byName[p.Name] = p
	}
	keep := make(map[string]bool)
	var mark func(name string) error
	mark = func(name string) error {
		if keep[name] {
			return nil
		}
		p, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown project %q", name)
		}
		keep[name] = true
		for _, d := range p.Dependencies {
			if err := mark(d); err != nil {
				return err
			}
		}
		return nil
	}
	for _, n := range names {
		if err := mark(n); err != nil {
			return nil, err
		}
	}
	var out []Project
	for _, p := range projects {
		if keep[p.Name] {
			out = append(out, p)
		}
	}
	return out, nil
}
