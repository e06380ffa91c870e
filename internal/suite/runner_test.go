package suite

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Venallanaj/QA-Task/internal/browser"
	"github.com/Venallanaj/QA-Task/internal/browser/browsertest"
	"github.com/Venallanaj/QA-Task/internal/config"
	"github.com/Venallanaj/QA-Task/internal/session"
)

type fakeSource struct {
	mu     sync.Mutex
	pages  []*browsertest.Page
	states []*session.State
	open   int
	err    error
}

func (f *fakeSource) NewPage(ctx context.Context, st *session.State) (browser.Page, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, nil, f.err
	}
	p := browsertest.NewPage("https://app.test/da/")
	f.pages = append(f.pages, p)
	f.states = append(f.states, st)
	f.open++
	return p, func() {
		f.mu.Lock()
		f.open--
		f.mu.Unlock()
	}, nil
}

func testConfig(t *testing.T) *config.RuntimeConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.BaseURL = "https://app.test/da/"
	cfg.ResultsDir = t.TempDir()
	cfg.StatePath = filepath.Join(t.TempDir(), "state.json")
	cfg.TestTimeout = 2 * time.Second
	cfg.Workers = 2
	return cfg
}

func pass(context.Context, *T) error { return nil }

func fail(msg string) Func {
	return func(context.Context, *T) error { return errors.New(msg) }
}

func statuses(rep *Report) map[string]Status {
	m := make(map[string]Status)
	for _, r := range rep.Results {
		m[r.Scenario] = r.Status
	}
	return m
}

func TestRunDependencyFailureAbortsDependents(t *testing.T) {
	cfg := testConfig(t)
	src := &fakeSource{}
	projects := []Project{
		{Name: "e2e", Dependencies: []string{"setup"}, UseState: true, Groups: []Group{{Scenarios: []Scenario{{Name: "loads", Run: pass}}}}},
		{Name: "setup", Groups: []Group{{Scenarios: []Scenario{{Name: "authenticate", Run: fail("login rejected")}}}}},
	}

	rep, err := NewRunner(cfg, src, nil).Run(context.Background(), projects)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := map[string]Status{"authenticate": Failed, "loads": Skipped}
	if diff := cmp.Diff(want, statuses(rep)); diff != "" {
		t.Errorf("statuses (-want +got):\n%s", diff)
	}
	if rep.Results[0].Project != "setup" {
		t.Errorf("setup did not run first: %+v", rep.Results[0])
	}
	if rep.OK() {
		t.Error("report should not be OK")
	}
	if len(src.pages) != 1 {
		t.Errorf("opened %d pages, dependents must not get one", len(src.pages))
	}
}

func TestRunSeedsStateIntoDependents(t *testing.T) {
	cfg := testConfig(t)
	src := &fakeSource{}
	want := &session.State{Cookies: []session.Cookie{{Name: "sid", Value: "1", Domain: "app.test", Path: "/"}}}

	var seen *session.State
	projects := []Project{
		{Name: "setup", Groups: []Group{{Scenarios: []Scenario{{Name: "authenticate", Run: func(ctx context.Context, t *T) error {
			return session.Save(cfg.StateAbsPath(), want)
		}}}}}},
		{Name: "e2e", Dependencies: []string{"setup"}, UseState: true, Groups: []Group{{Scenarios: []Scenario{{Name: "loads", Run: func(ctx context.Context, t *T) error {
			seen = t.State
			return nil
		}}}}}},
	}

	rep, err := NewRunner(cfg, src, nil).Run(context.Background(), projects)
	if err != nil || !rep.OK() {
		t.Fatalf("Run: %v %+v", err, rep)
	}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("scenario state (-want +got):\n%s", diff)
	}
	if src.states[0] != nil {
		t.Error("setup page must start without state")
	}
	if src.open != 0 {
		t.Errorf("%d pages left open", src.open)
	}
}

func TestRunMissingStateFailsProject(t *testing.T) {
	cfg := testConfig(t)
	projects := []Project{
		{Name: "e2e", UseState: true, Groups: []Group{{Scenarios: []Scenario{{Name: "a", Run: pass}, {Name: "b", Run: pass}}}}},
	}
	rep, err := NewRunner(cfg, &fakeSource{}, nil).Run(context.Background(), projects)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Failed != 2 || rep.Results[0].Kind != KindState {
		t.Errorf("report = %+v", rep)
	}
}

func TestSerialGroupStopsAfterFailure(t *testing.T) {
	cfg := testConfig(t)
	var order []string
	step := func(name string, err error) Scenario {
		return Scenario{Name: name, Run: func(context.Context, *T) error {
			order = append(order, name)
			return err
		}}
	}
	projects := []Project{{Name: "e2e", Groups: []Group{{
		Name:   "menu",
		Serial: true,
		Scenarios: []Scenario{
			step("one", nil),
			step("two", errors.New("boom")),
			step("three", nil),
		},
	}}}}

	rep, err := NewRunner(cfg, &fakeSource{}, nil).Run(context.Background(), projects)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"one", "two"}, order); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	want := map[string]Status{"one": Passed, "two": Failed, "three": Skipped}
	if diff := cmp.Diff(want, statuses(rep)); diff != "" {
		t.Errorf("statuses (-want +got):\n%s", diff)
	}
}

func TestParallelGroupRespectsWorkers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workers = 2
	var running, peak atomic.Int32
	body := func(context.Context, *T) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return nil
	}
	var scs []Scenario
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		scs = append(scs, Scenario{Name: name, Run: body})
	}

	rep, err := NewRunner(cfg, &fakeSource{}, nil).Run(context.Background(), []Project{{Name: "e2e", Groups: []Group{{Scenarios: scs}}}})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Passed != 5 {
		t.Errorf("passed = %d", rep.Passed)
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency %d exceeds workers", p)
	}
	for i, want := range []string{"a", "b", "c", "d", "e"} {
		if rep.Results[i].Scenario != want {
			t.Errorf("result %d = %s, want declaration order", i, rep.Results[i].Scenario)
		}
	}
}

func TestBeforeEachAndSkip(t *testing.T) {
	cfg := testConfig(t)
	var hooks atomic.Int32
	projects := []Project{{Name: "e2e", Groups: []Group{{
		Name:       "core",
		BeforeEach: func(context.Context, *T) error { hooks.Add(1); return nil },
		Scenarios: []Scenario{
			{Name: "open shift", Run: func(ctx context.Context, t *T) error { return t.Skip("no shift events for %s", "today") }},
			{Name: "rows", Run: pass},
		},
	}}}}

	rep, err := NewRunner(cfg, &fakeSource{}, nil).Run(context.Background(), projects)
	if err != nil {
		t.Fatal(err)
	}
	if hooks.Load() != 2 {
		t.Errorf("BeforeEach ran %d times", hooks.Load())
	}
	r := rep.Results[0]
	if r.Status != Skipped || r.Error != "no shift events for today" || r.Screenshot != "" {
		t.Errorf("skip result = %+v", r)
	}
}

func TestBeforeEachFailure(t *testing.T) {
	cfg := testConfig(t)
	ran := false
	projects := []Project{{Name: "e2e", Groups: []Group{{
		BeforeEach: fail("navigation failed"),
		Scenarios:  []Scenario{{Name: "x", Run: func(context.Context, *T) error { ran = true; return nil }}},
	}}}}
	rep, _ := NewRunner(cfg, &fakeSource{}, nil).Run(context.Background(), projects)
	if ran || rep.Results[0].Status != Failed {
		t.Errorf("ran=%v result=%+v", ran, rep.Results[0])
	}
}

func TestFailureScreenshot(t *testing.T) {
	cfg := testConfig(t)
	cfg.ScreenshotOnFailure = true
	r := NewRunner(cfg, &fakeSource{}, nil)

	rep, _ := r.Run(context.Background(), []Project{{Name: "e2e", Groups: []Group{{
		Name:      "core",
		Scenarios: []Scenario{{Name: "Today button works", Run: fail("label empty")}},
	}}}})
	shot := rep.Results[0].Screenshot
	if shot == "" {
		t.Fatal("no screenshot recorded")
	}
	if filepath.Dir(shot) != r.ArtifactDir() || filepath.Base(shot) != "e2e-core-Today-button-works.png" {
		t.Errorf("screenshot path = %s", shot)
	}
	if _, err := os.Stat(shot); err != nil {
		t.Error(err)
	}
}

func TestPanicBecomesFailure(t *testing.T) {
	cfg := testConfig(t)
	rep, _ := NewRunner(cfg, &fakeSource{}, nil).Run(context.Background(), []Project{{Name: "e2e", Groups: []Group{{
		Scenarios: []Scenario{{Name: "bad", Run: func(context.Context, *T) error { panic("nil page") }}},
	}}}})
	if rep.Results[0].Status != Failed {
		t.Errorf("result = %+v", rep.Results[0])
	}
}

func TestNewPageErrorFailsScenario(t *testing.T) {
	cfg := testConfig(t)
	src := &fakeSource{err: browser.ErrClosed}
	rep, _ := NewRunner(cfg, src, nil).Run(context.Background(), []Project{{Name: "e2e", Groups: []Group{{
		Scenarios: []Scenario{{Name: "a", Run: pass}},
	}}}})
	if rep.Results[0].Status != Failed || rep.Results[0].Kind != KindBrowser {
		t.Errorf("result = %+v", rep.Results[0])
	}
}

func TestGrepKeepsDependencies(t *testing.T) {
	cfg := testConfig(t)
	projects := []Project{
		{Name: "setup", Groups: []Group{{Scenarios: []Scenario{{Name: "authenticate", Run: pass}}}}},
		{Name: "e2e", Dependencies: []string{"setup"}, Groups: []Group{{Name: "core", Scenarios: []Scenario{
			{Name: "Today button works", Run: pass},
			{Name: "Prev/Next works", Run: pass},
		}}}},
	}
	r := NewRunner(cfg, &fakeSource{}, nil).WithGrep(regexp.MustCompile(`Today`))
	rep, err := r.Run(context.Background(), projects)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]Status{"authenticate": Passed, "Today button works": Passed}
	if diff := cmp.Diff(want, statuses(rep)); diff != "" {
		t.Errorf("statuses (-want +got):\n%s", diff)
	}
}

func TestCancelledRun(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, _ := NewRunner(cfg, &fakeSource{}, nil).Run(ctx, []Project{{Name: "e2e", Groups: []Group{{
		Scenarios: []Scenario{{Name: "a", Run: pass}},
	}}}})
	if rep.Results[0].Kind != KindCancelled {
		t.Errorf("result = %+v", rep.Results[0])
	}
}

func TestOrder(t *testing.T) {
	tests := []struct {
		name     string
		projects []Project
		want     []string
		wantErr  bool
	}{
		{"deps first", []Project{{Name: "e2e", Dependencies: []string{"setup"}}, {Name: "setup"}}, []string{"setup", "e2e"}, false},
		{"unknown", []Project{{Name: "e2e", Dependencies: []string{"auth"}}}, nil, true},
		{"cycle", []Project{{Name: "a", Dependencies: []string{"b"}}, {Name: "b", Dependencies: []string{"a"}}}, nil, true},
		{"duplicate", []Project{{Name: "a"}, {Name: "a"}}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := order(tt.projects)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			var names []string
			for _, p := range got {
				names = append(names, p.Name)
			}
			if diff := cmp.Diff(tt.want, names); diff != "" {
				t.Errorf("order (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSelect(t *testing.T) {
	projects := []Project{{Name: "setup"}, {Name: "e2e", Dependencies: []string{"setup"}}, {Name: "login"}}
	got, err := Select(projects, "e2e")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "setup" || got[1].Name != "e2e" {
		t.Errorf("Select = %+v", got)
	}
	if _, err := Select(projects, "nope"); err == nil {
		t.Error("expected unknown project error")
	}
}

func TestReportWrite(t *testing.T) {
	dir := t.TempDir()
	rep := &Report{RunID: "run-1"}
	rep.add(Result{Project: "e2e", Scenario: "a", Status: Passed})
	rep.add(Result{Project: "e2e", Scenario: "b", Status: Failed, Kind: KindTimeout, Error: "timed out"})

	path, err := rep.Write(dir)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got Report
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Passed != 1 || got.Failed != 1 || got.Results[1].Kind != KindTimeout {
		t.Errorf("decoded report = %+v", got)
	}
}
