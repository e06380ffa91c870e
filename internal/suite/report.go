package suite

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ReportFile is written inside the results directory after every run.
const ReportFile = "report.json"

type Status string

const (
	Passed  Status = "passed"
	Failed  Status = "failed"
	Skipped Status = "skipped"
)

type Result struct {
	Project    string        `json:"project"`
	Group      string        `json:"group,omitempty"`
	Scenario   string        `json:"scenario"`
	Status     Status        `json:"status"`
	Kind       Kind          `json:"kind,omitempty"`
	Error      string        `json:"error,omitempty"`
	Screenshot string        `json:"screenshot,omitempty"`
	Started    time.Time     `json:"started"`
	Duration   time.Duration `json:"durationNs"`
}

// Title is the scenario's full name, used for --grep matching.
func (r Result) Title() string {
	return title(r.Project, r.Group, r.Scenario)
}

func title(project, group, scenario string) string {
	if group == "" {
		return project + " > " + scenario
	}
	return project + " > " + group + " > " + scenario
}

type Report struct {
	RunID    string        `json:"runId"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"durationNs"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Results  []Result      `json:"results"`
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	switch res.Status {
	case Passed:
		r.Passed++
	case Failed:
		r.Failed++
	case Skipped:
		r.Skipped++
	}
}

// OK reports whether no scenario failed.
func (r *Report) OK() bool { return r.Failed == 0 }

func (r *Report) projectFailed(name string) bool {
	for _, res := range r.Results {
		if res.Project == name && res.Status == Failed {
			return true
		}
	}
	return false
}

// Write stores the report as indented JSON in dir.
func (r *Report) Write(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	path := filepath.Join(dir, ReportFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
