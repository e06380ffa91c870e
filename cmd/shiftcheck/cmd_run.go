package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/Venallanaj/QA-Task/internal/auth"
	"github.com/Venallanaj/QA-Task/internal/browser"
	"github.com/Venallanaj/QA-Task/internal/config"
	"github.com/Venallanaj/QA-Task/internal/scenarios"
	"github.com/Venallanaj/QA-Task/internal/session"
	"github.com/Venallanaj/QA-Task/internal/suite"
	"github.com/Venallanaj/QA-Task/internal/tracing"
)

func newSetupCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Log in once and save the session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(cmd.Context(), o.cfg)
		},
	}
}

func runSetup(ctx context.Context, cfg *config.RuntimeConfig) error {
	if err := cfg.ValidateSetup(); err != nil {
		return err
	}
	b, err := browser.Launch(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	st, err := auth.NewBootstrapper(cfg, b, slog.Default()).Run(ctx)
	if err != nil {
		return err
	}
	slog.Info("setup complete", "state", cfg.StateAbsPath(), "cookies", len(st.Cookies))
	return nil
}

type runOptions struct {
	grep      string
	projects  []string
	skipSetup bool
}

func newRunCmd(o *options) *cobra.Command {
	ro := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the suite (setup first, then dependent projects)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(cmd.Context(), cmd.OutOrStdout(), o.cfg, ro)
		},
	}
	cmd.Flags().StringVar(&ro.grep, "grep", "", "only run scenarios whose title matches this regexp")
	cmd.Flags().StringSliceVar(&ro.projects, "project", nil, "projects to run, with their dependencies")
	cmd.Flags().BoolVar(&ro.skipSetup, "skip-setup", false, "reuse an existing session state instead of logging in")
	return cmd
}

// planProjects selects projects and, with skipSetup, drops the setup
// project once a usable artifact exists.
func planProjects(cfg *config.RuntimeConfig, ro *runOptions) ([]suite.Project, error) {
	projects, err := suite.Select(scenarios.Projects(), ro.projects...)
	if err != nil {
		return nil, err
	}
	if !ro.skipSetup {
		return projects, nil
	}
	if _, err := session.Load(cfg.StateAbsPath()); err != nil {
		return nil, fmt.Errorf("--skip-setup: %w", err)
	}
	var out []suite.Project
	for _, p := range projects {
		if p.Name == scenarios.SetupProject {
			continue
		}
		p.Dependencies = slices.DeleteFunc(slices.Clone(p.Dependencies), func(d string) bool {
			return d == scenarios.SetupProject
		})
		out = append(out, p)
	}
	return out, nil
}

func needsLogin(projects []suite.Project) bool {
	return slices.ContainsFunc(projects, func(p suite.Project) bool {
		return p.Name == scenarios.SetupProject
	})
}

func runSuite(ctx context.Context, out io.Writer, cfg *config.RuntimeConfig, ro *runOptions) error {
	var grep *regexp.Regexp
	if ro.grep != "" {
		re, err := regexp.Compile(ro.grep)
		if err != nil {
			return &exitError{code: 2, err: fmt.Errorf("invalid --grep: %w", err)}
		}
		grep = re
	}
	projects, err := planProjects(cfg, ro)
	if err != nil {
		return err
	}
	validate := cfg.Validate
	if needsLogin(projects) {
		validate = cfg.ValidateSetup
	}
	if err := validate(); err != nil {
		return err
	}

	b, err := browser.Launch(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	runner := suite.NewRunner(cfg, b, slog.Default()).WithGrep(grep)
	if cfg.Trace {
		shutdown, err := tracing.Setup(ctx, cfg.ResultsDir, runner.RunID(), version)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("flush trace", "err", err)
			}
		}()
	}

	rep, err := runner.Run(ctx, projects)
	if err != nil {
		return err
	}
	path, werr := rep.Write(cfg.ResultsDir)
	if werr != nil {
		slog.Warn("report not written", "err", werr)
	}
	printSummary(out, rep, path)

	if !rep.OK() {
		return &exitError{code: 1, err: fmt.Errorf("%d of %d scenarios failed", rep.Failed, len(rep.Results))}
	}
	if err := ctx.Err(); err != nil {
		return &exitError{code: 130, err: errors.New("run interrupted")}
	}
	return nil
}

func printSummary(w io.Writer, rep *suite.Report, reportPath string) {
	for _, r := range rep.Results {
		mark := "ok  "
		switch r.Status {
		case suite.Failed:
			mark = "FAIL"
		case suite.Skipped:
			mark = "skip"
		}
		fmt.Fprintf(w, "%s %s (%s)\n", mark, r.Title(), r.Duration.Round(time.Millisecond))
		if r.Error != "" {
			fmt.Fprintf(w, "     %s\n", r.Error)
		}
		if r.Screenshot != "" {
			fmt.Fprintf(w, "     screenshot: %s\n", r.Screenshot)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d skipped in %s\n", rep.Passed, rep.Failed, rep.Skipped, rep.Duration.Round(time.Millisecond))
	if reportPath != "" {
		fmt.Fprintf(w, "report: %s\n", reportPath)
	}
}
