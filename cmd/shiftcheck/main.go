package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Venallanaj/QA-Task/internal/config"
)

var version = "dev"

// exitError carries a process exit code through cobra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

type options struct {
	configPath string
	logLevel   string
	logJSON    bool
	headless   bool
	workers    int

	cfg *config.RuntimeConfig
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	setupSignalHandler(cancel)

	err := newRootCmd(&options{}).ExecuteContext(ctx)
	cancel()
	if err != nil {
		slog.Error("shiftcheck", "err", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func newRootCmd(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "shiftcheck",
		Short:         "End-to-end checks for the shift scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.load(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "config file (default $SHIFTCHECK_CONFIG or shiftcheck.yaml)")
	pf.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error (default $SHIFTCHECK_LOG_LEVEL)")
	pf.BoolVar(&o.logJSON, "log-json", false, "log as JSON")
	pf.BoolVar(&o.headless, "headless", false, "run Chrome without a window")
	pf.IntVar(&o.workers, "workers", 0, "parallel scenarios (default from config)")

	root.AddCommand(
		newSetupCmd(o),
		newRunCmd(o),
		newConfigCmd(o),
		newVersionCmd(),
	)
	return root
}

// load builds the runtime config; flags win over env and file.
func (o *options) load(cmd *cobra.Command) error {
	if o.configPath != "" {
		if err := os.Setenv("SHIFTCHECK_CONFIG", o.configPath); err != nil {
			return err
		}
	}
	cfg := config.Load()
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if cmd.Flags().Changed("headless") {
		cfg.Headless = o.headless
	}
	if o.workers > 0 {
		cfg.Workers = o.workers
	}
	o.cfg = cfg

	log, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, o.logJSON)
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	slog.SetDefault(log)
	return nil
}

func newLogger(w io.Writer, level string, asJSON bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// setupSignalHandler cancels the run on the first signal so open pages are
// closed and the report is still written. A second signal exits at once.
func setupSignalHandler(cancel context.CancelFunc) {
	go func() {
		sig := make(chan os.Signal, 2)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		slog.Warn("interrupted, stopping run")
		cancel()
		<-sig
		slog.Warn("force exit requested")
		os.Exit(130)
	}()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "shiftcheck %s\n", version)
		},
	}
}
