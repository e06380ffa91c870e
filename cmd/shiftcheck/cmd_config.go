package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Venallanaj/QA-Task/internal/config"
)

func newConfigCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := o.cfg.ConfigPath
			if err := config.WriteDefaultFile(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config file created at %s\n", path)
			fmt.Fprintln(cmd.OutOrStdout(), "Credentials are read from DA_USERNAME and DA_PASSWORD only.")
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			showConfig(cmd, o.cfg)
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func showConfig(cmd *cobra.Command, cfg *config.RuntimeConfig) {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "Current configuration:")
	fmt.Fprintf(w, "  Base URL:       %s\n", orNone(cfg.BaseURL))
	fmt.Fprintf(w, "  Username:       %s\n", orNone(cfg.Username))
	fmt.Fprintf(w, "  Password:       %s\n", config.MaskSecret(cfg.Password))
	fmt.Fprintf(w, "  Identity:       %s\n", cfg.ExpectedIdentity)
	fmt.Fprintf(w, "  State file:     %s\n", cfg.StatePath)
	fmt.Fprintf(w, "  Results dir:    %s\n", cfg.ResultsDir)
	fmt.Fprintf(w, "  Config file:    %s\n", cfg.ConfigPath)
	fmt.Fprintf(w, "  Headless:       %v\n", cfg.Headless)
	fmt.Fprintf(w, "  Slow-mo:        %s\n", cfg.SlowMo)
	fmt.Fprintf(w, "  Viewport:       %dx%d\n", cfg.ViewportWidth, cfg.ViewportHeight)
	fmt.Fprintf(w, "  Chrome:         %s\n", orNone(cfg.ChromeBinary))
	fmt.Fprintf(w, "  CDP URL:        %s\n", orNone(cfg.CdpURL))
	fmt.Fprintf(w, "  Workers:        %d\n", cfg.Workers)
	fmt.Fprintf(w, "  Trace:          %v\n", cfg.Trace)
	fmt.Fprintf(w, "  Screenshots:    %v\n", cfg.ScreenshotOnFailure)
	fmt.Fprintf(w, "  Timeouts:       test=%s expect=%s nav=%s action=%s ready=%s blocked=%s login=%s\n",
		cfg.TestTimeout, cfg.ExpectTimeout, cfg.NavigationTimeout, cfg.ActionTimeout,
		cfg.ReadinessTimeout, cfg.BlockedTimeout, cfg.LoginTimeout)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
