// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for gauntlet.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/gauntlet-run/gauntlet/internal/config"
	"github.com/gauntlet-run/gauntlet/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables verbose output
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string
	// suiteFile allows specifying a suite file instead of walking up from
	// the working directory
	suiteFile string

	// loadedCfg is the configuration resolved by initRootConfig. Commands
	// read it through currentConfig, which falls back to defaults.
	loadedCfg *config.Config

	// app wires the CLI services; tests swap pieces through Dependencies.
	app = NewApp(Dependencies{})

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "gauntlet",
		Short: "A declarative test environment runner",
		Long: TitleStyle.Render("gauntlet") + SubtitleStyle.Render(" - A declarative test environment runner") + `

gauntlet runs your project's test environments from a single declarative
suite file. Each environment names its dependencies, commands, and where
they execute: the native shell, a built-in POSIX interpreter, or a
container (Docker/Podman).

Environments are defined in a 'gauntlet.cue' (or 'gauntlet.toml') file
discovered from the current directory upward.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Run 'gauntlet init' to scaffold a suite file
  2. Declare environments with deps and commands
  3. Run them with: gauntlet run [env...]

` + SubtitleStyle.Render("Examples:") + `
  gauntlet run                 Run the default environments
  gauntlet run py311 lint      Run two environments in order
  gauntlet run --parallel 4    Run environments concurrently
  gauntlet run -- -k smoke     Pass arguments through as {posargs}
  gauntlet list                Show all environments
  gauntlet check               Lint the suite file without running`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/gauntlet/config.cue)")
	rootCmd.PersistentFlags().StringVar(&suiteFile, "file", "", "suite file (default: discover gauntlet.cue or gauntlet.toml upward)")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(newConfigCommand(app))
	rootCmd.AddCommand(newDocsCommand())
	rootCmd.AddCommand(newUpgradeCommand())
	rootCmd.AddCommand(newCompletionCommand())
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// initRootConfig reads in config file and ENV variables if set.
func initRootConfig() {
	cfg, err := app.Config.Load(context.Background(), config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		// Always surface config loading errors; the run continues on
		// defaults unless the user pointed at an explicit file.
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, verbose))
		cfg = config.DefaultConfig()
	}
	loadedCfg = cfg

	// Apply verbose from config if not set via flag
	if !verbose {
		verbose = cfg.UI.Verbose
	}
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	applyColorMode(cfg.UI.Color)
}

// currentConfig returns the configuration resolved at startup, or defaults
// when initialization has not run (direct command invocation in tests).
func currentConfig() *config.Config {
	if loadedCfg != nil {
		return loadedCfg
	}
	return config.DefaultConfig()
}

// applyColorMode pins the lipgloss color profile when the configuration
// overrides terminal detection.
func applyColorMode(mode config.ColorMode) {
	switch mode {
	case config.ColorAlways:
		lipgloss.SetColorProfile(termenv.TrueColor)
	case config.ColorNever:
		lipgloss.SetColorProfile(termenv.Ascii)
	case config.ColorAuto:
		// Keep lipgloss's terminal detection.
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// GetVerbose returns the verbose flag value
func GetVerbose() bool {
	return verbose
}
