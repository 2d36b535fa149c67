// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/gauntlet-run/gauntlet/internal/config"
	"github.com/gauntlet-run/gauntlet/internal/discovery"
)

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: command handlers delegate configuration
	// loading and suite discovery through its interfaces so tests can
	// substitute them.
	App struct {
		Config ConfigProvider
		Suites SuiteLoaderFactory
		Stdout io.Writer
		Stderr io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		Suites SuiteLoaderFactory
		Stdout io.Writer
		Stderr io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	// This abstraction enables testing with custom config sources or mock
	// implementations.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// SuiteLoader locates and parses suite files. *discovery.Discovery
	// implements it.
	SuiteLoader interface {
		Load() (*discovery.DiscoveredFile, error)
		LoadFile(path string) (*discovery.DiscoveredFile, error)
	}

	// SuiteLoaderFactory creates a SuiteLoader rooted at the process working
	// directory. Discovery is cwd-relative, so each invocation gets a fresh
	// loader instead of one captured at startup.
	SuiteLoaderFactory func() (SuiteLoader, error)
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Suites == nil {
		deps.Suites = func() (SuiteLoader, error) { return discovery.New() }
	}

	return &App{
		Config: deps.Config,
		Suites: deps.Suites,
		Stdout: deps.Stdout,
		Stderr: deps.Stderr,
	}
}

// loadSuite resolves the governing suite file: the explicit --file path when
// given, otherwise walk-up discovery from the working directory.
func (a *App) loadSuite(explicit string) (*discovery.DiscoveredFile, error) {
	loader, err := a.Suites()
	if err != nil {
		return nil, err
	}
	if explicit != "" {
		return loader.LoadFile(explicit)
	}
	return loader.Load()
}
